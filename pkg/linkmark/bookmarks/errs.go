package bookmarks

import "errors"

var (
	// ErrMissingURL means no URL was submitted.
	ErrMissingURL = errors.New("no url supplied")

	// ErrBookmarkExists signals that (user key, url) already has a row.
	// It is a redirect signal rather than a failure: the caller is handed
	// the existing bookmark and should send the client to its edit view
	// instead of creating a duplicate.
	ErrBookmarkExists = errors.New("bookmark already exists")

	// ErrNotFound means no bookmark matches (user key, url hash).
	ErrNotFound = errors.New("bookmark not found")

	// ErrStaleBookmark means a concurrent edit bumped the version token
	// between read and write.
	ErrStaleBookmark = errors.New("bookmark was modified concurrently")
)
