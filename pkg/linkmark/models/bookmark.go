package models

import (
	"time"

	"github.com/linkmark/linkmark/pkg/linkmark/tagutil"
)

// Visibility status of a bookmark. Deleting never removes the row.
const (
	StatusVisible = 0
	StatusDeleted = 1
)

// HTTP status values with special meaning for a bookmark.
// HTTPConnectionError is a reserved sentinel: the host could not be
// reached at all, as opposed to a real status the host returned.
const (
	HTTPConnectionError = 0
	HTTPOK              = 200
	HTTPAccepted        = 202
	HTTPNotFound        = 404
)

// Bookmark is one stored URL owned by a single user, identified by
// (user_key, url_hash). The tags column holds the canonical comma-joined
// form: sorted, deduplicated, trimmed, never a bare ",".
type Bookmark struct {
	ID      uint   `gorm:"primarykey" json:"id"`
	UserKey string `gorm:"not null;index" json:"-"`

	Title   string `json:"title"`
	URL     string `gorm:"not null" json:"url"`
	Note    string `json:"note"`
	URLHash string `gorm:"index" json:"url_hash"`
	Tags    string `json:"tags"`
	Starred bool   `gorm:"default:false" json:"starred"`

	// Cached favicon reference, "domain+extension" under the favicon dir.
	// Nil when no icon could be resolved.
	Favicon *string `json:"favicon,omitempty"`

	// No column default here: 0 is the reserved connection-error
	// sentinel, and gorm omits zero-valued fields carrying a default
	// from the insert, which would silently turn 0 into the default.
	HTTPStatus int `json:"http_status"`

	Status int `gorm:"default:0" json:"-"`

	// Version is an optimistic-concurrency token, bumped on every edit.
	Version uint `gorm:"default:0" json:"-"`

	CreatedDate  time.Time  `json:"created_date"`
	ModifiedDate *time.Time `json:"modified_date,omitempty"`
	DeletedDate  *time.Time `json:"-"`
}

// TagList returns the stored tags as a list. An empty tags column yields
// an empty list, not [""].
func (b *Bookmark) TagList() []string {
	return tagutil.Split(b.Tags)
}

// Broken reports whether the last reachability check was anything other
// than a plain 200 OK.
func (b *Bookmark) Broken() bool {
	return b.HTTPStatus != HTTPOK
}
