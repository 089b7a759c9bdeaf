// Package urlutil holds the URL canonicalization primitives: the
// tracking-parameter stripper and the identity hash that makes up half of
// a bookmark's (user key, url hash) identity.
package urlutil

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"net/url"
)

var ErrMalformedURL = errors.New("malformed url")

// StripParams drops the query component of a URL, keeping scheme, host,
// path and fragment unchanged. It is only applied when the caller
// explicitly asks for it; normal storage keeps the query string.
func StripParams(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", ErrMalformedURL
	}
	u.RawQuery = ""
	return u.String(), nil
}

// Hash returns the identity hash of a stored URL string: md5 hex over its
// UTF-8 bytes. Dedup is by exact string identity, so URLs differing in a
// trailing slash or a query parameter hash differently. This is a dedup
// key, not a security boundary.
func Hash(rawURL string) string {
	sum := md5.Sum([]byte(rawURL))
	return hex.EncodeToString(sum[:])
}

// Domain extracts the host of a URL, used as the favicon cache key.
func Domain(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", ErrMalformedURL
	}
	return u.Host, nil
}
