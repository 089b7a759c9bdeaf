// Package tagutil canonicalizes the comma-separated tag strings stored on
// bookmarks. The canonical form is trimmed, deduplicated (case-sensitive,
// first occurrence wins), lexicographically sorted, with no empty entries.
package tagutil

import (
	"sort"
	"strings"
)

// Canonicalize turns a raw comma-separated tag string into the canonical
// tag list. It is total and idempotent: canonicalizing an already
// canonical string yields the same list.
func Canonicalize(raw string) []string {
	return Clean(strings.Split(raw, ","))
}

// Clean canonicalizes an already split tag list.
func Clean(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	// Splitting "" or a trailing comma leaves one empty entry, which sorts
	// first. Canonical form never contains empty tags.
	if len(out) > 0 && out[0] == "" {
		out = out[1:]
	}
	return out
}

// CanonicalString returns the canonical stored form: tags comma-joined.
// An empty tag list serializes to "", never ",".
func CanonicalString(raw string) string {
	return strings.Join(Canonicalize(raw), ",")
}

// Split returns the stored canonical form as a list without re-cleaning
// it. An empty stored string yields an empty list, not [""].
func Split(stored string) []string {
	if stored == "" {
		return []string{}
	}
	return strings.Split(stored, ",")
}
