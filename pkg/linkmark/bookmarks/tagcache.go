package bookmarks

import (
	"sync"

	"gorm.io/gorm"

	"github.com/linkmark/linkmark/pkg/linkmark/models"
	"github.com/linkmark/linkmark/pkg/linkmark/tagutil"
)

// TagCache holds the canonical tag vocabulary per user so tag listings do
// not re-scan every bookmark on each request. Its contract is
// invalidate-on-write: the bookmark service drops a user's entry after
// every create, edit, delete and restore, and the entry is rebuilt lazily
// on the next read. Entries have no TTL; Warm rebuilds all users at
// process start.
type TagCache struct {
	mu   sync.RWMutex
	tags map[string][]string
}

func NewTagCache() *TagCache {
	return &TagCache{tags: make(map[string][]string)}
}

// Get returns the cached tag list for a user key.
func (c *TagCache) Get(userKey string) ([]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tags, ok := c.tags[userKey]
	return tags, ok
}

// Set stores the tag list for a user key.
func (c *TagCache) Set(userKey string, tags []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tags[userKey] = tags
}

// Invalidate drops a user's entry so it is recomputed on next read.
func (c *TagCache) Invalidate(userKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tags, userKey)
}

// Warm rebuilds the cache for every known user from persisted data.
func (c *TagCache) Warm(db *gorm.DB) error {
	var users []models.User
	if err := db.Find(&users).Error; err != nil {
		return err
	}
	for _, u := range users {
		tags, err := computeTagsForUser(db, u.Key)
		if err != nil {
			return err
		}
		c.Set(u.Key, tags)
	}
	return nil
}

// computeTagsForUser unions the tag lists of all visible bookmarks for a
// user and canonicalizes the union.
func computeTagsForUser(db *gorm.DB, userKey string) ([]string, error) {
	var bookmarks []models.Bookmark
	err := db.Where("user_key = ? AND status = ?", userKey, models.StatusVisible).
		Find(&bookmarks).Error
	if err != nil {
		return nil, err
	}
	var all []string
	for _, b := range bookmarks {
		all = append(all, b.TagList()...)
	}
	return tagutil.Clean(all), nil
}
