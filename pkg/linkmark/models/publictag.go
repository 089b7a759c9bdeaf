package models

import "time"

// PublicTag grants read-only, unauthenticated access to all visible
// bookmarks of one user carrying one tag, under an opaque tag key.
// At most one active share exists per (user_key, tag).
type PublicTag struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	TagKey      string    `gorm:"uniqueIndex;not null" json:"tagkey"`
	UserKey     string    `gorm:"not null;index" json:"-"`
	Tag         string    `gorm:"not null" json:"tag"`
	CreatedDate time.Time `json:"created_date"`
}
