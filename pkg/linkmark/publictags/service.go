// Package publictags manages share keys that expose one user's bookmarks
// under one tag to anonymous readers.
package publictags

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/linkmark/linkmark/pkg/linkmark/keys"
	"github.com/linkmark/linkmark/pkg/linkmark/models"
)

var (
	// ErrUserNotFound means the user key does not belong to any user.
	ErrUserNotFound = errors.New("user not found")

	// ErrShareNotFound means no public tag carries the given tag key.
	ErrShareNotFound = errors.New("share not found")
)

// Service manages public tag share issuance, revocation and resolution.
type Service struct {
	db *gorm.DB

	// Now is the injectable clock for creation stamps.
	Now func() time.Time
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, Now: time.Now}
}

// Create issues a share key for (user key, tag). Creation is idempotent:
// when an active share already exists it is returned unchanged, with
// created reporting false. The key is random; collision probability is
// treated as negligible, so there is no uniqueness retry loop.
func (s *Service) Create(userKey, tag string) (pt *models.PublicTag, created bool, err error) {
	var user models.User
	err = s.db.Where("key = ?", userKey).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, ErrUserNotFound
	}
	if err != nil {
		return nil, false, err
	}

	var existing models.PublicTag
	err = s.db.Where("user_key = ? AND tag = ?", userKey, tag).First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	fresh := models.PublicTag{
		TagKey:      keys.NewTagKey(),
		UserKey:     userKey,
		Tag:         tag,
		CreatedDate: s.Now(),
	}
	if err := s.db.Create(&fresh).Error; err != nil {
		return nil, false, err
	}
	return &fresh, true, nil
}

// Revoke hard-deletes the matching share. A share carries no content of
// its own, so there is nothing to soft-delete; revoking a share that does
// not exist is a no-op.
func (s *Service) Revoke(userKey, tag, tagKey string) error {
	return s.db.
		Where("user_key = ? AND tag = ? AND tag_key = ?", userKey, tag, tagKey).
		Delete(&models.PublicTag{}).Error
}

// Resolve looks up a share by its tag key and returns it together with
// the owner's visible bookmarks carrying the shared tag, newest first.
func (s *Service) Resolve(tagKey string) (*models.PublicTag, []models.Bookmark, error) {
	var pt models.PublicTag
	err := s.db.Where("tag_key = ?", tagKey).First(&pt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrShareNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	var bookmarks []models.Bookmark
	err = s.db.
		Where("user_key = ? AND status = ? AND tags LIKE ?",
			pt.UserKey, models.StatusVisible, "%"+pt.Tag+"%").
		Order("created_date DESC").
		Find(&bookmarks).Error
	if err != nil {
		return nil, nil, err
	}
	return &pt, bookmarks, nil
}
