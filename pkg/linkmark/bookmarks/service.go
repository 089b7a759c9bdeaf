package bookmarks

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/linkmark/linkmark/pkg/linkmark/models"
	"github.com/linkmark/linkmark/pkg/linkmark/tagutil"
	"github.com/linkmark/linkmark/pkg/linkmark/urlutil"
)

// Enricher determines reachability and page titles for candidate URLs.
// It never fails; network trouble degrades to the connection-error
// sentinel status and an empty title.
type Enricher interface {
	FetchTitleAndStatus(ctx context.Context, url string) (string, int)
	CheckStatus(ctx context.Context, url string) int
}

// IconResolver resolves a cached favicon key for a page URL.
type IconResolver interface {
	Resolve(ctx context.Context, pageURL string) (string, error)
}

// Input carries the user-submitted fields of a bookmark create or edit.
type Input struct {
	Title       string
	URL         string
	Tags        string
	Note        string
	Starred     bool
	StripParams bool
}

// Service is the bookmark lifecycle manager. It orchestrates
// canonicalization, identity hashing, enrichment and favicon resolution
// around the record store, and owns the dedup and visibility invariants.
type Service struct {
	db       *gorm.DB
	enricher Enricher
	icons    IconResolver
	tagCache *TagCache
	log      *zap.Logger

	// Now is the injectable clock for created/modified/deleted stamps.
	Now func() time.Time
}

func NewService(db *gorm.DB, enricher Enricher, icons IconResolver, cache *TagCache, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		db:       db,
		enricher: enricher,
		icons:    icons,
		tagCache: cache,
		log:      log,
		Now:      time.Now,
	}
}

// Create stores a new bookmark for the user, running the full enrichment
// pipeline. When (user key, url) already has a row, visible or deleted,
// the existing bookmark is returned together with ErrBookmarkExists and
// nothing is overwritten.
func (s *Service) Create(ctx context.Context, userKey string, in Input) (*models.Bookmark, error) {
	if in.URL == "" {
		return nil, ErrMissingURL
	}

	// Conflict check is by raw URL equality, independent of the hash.
	var existing models.Bookmark
	err := s.db.Where("user_key = ? AND url = ?", userKey, in.URL).First(&existing).Error
	if err == nil {
		return &existing, ErrBookmarkExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	b := &models.Bookmark{
		UserKey:     userKey,
		Status:      models.StatusVisible,
		CreatedDate: s.Now(),
	}
	if err := s.apply(ctx, b, in); err != nil {
		return nil, err
	}
	if err := s.db.Create(b).Error; err != nil {
		return nil, err
	}
	s.refreshTags(userKey)
	return b, nil
}

// Update edits an existing bookmark through the same pipeline, stamping
// ModifiedDate. The write carries an optimistic version guard: when a
// concurrent edit got there first, ErrStaleBookmark is returned and
// nothing is written.
func (s *Service) Update(ctx context.Context, userKey, urlHash string, in Input) (*models.Bookmark, error) {
	if in.URL == "" {
		return nil, ErrMissingURL
	}

	var b models.Bookmark
	err := s.db.Where("user_key = ? AND url_hash = ?", userKey, urlHash).First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	prevVersion := b.Version
	if err := s.apply(ctx, &b, in); err != nil {
		return nil, err
	}
	now := s.Now()
	b.ModifiedDate = &now
	b.Version = prevVersion + 1

	res := s.db.Model(&models.Bookmark{}).
		Where("id = ? AND version = ?", b.ID, prevVersion).
		Updates(map[string]interface{}{
			"title":         b.Title,
			"url":           b.URL,
			"note":          b.Note,
			"url_hash":      b.URLHash,
			"tags":          b.Tags,
			"starred":       b.Starred,
			"favicon":       b.Favicon,
			"http_status":   b.HTTPStatus,
			"modified_date": b.ModifiedDate,
			"version":       b.Version,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrStaleBookmark
	}
	s.refreshTags(userKey)
	return &b, nil
}

// apply runs the shared create/edit pipeline on b: normalize the URL,
// canonicalize tags, recompute the identity hash from the current URL,
// enrich, and resolve a favicon when the page is reachable. Enrichment
// and favicon failures degrade, they never abort the save.
func (s *Service) apply(ctx context.Context, b *models.Bookmark, in Input) error {
	url := in.URL
	if in.StripParams {
		stripped, err := urlutil.StripParams(url)
		if err != nil {
			return err
		}
		url = stripped
	}

	b.URL = url
	b.URLHash = urlutil.Hash(url)
	b.Title = in.Title
	b.Note = in.Note
	b.Starred = in.Starred
	b.Tags = tagutil.CanonicalString(in.Tags)

	if in.Title == "" {
		// No title supplied: fetch it, which also observes the status.
		title, status := s.enricher.FetchTitleAndStatus(ctx, url)
		b.Title = title
		b.HTTPStatus = status
	} else {
		// Title known, a HEAD is enough.
		b.HTTPStatus = s.enricher.CheckStatus(ctx, url)
	}

	if b.HTTPStatus == models.HTTPOK || b.HTTPStatus == models.HTTPAccepted {
		key, err := s.icons.Resolve(ctx, url)
		if err != nil {
			// Bookmark is still saved, just without an icon.
			s.log.Warn("favicon resolution failed",
				zap.String("url", url), zap.Error(err))
		} else {
			b.Favicon = &key
		}
	}
	return nil
}

// SoftDelete marks the bookmark deleted and stamps DeletedDate. Deleting
// an already deleted or unknown bookmark is not an error.
func (s *Service) SoftDelete(userKey, urlHash string) error {
	err := s.db.Model(&models.Bookmark{}).
		Where("user_key = ? AND url_hash = ?", userKey, urlHash).
		Updates(map[string]interface{}{
			"status":       models.StatusDeleted,
			"deleted_date": s.Now(),
		}).Error
	if err != nil {
		return err
	}
	s.refreshTags(userKey)
	return nil
}

// Restore makes a deleted bookmark visible again and clears DeletedDate.
// Idempotent.
func (s *Service) Restore(userKey, urlHash string) error {
	err := s.db.Model(&models.Bookmark{}).
		Where("user_key = ? AND url_hash = ?", userKey, urlHash).
		Updates(map[string]interface{}{
			"status":       models.StatusVisible,
			"deleted_date": nil,
		}).Error
	if err != nil {
		return err
	}
	s.refreshTags(userKey)
	return nil
}

// Get returns the bookmark for (user key, url hash). The edit view needs
// to see deleted rows too, so visibility is not filtered here.
func (s *Service) Get(userKey, urlHash string) (*models.Bookmark, error) {
	var b models.Bookmark
	err := s.db.Where("user_key = ? AND url_hash = ?", userKey, urlHash).First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetVisible returns the bookmark only when it is visible.
func (s *Service) GetVisible(userKey, urlHash string) (*models.Bookmark, error) {
	var b models.Bookmark
	err := s.db.Where("user_key = ? AND url_hash = ? AND status = ?",
		userKey, urlHash, models.StatusVisible).First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListOptions select and filter a user's bookmark listing. Text matching
// is plain substring containment over title, url and note.
type ListOptions struct {
	Text    string
	Tag     string
	Starred bool
	Broken  bool
	Noted   bool
}

// List returns the user's visible bookmarks, newest first, narrowed by
// the given filters.
func (s *Service) List(userKey string, opts ListOptions) ([]models.Bookmark, error) {
	query := s.db.Where("user_key = ? AND status = ?", userKey, models.StatusVisible).
		Order("created_date DESC")

	if opts.Text != "" {
		like := "%" + opts.Text + "%"
		query = query.Where("title LIKE ? OR url LIKE ? OR note LIKE ?", like, like, like)
	}
	if opts.Tag != "" {
		query = query.Where("tags LIKE ?", "%"+opts.Tag+"%")
	}
	if opts.Starred {
		query = query.Where("starred = ?", true)
	}
	if opts.Broken {
		query = query.Where("http_status != ?", models.HTTPOK)
	}
	if opts.Noted {
		query = query.Where("note != ?", "")
	}

	var bookmarks []models.Bookmark
	if err := query.Find(&bookmarks).Error; err != nil {
		return nil, err
	}
	return bookmarks, nil
}

// TagsForUser returns the user's canonical tag vocabulary, served from
// the cache when warm.
func (s *Service) TagsForUser(userKey string) ([]string, error) {
	if tags, ok := s.tagCache.Get(userKey); ok {
		return tags, nil
	}
	tags, err := computeTagsForUser(s.db, userKey)
	if err != nil {
		return nil, err
	}
	s.tagCache.Set(userKey, tags)
	return tags, nil
}

// refreshTags recomputes a user's cached tag vocabulary after a write.
func (s *Service) refreshTags(userKey string) {
	tags, err := computeTagsForUser(s.db, userKey)
	if err != nil {
		s.log.Warn("tag cache refresh failed", zap.String("userkey", userKey), zap.Error(err))
		s.tagCache.Invalidate(userKey)
		return
	}
	s.tagCache.Set(userKey, tags)
}
