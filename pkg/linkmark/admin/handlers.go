// Package admin holds the system-key-gated maintenance endpoints: user
// creation and favicon cache upkeep. The gate responds 404 on a wrong
// key so the endpoints stay invisible to probing.
package admin

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"gorm.io/gorm"

	"github.com/linkmark/linkmark/pkg/linkmark/bookmarks"
	"github.com/linkmark/linkmark/pkg/linkmark/keys"
	"github.com/linkmark/linkmark/pkg/linkmark/models"
)

// maxConcurrentResolves bounds the favicon sweep's parallel fetches.
const maxConcurrentResolves = 25

// IconResolver is the favicon collaborator used by the maintenance
// sweeps.
type IconResolver interface {
	Resolve(ctx context.Context, pageURL string) (string, error)
	Has(key string) bool
	Remove(key string) error
}

// Handler handles admin requests
type Handler struct {
	db        *gorm.DB
	systemKey string
	icons     IconResolver
	tagCache  *bookmarks.TagCache
	log       *zap.Logger
}

// NewHandler creates a new admin handler. With an empty systemKey every
// admin route answers 404.
func NewHandler(db *gorm.DB, systemKey string, icons IconResolver, cache *bookmarks.TagCache, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{db: db, systemKey: systemKey, icons: icons, tagCache: cache, log: log}
}

// UserResponse represents a created user
type UserResponse struct {
	Key      string `json:"key"`
	Username string `json:"username"`
	Theme    string `json:"theme"`
}

func (h *Handler) gate(c *gin.Context) bool {
	if h.systemKey == "" || c.Param("systemkey") != h.systemKey {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return false
	}
	return true
}

// CreateUser creates a user with a fresh key
// @Summary Create a user
// @Description Generate an opaque user key; gated by the system key
// @Tags admin
// @Produce json
// @Param systemkey path string true "System key"
// @Success 201 {object} UserResponse
// @Failure 404 {object} map[string]string "Unknown system key"
// @Router /admin/{systemkey}/users [post]
func (h *Handler) CreateUser(c *gin.Context) {
	if !h.gate(c) {
		return
	}

	user := models.User{
		Key:      keys.NewUserKey(),
		Username: "Nomen Nescio",
		Theme:    models.DefaultTheme,
	}
	if err := h.db.Create(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}
	// New users start with an empty tag vocabulary.
	h.tagCache.Set(user.Key, []string{})

	c.JSON(http.StatusCreated, UserResponse{
		Key:      user.Key,
		Username: user.Username,
		Theme:    user.Theme,
	})
}

// RefreshFavicons re-downloads every bookmark's favicon
// @Summary Refresh all favicons
// @Description Drop cached icons and resolve them again for every bookmark
// @Tags admin
// @Produce json
// @Param systemkey path string true "System key"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string "Unknown system key"
// @Router /admin/{systemkey}/favicons/refresh [post]
func (h *Handler) RefreshFavicons(c *gin.Context) {
	if !h.gate(c) {
		return
	}

	var all []models.Bookmark
	if err := h.db.Find(&all).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch bookmarks"})
		return
	}

	refreshed := h.sweep(c.Request.Context(), all, func(b *models.Bookmark) bool {
		if b.Favicon != nil {
			if err := h.icons.Remove(*b.Favicon); err != nil {
				h.log.Warn("favicon removal failed",
					zap.String("favicon", *b.Favicon), zap.Error(err))
			}
		}
		return true
	})

	c.JSON(http.StatusOK, gin.H{"bookmarks": len(all), "refreshed": refreshed})
}

// FindMissingFavicons re-resolves bookmarks whose icon file is gone
// @Summary Restore missing favicons
// @Description Resolve icons for bookmarks whose cached file no longer exists, clearing the stale reference first so no broken image is served
// @Tags admin
// @Produce json
// @Param systemkey path string true "System key"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string "Unknown system key"
// @Router /admin/{systemkey}/favicons/missing [post]
func (h *Handler) FindMissingFavicons(c *gin.Context) {
	if !h.gate(c) {
		return
	}

	var all []models.Bookmark
	if err := h.db.Find(&all).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch bookmarks"})
		return
	}

	resolved := h.sweep(c.Request.Context(), all, func(b *models.Bookmark) bool {
		if b.Favicon != nil && h.icons.Has(*b.Favicon) {
			return false
		}
		if b.Favicon != nil {
			// Clear the stale reference before re-resolving.
			b.Favicon = nil
			h.db.Model(b).Update("favicon", nil)
		}
		return true
	})

	c.JSON(http.StatusOK, gin.H{"bookmarks": len(all), "resolved": resolved})
}

// sweep re-resolves favicons for the bookmarks selected by want, bounded
// by a weighted semaphore so a large store does not stampede the icon
// providers.
func (h *Handler) sweep(ctx context.Context, all []models.Bookmark, want func(*models.Bookmark) bool) int {
	sem := semaphore.NewWeighted(maxConcurrentResolves)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		count int
	)
	for i := range all {
		b := &all[i]
		if !want(b) {
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			key, err := h.icons.Resolve(ctx, b.URL)
			if err != nil {
				h.log.Debug("favicon sweep miss", zap.String("url", b.URL), zap.Error(err))
				return
			}
			if err := h.db.Model(b).Update("favicon", key).Error; err != nil {
				h.log.Warn("favicon sweep save failed", zap.String("url", b.URL), zap.Error(err))
				return
			}
			mu.Lock()
			count++
			mu.Unlock()
		}()
	}
	wg.Wait()
	return count
}

// RegisterRoutes registers admin routes on the root router
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/admin/:systemkey/users", h.CreateUser)
	r.POST("/admin/:systemkey/favicons/refresh", h.RefreshFavicons)
	r.POST("/admin/:systemkey/favicons/missing", h.FindMissingFavicons)
}
