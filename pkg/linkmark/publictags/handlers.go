package publictags

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/linkmark/linkmark/pkg/linkmark/models"
)

// Handler handles public tag share requests
type Handler struct {
	svc *Service
}

// NewHandler creates a new public tags handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// ShareResponse represents a public tag share in API responses
type ShareResponse struct {
	TagKey  string `json:"tagkey"`
	Tag     string `json:"tag"`
	Created string `json:"created"`
}

// PublicBookmarkResponse is the read-only bookmark view exposed to
// anonymous readers: no note, no status internals.
type PublicBookmarkResponse struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	URLHash string `json:"url_hash"`
	Tags    string `json:"tags"`
	Created string `json:"created"`
}

const dateFormat = "2006-01-02 15:04:05"

func shareToResponse(pt models.PublicTag) ShareResponse {
	return ShareResponse{
		TagKey:  pt.TagKey,
		Tag:     pt.Tag,
		Created: pt.CreatedDate.Format(dateFormat),
	}
}

// Create issues a share key for a tag
// @Summary Share a tag publicly
// @Description Issue an opaque share key for (user key, tag); repeated calls return the existing share
// @Tags publictags
// @Produce json
// @Param userkey path string true "User key"
// @Param tag path string true "Tag"
// @Success 200 {object} ShareResponse "Share already existed"
// @Success 201 {object} ShareResponse
// @Failure 404 {object} map[string]string "User not found"
// @Router /{userkey}/tags/{tag}/public [post]
func (h *Handler) Create(c *gin.Context) {
	pt, created, err := h.svc.Create(c.Param("userkey"), c.Param("tag"))
	switch {
	case errors.Is(err, ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create public tag"})
	case created:
		c.JSON(http.StatusCreated, shareToResponse(*pt))
	default:
		c.JSON(http.StatusOK, shareToResponse(*pt))
	}
}

// Revoke deletes a share
// @Summary Revoke a public tag share
// @Description Hard-delete the share; revoking an unknown share is a no-op
// @Tags publictags
// @Produce json
// @Param userkey path string true "User key"
// @Param tag path string true "Tag"
// @Param tagkey path string true "Share key"
// @Success 200 {object} map[string]string "Share revoked"
// @Router /{userkey}/tags/{tag}/public/{tagkey} [delete]
func (h *Handler) Revoke(c *gin.Context) {
	err := h.svc.Revoke(c.Param("userkey"), c.Param("tag"), c.Param("tagkey"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to revoke public tag"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Public link deleted"})
}

// Resolve returns the shared bookmarks for a tag key
// @Summary Read a public tag
// @Description Anonymous read-only list of the owner's visible bookmarks carrying the shared tag, newest first
// @Tags publictags
// @Produce json
// @Param tagkey path string true "Share key"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string "Share not found"
// @Router /pub/{tagkey} [get]
func (h *Handler) Resolve(c *gin.Context) {
	pt, bookmarks, err := h.svc.Resolve(c.Param("tagkey"))
	if errors.Is(err, ErrShareNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Share not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve public tag"})
		return
	}

	items := make([]PublicBookmarkResponse, len(bookmarks))
	for i, b := range bookmarks {
		items[i] = PublicBookmarkResponse{
			Title:   b.Title,
			URL:     b.URL,
			URLHash: b.URLHash,
			Tags:    b.Tags,
			Created: b.CreatedDate.Format(dateFormat),
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"tagkey": pt.TagKey,
		"tag":    pt.Tag,
		"count":  len(items),
		"items":  items,
	})
}

// RegisterRoutes registers the authenticated share management routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/:userkey/tags/:tag/public", h.Create)
	rg.DELETE("/:userkey/tags/:tag/public/:tagkey", h.Revoke)
}

// RegisterPublicRoutes registers the anonymous read route on the root
// router
func (h *Handler) RegisterPublicRoutes(r *gin.Engine) {
	r.GET("/pub/:tagkey", h.Resolve)
}
