package bookmarks

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/linkmark/linkmark/pkg/linkmark/models"
	"github.com/linkmark/linkmark/pkg/linkmark/urlutil"
)

// Handler handles bookmark-related requests
type Handler struct {
	svc *Service
}

// NewHandler creates a new bookmarks handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// BookmarkRequest represents the request to create or update a bookmark
type BookmarkRequest struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Tags    string `json:"tags"`
	Note    string `json:"note"`
	Starred bool   `json:"starred"`
	Strip   bool   `json:"strip"`
}

// BookmarkResponse represents a bookmark in API responses. Tags keep
// their stored comma-joined form.
type BookmarkResponse struct {
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Note       string  `json:"note"`
	URLHash    string  `json:"url_hash"`
	Tags       string  `json:"tags"`
	Starred    bool    `json:"starred"`
	Favicon    *string `json:"favicon,omitempty"`
	HTTPStatus int     `json:"http_status"`
	Deleted    bool    `json:"deleted,omitempty"`
	Created    string  `json:"created"`
	Modified   string  `json:"modified,omitempty"`
}

const dateFormat = "2006-01-02 15:04:05"

func bookmarkToResponse(b models.Bookmark) BookmarkResponse {
	resp := BookmarkResponse{
		Title:      b.Title,
		URL:        b.URL,
		Note:       b.Note,
		URLHash:    b.URLHash,
		Tags:       b.Tags,
		Starred:    b.Starred,
		Favicon:    b.Favicon,
		HTTPStatus: b.HTTPStatus,
		Deleted:    b.Status == models.StatusDeleted,
		Created:    b.CreatedDate.Format(dateFormat),
	}
	if b.ModifiedDate != nil {
		resp.Modified = b.ModifiedDate.Format(dateFormat)
	}
	return resp
}

func bookmarksToResponses(bs []models.Bookmark) []BookmarkResponse {
	responses := make([]BookmarkResponse, len(bs))
	for i, b := range bs {
		responses[i] = bookmarkToResponse(b)
	}
	return responses
}

// List returns the user's visible bookmarks with their tag vocabulary
// @Summary List bookmarks
// @Description Get all visible bookmarks for a user key, newest first
// @Tags bookmarks
// @Produce json
// @Param userkey path string true "User key"
// @Param q query string false "Substring filter over title, url and note"
// @Param tag query string false "Filter by tag"
// @Param filter query string false "Named filter: starred, broken or note"
// @Success 200 {object} map[string]interface{}
// @Router /{userkey} [get]
func (h *Handler) List(c *gin.Context) {
	userKey := c.Param("userkey")

	opts := ListOptions{
		Text: c.Query("q"),
		Tag:  c.Query("tag"),
	}
	switch c.Query("filter") {
	case "starred":
		opts.Starred = true
	case "broken":
		opts.Broken = true
	case "note":
		opts.Noted = true
	}

	bookmarks, err := h.svc.List(userKey, opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch bookmarks"})
		return
	}
	tags, err := h.svc.TagsForUser(userKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch tags"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"userkey":   userKey,
		"bookmarks": bookmarksToResponses(bookmarks),
		"tags":      tags,
	})
}

// Create adds a bookmark
// @Summary Create a bookmark
// @Description Store a URL for the user, enriching it with title, status and favicon
// @Tags bookmarks
// @Accept json
// @Produce json
// @Param userkey path string true "User key"
// @Param request body BookmarkRequest true "Bookmark fields"
// @Success 201 {object} BookmarkResponse
// @Failure 400 {object} map[string]string "Missing or malformed URL"
// @Failure 409 {object} map[string]string "Bookmark already exists for this URL"
// @Router /{userkey} [post]
func (h *Handler) Create(c *gin.Context) {
	userKey := c.Param("userkey")

	var req BookmarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	b, err := h.svc.Create(c.Request.Context(), userKey, Input{
		Title:       req.Title,
		URL:         req.URL,
		Tags:        req.Tags,
		Note:        req.Note,
		Starred:     req.Starred,
		StripParams: req.Strip,
	})
	switch {
	case errors.Is(err, ErrBookmarkExists):
		// Not a failure: point the client at the existing row's edit view.
		c.JSON(http.StatusConflict, gin.H{
			"error":    "Existing bookmark, did not overwrite with new values",
			"url_hash": b.URLHash,
		})
	case errors.Is(err, ErrMissingURL):
		c.JSON(http.StatusBadRequest, gin.H{"error": "No url provided"})
	case errors.Is(err, urlutil.ErrMalformedURL):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed url"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create bookmark"})
	default:
		c.JSON(http.StatusCreated, bookmarkToResponse(*b))
	}
}

// Get returns one bookmark by its hash
// @Summary Get a bookmark
// @Description Get a bookmark by url hash; deleted bookmarks are included so they can be edited or restored
// @Tags bookmarks
// @Produce json
// @Param userkey path string true "User key"
// @Param urlhash path string true "URL hash"
// @Success 200 {object} BookmarkResponse
// @Failure 404 {object} map[string]string "Bookmark not found"
// @Router /{userkey}/{urlhash} [get]
func (h *Handler) Get(c *gin.Context) {
	b, err := h.svc.Get(c.Param("userkey"), c.Param("urlhash"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Bookmark not found"})
		return
	}
	c.JSON(http.StatusOK, bookmarkToResponse(*b))
}

// Update edits a bookmark
// @Summary Update a bookmark
// @Description Edit a bookmark's fields, re-running canonicalization and enrichment
// @Tags bookmarks
// @Accept json
// @Produce json
// @Param userkey path string true "User key"
// @Param urlhash path string true "URL hash"
// @Param request body BookmarkRequest true "Updated fields"
// @Success 200 {object} BookmarkResponse
// @Failure 400 {object} map[string]string "Missing or malformed URL"
// @Failure 404 {object} map[string]string "Bookmark not found"
// @Failure 409 {object} map[string]string "Concurrent edit"
// @Router /{userkey}/{urlhash} [put]
func (h *Handler) Update(c *gin.Context) {
	var req BookmarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	b, err := h.svc.Update(c.Request.Context(), c.Param("userkey"), c.Param("urlhash"), Input{
		Title:       req.Title,
		URL:         req.URL,
		Tags:        req.Tags,
		Note:        req.Note,
		Starred:     req.Starred,
		StripParams: req.Strip,
	})
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Bookmark not found"})
	case errors.Is(err, ErrMissingURL):
		c.JSON(http.StatusBadRequest, gin.H{"error": "No url provided"})
	case errors.Is(err, urlutil.ErrMalformedURL):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed url"})
	case errors.Is(err, ErrStaleBookmark):
		c.JSON(http.StatusConflict, gin.H{"error": "Bookmark was modified concurrently"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update bookmark"})
	default:
		c.JSON(http.StatusOK, bookmarkToResponse(*b))
	}
}

// Delete soft-deletes a bookmark
// @Summary Delete a bookmark
// @Description Mark a bookmark deleted; the row is kept and can be restored
// @Tags bookmarks
// @Produce json
// @Param userkey path string true "User key"
// @Param urlhash path string true "URL hash"
// @Success 200 {object} map[string]string "Bookmark deleted"
// @Router /{userkey}/{urlhash} [delete]
func (h *Handler) Delete(c *gin.Context) {
	if err := h.svc.SoftDelete(c.Param("userkey"), c.Param("urlhash")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete bookmark"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Bookmark deleted"})
}

// Undelete restores a soft-deleted bookmark
// @Summary Restore a bookmark
// @Description Make a deleted bookmark visible again
// @Tags bookmarks
// @Produce json
// @Param userkey path string true "User key"
// @Param urlhash path string true "URL hash"
// @Success 200 {object} map[string]string "Bookmark restored"
// @Router /{userkey}/{urlhash}/undelete [post]
func (h *Handler) Undelete(c *gin.Context) {
	if err := h.svc.Restore(c.Param("userkey"), c.Param("urlhash")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to restore bookmark"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Bookmark restored"})
}

// Tags returns the user's canonical tag vocabulary
// @Summary List tags
// @Description Union of the tag lists of all visible bookmarks, canonicalized
// @Tags bookmarks
// @Produce json
// @Param userkey path string true "User key"
// @Success 200 {array} string
// @Router /{userkey}/tags [get]
func (h *Handler) Tags(c *gin.Context) {
	tags, err := h.svc.TagsForUser(c.Param("userkey"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch tags"})
		return
	}
	c.JSON(http.StatusOK, tags)
}

// Search returns visible bookmarks matching a substring
// @Summary Search bookmarks
// @Description Substring containment search over title, url and note
// @Tags bookmarks
// @Produce json
// @Param userkey path string true "User key"
// @Param text path string true "Search text"
// @Success 200 {array} BookmarkResponse
// @Router /{userkey}/search/{text} [get]
func (h *Handler) Search(c *gin.Context) {
	bookmarks, err := h.svc.List(c.Param("userkey"), ListOptions{Text: c.Param("text")})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to search bookmarks"})
		return
	}
	c.JSON(http.StatusOK, bookmarksToResponses(bookmarks))
}

// Redirect sends the client to a bookmark's URL
// @Summary Redirect to a bookmark
// @Description Redirect to the stored URL of a visible bookmark
// @Tags bookmarks
// @Param userkey path string true "User key"
// @Param urlhash path string true "URL hash"
// @Success 302
// @Failure 404 {object} map[string]string "Bookmark not found"
// @Router /r/{userkey}/{urlhash} [get]
func (h *Handler) Redirect(c *gin.Context) {
	b, err := h.svc.GetVisible(c.Param("userkey"), c.Param("urlhash"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Bookmark not found"})
		return
	}
	c.Redirect(http.StatusFound, b.URL)
}

// RegisterRoutes registers bookmark routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/:userkey", h.List)
	rg.POST("/:userkey", h.Create)
	rg.GET("/:userkey/tags", h.Tags)
	rg.GET("/:userkey/search/:text", h.Search)
	rg.GET("/:userkey/:urlhash", h.Get)
	rg.PUT("/:userkey/:urlhash", h.Update)
	rg.DELETE("/:userkey/:urlhash", h.Delete)
	rg.POST("/:userkey/:urlhash/undelete", h.Undelete)
}

// RegisterRedirectRoutes registers the public redirect route on the root
// router
func (h *Handler) RegisterRedirectRoutes(r *gin.Engine) {
	r.GET("/r/:userkey/:urlhash", h.Redirect)
}
