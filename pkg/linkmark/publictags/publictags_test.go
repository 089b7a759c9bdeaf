package publictags

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/linkmark/linkmark/pkg/linkmark/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	models.AutoMigrate(db)
	return db
}

func setupRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	gin.SetMode(gin.TestMode)
	db := setupTestDB(t)
	h := NewHandler(NewService(db))

	r := gin.New()
	api := r.Group("/api/v1")
	h.RegisterRoutes(api)
	h.RegisterPublicRoutes(r)
	return r, db
}

func do(t *testing.T, r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req, err := http.NewRequest(method, path, nil)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func seedUser(db *gorm.DB, key string) {
	db.Create(&models.User{Key: key, Username: "tester", Theme: models.DefaultTheme})
}

func TestCreateShare(t *testing.T) {
	svc := NewService(setupTestDB(t))
	seedUser(svc.db, "u1")

	pt, created, err := svc.Create("u1", "golang")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !created {
		t.Errorf("First share must report created")
	}
	if len(pt.TagKey) != 32 {
		t.Errorf("Expected 32-char hex share key, got %q", pt.TagKey)
	}
	if pt.Tag != "golang" || pt.UserKey != "u1" {
		t.Errorf("Share fields wrong: %+v", pt)
	}
}

func TestCreateShareIsIdempotent(t *testing.T) {
	svc := NewService(setupTestDB(t))
	seedUser(svc.db, "u1")

	first, _, err := svc.Create("u1", "golang")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	second, created, err := svc.Create("u1", "golang")
	if err != nil {
		t.Fatalf("Repeated create failed: %v", err)
	}
	if created {
		t.Errorf("Repeated create must not report created")
	}
	if second.TagKey != first.TagKey {
		t.Errorf("Repeated create must return the existing key, got %q and %q", first.TagKey, second.TagKey)
	}

	var count int64
	svc.db.Model(&models.PublicTag{}).Count(&count)
	if count != 1 {
		t.Errorf("Expected 1 share row, got %d", count)
	}
}

func TestCreateShareUnknownUser(t *testing.T) {
	svc := NewService(setupTestDB(t))

	_, _, err := svc.Create("nope", "golang")
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}
}

func TestRevokeThenCreateIssuesFreshKey(t *testing.T) {
	svc := NewService(setupTestDB(t))
	seedUser(svc.db, "u1")

	first, _, _ := svc.Create("u1", "golang")
	if err := svc.Revoke("u1", "golang", first.TagKey); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if _, _, err := svc.Resolve(first.TagKey); !errors.Is(err, ErrShareNotFound) {
		t.Errorf("Revoked key must not resolve, got %v", err)
	}

	second, created, err := svc.Create("u1", "golang")
	if err != nil {
		t.Fatalf("Create after revoke failed: %v", err)
	}
	if !created {
		t.Errorf("Create after revoke must report created")
	}
	if second.TagKey == first.TagKey {
		t.Errorf("Re-sharing must issue a fresh key")
	}
}

func TestRevokeUnknownShareIsNoOp(t *testing.T) {
	svc := NewService(setupTestDB(t))
	seedUser(svc.db, "u1")

	if err := svc.Revoke("u1", "golang", "0123456789abcdef0123456789abcdef"); err != nil {
		t.Errorf("Revoking an unknown share must not fail: %v", err)
	}
}

func TestResolveReturnsVisibleTaggedBookmarks(t *testing.T) {
	svc := NewService(setupTestDB(t))
	seedUser(svc.db, "u1")

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	svc.db.Create(&models.Bookmark{
		UserKey: "u1", URL: "http://old.com", URLHash: "h1", Title: "old",
		Tags: "golang", CreatedDate: base,
	})
	svc.db.Create(&models.Bookmark{
		UserKey: "u1", URL: "http://new.com", URLHash: "h2", Title: "new",
		Tags: "golang,web", CreatedDate: base.Add(time.Hour),
	})
	svc.db.Create(&models.Bookmark{
		UserKey: "u1", URL: "http://gone.com", URLHash: "h3", Title: "gone",
		Tags: "golang", Status: models.StatusDeleted, CreatedDate: base.Add(2 * time.Hour),
	})
	svc.db.Create(&models.Bookmark{
		UserKey: "u1", URL: "http://other.com", URLHash: "h4", Title: "other",
		Tags: "cooking", CreatedDate: base.Add(3 * time.Hour),
	})

	pt, _, _ := svc.Create("u1", "golang")
	share, bookmarks, err := svc.Resolve(pt.TagKey)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if share.Tag != "golang" {
		t.Errorf("Expected tag golang, got %q", share.Tag)
	}
	if len(bookmarks) != 2 {
		t.Fatalf("Expected 2 bookmarks, got %d", len(bookmarks))
	}
	if bookmarks[0].URLHash != "h2" || bookmarks[1].URLHash != "h1" {
		t.Errorf("Expected newest first ordering, got %v then %v", bookmarks[0].URLHash, bookmarks[1].URLHash)
	}
}

func TestShareEndpoints(t *testing.T) {
	r, db := setupRouter(t)
	seedUser(db, "u1")
	db.Create(&models.Bookmark{
		UserKey: "u1", URL: "http://a.com", URLHash: "h1", Title: "a",
		Tags: "golang", Note: "private note", CreatedDate: time.Now(),
	})

	w := do(t, r, "POST", "/api/v1/u1/tags/golang/public")
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var share ShareResponse
	if err := json.Unmarshal(w.Body.Bytes(), &share); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	// Second POST returns the existing share with 200.
	w = do(t, r, "POST", "/api/v1/u1/tags/golang/public")
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200 for existing share, got %d", w.Code)
	}
	var again ShareResponse
	json.Unmarshal(w.Body.Bytes(), &again)
	if again.TagKey != share.TagKey {
		t.Errorf("Expected the same share key, got %q and %q", share.TagKey, again.TagKey)
	}

	// Anonymous read.
	w = do(t, r, "GET", "/pub/"+share.TagKey)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var resolved struct {
		Tag   string                   `json:"tag"`
		Count int                      `json:"count"`
		Items []PublicBookmarkResponse `json:"items"`
	}
	json.Unmarshal(w.Body.Bytes(), &resolved)
	if resolved.Count != 1 || len(resolved.Items) != 1 {
		t.Fatalf("Expected 1 shared bookmark, got %+v", resolved)
	}
	if resolved.Items[0].Title != "a" {
		t.Errorf("Unexpected shared bookmark: %+v", resolved.Items[0])
	}

	// The public view must not leak the note.
	if strings.Contains(w.Body.String(), "private note") {
		t.Errorf("Public payload must not carry notes")
	}

	w = do(t, r, "DELETE", "/api/v1/u1/tags/golang/public/"+share.TagKey)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	w = do(t, r, "GET", "/pub/"+share.TagKey)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 after revoke, got %d", w.Code)
	}
}

func TestShareEndpointUnknownUser(t *testing.T) {
	r, _ := setupRouter(t)

	w := do(t, r, "POST", "/api/v1/nobody/tags/golang/public")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestResolveUnknownKey(t *testing.T) {
	r, _ := setupRouter(t)

	w := do(t, r, "GET", "/pub/ffffffffffffffffffffffffffffffff")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}
