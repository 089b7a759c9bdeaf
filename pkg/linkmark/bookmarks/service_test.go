package bookmarks

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/linkmark/linkmark/pkg/linkmark/models"
	"github.com/linkmark/linkmark/pkg/linkmark/urlutil"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	models.AutoMigrate(db)
	return db
}

type fakeEnricher struct {
	title      string
	getStatus  int
	headStatus int
	gets       int
	heads      int
	onCheck    func()
}

func (f *fakeEnricher) FetchTitleAndStatus(ctx context.Context, url string) (string, int) {
	f.gets++
	if f.onCheck != nil {
		f.onCheck()
	}
	return f.title, f.getStatus
}

func (f *fakeEnricher) CheckStatus(ctx context.Context, url string) int {
	f.heads++
	if f.onCheck != nil {
		f.onCheck()
	}
	return f.headStatus
}

type fakeIcons struct {
	key   string
	err   error
	calls int
}

func (f *fakeIcons) Resolve(ctx context.Context, pageURL string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.key, f.err
}

func setupService(t *testing.T) (*Service, *fakeEnricher, *fakeIcons) {
	db := setupTestDB(t)
	enricher := &fakeEnricher{title: "Fetched Title", getStatus: 200, headStatus: 200}
	icons := &fakeIcons{key: "example.com.png"}
	svc := NewService(db, enricher, icons, NewTagCache(), nil)
	return svc, enricher, icons
}

func TestCreateEnrichesUntitledBookmark(t *testing.T) {
	svc, enricher, icons := setupService(t)

	b, err := svc.Create(context.Background(), "u1", Input{
		URL:  "http://example.com/page",
		Tags: "b, a, a, , b",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if enricher.gets != 1 || enricher.heads != 0 {
		t.Errorf("Expected a full title fetch, got gets=%d heads=%d", enricher.gets, enricher.heads)
	}
	if b.Title != "Fetched Title" {
		t.Errorf("Expected fetched title, got %q", b.Title)
	}
	if b.HTTPStatus != 200 {
		t.Errorf("Expected status 200, got %d", b.HTTPStatus)
	}
	if b.Tags != "a,b" {
		t.Errorf("Expected canonical tags \"a,b\", got %q", b.Tags)
	}
	if b.URLHash != urlutil.Hash("http://example.com/page") {
		t.Errorf("Hash not computed from stored url")
	}
	if icons.calls != 1 || b.Favicon == nil || *b.Favicon != "example.com.png" {
		t.Errorf("Expected favicon to be resolved, got %v (calls=%d)", b.Favicon, icons.calls)
	}
	if b.ModifiedDate != nil {
		t.Errorf("ModifiedDate must be nil on creation")
	}
}

func TestCreateWithSuppliedTitleUsesHeadCheck(t *testing.T) {
	svc, enricher, _ := setupService(t)

	b, err := svc.Create(context.Background(), "u1", Input{
		URL:   "http://example.com",
		Title: "My Title",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if enricher.gets != 0 || enricher.heads != 1 {
		t.Errorf("Expected only a HEAD check, got gets=%d heads=%d", enricher.gets, enricher.heads)
	}
	if b.Title != "My Title" {
		t.Errorf("Supplied title must be kept, got %q", b.Title)
	}
}

func TestCreateMissingURL(t *testing.T) {
	svc, _, _ := setupService(t)

	_, err := svc.Create(context.Background(), "u1", Input{Title: "no url"})
	if !errors.Is(err, ErrMissingURL) {
		t.Errorf("Expected ErrMissingURL, got %v", err)
	}
}

func TestCreateConflictOnExistingURL(t *testing.T) {
	svc, _, _ := setupService(t)

	first, err := svc.Create(context.Background(), "u1", Input{URL: "http://x.com"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	existing, err := svc.Create(context.Background(), "u1", Input{URL: "http://x.com", Note: "other"})
	if !errors.Is(err, ErrBookmarkExists) {
		t.Fatalf("Expected ErrBookmarkExists, got %v", err)
	}
	if existing.ID != first.ID {
		t.Errorf("Conflict must return the existing row")
	}
	if existing.Note == "other" {
		t.Errorf("Conflict must not overwrite the existing row")
	}

	var count int64
	svc.db.Model(&models.Bookmark{}).Where("user_key = ?", "u1").Count(&count)
	if count != 1 {
		t.Errorf("Expected 1 row, got %d", count)
	}

	// A different user may bookmark the same URL.
	if _, err := svc.Create(context.Background(), "u2", Input{URL: "http://x.com"}); err != nil {
		t.Errorf("Other user's create failed: %v", err)
	}
}

func TestCreateConflictIncludesDeletedRows(t *testing.T) {
	svc, _, _ := setupService(t)

	b, err := svc.Create(context.Background(), "u1", Input{URL: "http://x.com"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := svc.SoftDelete("u1", b.URLHash); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}

	_, err = svc.Create(context.Background(), "u1", Input{URL: "http://x.com"})
	if !errors.Is(err, ErrBookmarkExists) {
		t.Errorf("Deleted rows must still cause a conflict, got %v", err)
	}
}

func TestCreateSurvivesConnectionError(t *testing.T) {
	svc, enricher, icons := setupService(t)
	enricher.title = ""
	enricher.getStatus = models.HTTPConnectionError

	b, err := svc.Create(context.Background(), "u1", Input{URL: "http://unreachable.example"})
	if err != nil {
		t.Fatalf("Create must not fail on network errors, got %v", err)
	}
	if b.HTTPStatus != models.HTTPConnectionError {
		t.Errorf("Expected connection-error sentinel 0, got %d", b.HTTPStatus)
	}

	// The sentinel must survive the insert; a column default would
	// silently replace the zero value.
	var persisted models.Bookmark
	if err := svc.db.Where("id = ?", b.ID).First(&persisted).Error; err != nil {
		t.Fatalf("Failed to re-read bookmark: %v", err)
	}
	if persisted.HTTPStatus != models.HTTPConnectionError {
		t.Errorf("Persisted http_status = %d, want the sentinel 0", persisted.HTTPStatus)
	}
	if !persisted.Broken() {
		t.Errorf("Unreachable bookmark must count as broken")
	}
	if b.Title != "" {
		t.Errorf("Expected empty title, got %q", b.Title)
	}
	if icons.calls != 0 {
		t.Errorf("Favicon must not be resolved for unreachable pages")
	}
	if b.Favicon != nil {
		t.Errorf("Expected nil favicon, got %v", *b.Favicon)
	}
}

func TestCreateStripParams(t *testing.T) {
	svc, _, _ := setupService(t)

	b, err := svc.Create(context.Background(), "u1", Input{
		URL:         "http://x.com/p?utm_source=feed&b=2#frag",
		StripParams: true,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if b.URL != "http://x.com/p#frag" {
		t.Errorf("Expected stripped url, got %q", b.URL)
	}
	if b.URLHash != urlutil.Hash("http://x.com/p#frag") {
		t.Errorf("Hash must be computed over the stored (stripped) url")
	}
}

func TestCreateFaviconFailureIsNonFatal(t *testing.T) {
	svc, _, icons := setupService(t)
	icons.err = errors.New("provider down")

	b, err := svc.Create(context.Background(), "u1", Input{URL: "http://x.com"})
	if err != nil {
		t.Fatalf("Create must swallow favicon failures, got %v", err)
	}
	if b.Favicon != nil {
		t.Errorf("Expected no favicon, got %v", *b.Favicon)
	}
}

func TestUpdateStampsModifiedAndRecomputesHash(t *testing.T) {
	svc, _, _ := setupService(t)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time { return fixed }

	b, err := svc.Create(context.Background(), "u1", Input{URL: "http://x.com", Title: "t"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	updated, err := svc.Update(context.Background(), "u1", b.URLHash, Input{
		URL:   "http://x.com/new",
		Title: "t2",
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.URLHash != urlutil.Hash("http://x.com/new") {
		t.Errorf("Hash must be recomputed from the new url")
	}
	if updated.ModifiedDate == nil || !updated.ModifiedDate.Equal(fixed) {
		t.Errorf("Expected ModifiedDate %v, got %v", fixed, updated.ModifiedDate)
	}
	if updated.Version != b.Version+1 {
		t.Errorf("Expected version bump to %d, got %d", b.Version+1, updated.Version)
	}

	// The old hash no longer resolves.
	if _, err := svc.Get("u1", b.URLHash); !errors.Is(err, ErrNotFound) {
		t.Errorf("Stale hash must not resolve, got %v", err)
	}
}

func TestUpdateUnknownHash(t *testing.T) {
	svc, _, _ := setupService(t)

	_, err := svc.Update(context.Background(), "u1", "deadbeef", Input{URL: "http://x.com"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestUpdateDetectsConcurrentEdit(t *testing.T) {
	svc, enricher, _ := setupService(t)

	b, err := svc.Create(context.Background(), "u1", Input{URL: "http://x.com", Title: "t"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Another writer bumps the version while this edit's enrichment call
	// is in flight.
	enricher.onCheck = func() {
		svc.db.Model(&models.Bookmark{}).Where("id = ?", b.ID).
			Update("version", gorm.Expr("version + 1"))
		enricher.onCheck = nil
	}

	_, err = svc.Update(context.Background(), "u1", b.URLHash, Input{URL: "http://x.com", Title: "t3"})
	if !errors.Is(err, ErrStaleBookmark) {
		t.Errorf("Expected ErrStaleBookmark, got %v", err)
	}
}

func TestSoftDeleteAndRestore(t *testing.T) {
	svc, _, _ := setupService(t)

	b, err := svc.Create(context.Background(), "u1", Input{URL: "http://x.com", Title: "t", Tags: "news"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := svc.SoftDelete("u1", b.URLHash); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}
	deleted, err := svc.Get("u1", b.URLHash)
	if err != nil {
		t.Fatalf("Deleted bookmark must still be readable: %v", err)
	}
	if deleted.Status != models.StatusDeleted || deleted.DeletedDate == nil {
		t.Errorf("Expected deleted status with DeletedDate set")
	}

	// Deleting again is not an error.
	if err := svc.SoftDelete("u1", b.URLHash); err != nil {
		t.Errorf("Repeated delete must be idempotent: %v", err)
	}

	if err := svc.Restore("u1", b.URLHash); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	restored, err := svc.Get("u1", b.URLHash)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if restored.Status != models.StatusVisible || restored.DeletedDate != nil {
		t.Errorf("Expected visible status with DeletedDate cleared")
	}
	if restored.Title != "t" || restored.URL != "http://x.com" || restored.Tags != "news" {
		t.Errorf("Restore must leave other fields unchanged")
	}
}

func TestListFilters(t *testing.T) {
	svc, enricher, _ := setupService(t)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	step := 0
	svc.Now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Hour)
	}

	mk := func(in Input) *models.Bookmark {
		t.Helper()
		b, err := svc.Create(context.Background(), "u1", in)
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		return b
	}

	mk(Input{URL: "http://a.com", Title: "alpha site", Tags: "go"})
	starred := mk(Input{URL: "http://b.com", Title: "beta", Starred: true})
	noted := mk(Input{URL: "http://c.com", Title: "gamma", Note: "read later"})
	enricher.headStatus = 500
	broken := mk(Input{URL: "http://d.com", Title: "delta"})
	enricher.headStatus = 200
	gone := mk(Input{URL: "http://e.com", Title: "epsilon"})
	svc.SoftDelete("u1", gone.URLHash)

	all, err := svc.List("u1", ListOptions{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("Expected 4 visible bookmarks, got %d", len(all))
	}
	if all[0].URLHash != broken.URLHash {
		t.Errorf("Expected newest first ordering")
	}

	got, _ := svc.List("u1", ListOptions{Starred: true})
	if len(got) != 1 || got[0].URLHash != starred.URLHash {
		t.Errorf("Starred filter failed: %v", got)
	}

	got, _ = svc.List("u1", ListOptions{Broken: true})
	if len(got) != 1 || got[0].URLHash != broken.URLHash {
		t.Errorf("Broken filter failed: %v", got)
	}

	got, _ = svc.List("u1", ListOptions{Noted: true})
	if len(got) != 1 || got[0].URLHash != noted.URLHash {
		t.Errorf("Note filter failed: %v", got)
	}

	got, _ = svc.List("u1", ListOptions{Text: "alpha"})
	if len(got) != 1 || got[0].Title != "alpha site" {
		t.Errorf("Text filter failed: %v", got)
	}

	got, _ = svc.List("u1", ListOptions{Tag: "go"})
	if len(got) != 1 || got[0].Tags != "go" {
		t.Errorf("Tag filter failed: %v", got)
	}
}

func TestTagsForUserFollowsWrites(t *testing.T) {
	svc, _, _ := setupService(t)

	b1, _ := svc.Create(context.Background(), "u1", Input{URL: "http://a.com", Title: "a", Tags: "news, go"})
	svc.Create(context.Background(), "u1", Input{URL: "http://b.com", Title: "b", Tags: "go, zsh"})

	tags, err := svc.TagsForUser("u1")
	if err != nil {
		t.Fatalf("TagsForUser failed: %v", err)
	}
	want := []string{"go", "news", "zsh"}
	if len(tags) != len(want) {
		t.Fatalf("Expected %v, got %v", want, tags)
	}
	for i := range want {
		if tags[i] != want[i] {
			t.Fatalf("Expected %v, got %v", want, tags)
		}
	}

	// Deleting the only "news" bookmark drops the tag from the vocabulary.
	svc.SoftDelete("u1", b1.URLHash)
	tags, _ = svc.TagsForUser("u1")
	for _, tag := range tags {
		if tag == "news" {
			t.Errorf("Tag of a deleted bookmark must leave the vocabulary")
		}
	}

	// And restoring brings it back.
	svc.Restore("u1", b1.URLHash)
	tags, _ = svc.TagsForUser("u1")
	found := false
	for _, tag := range tags {
		if tag == "news" {
			found = true
		}
	}
	if !found {
		t.Errorf("Restored bookmark's tags must reappear, got %v", tags)
	}
}
