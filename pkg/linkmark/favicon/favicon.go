// Package favicon resolves and caches a small icon image per bookmark
// domain. Resolution tries the local cache first, then an ordered chain of
// remote providers; everything here can fail (two remote services plus
// local filesystem I/O) and callers treat any failure as non-fatal: the
// bookmark is saved without an icon.
package favicon

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/linkmark/linkmark/pkg/linkmark/urlutil"
)

// ErrNoIcon means every provider in the chain came up empty.
var ErrNoIcon = errors.New("no favicon found")

// Doer is the outbound HTTP client collaborator.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Provider fetches an icon for a domain from one remote service. A
// provider may implement its own internal fallback mode. It returns
// ErrNoIcon when the service has no icon for the domain.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, domain string) (*http.Response, error)
}

// Resolver resolves icons into a cache directory, keyed by
// domain+extension.
type Resolver struct {
	dir       string
	providers []Provider
	log       *zap.Logger
}

// NewResolver creates a Resolver storing icons under dir, trying the
// given providers in order.
func NewResolver(dir string, providers []Provider, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{dir: dir, providers: providers, log: log}
}

// Dir returns the favicon cache directory.
func (r *Resolver) Dir() string { return r.dir }

// Has reports whether the given cache key refers to an icon file that
// exists on disk.
func (r *Resolver) Has(key string) bool {
	if key == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(r.dir, key))
	return err == nil
}

// Remove deletes a cached icon file. Missing files are not an error.
func (r *Resolver) Remove(key string) error {
	err := os.Remove(filepath.Join(r.dir, key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Resolve returns the cache key (domain+extension) of an icon for the
// page's domain, downloading and persisting it when not already cached.
// Once a domain's icon is on disk the operation is idempotent and makes
// no network calls.
func (r *Resolver) Resolve(ctx context.Context, pageURL string) (string, error) {
	domain, err := urlutil.Domain(pageURL)
	if err != nil {
		return "", err
	}

	// Cache check: a previously stored .png or .ico wins outright.
	for _, ext := range []string{".png", ".ico"} {
		if r.Has(domain + ext) {
			return domain + ext, nil
		}
	}

	for _, p := range r.providers {
		resp, err := p.Fetch(ctx, domain)
		if err != nil {
			r.log.Debug("favicon provider failed",
				zap.String("provider", p.Name()),
				zap.String("domain", domain),
				zap.Error(err))
			continue
		}
		key, err := r.store(domain, resp)
		resp.Body.Close()
		if err != nil {
			r.log.Debug("favicon store failed",
				zap.String("provider", p.Name()),
				zap.String("domain", domain),
				zap.Error(err))
			continue
		}
		return key, nil
	}
	return "", ErrNoIcon
}

// store streams the response body to a temp file, unpacks a gzip wrapper
// if the magic bytes say so, and renames the result into place so a
// concurrent reader never observes a half-written icon.
func (r *Resolver) store(domain string, resp *http.Response) (string, error) {
	ext := extensionFor(resp.Header.Get("Content-Type"))
	key := domain + ext

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", err
	}

	tmp := filepath.Join(r.dir, ".tmp-"+uuid.NewString())
	f, err := os.Create(tmp)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", err
	}

	if kind, err := sniffFileType(tmp); err == nil && kind == "gz" {
		if err := gunzipInPlace(tmp); err != nil {
			os.Remove(tmp)
			return "", err
		}
	}

	if err := os.Rename(tmp, filepath.Join(r.dir, key)); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return key, nil
}

// extensionFor chooses the stored file extension from the declared
// content type, defaulting to .png.
func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/x-icon":
		return ".ico"
	default:
		return ".png"
	}
}

var magicTypes = map[string]string{
	"\x1f\x8b\x08":     "gz",
	"\x42\x5a\x68":     "bz2",
	"\x50\x4b\x03\x04": "zip",
}

// longest prefix in magicTypes
var magicLen = func() int {
	n := 0
	for magic := range magicTypes {
		if len(magic) > n {
			n = len(magic)
		}
	}
	return n
}()

// sniffFileType inspects a file's leading magic bytes. bz2 and zip are
// recognized but not unpacked; only gzip gets decompressed.
func sniffFileType(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	head := make([]byte, magicLen)
	n, err := f.Read(head)
	if err != nil && err != io.EOF {
		return "", err
	}
	head = head[:n]
	for magic, kind := range magicTypes {
		if bytes.HasPrefix(head, []byte(magic)) {
			return kind, nil
		}
	}
	return "", nil
}

func gunzipInPlace(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return err
	}
	content, err := io.ReadAll(zr)
	zr.Close()
	f.Close()
	if err != nil {
		return fmt.Errorf("decompressing favicon: %w", err)
	}
	return os.WriteFile(path, content, 0o644)
}
