// Package enrich determines reachability and scrapes page titles for
// candidate bookmark URLs. All network flakiness is absorbed here: the
// fetchers report a status (0 meaning "could not connect") and degrade to
// an empty title, they never fail the surrounding save.
package enrich

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/linkmark/linkmark/pkg/linkmark/models"
)

// UserAgent identifies linkmark on outbound requests.
const UserAgent = "linkmark/1.0"

// DefaultTimeout bounds each outbound call when the caller's context has
// no earlier deadline.
const DefaultTimeout = 15 * time.Second

// Doer is the outbound HTTP client collaborator. *http.Client satisfies
// it; transport failures must surface as errors, not fabricated statuses,
// so the enricher can apply its own sentinel policy.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Enricher fetches titles and reachability statuses.
type Enricher struct {
	client  Doer
	timeout time.Duration
	log     *zap.Logger
}

// New creates an Enricher using the given HTTP client.
func New(client Doer, timeout time.Duration, log *zap.Logger) *Enricher {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Enricher{client: client, timeout: timeout, log: log}
}

// FetchTitleAndStatus issues a GET for the URL and returns the page title
// and observed HTTP status. On any transport-level failure (DNS, refused
// connection, timeout, scheme rejected by the transport) the status is the
// connection-error sentinel 0 and the title is empty. A reachable page
// without a usable <title> also yields "", which is not an error.
func (e *Enricher) FetchTitleAndStatus(ctx context.Context, url string) (string, int) {
	resp, err := e.request(ctx, http.MethodGet, url)
	if err != nil {
		e.log.Debug("title fetch failed", zap.String("url", url), zap.Error(err))
		return "", models.HTTPConnectionError
	}
	defer resp.Body.Close()

	if resp.StatusCode != models.HTTPOK && resp.StatusCode != models.HTTPAccepted {
		return "", resp.StatusCode
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		e.log.Debug("title parse failed", zap.String("url", url), zap.Error(err))
		return "", resp.StatusCode
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	return title, resp.StatusCode
}

// CheckStatus issues a HEAD for the URL, used when the caller already has
// a title and a full GET would be wasted. Transport failure reports the
// connection-error sentinel, kept distinct from a real 404 the host
// actively returned.
func (e *Enricher) CheckStatus(ctx context.Context, url string) int {
	resp, err := e.request(ctx, http.MethodHead, url)
	if err != nil {
		e.log.Debug("status check failed", zap.String("url", url), zap.Error(err))
		return models.HTTPConnectionError
	}
	resp.Body.Close()
	return resp.StatusCode
}

func (e *Enricher) request(ctx context.Context, method, url string) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("User-Agent", UserAgent)
	resp, err := e.client.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	// the context must outlive the body read; release it on Close
	resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	b.cancel()
	return b.ReadCloser.Close()
}
