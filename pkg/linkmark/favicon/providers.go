package favicon

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// userAgent matches the enrichment fetcher's identity.
const userAgent = "linkmark/1.0"

// GeneratorProvider talks to a favicon generator API that renders icons
// per platform. It asks for the android_chrome variant first and falls
// back to the desktop variant when the service reports its 404 "no such
// icon" convention.
type GeneratorProvider struct {
	Client   Doer
	Endpoint string // e.g. https://favicongenerator.example/favicon/icon
	APIKey   string // sent as X-API-Key when set
}

func (p *GeneratorProvider) Name() string { return "generator" }

func (p *GeneratorProvider) Fetch(ctx context.Context, domain string) (*http.Response, error) {
	resp, err := p.fetchPlatform(ctx, domain, "android_chrome")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		resp, err = p.fetchPlatform(ctx, domain, "desktop")
		if err != nil {
			return nil, err
		}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("generator: status %d for %s", resp.StatusCode, domain)
	}
	if resp.Header.Get("Content-Length") == "0" {
		// An empty 200 body means the service found nothing to render.
		resp.Body.Close()
		return nil, ErrNoIcon
	}
	return resp, nil
}

func (p *GeneratorProvider) fetchPlatform(ctx context.Context, domain, platform string) (*http.Response, error) {
	u := fmt.Sprintf("%s?platform=%s&site=%s", p.Endpoint, platform, url.QueryEscape(domain))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	if p.APIKey != "" {
		req.Header.Set("X-API-Key", p.APIKey)
	}
	return p.Client.Do(req)
}

// IconServiceProvider talks to a plain icon lookup service that takes the
// domain as a query parameter and answers with the image directly.
type IconServiceProvider struct {
	Client   Doer
	Endpoint string // e.g. https://icons.example/icon
	Size     int
}

func (p *IconServiceProvider) Name() string { return "iconservice" }

func (p *IconServiceProvider) Fetch(ctx context.Context, domain string) (*http.Response, error) {
	size := p.Size
	if size <= 0 {
		size = 60
	}
	u := fmt.Sprintf("%s?size=%d&url=%s", p.Endpoint, size, url.QueryEscape(domain))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, ErrNoIcon
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("iconservice: status %d for %s", resp.StatusCode, domain)
	}
	return resp, nil
}
