// Package config loads runtime settings from the environment with
// development defaults.
package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds runtime settings for the linkmark server.
//
// Fields:
//   - ListenAddr: bind address for the HTTP server.
//   - DBPath: SQLite database path.
//   - SystemKey: key gating the admin endpoints (user creation, favicon
//     maintenance). Endpoints respond 404 on any other key.
//   - FaviconDir: directory holding the favicon cache.
//   - IconGeneratorURL / IconServiceURL: endpoints of the remote icon
//     providers, tried in that order.
//   - IconAPIKey: optional API key for the icon generator provider.
//   - HTTPTimeout: per-call timeout for outbound enrichment requests.
//   - LogLevel / PrettyLog: zap level and encoder selection.
type Config struct {
	ListenAddr       string
	DBPath           string
	SystemKey        string
	FaviconDir       string
	IconGeneratorURL string
	IconServiceURL   string
	IconAPIKey       string
	HTTPTimeout      time.Duration
	LogLevel         string
	PrettyLog        bool
}

// Load builds a Config from environment variables, falling back to
// development defaults. The system key has no default: without it the
// admin endpoints stay unreachable.
func Load() *Config {
	return &Config{
		ListenAddr:       getenv("LINKMARK_LISTEN_ADDR", ":8080"),
		DBPath:           getenv("LINKMARK_DB_PATH", "linkmark.db"),
		SystemKey:        os.Getenv("LINKMARK_SYSTEM_KEY"),
		FaviconDir:       getenv("LINKMARK_FAVICON_DIR", "favicons"),
		IconGeneratorURL: getenv("LINKMARK_ICON_GENERATOR_URL", "https://realfavicongenerator.p.rapidapi.com/favicon/icon"),
		IconServiceURL:   getenv("LINKMARK_ICON_SERVICE_URL", "https://besticon-demo.herokuapp.com/icon"),
		IconAPIKey:       os.Getenv("LINKMARK_ICON_API_KEY"),
		HTTPTimeout:      mustDuration("LINKMARK_HTTP_TIMEOUT", 15*time.Second),
		LogLevel:         getenv("LINKMARK_LOG_LEVEL", "info"),
		PrettyLog:        mustBool("LINKMARK_PRETTY_LOG", false),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func mustDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("invalid duration for %s: %q", key, v)
	}
	return d
}

func mustBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Fatalf("invalid bool for %s: %q", key, v)
	}
	return b
}
