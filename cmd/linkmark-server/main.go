package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/linkmark/linkmark/pkg/linkmark/admin"
	"github.com/linkmark/linkmark/pkg/linkmark/bookmarks"
	"github.com/linkmark/linkmark/pkg/linkmark/config"
	"github.com/linkmark/linkmark/pkg/linkmark/database"
	"github.com/linkmark/linkmark/pkg/linkmark/enrich"
	"github.com/linkmark/linkmark/pkg/linkmark/favicon"
	"github.com/linkmark/linkmark/pkg/linkmark/logger"
	"github.com/linkmark/linkmark/pkg/linkmark/models"
	"github.com/linkmark/linkmark/pkg/linkmark/publictags"
)

// @title linkmark API
// @version 1.0
// @description A personal bookmark manager: URLs stored under opaque user keys, enriched with titles, reachability and favicons, shareable per tag.

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

func main() {
	cfg := config.Load()

	log := logger.New(cfg.LogLevel, cfg.PrettyLog)
	defer log.Sync()

	// Connect to database
	if err := database.Connect(cfg.DBPath); err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	db := database.GetDB()

	// Run auto-migrations
	if err := models.AutoMigrate(db); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}
	log.Info("database migrations completed")

	// Enrichment pipeline collaborators
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	enricher := enrich.New(httpClient, cfg.HTTPTimeout, log.Named("enrich"))
	icons := favicon.NewResolver(cfg.FaviconDir, []favicon.Provider{
		&favicon.GeneratorProvider{
			Client:   httpClient,
			Endpoint: cfg.IconGeneratorURL,
			APIKey:   cfg.IconAPIKey,
		},
		&favicon.IconServiceProvider{
			Client:   httpClient,
			Endpoint: cfg.IconServiceURL,
		},
	}, log.Named("favicon"))

	// Warm the per-user tag cache from persisted data
	tagCache := bookmarks.NewTagCache()
	if err := tagCache.Warm(db); err != nil {
		log.Fatal("failed to warm tag cache", zap.Error(err))
	}

	svc := bookmarks.NewService(db, enricher, icons, tagCache, log.Named("bookmarks"))

	if cfg.SystemKey == "" {
		log.Warn("LINKMARK_SYSTEM_KEY not set - admin endpoints disabled")
	}

	// Set up Gin router
	r := gin.Default()

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	// API routes
	api := r.Group("/api/v1")
	{
		bookmarksHandler := bookmarks.NewHandler(svc)
		bookmarksHandler.RegisterRoutes(api)

		shareHandler := publictags.NewHandler(publictags.NewService(db))
		shareHandler.RegisterRoutes(api)
		shareHandler.RegisterPublicRoutes(r)

		bookmarksHandler.RegisterRedirectRoutes(r)
	}

	// Admin routes (system-key gated)
	adminHandler := admin.NewHandler(db, cfg.SystemKey, icons, tagCache, log.Named("admin"))
	adminHandler.RegisterRoutes(r)

	log.Info("starting linkmark server", zap.String("addr", cfg.ListenAddr))
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatal("failed to start server", zap.Error(err))
	}
}
