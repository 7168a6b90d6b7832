// Command feedcored runs the feed cache service: a SQLite-backed pagination
// cache for remote feeds, a category list cache, and a disk cache for media
// files, exposed over an HTTP API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"

	"github.com/gfycat/feedcore/internal/api"
	"github.com/gfycat/feedcore/internal/categories"
	"github.com/gfycat/feedcore/internal/config"
	"github.com/gfycat/feedcore/internal/diskcache"
	"github.com/gfycat/feedcore/internal/events"
	httpapi "github.com/gfycat/feedcore/internal/http"
	"github.com/gfycat/feedcore/internal/kv"
	"github.com/gfycat/feedcore/internal/observability"
	"github.com/gfycat/feedcore/internal/repo"
	"github.com/gfycat/feedcore/internal/services"
	"github.com/gfycat/feedcore/internal/sysutil"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	logger := log.With().Str("service", "feedcored").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		logger.Fatal().Err(err).Msg("setting up tracing")
	}
	defer func() {
		if err := shutdownOTel(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("shutting down tracing")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath, cfg.OTEL.Enabled)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.DBPath).Msg("opening feed store")
	}
	if err := repo.AutoMigrate(db); err != nil {
		logger.Fatal().Err(err).Msg("migrating feed store schema")
	}

	store, err := kv.Open(cfg.KVDir)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.KVDir).Msg("opening kv store")
	}
	defer store.Close()

	mediaCache, err := diskcache.New(cfg.CacheDir, int64(cfg.CacheMaxMB)<<20, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.CacheDir).Msg("opening media cache")
	}

	client := api.NewClient(api.Options{
		BaseURL:           cfg.APIBaseURL,
		RequestsPerSecond: cfg.APIRPS,
		Burst:             cfg.APIBurst,
		Timeout:           cfg.APITimeout,
	}, logger)

	locale, err := language.Parse(cfg.Locale)
	if err != nil {
		logger.Warn().Str("locale", cfg.Locale).Msg("unparseable locale, using und")
		locale = language.Und
	}

	bus := events.NewBus()
	feedSvc := services.NewFeedService(db, client, bus, services.FeedConfig{
		PageSize:    cfg.PageSize,
		NewPageSize: cfg.NewPageSize,
		RecentLimit: cfg.RecentLimit,
		FreshWindow: cfg.FreshWindow,
	}, logger)
	catSvc := services.NewCategoriesService(
		categories.New(store, cfg.CategoriesTTL, logger), client, locale, logger)
	mediaSvc := services.NewMediaService(mediaCache, client, logger)

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Services{
		Feeds:      feedSvc,
		Categories: catSvc,
		Media:      mediaSvc,
		Moderation: feedSvc,
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Str("version", version).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}
