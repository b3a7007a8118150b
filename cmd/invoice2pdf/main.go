package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"invoice2pdf/internal/config"
	"invoice2pdf/internal/http/handlers"
	"invoice2pdf/internal/http/server"
	"invoice2pdf/internal/infra/cache"
	"invoice2pdf/internal/infra/chrome"
	"invoice2pdf/internal/infra/errtrack"
	u "invoice2pdf/internal/infra/logging"
	"invoice2pdf/internal/infra/postgres"
	"invoice2pdf/internal/infra/ratelimit"
	"invoice2pdf/internal/invoice"
)

func main() {
	cfg := config.Load()
	u.InitLogger(
		cfg.Logger.File,
		cfg.Logger.MaxSizeMB,
		cfg.Logger.MaxBackups,
		cfg.Logger.MaxAgeDays,
		cfg.Logger.Compress,
		cfg.Logger.Level,
	)
	u.SetLogLevel(cfg.Logger.Level)
	u.Info("Starting invoice service",
		"development", cfg.Runtime.Development,
		"serverless", cfg.Runtime.Serverless,
		"addr", cfg.Server.Host+cfg.Server.Port,
	)

	reporter, err := errtrack.New(cfg)
	if err != nil {
		u.Error("Error tracking disabled", "error", err)
		reporter = errtrack.Nop{}
	}
	defer reporter.Flush(2 * time.Second)

	var pdfCache handlers.PDFCache
	if cfg.Cache.PDFCacheEnabled {
		rdb := redis.NewClient(&redis.Options{
			Addr: cfg.Cache.RedisHost,
			DB:   cfg.Cache.PDFCacheDB,
		})
		defer rdb.Close()
		pdfCache = cache.New(rdb, cfg.Cache.PDFCacheTTL)
		u.Info("PDF cache enabled", "addr", cfg.Cache.RedisHost, "db", cfg.Cache.PDFCacheDB, "ttl", cfg.Cache.PDFCacheTTL.String())
	}

	var journal handlers.Journal
	if cfg.Journal.Postgres.Enabled() {
		j, err := postgres.Open(cfg.Journal.Postgres)
		if err != nil {
			u.Error("Conversion journal unavailable", "error", err)
		} else {
			defer j.Close()
			journal = j
		}
	}

	var rateStore fiber.Storage
	if cfg.RateLimiter.UserLimit > 0 {
		rateStore = ratelimit.NewStore(ratelimit.RedisConfig{
			Addr: cfg.Cache.RedisHost,
			DB:   cfg.Cache.RateLimitDB,
		})
	}

	renderer, err := invoice.NewRenderer(cfg.Render.LogoBaseURL)
	if err != nil {
		u.Error("Invoice template unavailable", "error", err)
		os.Exit(1)
	}

	converter := chrome.NewConverter(cfg, chrome.NewResolver(cfg))

	app := server.New(server.Deps{
		Config:    cfg,
		Converter: converter,
		Renderer:  renderer,
		Cache:     pdfCache,
		Journal:   journal,
		Reporter:  reporter,
		RateStore: rateStore,
	})

	idleConnsClosed := make(chan struct{})
	startServer(app, cfg, idleConnsClosed)
	<-idleConnsClosed
}

// startServer starts the Fiber app and listens for shutdown signals
func startServer(app *fiber.App, cfg config.Config, idleConnsClosed chan struct{}) {
	go func() {
		if err := app.Listen(cfg.Server.Host + cfg.Server.Port); err != nil {
			u.Error("Server error", "error", err)
		}
	}()

	// Listen for OS termination signals
	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigint)
	<-sigint

	u.Warn("Shutdown signal received, closing server...")

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		u.Error("Server forced to shutdown", "error", err)
	}

	close(idleConnsClosed)
	u.Info("Server stopped cleanly")
}
