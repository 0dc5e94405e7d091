package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"eventcraft/internal/cache"
	"eventcraft/internal/config"
	"eventcraft/internal/generation"
	"eventcraft/internal/handlers"
	"eventcraft/internal/imaging"
	"eventcraft/internal/metrics"
	"eventcraft/internal/middleware"
	"eventcraft/internal/moderation"
	"eventcraft/internal/router"
	"eventcraft/internal/storage"
	"eventcraft/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Connect to PostgreSQL, Valkey and object storage, apply migrations and
serve the JSON API until SIGINT or SIGTERM.

Valkey is optional: without it API keys, statistics and provider health
are read fresh on every request.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	slog.Info("configuration loaded", "env", cfg.Env, "addr", cfg.Addr())

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	valkey := connectValkey(cfg)
	if valkey != nil {
		defer valkey.Close()
	}

	imaging.Startup(0)
	defer imaging.Shutdown()

	objects, err := storage.New(cfg.S3Endpoint, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3PublicURL)
	if err != nil {
		return fmt.Errorf("initialize object storage: %w", err)
	}
	if objects != nil {
		slog.Info("object storage connected", "endpoint", cfg.S3Endpoint, "bucket", cfg.S3Bucket)
	} else {
		slog.Warn("object storage not configured, generation requests will fail with 503")
	}

	collector := metrics.NewCollector()

	manager, err := newManager(cfg, collector)
	if err != nil {
		return err
	}

	userStore := store.NewUserStore(db)
	keyStore := store.NewAPIKeyStore(db)
	creditStore := store.NewCreditStore(db)
	genStore := store.NewGenerationStore(db)
	statsStore := store.NewStatsStore(db)

	svc := generation.New(generation.Deps{
		Generations: genStore,
		Balances:    userStore,
		Generator:   manager,
		Objects:     objects,
		Moderator:   moderation.New(cfg.OpenAIKey, cfg.OpenAIBaseURL),
		Recorder:    collector,
	}, generation.Options{
		Cost:          cfg.GenerationCost,
		Images:        storage.ImageOptions{WebP: cfg.WebPEnabled, Quality: cfg.WebPQuality},
		WatermarkText: cfg.WatermarkText,
		MaxParallel:   cfg.CarouselParallel,
	})

	api := handlers.New(handlers.Deps{
		Generations: svc,
		Accounts:    userStore,
		Credits:     creditStore,
		Stats:       statsStore,
		Providers:   manager,
		Valkey:      valkey,
	})

	limiter := middleware.NewRateLimiter(cfg.RateLimit, cfg.RateWindow)
	defer limiter.Stop()

	r := router.New(router.Deps{
		API:     api,
		Keys:    cache.NewKeyCache(valkey, keyStore),
		Limiter: limiter,
		Metrics: collector,
	})

	// WriteTimeout covers a full carousel: several provider calls, each
	// up to a minute, plus uploads.
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	// Give in-flight generations time to finish and be recorded.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	slog.Info("server stopped gracefully")
	return nil
}

// connectValkey returns nil when Valkey is unreachable so the API can
// still serve without caches.
func connectValkey(cfg *config.Config) *redis.Client {
	client, err := cache.ConnectValkey(cfg.ValkeyHost, cfg.ValkeyPort, cfg.ValkeyPassword)
	if err != nil {
		slog.Warn("valkey unavailable, caching disabled", "error", err)
		return nil
	}
	return client
}
