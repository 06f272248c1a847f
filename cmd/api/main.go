package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/seedset/internal/adapters/rest"
	"github.com/ewilliams-labs/seedset/internal/adapters/spotify"
	"github.com/ewilliams-labs/seedset/internal/adapters/sqlite"
	"github.com/ewilliams-labs/seedset/internal/config"
	"github.com/ewilliams-labs/seedset/internal/core/domain"
	"github.com/ewilliams-labs/seedset/internal/core/services"
	"github.com/ewilliams-labs/seedset/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (default: ./config.yaml if present)")
	flag.Parse()

	// 1. Configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	defer logger.Sync()

	// 2. Driven adapters
	storagePath := cfg.Storage.Path
	if cfg.Storage.Driver == "memory" {
		storagePath = ":memory:"
	}
	repo, err := sqlite.NewAdapter(storagePath)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	defer repo.Close()

	catalog := spotify.NewClient(spotify.Config{
		BaseURL:            cfg.Spotify.BaseURL,
		ProbePlaylistID:    cfg.Spotify.ProbePlaylistID,
		Timeout:            cfg.Spotify.Timeout,
		MaxRetries:         cfg.Spotify.MaxRetries,
		RetryBackoff:       cfg.Spotify.RetryBackoff(),
		RetryMaxBackoff:    cfg.Spotify.RetryMaxBackoff,
		RateLimit:          cfg.Spotify.RateLimit,
		RateBurst:          cfg.Spotify.RateBurst,
		FeatureBatchSize:   cfg.Spotify.FeatureBatchSize,
		FeatureConcurrency: cfg.Spotify.FeatureConcurrency,
	}, logger)
	auth := spotify.NewAuthenticator(spotify.AuthConfig{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		TokenURL:     cfg.Spotify.TokenURL,
		Timeout:      cfg.Spotify.Timeout,
	}, logger)

	// 3. Core services
	tokens := services.NewTokenManager(catalog, auth, logger)
	sess := services.NewSession(tokens, logger)
	svc := services.NewOrchestrator(catalog, repo, services.Options{
		TargetSize: cfg.Dataset.TargetSize,
		Policy: domain.SeedPolicy{
			Main:       cfg.Dataset.MainSeeds,
			Additional: cfg.Dataset.AdditionalSeeds,
		},
		DefaultCount: cfg.Dataset.RecommendationCount,
	}, logger)

	// 4. Driving adapter
	handler := rest.NewHandler(svc, sess, logger)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("seedset API listening", zap.String("addr", cfg.Server.Addr), zap.String("storage", cfg.Storage.Driver))
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serverErr:
		if err != nil {
			logger.Fatal("server failed", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", zap.Error(err))
		}
	}
}
