package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ihainan/scholar-data-proxy/pkg/aminer"
	"github.com/ihainan/scholar-data-proxy/pkg/cache"
	"github.com/ihainan/scholar-data-proxy/pkg/config"
	"github.com/ihainan/scholar-data-proxy/pkg/logging"
	"github.com/ihainan/scholar-data-proxy/pkg/prefetch"
	"github.com/ihainan/scholar-data-proxy/pkg/resolver"
	"github.com/ihainan/scholar-data-proxy/pkg/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Setup(logging.DefaultConfig())
		fallback := logging.NewLogger("main")
		fallback.Fatal().Err(err).Msg("configuration error")
	}

	logger := logging.Setup(logging.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})

	store, err := cache.New(cfg.CacheDir)
	if err != nil {
		logger.Fatal().Err(err).Str("cache_dir", cfg.CacheDir).Msg("cache store init failed")
	}

	client := aminer.New(cfg.Upstream)
	details := resolver.NewDetail(store, client, cfg.DetailTTL)
	avatars := resolver.NewAvatar(store, client, cfg.AvatarTTL, cfg.AvatarNegativeTTL, cfg.PlaceholderSize)
	emails := resolver.NewEmail(store, details, client, cfg.EmailTTL, cfg.EmailNegativeTTL)
	warmer := prefetch.NewWarmer(details, cfg.Warm)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      server.New(store, details, avatars, emails, warmer, cfg.CORSOrigins).Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // scrape-backed avatar discovery can run long
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info().
			Str("addr", cfg.Addr()).
			Str("cache_dir", cfg.CacheDir).
			Str("provider", cfg.Upstream.BaseURL).
			Msg("scholar data proxy listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info().Str("signal", sig.String()).Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("shutdown complete")
}
