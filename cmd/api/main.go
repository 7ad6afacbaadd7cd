package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/signwave/backend/internal/app"
	"github.com/signwave/backend/internal/config"
	"github.com/signwave/backend/internal/handler"
	"github.com/signwave/backend/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fallback := logging.New(logging.Config{})
		fallback.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := logging.New(logging.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	if envErr != nil {
		logger.Warn().Err(envErr).Msg("failed to load .env file, continuing with system environment variables only")
	}

	services, err := app.New(cfg, logger, nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize services")
	}
	defer func() {
		if err := services.Close(); err != nil {
			logger.Error().Err(err).Msg("shutdown error")
		}
	}()

	router := handler.NewRouter(handler.Deps{
		Logger:    logger,
		Table:     services.Table,
		Presenter: services.Presenter,
		Flows:     services.Flows,
		Calls:     services.Calls,
		History:   services.History,
	})

	if err := startServer(ctx, logger, cfg.Server, router); err != nil {
		logger.Error().Err(err).Msg("server error")
	}
}

func startServer(ctx context.Context, logger zerolog.Logger, serverCfg config.ServerConfig, router http.Handler) error {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info().Str("addr", addr).Str("public_url", serverCfg.PublicBaseURL).Msg("SignWave backend listening")
	return runServer(ctx, srv)
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
