package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"finitefield.org/kmart-web/internal/auth"
	"finitefield.org/kmart-web/internal/backend"
	"finitefield.org/kmart-web/internal/config"
	"finitefield.org/kmart-web/internal/httpserver"
	"finitefield.org/kmart-web/internal/observability"
	"finitefield.org/kmart-web/internal/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "kmart-web: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	sessions, err := session.NewManager(sessionConfig(cfg))
	if err != nil {
		return fmt.Errorf("init sessions: %w", err)
	}
	if cfg.Session.HashKey == "" || cfg.Session.BlockKey == "" {
		logger.Warn("session keys not pinned; sessions will not survive a restart",
			zap.Bool("hash_key_set", cfg.Session.HashKey != ""),
			zap.Bool("block_key_set", cfg.Session.BlockKey != ""),
		)
	}

	client := backend.NewClient(cfg.Backend.BaseURL, backend.WithTimeout(cfg.Backend.Timeout))
	guard := auth.NewGuard(client, client, auth.WithClearRejected(cfg.Auth.ClearRejectedToken))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := httpserver.New(httpserver.Config{
		Address:          cfg.Server.Addr,
		Logger:           logger,
		Backend:          client,
		Guard:            guard,
		Sessions:         sessions,
		CSRFCookieSecure: cfg.IsProd(),
		BaseContext:      ctx,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	logger.Info("storefront listening",
		zap.String("addr", cfg.Server.Addr),
		zap.String("backend", client.BaseURL()),
		zap.String("env", cfg.Server.Env),
	)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("storefront stopped")
	return nil
}

func sessionConfig(cfg config.Config) session.Config {
	sc := session.Config{
		CookieSecure: cfg.IsProd(),
	}
	if cfg.Session.HashKey != "" {
		sc.HashKey = []byte(cfg.Session.HashKey)
	}
	if cfg.Session.BlockKey != "" {
		sc.BlockKey = []byte(cfg.Session.BlockKey)
	}
	return sc
}
