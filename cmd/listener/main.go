package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/satstack/zap-thanks/internal/config"
	"github.com/satstack/zap-thanks/internal/domain"
	"github.com/satstack/zap-thanks/internal/httpserver"
	"github.com/satstack/zap-thanks/internal/listener"
	"github.com/satstack/zap-thanks/internal/metrics"
	"github.com/satstack/zap-thanks/internal/relay"
	"github.com/satstack/zap-thanks/internal/reply"
	"github.com/satstack/zap-thanks/internal/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()
	logger.Info("opened zap store", "path", cfg.DBPath)

	metrics.Register()

	// The store implements both repositories.
	service := domain.NewZapService(domain.ServiceConfig{
		Pubkey:         cfg.Pubkey,
		MinZapSats:     cfg.MinZapSats,
		AllowSelfZap:   cfg.AllowSelfZap,
		ReplyOnUnknown: cfg.ReplyOnUnknown,
		MaxSaneSats:    cfg.MaxSaneSats,
	}, store, store, logger)

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	client := relay.New(cfg.Relays, logger)
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect relays: %w", err)
	}
	defer client.Close()

	publisher := reply.NewPublisher(client, cfg.Relays, logger)
	l := listener.New(client, service, publisher, cfg, logger)

	if cfg.HealthAddr != "" {
		server := httpserver.NewServer(cfg.HealthAddr, l.LastActivity, logger)
		go func() {
			if err := server.Start(); err != nil && err != http.ErrServerClosed {
				logger.Error("health server exited with error", "error", err)
			}
		}()
		defer func() {
			if err := server.Shutdown(context.Background()); err != nil {
				logger.Error("error shutting down health server", "error", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- l.Run(ctx)
	}()

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig)
		cancel()
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}
