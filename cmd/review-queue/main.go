// Command review-queue serves a personal pull-request triage dashboard: it
// correlates a user's open PRs with the bors merge queue, rollup membership,
// the crater queue, and the rfcbot FCP feed, and buckets them by what to do
// next.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jdonszelmann/review-queue/internal/config"
	"github.com/jdonszelmann/review-queue/internal/ledger"
	"github.com/jdonszelmann/review-queue/internal/web"
	"github.com/jdonszelmann/review-queue/pkg/feeds"
	"github.com/jdonszelmann/review-queue/pkg/triage"
)

const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 60 * time.Second
	idleTimeout       = 120 * time.Second
	shutdownTimeout   = 10 * time.Second
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store *ledger.Store
	if cfg.DatabaseURL != "" {
		var err error
		store, err = ledger.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer store.Close()
	} else {
		slog.Info("No database configured, running without the seen-PR ledger")
	}

	sources := triage.NewSources(
		feeds.NewBorsClient(nil),
		feeds.NewCraterClient(nil, cfg.CraterURL),
		feeds.NewRfcbotClient(nil, cfg.RfcbotURL),
		cfg.Repos,
		cfg.Periods,
	)
	scanner := &triage.Scanner{
		Sources:     sources,
		Repos:       cfg.Repos,
		Labels:      cfg.Labels,
		Concurrency: cfg.Concurrency,
	}

	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           web.New(scanner, store, cfg.SessionSecret).Router(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "addr", cfg.Listen, "repos", len(cfg.Repos))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
