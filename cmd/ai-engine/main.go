// Command ai-engine is the realtime conversation bridge server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/malangee/ai-engine/internal/bridge"
	"github.com/malangee/ai-engine/internal/config"
	"github.com/malangee/ai-engine/internal/health"
	"github.com/malangee/ai-engine/internal/hint"
	"github.com/malangee/ai-engine/internal/history"
	"github.com/malangee/ai-engine/internal/httpapi"
	"github.com/malangee/ai-engine/internal/observe"
	"github.com/malangee/ai-engine/internal/realtime"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "ai-engine: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "ai-engine: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("ai-engine starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "ai-engine",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Persistence ───────────────────────────────────────────────────────────
	var (
		recorder      bridge.Recorder
		fetcher       bridge.HistoryFetcher
		healthOptions []health.Checker
	)
	if cfg.Database.PostgresDSN != "" {
		store, err := history.NewStore(ctx, cfg.Database.PostgresDSN)
		if err != nil {
			slog.Error("failed to open history store", "err", err)
			return 1
		}
		defer store.Close()
		recorder, fetcher = store, store
		healthOptions = append(healthOptions, health.Checker{Name: "database", Check: store.Ping})
		slog.Info("history store ready")
	} else {
		mem := history.NewMemoryStore()
		recorder, fetcher = mem, mem
		slog.Info("history store running in memory")
	}

	// ── Upstream realtime client ──────────────────────────────────────────────
	var clientOpts []realtime.Option
	if cfg.Upstream.Model != "" {
		clientOpts = append(clientOpts, realtime.WithModel(cfg.Upstream.Model))
	}
	if cfg.Upstream.BaseURL != "" {
		clientOpts = append(clientOpts, realtime.WithBaseURL(cfg.Upstream.BaseURL))
	}
	if cfg.Upstream.DialTimeout > 0 {
		clientOpts = append(clientOpts, realtime.WithDialTimeout(cfg.Upstream.DialTimeout))
	}
	client := realtime.NewClient(cfg.Upstream.APIKey, clientOpts...)

	dialer := bridge.DialerFunc(func(ctx context.Context) (bridge.UpstreamConn, error) {
		return client.Dial(ctx)
	})

	sessionCfg := realtime.SessionConfig{
		Instructions:       cfg.Upstream.Instructions,
		Voice:              cfg.Upstream.Voice,
		TranscriptionModel: cfg.Upstream.TranscriptionModel,
		VADThreshold:       cfg.Upstream.VADThreshold,
		VADPrefixPadding:   cfg.Upstream.VADPrefixPadding,
		VADSilenceDuration: cfg.Upstream.VADSilenceDuration,
	}

	// ── Hints (optional) ──────────────────────────────────────────────────────
	var hints httpapi.HintGenerator
	if cfg.Hints.Enabled {
		var hintOpts []hint.Option
		if cfg.Hints.BaseURL != "" {
			hintOpts = append(hintOpts, hint.WithBaseURL(cfg.Hints.BaseURL))
		}
		gen, err := hint.New(cfg.Upstream.APIKey, cfg.Hints.Model, hintOpts...)
		if err != nil {
			slog.Error("failed to build hint generator", "err", err)
			return 1
		}
		hints = gen
		slog.Info("hint generator enabled", "model", cfg.Hints.Model)
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	api := httpapi.NewServer(httpapi.ServerConfig{
		Registry:   bridge.NewRegistry(),
		Dialer:     dialer,
		Recorder:   recorder,
		History:    fetcher,
		Hints:      hints,
		SessionCfg: sessionCfg,
		Metrics:    metrics,
		Health:     health.New(healthOptions...),
	})

	addr := cfg.Server.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server ready", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("serve error", "err", err)
			return 1
		}
	case <-ctx.Done():
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
