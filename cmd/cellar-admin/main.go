// Command cellar-admin loads an adapter YAML configuration, opens one
// connection to the backing database, prepares the statement registry, and
// serves the read-only diagnostics HTTP surface (/healthz, /stats) until
// SIGTERM or SIGINT.
package main

import (
	"context"
	"crypto/rsa"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kroeg/cellar/internal/admin"
	"github.com/kroeg/cellar/internal/cellarstore"
	"github.com/kroeg/cellar/internal/config"
	"github.com/kroeg/cellar/internal/jsonld"
	"github.com/kroeg/cellar/internal/protocol"
	"github.com/kroeg/cellar/internal/statements"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "cellar.yaml", "path to the adapter's YAML configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, err := protocol.Connect(ctx, protocol.Config{
		Address:  cfg.Address,
		User:     cfg.User,
		Password: cfg.Password,
		Database: cfg.Database,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer conn.Close()

	reg, err := statements.Prepare(conn)
	if err != nil {
		logger.Error("failed to prepare statements", slog.Any("error", err))
		os.Exit(1)
	}

	store := cellarstore.New(reg, jsonld.FlatConverter{})
	queue := cellarstore.NewQueue(reg)

	var pubKey *rsa.PublicKey
	if cfg.AdminJWTPublicKeyPath != "" {
		pem, err := os.ReadFile(cfg.AdminJWTPublicKeyPath)
		if err != nil {
			logger.Error("failed to read JWT public key", slog.Any("error", err))
			os.Exit(1)
		}
		pubKey, err = admin.ParseRSAPublicKey(pem)
		if err != nil {
			logger.Error("failed to parse JWT public key", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("admin JWT validation enabled")
	} else {
		logger.Warn("admin_jwt_public_key_path not configured; diagnostics surface is unauthenticated")
	}

	adminSrv := admin.NewServer(diagnostics{conn: conn, store: store, queue: queue})
	httpServer := &http.Server{
		Addr:         cfg.AdminAddr,
		Handler:      admin.NewRouter(adminSrv, pubKey),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("admin HTTP server listening", slog.String("addr", cfg.AdminAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("admin server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		case <-gctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("cellar-admin exited with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("cellar-admin exited cleanly")
}

// diagnostics adapts the entity store, queue, and connection into the
// admin.StatsSource the HTTP surface reports on.
type diagnostics struct {
	conn  *protocol.Connection
	store *cellarstore.EntityStore
	queue *cellarstore.Queue
}

func (d diagnostics) Alive() bool          { return d.conn.Alive() }
func (d diagnostics) CacheSize() int       { return d.store.CacheSize() }
func (d diagnostics) QueueDepth() (int, error) { return d.queue.QueueDepth() }

// newLogger constructs a *slog.Logger writing to stderr at the configured
// level, in either text or JSON format.
func newLogger(level, format string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: l}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
