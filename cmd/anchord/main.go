package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/claude/anchor/internal/config"
	"github.com/claude/anchor/internal/engine"
	"github.com/claude/anchor/internal/ingest"
	"github.com/claude/anchor/internal/ledger"
	anchormcp "github.com/claude/anchor/internal/mcp"
	"github.com/claude/anchor/internal/models"
	"github.com/claude/anchor/internal/motion"
	"github.com/claude/anchor/internal/notify"
	"github.com/claude/anchor/internal/sensor"
	"github.com/claude/anchor/internal/server"
	"github.com/claude/anchor/internal/session"
	"github.com/claude/anchor/internal/storage"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"tailscale.com/tsnet"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrateOnly := flag.Bool("migrate-only", false, "open the store, run migrations and exit")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	log.Info("anchord starting", "version", Version)

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	loc, err := cfg.Location()
	if err != nil {
		log.Error("invalid timezone", "error", err)
		os.Exit(1)
	}

	// Open store (migrations run on open)
	ctx := context.Background()
	store, err := storage.Open(ctx, cfg.Storage.Driver, cfg.StorageDSN())
	if err != nil {
		log.Error("failed to open store", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}
	defer store.Close()
	log.Info("store opened", "driver", cfg.Storage.Driver)

	if *migrateOnly {
		log.Info("migrate-only: exiting")
		return
	}

	l, err := ledger.New(ctx, store, log, ledger.WithLocation(loc))
	if err != nil {
		log.Error("failed to load stats", "error", err)
		os.Exit(1)
	}
	stats := l.Snapshot()
	log.Info("stats loaded", "current_streak", stats.CurrentStreak, "sessions", len(stats.SessionHistory))

	events := server.NewBroadcaster(log)
	l.Subscribe(events.ObserveLedger)
	l.Subscribe(func(c ledger.Change) {
		if c.RankChanged() {
			log.Info("rank changed",
				"from", models.RankFor(c.Before.CurrentStreak).Name,
				"to", models.RankFor(c.After.CurrentStreak).Name,
				"current_streak", c.After.CurrentStreak,
			)
		}
	})

	machine := session.New(
		motion.NewClassifier(cfg.Motion.Params()),
		motion.NewForegroundMonitor(),
		notify.Multi{notify.NewLog(log), events},
		l,
		log,
		session.WithWarningSeconds(cfg.Session.WarningSeconds),
	)
	machine.Subscribe(events)

	feed := motion.NewFeed(cfg.Motion.MotionEnabled())
	eng := engine.New(machine, feed, l, log)

	runCtx, stopEngine := context.WithCancel(ctx)
	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		if err := eng.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("engine stopped", "error", err)
		}
	}()

	if cfg.Serial.Port != "" {
		reader, port, err := sensor.Open(cfg.Serial.Port, cfg.Serial.PortOptions, feed, log)
		if err != nil {
			log.Error("failed to open sensor", "port", cfg.Serial.Port, "error", err)
			os.Exit(1)
		}
		defer port.Close()
		log.Info("serial sensor attached", "port", cfg.Serial.Port, "baud_rate", cfg.Serial.BaudRate)
		go func() {
			stats, err := reader.Run(runCtx)
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Error("sensor reader stopped", "error", err)
			}
			log.Info("sensor reader done", "lines", stats.Lines, "published", stats.Published, "skipped", stats.Skipped)
		}()
	}

	provider := ingest.NewProvider(feed, eng, log)
	srv := server.New(eng, l, store, provider, events, cfg.Auth.APIKey, cfg.Session.DefaultDurationSeconds(), log)
	srv.Mount("/mcp", mcpserver.NewStreamableHTTPServer(anchormcp.New(anchormcp.NewLedgerSource(l), Version, log)))

	// Start server: tsnet or plain HTTP
	var listener net.Listener
	var tsServer *tsnet.Server

	if cfg.Tailscale.Enabled {
		tsServer = &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
			Logf:     func(format string, args ...any) { log.Debug(fmt.Sprintf(format, args...)) },
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr, "mode", "plain (no tailscale)")
	}

	// Cancelled when shutdown begins so open event streams return.
	baseCtx, cancelBase := context.WithCancel(ctx)
	httpSrv := &http.Server{
		Handler:     srv,
		BaseContext: func(net.Listener) context.Context { return baseCtx },
	}
	httpSrv.RegisterOnShutdown(cancelBase)

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}

	stopEngine()
	<-engineDone
	log.Info("server stopped")
}
