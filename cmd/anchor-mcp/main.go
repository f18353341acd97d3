package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/claude/anchor/internal/config"
	"github.com/claude/anchor/internal/ledger"
	anchormcp "github.com/claude/anchor/internal/mcp"
	"github.com/claude/anchor/internal/storage"
	"github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config file (local mode)")
	serverURL := flag.String("server", "", "anchord URL (remote mode, e.g. https://anchor.tail1234.ts.net)")
	flag.Parse()

	// stdout carries the MCP protocol, so logs go to stderr.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var ds anchormcp.DataSource
	switch {
	case *serverURL != "":
		ds = anchormcp.NewHTTPClient(*serverURL)
		log.Info("remote mode", "server", *serverURL)
	case *configPath != "":
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
		ctx := context.Background()
		store, err := storage.Open(ctx, cfg.Storage.Driver, cfg.StorageDSN())
		if err != nil {
			log.Error("failed to open store", "error", err)
			os.Exit(1)
		}
		defer store.Close()
		l, err := ledger.New(ctx, store, log, ledger.WithLocation(loc))
		if err != nil {
			log.Error("failed to load stats", "error", err)
			os.Exit(1)
		}
		ds = anchormcp.NewLedgerSource(l)
		log.Info("local mode", "driver", cfg.Storage.Driver)
	default:
		fmt.Fprintf(os.Stderr, "Usage: anchor-mcp -config config.yaml | -server <URL>\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	s := anchormcp.New(ds, Version, log)
	if err := server.ServeStdio(s); err != nil {
		log.Error("mcp server stopped", "error", err)
		os.Exit(1)
	}
}
