package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/claude/anchor/internal/config"
	"github.com/claude/anchor/internal/importer"
	"github.com/claude/anchor/internal/ledger"
	"github.com/claude/anchor/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	exportPath := flag.String("file", "", "path to the exported stats JSON (required)")
	dryRun := flag.Bool("dry-run", false, "report counts without writing to the store")
	force := flag.Bool("force", false, "overwrite stats that already contain session history")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *exportPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: anchor-import -config config.yaml -file export.json [-dry-run] [-force]\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

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

	if *dryRun {
		log.Info("DRY RUN mode: no data will be written to the store")
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

	// Run import
	imp := importer.New(l, store, log, *dryRun, *force)
	stats, err := imp.ImportFile(ctx, *exportPath)
	if err != nil {
		log.Error("import failed", "error", err)
		printStats(stats)
		os.Exit(1)
	}

	printStats(stats)
	log.Info("import complete")
}

func printStats(stats *importer.Stats) {
	if stats == nil {
		return
	}
	fmt.Println()
	fmt.Println("=== Import Summary ===")
	fmt.Printf("  Sessions imported: %d\n", stats.SessionsImported)
	fmt.Printf("  Sessions skipped:  %d\n", stats.SessionsSkipped)
	fmt.Printf("  Sessions trimmed:  %d (history keeps the newest 100)\n", stats.SessionsTrimmed)
	fmt.Printf("  Sessions rescored: %d (focusScore recomputed)\n", stats.SessionsRescored)
	fmt.Println()
	fmt.Printf("  Current streak:    %d\n", stats.CurrentStreak)
	fmt.Printf("  Longest streak:    %d\n", stats.LongestStreak)
	fmt.Printf("  Focused minutes:   %d\n", stats.TotalFocusedMinutes)

	if len(stats.Warnings) > 0 {
		fmt.Printf("\n  Warnings:\n")
		for _, w := range stats.Warnings {
			fmt.Printf("    - %s\n", w)
		}
	}
	fmt.Println()
}
