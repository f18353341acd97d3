package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/claude/anchor/internal/motion"
	"github.com/claude/anchor/internal/replay"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	serverURL := flag.String("server", "", "anchord server URL (e.g. http://127.0.0.1:8470)")
	apiKey := flag.String("api-key", os.Getenv("ANCHOR_AUTH_API_KEY"), "ingest API key (default $ANCHOR_AUTH_API_KEY)")
	dryRun := flag.Bool("dry-run", false, "parse traces but don't send to server")
	batchSize := flag.Int("batch-size", replay.DefaultBatchSize, "samples per ingest request")
	rate := flag.Float64("rate", 60, "samples per second; 0 sends as fast as possible")
	start := flag.String("start", "", "start a session of this many minutes before replaying")
	sessionType := flag.String("type", "", "session type for -start")
	noState := flag.Bool("no-state", false, "replay every file, even ones already replayed")
	listState := flag.Int("list-state", 0, "print the N most recently replayed traces and exit")
	resetState := flag.Bool("reset-state", false, "forget every replayed trace and exit")
	watch := flag.Bool("watch", false, "keep running and replay new traces as they appear in the directory")
	settle := flag.Duration("settle", replay.DefaultSettle, "quiet time before a watched trace is replayed")
	calibrate := flag.Bool("calibrate", false, "measure resting noise in the traces and suggest a motion threshold")
	alpha := flag.Float64("alpha", motion.DefaultAlpha, "smoothing factor used by -calibrate")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("anchor-replay", Version)
		return
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *listState > 0 || *resetState {
		if err := runState(*listState, *resetState); err != nil {
			log.Error("state command failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "Usage: anchor-replay -server <URL> [-start MIN] [-rate N] [-dry-run] [-watch|-calibrate] <trace.csv|dir>...\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if *calibrate {
		if err := runCalibrate(flag.Args(), *alpha); err != nil {
			log.Error("calibration failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if *watch && flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Error: -watch takes exactly one directory\n")
		os.Exit(1)
	}

	if *serverURL == "" && !*dryRun {
		fmt.Fprintf(os.Stderr, "Error: -server is required (or use -dry-run)\n")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var state *replay.StateDB
	if !*noState {
		var err error
		state, err = openState()
		if err != nil {
			log.Error("failed to open state database", "error", err)
			os.Exit(1)
		}
		defer state.Close()
	}

	client := replay.NewClient(*serverURL, *apiKey)
	if *dryRun {
		log.Info("DRY RUN mode: traces will be parsed but not sent")
	} else if *start != "" {
		if err := client.StartSession(ctx, *start, *sessionType); err != nil {
			log.Error("failed to start session", "error", err)
			os.Exit(1)
		}
		log.Info("session started", "minutes", *start)
	}

	replayer := replay.New(client, state, *dryRun, *batchSize, *rate, log)
	var stats *replay.Stats
	var err error
	if *watch {
		stats, err = replayer.Watch(ctx, flag.Arg(0), *settle)
	} else {
		stats, err = replayer.Run(ctx, flag.Args())
	}
	printStats(stats)
	if err != nil {
		log.Error("replay failed", "error", err)
		os.Exit(1)
	}
	log.Info("replay complete")
}

func printStats(stats *replay.Stats) {
	fmt.Println()
	fmt.Println("=== Replay Summary ===")
	fmt.Printf("  Files total:       %d\n", stats.FilesTotal)
	fmt.Printf("  Files replayed:    %d\n", stats.FilesReplayed)
	fmt.Printf("  Files skipped:     %d (already replayed)\n", stats.FilesSkipped)
	fmt.Printf("  Files errored:     %d\n", stats.FilesErrored)
	fmt.Println()
	fmt.Printf("  Samples sent:      %d in %d batches\n", stats.SamplesSent, stats.Batches)
	fmt.Printf("  Samples unheard:   %d (no active session)\n", stats.SamplesDropped)
	fmt.Printf("  Visibility events: %d\n", stats.VisibilityEvents)
	fmt.Println()
}

func runCalibrate(paths []string, alpha float64) error {
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		events, err := replay.ParseTrace(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		cal, err := replay.Calibrate(events, alpha, motion.DefaultThreshold)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Printf("=== %s ===\n", path)
		fmt.Printf("  Samples:        %d\n", cal.Samples)
		fmt.Printf("  Mean (x,y,z):   %.3f, %.3f, %.3f\n", cal.Mean.X, cal.Mean.Y, cal.Mean.Z)
		fmt.Printf("  StdDev (x,y,z): %.3f, %.3f, %.3f\n", cal.StdDev.X, cal.StdDev.Y, cal.StdDev.Z)
		fmt.Printf("  Drift p50/p99/max: %.3f / %.3f / %.3f\n", cal.DriftP50, cal.DriftP99, cal.DriftMax)
		fmt.Printf("  Suggested threshold: %.3f\n", cal.SuggestedThreshold)
	}
	return nil
}

func openState() (*replay.StateDB, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("finding home directory: %w", err)
	}
	return replay.OpenStateDB(filepath.Join(homeDir, ".anchor-replay"))
}

func runState(list int, reset bool) error {
	state, err := openState()
	if err != nil {
		return err
	}
	defer state.Close()
	ctx := context.Background()

	if reset {
		n, err := state.Reset(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Forgot %d replayed traces\n", n)
		return nil
	}

	entries, err := state.Recent(ctx, list)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%s  %6d samples  %s  %s\n", e.ReplayedAt.Format(time.DateTime), e.Samples, e.Hash[:12], e.Path)
	}
	return nil
}
