// Package replay sends recorded sensor traces to a running anchord, the
// way a phone client would stream them live.
package replay

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/claude/anchor/internal/ingest"
	"github.com/claude/anchor/internal/motion"
)

// DefaultBatchSize is the number of samples per ingest request.
const DefaultBatchSize = 60

// Stats tracks replay progress.
type Stats struct {
	FilesTotal    int
	FilesReplayed int
	FilesSkipped  int
	FilesErrored  int

	SamplesSent      int
	SamplesDropped   int
	VisibilityEvents int
	Batches          int
}

// Sender delivers trace data. *Client satisfies it.
type Sender interface {
	SendMotion(ctx context.Context, samples []motion.Sample) (*ingest.Result, error)
	SendVisibility(ctx context.Context, hidden bool) (*ingest.Result, error)
}

// Replayer walks trace files and sends each one in order.
type Replayer struct {
	sender    Sender
	state     *StateDB
	dryRun    bool
	batchSize int
	rate      float64
	log       *slog.Logger
	stats     Stats

	afterFunc func(time.Duration, func()) *time.Timer
}

// New creates a new Replayer. state may be nil to disable skip tracking.
// rate is the pace in samples per second; 0 sends as fast as possible.
func New(sender Sender, state *StateDB, dryRun bool, batchSize int, rate float64, log *slog.Logger) *Replayer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	batchSize = min(batchSize, ingest.MaxBatch)
	return &Replayer{
		sender:    sender,
		state:     state,
		dryRun:    dryRun,
		batchSize: batchSize,
		rate:      rate,
		log:       log,
		afterFunc: time.AfterFunc,
	}
}

// Run replays every .csv trace under the given paths. Directories are
// walked; files are replayed in lexical order. A failing file is counted
// and logged and the run moves on.
func (r *Replayer) Run(ctx context.Context, paths []string) (*Stats, error) {
	files, err := collectTraces(paths)
	if err != nil {
		return &r.stats, err
	}
	r.stats.FilesTotal = len(files)

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return &r.stats, err
		}
		if err := r.replayFile(ctx, path); err != nil {
			if ctx.Err() != nil {
				return &r.stats, ctx.Err()
			}
			r.stats.FilesErrored++
			r.log.Error("replaying trace", "path", path, "error", err)
		}
	}
	return &r.stats, nil
}

func collectTraces(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".csv") {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", p, err)
		}
	}
	sort.Strings(files)
	return files, nil
}

func (r *Replayer) replayFile(ctx context.Context, path string) error {
	hash, size, err := HashFile(path)
	if err != nil {
		return fmt.Errorf("hashing: %w", err)
	}
	if r.state != nil {
		seen, err := r.state.Seen(ctx, hash)
		if err != nil {
			return fmt.Errorf("checking state: %w", err)
		}
		if seen {
			r.stats.FilesSkipped++
			r.log.Debug("skipping replayed trace", "path", path)
			return nil
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	events, err := ParseTrace(f)
	f.Close()
	if err != nil {
		return err
	}

	samples, err := r.send(ctx, events)
	if err != nil {
		return err
	}
	r.stats.FilesReplayed++
	r.log.Info("replayed trace", "path", path, "samples", samples)

	if r.state != nil && !r.dryRun {
		rec := Replayed{Hash: hash, Path: path, Size: size, Samples: samples}
		if err := r.state.Record(ctx, rec); err != nil {
			return fmt.Errorf("recording state: %w", err)
		}
	}
	return nil
}

// send batches consecutive motion samples; a visibility change flushes the
// pending batch first so the server sees events in trace order.
func (r *Replayer) send(ctx context.Context, events []Event) (int, error) {
	var batch []motion.Sample
	sent := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n := len(batch)
		if !r.dryRun {
			res, err := r.sender.SendMotion(ctx, batch)
			if err != nil {
				return fmt.Errorf("sending motion: %w", err)
			}
			r.stats.SamplesDropped += n - res.SamplesPublished
		}
		r.stats.Batches++
		r.stats.SamplesSent += n
		sent += n
		batch = batch[:0]
		return r.pace(ctx, n)
	}

	for _, ev := range events {
		switch ev.Kind {
		case KindMotion:
			batch = append(batch, ev.Sample)
			if len(batch) >= r.batchSize {
				if err := flush(); err != nil {
					return sent, err
				}
			}
		case KindVisibility:
			if err := flush(); err != nil {
				return sent, err
			}
			if !r.dryRun {
				if _, err := r.sender.SendVisibility(ctx, ev.Hidden); err != nil {
					return sent, fmt.Errorf("sending visibility: %w", err)
				}
			}
			r.stats.VisibilityEvents++
		}
	}
	return sent, flush()
}

func (r *Replayer) pace(ctx context.Context, samples int) error {
	if r.rate <= 0 || r.dryRun {
		return nil
	}
	d := time.Duration(float64(samples) / r.rate * float64(time.Second))
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
