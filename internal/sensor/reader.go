// Package sensor reads accelerometer samples from a serial-attached board
// and publishes them on a motion feed.
package sensor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/claude/anchor/internal/motion"
	"go.bug.st/serial"
)

// Publisher receives parsed samples. *motion.Feed satisfies it.
type Publisher interface {
	Publish(samples ...motion.Sample) int
}

// Stats counts lines seen by a Reader.
type Stats struct {
	Lines     int
	Published int
	Skipped   int
}

// Reader turns a line-oriented "x,y,z" stream into motion samples.
type Reader struct {
	src   io.Reader
	feed  Publisher
	log   *slog.Logger
	stats Stats
}

// NewReader wraps src. Lines that do not parse are logged at debug and skipped.
func NewReader(src io.Reader, feed Publisher, log *slog.Logger) *Reader {
	return &Reader{src: src, feed: feed, log: log}
}

// Open opens the serial port at path and returns a Reader over it along with
// the port, which the caller closes.
func Open(path string, opts PortOptions, feed Publisher, log *slog.Logger) (*Reader, io.Closer, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, nil, fmt.Errorf("opening serial port %s: %w", path, err)
	}
	return NewReader(port, feed, log), port, nil
}

// Run reads until the source is exhausted or ctx is cancelled. Closing the
// underlying port is what unblocks a pending read; Run does not close it.
func (r *Reader) Run(ctx context.Context) (Stats, error) {
	sc := bufio.NewScanner(r.src)
	for sc.Scan() {
		if ctx.Err() != nil {
			return r.stats, ctx.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		r.stats.Lines++
		s, err := ParseLine(line)
		if err != nil {
			r.stats.Skipped++
			r.log.Debug("skipping sensor line", "line", line, "error", err)
			continue
		}
		r.feed.Publish(s)
		r.stats.Published++
	}
	if err := sc.Err(); err != nil && !errors.Is(err, io.EOF) {
		if ctx.Err() != nil {
			return r.stats, ctx.Err()
		}
		return r.stats, fmt.Errorf("reading sensor: %w", err)
	}
	return r.stats, nil
}

// ParseLine parses one "x,y,z" reading in m/s². Non-finite values are rejected.
func ParseLine(line string) (motion.Sample, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 3 {
		return motion.Sample{}, fmt.Errorf("want 3 fields, got %d", len(fields))
	}
	var v [3]float64
	for i, f := range fields {
		x, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return motion.Sample{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return motion.Sample{}, fmt.Errorf("field %d is not finite", i+1)
		}
		v[i] = x
	}
	return motion.Sample{X: v[0], Y: v[1], Z: v[2]}, nil
}
