// Package ingest turns sensor payloads posted by a client into motion
// samples and visibility changes.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/claude/anchor/internal/motion"
	"github.com/claude/anchor/internal/session"
)

// MaxBatch is the largest number of samples accepted in one payload.
const MaxBatch = 1000

// Result holds the outcome of an ingest operation.
type Result struct {
	SamplesReceived  int    `json:"samples_received"`
	SamplesPublished int    `json:"samples_published"`
	SamplesRejected  int    `json:"samples_rejected"`
	Subscribers      int    `json:"subscribers"`
	Status           string `json:"status,omitempty"`
	Message          string `json:"message,omitempty"`
}

// SamplePayload is one accelerometer reading in g.
type SamplePayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// MotionPayload is the body of a motion ingest request.
type MotionPayload struct {
	Samples []SamplePayload `json:"samples"`
}

// VisibilityPayload is the body of a visibility ingest request.
type VisibilityPayload struct {
	Hidden bool `json:"hidden"`
}

// VisibilitySink receives host visibility changes. *engine.Engine satisfies it.
type VisibilitySink interface {
	SetVisibility(ctx context.Context, hidden bool) (session.State, error)
}

// Provider publishes ingested motion to a feed and forwards visibility
// changes to the session engine.
type Provider struct {
	feed *motion.Feed
	sink VisibilitySink
	log  *slog.Logger
}

// NewProvider creates a new ingest provider.
func NewProvider(feed *motion.Feed, sink VisibilitySink, log *slog.Logger) *Provider {
	return &Provider{feed: feed, sink: sink, log: log}
}

// IngestMotion validates the samples and publishes the finite ones in order.
// Samples are dropped by the feed when no session is listening.
func (p *Provider) IngestMotion(ctx context.Context, payload *MotionPayload) (*Result, error) {
	if len(payload.Samples) > MaxBatch {
		return nil, fmt.Errorf("batch of %d samples exceeds limit of %d", len(payload.Samples), MaxBatch)
	}
	if !p.feed.Enabled() {
		return nil, motion.ErrUnavailable
	}

	result := &Result{SamplesReceived: len(payload.Samples)}
	samples := make([]motion.Sample, 0, len(payload.Samples))
	for _, s := range payload.Samples {
		if !finite(s.X) || !finite(s.Y) || !finite(s.Z) {
			result.SamplesRejected++
			continue
		}
		samples = append(samples, motion.Sample{X: s.X, Y: s.Y, Z: s.Z})
	}

	result.Subscribers = p.feed.Publish(samples...)
	if result.Subscribers > 0 {
		result.SamplesPublished = len(samples)
	} else if len(samples) > 0 {
		result.Message = "no active session"
	}
	if result.SamplesRejected > 0 {
		p.log.Warn("rejected non-finite motion samples", "count", result.SamplesRejected)
	}
	return result, nil
}

// IngestVisibility forwards a visibility change to the engine.
func (p *Provider) IngestVisibility(ctx context.Context, payload *VisibilityPayload) (*Result, error) {
	state, err := p.sink.SetVisibility(ctx, payload.Hidden)
	if err != nil {
		return nil, fmt.Errorf("forwarding visibility: %w", err)
	}
	return &Result{Status: string(state.Status)}, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
