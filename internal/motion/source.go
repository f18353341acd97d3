package motion

import (
	"context"
	"errors"
	"sync"
)

// Capability is the outcome of a sensor permission request.
type Capability int

const (
	Denied Capability = iota
	Granted
)

func (c Capability) String() string {
	if c == Granted {
		return "granted"
	}
	return "denied"
}

// ErrUnavailable is returned by sources that have no sensor behind them.
var ErrUnavailable = errors.New("motion sensor unavailable")

// Source delivers samples after a two-phase acquisition: callers first
// request the capability, and only on Granted subscribe a handler.
type Source interface {
	RequestCapability(ctx context.Context) (Capability, error)
	// Subscribe registers fn for every delivered sample and returns a
	// function that removes it. The returned function is idempotent.
	Subscribe(fn func(Sample)) (unsubscribe func())
}

// Feed is a push-driven Source. Producers such as the ingest API call
// Publish; subscribers receive every sample while subscribed. A disabled
// Feed denies the capability, which is how a host without a motion sensor
// is modelled.
type Feed struct {
	enabled bool

	mu     sync.RWMutex
	nextID int
	subs   map[int]func(Sample)
}

// NewFeed creates a Feed. enabled=false denies every capability request.
func NewFeed(enabled bool) *Feed {
	return &Feed{enabled: enabled, subs: make(map[int]func(Sample))}
}

// RequestCapability implements Source.
func (f *Feed) RequestCapability(ctx context.Context) (Capability, error) {
	if err := ctx.Err(); err != nil {
		return Denied, err
	}
	if !f.enabled {
		return Denied, ErrUnavailable
	}
	return Granted, nil
}

// Subscribe implements Source.
func (f *Feed) Subscribe(fn func(Sample)) func() {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = fn
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
		})
	}
}

// Publish delivers samples to all current subscribers and returns how many
// subscribers received them. Samples published with no subscriber are dropped.
func (f *Feed) Publish(samples ...Sample) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, fn := range f.subs {
		for _, s := range samples {
			fn(s)
		}
	}
	return len(f.subs)
}

// Subscribers returns the number of active subscriptions.
func (f *Feed) Subscribers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

// Enabled reports whether the feed grants capability requests.
func (f *Feed) Enabled() bool { return f.enabled }
