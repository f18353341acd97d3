// Package engine runs a session.Machine on a single goroutine.
//
// Sensor samples, visibility changes, user commands and the one-second
// countdown tick all arrive as events on that goroutine and each runs to
// completion before the next starts. The tick is the only timer: it is
// created when a session starts and stopped when the session leaves the
// active states, and each tick advances the main countdown before the
// warning countdown.
//
// Both countdowns share that one ticker, which keeps its phase from the
// session start. A warning that begins between two ticks therefore loses
// part of its first second: the grace period is at least
// WarningSeconds-1 and at most WarningSeconds of wall time. Missed ticks are
// not made up.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/claude/anchor/internal/models"
	"github.com/claude/anchor/internal/motion"
	"github.com/claude/anchor/internal/session"
)

// ErrStopped is returned by commands issued after Run has returned.
var ErrStopped = errors.New("engine: stopped")

const sampleQueue = 4096

// Preferences supplies the persisted settings a new session starts with.
// *ledger.Ledger satisfies it.
type Preferences interface {
	Snapshot() models.UserStats
}

// TickerFunc starts a ticker with period d and returns its channel and a
// stop function.
type TickerFunc func(d time.Duration) (<-chan time.Time, func())

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Engine serializes all input to a Machine.
type Engine struct {
	machine   *session.Machine
	source    motion.Source
	prefs     Preferences
	log       *slog.Logger
	newTicker TickerFunc

	cmds    chan func(context.Context)
	samples chan motion.Sample
	stopped chan struct{}
	dropped atomic.Int64

	// Owned by the loop goroutine.
	ticks       <-chan time.Time
	stopTicker  func()
	unsubscribe func()
	loopCtx     context.Context
}

// Option configures an Engine.
type Option func(*Engine)

// WithTicker replaces the wall-clock ticker, for tests.
func WithTicker(f TickerFunc) Option {
	return func(e *Engine) { e.newTicker = f }
}

// New wires an engine around machine. It subscribes to the machine's
// transitions, so it must be created before Run and before any other
// goroutine touches the machine.
func New(machine *session.Machine, source motion.Source, prefs Preferences, log *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		machine:   machine,
		source:    source,
		prefs:     prefs,
		log:       log,
		newTicker: realTicker,
		cmds:      make(chan func(context.Context)),
		samples:   make(chan motion.Sample, sampleQueue),
		stopped:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	machine.Subscribe(session.ObserverFunc(e.observe))
	return e
}

// Run processes events until ctx is cancelled. An active session is
// cancelled, unrecorded, on the way out.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.stopped)
	// Outcomes are persisted even while shutting down.
	e.loopCtx = context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return ctx.Err()
		case fn := <-e.cmds:
			e.drainSamples()
			fn(e.loopCtx)
		case s := <-e.samples:
			e.machine.HandleSample(e.loopCtx, s)
		case <-e.ticks:
			e.drainSamples()
			e.machine.Tick(e.loopCtx)
		}
	}
}

// drainSamples applies every queued sample, so samples published before a
// command or tick are always seen before it.
func (e *Engine) drainSamples() {
	for {
		select {
		case s := <-e.samples:
			e.machine.HandleSample(e.loopCtx, s)
		default:
			return
		}
	}
}

func (e *Engine) shutdown() {
	if e.machine.Status().Active() {
		if err := e.machine.Cancel(); err != nil {
			e.log.Warn("cancelling session on shutdown", "error", err)
		}
	}
	e.stopSession()
	if n := e.dropped.Load(); n > 0 {
		e.log.Warn("motion samples dropped while queue was full", "count", n)
	}
}

// observe runs on the loop goroutine, inside the machine's transition.
func (e *Engine) observe(ev session.Event) {
	if ev.Type != session.EventTransition {
		return
	}
	switch {
	case ev.To.Active() && !ev.From.Active():
		e.startSession()
	case !ev.To.Active() && ev.From.Active():
		e.stopSession()
	}
}

func (e *Engine) startSession() {
	e.ticks, e.stopTicker = e.newTicker(time.Second)

	capability, err := e.source.RequestCapability(e.loopCtx)
	if capability != motion.Granted {
		// The session runs on, it just never sees motion edges.
		e.log.Warn("motion capability not granted", "capability", capability, "error", err)
		return
	}
	e.unsubscribe = e.source.Subscribe(e.enqueueSample)
}

func (e *Engine) stopSession() {
	if e.stopTicker != nil {
		e.stopTicker()
		e.stopTicker = nil
	}
	e.ticks = nil
	if e.unsubscribe != nil {
		e.unsubscribe()
		e.unsubscribe = nil
	}
}

// enqueueSample is called on producer goroutines. It never blocks: a full
// queue drops the sample.
func (e *Engine) enqueueSample(s motion.Sample) {
	select {
	case e.samples <- s:
	default:
		e.dropped.Add(1)
	}
}

// Dropped returns how many samples were discarded because the queue was full.
func (e *Engine) Dropped() int64 { return e.dropped.Load() }

// Start begins a session of durationSeconds using the persisted strict mode
// setting. An empty sessionType falls back to the first configured type.
func (e *Engine) Start(ctx context.Context, durationSeconds int, sessionType string) (session.State, error) {
	prefs := e.prefs.Snapshot()
	if sessionType == "" && len(prefs.CustomSessionTypeNames) > 0 {
		sessionType = prefs.CustomSessionTypeNames[0]
	}
	cfg := session.NewConfig(durationSeconds, sessionType, prefs.StrictModeEnabled)
	return e.command(ctx, func(context.Context) error { return e.machine.Start(cfg) })
}

// Cancel abandons the active session.
func (e *Engine) Cancel(ctx context.Context) (session.State, error) {
	return e.command(ctx, func(context.Context) error { return e.machine.Cancel() })
}

// GiveUp fails the session during a warning.
func (e *Engine) GiveUp(ctx context.Context) (session.State, error) {
	return e.command(ctx, e.machine.GiveUp)
}

// Acknowledge returns a finished session to idle.
func (e *Engine) Acknowledge(ctx context.Context) (session.State, error) {
	return e.command(ctx, func(context.Context) error { return e.machine.Acknowledge() })
}

// SetVisibility reports a host visibility change.
func (e *Engine) SetVisibility(ctx context.Context, hidden bool) (session.State, error) {
	return e.command(ctx, func(loopCtx context.Context) error {
		e.machine.HandleVisibility(loopCtx, hidden)
		return nil
	})
}

// Snapshot returns the machine's current state.
func (e *Engine) Snapshot(ctx context.Context) (session.State, error) {
	return e.command(ctx, func(context.Context) error { return nil })
}

// command runs fn on the loop goroutine and returns the state right after it.
func (e *Engine) command(ctx context.Context, fn func(context.Context) error) (session.State, error) {
	type result struct {
		state session.State
		err   error
	}
	done := make(chan result, 1)
	task := func(loopCtx context.Context) {
		err := fn(loopCtx)
		done <- result{state: e.machine.Snapshot(), err: err}
	}

	select {
	case e.cmds <- task:
	case <-e.stopped:
		return session.State{}, ErrStopped
	case <-ctx.Done():
		return session.State{}, ctx.Err()
	}
	select {
	case r := <-done:
		return r.state, r.err
	case <-ctx.Done():
		return session.State{}, ctx.Err()
	}
}
