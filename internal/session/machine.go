// Package session implements the focus session lifecycle:
//
//	idle → focusing ⇄ warning → success | failed → idle
//
// The Machine is driven entirely by its caller: samples, visibility changes,
// user commands and one-second ticks. It never starts goroutines or timers of
// its own, so a single caller (the engine) fixes the order of every event.
package session

import (
	"context"
	"errors"
	"log/slog"

	"github.com/claude/anchor/internal/models"
	"github.com/claude/anchor/internal/motion"
)

// Status is the lifecycle state of the machine.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusFocusing Status = "focusing"
	StatusWarning  Status = "warning"
	StatusSuccess  Status = "success"
	StatusFailed   Status = "failed"
)

// Active reports whether a countdown is running in this status.
func (s Status) Active() bool {
	return s == StatusFocusing || s == StatusWarning
}

// Terminal reports whether the status awaits acknowledgement.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// Cue names an audio notification.
type Cue string

const (
	CueStart   Cue = "start"
	CueWarning Cue = "warning"
	CueSuccess Cue = "success"
	CueFailure Cue = "failure"
)

// Notifier plays cues. Calls are fire-and-forget.
type Notifier interface {
	Notify(cue Cue)
}

// Recorder receives session outcomes. *ledger.Ledger satisfies it.
type Recorder interface {
	RecordSession(ctx context.Context, durationMinutes int, success bool, sessionType string, violationCount int) (models.SessionLog, error)
}

// Errors returned for commands that do not apply to the current status.
var (
	ErrNotIdle     = errors.New("session: a session is already in progress")
	ErrNotActive   = errors.New("session: no session in progress")
	ErrNotWarning  = errors.New("session: no warning in progress")
	ErrNotTerminal = errors.New("session: session has not finished")
)

// State is an immutable snapshot of the runtime state.
type State struct {
	Status          Status             `json:"status"`
	Config          Config             `json:"config"`
	TimeLeft        int                `json:"time_left"`
	WarningTimeLeft int                `json:"warning_time_left"`
	ViolationCount  int                `json:"violation_count"`
	Clock           string             `json:"clock"`
	Moving          bool               `json:"moving"`
	LastLog         *models.SessionLog `json:"last_log,omitempty"`
}

// EventType distinguishes status changes from countdown updates.
type EventType string

const (
	EventTransition EventType = "transition"
	EventTick       EventType = "tick"
)

// Event is published to observers after every status change and tick.
type Event struct {
	Type   EventType `json:"type"`
	From   Status    `json:"from"`
	To     Status    `json:"to"`
	Reason string    `json:"reason,omitempty"`
	State  State     `json:"state"`
}

// Observer receives events synchronously on the caller's goroutine and must
// not block.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Observe implements Observer.
func (f ObserverFunc) Observe(e Event) { f(e) }

// Machine is not safe for concurrent use.
type Machine struct {
	classifier     *motion.Classifier
	foreground     *motion.ForegroundMonitor
	notifier       Notifier
	recorder       Recorder
	log            *slog.Logger
	warningSeconds int
	observers      []Observer

	status      Status
	cfg         Config
	timeLeft    int
	warningLeft int
	violations  int
	lastLog     *models.SessionLog
}

// Option configures a Machine.
type Option func(*Machine)

// WithWarningSeconds overrides the grace period before a warning fails.
func WithWarningSeconds(n int) Option {
	return func(m *Machine) {
		if n > 0 {
			m.warningSeconds = n
		}
	}
}

// New creates an idle machine.
func New(classifier *motion.Classifier, foreground *motion.ForegroundMonitor, notifier Notifier, recorder Recorder, log *slog.Logger, opts ...Option) *Machine {
	m := &Machine{
		classifier:     classifier,
		foreground:     foreground,
		notifier:       notifier,
		recorder:       recorder,
		log:            log,
		warningSeconds: DefaultWarningSeconds,
		status:         StatusIdle,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.warningLeft = m.warningSeconds
	return m
}

// Subscribe registers an observer.
func (m *Machine) Subscribe(o Observer) {
	m.observers = append(m.observers, o)
}

// Status returns the current status.
func (m *Machine) Status() Status { return m.status }

// Snapshot returns the current runtime state.
func (m *Machine) Snapshot() State {
	st := State{
		Status:          m.status,
		Config:          m.cfg,
		TimeLeft:        m.timeLeft,
		WarningTimeLeft: m.warningLeft,
		ViolationCount:  m.violations,
		Clock:           FormatClock(m.timeLeft),
		Moving:          m.classifier.Moving(),
	}
	if m.lastLog != nil {
		l := *m.lastLog
		st.LastLog = &l
	}
	return st
}

// Start begins a session: idle → focusing.
func (m *Machine) Start(cfg Config) error {
	if m.status != StatusIdle {
		return ErrNotIdle
	}
	m.cfg = NewConfig(cfg.DurationSeconds, cfg.SessionType, cfg.StrictMode)
	m.timeLeft = m.cfg.DurationSeconds
	m.warningLeft = m.warningSeconds
	m.violations = 0
	m.lastLog = nil

	m.classifier.Arm()
	m.foreground.Arm()
	m.notifier.Notify(CueStart)
	m.transition(StatusFocusing, "start")
	return nil
}

// HandleSample classifies one motion sample and applies the resulting edge.
func (m *Machine) HandleSample(ctx context.Context, s motion.Sample) {
	m.handleEdge(ctx, m.classifier.Classify(s), "motion")
}

// HandleVisibility applies a host visibility change.
func (m *Machine) HandleVisibility(ctx context.Context, hidden bool) {
	m.handleEdge(ctx, m.foreground.OnVisibilityChange(hidden), "background")
}

func (m *Machine) handleEdge(ctx context.Context, e motion.Edge, source string) {
	switch e {
	case motion.Violation:
		if m.status != StatusFocusing {
			return
		}
		if m.cfg.StrictMode {
			m.finish(ctx, false, StatusFailed, source+" violation in strict mode")
			return
		}
		m.violations++
		m.warningLeft = m.warningSeconds
		m.notifier.Notify(CueWarning)
		m.transition(StatusWarning, source+" violation")
	case motion.Correction:
		if m.status != StatusWarning {
			return
		}
		m.warningLeft = m.warningSeconds
		m.transition(StatusFocusing, "corrected")
	}
}

// Tick advances both countdowns by one second. The main countdown is
// processed first: when it reaches zero in the same tick the warning
// countdown would expire, the session succeeds.
func (m *Machine) Tick(ctx context.Context) {
	if !m.status.Active() {
		return
	}

	m.timeLeft--
	if m.timeLeft <= 0 {
		m.timeLeft = 0
		m.finish(ctx, true, StatusSuccess, "completed")
		return
	}

	if m.status == StatusWarning {
		m.warningLeft--
		if m.warningLeft <= 0 {
			m.warningLeft = 0
			m.finish(ctx, false, StatusFailed, "warning expired")
			return
		}
	}

	m.publish(Event{Type: EventTick, From: m.status, To: m.status, State: m.Snapshot()})
}

// Cancel abandons an active session without recording it.
func (m *Machine) Cancel() error {
	if !m.status.Active() {
		return ErrNotActive
	}
	m.disarm()
	m.reset()
	m.transition(StatusIdle, "cancelled")
	return nil
}

// GiveUp fails a session that is in its warning grace period.
func (m *Machine) GiveUp(ctx context.Context) error {
	if m.status != StatusWarning {
		return ErrNotWarning
	}
	m.finish(ctx, false, StatusFailed, "gave up")
	return nil
}

// Acknowledge returns a finished machine to idle.
func (m *Machine) Acknowledge() error {
	if !m.status.Terminal() {
		return ErrNotTerminal
	}
	m.reset()
	m.transition(StatusIdle, "acknowledged")
	return nil
}

func (m *Machine) finish(ctx context.Context, success bool, to Status, reason string) {
	m.disarm()
	if success {
		m.notifier.Notify(CueSuccess)
	} else {
		m.notifier.Notify(CueFailure)
	}

	l, err := m.recorder.RecordSession(ctx, m.cfg.DurationMinutes(), success, m.cfg.SessionType, m.violations)
	if err != nil {
		m.log.Warn("recording session failed", "success", success, "error", err)
	}
	if l.ID != "" {
		m.lastLog = &l
	}
	m.transition(to, reason)
}

func (m *Machine) disarm() {
	m.classifier.Disarm()
	m.foreground.Disarm()
}

func (m *Machine) reset() {
	m.cfg = Config{}
	m.timeLeft = 0
	m.warningLeft = m.warningSeconds
	m.violations = 0
	m.lastLog = nil
}

func (m *Machine) transition(to Status, reason string) {
	from := m.status
	m.status = to
	m.log.Info("session transition", "from", from, "to", to, "reason", reason,
		"time_left", m.timeLeft, "violations", m.violations)
	m.publish(Event{Type: EventTransition, From: from, To: to, Reason: reason, State: m.Snapshot()})
}

func (m *Machine) publish(e Event) {
	for _, o := range m.observers {
		o.Observe(e)
	}
}
