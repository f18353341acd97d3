// Package notify provides session.Notifier implementations. Audio playback
// lives in the client; the daemon logs cues and forwards them to event
// stream subscribers.
package notify

import (
	"log/slog"

	"github.com/claude/anchor/internal/session"
)

// Log writes each cue to a structured logger.
type Log struct {
	log *slog.Logger
}

// NewLog creates a logging notifier.
func NewLog(log *slog.Logger) *Log {
	return &Log{log: log}
}

// Notify implements session.Notifier.
func (n *Log) Notify(cue session.Cue) {
	n.log.Info("cue", "cue", string(cue))
}

// Func adapts a function to session.Notifier.
type Func func(session.Cue)

// Notify implements session.Notifier.
func (f Func) Notify(cue session.Cue) { f(cue) }

// Multi fans a cue out to every notifier in order.
type Multi []session.Notifier

// Notify implements session.Notifier.
func (m Multi) Notify(cue session.Cue) {
	for _, n := range m {
		n.Notify(cue)
	}
}

// Discard drops every cue.
var Discard session.Notifier = Func(func(session.Cue) {})
