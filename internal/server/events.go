package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/claude/anchor/internal/ledger"
	"github.com/claude/anchor/internal/models"
	"github.com/claude/anchor/internal/session"
)

// sseEvent is an SSE message to send to subscribers.
type sseEvent struct {
	Event string
	Data  string
}

// Broadcaster fans session, cue and ledger events out to SSE subscribers.
// It satisfies session.Observer and session.Notifier, and its
// ObserveLedger method is a ledger.Observer.
type Broadcaster struct {
	log *slog.Logger

	subsMu sync.Mutex
	subs   map[chan sseEvent]struct{}
}

// NewBroadcaster creates a Broadcaster with no subscribers.
func NewBroadcaster(log *slog.Logger) *Broadcaster {
	return &Broadcaster{log: log, subs: make(map[chan sseEvent]struct{})}
}

// Observe implements session.Observer. It runs on the engine goroutine and
// never blocks.
func (b *Broadcaster) Observe(ev session.Event) {
	b.publish(string(ev.Type), ev)
}

// Notify implements session.Notifier.
func (b *Broadcaster) Notify(cue session.Cue) {
	b.publish("cue", map[string]string{"cue": string(cue)})
}

// rankUp is the payload of a rank_up event.
type rankUp struct {
	From          string `json:"from"`
	To            string `json:"to"`
	CurrentStreak int    `json:"current_streak"`
}

// ObserveLedger publishes recorded sessions and rank promotions.
func (b *Broadcaster) ObserveLedger(c ledger.Change) {
	if c.Log != nil {
		b.publish("session_recorded", c.Log)
	}
	before := models.RankFor(c.Before.CurrentStreak)
	after := models.RankFor(c.After.CurrentStreak)
	if after.MinStreak > before.MinStreak {
		b.publish("rank_up", rankUp{From: before.Name, To: after.Name, CurrentStreak: c.After.CurrentStreak})
	}
}

// Subscribers returns the number of connected SSE clients.
func (b *Broadcaster) Subscribers() int {
	b.subsMu.Lock()
	defer b.subsMu.Unlock()
	return len(b.subs)
}

func (b *Broadcaster) publish(event string, v any) {
	b.broadcast(sseEvent{Event: event, Data: mustJSON(v)})
}

func (b *Broadcaster) broadcast(event sseEvent) {
	b.subsMu.Lock()
	defer b.subsMu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- event:
		default:
			// slow subscriber, skip
		}
	}
}

func (b *Broadcaster) subscribe() chan sseEvent {
	ch := make(chan sseEvent, 64)
	b.subsMu.Lock()
	b.subs[ch] = struct{}{}
	b.subsMu.Unlock()
	return ch
}

func (b *Broadcaster) unsubscribe(ch chan sseEvent) {
	b.subsMu.Lock()
	delete(b.subs, ch)
	b.subsMu.Unlock()
}

// handleSessionEvents streams session events until the client disconnects.
// The current session state is sent first as a "status" event.
func (s *Server) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming not supported"})
		return
	}

	state, err := s.sessions.Snapshot(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.events.subscribe()
	defer s.events.unsubscribe(ch)

	fmt.Fprintf(w, "event: status\ndata: %s\n\n", mustJSON(state))
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt := <-ch:
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Event, evt.Data)
			flusher.Flush()
		}
	}
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `{}`
	}
	return string(b)
}
