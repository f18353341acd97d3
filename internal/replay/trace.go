package replay

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/claude/anchor/internal/motion"
)

// EventKind distinguishes trace records.
type EventKind int

const (
	KindMotion EventKind = iota
	KindVisibility
)

// Event is one trace record: a motion sample or a visibility change.
type Event struct {
	Kind   EventKind
	Sample motion.Sample
	Hidden bool
}

// ParseTrace reads a sensor trace. Each record is either
//
//	m,<x>,<y>,<z>
//	v,hidden|visible
//
// Blank lines and lines starting with # are ignored.
func ParseTrace(r io.Reader) ([]Event, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var events []Event
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading trace: %w", err)
		}
		line, _ := cr.FieldPos(0)

		ev, err := parseRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		events = append(events, ev)
	}
}

func parseRecord(rec []string) (Event, error) {
	switch strings.ToLower(strings.TrimSpace(rec[0])) {
	case "m":
		if len(rec) != 4 {
			return Event{}, fmt.Errorf("motion record needs 3 values, got %d", len(rec)-1)
		}
		var v [3]float64
		for i := range v {
			f, err := strconv.ParseFloat(strings.TrimSpace(rec[i+1]), 64)
			if err != nil {
				return Event{}, fmt.Errorf("parsing axis %d: %w", i, err)
			}
			v[i] = f
		}
		return Event{Kind: KindMotion, Sample: motion.Sample{X: v[0], Y: v[1], Z: v[2]}}, nil
	case "v":
		if len(rec) != 2 {
			return Event{}, fmt.Errorf("visibility record needs 1 value, got %d", len(rec)-1)
		}
		switch strings.ToLower(strings.TrimSpace(rec[1])) {
		case "hidden":
			return Event{Kind: KindVisibility, Hidden: true}, nil
		case "visible":
			return Event{Kind: KindVisibility}, nil
		default:
			return Event{}, fmt.Errorf("unknown visibility %q", rec[1])
		}
	default:
		return Event{}, fmt.Errorf("unknown record type %q", rec[0])
	}
}
