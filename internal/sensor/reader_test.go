package sensor

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/claude/anchor/internal/motion"
	"github.com/google/go-cmp/cmp"
	"go.bug.st/serial"
)

type sliceFeed struct {
	got []motion.Sample
}

func (f *sliceFeed) Publish(samples ...motion.Sample) int {
	f.got = append(f.got, samples...)
	return 1
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestParseLine covers well-formed readings and the rejected shapes.
func TestParseLine(t *testing.T) {
	tests := []struct {
		line    string
		want    motion.Sample
		wantErr bool
	}{
		{"0,0,9.81", motion.Sample{Z: 9.81}, false},
		{" -1.5 , 2 ,3e-1", motion.Sample{X: -1.5, Y: 2, Z: 0.3}, false},
		{"1,2", motion.Sample{}, true},
		{"1,2,3,4", motion.Sample{}, true},
		{"a,b,c", motion.Sample{}, true},
		{"NaN,0,0", motion.Sample{}, true},
		{"0,+Inf,0", motion.Sample{}, true},
	}
	for _, tt := range tests {
		got, err := ParseLine(tt.line)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLine(%q) error = %v, wantErr %v", tt.line, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLine(%q) = %+v, want %+v", tt.line, got, tt.want)
		}
	}
}

// TestReaderPublishes verifies good lines are published in order and bad ones counted.
func TestReaderPublishes(t *testing.T) {
	in := "# header\n0,0,9.81\n\ngarbage\n1,0,9.81\r\n"
	feed := &sliceFeed{}
	stats, err := NewReader(strings.NewReader(in), feed, discard()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []motion.Sample{{Z: 9.81}, {X: 1, Z: 9.81}}
	if diff := cmp.Diff(want, feed.got); diff != "" {
		t.Errorf("published (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(Stats{Lines: 3, Published: 2, Skipped: 1}, stats); diff != "" {
		t.Errorf("stats (-want +got):\n%s", diff)
	}
}

// TestReaderCancelled verifies a cancelled context stops the loop.
func TestReaderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	feed := &sliceFeed{}
	if _, err := NewReader(strings.NewReader("0,0,1\n"), feed, discard()).Run(ctx); err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if len(feed.got) != 0 {
		t.Errorf("published %d samples after cancel", len(feed.got))
	}
}

// TestPortOptions verifies defaults, normalization and the serial mode mapping.
func TestPortOptions(t *testing.T) {
	opts, err := PortOptions{Parity: "even", StopBits: 2}.Normalize()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(PortOptions{BaudRate: 115200, DataBits: 8, StopBits: 2, Parity: "E"}, opts); diff != "" {
		t.Errorf("normalized (-want +got):\n%s", diff)
	}

	mode, err := PortOptions{BaudRate: 9600, Parity: "O"}.SerialMode()
	if err != nil {
		t.Fatal(err)
	}
	if mode.BaudRate != 9600 || mode.DataBits != 8 || mode.StopBits != serial.OneStopBit || mode.Parity != serial.OddParity {
		t.Errorf("mode = %+v", mode)
	}

	for _, bad := range []PortOptions{{DataBits: 9}, {StopBits: 3}, {Parity: "M"}} {
		if _, err := bad.Normalize(); err == nil {
			t.Errorf("%+v accepted", bad)
		}
	}
}
