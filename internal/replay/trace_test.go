package replay

import (
	"strings"
	"testing"

	"github.com/claude/anchor/internal/motion"
	"github.com/google/go-cmp/cmp"
)

// TestParseTrace verifies motion and visibility records, comments and
// blank lines.
func TestParseTrace(t *testing.T) {
	input := `# recorded on a desk
m,0,0,1
m, 0.01, -0.02, 0.98

V,Hidden
v,visible
`
	events, err := ParseTrace(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseTrace: %v", err)
	}
	want := []Event{
		{Kind: KindMotion, Sample: motion.Sample{Z: 1}},
		{Kind: KindMotion, Sample: motion.Sample{X: 0.01, Y: -0.02, Z: 0.98}},
		{Kind: KindVisibility, Hidden: true},
		{Kind: KindVisibility},
	}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

// TestParseTraceErrors verifies malformed records report their line.
func TestParseTraceErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"short motion", "m,1,2\n", "line 1"},
		{"bad float", "m,0,0,1\nm,0,x,1\n", "line 2"},
		{"bad visibility", "v,maybe\n", "unknown visibility"},
		{"unknown kind", "g,1\n", "unknown record type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTrace(strings.NewReader(tt.input))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}
