package session

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Duration bounds for one session.
const (
	MinDurationSeconds = 60
	MaxDurationSeconds = 7200

	DefaultDurationSeconds = 25 * 60
	DefaultWarningSeconds  = 5
)

// Config is fixed for the lifetime of one session.
type Config struct {
	DurationSeconds int    `json:"duration_seconds"`
	SessionType     string `json:"session_type"`
	StrictMode      bool   `json:"strict_mode"`
}

// NewConfig builds a Config, clamping the duration into
// [MinDurationSeconds, MaxDurationSeconds].
func NewConfig(durationSeconds int, sessionType string, strict bool) Config {
	return Config{
		DurationSeconds: ClampDuration(durationSeconds),
		SessionType:     strings.TrimSpace(sessionType),
		StrictMode:      strict,
	}
}

// DurationMinutes is the whole-minute length recorded for the session.
func (c Config) DurationMinutes() int {
	return c.DurationSeconds / 60
}

// ClampDuration bounds seconds to the valid session range.
func ClampDuration(seconds int) int {
	return min(max(seconds, MinDurationSeconds), MaxDurationSeconds)
}

// ParseDurationMinutes converts user input in minutes to clamped seconds.
// Only the leading integer is read, so "25.5" and "25min" both mean 25.
// Input that does not start with a number maps to the lower bound.
func ParseDurationMinutes(input string) int {
	minutes, err := strconv.Atoi(leadingInt(strings.TrimSpace(input)))
	switch {
	case errors.Is(err, strconv.ErrRange):
		// Atoi saturates at the int bounds; the clamp below does the rest.
	case err != nil:
		return MinDurationSeconds
	}
	// Bound before multiplying so huge inputs cannot overflow.
	minutes = min(max(minutes, MinDurationSeconds/60), MaxDurationSeconds/60)
	return ClampDuration(minutes * 60)
}

// leadingInt returns the optional sign and digits at the start of s.
func leadingInt(s string) string {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	start := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == start {
		return ""
	}
	return s[:i]
}

// FormatClock renders seconds as mm:ss.
func FormatClock(seconds int) string {
	seconds = max(seconds, 0)
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
