// Package motion turns raw device signals into anchor violation and
// correction edges.
//
// The Classifier smooths 3-axis acceleration with an exponentially weighted
// moving average and compares it to a baseline, the last confirmed resting
// position. Leaving the baseline emits one Violation; holding a new position
// for StillSamples consecutive readings re-anchors the baseline there and
// emits one Correction.
package motion

import "math"

// Default tuning for a ~60 Hz sample stream.
const (
	DefaultAlpha        = 0.18
	DefaultThreshold    = 0.55
	DefaultStillSamples = 60
)

// Sample is one instant of acceleration including gravity.
type Sample struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Edge is a transition into or out of the anchored state.
type Edge int

const (
	// None means the sample caused no transition.
	None Edge = iota
	// Violation means the user left the anchored state.
	Violation
	// Correction means the user re-stabilized in an anchored state.
	Correction
)

func (e Edge) String() string {
	switch e {
	case Violation:
		return "violation"
	case Correction:
		return "correction"
	default:
		return "none"
	}
}

// Params tunes a Classifier.
type Params struct {
	Alpha        float64
	Threshold    float64
	StillSamples int
}

// DefaultParams returns the stock tuning.
func DefaultParams() Params {
	return Params{
		Alpha:        DefaultAlpha,
		Threshold:    DefaultThreshold,
		StillSamples: DefaultStillSamples,
	}
}

// Classifier is not safe for concurrent use; the engine owns it.
type Classifier struct {
	params Params

	armed       bool
	initialized bool
	moving      bool
	stillCount  int
	smoothed    Sample
	baseline    Sample
}

// NewClassifier creates a disarmed classifier. Zero or invalid params fall
// back to the defaults field by field.
func NewClassifier(p Params) *Classifier {
	d := DefaultParams()
	if p.Alpha <= 0 || p.Alpha > 1 {
		p.Alpha = d.Alpha
	}
	if p.Threshold <= 0 {
		p.Threshold = d.Threshold
	}
	if p.StillSamples <= 0 {
		p.StillSamples = d.StillSamples
	}
	return &Classifier{params: p}
}

// Arm resets all state; the next sample becomes the baseline.
func (c *Classifier) Arm() {
	c.reset()
	c.armed = true
}

// Disarm drops all state. Safe to call repeatedly.
func (c *Classifier) Disarm() {
	c.reset()
}

// Armed reports whether samples are being classified.
func (c *Classifier) Armed() bool { return c.armed }

// Moving reports the current still/moving classification.
func (c *Classifier) Moving() bool { return c.moving }

func (c *Classifier) reset() {
	c.armed = false
	c.initialized = false
	c.moving = false
	c.stillCount = 0
	c.smoothed = Sample{}
	c.baseline = Sample{}
}

// Classify consumes one sample and returns the edge it triggers, if any.
// A disarmed classifier ignores samples.
func (c *Classifier) Classify(s Sample) Edge {
	if !c.armed {
		return None
	}
	if !c.initialized {
		c.baseline = s
		c.smoothed = s
		c.initialized = true
		return None
	}

	a := c.params.Alpha
	c.smoothed = Sample{
		X: c.smoothed.X*(1-a) + s.X*a,
		Y: c.smoothed.Y*(1-a) + s.Y*a,
		Z: c.smoothed.Z*(1-a) + s.Z*a,
	}

	if c.deviated() {
		c.stillCount = 0
		if !c.moving {
			c.moving = true
			return Violation
		}
		return None
	}

	c.stillCount++
	if c.moving && c.stillCount >= c.params.StillSamples {
		c.baseline = c.smoothed
		c.moving = false
		return Correction
	}
	return None
}

func (c *Classifier) deviated() bool {
	t := c.params.Threshold
	return math.Abs(c.smoothed.X-c.baseline.X) > t ||
		math.Abs(c.smoothed.Y-c.baseline.Y) > t ||
		math.Abs(c.smoothed.Z-c.baseline.Z) > t
}
