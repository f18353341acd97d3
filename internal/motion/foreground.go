package motion

// ForegroundMonitor turns host visibility changes into violations.
// Becoming visible again never corrects; recovery only comes from renewed
// stillness seen by the Classifier.
type ForegroundMonitor struct {
	armed bool
}

// NewForegroundMonitor creates a disarmed monitor.
func NewForegroundMonitor() *ForegroundMonitor {
	return &ForegroundMonitor{}
}

// Arm starts monitoring.
func (m *ForegroundMonitor) Arm() { m.armed = true }

// Disarm stops monitoring. Safe to call repeatedly.
func (m *ForegroundMonitor) Disarm() { m.armed = false }

// Armed reports whether visibility changes are being watched.
func (m *ForegroundMonitor) Armed() bool { return m.armed }

// OnVisibilityChange returns Violation when the surface is hidden while
// monitoring, and None otherwise.
func (m *ForegroundMonitor) OnVisibilityChange(hidden bool) Edge {
	if m.armed && hidden {
		return Violation
	}
	return None
}
