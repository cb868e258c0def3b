package clock

import "time"

// Clock abstracts time observation so expiry checks are testable. Every
// implementation returns UTC; timezone-dependent comparisons are a bug class
// this engine refuses to have.
type Clock interface {
	Now() time.Time
}

// Real is a Clock backed by the system clock.
type Real struct{}

// Now returns the current time in UTC.
func (Real) Now() time.Time { return time.Now().UTC() }

// Mock is a Clock that returns a controllable time.
type Mock struct {
	T time.Time
}

// Now returns the fixed time in UTC.
func (m *Mock) Now() time.Time { return m.T.UTC() }

// Advance moves the mock clock forward.
func (m *Mock) Advance(d time.Duration) { m.T = m.T.Add(d) }
