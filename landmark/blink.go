package landmark

import (
	"fmt"
	"math"
)

type Phase int

const (
	PhaseOpen Phase = iota
	PhaseAccumulating
)

func (p Phase) String() string {
	switch p {
	case PhaseOpen:
		return "open"
	case PhaseAccumulating:
		return "accumulating"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// BlinkState is the only per-stream state of the metrics engine.
type BlinkState struct {
	ConsecutiveLowFrames      int
	TotalBlinks               int
	ClosedThreshold           float64
	RequiredConsecutiveFrames int
}

// Debouncer turns a stream of combined eye ratios into blink events. It must be
// fed exactly once per frame, in capture order, and is not safe for concurrent
// use.
type Debouncer struct {
	state BlinkState
}

func NewDebouncer(closedThreshold float64, requiredConsecutiveFrames int) (*Debouncer, error) {
	if requiredConsecutiveFrames < 1 {
		return nil, fmt.Errorf("requiredConsecutiveFrames must be >= 1, got %d", requiredConsecutiveFrames)
	}
	if !finite(closedThreshold) || closedThreshold <= 0 {
		return nil, fmt.Errorf("closedThreshold must be a positive number, got %v", closedThreshold)
	}
	return &Debouncer{state: BlinkState{
		ClosedThreshold:           closedThreshold,
		RequiredConsecutiveFrames: requiredConsecutiveFrames,
	}}, nil
}

// Update applies one frame. A ratio at or below the threshold extends the closed
// run; once the run reaches RequiredConsecutiveFrames a blink is counted and the
// run starts over, so a long closure counts once per full window. NaN ratios
// leave the state untouched.
func (d *Debouncer) Update(ratio float64) bool {
	if math.IsNaN(ratio) {
		return false
	}
	s := &d.state
	if ratio > s.ClosedThreshold {
		s.ConsecutiveLowFrames = 0
		return false
	}
	s.ConsecutiveLowFrames++
	if s.ConsecutiveLowFrames >= s.RequiredConsecutiveFrames {
		s.TotalBlinks++
		s.ConsecutiveLowFrames = 0
		return true
	}
	return false
}

func (d *Debouncer) Reset() {
	d.state.ConsecutiveLowFrames = 0
	d.state.TotalBlinks = 0
}

func (d *Debouncer) State() BlinkState { return d.state }

func (d *Debouncer) Phase() Phase {
	if d.state.ConsecutiveLowFrames == 0 {
		return PhaseOpen
	}
	return PhaseAccumulating
}
