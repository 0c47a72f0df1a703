package coordinator

import (
	"fmt"
	"sync/atomic"
	"time"
)

type Phase int

const (
	Running Phase = iota
	Suspended
)

func (p Phase) String() string {
	switch p {
	case Running:
		return "Running"
	case Suspended:
		return "Suspended"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Timeslice holds the co-scheduling bounds.
//
// A running job is suspended once it has run for Guaranteed, or earlier once
// it has run for InComm and no communication is in flight. A suspended job
// is resumed after InComm regardless of communication. A negative
// Guaranteed disables switching entirely.
type Timeslice struct {
	Guaranteed    time.Duration
	InComm        time.Duration
	CheckInterval time.Duration
}

func (ts Timeslice) Disabled() bool {
	return ts.Guaranteed < 0
}

func (ts Timeslice) String() string {
	return fmt.Sprintf("Timeslice: Guaranteed: %s, InComm: %s, CheckInterval: %s",
		ts.Guaranteed, ts.InComm, ts.CheckInterval)
}

// Next returns the phase the job should be in given how long it has been in
// phase and how many communication phases are in flight, and whether that is
// a transition. inFlight <= 0 counts as quiescent.
func (ts Timeslice) Next(phase Phase, elapsed time.Duration, inFlight int64) (Phase, bool) {
	if ts.Disabled() {
		return phase, false
	}
	switch phase {
	case Running:
		if elapsed >= ts.Guaranteed || (inFlight <= 0 && elapsed >= ts.InComm) {
			return Suspended, true
		}
	case Suspended:
		if elapsed >= ts.InComm {
			return Running, true
		}
	}
	return phase, false
}

// CommCounter counts CommBegin events not yet matched by a CommEnd, cluster
// wide. Lost, duplicated or reordered datagrams can drive it negative for a
// while; that is tolerated.
type CommCounter struct {
	n atomic.Int64
}

func (c *CommCounter) Begin() int64 { return c.n.Add(1) }
func (c *CommCounter) End() int64   { return c.n.Add(-1) }
func (c *CommCounter) Load() int64  { return c.n.Load() }
