package coordinator

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var defaultTimeslice = Timeslice{
	Guaranteed:    400 * time.Millisecond,
	InComm:        100 * time.Millisecond,
	CheckInterval: time.Millisecond,
}

func TestNext(t *testing.T) {
	ms := time.Millisecond
	cases := []struct {
		name     string
		phase    Phase
		elapsed  time.Duration
		inFlight int64
		want     Phase
		changed  bool
	}{
		{"running quiet before in-comm", Running, 99 * ms, 0, Running, false},
		{"running quiet at in-comm", Running, 100 * ms, 0, Suspended, true},
		{"running negative counter counts as quiet", Running, 100 * ms, -2, Suspended, true},
		{"running busy at in-comm", Running, 100 * ms, 1, Running, false},
		{"running busy before guaranteed", Running, 399 * ms, 5, Running, false},
		{"running busy at guaranteed", Running, 400 * ms, 5, Suspended, true},
		{"suspended before dwell", Suspended, 99 * ms, 0, Suspended, false},
		{"suspended at dwell", Suspended, 100 * ms, 0, Running, true},
		{"suspended at dwell while busy", Suspended, 100 * ms, 3, Running, true},
	}
	for _, c := range cases {
		got, changed := defaultTimeslice.Next(c.phase, c.elapsed, c.inFlight)
		assert.Equal(t, c.want, got, c.name)
		assert.Equal(t, c.changed, changed, c.name)
	}
}

func TestNextDisabled(t *testing.T) {
	ts := defaultTimeslice
	ts.Guaranteed = -time.Millisecond
	assert.True(t, ts.Disabled())
	for _, phase := range []Phase{Running, Suspended} {
		for _, inFlight := range []int64{-1, 0, 1} {
			got, changed := ts.Next(phase, time.Hour, inFlight)
			assert.Equal(t, phase, got)
			assert.False(t, changed)
		}
	}
}

func TestCommCounterConcurrent(t *testing.T) {
	var c CommCounter
	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); c.Begin() }()
	go func() { defer wg.Done(); c.Begin() }()
	go func() { defer wg.Done(); c.End() }()
	wg.Wait()
	assert.Equal(t, int64(1), c.Load())
}

func TestCommCounterManyGoroutines(t *testing.T) {
	var c CommCounter
	var wg sync.WaitGroup
	for i := 0; i < 1000; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); c.Begin() }()
		go func() { defer wg.Done(); c.End() }()
	}
	wg.Wait()
	assert.Equal(t, int64(0), c.Load())

	// unmatched ends go negative without complaint
	c.End()
	c.End()
	assert.Equal(t, int64(-2), c.Load())
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "Running", Running.String())
	assert.Equal(t, "Suspended", Suspended.String())
	assert.Equal(t, "Phase(7)", Phase(7).String())
}
