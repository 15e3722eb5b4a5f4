package testutil

import "sync"

// DeterministicClock provides a thread-safe monotonic logical clock for tests.
//
// Unlike engine.Clock, DeterministicClock can be reset, so the same scenario
// can run several times with identical seq values.
//
// Implements engine.Sequencer.
type DeterministicClock struct {
	mu    sync.Mutex
	seq   int64
	start int64
}

// NewDeterministicClock creates a new deterministic clock starting at 0.
//
// The first call to Next() returns 1.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{seq: 0}
}

// NewDeterministicClockAt creates a deterministic clock that continues a
// step log whose last seq is start, the way engine.Resume does.
//
// The first call to Next() returns start+1. Reset returns to start.
func NewDeterministicClockAt(start int64) *DeterministicClock {
	return &DeterministicClock{seq: start, start: start}
}

// Next increments and returns the next sequence number.
func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the current sequence number without incrementing.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset rewinds the clock to where it started.
//
// After Reset(), the next call to Next() returns start+1.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = c.start
}
