package engine

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Sequencer hands out strictly increasing step sequence numbers.
// Implemented by Clock (production) and testutil.DeterministicClock (tests).
type Sequencer interface {
	Next() int64
	Current() int64
}

// Clock is the monotonic logical clock for step ordering.
//
// All steps are stamped with a strictly increasing seq number from this
// clock. This ensures:
// - Deterministic ordering (no wall-clock race conditions)
// - Replay produces identical order
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific sequence number.
// Used to resume from the last seq in the step log.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// SeqLog reports the highest seq recorded in a step log.
// Implemented by *store.Store.
type SeqLog interface {
	LastSeq(ctx context.Context) (int64, error)
}

// ResumeClock returns a clock whose next seq follows the last one in log,
// so steps appended after a restart never collide with recorded ones.
func ResumeClock(ctx context.Context, log SeqLog) (*Clock, error) {
	last, err := log.LastSeq(ctx)
	if err != nil {
		return nil, fmt.Errorf("resume clock: %w", err)
	}
	if last < 0 {
		return nil, fmt.Errorf("resume clock: step log reports negative seq %d", last)
	}
	return NewClockAt(last), nil
}

// Next returns the next sequence number and increments the clock.
// Calls are linearizable - each call returns a unique, increasing value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
