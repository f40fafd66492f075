package engine

import "sync/atomic"

// Sequencer stamps folded actions with a strictly increasing seq.
// Implemented by Clock (production) and testutil.DeterministicClock (tests).
type Sequencer interface {
	Next() int64
	Current() int64
}

// Clock is the monotonic logical clock that stamps folded actions.
//
// Every folded action gets a strictly increasing seq, in fold order. Seq is
// what the journal orders by; wall-clock time is never used for ordering.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations),
// although only the drainer calls Next.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at a specific sequence number.
// Used to continue numbering after the last seq already in a journal.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
