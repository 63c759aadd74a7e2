package syncer

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Clock numbers the change-sets of one editing session. Each submitted
// change-set takes the next value, so seq orders a session's change-sets
// without relying on wall time.
//
// A change-set id covers the annotation, session, seq and content, and the
// store drops an id it has already logged. A session that is reopened must
// therefore continue after the last seq it logged: restarting at 1 gives a
// payload equal to an earlier seq-1 payload the same id, and the edit is
// dropped as a retry. ResumeClock reads that position from the log.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock for a fresh session; the first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock whose first Next returns last+1.
func NewClockAt(last int64) *Clock {
	c := &Clock{}
	c.seq.Store(last)
	return c
}

// ResumeClock creates a clock that continues session where its logged
// change-sets against annotationID leave off.
func ResumeClock(ctx context.Context, r SeqReader, annotationID, session string) (*Clock, error) {
	last, err := r.LastSeq(ctx, annotationID, session)
	if err != nil {
		return nil, fmt.Errorf("resume session %s: %w", session, err)
	}
	return NewClockAt(last), nil
}

// Next stamps the next change-set.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the seq of the last stamped change-set.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
