package transform

import "sync/atomic"

// Sequence issues strictly increasing identifiers for outbound posts.
//
// One Sequence is shared by every format stage in the process and injected
// through their constructors; identifiers are monotonic for the process
// lifetime and safe to draw from concurrent messages. They are not persisted
// across restarts.
type Sequence struct {
	counter atomic.Int64
}

// NewSequence creates a Sequence starting at 1.
func NewSequence() *Sequence {
	return &Sequence{}
}

// Next returns the next identifier.
func (s *Sequence) Next() int64 {
	return s.counter.Add(1)
}
