package sim

import "sync/atomic"

// IDSequence hands out process-unique order ids. The book never generates
// ids itself; every order an operator or driver creates draws from one
// shared sequence.
type IDSequence struct {
	next atomic.Uint64
}

// NewIDSequence returns a sequence whose first id is start.
func NewIDSequence(start uint64) *IDSequence {
	s := &IDSequence{}
	s.next.Store(start)
	return s
}

func (s *IDSequence) Next() uint64 {
	return s.next.Add(1) - 1
}
