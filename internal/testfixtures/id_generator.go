package testfixtures

import "sync"

// Sequence hands out increasing int64 identifiers for in-memory records.
type Sequence struct {
	mu   sync.Mutex
	last int64
}

// NewSequence returns a sequence whose first value is start+1.
func NewSequence(start int64) *Sequence {
	return &Sequence{last: start}
}

// Next returns the next identifier.
func (s *Sequence) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last++
	return s.last
}

// Reset makes the next identifier last+1.
func (s *Sequence) Reset(last int64) {
	s.mu.Lock()
	s.last = last
	s.mu.Unlock()
}
