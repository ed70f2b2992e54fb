package testutil

import (
	"fmt"
	"sync"
)

// Sequence hands out "PREFIX-0001", "PREFIX-0002", ... in order. Its Next
// method satisfies the func() string id-generator hooks on the correlation
// engine and the ledger.
//
// Thread-safety: Next is safe for concurrent use.
type Sequence struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequence creates a sequence with the given id prefix.
func NewSequence(prefix string) *Sequence {
	return &Sequence{prefix: prefix}
}

// Next returns the next id in the sequence.
func (s *Sequence) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%s-%04d", s.prefix, s.n)
}

// Reset restarts the sequence; the next call to Next returns PREFIX-0001.
func (s *Sequence) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n = 0
}
