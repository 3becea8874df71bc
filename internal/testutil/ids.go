package testutil

import (
	"fmt"
	"sync"
)

// IDSequence hands out replay ids of the form "<prefix>-<n>", starting at
// n = 1. Two sequences with the same prefix yield the same ids, so logs
// of repeated runs compare equal.
//
// Safe for concurrent use.
type IDSequence struct {
	mu     sync.Mutex
	prefix string
	n      int64
}

// NewIDSequence creates a sequence. An empty prefix becomes "replay".
func NewIDSequence(prefix string) *IDSequence {
	if prefix == "" {
		prefix = "replay"
	}
	return &IDSequence{prefix: prefix}
}

// Next returns the next id. It matches replay.WithIDGenerator.
func (s *IDSequence) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%s-%d", s.prefix, s.n)
}

// Issued returns how many ids were handed out since the last Reset.
func (s *IDSequence) Issued() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

// Reset starts the sequence over.
func (s *IDSequence) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n = 0
}
