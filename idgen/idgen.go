// Package idgen provides sequential identifiers for pulses.
package idgen

import "sync/atomic"

// Generator produces unique, strictly increasing identifiers.
type Generator interface {
	// Next returns the next identifier.
	Next() uint64

	// Last returns the most recently emitted identifier, or the starting
	// point if none has been emitted.
	Last() uint64
}

// New returns a generator whose first emitted ID is 1.
func New() Generator {
	return &sequence{}
}

// StartingAfter returns a generator whose first emitted ID is last+1. It is
// used when a clock resumes a lineage of pulses.
func StartingAfter(last uint64) Generator {
	s := &sequence{}
	s.last.Store(last)

	return s
}

type sequence struct {
	last atomic.Uint64
}

func (s *sequence) Next() uint64 {
	return s.last.Add(1)
}

func (s *sequence) Last() uint64 {
	return s.last.Load()
}
