// Package history holds the most recent measurement samples in a
// fixed-capacity ring buffer shared between the acquisition loop and
// any number of readers.
package history

import (
	"sync"

	"codeberg.org/mutker/ironmon/internal/errors"
)

// Sample is one decoded measurement. Immutable once pushed.
type Sample struct {
	// Elapsed is seconds since the start of the sample's connection epoch.
	Elapsed     float64
	Temperature float64
	Power       float64
	// Epoch identifies the connection the sample was read on. After a
	// reconnect the buffer may hold samples from more than one epoch;
	// readers segment on it instead of the buffer being cleared.
	Epoch uint64
}

// Store is a fixed-capacity ring buffer of samples. A single writer
// pushes, any reader may snapshot. Capacity never changes after New.
type Store struct {
	mu    sync.RWMutex
	buf   []Sample
	head  int // index of the oldest sample
	count int
}

func New(capacity int) (*Store, error) {
	if capacity <= 0 {
		return nil, errors.New().WithData(ErrInvalidCapacity, capacity)
	}

	return &Store{
		buf: make([]Sample, capacity),
	}, nil
}

// Push appends one sample, evicting the oldest when full. O(1).
func (s *Store) Push(sample Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.count < len(s.buf) {
		s.buf[(s.head+s.count)%len(s.buf)] = sample
		s.count++
		return
	}

	s.buf[s.head] = sample
	s.head = (s.head + 1) % len(s.buf)
}

// Snapshot returns a copy of the current contents, oldest first. The
// copy is taken under the lock so a concurrent Push can never tear it.
func (s *Store) Snapshot() []Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Sample, s.count)
	for i := 0; i < s.count; i++ {
		out[i] = s.buf[(s.head+i)%len(s.buf)]
	}

	return out
}

// Last returns the most recent sample, if any.
func (s *Store) Last() (Sample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.count == 0 {
		return Sample{}, false
	}

	return s.buf[(s.head+s.count-1)%len(s.buf)], true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

func (s *Store) Cap() int {
	return len(s.buf)
}
