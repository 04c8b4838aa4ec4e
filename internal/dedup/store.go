// Package dedup accumulates extracted records and rejects repeats of the
// same logical item.
package dedup

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/BenjaminSRussell/shelfcrawl/internal/types"
)

const (
	defaultExpected = 100_000
	falsePositive   = 0.01
)

// Store is the ordered result set of a run. A bloom filter answers most
// negative lookups; a positive answer is confirmed by scanning the accepted
// records, so the filter never causes a wrong rejection.
type Store struct {
	mu      sync.Mutex
	records []types.Record
	seen    *bloom.BloomFilter
}

// New creates an empty store sized for expected identities.
func New(expected uint) *Store {
	if expected == 0 {
		expected = defaultExpected
	}
	return &Store{
		seen: bloom.NewWithEstimates(expected, falsePositive),
	}
}

// Offer appends r unless an accepted record has the same non-empty article
// and barcode. It reports whether r was accepted. Records without a full
// identity are always accepted.
func (s *Store) Offer(r types.Record) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := r.IdentityKey()
	if !ok {
		s.records = append(s.records, r)
		return true
	}

	if s.seen.TestString(key) && s.containsLocked(r) {
		return false
	}

	s.seen.AddString(key)
	s.records = append(s.records, r)
	return true
}

func (s *Store) containsLocked(r types.Record) bool {
	for i := range s.records {
		if s.records[i].SameItem(r) {
			return true
		}
	}
	return false
}

// Len returns the number of accepted records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Records returns a copy of the accepted records in insertion order.
func (s *Store) Records() []types.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Record, len(s.records))
	copy(out, s.records)
	return out
}
