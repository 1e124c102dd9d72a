package aggregate

import "github.com/Sternrassler/places-scout/pkg/places"

// CandidateSet is an insertion-ordered set of candidates keyed by place ID.
// It is not safe for concurrent use.
type CandidateSet struct {
	index map[string]int
	items []places.Candidate
}

// NewCandidateSet returns an empty set sized for capacity entries.
func NewCandidateSet(capacity int) *CandidateSet {
	if capacity < 0 {
		capacity = 0
	}
	return &CandidateSet{
		index: make(map[string]int, capacity),
		items: make([]places.Candidate, 0, capacity),
	}
}

// Add inserts c unless its ID is already present. It reports whether c was
// inserted; an existing entry is never overwritten.
func (s *CandidateSet) Add(c places.Candidate) bool {
	if _, ok := s.index[c.ID]; ok {
		return false
	}
	s.index[c.ID] = len(s.items)
	s.items = append(s.items, c)
	return true
}

// Has reports whether id is in the set.
func (s *CandidateSet) Has(id string) bool {
	_, ok := s.index[id]
	return ok
}

// Len returns the number of candidates in the set.
func (s *CandidateSet) Len() int {
	return len(s.items)
}

// Candidates returns up to limit candidates in insertion order. A limit <= 0
// returns all of them. The returned slice is a copy.
func (s *CandidateSet) Candidates(limit int) []places.Candidate {
	n := len(s.items)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]places.Candidate, n)
	copy(out, s.items[:n])
	return out
}
