package docset

import (
	"errors"
	"fmt"
	"iter"

	"github.com/RoaringBitmap/roaring/v2"
)

// ErrOutOfRange is returned when a document id is not below the set's universe.
var ErrOutOfRange = errors.New("document id out of range")

// Set is a set of document ids in [0, Universe()).
// It wraps the official roaring implementation.
//
// There is no Remove: once populated a Set only grows.
type Set struct {
	rb       *roaring.Bitmap
	universe uint32
}

// New creates an empty set for ids in [0, universe).
func New(universe uint32) *Set {
	return &Set{
		rb:       roaring.New(),
		universe: universe,
	}
}

// FromSlice bulk-loads a set from an unordered id slice.
// Duplicates are allowed.
func FromSlice(universe uint32, ids []uint32) (*Set, error) {
	for _, id := range ids {
		if id >= universe {
			return nil, outOfRange(id, universe)
		}
	}

	s := New(universe)
	s.rb.AddMany(ids)
	return s, nil
}

// FromSeq bulk-loads a set from an unordered id sequence.
func FromSeq(universe uint32, ids iter.Seq[uint32]) (*Set, error) {
	s := New(universe)
	for id := range ids {
		if err := s.Add(id); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func outOfRange(id, universe uint32) error {
	return fmt.Errorf("%w: id %d, universe %d", ErrOutOfRange, id, universe)
}

// Universe returns the exclusive upper bound for ids in the set.
func (s *Set) Universe() uint32 {
	if s == nil {
		return 0
	}
	return s.universe
}

// Add adds a document id to the set.
func (s *Set) Add(id uint32) error {
	if id >= s.universe {
		return outOfRange(id, s.universe)
	}
	s.rb.Add(id)
	return nil
}

// Contains checks if a document id is in the set.
func (s *Set) Contains(id uint32) bool {
	if s == nil {
		return false
	}
	return s.rb.Contains(id)
}

// IsEmpty returns true if the set is empty.
func (s *Set) IsEmpty() bool {
	return s == nil || s.rb.IsEmpty()
}

// Cardinality returns the number of documents in the set.
func (s *Set) Cardinality() uint64 {
	if s == nil {
		return 0
	}
	return s.rb.GetCardinality()
}

// And returns the intersection of s and other as a new set.
// Neither operand is modified.
func (s *Set) And(other *Set) *Set {
	universe := min(s.Universe(), other.Universe())
	if s == nil || other == nil {
		return New(universe)
	}
	return &Set{
		rb:       roaring.And(s.rb, other.rb),
		universe: universe,
	}
}

// AndCardinality returns the size of the intersection without materializing it.
func (s *Set) AndCardinality(other *Set) uint64 {
	if s == nil || other == nil {
		return 0
	}
	return s.rb.AndCardinality(other.rb)
}

// Or returns the union of s and other as a new set.
func (s *Set) Or(other *Set) *Set {
	universe := max(s.Universe(), other.Universe())
	switch {
	case s == nil && other == nil:
		return New(universe)
	case s == nil:
		return &Set{rb: other.rb.Clone(), universe: universe}
	case other == nil:
		return &Set{rb: s.rb.Clone(), universe: universe}
	}
	return &Set{
		rb:       roaring.Or(s.rb, other.rb),
		universe: universe,
	}
}

// Clone returns a deep copy of the set.
func (s *Set) Clone() *Set {
	return &Set{
		rb:       s.rb.Clone(),
		universe: s.universe,
	}
}

// Equal reports whether both sets have the same universe and members.
func (s *Set) Equal(other *Set) bool {
	if s == nil || other == nil {
		return s.IsEmpty() && other.IsEmpty() && s.Universe() == other.Universe()
	}
	return s.universe == other.universe && s.rb.Equals(other.rb)
}

// Iterator returns an ascending iterator over the set.
func (s *Set) Iterator() iter.Seq[uint32] {
	return func(yield func(uint32) bool) {
		if s == nil {
			return
		}
		it := s.rb.Iterator()
		for it.HasNext() {
			if !yield(it.Next()) {
				return
			}
		}
	}
}

// ToSlice returns the members in ascending order.
func (s *Set) ToSlice() []uint32 {
	if s == nil {
		return nil
	}
	return s.rb.ToArray()
}

// Optimize converts containers to run-length encoding where that is smaller.
// Call it before the set is shared; it rewrites internal containers.
func (s *Set) Optimize() {
	s.rb.RunOptimize()
}

// GetSizeInBytes returns the in-memory size of the set in bytes.
func (s *Set) GetSizeInBytes() uint64 {
	if s == nil {
		return 0
	}
	return s.rb.GetSizeInBytes()
}

// String returns a short description for logs.
func (s *Set) String() string {
	return fmt.Sprintf("docset{cardinality=%d, universe=%d}", s.Cardinality(), s.Universe())
}
