package modelpart

import (
	"fmt"
	"iter"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// EntitySet is an associative container of entities keyed by their positive
// integer id. It preserves insertion order, and it holds shared references: the
// same entity may be a member of many sets at once.
//
// The zero value is ready to use.
type EntitySet[T Identifiable] struct {
	order  []T
	index  map[int]int // id -> position in order
	member *roaring64.Bitmap
}

// Insert adds v to the set. Inserting an entity that is already a member is a
// no-op; inserting a different entity under an id that is already taken fails
// with ErrIdConflict. Ids must be positive.
func (s *EntitySet[T]) Insert(v T) error {
	id := v.ID()
	if id <= 0 {
		return fmt.Errorf("id %d: %w", id, ErrInvalidID)
	}
	if s.Contains(id) {
		if s.order[s.index[id]] != v {
			return fmt.Errorf("a different entity with id %d is already a member: %w", id, ErrIdConflict)
		}
		return nil
	}
	// Make the zero-value meaningful.
	if s.index == nil {
		s.index = make(map[int]int)
		s.member = roaring64.New()
	}
	s.index[id] = len(s.order)
	s.order = append(s.order, v)
	s.member.Add(uint64(id))
	return nil
}

// Get returns the member with the given id, or fails with ErrNotFound.
func (s *EntitySet[T]) Get(id int) (T, error) {
	if !s.Contains(id) {
		var zero T
		return zero, fmt.Errorf("id %d: %w", id, ErrNotFound)
	}
	return s.order[s.index[id]], nil
}

// Contains reports whether an entity with the given id is a member.
func (s *EntitySet[T]) Contains(id int) bool {
	return s.member != nil && id > 0 && s.member.Contains(uint64(id))
}

// Len returns the number of members.
func (s *EntitySet[T]) Len() int {
	return len(s.order)
}

// At returns the i'th member in insertion order; it panics if i is out of range.
func (s *EntitySet[T]) At(i int) T {
	return s.order[i]
}

// All iterates over the members in insertion order. The sequence may be ranged
// over any number of times; an empty set yields nothing.
func (s *EntitySet[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, v := range s.order {
			if !yield(v) {
				return
			}
		}
	}
}

// IDs returns the ids of all members as a bitmap. The bitmap is a copy; the
// caller may modify it freely.
func (s *EntitySet[T]) IDs() *roaring64.Bitmap {
	if s.member == nil {
		return roaring64.New()
	}
	return s.member.Clone()
}

// MaxID returns the largest member id, or zero if the set is empty.
func (s *EntitySet[T]) MaxID() int {
	if s.member == nil || s.member.IsEmpty() {
		return 0
	}
	return int(s.member.Maximum())
}
