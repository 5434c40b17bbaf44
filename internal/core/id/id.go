package id

import (
	"strconv"
	"sync/atomic"
)

// ID is a 64-bit identifier tagged with the kind K of thing it names.
// An ID[Entity] and an ID[Instance] with the same value are different types
// and never compare equal. IDs are never derived from storage position.
type ID[K any] uint64

// Forge builds an ID from a raw value received from outside the process
// (database rows, packets, HTTP paths). The value is not validated.
func Forge[K any](v uint64) ID[K] {
	return ID[K](v)
}

// Parse decodes a base-10 identifier.
func Parse[K any](s string) (ID[K], error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return ID[K](v), nil
}

func (i ID[K]) Uint64() uint64 { return uint64(i) }
func (i ID[K]) IsZero() bool   { return i == 0 }
func (i ID[K]) String() string { return strconv.FormatUint(uint64(i), 10) }

// Sequence is a process-wide monotonic counter. It is created once at
// startup and injected into whatever needs fresh values, so tests can
// choose the starting point. Safe for concurrent use.
type Sequence struct {
	next atomic.Uint64
}

// NewSequence returns a sequence whose first value is start.
func NewSequence(start uint64) *Sequence {
	s := &Sequence{}
	s.next.Store(start)
	return s
}

// Next returns the current value and advances the sequence.
func (s *Sequence) Next() uint64 {
	return s.next.Add(1) - 1
}

// Peek returns the value the next call to Next will hand out.
func (s *Sequence) Peek() uint64 {
	return s.next.Load()
}

// Advance moves the sequence past v if it has not already passed it.
// Used at boot to skip identifiers already present in storage.
func (s *Sequence) Advance(v uint64) {
	for {
		cur := s.next.Load()
		if cur > v {
			return
		}
		if s.next.CompareAndSwap(cur, v+1) {
			return
		}
	}
}

// Next draws a fresh ID of kind K from s.
func Next[K any](s *Sequence) ID[K] {
	return ID[K](s.Next())
}
