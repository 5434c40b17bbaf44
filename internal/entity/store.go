package entity

import (
	"errors"
	"iter"

	"github.com/l1jgo/simcore/internal/core/id"
)

var (
	// ErrBorrowed is the panic value raised when the store is structurally
	// modified, or a second entity is lent out, while a View over it is
	// outstanding.
	ErrBorrowed = errors.New("entity store modified or re-borrowed while a view is outstanding")
	// ErrViewExpired is the panic value raised when a View is used after
	// the scope that produced it has ended.
	ErrViewExpired = errors.New("entity view used outside its scope")
)

// Store is the ordered table of all entities of one instance.
//
// Lookup is a linear scan: instances hold few entities, and slot-addressed
// views need a contiguous table. Order only matters for a single pass; it
// does not track creation order after removals.
//
// Not safe for concurrent use. The owning instance executor is the only
// goroutine that touches it.
type Store struct {
	entities []*Entity
	borrows  int
	lent     int            // position held by the outstanding borrow, valid while borrows > 0
	pending  []id.ID[Entity] // deferred removals, flushed after an aliasing pass
}

func NewStore() *Store {
	return &Store{
		entities: make([]*Entity, 0, 32),
	}
}

// Len returns the number of entities.
func (s *Store) Len() int {
	return len(s.entities)
}

// Push appends an entity. The caller guarantees its ID is not already live.
func (s *Store) Push(e *Entity) {
	s.mustNotBeBorrowed()
	s.entities = append(s.entities, e)
}

// Remove takes the entity out of the table and returns it, or nil if absent.
// Later entities shift down by one position.
func (s *Store) Remove(eid id.ID[Entity]) *Entity {
	s.mustNotBeBorrowed()
	p, ok := s.position(eid)
	if !ok {
		return nil
	}
	e := s.entities[p]
	copy(s.entities[p:], s.entities[p+1:])
	s.entities[len(s.entities)-1] = nil
	s.entities = s.entities[:len(s.entities)-1]
	return e
}

// Get returns the entity with the given ID, or nil. During a WithRest or
// Primaries pass the lent entity is not reachable through Get.
func (s *Store) Get(eid id.ID[Entity]) *Entity {
	p, ok := s.position(eid)
	if !ok || (s.borrows > 0 && p == s.lent) {
		return nil
	}
	return s.entities[p]
}

// All iterates the entities in table order.
func (s *Store) All() iter.Seq[*Entity] {
	return func(yield func(*Entity) bool) {
		for _, e := range s.entities {
			if !yield(e) {
				return
			}
		}
	}
}

// WithRest calls fn with the entity eid and a View of every other entity.
// The view is only valid until fn returns. Returns false, without calling
// fn, if eid is not in the table.
func (s *Store) WithRest(eid id.ID[Entity], fn func(e *Entity, rest *View)) bool {
	p, ok := s.position(eid)
	if !ok {
		return false
	}
	s.visit(p, func(e *Entity, rest *View) bool {
		fn(e, rest)
		return true
	})
	return true
}

// Primaries makes each entity the primary once, in table order, yielding it
// together with a View of every other entity. Each view expires when the
// loop body that received it finishes.
//
//	for e, rest := range store.Primaries() {
//		for other := range rest.All() { ... }
//	}
func (s *Store) Primaries() iter.Seq2[*Entity, *View] {
	return func(yield func(*Entity, *View) bool) {
		for p := 0; p < len(s.entities); p++ {
			if !s.visit(p, yield) {
				return
			}
		}
	}
}

// MarkForRemoval queues eid for removal by the next FlushRemovals. Allowed
// while views are outstanding.
func (s *Store) MarkForRemoval(eid id.ID[Entity]) {
	for _, queued := range s.pending {
		if queued == eid {
			return
		}
	}
	s.pending = append(s.pending, eid)
}

// FlushRemovals removes every queued entity and returns those that were
// still present.
func (s *Store) FlushRemovals() []*Entity {
	s.mustNotBeBorrowed()
	if len(s.pending) == 0 {
		return nil
	}
	removed := make([]*Entity, 0, len(s.pending))
	for _, eid := range s.pending {
		if e := s.Remove(eid); e != nil {
			removed = append(removed, e)
		}
	}
	s.pending = s.pending[:0]
	return removed
}

// visit borrows position p for the duration of fn. Only one slot may be
// lent at a time: the live View already reaches every other slot, so any
// second borrow would hand out an entity twice.
func (s *Store) visit(p int, fn func(*Entity, *View) bool) bool {
	s.mustNotBeBorrowed()
	v := &View{store: s, excluded: p, live: true}
	s.borrows++
	s.lent = p
	defer func() {
		v.live = false
		s.borrows--
	}()
	return fn(s.entities[p], v)
}

func (s *Store) position(eid id.ID[Entity]) (int, bool) {
	for p, e := range s.entities {
		if e.id == eid {
			return p, true
		}
	}
	return 0, false
}

func (s *Store) mustNotBeBorrowed() {
	if s.borrows > 0 {
		panic(ErrBorrowed)
	}
}
