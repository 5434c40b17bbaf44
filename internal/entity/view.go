package entity

import (
	"iter"

	"github.com/l1jgo/simcore/internal/core/id"
)

// View gives access to every entity of a Store except one excluded slot,
// whose entity is held by the caller at the same time. No method of a View
// ever returns the excluded entity.
//
// A View is only valid inside the callback or loop body that received it;
// any use afterwards panics with ErrViewExpired. While a View is live the
// store refuses Push, Remove and FlushRemovals.
type View struct {
	store    *Store
	excluded int
	live     bool
}

// Len is the number of entities reachable through the view.
func (v *View) Len() int {
	v.check()
	return len(v.store.entities) - 1
}

// Excluded is the table position hidden by the view.
func (v *View) Excluded() int {
	return v.excluded
}

// At returns the entity at table position p, or nil if p is the excluded
// position or out of range.
func (v *View) At(p int) *Entity {
	v.check()
	if p == v.excluded || p < 0 || p >= len(v.store.entities) {
		return nil
	}
	return v.store.entities[p]
}

// Position finds the table position of eid among the visible entities.
// The scan runs over the remainder with the excluded slot skipped, so
// indices at or past the gap are shifted back by one to address the table.
func (v *View) Position(eid id.ID[Entity]) (int, bool) {
	v.check()
	i := 0
	for e := range v.All() {
		if e.id == eid {
			if i >= v.excluded {
				return i + 1, true
			}
			return i, true
		}
		i++
	}
	return 0, false
}

// Lookup returns the visible entity with the given ID, or nil. Looking up
// the excluded entity always yields nil.
func (v *View) Lookup(eid id.ID[Entity]) *Entity {
	p, ok := v.Position(eid)
	if !ok {
		return nil
	}
	return v.At(p)
}

// All iterates the visible entities in table order.
func (v *View) All() iter.Seq[*Entity] {
	return func(yield func(*Entity) bool) {
		v.check()
		for p, e := range v.store.entities {
			if p == v.excluded {
				continue
			}
			if !yield(e) {
				return
			}
			v.check()
		}
	}
}

func (v *View) check() {
	if !v.live {
		panic(ErrViewExpired)
	}
}
