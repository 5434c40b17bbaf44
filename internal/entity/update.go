package entity

import (
	"time"

	"github.com/l1jgo/simcore/internal/core/id"
)

// DamageFunc computes the damage attacker deals to target. Zero is a miss.
type DamageFunc func(attacker, target *Entity) uint64

// DefaultDamage is used when no combat script is loaded.
func DefaultDamage(attacker, target *Entity) uint64 {
	atk := int64(attacker.baseStats.Strength)*2 + int64(attacker.baseStats.Level)
	def := int64(target.baseStats.Constitution)
	if dmg := atk - def; dmg > 1 {
		return uint64(dmg)
	}
	return 1
}

// Hit records one successful attack resolved during Update.
type Hit struct {
	Attacker id.ID[Entity]
	Target   id.ID[Entity]
	Damage   uint64
	Killed   bool
}

// Update advances every entity of s by one tick of length dt.
//
// Each entity in turn is the primary: attacks it starts this tick are
// resolved against the other entities overlapping its attack box, then it
// walks unless the move would push its hit box into another entity.
// Invoked entities brought to zero health are marked for removal; the
// caller flushes them once the pass is over.
func Update(s *Store, dt time.Duration, damage DamageFunc) []Hit {
	if damage == nil {
		damage = DefaultDamage
	}
	var hits []Hit
	seconds := float32(dt.Seconds())

	for e, rest := range s.Primaries() {
		if e.health == 0 {
			e.velocity = Vec2{}
			continue
		}

		if e.action.Striking() {
			box := e.AttackBox()
			for other := range rest.All() {
				if other.health == 0 || !box.Intersects(other.HitBox()) {
					continue
				}
				amount := damage(e, other)
				if amount == 0 {
					continue // miss
				}
				dealt := other.Damage(amount)
				killed := other.health == 0
				if killed && !other.IsPlayer() {
					s.MarkForRemoval(other.id)
				}
				hits = append(hits, Hit{Attacker: e.id, Target: other.id, Damage: dealt, Killed: killed})
			}
		}
		e.action.Tick()

		if e.action.State() != Walking {
			e.velocity = Vec2{}
			continue
		}
		e.velocity = e.action.Direction().Unit().Scale(e.derived.Speed)
		next := e.position.Add(e.velocity.Scale(seconds))
		if blocked(e, next, rest) {
			e.velocity = Vec2{}
			continue
		}
		e.position = next
	}
	return hits
}

// blocked reports whether moving e to next would make its hit box overlap
// an entity it does not already overlap.
func blocked(e *Entity, next Vec2, rest *View) bool {
	cur := e.HitBox()
	moved := e.hitBox.At(next)
	for other := range rest.All() {
		ob := other.HitBox()
		if moved.Intersects(ob) && !cur.Intersects(ob) {
			return true
		}
	}
	return false
}
