package entity

import (
	"fmt"
	"io"

	"github.com/l1jgo/simcore/internal/component"
	"github.com/l1jgo/simcore/internal/core/id"
)

const (
	DefaultSpeed        float32 = 10.0
	DefaultInvokedSpeed float32 = 5.0
)

var (
	defaultAttackBox     = Rect{Width: 0.5, Height: 0.5}
	defaultAttackOffsetX = Vec2{0.75, 0}
	defaultAttackOffsetY = Vec2{0, 1}
)

// Kind is the type-specific payload of an entity: *Player or *Invoked.
type Kind interface {
	kindName() string
}

// Player marks an entity controlled by a connected character.
type Player struct {
	Name     string
	PlayerID id.ID[component.Player]
	Map      id.ID[component.Map]
}

// Invoked marks a spawned non-player entity. Parent is a weak reference to
// the entity that spawned it (zero when none). It is never validated: the
// parent may have been removed since.
type Invoked struct {
	Parent id.ID[Entity]
}

func (*Player) kindName() string  { return "player" }
func (*Invoked) kindName() string { return "invoked" }

// Derived holds values computed from kind and base stats.
type Derived struct {
	Speed float32
}

// Entity is a live in-world actor.
// Owned by the entity Store of one instance and touched only from that
// instance's executor goroutine.
type Entity struct {
	id id.ID[Entity]

	kind        Kind
	position    Vec2
	velocity    Vec2
	orientation Direction
	skin        uint64
	health      uint64

	hitBox        Rect
	attackBox     Rect
	attackOffsetX Vec2
	attackOffsetY Vec2

	baseStats component.Stats
	derived   Derived

	action Action
}

// New builds an entity and computes its derived stats.
func New(eid id.ID[Entity], kind Kind, position Vec2, orientation Direction, skin uint64, stats component.Stats, health uint64) *Entity {
	e := &Entity{
		id:            eid,
		kind:          kind,
		position:      position,
		orientation:   orientation,
		skin:          skin,
		health:        health,
		hitBox:        DefaultHitBox,
		attackBox:     defaultAttackBox,
		attackOffsetX: defaultAttackOffsetX,
		attackOffsetY: defaultAttackOffsetY,
		baseStats:     stats,
	}
	e.RecomputeStats()
	return e
}

func (e *Entity) ID() id.ID[Entity]          { return e.id }
func (e *Entity) Kind() Kind                 { return e.kind }
func (e *Entity) Position() Vec2             { return e.position }
func (e *Entity) Velocity() Vec2             { return e.velocity }
func (e *Entity) Orientation() Direction     { return e.orientation }
func (e *Entity) Skin() uint64               { return e.skin }
func (e *Entity) Health() uint64             { return e.health }
func (e *Entity) BaseStats() component.Stats { return e.baseStats }
func (e *Entity) Derived() Derived           { return e.derived }
func (e *Entity) Action() Action             { return e.action }

// IsPlayer reports whether the entity is player-controlled.
func (e *Entity) IsPlayer() bool {
	_, ok := e.kind.(*Player)
	return ok
}

// MapID returns the map a player entity belongs to. ok is false for
// non-player entities.
func (e *Entity) MapID() (mapID id.ID[component.Map], ok bool) {
	if p, isPlayer := e.kind.(*Player); isPlayer {
		return p.Map, true
	}
	return 0, false
}

// RecomputeStats refreshes the derived stats from kind and base stats.
// Must be called after any change to either.
func (e *Entity) RecomputeStats() {
	switch e.kind.(type) {
	case *Player:
		e.derived.Speed = DefaultSpeed
	default:
		e.derived.Speed = DefaultInvokedSpeed
	}
}

// SetKind replaces the kind and recomputes derived stats.
func (e *Entity) SetKind(k Kind) {
	e.kind = k
	e.RecomputeStats()
}

// SetBaseStats replaces the base stats and recomputes derived stats.
func (e *Entity) SetBaseStats(s component.Stats) {
	e.baseStats = s
	e.RecomputeStats()
}

// Walk turns the entity towards d and starts walking. Returns false while
// an attack is in progress.
func (e *Entity) Walk(d Direction) bool {
	if !e.action.Walk(d) {
		return false
	}
	e.orientation = d
	return true
}

// Stop ends a walk.
func (e *Entity) Stop() {
	e.action.Stop()
	e.velocity = Vec2{}
}

// Attack starts an attack lasting cooldown ticks.
func (e *Entity) Attack(cooldown uint32) bool {
	if !e.action.Attack(cooldown) {
		return false
	}
	e.velocity = Vec2{}
	return true
}

// Damage removes up to n health and returns the amount actually removed.
func (e *Entity) Damage(n uint64) uint64 {
	if n > e.health {
		n = e.health
	}
	e.health -= n
	return n
}

// Teleport moves the entity without collision checks.
func (e *Entity) Teleport(p Vec2) {
	e.position = p
}

// HitBox is the entity's collision box at its current position.
func (e *Entity) HitBox() Box {
	return e.hitBox.At(e.position)
}

// AttackBox is the attack box projected in front of the entity.
func (e *Entity) AttackBox() Box {
	var offset Vec2
	switch e.orientation {
	case East:
		offset = e.attackOffsetX
	case West:
		offset = e.attackOffsetX.Scale(-1)
	case North:
		offset = e.attackOffsetY
	case South:
		offset = e.attackOffsetY.Scale(-1)
	}
	return e.attackBox.At(e.position.Add(offset))
}

// Snapshot is a read-only copy of the public state of an entity, used to
// build status payloads.
type Snapshot struct {
	ID          id.ID[Entity] `json:"id"`
	Kind        string        `json:"kind"`
	Name        string        `json:"name,omitempty"`
	PlayerID    uint64        `json:"player_id,omitempty"`
	MapID       uint64        `json:"map_id,omitempty"`
	Parent      uint64        `json:"parent,omitempty"`
	Position    Vec2          `json:"position"`
	Orientation Direction     `json:"orientation"`
	Skin        uint64        `json:"skin"`
	Health      uint64        `json:"pv"`
	Action      string        `json:"action"`
}

func (e *Entity) Snapshot() Snapshot {
	s := Snapshot{
		ID:          e.id,
		Kind:        e.kind.kindName(),
		Position:    e.position,
		Orientation: e.orientation,
		Skin:        e.skin,
		Health:      e.health,
		Action:      e.action.String(),
	}
	switch k := e.kind.(type) {
	case *Player:
		s.Name = k.Name
		s.PlayerID = k.PlayerID.Uint64()
		s.MapID = k.Map.Uint64()
	case *Invoked:
		s.Parent = k.Parent.Uint64()
	}
	return s
}

// Dump writes a human-readable description of the entity.
func (e *Entity) Dump(w io.Writer, indent string) error {
	if _, err := fmt.Fprintf(w, "%sEntity %s\n", indent, e.id); err != nil {
		return err
	}
	var err error
	switch k := e.kind.(type) {
	case *Player:
		_, err = fmt.Fprintf(w, "%sPlayer %s %s attached to map %s\n", indent, k.PlayerID, k.Name, k.Map)
	case *Invoked:
		if k.Parent.IsZero() {
			_, err = fmt.Fprintf(w, "%sInvoked entity\n", indent)
		} else {
			_, err = fmt.Fprintf(w, "%sInvoked entity attached to %s\n", indent, k.Parent)
		}
	}
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%s%v %v %s %s\n", indent, e.position, e.velocity, e.orientation, e.action); err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%sPV: %d\n", indent, e.health)
	return err
}
