package entity

import (
	"fmt"

	"github.com/l1jgo/simcore/internal/component"
	"github.com/l1jgo/simcore/internal/core/id"
)

// FromPlayer brings a persisted character into the world as a new entity.
// Transient state (velocity, action) starts zeroed; the entity faces East.
func FromPlayer(eid id.ID[Entity], p component.Player) *Entity {
	kind := &Player{
		Name:     p.Name,
		PlayerID: p.ID,
		Map:      p.Position.Map,
	}
	return New(eid, kind,
		Vec2{p.Position.X, p.Position.Y},
		East,
		p.Skin,
		p.Stats,
		p.CurrentHealth,
	)
}

// ToPlayer extracts the persisted form of a player entity, capturing its
// current position and health. ok is false for non-player entities.
// Experience, gold and guild are not tracked in-world and come back zeroed.
func (e *Entity) ToPlayer() (p component.Player, ok bool) {
	kind, isPlayer := e.kind.(*Player)
	if !isPlayer {
		return component.Player{}, false
	}
	return component.Player{
		ID:            kind.PlayerID,
		Name:          kind.Name,
		Skin:          e.skin,
		CurrentHealth: e.health,
		Position: component.Position{
			X:   e.position.X,
			Y:   e.position.Y,
			Map: kind.Map,
		},
		Stats: e.baseStats,
	}, true
}

var fakeStats = component.Stats{
	Level:        1,
	Strength:     2,
	Dexterity:    3,
	Constitution: 4,
	Intelligence: 5,
	Precision:    6,
	Wisdom:       7,
}

// FakePlayerRecord makes up a character for development servers that run
// without a player database. Skins are drawn from skins.
func FakePlayerRecord(pid id.ID[component.Player], skins *id.Sequence) component.Player {
	var name string
	switch pid.Uint64() {
	case 0:
		name = "Vaelden"
	case 1:
		name = "Cendrais"
	case 2:
		name = "Nemikolh"
	default:
		name = fmt.Sprintf("Player%d", pid.Uint64())
	}
	return component.Player{
		ID:            pid,
		Name:          name,
		Skin:          skins.Next(),
		CurrentHealth: 100,
		Position:      component.Position{X: 0, Y: 0, Map: id.Forge[component.Map](1)},
		Stats:         fakeStats,
	}
}

// FakeMonster makes a default invoked entity at (1,1) facing South.
func FakeMonster(eid id.ID[Entity], skins *id.Sequence) *Entity {
	return New(eid, &Invoked{}, Vec2{1, 1}, South, skins.Next(), fakeStats, 100)
}
