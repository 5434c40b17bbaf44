package component

import "github.com/l1jgo/simcore/internal/core/id"

// Map tags map identifiers.
type Map struct{}

// Stats are the seven raw attributes of a character.
type Stats struct {
	Level        int32 `json:"level"`
	Strength     int32 `json:"strength"`
	Dexterity    int32 `json:"dexterity"`
	Constitution int32 `json:"constitution"`
	Intelligence int32 `json:"intelligence"`
	Precision    int32 `json:"precision"`
	Wisdom       int32 `json:"wisdom"`
}

// Position is a point on a given map.
type Position struct {
	X   float32    `json:"x"`
	Y   float32    `json:"y"`
	Map id.ID[Map] `json:"map"`
}

// Player is the persisted form of a character.
// Live state is held by entity.Entity while in-world.
type Player struct {
	ID            id.ID[Player] `json:"id"`
	Name          string        `json:"name"`
	Skin          uint64        `json:"skin"`
	CurrentHealth uint64        `json:"current_pv"`
	Position      Position      `json:"position"`
	Experience    uint64        `json:"experience"`
	Gold          uint64        `json:"gold"`
	Guild         string        `json:"guild"`
	Stats         Stats         `json:"stats"`
}
