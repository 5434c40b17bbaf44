package event

import (
	"github.com/l1jgo/simcore/internal/core/id"
	"github.com/l1jgo/simcore/internal/entity"
)

// EntitySpawned is emitted when an entity enters an instance.
type EntitySpawned struct {
	Entity id.ID[entity.Entity]
	Player bool
}

// EntityRemoved is emitted when an entity leaves an instance.
type EntityRemoved struct {
	Entity id.ID[entity.Entity]
	Reason string
}

// EntityHit is emitted for every landed attack.
type EntityHit struct {
	entity.Hit
}
