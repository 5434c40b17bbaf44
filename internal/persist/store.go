package persist

import (
	"context"

	"github.com/l1jgo/simcore/internal/component"
	"github.com/l1jgo/simcore/internal/core/id"
)

// PlayerStore loads and saves persisted characters.
//
// Save only writes the fields tracked in-world (name, skin, health,
// position, stats). Experience, gold and guild belong to other systems and
// are left as stored.
type PlayerStore interface {
	// Load returns the stored player, or nil if there is none.
	Load(ctx context.Context, pid id.ID[component.Player]) (*component.Player, error)
	Save(ctx context.Context, p component.Player) error
}
