package persist

import (
	"context"
	"testing"

	"github.com/l1jgo/simcore/internal/component"
	"github.com/l1jgo/simcore/internal/core/id"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreMakesUpUnknownPlayers(t *testing.T) {
	s := NewMemoryStore(id.NewSequence(10))
	ctx := context.Background()

	p, err := s.Load(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Cendrais", p.Name)
	assert.Equal(t, uint64(10), p.Skin)

	again, err := s.Load(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, *p, *again, "the made-up record is kept")
}

func TestMemoryStoreSaveKeepsOutOfWorldFields(t *testing.T) {
	s := NewMemoryStore(id.NewSequence(0))
	ctx := context.Background()
	s.Put(component.Player{ID: 5, Name: "Ana", Experience: 300, Gold: 12, Guild: "Owls"})

	require.NoError(t, s.Save(ctx, component.Player{
		ID:            5,
		Name:          "Ana",
		CurrentHealth: 42,
		Position:      component.Position{X: 3, Y: 4, Map: 2},
	}))

	p, err := s.Load(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), p.CurrentHealth)
	assert.Equal(t, component.Position{X: 3, Y: 4, Map: 2}, p.Position)
	assert.Equal(t, uint64(300), p.Experience)
	assert.Equal(t, uint64(12), p.Gold)
	assert.Equal(t, "Owls", p.Guild)
}
