package persist

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/l1jgo/simcore/internal/component"
	"github.com/l1jgo/simcore/internal/config"
	"github.com/l1jgo/simcore/internal/core/id"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Runs against a real database when SIMCORE_TEST_DSN is set.
func TestPlayerRepoRoundTrip(t *testing.T) {
	dsn := os.Getenv("SIMCORE_TEST_DSN")
	if dsn == "" {
		t.Skip("SIMCORE_TEST_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := NewDB(ctx, config.DatabaseConfig{DSN: dsn, MaxOpenConns: 2, MaxIdleConns: 1, ConnMaxLifetime: time.Minute}, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, RunMigrations(ctx, db.Pool, zap.NewNop()))

	repo := NewPlayerRepo(db)
	pid := id.Forge[component.Player](900001)
	_, err = db.Pool.Exec(ctx, `DELETE FROM players WHERE id = $1`, int64(pid))
	require.NoError(t, err)

	missing, err := repo.Load(ctx, pid)
	require.NoError(t, err)
	assert.Nil(t, missing)

	want := component.Player{
		ID:            pid,
		Name:          "repo-test",
		Skin:          7,
		CurrentHealth: 55,
		Position:      component.Position{X: 1.5, Y: -2, Map: 3},
		Stats:         component.Stats{Level: 4, Strength: 9, Wisdom: 2},
	}
	require.NoError(t, repo.Save(ctx, want))
	got, err := repo.Load(ctx, pid)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, *got)

	_, err = db.Pool.Exec(ctx, `UPDATE players SET gold = 99 WHERE id = $1`, int64(pid))
	require.NoError(t, err)
	want.CurrentHealth = 10
	require.NoError(t, repo.Save(ctx, want))
	got, err = repo.Load(ctx, pid)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), got.CurrentHealth)
	assert.Equal(t, uint64(99), got.Gold, "save leaves gold alone")
}
