package instance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/l1jgo/simcore/internal/component"
	"github.com/l1jgo/simcore/internal/core/id"
	"github.com/l1jgo/simcore/internal/data"
	"github.com/l1jgo/simcore/internal/dispatch"
	"github.com/l1jgo/simcore/internal/entity"
	"github.com/l1jgo/simcore/internal/persist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSink struct {
	mu      sync.Mutex
	states  [][]entity.Snapshot
	removed []id.ID[entity.Entity]
}

func (s *recordingSink) EntityStates(states []entity.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, states)
}

func (s *recordingSink) EntityRemoved(eid id.ID[entity.Entity]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, eid)
}

func (s *recordingSink) last() []entity.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.states) == 0 {
		return nil
	}
	return s.states[len(s.states)-1]
}

func testMonsters(t *testing.T) *data.MonsterTable {
	t.Helper()
	table, err := data.NewMonsterTable([]data.MonsterTemplate{
		{Name: "slime", Skin: 40, Health: 1, Level: 1, Con: 0},
		{Name: "golem", Health: 500, Level: 9, Str: 12, Con: 20},
	})
	require.NoError(t, err)
	return table
}

func newTestInstance(t *testing.T, spawns ...data.MapSpawn) (*Instance, *persist.MemoryStore) {
	t.Helper()
	players := persist.NewMemoryStore(id.NewSequence(500))
	m := &data.MapInfo{ID: 1, Name: "Meadow", Width: 64, Height: 64, Spawns: spawns}
	inst := New(7, m, Deps{
		Entities:       id.NewSequence(1),
		Skins:          id.NewSequence(100),
		Monsters:       testMonsters(t),
		Players:        players,
		AttackCooldown: 3,
		AutosaveTicks:  2,
		MaxPlayers:     2,
		Log:            zap.NewNop(),
	})
	return inst, players
}

func testPlayer(pid uint64) component.Player {
	return component.Player{
		ID:            id.Forge[component.Player](pid),
		Name:          "Ana",
		Skin:          9,
		CurrentHealth: 80,
		Position:      component.Position{X: 0, Y: 0, Map: 1},
		Experience:    1000,
		Gold:          50,
		Guild:         "Owls",
		Stats:         component.Stats{Level: 3, Strength: 5, Dexterity: 4, Constitution: 2},
	}
}

func TestSpawnDefaultMonster(t *testing.T) {
	inst, _ := newTestInstance(t)

	eid, err := inst.SpawnMonster(SpawnMonster{})
	require.NoError(t, err)

	e := inst.Store().Get(eid)
	require.NotNil(t, e)
	assert.False(t, e.IsPlayer())
	assert.Equal(t, entity.Vec2{X: 1, Y: 1}, e.Position())
	assert.Equal(t, entity.South, e.Orientation())
	assert.Equal(t, uint64(100), e.Health())
	assert.Equal(t, uint64(100), e.Skin())
}

func TestSpawnFromTemplate(t *testing.T) {
	inst, _ := newTestInstance(t)

	eid, err := inst.SpawnMonster(SpawnMonster{Template: "golem", X: 5, Y: 6})
	require.NoError(t, err)
	e := inst.Store().Get(eid)
	require.NotNil(t, e)
	assert.Equal(t, entity.Vec2{X: 5, Y: 6}, e.Position())
	assert.Equal(t, uint64(500), e.Health())
	assert.Equal(t, int32(12), e.BaseStats().Strength)
	assert.Equal(t, uint64(100), e.Skin(), "template without skin draws one")

	_, err = inst.SpawnMonster(SpawnMonster{Template: "dragon"})
	assert.ErrorIs(t, err, ErrUnknownMonster)
	assert.Equal(t, 1, inst.Store().Len())
}

func TestMapSpawnsOnCreate(t *testing.T) {
	inst, _ := newTestInstance(t,
		data.MapSpawn{Template: "slime", X: 3, Y: 3, Count: 2},
		data.MapSpawn{Template: "missing", Count: 1},
	)
	snaps := inst.Entities()
	require.Len(t, snaps, 2)
	for _, s := range snaps {
		assert.Equal(t, "invoked", s.Kind)
		assert.Equal(t, uint64(40), s.Skin)
	}
}

func TestRemoveEntity(t *testing.T) {
	inst, _ := newTestInstance(t)
	sink := &recordingSink{}

	pid, err := inst.AddPlayer(testPlayer(1), sink)
	require.NoError(t, err)
	mid, err := inst.SpawnMonster(SpawnMonster{X: 10, Y: 10})
	require.NoError(t, err)

	assert.ErrorIs(t, inst.RemoveEntity(pid), ErrIsPlayer)
	assert.NotNil(t, inst.Store().Get(pid), "a player is never removed through the generic path")

	assert.ErrorIs(t, inst.RemoveEntity(9999), ErrEntityNotFound)

	require.NoError(t, inst.RemoveEntity(mid))
	assert.Nil(t, inst.Store().Get(mid))
	assert.ErrorIs(t, inst.RemoveEntity(mid), ErrEntityNotFound)

	inst.Tick(50 * time.Millisecond)
	assert.Equal(t, []id.ID[entity.Entity]{mid}, sink.removed)
}

func TestPlayerRoundTrip(t *testing.T) {
	inst, _ := newTestInstance(t)
	rec := testPlayer(3)

	eid, err := inst.AddPlayer(rec, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, inst.PlayerCount())

	e := inst.Store().Get(eid)
	require.NotNil(t, e)
	mapID, ok := e.MapID()
	require.True(t, ok)
	assert.Equal(t, rec.Position.Map, mapID)
	assert.Equal(t, entity.East, e.Orientation())

	back, err := inst.RemovePlayer(eid)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, back.ID)
	assert.Equal(t, rec.Name, back.Name)
	assert.Equal(t, rec.Skin, back.Skin)
	assert.Equal(t, rec.Position, back.Position)
	assert.Equal(t, rec.Stats, back.Stats)
	assert.Zero(t, back.Gold)
	assert.Equal(t, 0, inst.PlayerCount())

	_, err = inst.RemovePlayer(eid)
	assert.ErrorIs(t, err, ErrEntityNotFound)
}

func TestRemovePlayerRejectsMonsters(t *testing.T) {
	inst, _ := newTestInstance(t)
	mid, err := inst.SpawnMonster(SpawnMonster{})
	require.NoError(t, err)
	_, err = inst.RemovePlayer(mid)
	assert.ErrorIs(t, err, ErrNotPlayer)
}

func TestAddPlayerLimits(t *testing.T) {
	inst, _ := newTestInstance(t)

	_, err := inst.AddPlayer(testPlayer(1), nil)
	require.NoError(t, err)
	_, err = inst.AddPlayer(testPlayer(1), nil)
	assert.Error(t, err, "same player twice")

	_, err = inst.AddPlayer(testPlayer(2), nil)
	require.NoError(t, err)
	_, err = inst.AddPlayer(testPlayer(3), nil)
	assert.ErrorIs(t, err, ErrFull)
}

func TestWalkOrder(t *testing.T) {
	inst, _ := newTestInstance(t)
	sink := &recordingSink{}
	eid, err := inst.AddPlayer(testPlayer(1), sink)
	require.NoError(t, err)

	require.NoError(t, inst.Order(eid, Order{Kind: OrderWalk, Direction: entity.North}))
	inst.Tick(100 * time.Millisecond)

	e := inst.Store().Get(eid)
	assert.InDelta(t, 1.0, e.Position().Y, 1e-5)
	assert.Equal(t, entity.North, e.Orientation())

	states := sink.last()
	require.Len(t, states, 1)
	assert.InDelta(t, 1.0, states[0].Position.Y, 1e-5)

	require.NoError(t, inst.Order(eid, Order{Kind: OrderStop}))
	inst.Tick(100 * time.Millisecond)
	assert.InDelta(t, 1.0, e.Position().Y, 1e-5)

	assert.ErrorIs(t, inst.Order(12345, Order{Kind: OrderStop}), ErrEntityNotFound)
	assert.Error(t, inst.Order(eid, Order{Kind: OrderWalk, Direction: entity.Direction(9)}))
}

func TestAttackKillsMonster(t *testing.T) {
	inst, _ := newTestInstance(t)
	sink := &recordingSink{}
	pid, err := inst.AddPlayer(testPlayer(1), sink)
	require.NoError(t, err)
	mid, err := inst.SpawnMonster(SpawnMonster{Template: "slime", X: 1, Y: 0})
	require.NoError(t, err)

	require.NoError(t, inst.Order(pid, Order{Kind: OrderAttack}))
	assert.ErrorIs(t, inst.Order(pid, Order{Kind: OrderAttack}), ErrRefused)
	assert.ErrorIs(t, inst.Order(pid, Order{Kind: OrderWalk, Direction: entity.West}), ErrRefused)

	inst.Tick(50 * time.Millisecond)
	assert.Nil(t, inst.Store().Get(mid))
	assert.Contains(t, sink.removed, mid)

	// cooldown of three ticks, then the player may walk again
	inst.Tick(50 * time.Millisecond)
	inst.Tick(50 * time.Millisecond)
	assert.NoError(t, inst.Order(pid, Order{Kind: OrderWalk, Direction: entity.West}))
}

func TestParentIsWeak(t *testing.T) {
	inst, _ := newTestInstance(t)
	parent, err := inst.SpawnMonster(SpawnMonster{X: 10, Y: 10})
	require.NoError(t, err)
	child, err := inst.SpawnMonster(SpawnMonster{X: 20, Y: 20, Parent: parent})
	require.NoError(t, err)

	p, err := inst.Parent(child)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, parent, p.ID())

	require.NoError(t, inst.RemoveEntity(parent))
	p, err = inst.Parent(child)
	require.NoError(t, err)
	assert.Nil(t, p, "dangling parent resolves to nothing")

	p, err = inst.Parent(parent)
	assert.ErrorIs(t, err, ErrEntityNotFound)
	assert.Nil(t, p)
}

func TestAutosave(t *testing.T) {
	inst, players := newTestInstance(t)
	players.Put(testPlayer(1))
	eid, err := inst.AddPlayer(testPlayer(1), nil)
	require.NoError(t, err)
	require.NoError(t, inst.Order(eid, Order{Kind: OrderWalk, Direction: entity.East}))

	inst.Tick(100 * time.Millisecond)
	saved, err := players.Load(context.Background(), 1)
	require.NoError(t, err)
	assert.Zero(t, saved.Position.X, "nothing saved before the interval")

	inst.Tick(100 * time.Millisecond)
	saved, err = players.Load(context.Background(), 1)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, saved.Position.X, 1e-5)
	assert.Equal(t, uint64(1000), saved.Experience, "out-of-world fields are kept")
}

func TestLeaveAndEvictSave(t *testing.T) {
	inst, players := newTestInstance(t)
	players.Put(testPlayer(1))
	players.Put(testPlayer(2))
	a, err := inst.AddPlayer(testPlayer(1), nil)
	require.NoError(t, err)
	_, err = inst.AddPlayer(testPlayer(2), nil)
	require.NoError(t, err)
	require.NoError(t, inst.Order(a, Order{Kind: OrderWalk, Direction: entity.East}))
	inst.Tick(100 * time.Millisecond)

	p, err := inst.LeavePlayer(a)
	require.NoError(t, err)
	saved, err := players.Load(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, p.Position, saved.Position)
	assert.InDelta(t, 1.0, saved.Position.X, 1e-5)

	removed, err := inst.EvictPlayer(2)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, 0, inst.PlayerCount())

	removed, err = inst.EvictPlayer(2)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestDump(t *testing.T) {
	inst, _ := newTestInstance(t)
	_, err := inst.AddPlayer(testPlayer(1), nil)
	require.NoError(t, err)
	out := inst.DumpString()
	assert.Contains(t, out, "Instance 7")
	assert.Contains(t, out, "Ana")
}

func TestHandleRunsInstance(t *testing.T) {
	inst, players := newTestInstance(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := Start(ctx, inst, 16, time.Millisecond)
	assert.True(t, h.HasRoom())

	eid, err := dispatch.Call(ctx, h.Executor(), "add_player", func(i *Instance) (id.ID[entity.Entity], error) {
		return i.AddPlayer(testPlayer(4), nil)
	})
	require.NoError(t, err)
	assert.Equal(t, 1, h.Players())

	_, err = dispatch.Call(ctx, h.Executor(), "remove_entity", func(i *Instance) (struct{}, error) {
		return struct{}{}, i.RemoveEntity(eid)
	})
	assert.ErrorIs(t, err, ErrIsPlayer)

	h.Stop()
	<-h.Done()

	saved, err := players.Load(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, "Ana", saved.Name, "players are saved on stop")
}
