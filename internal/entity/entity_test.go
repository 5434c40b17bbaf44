package entity

import (
	"bytes"
	"testing"
	"time"

	"github.com/l1jgo/simcore/internal/component"
	"github.com/l1jgo/simcore/internal/core/id"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord() component.Player {
	return component.Player{
		ID:            id.Forge[component.Player](42),
		Name:          "Vaelden",
		Skin:          7,
		CurrentHealth: 80,
		Position:      component.Position{X: 3.5, Y: -2, Map: id.Forge[component.Map](1)},
		Experience:    1200,
		Gold:          55,
		Guild:         "Lycans",
		Stats:         fakeStats,
	}
}

func TestPlayerRoundTrip(t *testing.T) {
	rec := testRecord()
	e := FromPlayer(eid(1), rec)

	assert.True(t, e.IsPlayer())
	assert.Equal(t, East, e.Orientation())
	assert.Equal(t, Idle, e.Action().State())
	assert.True(t, e.Velocity().IsZero())
	mapID, ok := e.MapID()
	require.True(t, ok)
	assert.Equal(t, rec.Position.Map, mapID)

	back, ok := e.ToPlayer()
	require.True(t, ok)
	assert.Equal(t, rec.ID, back.ID)
	assert.Equal(t, rec.Name, back.Name)
	assert.Equal(t, rec.Skin, back.Skin)
	assert.Equal(t, rec.Position, back.Position)
	assert.Equal(t, rec.Stats, back.Stats)
	assert.Equal(t, rec.CurrentHealth, back.CurrentHealth)

	// Not tracked in-world.
	assert.Zero(t, back.Experience)
	assert.Zero(t, back.Gold)
	assert.Empty(t, back.Guild)
}

func TestToPlayerCapturesCurrentState(t *testing.T) {
	e := FromPlayer(eid(1), testRecord())
	e.Teleport(Vec2{10, 20})
	e.Damage(30)

	back, ok := e.ToPlayer()
	require.True(t, ok)
	assert.Equal(t, float32(10), back.Position.X)
	assert.Equal(t, float32(20), back.Position.Y)
	assert.Equal(t, uint64(50), back.CurrentHealth)
}

func TestInvokedIsNotAPlayer(t *testing.T) {
	e := FakeMonster(eid(1), id.NewSequence(0))
	_, ok := e.ToPlayer()
	assert.False(t, ok)
	_, ok = e.MapID()
	assert.False(t, ok)
	assert.Equal(t, South, e.Orientation())
	assert.Equal(t, Vec2{1, 1}, e.Position())
}

func TestDerivedSpeedFollowsKind(t *testing.T) {
	p := FromPlayer(eid(1), testRecord())
	assert.Equal(t, DefaultSpeed, p.Derived().Speed)

	m := FakeMonster(eid(2), id.NewSequence(0))
	assert.Equal(t, DefaultInvokedSpeed, m.Derived().Speed)

	m.SetKind(&Player{Name: "Promoted"})
	assert.Equal(t, DefaultSpeed, m.Derived().Speed)
}

func TestFakePlayerNamesAndSkins(t *testing.T) {
	skins := id.NewSequence(100)
	a := FakePlayerRecord(id.Forge[component.Player](0), skins)
	b := FakePlayerRecord(id.Forge[component.Player](1), skins)
	c := FakePlayerRecord(id.Forge[component.Player](9), skins)

	assert.Equal(t, "Vaelden", a.Name)
	assert.Equal(t, "Cendrais", b.Name)
	assert.Equal(t, "Player9", c.Name)
	assert.Equal(t, []uint64{100, 101, 102}, []uint64{a.Skin, b.Skin, c.Skin})
}

func TestActionMachine(t *testing.T) {
	var a Action
	assert.Equal(t, Idle, a.State())

	require.True(t, a.Walk(North))
	assert.Equal(t, Walking, a.State())
	assert.Equal(t, North, a.Direction())

	require.True(t, a.Walk(West))
	assert.Equal(t, West, a.Direction())

	require.True(t, a.Attack(2))
	assert.Equal(t, Attacking, a.State())
	assert.True(t, a.Striking())
	assert.False(t, a.Walk(East), "walk refused during attack")
	assert.False(t, a.Attack(5), "attack refused during attack")

	a.Stop()
	assert.Equal(t, Attacking, a.State(), "stop does not cancel an attack")

	a.Tick()
	assert.False(t, a.Striking())
	assert.Equal(t, uint32(1), a.Remaining())
	a.Tick()
	assert.Equal(t, Idle, a.State())
	assert.Zero(t, a.Remaining())

	assert.False(t, a.Attack(0))
	a.Tick()
	assert.Equal(t, Idle, a.State())
}

func TestEntityWalkSetsOrientation(t *testing.T) {
	e := FakeMonster(eid(1), id.NewSequence(0))
	require.True(t, e.Walk(West))
	assert.Equal(t, West, e.Orientation())
	require.True(t, e.Attack(3))
	assert.False(t, e.Walk(North))
	assert.Equal(t, West, e.Orientation())
}

func TestUpdateMovesWalkingEntity(t *testing.T) {
	s := NewStore()
	p := FromPlayer(eid(1), testRecord())
	p.Teleport(Vec2{0, 0})
	s.Push(p)

	p.Walk(East)
	hits := Update(s, 100*time.Millisecond, nil)
	assert.Empty(t, hits)
	assert.InDelta(t, 1.0, p.Position().X, 1e-5)
	assert.InDelta(t, 0.0, p.Position().Y, 1e-5)
	assert.Equal(t, Vec2{DefaultSpeed, 0}, p.Velocity())

	p.Stop()
	Update(s, 100*time.Millisecond, nil)
	assert.InDelta(t, 1.0, p.Position().X, 1e-5)
	assert.True(t, p.Velocity().IsZero())
}

func TestUpdateBlocksMoveIntoAnotherEntity(t *testing.T) {
	s := NewStore()
	skins := id.NewSequence(0)
	mover := FakeMonster(eid(1), skins)
	mover.Teleport(Vec2{0, 0})
	wall := FakeMonster(eid(2), skins)
	wall.Teleport(Vec2{1.2, 0})
	s.Push(mover)
	s.Push(wall)

	mover.Walk(East)
	Update(s, 100*time.Millisecond, nil) // 0.5 units would overlap the wall
	assert.Equal(t, Vec2{0, 0}, mover.Position())
	assert.True(t, mover.Velocity().IsZero())

	// Walking away is fine.
	mover.Walk(West)
	Update(s, 100*time.Millisecond, nil)
	assert.InDelta(t, -0.5, mover.Position().X, 1e-5)
}

func TestUpdateLeavesOverlapFreely(t *testing.T) {
	s := NewStore()
	skins := id.NewSequence(0)
	a := FakeMonster(eid(1), skins)
	b := FakeMonster(eid(2), skins)
	s.Push(a)
	s.Push(b)

	a.Walk(North)
	Update(s, 100*time.Millisecond, nil)
	assert.InDelta(t, 1.5, a.Position().Y, 1e-5)
}

func TestUpdateResolvesAttackAndRemovesDeadInvoked(t *testing.T) {
	s := NewStore()
	skins := id.NewSequence(0)
	attacker := FromPlayer(eid(1), testRecord())
	attacker.Teleport(Vec2{0, 0})
	victim := FakeMonster(eid(2), skins)
	victim.Teleport(Vec2{1, 0})
	bystander := FakeMonster(eid(3), skins)
	bystander.Teleport(Vec2{-5, 0})
	s.Push(attacker)
	s.Push(victim)
	s.Push(bystander)

	require.True(t, attacker.Attack(2))
	hits := Update(s, 100*time.Millisecond, func(_, _ *Entity) uint64 { return 60 })
	require.Len(t, hits, 1)
	assert.Equal(t, Hit{Attacker: eid(1), Target: eid(2), Damage: 60}, hits[0])
	assert.Equal(t, uint64(40), victim.Health())
	assert.Equal(t, uint64(100), bystander.Health())

	// Cooldown tick: no new strike.
	hits = Update(s, 100*time.Millisecond, func(_, _ *Entity) uint64 { return 60 })
	assert.Empty(t, hits)
	assert.Equal(t, Idle, attacker.Action().State())

	require.True(t, attacker.Attack(1))
	hits = Update(s, 100*time.Millisecond, func(_, _ *Entity) uint64 { return 60 })
	require.Len(t, hits, 1)
	assert.Equal(t, uint64(40), hits[0].Damage)
	assert.True(t, hits[0].Killed)

	removed := s.FlushRemovals()
	require.Len(t, removed, 1)
	assert.Equal(t, eid(2), removed[0].ID())
	assert.Equal(t, 2, s.Len())
}

func TestDefaultDamageIsAtLeastOne(t *testing.T) {
	skins := id.NewSequence(0)
	a := FakeMonster(eid(1), skins)
	b := FakeMonster(eid(2), skins)
	assert.Equal(t, uint64(1), DefaultDamage(a, b)) // 2*2+1-4

	b.SetBaseStats(component.Stats{Constitution: 1})
	assert.Equal(t, uint64(4), DefaultDamage(a, b))
}

func TestSnapshotAndDump(t *testing.T) {
	e := FromPlayer(eid(5), testRecord())
	snap := e.Snapshot()
	assert.Equal(t, "player", snap.Kind)
	assert.Equal(t, "Vaelden", snap.Name)
	assert.Equal(t, uint64(42), snap.PlayerID)
	assert.Equal(t, uint64(1), snap.MapID)

	var buf bytes.Buffer
	require.NoError(t, e.Dump(&buf, "  "))
	assert.Contains(t, buf.String(), "  Entity 5\n")
	assert.Contains(t, buf.String(), "Player 42 Vaelden attached to map 1")
	assert.Contains(t, buf.String(), "PV: 80")

	m := New(eid(6), &Invoked{Parent: eid(5)}, Vec2{}, North, 1, fakeStats, 10)
	buf.Reset()
	require.NoError(t, m.Dump(&buf, ""))
	assert.Contains(t, buf.String(), "Invoked entity attached to 5")
	assert.Equal(t, uint64(5), m.Snapshot().Parent)
}
