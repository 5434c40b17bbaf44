package instance

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/l1jgo/simcore/internal/component"
	"github.com/l1jgo/simcore/internal/core/event"
	"github.com/l1jgo/simcore/internal/core/id"
	coresys "github.com/l1jgo/simcore/internal/core/system"
	"github.com/l1jgo/simcore/internal/data"
	"github.com/l1jgo/simcore/internal/entity"
	"github.com/l1jgo/simcore/internal/persist"
	"go.uber.org/zap"
)

var (
	ErrEntityNotFound = errors.New("entity not found")
	ErrIsPlayer       = errors.New("entity is a player")
	ErrNotPlayer      = errors.New("entity is not a player")
	ErrUnknownMonster = errors.New("unknown monster template")
	ErrFull           = errors.New("instance full")
	ErrRefused        = errors.New("action refused")
)

const (
	// slowTick is the tick duration above which a warning is logged.
	slowTick    = 25 * time.Millisecond
	saveTimeout = 5 * time.Second
)

// Sink receives outbound updates for one connected player. Implementations
// must not block: they are called from the instance goroutine.
type Sink interface {
	EntityStates(states []entity.Snapshot)
	EntityRemoved(eid id.ID[entity.Entity])
}

// Deps are the collaborators shared by every instance.
type Deps struct {
	Entities       *id.Sequence // entity ids, shared so ids stay unique server-wide
	Skins          *id.Sequence
	Monsters       *data.MonsterTable
	Damage         entity.DamageFunc
	Players        persist.PlayerStore
	AttackCooldown uint32
	AutosaveTicks  int
	MaxPlayers     int
	Log            *zap.Logger
}

// Instance is one running copy of a map. All of its state is owned by the
// instance executor; every method must be called from that goroutine.
type Instance struct {
	id      id.ID[Instance]
	mapInfo *data.MapInfo
	deps    Deps

	store  *entity.Store
	runner *coresys.Runner
	bus    *event.Bus
	sinks  map[id.ID[entity.Entity]]Sink

	players atomic.Int32 // read by the game to place new players
	persist *PersistenceSystem
	log     *zap.Logger
}

// New builds an instance of m and spawns the map's initial monsters.
func New(iid id.ID[Instance], m *data.MapInfo, deps Deps) *Instance {
	if deps.Damage == nil {
		deps.Damage = entity.DefaultDamage
	}
	if deps.MaxPlayers <= 0 {
		deps.MaxPlayers = 1
	}
	if m.MaxPlayers > 0 {
		deps.MaxPlayers = m.MaxPlayers
	}
	inst := &Instance{
		id:      iid,
		mapInfo: m,
		deps:    deps,
		store:   entity.NewStore(),
		runner:  coresys.NewRunner(),
		bus:     event.NewBus(),
		sinks:   make(map[id.ID[entity.Entity]]Sink),
		log:     deps.Log.With(zap.Uint64("instance", iid.Uint64()), zap.Uint64("map", m.ID.Uint64())),
	}

	inst.persist = NewPersistenceSystem(inst, deps.AutosaveTicks)
	inst.runner.Register(NewUpdateSystem(inst))
	inst.runner.Register(NewOutputSystem(inst))
	inst.runner.Register(inst.persist)
	inst.runner.Register(NewCleanupSystem(inst))
	inst.runner.OnSlowTick(slowTick, func(tick uint64, took time.Duration) {
		inst.log.Warn("副本更新過慢", zap.Uint64("tick", tick), zap.Duration("took", took))
	})
	inst.subscribe()

	for _, sp := range m.Spawns {
		for n := 0; n < sp.Count; n++ {
			if _, err := inst.SpawnMonster(SpawnMonster{Template: sp.Template, X: sp.X, Y: sp.Y}); err != nil {
				inst.log.Warn("地圖初始怪物生成失敗", zap.String("template", sp.Template), zap.Error(err))
			}
		}
	}
	return inst
}

func (i *Instance) ID() id.ID[Instance]         { return i.id }
func (i *Instance) MapID() id.ID[component.Map] { return i.mapInfo.ID }
func (i *Instance) PlayerCount() int            { return int(i.players.Load()) }
func (i *Instance) Store() *entity.Store        { return i.store }

// Entities returns a snapshot of every entity in insertion order.
func (i *Instance) Entities() []entity.Snapshot {
	out := make([]entity.Snapshot, 0, i.store.Len())
	for e := range i.store.All() {
		out = append(out, e.Snapshot())
	}
	return out
}

// SpawnMonster describes an invoked entity to create. An empty Template
// spawns the default monster.
type SpawnMonster struct {
	Template string               `json:"template"`
	X        float32              `json:"x"`
	Y        float32              `json:"y"`
	Parent   id.ID[entity.Entity] `json:"parent,omitempty"`
}

func (i *Instance) SpawnMonster(req SpawnMonster) (id.ID[entity.Entity], error) {
	eid := id.Next[entity.Entity](i.deps.Entities)

	var e *entity.Entity
	if req.Template == "" {
		e = entity.FakeMonster(eid, i.deps.Skins)
		if req.X != 0 || req.Y != 0 {
			e.Teleport(entity.Vec2{X: req.X, Y: req.Y})
		}
	} else {
		tpl := i.deps.Monsters.Get(req.Template)
		if tpl == nil {
			return 0, fmt.Errorf("%w: %q", ErrUnknownMonster, req.Template)
		}
		skin := tpl.Skin
		if skin == 0 {
			skin = i.deps.Skins.Next()
		}
		e = entity.New(eid, &entity.Invoked{}, entity.Vec2{X: req.X, Y: req.Y},
			entity.South, skin, tpl.Stats(), tpl.Health)
	}
	if !req.Parent.IsZero() {
		e.SetKind(&entity.Invoked{Parent: req.Parent})
	}

	i.store.Push(e)
	event.Emit(i.bus, event.EntitySpawned{Entity: eid})
	return eid, nil
}

// RemoveEntity removes a non-player entity.
func (i *Instance) RemoveEntity(eid id.ID[entity.Entity]) error {
	e := i.store.Get(eid)
	if e == nil {
		return ErrEntityNotFound
	}
	if e.IsPlayer() {
		return ErrIsPlayer
	}
	i.store.Remove(eid)
	event.Emit(i.bus, event.EntityRemoved{Entity: eid, Reason: "removed"})
	return nil
}

// AddPlayer brings p into the instance. sink receives its updates.
func (i *Instance) AddPlayer(p component.Player, sink Sink) (id.ID[entity.Entity], error) {
	if int(i.players.Load()) >= i.deps.MaxPlayers {
		return 0, ErrFull
	}
	for e := range i.store.All() {
		if k, ok := e.Kind().(*entity.Player); ok && k.PlayerID == p.ID {
			return 0, fmt.Errorf("player %s already in instance as entity %s", p.ID, e.ID())
		}
	}
	eid := id.Next[entity.Entity](i.deps.Entities)
	p.Position.Map = i.mapInfo.ID
	i.store.Push(entity.FromPlayer(eid, p))
	if sink != nil {
		i.sinks[eid] = sink
	}
	i.players.Add(1)
	event.Emit(i.bus, event.EntitySpawned{Entity: eid, Player: true})
	i.log.Info("玩家進入副本", zap.String("name", p.Name), zap.Uint64("entity", eid.Uint64()))
	return eid, nil
}

// RemovePlayer takes a player out of the instance and returns its record
// with the current position and health. Nothing is saved; see LeavePlayer.
func (i *Instance) RemovePlayer(eid id.ID[entity.Entity]) (*component.Player, error) {
	e := i.store.Get(eid)
	if e == nil {
		return nil, ErrEntityNotFound
	}
	p, ok := e.ToPlayer()
	if !ok {
		return nil, ErrNotPlayer
	}
	i.store.Remove(eid)
	delete(i.sinks, eid)
	i.players.Add(-1)
	event.Emit(i.bus, event.EntityRemoved{Entity: eid, Reason: "left"})
	i.log.Info("玩家離開副本", zap.String("name", p.Name), zap.Uint64("entity", eid.Uint64()))
	return &p, nil
}

// LeavePlayer removes a player and saves its record from the instance
// goroutine, so the save happens even if the caller stops waiting.
func (i *Instance) LeavePlayer(eid id.ID[entity.Entity]) (*component.Player, error) {
	p, err := i.RemovePlayer(eid)
	if err != nil {
		return nil, err
	}
	if err := i.saveRecord(*p); err != nil {
		i.log.Error("玩家存檔失敗", zap.String("name", p.Name), zap.Error(err))
		return p, fmt.Errorf("save player %s: %w", p.ID, err)
	}
	return p, nil
}

// EvictPlayer takes the entity of player pid out of the instance if it is
// there, saving it. It reports whether an entity was removed.
func (i *Instance) EvictPlayer(pid id.ID[component.Player]) (bool, error) {
	for e := range i.store.All() {
		if k, ok := e.Kind().(*entity.Player); ok && k.PlayerID == pid {
			_, err := i.LeavePlayer(e.ID())
			return true, err
		}
	}
	return false, nil
}

// OrderKind selects what an Order asks an entity to do.
type OrderKind uint8

const (
	OrderWalk OrderKind = iota
	OrderStop
	OrderAttack
)

type Order struct {
	Kind      OrderKind
	Direction entity.Direction
}

// Order applies an action order to an entity. Walking and attacking are
// refused while an attack is in progress.
func (i *Instance) Order(eid id.ID[entity.Entity], o Order) error {
	e := i.store.Get(eid)
	if e == nil {
		return ErrEntityNotFound
	}
	switch o.Kind {
	case OrderWalk:
		if !o.Direction.Valid() {
			return fmt.Errorf("invalid direction %d", o.Direction)
		}
		if !e.Walk(o.Direction) {
			return ErrRefused
		}
	case OrderStop:
		e.Stop()
	case OrderAttack:
		if !e.Attack(i.deps.AttackCooldown) {
			return ErrRefused
		}
	default:
		return fmt.Errorf("unknown order %d", o.Kind)
	}
	return nil
}

// Tick advances the simulation by dt.
func (i *Instance) Tick(dt time.Duration) {
	i.runner.Tick(dt)
}

// Parent resolves the invoker of an entity. It returns nil when the entity
// has no parent or the parent is gone.
func (i *Instance) Parent(eid id.ID[entity.Entity]) (*entity.Entity, error) {
	e := i.store.Get(eid)
	if e == nil {
		return nil, ErrEntityNotFound
	}
	k, ok := e.Kind().(*entity.Invoked)
	if !ok || k.Parent.IsZero() {
		return nil, nil
	}
	return i.store.Get(k.Parent), nil
}

// Dump writes a human-readable listing of the instance.
func (i *Instance) Dump(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "Instance %s (map %s %q), %d entities\n",
		i.id, i.mapInfo.ID, i.mapInfo.Name, i.store.Len()); err != nil {
		return err
	}
	for e := range i.store.All() {
		if err := e.Dump(w, "  "); err != nil {
			return err
		}
	}
	return nil
}

func (i *Instance) DumpString() string {
	var buf bytes.Buffer
	_ = i.Dump(&buf)
	return buf.String()
}

// SaveAll persists every player in the instance.
func (i *Instance) SaveAll() int {
	return i.persist.SaveAllPlayers()
}

// Shutdown saves every player. Run on the executor when it stops.
func (i *Instance) Shutdown() {
	n := i.SaveAll()
	i.log.Info("副本關閉", zap.Int("saved", n))
}

func (i *Instance) subscribe() {
	event.Subscribe(i.bus, func(ev event.EntityRemoved) {
		for _, s := range i.sinks {
			s.EntityRemoved(ev.Entity)
		}
	})
	event.Subscribe(i.bus, func(ev event.EntityHit) {
		i.log.Debug("命中",
			zap.Uint64("attacker", ev.Attacker.Uint64()),
			zap.Uint64("target", ev.Target.Uint64()),
			zap.Uint64("damage", ev.Damage),
			zap.Bool("killed", ev.Killed),
		)
	})
	event.Subscribe(i.bus, func(ev event.EntitySpawned) {
		i.log.Debug("實體生成", zap.Uint64("entity", ev.Entity.Uint64()), zap.Bool("player", ev.Player))
	})
}

func (i *Instance) savePlayer(e *entity.Entity) error {
	p, ok := e.ToPlayer()
	if !ok {
		return nil
	}
	return i.saveRecord(p)
}

func (i *Instance) saveRecord(p component.Player) error {
	if i.deps.Players == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	return i.deps.Players.Save(ctx, p)
}
