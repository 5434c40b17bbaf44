package instance

import (
	"time"

	"github.com/l1jgo/simcore/internal/core/event"
	coresys "github.com/l1jgo/simcore/internal/core/system"
	"github.com/l1jgo/simcore/internal/entity"
	"go.uber.org/zap"
)

// UpdateSystem runs the aliasing pass over the entity table: movement with
// collision, then attack resolution. Phase 0 (Update).
type UpdateSystem struct {
	inst *Instance
}

func NewUpdateSystem(inst *Instance) *UpdateSystem {
	return &UpdateSystem{inst: inst}
}

func (s *UpdateSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *UpdateSystem) Update(dt time.Duration) {
	for _, h := range entity.Update(s.inst.store, dt, s.inst.deps.Damage) {
		event.Emit(s.inst.bus, event.EntityHit{Hit: h})
	}
}

// OutputSystem pushes the state of every entity to each connected player.
// Phase 1 (Output).
type OutputSystem struct {
	inst *Instance
}

func NewOutputSystem(inst *Instance) *OutputSystem {
	return &OutputSystem{inst: inst}
}

func (s *OutputSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *OutputSystem) Update(_ time.Duration) {
	if len(s.inst.sinks) == 0 {
		return
	}
	states := s.inst.Entities()
	for _, sink := range s.inst.sinks {
		sink.EntityStates(states)
	}
}

// PersistenceSystem periodically saves every player of the instance.
// Phase 2 (Persist).
type PersistenceSystem struct {
	inst      *Instance
	tickCount int
	interval  int // auto-save every N ticks, 0 disables
}

func NewPersistenceSystem(inst *Instance, intervalTicks int) *PersistenceSystem {
	return &PersistenceSystem{inst: inst, interval: intervalTicks}
}

func (s *PersistenceSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *PersistenceSystem) Update(_ time.Duration) {
	if s.interval <= 0 {
		return
	}
	s.tickCount++
	if s.tickCount < s.interval {
		return
	}
	s.tickCount = 0
	s.SaveAllPlayers()
}

// SaveAllPlayers persists all players immediately and returns how many were
// saved. A failed save is logged and the rest continue.
func (s *PersistenceSystem) SaveAllPlayers() int {
	count := 0
	for e := range s.inst.store.All() {
		if !e.IsPlayer() {
			continue
		}
		if err := s.inst.savePlayer(e); err != nil {
			s.inst.log.Error("自動存檔角色失敗", zap.Uint64("entity", e.ID().Uint64()), zap.Error(err))
			continue
		}
		count++
	}
	if count > 0 {
		s.inst.log.Info("自動存檔完成", zap.Int("玩家數", count))
	}
	return count
}

// CleanupSystem flushes removals deferred during the update pass and
// delivers the events of this tick. Phase 3 (Cleanup).
type CleanupSystem struct {
	inst *Instance
}

func NewCleanupSystem(inst *Instance) *CleanupSystem {
	return &CleanupSystem{inst: inst}
}

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *CleanupSystem) Update(_ time.Duration) {
	for _, e := range s.inst.store.FlushRemovals() {
		event.Emit(s.inst.bus, event.EntityRemoved{Entity: e.ID(), Reason: "killed"})
	}
	s.inst.bus.SwapBuffers()
	s.inst.bus.DispatchAll()
}
