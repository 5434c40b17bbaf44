package system

import "time"

// Phase defines execution ordering within a single instance tick.
type Phase int

const (
	PhaseUpdate  Phase = iota // 0: movement, attacks, damage
	PhaseOutput               // 1: entity state to player sinks
	PhasePersist              // 2: periodic player save
	PhaseCleanup              // 3: flush deferred removals, deliver events
)

func (p Phase) String() string {
	switch p {
	case PhaseUpdate:
		return "update"
	case PhaseOutput:
		return "output"
	case PhasePersist:
		return "persist"
	case PhaseCleanup:
		return "cleanup"
	}
	return "unknown"
}

// System is one step of an instance tick.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
