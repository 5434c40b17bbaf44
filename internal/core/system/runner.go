package system

import (
	"slices"
	"time"
)

// Runner executes systems in phase order each tick. Systems sharing a phase
// keep their registration order.
type Runner struct {
	systems []System
	ticks   uint64

	slowAfter time.Duration
	onSlow    func(tick uint64, took time.Duration)
}

func NewRunner() *Runner {
	return &Runner{systems: make([]System, 0, 4)}
}

// Register inserts s after every system of the same or an earlier phase.
func (r *Runner) Register(s System) {
	at := slices.IndexFunc(r.systems, func(o System) bool { return o.Phase() > s.Phase() })
	if at < 0 {
		at = len(r.systems)
	}
	r.systems = slices.Insert(r.systems, at, s)
}

// OnSlowTick calls fn after any tick that took longer than threshold.
func (r *Runner) OnSlowTick(threshold time.Duration, fn func(tick uint64, took time.Duration)) {
	r.slowAfter, r.onSlow = threshold, fn
}

// Ticks returns how many full ticks have run.
func (r *Runner) Ticks() uint64 { return r.ticks }

func (r *Runner) Tick(dt time.Duration) {
	start := time.Now()
	for _, s := range r.systems {
		s.Update(dt)
	}
	r.ticks++
	if r.onSlow != nil {
		if took := time.Since(start); took > r.slowAfter {
			r.onSlow(r.ticks, took)
		}
	}
}
