package system

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type probe struct {
	name  string
	phase Phase
	log   *[]string
}

func (p probe) Phase() Phase         { return p.phase }
func (p probe) Update(time.Duration) { *p.log = append(*p.log, p.name) }

func TestRunnerOrdersByPhase(t *testing.T) {
	var log []string
	r := NewRunner()
	r.Register(probe{"cleanup", PhaseCleanup, &log})
	r.Register(probe{"update-a", PhaseUpdate, &log})
	r.Register(probe{"output", PhaseOutput, &log})
	r.Register(probe{"update-b", PhaseUpdate, &log})
	r.Register(probe{"persist", PhasePersist, &log})

	r.Tick(time.Millisecond)
	assert.Equal(t, []string{"update-a", "update-b", "output", "persist", "cleanup"}, log)
	assert.Equal(t, uint64(1), r.Ticks())
}

type sleeper time.Duration

func (s sleeper) Phase() Phase         { return PhaseUpdate }
func (s sleeper) Update(time.Duration) { time.Sleep(time.Duration(s)) }

func TestRunnerReportsSlowTicks(t *testing.T) {
	r := NewRunner()
	r.Register(sleeper(5 * time.Millisecond))

	var slow []uint64
	r.OnSlowTick(time.Millisecond, func(tick uint64, took time.Duration) {
		assert.GreaterOrEqual(t, took, 5*time.Millisecond)
		slow = append(slow, tick)
	})
	r.Tick(0)
	r.Tick(0)
	assert.Equal(t, []uint64{1, 2}, slow)

	r.OnSlowTick(time.Hour, func(uint64, time.Duration) { t.Fatal("tick reported as slow") })
	r.Tick(0)
}
