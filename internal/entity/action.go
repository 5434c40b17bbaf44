package entity

import "fmt"

// ActionState is the coarse state of an entity's action machine.
type ActionState uint8

const (
	Idle ActionState = iota
	Walking
	Attacking
)

func (s ActionState) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Walking:
		return "Walking"
	case Attacking:
		return "Attacking"
	default:
		return fmt.Sprintf("ActionState(%d)", uint8(s))
	}
}

// Action is the walk/attack state machine of an entity.
//
//	Idle      --Walk(d)-->   Walking(d)
//	Walking   --Walk(d')-->  Walking(d')
//	Walking   --Stop-->      Idle
//	Idle|Walking --Attack(n)--> Attacking(n)
//	Attacking --Tick x n-->  Idle
//
// Cooldown expiry is the only timed transition. Walk and Attack orders are
// refused while an attack is in progress. Ticks are simulation ticks, not
// wall-clock time.
type Action struct {
	state     ActionState
	dir       Direction
	remaining uint32
	total     uint32
}

func (a Action) State() ActionState { return a.state }

// Direction returns the walking direction. Only meaningful while Walking.
func (a Action) Direction() Direction { return a.dir }

// Remaining returns the cooldown ticks left. Zero unless Attacking.
func (a Action) Remaining() uint32 { return a.remaining }

// Walk starts or re-aims a walk. Returns false if an attack is in progress.
func (a *Action) Walk(d Direction) bool {
	if a.state == Attacking {
		return false
	}
	a.state = Walking
	a.dir = d
	return true
}

// Stop ends a walk. An attack in progress is not interrupted.
func (a *Action) Stop() {
	if a.state == Walking {
		a.state = Idle
	}
}

// Attack starts an attack with the given cooldown. Returns false if an attack
// is already in progress or the cooldown is zero.
func (a *Action) Attack(cooldown uint32) bool {
	if a.state == Attacking || cooldown == 0 {
		return false
	}
	a.state = Attacking
	a.remaining = cooldown
	a.total = cooldown
	return true
}

// Striking reports whether the attack landed this tick: true on the first
// tick of Attacking only.
func (a Action) Striking() bool {
	return a.state == Attacking && a.remaining == a.total
}

// Tick advances the cooldown by one tick.
func (a *Action) Tick() {
	if a.state != Attacking {
		return
	}
	a.remaining--
	if a.remaining == 0 {
		a.state = Idle
		a.total = 0
	}
}

func (a Action) String() string {
	switch a.state {
	case Walking:
		return fmt.Sprintf("Walking(%s)", a.dir)
	case Attacking:
		return fmt.Sprintf("Attacking(%d)", a.remaining)
	default:
		return a.state.String()
	}
}
