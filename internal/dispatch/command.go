package dispatch

import (
	"errors"
	"fmt"
)

var (
	// ErrStopped is returned when submitting to an executor that has stopped.
	ErrStopped = errors.New("executor stopped")
	// ErrQueueFull is returned by TrySubmit when the queue has no room.
	ErrQueueFull = errors.New("executor queue full")
	// ErrTargetNotFound is the reply of a routed request whose target does
	// not exist in the parent state.
	ErrTargetNotFound = errors.New("target not found")
	// ErrPanicked is the reply of a request whose work panicked.
	ErrPanicked = errors.New("command panicked")
)

// Command is one unit of work for an executor owning a state of type S.
// Apply runs on the executor goroutine with exclusive access to the state.
type Command[S any] interface {
	Op() string
	Apply(state S)
}

// Result is what a Request sends back to its caller.
type Result[R any] struct {
	Value R
	Err   error
}

// Request is a Command that produces a value for a waiting caller.
//
// Reply must have a buffer of at least one: the executor never blocks on
// it, and if nobody is listening any more the result is dropped.
type Request[S, R any] struct {
	Name  string
	Fn    func(S) (R, error)
	Reply chan Result[R]
}

// NewRequest builds a Request with a fresh one-shot reply channel.
func NewRequest[S, R any](op string, fn func(S) (R, error)) *Request[S, R] {
	return &Request[S, R]{
		Name:  op,
		Fn:    fn,
		Reply: make(chan Result[R], 1),
	}
}

func (r *Request[S, R]) Op() string { return r.Name }

func (r *Request[S, R]) Apply(state S) {
	res := r.run(state)
	r.resolve(res)
}

func (r *Request[S, R]) run(state S) (res Result[R]) {
	defer func() {
		if rec := recover(); rec != nil {
			res = Result[R]{Err: fmt.Errorf("%s: %w: %v", r.Name, ErrPanicked, rec)}
		}
	}()
	v, err := r.Fn(state)
	return Result[R]{Value: v, Err: err}
}

// resolve delivers res without blocking.
func (r *Request[S, R]) resolve(res Result[R]) {
	select {
	case r.Reply <- res:
	default:
	}
}

// Func adapts a plain function into a fire-and-forget Command.
type Func[S any] struct {
	Name string
	Fn   func(S)
}

func (f Func[S]) Op() string    { return f.Name }
func (f Func[S]) Apply(state S) { f.Fn(state) }

// Abandon resolves the request with err. Used when the executor stops
// before the request could run.
func (r *Request[S, R]) Abandon(err error) {
	r.resolve(Result[R]{Err: err})
}

// abandoner is implemented by commands that have a caller to notify when
// they will never run.
type abandoner interface {
	Abandon(err error)
}
