package dispatch

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Submitter accepts commands for a state of type S.
type Submitter[S any] interface {
	// Submit enqueues cmd, waiting while the queue is full.
	Submit(ctx context.Context, cmd Command[S]) error
	// TrySubmit enqueues cmd or fails immediately with ErrQueueFull.
	TrySubmit(cmd Command[S]) error
}

// Executor owns a state of type S and is the only goroutine allowed to touch
// it. Commands are executed one at a time, to completion, in the order they
// were enqueued. An optional ticker runs on the same goroutine between
// commands, so ticks and commands never interleave either.
type Executor[S any] struct {
	name  string
	state S
	queue chan Command[S]
	log   *zap.Logger

	tickInterval time.Duration
	onTick       func(S, time.Duration)
	onStop       func(S)

	mu       sync.RWMutex // guards closed and started against in-flight Submit calls
	closed   bool
	started  bool // Run was entered, or Stop settled the executor without it
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// Option configures an Executor.
type Option[S any] func(*Executor[S])

// WithTicker makes Run call fn every interval, passing the interval as the
// elapsed simulation time.
func WithTicker[S any](interval time.Duration, fn func(S, time.Duration)) Option[S] {
	return func(e *Executor[S]) {
		e.tickInterval = interval
		e.onTick = fn
	}
}

// WithOnStop makes Run call fn on the executor goroutine once the loop has
// ended, before queued commands are abandoned.
func WithOnStop[S any](fn func(S)) Option[S] {
	return func(e *Executor[S]) {
		e.onStop = fn
	}
}

// New creates an executor. Nothing runs until Run is called.
func New[S any](name string, state S, queueSize int, log *zap.Logger, opts ...Option[S]) *Executor[S] {
	if queueSize <= 0 {
		queueSize = 1
	}
	e := &Executor[S]{
		name:   name,
		state:  state,
		queue:  make(chan Command[S], queueSize),
		log:    log.With(zap.String("executor", name)),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor[S]) Name() string { return e.name }

// Pending returns the number of queued commands.
func (e *Executor[S]) Pending() int { return len(e.queue) }

func (e *Executor[S]) Submit(ctx context.Context, cmd Command[S]) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrStopped
	}
	select {
	case e.queue <- cmd:
		return nil
	case <-e.stopCh:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Executor[S]) TrySubmit(cmd Command[S]) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrStopped
	}
	select {
	case e.queue <- cmd:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run executes commands until ctx is cancelled or Stop is called. It must be
// called at most once, on the goroutine that is to own the state. Run after
// Stop returns at once.
func (e *Executor[S]) Run(ctx context.Context) {
	e.mu.Lock()
	stopped := e.started
	e.started = true
	e.mu.Unlock()
	if stopped {
		return
	}
	defer close(e.done)
	defer e.shutdown()

	var tick <-chan time.Time
	if e.onTick != nil && e.tickInterval > 0 {
		t := time.NewTicker(e.tickInterval)
		defer t.Stop()
		tick = t.C
	}

	e.log.Debug("執行器啟動")
	for {
		// Stop wins over queued work.
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case cmd := <-e.queue:
			e.execute(cmd)
		case <-tick:
			e.tick()
		}
	}
}

// Drain synchronously executes up to max queued commands on the calling
// goroutine and returns how many ran. It must not be used while Run is
// active; it exists for loops that pump the executor themselves.
func (e *Executor[S]) Drain(max int) int {
	n := 0
	for n < max {
		select {
		case cmd := <-e.queue:
			e.execute(cmd)
			n++
		default:
			return n
		}
	}
	return n
}

// Stop asks Run to return. Commands still queued are abandoned with
// ErrStopped. If Run was never entered, Stop closes the executor itself:
// the queue is abandoned, Done is closed, and the stop callback does not
// run since the state was never touched. Safe to call more than once and
// from any goroutine.
func (e *Executor[S]) Stop() {
	e.stopOnce.Do(func() {
		close(e.stopCh)

		e.mu.Lock()
		if e.started {
			e.mu.Unlock()
			return
		}
		e.started = true
		e.closed = true
		e.mu.Unlock()

		e.abandonQueued()
		close(e.done)
	})
}

// Done is closed once Run has returned, or by Stop when Run never started.
func (e *Executor[S]) Done() <-chan struct{} {
	return e.done
}

func (e *Executor[S]) execute(cmd Command[S]) {
	defer func() {
		if rec := recover(); rec != nil {
			e.log.Error("指令 panic 已恢復",
				zap.String("op", cmd.Op()),
				zap.Any("panic", rec),
			)
		}
	}()
	e.log.Debug("執行指令", zap.String("op", cmd.Op()))
	cmd.Apply(e.state)
}

func (e *Executor[S]) tick() {
	defer func() {
		if rec := recover(); rec != nil {
			e.log.Error("tick panic 已恢復", zap.Any("panic", rec))
		}
	}()
	e.onTick(e.state, e.tickInterval)
}

func (e *Executor[S]) shutdown() {
	if e.onStop != nil {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					e.log.Error("停止回呼 panic 已恢復", zap.Any("panic", rec))
				}
			}()
			e.onStop(e.state)
		}()
	}

	e.Stop()
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.abandonQueued()
}

// abandonQueued empties the queue, failing every command with ErrStopped.
// closed must already be set.
func (e *Executor[S]) abandonQueued() {
	abandoned := 0
	for {
		select {
		case cmd := <-e.queue:
			if a, ok := cmd.(abandoner); ok {
				a.Abandon(ErrStopped)
			}
			abandoned++
		default:
			if abandoned > 0 {
				e.log.Warn("執行器停止，捨棄未執行指令", zap.Int("count", abandoned))
			}
			e.log.Debug("執行器已停止")
			return
		}
	}
}
