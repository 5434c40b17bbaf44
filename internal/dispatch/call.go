package dispatch

import (
	"context"
	"fmt"
)

// Call submits fn to target and waits for its result. If ctx ends first the
// wait is abandoned; the request may still run, its result is dropped.
func Call[S, R any](ctx context.Context, target Submitter[S], op string, fn func(S) (R, error)) (R, error) {
	req := NewRequest(op, fn)
	if err := target.Submit(ctx, req); err != nil {
		var zero R
		return zero, fmt.Errorf("%s: %w", op, err)
	}
	return Await(ctx, req.Reply)
}

// Await waits for a single result on reply.
func Await[R any](ctx context.Context, reply <-chan Result[R]) (R, error) {
	select {
	case res := <-reply:
		return res.Value, res.Err
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}

// Route sends fn to a child executor found inside the parent's state.
//
// The hop runs on the parent goroutine: lookup resolves the child, and the
// request is handed to it with TrySubmit so the parent never blocks on a
// busy child. When lookup finds nothing the caller is answered immediately
// with ErrTargetNotFound. The child answers the caller directly.
func Route[P, C, R any](
	ctx context.Context,
	parent Submitter[P],
	op string,
	lookup func(P) (Submitter[C], bool),
	fn func(C) (R, error),
) (R, error) {
	h := &hop[P, C, R]{
		name:   op,
		lookup: lookup,
		fn:     fn,
		reply:  make(chan Result[R], 1),
	}
	if err := parent.Submit(ctx, h); err != nil {
		var zero R
		return zero, fmt.Errorf("%s: %w", op, err)
	}
	return Await(ctx, h.reply)
}

type hop[P, C, R any] struct {
	name   string
	lookup func(P) (Submitter[C], bool)
	fn     func(C) (R, error)
	reply  chan Result[R]
}

func (h *hop[P, C, R]) Op() string { return h.name }

func (h *hop[P, C, R]) Apply(parent P) {
	defer func() {
		if rec := recover(); rec != nil {
			h.Abandon(fmt.Errorf("%s: %w: %v", h.name, ErrPanicked, rec))
		}
	}()
	child, ok := h.lookup(parent)
	if !ok || child == nil {
		h.Abandon(fmt.Errorf("%s: %w", h.name, ErrTargetNotFound))
		return
	}
	req := &Request[C, R]{Name: h.name, Fn: h.fn, Reply: h.reply}
	if err := child.TrySubmit(req); err != nil {
		h.Abandon(fmt.Errorf("%s: %w", h.name, err))
	}
}

func (h *hop[P, C, R]) Abandon(err error) {
	select {
	case h.reply <- Result[R]{Err: err}:
	default:
	}
}
