package instance

import (
	"context"
	"time"

	"github.com/l1jgo/simcore/internal/component"
	"github.com/l1jgo/simcore/internal/core/id"
	"github.com/l1jgo/simcore/internal/dispatch"
)

// Handle is the game's reference to a running instance. The instance state
// itself is only reachable through the executor.
type Handle struct {
	ID   id.ID[Instance]
	Map  id.ID[component.Map]
	inst *Instance
	exec *dispatch.Executor[*Instance]
}

// Start runs inst on its own executor goroutine, ticking every tickRate.
// Players are saved when the executor stops.
func Start(ctx context.Context, inst *Instance, queueSize int, tickRate time.Duration) *Handle {
	exec := dispatch.New("instance-"+inst.id.String(), inst, queueSize, inst.log,
		dispatch.WithTicker(tickRate, (*Instance).Tick),
		dispatch.WithOnStop((*Instance).Shutdown),
	)
	go exec.Run(ctx)
	return &Handle{ID: inst.id, Map: inst.MapID(), inst: inst, exec: exec}
}

// Executor is where commands for the instance are submitted.
func (h *Handle) Executor() dispatch.Submitter[*Instance] { return h.exec }

// Players is the current player count, safe to read from any goroutine.
func (h *Handle) Players() int { return h.inst.PlayerCount() }

// HasRoom reports whether another player may join.
func (h *Handle) HasRoom() bool { return h.inst.PlayerCount() < h.inst.deps.MaxPlayers }

func (h *Handle) Stop()                 { h.exec.Stop() }
func (h *Handle) Done() <-chan struct{} { return h.exec.Done() }
