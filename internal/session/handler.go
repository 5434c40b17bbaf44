package session

import (
	"context"
	"errors"
	"time"

	"github.com/l1jgo/simcore/internal/component"
	"github.com/l1jgo/simcore/internal/core/id"
	"github.com/l1jgo/simcore/internal/entity"
	"github.com/l1jgo/simcore/internal/game"
	"github.com/l1jgo/simcore/internal/instance"
	"github.com/l1jgo/simcore/internal/net"
	"github.com/l1jgo/simcore/internal/net/packet"
	"go.uber.org/zap"
)

// Deps holds the shared dependencies of every session handler.
type Deps struct {
	Game           *game.Client
	Charset        *packet.Charset
	RequestTimeout time.Duration
	Log            *zap.Logger
}

// Handler drives one connected session: it decodes client packets and turns
// them into game and instance commands.
type Handler struct {
	ctx  context.Context
	sess *net.Session
	deps Deps
	log  *zap.Logger

	pid    id.ID[component.Player]
	loc    game.Location
	joined bool
}

// NewRegistry registers every client opcode.
func NewRegistry(deps Deps) *packet.Registry[*Handler] {
	reg := packet.NewRegistry[*Handler](deps.Charset, deps.Log)
	connected := []packet.SessionState{packet.StateConnected}
	inWorld := []packet.SessionState{packet.StateInWorld}

	reg.Register(packet.C_OPCODE_AUTH, connected, (*Handler).handleAuth)
	reg.Register(packet.C_OPCODE_WALK, inWorld, (*Handler).handleWalk)
	reg.Register(packet.C_OPCODE_ATTACK, inWorld, (*Handler).handleAttack)
	reg.Register(packet.C_OPCODE_QUIT, append(connected, inWorld...), (*Handler).handleQuit)
	return reg
}

// Serve handles packets of sess until it closes or ctx ends. The player, if
// any, is taken out of the world and saved before Serve returns.
func Serve(ctx context.Context, sess *net.Session, reg *packet.Registry[*Handler], deps Deps) {
	h := &Handler{
		ctx:  ctx,
		sess: sess,
		deps: deps,
		log:  deps.Log.With(zap.Uint64("session", sess.ID)),
	}
	defer h.leave()

	for {
		select {
		case data := <-sess.InQueue:
			if err := reg.Dispatch(h, sess.State(), data); err != nil {
				h.log.Debug("封包處理失敗", zap.Error(err))
			}
		case <-sess.Done():
			return
		case <-ctx.Done():
			sess.Close()
			return
		}
	}
}

func (h *Handler) call() (context.Context, context.CancelFunc) {
	return context.WithTimeout(h.ctx, h.deps.RequestTimeout)
}

func (h *Handler) handleAuth(r *packet.Reader) {
	pid := id.Forge[component.Player](r.ReadQ())
	token := r.ReadS()

	authCtx, cancel := h.call()
	err := h.deps.Game.Authenticate(authCtx, pid, token)
	cancel()
	if err != nil {
		h.log.Info("登入驗證失敗", zap.Uint64("player", pid.Uint64()), zap.Error(err))
		h.sess.Send(buildAuthFail("authentication failed", h.deps.Charset))
		return
	}

	// bcrypt time must not eat into the join deadline
	joinCtx, cancel := h.call()
	defer cancel()
	loc, err := h.deps.Game.Join(joinCtx, pid, &sink{sess: h.sess, charset: h.deps.Charset})
	if err != nil {
		h.log.Warn("進入世界失敗", zap.Uint64("player", pid.Uint64()), zap.Error(err))
		h.sess.Send(buildAuthFail(err.Error(), h.deps.Charset))
		return
	}

	h.pid, h.loc, h.joined = pid, loc, true
	h.sess.SetState(packet.StateInWorld)
	h.sess.Send(buildAuthOK(loc, h.deps.Charset))
	h.log.Info("玩家進入世界",
		zap.Uint64("player", pid.Uint64()),
		zap.Uint64("instance", loc.Instance.Uint64()),
		zap.Uint64("entity", loc.Entity.Uint64()),
	)
}

func (h *Handler) handleWalk(r *packet.Reader) {
	dir := r.ReadC()
	order := instance.Order{Kind: instance.OrderStop}
	if dir != packet.WalkStop {
		order = instance.Order{Kind: instance.OrderWalk, Direction: entity.Direction(dir)}
	}
	h.order(packet.C_OPCODE_WALK, order)
}

func (h *Handler) handleAttack(_ *packet.Reader) {
	h.order(packet.C_OPCODE_ATTACK, instance.Order{Kind: instance.OrderAttack})
}

func (h *Handler) handleQuit(_ *packet.Reader) {
	h.leave()
	h.sess.Close()
}

func (h *Handler) order(opcode byte, o instance.Order) {
	ctx, cancel := h.call()
	defer cancel()

	eid := h.loc.Entity
	_, err := game.CallInstance(ctx, h.deps.Game, h.loc.Instance, "order", func(i *instance.Instance) (struct{}, error) {
		return struct{}{}, i.Order(eid, o)
	})
	switch {
	case err == nil:
	case errors.Is(err, game.ErrInstanceNotFound), errors.Is(err, instance.ErrEntityNotFound):
		h.log.Warn("玩家所在副本已不存在", zap.Error(err))
		h.joined = false
		h.sess.Close()
	default:
		h.sess.Send(buildOrderRefused(opcode, err.Error(), h.deps.Charset))
	}
}

func (h *Handler) leave() {
	if !h.joined {
		return
	}
	h.joined = false
	// the session context may already be gone; saving must still happen
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.deps.Game.Leave(ctx, h.pid, h.loc); err != nil {
		h.log.Error("玩家離線存檔失敗", zap.Uint64("player", h.pid.Uint64()), zap.Error(err))
		return
	}
	h.log.Info("玩家離線", zap.Uint64("player", h.pid.Uint64()))
}

// sink forwards instance updates to the session's writer. Called from the
// instance goroutine; Session.Send never blocks.
type sink struct {
	sess    *net.Session
	charset *packet.Charset
}

// EntityStates sends the whole tick as one frame, or a few for crowded
// instances, so the out queue does not fill up with entity count.
func (s *sink) EntityStates(states []entity.Snapshot) {
	for _, frame := range buildEntityStates(states, s.charset) {
		s.sess.Send(frame)
	}
}

func (s *sink) EntityRemoved(eid id.ID[entity.Entity]) {
	s.sess.Send(buildEntityRemoved(eid, s.charset))
}
