package game

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/l1jgo/simcore/internal/component"
	"github.com/l1jgo/simcore/internal/core/id"
	"github.com/l1jgo/simcore/internal/data"
	"github.com/l1jgo/simcore/internal/dispatch"
	"github.com/l1jgo/simcore/internal/entity"
	"github.com/l1jgo/simcore/internal/instance"
	"go.uber.org/zap"
)

var (
	ErrInstanceNotFound = errors.New("instance not found")
	ErrMapNotFound      = errors.New("map not found")
	ErrBadToken         = errors.New("invalid or expired connection token")
	ErrUnknownPlayer    = errors.New("unknown player")
	ErrAlreadyOnline    = errors.New("player already online")
	ErrShuttingDown     = errors.New("server shutting down")
)

// Config holds the game-wide tunables.
type Config struct {
	QueueSize  int
	TickRate   time.Duration
	BcryptCost int
	TokenTTL   time.Duration
}

// Location is where an online player lives.
type Location struct {
	Instance id.ID[instance.Instance] `json:"instance"`
	Entity   id.ID[entity.Entity]     `json:"entity"`
}

type pendingConn struct {
	hash    []byte
	expires time.Time
}

// Game is the top-level state: the instance registry and the players that
// are connecting or online. It is owned by the game executor.
type Game struct {
	cfg    Config
	maps   *data.MapTable
	deps   instance.Deps
	runCtx context.Context

	instances   map[id.ID[instance.Instance]]*instance.Handle
	byMap       map[id.ID[component.Map]][]id.ID[instance.Instance]
	instanceIDs *id.Sequence

	pending map[id.ID[component.Player]]pendingConn
	online  map[id.ID[component.Player]]Location

	shutdown bool
	quit     chan struct{}
	quitOnce sync.Once
	now      func() time.Time
	log      *zap.Logger
}

// New builds the game and starts one instance per catalog map. Instance
// executors live until ctx ends or the game shuts down.
func New(ctx context.Context, cfg Config, maps *data.MapTable, deps instance.Deps, log *zap.Logger) *Game {
	g := &Game{
		cfg:         cfg,
		maps:        maps,
		deps:        deps,
		runCtx:      ctx,
		instances:   make(map[id.ID[instance.Instance]]*instance.Handle),
		byMap:       make(map[id.ID[component.Map]][]id.ID[instance.Instance]),
		instanceIDs: id.NewSequence(1),
		pending:     make(map[id.ID[component.Player]]pendingConn),
		online:      make(map[id.ID[component.Player]]Location),
		quit:        make(chan struct{}),
		now:         time.Now,
		log:         log,
	}
	for _, m := range maps.All() {
		g.spawnInstance(m)
	}
	return g
}

// Maps returns every map of the catalog.
func (g *Game) Maps() []*data.MapInfo {
	return g.maps.All()
}

// Instances returns the running instances of a map.
func (g *Game) Instances(mid id.ID[component.Map]) ([]id.ID[instance.Instance], error) {
	if g.maps.Get(mid) == nil {
		return nil, fmt.Errorf("%w: %s", ErrMapNotFound, mid)
	}
	out := append([]id.ID[instance.Instance](nil), g.byMap[mid]...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// ConnectCharacter records that pid may connect with the token whose
// bcrypt hash is given. A newer token replaces an older one.
func (g *Game) ConnectCharacter(pid id.ID[component.Player], hash []byte) {
	g.pending[pid] = pendingConn{hash: hash, expires: g.now().Add(g.cfg.TokenTTL)}
	g.log.Debug("角色連線授權", zap.Uint64("player", pid.Uint64()))
}

func (g *Game) pendingHash(pid id.ID[component.Player]) ([]byte, error) {
	pc, ok := g.pending[pid]
	if !ok {
		return nil, ErrBadToken
	}
	if g.now().After(pc.expires) {
		delete(g.pending, pid)
		return nil, ErrBadToken
	}
	return pc.hash, nil
}

// consumeToken drops the pending connection if it still carries hash.
func (g *Game) consumeToken(pid id.ID[component.Player], hash []byte) error {
	pc, ok := g.pending[pid]
	if !ok || string(pc.hash) != string(hash) {
		return ErrBadToken
	}
	delete(g.pending, pid)
	return nil
}

// PlaceInstance picks an instance of mid with room for one more player,
// starting a new one when all are full, and reserves pid as online.
func (g *Game) PlaceInstance(pid id.ID[component.Player], mid id.ID[component.Map]) (*instance.Handle, error) {
	if g.shutdown {
		return nil, ErrShuttingDown
	}
	m := g.maps.Get(mid)
	if m == nil {
		return nil, fmt.Errorf("%w: %s", ErrMapNotFound, mid)
	}
	if _, ok := g.online[pid]; ok {
		return nil, ErrAlreadyOnline
	}
	var h *instance.Handle
	for _, iid := range g.byMap[mid] {
		if cand := g.instances[iid]; cand != nil && cand.HasRoom() {
			h = cand
			break
		}
	}
	if h == nil {
		h = g.spawnInstance(m)
	}
	g.online[pid] = Location{Instance: h.ID}
	return h, nil
}

func (g *Game) setLocation(pid id.ID[component.Player], loc Location) {
	g.online[pid] = loc
}

func (g *Game) release(pid id.ID[component.Player]) {
	delete(g.online, pid)
}

// Online returns where pid is, if connected.
func (g *Game) Online(pid id.ID[component.Player]) (Location, bool) {
	loc, ok := g.online[pid]
	return loc, ok
}

// StartShutdown stops accepting players and stops every instance; each
// instance saves its players as it stops. Quit is closed.
func (g *Game) StartShutdown() []*instance.Handle {
	g.shutdown = true
	handles := make([]*instance.Handle, 0, len(g.instances))
	for iid, h := range g.instances {
		h.Stop()
		handles = append(handles, h)
		delete(g.instances, iid)
	}
	clear(g.byMap)
	g.quitOnce.Do(func() { close(g.quit) })
	g.log.Info("開始關閉伺服器", zap.Int("instances", len(handles)))
	return handles
}

// Quit is closed once shutdown has started. Safe from any goroutine.
func (g *Game) Quit() <-chan struct{} { return g.quit }

func (g *Game) instanceExecutor(iid id.ID[instance.Instance]) (dispatch.Submitter[*instance.Instance], bool) {
	h, ok := g.instances[iid]
	if !ok {
		return nil, false
	}
	return h.Executor(), true
}

func (g *Game) spawnInstance(m *data.MapInfo) *instance.Handle {
	iid := id.Next[instance.Instance](g.instanceIDs)
	inst := instance.New(iid, m, g.deps)
	h := instance.Start(g.runCtx, inst, g.cfg.QueueSize, g.cfg.TickRate)
	g.instances[iid] = h
	g.byMap[m.ID] = append(g.byMap[m.ID], iid)
	g.log.Info("副本啟動", zap.Uint64("instance", iid.Uint64()), zap.String("map", m.Name))
	return h
}
