package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/l1jgo/simcore/internal/component"
	"github.com/l1jgo/simcore/internal/core/id"
	"github.com/l1jgo/simcore/internal/data"
	"github.com/l1jgo/simcore/internal/dispatch"
	"github.com/l1jgo/simcore/internal/entity"
	"github.com/l1jgo/simcore/internal/instance"
	"github.com/l1jgo/simcore/internal/persist"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// joinAttempts bounds retries when a chosen instance fills up between
// placement and arrival.
const joinAttempts = 3

// abandonTimeout bounds the background cleanup of an abandoned join.
const abandonTimeout = 10 * time.Second

// Client is the goroutine-safe front of a running Game. Every call is a
// command on the game executor; work that can block (hashing, database)
// happens on the caller's goroutine.
type Client struct {
	exec    *dispatch.Executor[*Game]
	cfg     Config
	players persist.PlayerStore
	log     *zap.Logger
}

// Start runs g on its own executor goroutine.
func Start(ctx context.Context, g *Game, players persist.PlayerStore) *Client {
	exec := dispatch.New("game", g, g.cfg.QueueSize, g.log)
	go exec.Run(ctx)
	return &Client{exec: exec, cfg: g.cfg, players: players, log: g.log}
}

// Executor exposes the game executor for direct calls.
func (c *Client) Executor() dispatch.Submitter[*Game] { return c.exec }

// Stop ends the game executor. Instances are not touched; use Shutdown.
func (c *Client) Stop()                 { c.exec.Stop() }
func (c *Client) Done() <-chan struct{} { return c.exec.Done() }

func (c *Client) Maps(ctx context.Context) ([]*data.MapInfo, error) {
	return dispatch.Call(ctx, c.exec, "maps", func(g *Game) ([]*data.MapInfo, error) {
		return g.Maps(), nil
	})
}

func (c *Client) Instances(ctx context.Context, mid id.ID[component.Map]) ([]id.ID[instance.Instance], error) {
	return dispatch.Call(ctx, c.exec, "instances", func(g *Game) ([]id.ID[instance.Instance], error) {
		return g.Instances(mid)
	})
}

// ConnectCharacter allows pid to log in once with token before it expires.
func (c *Client) ConnectCharacter(ctx context.Context, pid id.ID[component.Player], token string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), c.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash token: %w", err)
	}
	_, err = dispatch.Call(ctx, c.exec, "connect_character", func(g *Game) (struct{}, error) {
		g.ConnectCharacter(pid, hash)
		return struct{}{}, nil
	})
	return err
}

// Authenticate consumes the pending connection of pid if token matches.
func (c *Client) Authenticate(ctx context.Context, pid id.ID[component.Player], token string) error {
	hash, err := dispatch.Call(ctx, c.exec, "auth.pending", func(g *Game) ([]byte, error) {
		return g.pendingHash(pid)
	})
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(token)); err != nil {
		return ErrBadToken
	}
	_, err = dispatch.Call(ctx, c.exec, "auth.consume", func(g *Game) (struct{}, error) {
		return struct{}{}, g.consumeToken(pid, hash)
	})
	return err
}

// Join loads pid from the player store and places it in an instance of its
// map. sink receives the instance updates for the player.
//
// If ctx ends while the instance still holds the add, the player is evicted
// again in the background before it is released, so a caller that gives up
// never leaves an entity behind.
func (c *Client) Join(ctx context.Context, pid id.ID[component.Player], sink instance.Sink) (Location, error) {
	rec, err := c.players.Load(ctx, pid)
	if err != nil {
		return Location{}, fmt.Errorf("load player: %w", err)
	}
	if rec == nil {
		return Location{}, fmt.Errorf("%w: %s", ErrUnknownPlayer, pid)
	}

	for attempt := 0; attempt < joinAttempts; attempt++ {
		placed := false // only touched on the game goroutine
		h, err := dispatch.Call(ctx, c.exec, "join.place", func(g *Game) (*instance.Handle, error) {
			h, err := g.PlaceInstance(pid, rec.Position.Map)
			placed = err == nil
			return h, err
		})
		if err != nil {
			if ctx.Err() != nil {
				go c.unplace(pid, &placed)
			}
			return Location{}, err
		}

		eid, err := CallInstance(ctx, c, h.ID, "add_player", func(i *instance.Instance) (id.ID[entity.Entity], error) {
			return i.AddPlayer(*rec, sink)
		})
		if err == nil {
			loc := Location{Instance: h.ID, Entity: eid}
			_, err = dispatch.Call(ctx, c.exec, "join.online", func(g *Game) (struct{}, error) {
				g.setLocation(pid, loc)
				return struct{}{}, nil
			})
			if err != nil {
				go c.abandonJoin(pid, h.ID)
				return Location{}, err
			}
			return loc, nil
		}

		if ctx.Err() != nil {
			go c.abandonJoin(pid, h.ID)
			return Location{}, err
		}
		c.releasePlayer(pid)
		if !errors.Is(err, instance.ErrFull) {
			return Location{}, err
		}
	}
	return Location{}, instance.ErrFull
}

// abandonJoin undoes a join whose caller stopped waiting. The eviction is
// queued behind the add on the instance, so it sees the entity if the add
// ran at all.
func (c *Client) abandonJoin(pid id.ID[component.Player], iid id.ID[instance.Instance]) {
	defer c.releasePlayer(pid)

	ctx, cancel := context.WithTimeout(context.Background(), abandonTimeout)
	defer cancel()
	for {
		evicted, err := CallInstance(ctx, c, iid, "evict_player", func(i *instance.Instance) (bool, error) {
			return i.EvictPlayer(pid)
		})
		if errors.Is(err, dispatch.ErrQueueFull) {
			select {
			case <-time.After(10 * time.Millisecond):
				continue
			case <-ctx.Done():
			}
		}
		switch {
		case errors.Is(err, ErrInstanceNotFound):
			// stopped instances save their players themselves
		case err != nil:
			c.log.Error("撤銷進入失敗", zap.Uint64("player", pid.Uint64()), zap.Error(err))
		case evicted:
			c.log.Info("撤銷未完成的進入", zap.Uint64("player", pid.Uint64()), zap.Uint64("instance", iid.Uint64()))
		}
		return
	}
}

// unplace drops the reservation of a place whose reply was never read. It
// is queued behind the place, so placed is settled when it runs.
func (c *Client) unplace(pid id.ID[component.Player], placed *bool) {
	err := c.exec.Submit(context.Background(), dispatch.Func[*Game]{
		Name: "join.unplace",
		Fn: func(g *Game) {
			if *placed {
				g.release(pid)
			}
		},
	})
	if err != nil && !errors.Is(err, dispatch.ErrStopped) {
		c.log.Warn("釋放玩家失敗", zap.Uint64("player", pid.Uint64()), zap.Error(err))
	}
}

// Leave takes pid out of its instance. The instance saves the record itself,
// so progress is kept even if ctx ends before the reply arrives.
func (c *Client) Leave(ctx context.Context, pid id.ID[component.Player], loc Location) error {
	defer c.releasePlayer(pid)

	_, err := CallInstance(ctx, c, loc.Instance, "leave", func(i *instance.Instance) (*component.Player, error) {
		return i.LeavePlayer(loc.Entity)
	})
	if errors.Is(err, ErrInstanceNotFound) {
		// stopped instances save their players themselves
		return nil
	}
	return err
}

func (c *Client) releasePlayer(pid id.ID[component.Player]) {
	err := c.exec.Submit(context.Background(), dispatch.Func[*Game]{
		Name: "release",
		Fn:   func(g *Game) { g.release(pid) },
	})
	if err != nil && !errors.Is(err, dispatch.ErrStopped) {
		c.log.Warn("釋放玩家失敗", zap.Uint64("player", pid.Uint64()), zap.Error(err))
	}
}

// Shutdown starts the shutdown and waits until every instance has stopped
// and saved its players, or ctx ends.
func (c *Client) Shutdown(ctx context.Context) error {
	handles, err := dispatch.Call(ctx, c.exec, "shutdown", func(g *Game) ([]*instance.Handle, error) {
		return g.StartShutdown(), nil
	})
	if err != nil {
		return err
	}
	for _, h := range handles {
		select {
		case <-h.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// CallInstance runs fn on the executor of instance iid, hopping through the
// game executor to find it. A missing instance yields ErrInstanceNotFound;
// errors returned by fn come back unchanged.
func CallInstance[R any](ctx context.Context, c *Client, iid id.ID[instance.Instance], op string, fn func(*instance.Instance) (R, error)) (R, error) {
	lookup := func(g *Game) (dispatch.Submitter[*instance.Instance], bool) {
		return g.instanceExecutor(iid)
	}
	v, err := dispatch.Route(ctx, c.exec, op, lookup, fn)
	if errors.Is(err, dispatch.ErrTargetNotFound) {
		return v, fmt.Errorf("%w: %s", ErrInstanceNotFound, iid)
	}
	return v, err
}
