// Package management serves the HTTP administration API of the game server.
package management

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/l1jgo/simcore/internal/component"
	"github.com/l1jgo/simcore/internal/core/id"
	"github.com/l1jgo/simcore/internal/entity"
	"github.com/l1jgo/simcore/internal/game"
	"github.com/l1jgo/simcore/internal/instance"
	"go.uber.org/zap"
)

// Server routes management requests to the game executor.
type Server struct {
	game    *game.Client
	timeout time.Duration
	log     *zap.Logger
	router  *mux.Router
}

// ConnectCharacter is the body of POST /connect_character.
type ConnectCharacter struct {
	ID    uint64 `json:"id"`
	Token string `json:"token"`
}

func NewServer(g *game.Client, timeout time.Duration, log *zap.Logger) *Server {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	s := &Server{game: g, timeout: timeout, log: log, router: mux.NewRouter()}

	s.router.HandleFunc("/maps", s.maps).Methods(http.MethodGet)
	s.router.HandleFunc("/maps/{id}/instances", s.instances).Methods(http.MethodGet)
	s.router.HandleFunc("/instances/{id}/entities", s.entities).Methods(http.MethodGet)
	s.router.HandleFunc("/instances/{id}/spawn", s.spawn).Methods(http.MethodPost)
	s.router.HandleFunc("/instances/{instance_id}/entities/{entity_id}", s.removeEntity).Methods(http.MethodDelete)
	s.router.HandleFunc("/shutdown", s.shutdown).Methods(http.MethodPost)
	s.router.HandleFunc("/connect_character", s.connectCharacter).Methods(http.MethodPost)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: s.timeout,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log.Info("管理介面啟動", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("management listen %s: %w", addr, err)
	}
	return nil
}

func (s *Server) maps(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	maps, err := s.game.Maps(ctx)
	if err != nil {
		s.fail(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.writeJSON(w, maps)
}

func (s *Server) instances(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["id"]
	mid, err := id.Parse[component.Map](raw)
	if err != nil {
		s.fail(w, http.StatusBadRequest, fmt.Sprintf("ERROR: invalid id %s: %v", raw, err))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	ids, err := s.game.Instances(ctx, mid)
	switch {
	case errors.Is(err, game.ErrMapNotFound):
		s.fail(w, http.StatusBadRequest, fmt.Sprintf("ERROR: Non existent map id %s", mid))
		return
	case err != nil:
		s.fail(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.writeJSON(w, ids)
}

func (s *Server) entities(w http.ResponseWriter, r *http.Request) {
	iid, ok := s.instanceID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	snaps, err := game.CallInstance(ctx, s.game, iid, "entities", func(i *instance.Instance) ([]entity.Snapshot, error) {
		return i.Entities(), nil
	})
	if err != nil {
		s.instanceError(w, iid, err)
		return
	}
	s.writeJSON(w, snaps)
}

func (s *Server) spawn(w http.ResponseWriter, r *http.Request) {
	iid, ok := s.instanceID(w, r, "id")
	if !ok {
		return
	}
	var req instance.SpawnMonster
	if !s.decode(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	snap, err := game.CallInstance(ctx, s.game, iid, "spawn", func(i *instance.Instance) (entity.Snapshot, error) {
		eid, err := i.SpawnMonster(req)
		if err != nil {
			return entity.Snapshot{}, err
		}
		return i.Store().Get(eid).Snapshot(), nil
	})
	switch {
	case errors.Is(err, instance.ErrUnknownMonster):
		s.fail(w, http.StatusBadRequest, fmt.Sprintf("ERROR: %v", err))
		return
	case err != nil:
		s.instanceError(w, iid, err)
		return
	}
	s.writeJSON(w, snap)
}

func (s *Server) removeEntity(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	iid, err := id.Parse[instance.Instance](vars["instance_id"])
	if err != nil {
		s.fail(w, http.StatusBadRequest, fmt.Sprintf("ERROR: invalid instance id %s: %v", vars["instance_id"], err))
		return
	}
	eid, err := id.Parse[entity.Entity](vars["entity_id"])
	if err != nil {
		s.fail(w, http.StatusBadRequest, fmt.Sprintf("ERROR: invalid entity id %s: %v", vars["entity_id"], err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	_, err = game.CallInstance(ctx, s.game, iid, "remove_entity", func(i *instance.Instance) (struct{}, error) {
		return struct{}{}, i.RemoveEntity(eid)
	})
	switch {
	case err == nil:
		s.ok(w)
	case errors.Is(err, instance.ErrEntityNotFound):
		s.fail(w, http.StatusBadRequest, fmt.Sprintf("ERROR: Entity %s not found in instance %s", eid, iid))
	case errors.Is(err, instance.ErrIsPlayer):
		s.fail(w, http.StatusBadRequest, fmt.Sprintf("ERROR: Entity %s is a player", eid))
	default:
		s.instanceError(w, iid, err)
	}
}

func (s *Server) shutdown(w http.ResponseWriter, r *http.Request) {
	s.log.Info("收到管理介面關機請求")
	// the shutdown outlives the request; progress is observed through Game.Quit
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := s.game.Shutdown(ctx); err != nil {
			s.log.Error("關機失敗", zap.Error(err))
		}
	}()
	s.ok(w)
}

func (s *Server) connectCharacter(w http.ResponseWriter, r *http.Request) {
	var req ConnectCharacter
	if !s.decode(w, r, &req) {
		return
	}
	s.log.Debug("收到角色連線請求", zap.Uint64("player", req.ID))

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	if err := s.game.ConnectCharacter(ctx, id.Forge[component.Player](req.ID), req.Token); err != nil {
		s.fail(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.ok(w)
}

func (s *Server) instanceID(w http.ResponseWriter, r *http.Request, key string) (id.ID[instance.Instance], bool) {
	raw := mux.Vars(r)[key]
	iid, err := id.Parse[instance.Instance](raw)
	if err != nil {
		s.fail(w, http.StatusBadRequest, fmt.Sprintf("ERROR: invalid id %s: %v", raw, err))
		return 0, false
	}
	return iid, true
}

func (s *Server) instanceError(w http.ResponseWriter, iid id.ID[instance.Instance], err error) {
	if errors.Is(err, game.ErrInstanceNotFound) {
		s.fail(w, http.StatusBadRequest, fmt.Sprintf("ERROR: Non existent instance id %s", iid))
		return
	}
	s.fail(w, http.StatusServiceUnavailable, err.Error())
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		s.fail(w, http.StatusBadRequest, fmt.Sprintf("ERROR: reading body: %v", err))
		return false
	}
	if len(body) == 0 {
		s.fail(w, http.StatusBadRequest, "ERROR: No JSON body provided")
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		s.fail(w, http.StatusBadRequest, fmt.Sprintf("ERROR: JSON decoding error: %v", err))
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		s.log.Error("JSON 編碼失敗", zap.Error(err))
		s.fail(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

func (s *Server) ok(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "OK")
}

func (s *Server) fail(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, msg)
}
