package persist

import (
	"context"
	"sync"

	"github.com/l1jgo/simcore/internal/component"
	"github.com/l1jgo/simcore/internal/core/id"
	"github.com/l1jgo/simcore/internal/entity"
)

// MemoryStore keeps players in process memory. Unknown players are made up
// on first load, so a server without a database still accepts anyone.
type MemoryStore struct {
	mu      sync.Mutex
	players map[id.ID[component.Player]]component.Player
	skins   *id.Sequence
}

func NewMemoryStore(skins *id.Sequence) *MemoryStore {
	return &MemoryStore{
		players: make(map[id.ID[component.Player]]component.Player),
		skins:   skins,
	}
}

func (s *MemoryStore) Load(_ context.Context, pid id.ID[component.Player]) (*component.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[pid]
	if !ok {
		p = entity.FakePlayerRecord(pid, s.skins)
		s.players[pid] = p
	}
	return &p, nil
}

func (s *MemoryStore) Save(_ context.Context, p component.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.players[p.ID]; ok {
		p.Experience = old.Experience
		p.Gold = old.Gold
		p.Guild = old.Guild
	}
	s.players[p.ID] = p
	return nil
}

// Put stores p as is, including the fields Save leaves alone.
func (s *MemoryStore) Put(p component.Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[p.ID] = p
}
