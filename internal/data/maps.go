package data

import (
	"fmt"
	"os"
	"sort"

	"github.com/l1jgo/simcore/internal/component"
	"github.com/l1jgo/simcore/internal/core/id"
	"gopkg.in/yaml.v3"
)

// MapInfo holds metadata for a single map, loaded from map_list.yaml.
type MapInfo struct {
	ID         id.ID[component.Map] `yaml:"map_id" json:"id"`
	Name       string               `yaml:"name" json:"name"`
	Width      float32              `yaml:"width" json:"width"`
	Height     float32              `yaml:"height" json:"height"`
	MaxPlayers int                  `yaml:"max_players" json:"max_players,omitempty"` // 0 = server default
	Spawns     []MapSpawn           `yaml:"spawns" json:"-"`
}

// MapSpawn places monsters in every new instance of a map.
type MapSpawn struct {
	Template string  `yaml:"template"`
	X        float32 `yaml:"x"`
	Y        float32 `yaml:"y"`
	Count    int     `yaml:"count"`
}

type mapListFile struct {
	Maps []MapInfo `yaml:"maps"`
}

// MapTable provides map metadata lookups.
type MapTable struct {
	maps  map[id.ID[component.Map]]*MapInfo
	order []id.ID[component.Map]
}

// LoadMapTable loads map metadata from a YAML file.
func LoadMapTable(path string) (*MapTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read map list %s: %w", path, err)
	}
	var file mapListFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse map list: %w", err)
	}
	return NewMapTable(file.Maps)
}

// NewMapTable builds a table from already decoded entries.
func NewMapTable(maps []MapInfo) (*MapTable, error) {
	t := &MapTable{maps: make(map[id.ID[component.Map]]*MapInfo, len(maps))}
	for i := range maps {
		m := &maps[i]
		if m.ID.IsZero() {
			return nil, fmt.Errorf("map %q: map_id must be non-zero", m.Name)
		}
		if _, dup := t.maps[m.ID]; dup {
			return nil, fmt.Errorf("map %s: duplicate map_id", m.ID)
		}
		for j := range m.Spawns {
			if m.Spawns[j].Count <= 0 {
				m.Spawns[j].Count = 1
			}
		}
		t.maps[m.ID] = m
		t.order = append(t.order, m.ID)
	}
	sort.Slice(t.order, func(i, j int) bool { return t.order[i] < t.order[j] })
	return t, nil
}

// Get returns the map for mid, or nil if not found.
func (t *MapTable) Get(mid id.ID[component.Map]) *MapInfo {
	return t.maps[mid]
}

// All returns every map ordered by id.
func (t *MapTable) All() []*MapInfo {
	out := make([]*MapInfo, 0, len(t.order))
	for _, mid := range t.order {
		out = append(out, t.maps[mid])
	}
	return out
}

func (t *MapTable) Count() int {
	return len(t.maps)
}
