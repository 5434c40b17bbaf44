package data

import (
	"fmt"
	"os"
	"sort"

	"github.com/l1jgo/simcore/internal/component"
	"gopkg.in/yaml.v3"
)

// MonsterTemplate holds static data for a monster type loaded from YAML.
type MonsterTemplate struct {
	Name   string `yaml:"name"`
	Skin   uint64 `yaml:"skin"` // 0 = draw a fresh skin on spawn
	Health uint64 `yaml:"health"`
	Level  int32  `yaml:"level"`
	Str    int32  `yaml:"str"`
	Dex    int32  `yaml:"dex"`
	Con    int32  `yaml:"con"`
	Intel  int32  `yaml:"intel"`
	Prec   int32  `yaml:"prec"`
	Wis    int32  `yaml:"wis"`
}

// Stats converts the template attributes to base stats.
func (m *MonsterTemplate) Stats() component.Stats {
	return component.Stats{
		Level:        m.Level,
		Strength:     m.Str,
		Dexterity:    m.Dex,
		Constitution: m.Con,
		Intelligence: m.Intel,
		Precision:    m.Prec,
		Wisdom:       m.Wis,
	}
}

type monsterListFile struct {
	Monsters []MonsterTemplate `yaml:"monsters"`
}

// MonsterTable holds all monster templates indexed by name.
type MonsterTable struct {
	templates map[string]*MonsterTemplate
}

// LoadMonsterTable loads monster templates from a YAML file.
func LoadMonsterTable(path string) (*MonsterTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read monster_list: %w", err)
	}
	var f monsterListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse monster_list: %w", err)
	}
	return NewMonsterTable(f.Monsters)
}

// NewMonsterTable builds a table from already decoded templates.
func NewMonsterTable(monsters []MonsterTemplate) (*MonsterTable, error) {
	t := &MonsterTable{templates: make(map[string]*MonsterTemplate, len(monsters))}
	for i := range monsters {
		m := &monsters[i]
		if m.Name == "" {
			return nil, fmt.Errorf("monster #%d: missing name", i)
		}
		if _, dup := t.templates[m.Name]; dup {
			return nil, fmt.Errorf("monster %q: duplicate name", m.Name)
		}
		if m.Health == 0 {
			m.Health = 100
		}
		t.templates[m.Name] = m
	}
	return t, nil
}

// Get returns the template named name, or nil if not found.
func (t *MonsterTable) Get(name string) *MonsterTemplate {
	if t == nil {
		return nil
	}
	return t.templates[name]
}

// Names returns the template names in sorted order.
func (t *MonsterTable) Names() []string {
	names := make([]string, 0, len(t.templates))
	for n := range t.templates {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (t *MonsterTable) Count() int {
	return len(t.templates)
}
