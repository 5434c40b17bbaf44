package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/l1jgo/simcore/internal/component"
	"github.com/l1jgo/simcore/internal/core/id"
)

// PlayerRepo stores players in PostgreSQL.
type PlayerRepo struct {
	db *DB
}

func NewPlayerRepo(db *DB) *PlayerRepo {
	return &PlayerRepo{db: db}
}

func (r *PlayerRepo) Load(ctx context.Context, pid id.ID[component.Player]) (*component.Player, error) {
	var (
		skin, pv, mapID, exp, gold int64
		p                          component.Player
	)
	err := r.db.Pool.QueryRow(ctx,
		`SELECT name, skin, current_pv, x, y, map_id, experience, gold, guild,
		        level, strength, dexterity, constitution, intelligence, precision, wisdom
		 FROM players WHERE id = $1`, int64(pid),
	).Scan(
		&p.Name, &skin, &pv, &p.Position.X, &p.Position.Y, &mapID, &exp, &gold, &p.Guild,
		&p.Stats.Level, &p.Stats.Strength, &p.Stats.Dexterity, &p.Stats.Constitution,
		&p.Stats.Intelligence, &p.Stats.Precision, &p.Stats.Wisdom,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load player %s: %w", pid, err)
	}
	p.ID = pid
	p.Skin = uint64(skin)
	p.CurrentHealth = uint64(pv)
	p.Position.Map = id.Forge[component.Map](uint64(mapID))
	p.Experience = uint64(exp)
	p.Gold = uint64(gold)
	return &p, nil
}

func (r *PlayerRepo) Save(ctx context.Context, p component.Player) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO players (id, name, skin, current_pv, x, y, map_id,
		                      level, strength, dexterity, constitution, intelligence, precision, wisdom)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 ON CONFLICT (id) DO UPDATE SET
		    name = EXCLUDED.name, skin = EXCLUDED.skin, current_pv = EXCLUDED.current_pv,
		    x = EXCLUDED.x, y = EXCLUDED.y, map_id = EXCLUDED.map_id,
		    level = EXCLUDED.level, strength = EXCLUDED.strength, dexterity = EXCLUDED.dexterity,
		    constitution = EXCLUDED.constitution, intelligence = EXCLUDED.intelligence,
		    precision = EXCLUDED.precision, wisdom = EXCLUDED.wisdom,
		    updated_at = NOW()`,
		int64(p.ID), p.Name, int64(p.Skin), int64(p.CurrentHealth),
		p.Position.X, p.Position.Y, int64(p.Position.Map),
		p.Stats.Level, p.Stats.Strength, p.Stats.Dexterity, p.Stats.Constitution,
		p.Stats.Intelligence, p.Stats.Precision, p.Stats.Wisdom,
	)
	if err != nil {
		return fmt.Errorf("save player %s: %w", p.ID, err)
	}
	return nil
}
