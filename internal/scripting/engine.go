package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/l1jgo/simcore/internal/entity"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM for combat rules. It is shared by
// every instance goroutine; mu serializes access to the Lua state.
type Engine struct {
	mu  sync.Mutex
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts from the given directory.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState()
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}
	for _, sub := range []string{"core", "combat"} {
		if err := e.loadDir(filepath.Join(scriptsDir, sub)); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load %s scripts: %w", sub, err)
		}
	}
	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// AttackContext holds pre-packed data for one attack calculation.
type AttackContext struct {
	AttackerLevel int
	AttackerStr   int
	AttackerDex   int
	AttackerPrec  int
	TargetLevel   int
	TargetCon     int
	TargetDex     int
	TargetHealth  int
}

// AttackResult is returned by the Lua combat function.
type AttackResult struct {
	IsHit  bool
	Damage int
}

// HasAttackFormula reports whether calc_attack_damage is defined.
func (e *Engine) HasAttackFormula() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.vm.GetGlobal("calc_attack_damage") != lua.LNil
}

// CalcAttackDamage calls the Lua calc_attack_damage function.
func (e *Engine) CalcAttackDamage(ctx AttackContext) AttackResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	fn := e.vm.GetGlobal("calc_attack_damage")
	if fn == lua.LNil {
		e.log.Error("lua function calc_attack_damage not found")
		return AttackResult{IsHit: true, Damage: 1}
	}

	t := e.vm.NewTable()

	atk := e.vm.NewTable()
	atk.RawSetString("level", lua.LNumber(ctx.AttackerLevel))
	atk.RawSetString("str", lua.LNumber(ctx.AttackerStr))
	atk.RawSetString("dex", lua.LNumber(ctx.AttackerDex))
	atk.RawSetString("prec", lua.LNumber(ctx.AttackerPrec))
	t.RawSetString("attacker", atk)

	tgt := e.vm.NewTable()
	tgt.RawSetString("level", lua.LNumber(ctx.TargetLevel))
	tgt.RawSetString("con", lua.LNumber(ctx.TargetCon))
	tgt.RawSetString("dex", lua.LNumber(ctx.TargetDex))
	tgt.RawSetString("pv", lua.LNumber(ctx.TargetHealth))
	t.RawSetString("target", tgt)

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua calc_attack_damage error", zap.Error(err))
		return AttackResult{IsHit: true, Damage: 1}
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	rt, ok := result.(*lua.LTable)
	if !ok {
		e.log.Error("lua calc_attack_damage returned non-table")
		return AttackResult{IsHit: true, Damage: 1}
	}

	return AttackResult{
		IsHit:  rt.RawGetString("is_hit") == lua.LTrue,
		Damage: int(lua.LVAsNumber(rt.RawGetString("damage"))),
	}
}

// Damage adapts the script to the entity update pass. Falls back to
// entity.DefaultDamage when no formula is loaded.
func (e *Engine) Damage() entity.DamageFunc {
	if !e.HasAttackFormula() {
		return entity.DefaultDamage
	}
	return func(attacker, target *entity.Entity) uint64 {
		a, t := attacker.BaseStats(), target.BaseStats()
		res := e.CalcAttackDamage(AttackContext{
			AttackerLevel: int(a.Level),
			AttackerStr:   int(a.Strength),
			AttackerDex:   int(a.Dexterity),
			AttackerPrec:  int(a.Precision),
			TargetLevel:   int(t.Level),
			TargetCon:     int(t.Constitution),
			TargetDex:     int(t.Dexterity),
			TargetHealth:  int(target.Health()),
		})
		if !res.IsHit || res.Damage <= 0 {
			return 0
		}
		return uint64(res.Damage)
	}
}

func (e *Engine) Close() {
	e.vm.Close()
}
