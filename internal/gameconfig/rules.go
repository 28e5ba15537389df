package gameconfig

import (
	"errors"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/rhofour/InfiniTDBackend-sub000/internal/domain"
)

var (
	ErrInvalidConfig  = errors.New("invalid game config")
	ErrUnknownTower   = errors.New("unknown tower id")
	ErrUnknownMonster = errors.New("unknown monster id")
)

// Rules - проверенное представление GameConfig только для чтения.
// После создания безопасно для общего доступа из горутин.
type Rules struct {
	cfg      GameConfig
	towers   map[domain.ConfigID]TowerConfig
	monsters map[domain.ConfigID]MonsterConfig
	bounties map[domain.ConfigID]float64
}

// NewRules проверяет cfg и компилирует выражения бонусов.
func NewRules(cfg GameConfig) (*Rules, error) {
	pf := cfg.Playfield
	if pf.NumRows <= 0 || pf.NumCols <= 0 {
		return nil, fmt.Errorf("%w: playfield must be at least 1x1, got %dx%d", ErrInvalidConfig, pf.NumRows, pf.NumCols)
	}
	if !pf.MonsterEnter.InBounds(pf.NumRows, pf.NumCols) {
		return nil, fmt.Errorf("%w: monsterEnter %s outside playfield", ErrInvalidConfig, pf.MonsterEnter)
	}
	if !pf.MonsterExit.InBounds(pf.NumRows, pf.NumCols) {
		return nil, fmt.Errorf("%w: monsterExit %s outside playfield", ErrInvalidConfig, pf.MonsterExit)
	}
	if pf.MonsterEnter == pf.MonsterExit {
		return nil, fmt.Errorf("%w: monsterEnter and monsterExit must differ", ErrInvalidConfig)
	}

	r := &Rules{
		cfg:      cfg,
		towers:   make(map[domain.ConfigID]TowerConfig, len(cfg.Towers)),
		monsters: make(map[domain.ConfigID]MonsterConfig, len(cfg.Monsters)),
		bounties: make(map[domain.ConfigID]float64, len(cfg.Monsters)),
	}

	for _, t := range cfg.Towers {
		if _, dup := r.towers[t.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate tower id %d", ErrInvalidConfig, t.ID)
		}
		if t.FiringRate < 0 || t.Range < 0 || t.Damage < 0 {
			return nil, fmt.Errorf("%w: tower %d (%s) has negative stats", ErrInvalidConfig, t.ID, t.Name)
		}
		if t.FiringRate > 0 && t.ProjectileSpeed <= 0 {
			return nil, fmt.Errorf("%w: tower %d (%s) fires but has projectileSpeed %v", ErrInvalidConfig, t.ID, t.Name, t.ProjectileSpeed)
		}
		r.towers[t.ID] = t
	}

	for _, m := range cfg.Monsters {
		if _, dup := r.monsters[m.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate monster id %d", ErrInvalidConfig, m.ID)
		}
		if m.Speed <= 0 {
			return nil, fmt.Errorf("%w: monster %d (%s) must have positive speed", ErrInvalidConfig, m.ID, m.Name)
		}
		if m.Health <= 0 {
			return nil, fmt.Errorf("%w: monster %d (%s) must have positive health", ErrInvalidConfig, m.ID, m.Name)
		}
		r.monsters[m.ID] = m
		r.bounties[m.ID] = m.Bounty
	}

	// Бонусы копируются: скомпилированные программы не попадают в конфиг вызывающего.
	bonuses := make([]BattleBonus, len(cfg.Misc.BattleBonuses))
	seen := make(map[domain.ConfigID]bool, len(bonuses))
	for i, b := range cfg.Misc.BattleBonuses {
		if seen[b.ID] {
			return nil, fmt.Errorf("%w: duplicate bonus id %d", ErrInvalidConfig, b.ID)
		}
		seen[b.ID] = true
		if b.Kind != BonusAdditive && b.Kind != BonusMultiplicative {
			return nil, fmt.Errorf("%w: bonus %d has unknown type %q", ErrInvalidConfig, b.ID, b.Kind)
		}
		conds := make([]BonusCondition, len(b.Conditions))
		for j, c := range b.Conditions {
			if c.When != "" {
				prog, err := expr.Compile(c.When, expr.Env(ConditionEnv{}), expr.AsBool())
				if err != nil {
					return nil, fmt.Errorf("%w: bonus %d condition %d: %v", ErrInvalidConfig, b.ID, j, err)
				}
				c.program = prog
			}
			conds[j] = c
		}
		b.Conditions = conds
		bonuses[i] = b
	}
	r.cfg.Misc.BattleBonuses = bonuses

	return r, nil
}

// Config возвращает исходную конфигурацию.
func (r *Rules) Config() GameConfig { return r.cfg }

func (r *Rules) Playfield() PlayfieldConfig { return r.cfg.Playfield }

func (r *Rules) Tower(id domain.ConfigID) (TowerConfig, error) {
	t, ok := r.towers[id]
	if !ok {
		return TowerConfig{}, fmt.Errorf("%w: %d", ErrUnknownTower, id)
	}
	return t, nil
}

func (r *Rules) Monster(id domain.ConfigID) (MonsterConfig, error) {
	m, ok := r.monsters[id]
	if !ok {
		return MonsterConfig{}, fmt.Errorf("%w: %d", ErrUnknownMonster, id)
	}
	return m, nil
}

// MonsterByName ищет монстра по отображаемому имени (для CLI).
func (r *Rules) MonsterByName(name string) (MonsterConfig, bool) {
	for _, m := range r.cfg.Monsters {
		if m.Name == name {
			return m, true
		}
	}
	return MonsterConfig{}, false
}

// TowerByName ищет башню по отображаемому имени (для CLI).
func (r *Rules) TowerByName(name string) (TowerConfig, bool) {
	for _, t := range r.cfg.Towers {
		if t.Name == name {
			return t, true
		}
	}
	return TowerConfig{}, false
}

// Bounties - награды по id монстра. Карта общая, не изменять.
func (r *Rules) Bounties() map[domain.ConfigID]float64 { return r.bounties }

// Bonuses возвращает бонусы в порядке конфигурации.
func (r *Rules) Bonuses() []BattleBonus { return r.cfg.Misc.BattleBonuses }

// Eval сообщает, выполняется ли выражение условия.
// Условие без выражения выполняется всегда.
func (c BonusCondition) Eval(env ConditionEnv) (bool, error) {
	if c.When == "" {
		return true, nil
	}
	prog := c.program
	if prog == nil {
		// Условие собрано вручную, а не через NewRules.
		compiled, err := expr.Compile(c.When, expr.Env(ConditionEnv{}), expr.AsBool())
		if err != nil {
			return false, fmt.Errorf("compile %q: %w", c.When, err)
		}
		prog = compiled
	}
	out, err := vm.Run(prog, env)
	if err != nil {
		return false, fmt.Errorf("evaluate %q: %w", c.When, err)
	}
	ok, _ := out.(bool)
	return ok, nil
}
