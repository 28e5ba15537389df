package gameconfig

import (
	"github.com/expr-lang/expr/vm"

	"github.com/rhofour/InfiniTDBackend-sub000/internal/domain"
)

// PlayfieldConfig описывает сетку, вход и выход монстров.
type PlayfieldConfig struct {
	NumRows      int            `yaml:"numRows" json:"numRows"`
	NumCols      int            `yaml:"numCols" json:"numCols"`
	MonsterEnter domain.CellPos `yaml:"monsterEnter" json:"monsterEnter"`
	MonsterExit  domain.CellPos `yaml:"monsterExit" json:"monsterExit"`
}

type TowerConfig struct {
	ID              domain.ConfigID `yaml:"id" json:"id"`
	Name            string          `yaml:"name" json:"name"`
	Cost            float64         `yaml:"cost" json:"cost"`
	FiringRate      float64         `yaml:"firingRate" json:"firingRate"` // выстрелов в секунду, 0 - не стреляет
	Range           float64         `yaml:"range" json:"range"`
	Damage          float64         `yaml:"damage" json:"damage"`
	ProjectileSpeed float64         `yaml:"projectileSpeed" json:"projectileSpeed"` // клеток в секунду
	ProjectileID    domain.ConfigID `yaml:"projectileId" json:"projectileId"`
}

type MonsterConfig struct {
	ID     domain.ConfigID `yaml:"id" json:"id"`
	Name   string          `yaml:"name" json:"name"`
	Health float64         `yaml:"health" json:"health"`
	Speed  float64         `yaml:"speed" json:"speed"` // клеток в секунду
	Bounty float64         `yaml:"bounty" json:"bounty"`
	Size   float64         `yaml:"size" json:"size"`
}

type BonusKind string

const (
	BonusAdditive       BonusKind = "ADDITIVE"
	BonusMultiplicative BonusKind = "MULTIPLICATIVE"
)

// BonusCondition выполнено, когда общий процент побежденных монстров достигает
// PercentDefeated. When - необязательное логическое выражение над ConditionEnv.
type BonusCondition struct {
	PercentDefeated *float64 `yaml:"percentDefeated,omitempty" json:"percentDefeated,omitempty"`
	When            string   `yaml:"when,omitempty" json:"when,omitempty"`

	program *vm.Program
}

// ConditionEnv - окружение, в котором вычисляются выражения бонусов.
type ConditionEnv struct {
	PercentDefeated float64
	TotalDefeated   int
	TotalSent       int
	Reward          float64
}

type BattleBonus struct {
	ID         domain.ConfigID  `yaml:"id" json:"id"`
	Name       string           `yaml:"name" json:"name"`
	Kind       BonusKind        `yaml:"bonusType" json:"bonusType"`
	Amount     float64          `yaml:"bonusAmount" json:"bonusAmount"`
	Conditions []BonusCondition `yaml:"conditions" json:"conditions"`
}

type MiscConfig struct {
	SellMultiplier   float64       `yaml:"sellMultiplier" json:"sellMultiplier"`
	StartingGold     float64       `yaml:"startingGold" json:"startingGold"`
	MinGoldPerMinute float64       `yaml:"minGoldPerMinute" json:"minGoldPerMinute"`
	RivalRadius      int           `yaml:"rivalRadius" json:"rivalRadius"`
	RivalMultiplier  float64       `yaml:"rivalMultiplier" json:"rivalMultiplier"`
	BattleBonuses    []BattleBonus `yaml:"battleBonuses" json:"battleBonuses"`
}

// GameConfig повторяет YAML-документ.
type GameConfig struct {
	Playfield PlayfieldConfig `yaml:"playfield" json:"playfield"`
	Towers    []TowerConfig   `yaml:"towers" json:"towers"`
	Monsters  []MonsterConfig `yaml:"monsters" json:"monsters"`
	Misc      MiscConfig      `yaml:"misc" json:"misc"`
}
