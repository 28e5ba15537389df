package engine

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rhofour/InfiniTDBackend-sub000/internal/domain"
	"github.com/rhofour/InfiniTDBackend-sub000/internal/gameconfig"
	"github.com/rhofour/InfiniTDBackend-sub000/internal/pathing"
	"github.com/rhofour/InfiniTDBackend-sub000/internal/rewards"
	"github.com/rhofour/InfiniTDBackend-sub000/pkg/logger"
	"github.com/rhofour/InfiniTDBackend-sub000/pkg/utils"
)

// pcgStream - второе слово состояния PCG, общее для всех расчетов.
const pcgStream = 0x9e3779b97f4a7c15

// CalcResults - результат одного расчета битвы.
type CalcResults struct {
	Events  []domain.Event
	Results domain.BattleResults
	Seed    int64
}

// Computer считает битвы по загруженным правилам.
// Сам Computer не хранит изменяемого состояния, но Pool все равно дает каждому воркеру свой экземпляр.
type Computer struct {
	rules *gameconfig.Rules
	cfg   Config
	log   *logrus.Entry
}

func NewComputer(rules *gameconfig.Rules, cfg Config) *Computer {
	if cfg.EventPrecision <= 0 {
		cfg.EventPrecision = domain.EventPrecision
	}
	return &Computer{
		rules: rules,
		cfg:   cfg,
		log:   logger.WithComponent("engine"),
	}
}

func (c *Computer) Rules() *gameconfig.Rules { return c.rules }

func (c *Computer) Config() Config { return c.cfg }

// Seed выводит сид из полного снимка поля и волны.
func Seed(bg domain.Battleground, wave domain.Wave) int64 {
	return utils.DeriveSeed(bg.Fingerprint(), wave.Fingerprint())
}

// Compute считает битву с сидом, выведенным из входных данных.
func (c *Computer) Compute(bg domain.Battleground, wave domain.Wave) (*CalcResults, error) {
	return c.ComputeWithSeed(bg, wave, Seed(bg, wave))
}

// ComputeWithSeed считает битву с заданным сидом.
// Ошибки ввода возвращаются как есть, нарушения инвариантов оборачиваются в *CalculationError.
func (c *Computer) ComputeWithSeed(bg domain.Battleground, wave domain.Wave, seed int64) (*CalcResults, error) {
	state, err := c.prepare(bg, wave, seed)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	res, err := c.run(state)
	if err != nil {
		c.log.WithFields(logrus.Fields{
			"seed":      seed,
			"wave_len":  len(wave),
			"game_time": state.gameTime,
		}).WithError(err).Error("Battle calculation failed")
		return nil, &CalculationError{Seed: seed, WaveLen: len(wave), Err: err}
	}
	res.Seed = seed

	c.log.WithFields(logrus.Fields{
		"seed":     seed,
		"wave_len": len(wave),
		"events":   len(res.Events),
		"elapsed":  time.Since(started),
	}).Debug("Battle calculated")
	return res, nil
}

// prepare проверяет весь ввод и строит начальное состояние.
// Все пути выбираются заранее, так что после prepare ошибок ввода уже не бывает.
func (c *Computer) prepare(bg domain.Battleground, wave domain.Wave, seed int64) (*battleState, error) {
	if c.cfg.TickSecs <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTickLength, c.cfg.TickSecs)
	}
	if len(wave) == 0 {
		return nil, ErrEmptyWave
	}
	if len(wave) > domain.MaxWaveLength {
		return nil, fmt.Errorf("%w: %d monsters, max %d", ErrWaveTooLong, len(wave), domain.MaxWaveLength)
	}

	pf := c.rules.Playfield()
	if bg.NumRows() != pf.NumRows || bg.NumCols() != pf.NumCols {
		return nil, fmt.Errorf("%w: got %dx%d, want %dx%d",
			ErrBattlegroundSize, bg.NumRows(), bg.NumCols(), pf.NumRows, pf.NumCols)
	}
	for row, cells := range bg.Towers {
		if len(cells) != pf.NumCols {
			return nil, fmt.Errorf("%w: row %d has %d cells, want %d",
				ErrBattlegroundSize, row, len(cells), pf.NumCols)
		}
	}

	queue := make([]gameconfig.MonsterConfig, len(wave))
	for i, id := range wave {
		m, err := c.rules.Monster(id)
		if err != nil {
			return nil, err
		}
		queue[i] = m
	}

	var towers []*towerState
	for row := 0; row < bg.NumRows(); row++ {
		for col := 0; col < bg.NumCols(); col++ {
			id, ok := bg.TowerAt(domain.CellPos{Row: row, Col: col})
			if !ok {
				continue
			}
			cfg, err := c.rules.Tower(id)
			if err != nil {
				return nil, err
			}
			if cfg.FiringRate <= 0 {
				continue // стены не стреляют
			}
			towers = append(towers, &towerState{
				id:        len(towers),
				cfg:       cfg,
				pos:       domain.CellPos{Row: row, Col: col}.Fp(),
				lastFired: -1 / cfg.FiringRate,
			})
		}
	}

	pathMap, ok := pathing.MakePathMap(pathing.GridFromBattleground(bg), pf.MonsterEnter, pf.MonsterExit)
	if !ok {
		return nil, ErrNoPath
	}
	rng := rand.New(rand.NewPCG(uint64(seed), pcgStream))
	paths := make([][]domain.CellPos, len(queue))
	for i := range queue {
		full, err := pathMap.RandomPath(rng)
		if err != nil {
			return nil, &CalculationError{Seed: seed, WaveLen: len(wave), Err: err}
		}
		if paths[i], err = pathing.CompressPath(full); err != nil {
			return nil, &CalculationError{Seed: seed, WaveLen: len(wave), Err: err}
		}
	}

	return &battleState{
		tickSecs:  c.cfg.TickSecs,
		precision: c.cfg.EventPrecision,
		enter:     pf.MonsterEnter.Fp(),
		queue:     queue,
		paths:     paths,
		towers:    towers,
		defeated:  make(domain.MonstersDefeated),
	}, nil
}

// run крутит виртуальные часы до тех пор, пока есть кого выпускать или двигать.
func (c *Computer) run(b *battleState) (*CalcResults, error) {
	for ticks := 0; !b.done(); ticks++ {
		// Без накопления: gameTime всегда ticks * tick.
		b.gameTime = float64(ticks) * b.tickSecs

		if b.spawnOpen() {
			b.spawn()
		}
		if err := b.moveMonsters(); err != nil {
			return nil, err
		}
		if err := b.fireTowers(); err != nil {
			return nil, err
		}
		b.cleanup()
	}

	events := make([]domain.Event, len(b.events))
	for i, e := range b.events {
		events[i] = domain.RoundEvent(e, b.precision)
	}
	domain.SortEvents(events)

	if c.cfg.Validate {
		if err := ValidateEvents(events); err != nil {
			return nil, err
		}
	}

	results, err := rewards.EvaluateWithRules(c.rules, b.defeated, domain.RoundTo(b.gameTime, b.precision))
	if err != nil {
		return nil, err
	}
	return &CalcResults{Events: events, Results: results}, nil
}

// IsInvariantViolation - true, если расчет упал из-за бага, а не из-за ввода.
func IsInvariantViolation(err error) bool {
	var calcErr *CalculationError
	return errors.As(err, &calcErr)
}
