package main

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/rhofour/InfiniTDBackend-sub000/internal/domain"
	"github.com/rhofour/InfiniTDBackend-sub000/internal/engine"
	"github.com/rhofour/InfiniTDBackend-sub000/internal/gameconfig"
	"github.com/rhofour/InfiniTDBackend-sub000/internal/pathing"
)

// maxBattleSecs - самая длинная битва, которую еще считаем выгодной.
const maxBattleSecs = 60.0

var ErrNoGoldIncome = errors.New("gold per minute is zero")

// TowerPlacer выбирает клетку для следующей башни.
type TowerPlacer interface {
	NextPlace(bg domain.Battleground) (domain.CellPos, bool)
}

// TowerSelector выбирает тип следующей башни.
type TowerSelector interface {
	NextTower(bg domain.Battleground) (domain.ConfigID, bool)
}

// WaveSelector подбирает волну под поле.
type WaveSelector interface {
	NextWave(bg domain.Battleground) (domain.Wave, error)
}

// FixedOrderPlacing ставит башни по заранее заданному списку клеток,
// пропуская те, что перекрыли бы путь монстрам.
type FixedOrderPlacing struct {
	order []domain.CellPos
	next  int
	pf    gameconfig.PlayfieldConfig
}

func NewFixedOrderPlacing(pf gameconfig.PlayfieldConfig, order []domain.CellPos) *FixedOrderPlacing {
	return &FixedOrderPlacing{order: slices.Clone(order), pf: pf}
}

func (p *FixedOrderPlacing) NextPlace(bg domain.Battleground) (domain.CellPos, bool) {
	for p.next < len(p.order) {
		pos := p.order[p.next]
		p.next++
		if bg.Occupied(pos.Row, pos.Col) {
			continue
		}
		grid := pathing.GridFromBattleground(bg.WithTower(pos, 0))
		if pathing.PathExists(grid, p.pf.MonsterEnter, p.pf.MonsterExit) {
			return pos, true
		}
	}
	return domain.CellPos{}, false
}

// RowOrder - змейка из рядов башен через строку. Вход сверху слева, выход снизу слева.
func RowOrder(pf gameconfig.PlayfieldConfig) []domain.CellPos {
	var order []domain.CellPos
	for towerRow := 0; towerRow < pf.NumRows/2; towerRow++ {
		row := towerRow*2 + 1
		colStart := towerRow % 2
		if row == pf.NumRows-1 {
			// последний ряд не должен закрыть выход
			colStart = 1
		}
		for col := colStart; col < colStart+pf.NumCols-1; col++ {
			order = append(order, domain.CellPos{Row: row, Col: col})
		}
	}
	return order
}

type FixedTowerSelection struct {
	Tower domain.ConfigID
}

func (s FixedTowerSelection) NextTower(domain.Battleground) (domain.ConfigID, bool) {
	return s.Tower, true
}

// HomogeneousWaves ищет для каждого типа монстра самую большую волну,
// которую поле отбивает целиком не дольше чем за минуту.
// Лучшей считается волна с максимальным золотом в минуту.
type HomogeneousWaves struct {
	comp     *engine.Computer
	monsters []domain.ConfigID
}

func NewHomogeneousWaves(comp *engine.Computer, monsters []domain.ConfigID) *HomogeneousWaves {
	return &HomogeneousWaves{comp: comp, monsters: monsters}
}

func repeatWave(id domain.ConfigID, n int) domain.Wave {
	w := make(domain.Wave, n)
	for i := range w {
		w[i] = id
	}
	return w
}

func acceptable(r domain.BattleResults) bool {
	return r.AllMonstersDefeated() && r.TimeSecs <= maxBattleSecs
}

func (h *HomogeneousWaves) NextWave(bg domain.Battleground) (domain.Wave, error) {
	if len(h.monsters) == 0 {
		return nil, engine.ErrEmptyWave
	}

	var best domain.Wave
	var bestGPM float64
	compute := func(w domain.Wave) (domain.BattleResults, error) {
		res, err := h.comp.Compute(bg, w)
		if err != nil {
			return domain.BattleResults{}, err
		}
		if gpm := res.Results.GoldPerMinute(); best == nil || gpm > bestGPM {
			best, bestGPM = w, gpm
		}
		return res.Results, nil
	}

	for _, id := range h.monsters {
		lower := 1
		lowerRes, err := compute(repeatWave(id, lower))
		if err != nil {
			return nil, err
		}
		if !lowerRes.AllMonstersDefeated() {
			return best, nil
		}

		// Удваиваем, пока волна отбивается и укладывается в минуту.
		upper := min(8, domain.MaxWaveLength)
		upperRes, err := compute(repeatWave(id, upper))
		if err != nil {
			return nil, err
		}
		for acceptable(upperRes) && upper < domain.MaxWaveLength {
			lower = upper
			upper = min(upper*2, domain.MaxWaveLength)
			if upperRes, err = compute(repeatWave(id, upper)); err != nil {
				return nil, err
			}
		}

		// Бисекция между последней принятой и первой непринятой волной.
		for lower+1 < upper {
			mid := (lower + upper) / 2
			midRes, err := compute(repeatWave(id, mid))
			if err != nil {
				return nil, err
			}
			if acceptable(midRes) {
				lower = mid
			} else {
				upper, upperRes = mid, midRes
			}
		}

		if !upperRes.AllMonstersDefeated() {
			return best, nil
		}
	}
	return best, nil
}

// GameState - снимок экономики игрока в симуляции.
type GameState struct {
	AccumulatedGold float64             `json:"accumulatedGold"`
	CurrentGold     float64             `json:"currentGold"`
	GoldPerMinute   float64             `json:"goldPerMinute"`
	TotalMinutes    int                 `json:"totalMinutes"`
	NumTowers       int                 `json:"numTowers"`
	Wave            domain.Wave         `json:"wave"`
	Battleground    domain.Battleground `json:"battleground"`
}

// Strategy проигрывает экономику: копит золото, ставит башни, подбирает волну.
type Strategy struct {
	Name     string
	rules    *gameconfig.Rules
	comp     *engine.Computer
	placer   TowerPlacer
	selector TowerSelector
	waves    WaveSelector
}

func NewStrategy(name string, comp *engine.Computer, placer TowerPlacer, selector TowerSelector, waves WaveSelector) *Strategy {
	return &Strategy{
		Name:     name,
		rules:    comp.Rules(),
		comp:     comp,
		placer:   placer,
		selector: selector,
		waves:    waves,
	}
}

func (s *Strategy) updateBattle(state *GameState) error {
	wave, err := s.waves.NextWave(state.Battleground)
	if err != nil {
		return fmt.Errorf("select wave: %w", err)
	}
	res, err := s.comp.Compute(state.Battleground, wave)
	if err != nil {
		return fmt.Errorf("compute battle: %w", err)
	}
	state.Wave = wave
	state.GoldPerMinute = math.Max(res.Results.GoldPerMinute(), s.rules.Config().Misc.MinGoldPerMinute)
	if state.GoldPerMinute <= 0 {
		return ErrNoGoldIncome
	}
	return nil
}

func (s *GameState) wait(minutes int) {
	gold := float64(minutes) * s.GoldPerMinute
	s.TotalMinutes += minutes
	s.AccumulatedGold += gold
	s.CurrentGold += gold
}

func (s GameState) snapshot() GameState {
	s.Battleground = s.Battleground.Clone()
	s.Wave = slices.Clone(s.Wave)
	return s
}

// EvaluateUntil возвращает историю состояний, пока не накоплено target золота
// или пока стратегии некуда ставить башни.
func (s *Strategy) EvaluateUntil(target float64) ([]GameState, error) {
	misc := s.rules.Config().Misc
	pf := s.rules.Playfield()
	state := GameState{
		AccumulatedGold: misc.StartingGold,
		CurrentGold:     misc.StartingGold,
		GoldPerMinute:   misc.MinGoldPerMinute,
		Battleground:    domain.EmptyBattleground(pf.NumRows, pf.NumCols),
	}
	var history []GameState

	for state.AccumulatedGold < target {
		pos, ok := s.placer.NextPlace(state.Battleground)
		if !ok {
			break
		}
		towerID, ok := s.selector.NextTower(state.Battleground)
		if !ok {
			break
		}
		tower, err := s.rules.Tower(towerID)
		if err != nil {
			return history, err
		}

		if state.CurrentGold < tower.Cost {
			if err := s.updateBattle(&state); err != nil {
				return history, err
			}
			history = append(history, state.snapshot())
			state.wait(int(math.Ceil((tower.Cost - state.CurrentGold) / state.GoldPerMinute)))
		}

		state.CurrentGold -= tower.Cost
		state.Battleground = state.Battleground.WithTower(pos, towerID)
		state.NumTowers++
	}

	if state.AccumulatedGold < target {
		if err := s.updateBattle(&state); err != nil {
			return history, err
		}
		history = append(history, state.snapshot())
		state.wait(int(math.Ceil((target - state.AccumulatedGold) / state.GoldPerMinute)))
	}

	return append(history, state), nil
}
