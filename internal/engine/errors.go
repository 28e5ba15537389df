package engine

import (
	"errors"
	"fmt"

	"github.com/rhofour/InfiniTDBackend-sub000/internal/gameconfig"
)

// Ошибки входных данных: битва не считается, ничего не применяется.
var (
	ErrEmptyWave         = errors.New("cannot compute battle with empty wave")
	ErrWaveTooLong       = errors.New("wave is too long")
	ErrNoPath            = errors.New("cannot compute battle with no path")
	ErrBattlegroundSize  = errors.New("battleground does not match playfield")
	ErrUnknownMonster    = gameconfig.ErrUnknownMonster
	ErrUnknownTower      = gameconfig.ErrUnknownTower
	ErrInvalidTickLength = errors.New("tick length must be positive")
)

// Нарушения внутренних инвариантов: признак бага в симуляторе.
var (
	ErrMisaligned         = errors.New("monster is not lined up with its destination")
	ErrNegativeFireTime   = errors.New("calculated tower firing time < 0")
	ErrInvalidEventStream = errors.New("invalid event stream")
)

// CalculationError описывает сбой расчета конкретной битвы.
type CalculationError struct {
	Seed    int64
	WaveLen int
	Err     error
}

func (e *CalculationError) Error() string {
	return fmt.Sprintf("battle calculation failed (seed %d, wave of %d): %v", e.Seed, e.WaveLen, e.Err)
}

func (e *CalculationError) Unwrap() error {
	return e.Err
}

// IsInputError - true для ошибок, вызванных некорректным вводом, а не багом.
func IsInputError(err error) bool {
	return errors.Is(err, ErrEmptyWave) ||
		errors.Is(err, ErrWaveTooLong) ||
		errors.Is(err, ErrNoPath) ||
		errors.Is(err, ErrBattlegroundSize) ||
		errors.Is(err, ErrUnknownMonster) ||
		errors.Is(err, ErrUnknownTower)
}
