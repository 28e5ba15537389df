package domain

import (
	"fmt"
	"math"
)

// CellPos - позиция, выровненная по сетке.
type CellPos struct {
	Row int `json:"row" yaml:"row"`
	Col int `json:"col" yaml:"col"`
}

// Fp переводит клетку в непрерывные координаты.
func (p CellPos) Fp() FpCellPos {
	return FpCellPos{Row: float64(p.Row), Col: float64(p.Col)}
}

// Shift возвращает новую позицию со смещением.
func (p CellPos) Shift(dr, dc int) CellPos {
	return CellPos{Row: p.Row + dr, Col: p.Col + dc}
}

// InBounds проверяет, лежит ли клетка внутри поля rows x cols.
func (p CellPos) InBounds(rows, cols int) bool {
	return p.Row >= 0 && p.Col >= 0 && p.Row < rows && p.Col < cols
}

func (p CellPos) String() string {
	return fmt.Sprintf("(%d,%d)", p.Row, p.Col)
}

// fpTolerance - допуск сравнения: координаты накапливают ошибку округления.
const fpTolerance = 1e-6

// FpCellPos - непрерывная позиция для интерполированного движения.
type FpCellPos struct {
	Row float64 `json:"row"`
	Col float64 `json:"col"`
}

// DistSq возвращает квадрат расстояния, чтобы сравнивать без корней.
func (p FpCellPos) DistSq(other FpCellPos) float64 {
	dr := p.Row - other.Row
	dc := p.Col - other.Col
	return dr*dr + dc*dc
}

// Dist возвращает евклидово расстояние.
func (p FpCellPos) Dist(other FpCellPos) float64 {
	return math.Sqrt(p.DistSq(other))
}

// ApproxEqual сравнивает позиции с допуском.
func (p FpCellPos) ApproxEqual(other FpCellPos) bool {
	return math.Abs(p.Row-other.Row) < fpTolerance && math.Abs(p.Col-other.Col) < fpTolerance
}

// Interpolate возвращает точку на отрезке p -> to. frac должен лежать в [0, 1].
func (p FpCellPos) Interpolate(to FpCellPos, frac float64) (FpCellPos, error) {
	if frac < 0 || frac > 1 {
		return FpCellPos{}, fmt.Errorf("interpolation fraction %f outside [0, 1]", frac)
	}
	return FpCellPos{
		Row: p.Row*(1-frac) + to.Row*frac,
		Col: p.Col*(1-frac) + to.Col*frac,
	}, nil
}

// Round округляет обе координаты до precision знаков.
func (p FpCellPos) Round(precision int) FpCellPos {
	return FpCellPos{Row: RoundTo(p.Row, precision), Col: RoundTo(p.Col, precision)}
}

func (p FpCellPos) String() string {
	return fmt.Sprintf("(%.4f,%.4f)", p.Row, p.Col)
}

// RoundTo округляет x до precision знаков после запятой.
func RoundTo(x float64, precision int) float64 {
	pow := math.Pow(10, float64(precision))
	return math.Round(x*pow) / pow
}
