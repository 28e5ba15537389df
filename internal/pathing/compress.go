package pathing

import (
	"errors"

	"github.com/rhofour/InfiniTDBackend-sub000/internal/domain"
)

var ErrPathTooShort = errors.New("path must contain at least 2 cells")

func sign(x int) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

func direction(from, to domain.CellPos) [2]int {
	return [2]int{sign(to.Row - from.Row), sign(to.Col - from.Col)}
}

// CompressPath оставляет только точки смены направления плюс первую и последнюю клетки.
func CompressPath(path []domain.CellPos) ([]domain.CellPos, error) {
	if len(path) < 2 {
		return nil, ErrPathTooShort
	}

	out := []domain.CellPos{path[0]}
	for i := 1; i < len(path)-1; i++ {
		if direction(path[i-1], path[i]) != direction(path[i], path[i+1]) {
			out = append(out, path[i])
		}
	}
	return append(out, path[len(path)-1]), nil
}
