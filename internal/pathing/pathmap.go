package pathing

import (
	"errors"
	"fmt"

	"github.com/rhofour/InfiniTDBackend-sub000/internal/domain"
)

// Значения в PathMap, не являющиеся расстоянием.
const (
	DistTower   = -2 // Клетка занята башней
	DistOffPath = -1 // Достижима, но не лежит ни на одном кратчайшем пути
)

var ErrDegeneratePathMap = errors.New("path map has no route from start")

// WallChecker сообщает, непроходима ли клетка.
type WallChecker func(row, col int) bool

// Grid - поле с препятствиями.
type Grid struct {
	Rows, Cols int
	Blocked    WallChecker
}

// GridFromBattleground строит сетку, где препятствия - установленные башни.
func GridFromBattleground(bg domain.Battleground) Grid {
	return Grid{
		Rows:    bg.NumRows(),
		Cols:    bg.NumCols(),
		Blocked: bg.Occupied,
	}
}

// Rand - источник случайности для выбора пути (например, *rand.Rand из math/rand/v2).
type Rand interface {
	IntN(n int) int
}

// 4-связность: вверх, вниз, влево, вправо.
var neighbors = [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}

// PathMap хранит объединение всех кратчайших путей от Start до End.
// Dists - плоский массив (row*Cols + col).
type PathMap struct {
	Rows, Cols int
	Start, End domain.CellPos
	Dists      []int
}

// At возвращает метку клетки.
func (m *PathMap) At(p domain.CellPos) int {
	return m.Dists[p.Row*m.Cols+p.Col]
}

// Length - длина кратчайшего пути в шагах.
func (m *PathMap) Length() int {
	return m.At(m.End)
}

// bfs возвращает расстояния от from до всех клеток (-1 недостижимые, -2 препятствия).
// Если stopAt задан, поиск прекращается при его достижении.
func bfs(g Grid, from domain.CellPos, stopAt *domain.CellPos) []int {
	dists := make([]int, g.Rows*g.Cols)
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			if g.Blocked(r, c) {
				dists[r*g.Cols+c] = DistTower
			} else {
				dists[r*g.Cols+c] = DistOffPath
			}
		}
	}

	startIdx := from.Row*g.Cols + from.Col
	if dists[startIdx] == DistTower {
		return dists
	}
	dists[startIdx] = 0

	queue := []domain.CellPos{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if stopAt != nil && cur == *stopAt {
			break
		}
		curDist := dists[cur.Row*g.Cols+cur.Col]
		for _, d := range neighbors {
			next := cur.Shift(d[0], d[1])
			if !next.InBounds(g.Rows, g.Cols) {
				continue
			}
			idx := next.Row*g.Cols + next.Col
			if dists[idx] != DistOffPath {
				continue
			}
			dists[idx] = curDist + 1
			queue = append(queue, next)
		}
	}
	return dists
}

func validEndpoints(g Grid, start, end domain.CellPos) bool {
	if !start.InBounds(g.Rows, g.Cols) || !end.InBounds(g.Rows, g.Cols) {
		return false
	}
	return !g.Blocked(start.Row, start.Col) && !g.Blocked(end.Row, end.Col)
}

// PathExists - дешевая проверка одним BFS (валидация расстановки башен).
func PathExists(g Grid, start, end domain.CellPos) bool {
	if !validEndpoints(g, start, end) {
		return false
	}
	dists := bfs(g, start, &end)
	return dists[end.Row*g.Cols+end.Col] >= 0
}

// MakePathMap размечает клетки, лежащие хотя бы на одном кратчайшем пути.
// Возвращает false, если пути нет.
func MakePathMap(g Grid, start, end domain.CellPos) (*PathMap, bool) {
	if !validEndpoints(g, start, end) {
		return nil, false
	}

	fromStart := bfs(g, start, nil)
	pathLen := fromStart[end.Row*g.Cols+end.Col]
	if pathLen < 0 {
		return nil, false
	}
	fromEnd := bfs(g, end, nil)

	dists := make([]int, len(fromStart))
	for i, ds := range fromStart {
		de := fromEnd[i]
		switch {
		case ds == DistTower:
			dists[i] = DistTower
		case ds >= 0 && de >= 0 && ds+de == pathLen:
			dists[i] = ds
		default:
			dists[i] = DistOffPath
		}
	}

	return &PathMap{
		Rows:  g.Rows,
		Cols:  g.Cols,
		Start: start,
		End:   end,
		Dists: dists,
	}, true
}

// RandomPath выбирает кратчайший путь от Start до End.
// На каждом шаге следующая клетка выбирается равновероятно среди соседей с меткой cur+1.
func (m *PathMap) RandomPath(rng Rand) ([]domain.CellPos, error) {
	path := make([]domain.CellPos, 0, m.Length()+1)
	cur := m.Start
	if m.At(cur) != 0 {
		return nil, fmt.Errorf("%w: start %s has distance %d", ErrDegeneratePathMap, cur, m.At(cur))
	}
	path = append(path, cur)

	var options [4]domain.CellPos
	for {
		want := m.At(cur) + 1
		n := 0
		for _, d := range neighbors {
			next := cur.Shift(d[0], d[1])
			if next.InBounds(m.Rows, m.Cols) && m.At(next) == want {
				options[n] = next
				n++
			}
		}
		if n == 0 {
			break
		}
		cur = options[rng.IntN(n)]
		path = append(path, cur)
	}

	if len(path) < 2 || cur != m.End {
		return nil, fmt.Errorf("%w: walk stopped at %s after %d cells", ErrDegeneratePathMap, cur, len(path))
	}
	return path, nil
}
