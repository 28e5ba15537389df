package pathing

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/rhofour/InfiniTDBackend-sub000/internal/domain"
)

func pos(r, c int) domain.CellPos { return domain.CellPos{Row: r, Col: c} }

func gridWith(rows, cols int, blocked ...domain.CellPos) Grid {
	bg := domain.EmptyBattleground(rows, cols)
	for _, b := range blocked {
		bg = bg.WithTower(b, 0)
	}
	return GridFromBattleground(bg)
}

func TestMakePathMapNoPath(t *testing.T) {
	tests := []struct {
		name  string
		grid  Grid
		start domain.CellPos
		end   domain.CellPos
	}{
		{"start blocked", gridWith(2, 2, pos(0, 0)), pos(0, 0), pos(1, 1)},
		{"end blocked", gridWith(2, 2, pos(1, 1)), pos(0, 0), pos(1, 1)},
		{"walled off", gridWith(2, 2, pos(0, 1), pos(1, 0)), pos(0, 0), pos(1, 1)},
		{"end out of bounds", gridWith(2, 2), pos(0, 0), pos(2, 2)},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if pm, ok := MakePathMap(tt.grid, tt.start, tt.end); ok || pm != nil {
				t.Errorf("Expected no path map, got %+v", pm)
			}
			if PathExists(tt.grid, tt.start, tt.end) {
				t.Error("Expected PathExists to be false")
			}
		})
	}
}

func TestMakePathMapOneStep(t *testing.T) {
	pm, ok := MakePathMap(gridWith(1, 2), pos(0, 0), pos(0, 1))
	if !ok {
		t.Fatal("Expected a path")
	}
	if pm.At(pos(0, 0)) != 0 || pm.At(pos(0, 1)) != 1 {
		t.Errorf("Unexpected distances: %v", pm.Dists)
	}
	if pm.Length() != 1 {
		t.Errorf("Expected length 1, got %d", pm.Length())
	}
}

func TestMakePathMapDetour(t *testing.T) {
	// 2x3, (0,1) занята: путь обходит ее снизу.
	pm, ok := MakePathMap(gridWith(2, 3, pos(0, 1)), pos(0, 0), pos(0, 2))
	if !ok {
		t.Fatal("Expected a path")
	}
	want := []int{
		0, DistTower, 4,
		1, 2, 3,
	}
	for i, d := range want {
		if pm.Dists[i] != d {
			t.Errorf("Cell %d: expected %d, got %d", i, d, pm.Dists[i])
		}
	}
}

func TestMakePathMapMarksOffPathCells(t *testing.T) {
	// 3x3, путь по первой строке: вторая и третья строки не на кратчайшем пути.
	pm, ok := MakePathMap(gridWith(3, 3), pos(0, 0), pos(0, 2))
	if !ok {
		t.Fatal("Expected a path")
	}
	for c := 0; c < 3; c++ {
		if pm.At(pos(0, c)) != c {
			t.Errorf("Expected (0,%d) at distance %d, got %d", c, c, pm.At(pos(0, c)))
		}
		for r := 1; r < 3; r++ {
			if pm.At(pos(r, c)) != DistOffPath {
				t.Errorf("Expected (%d,%d) off path, got %d", r, c, pm.At(pos(r, c)))
			}
		}
	}
}

func TestPathMapShortestPathInvariant(t *testing.T) {
	grids := []struct {
		grid       Grid
		start, end domain.CellPos
	}{
		{gridWith(5, 4), pos(0, 0), pos(3, 0)},
		{gridWith(5, 5, pos(1, 1), pos(2, 3), pos(3, 1)), pos(0, 0), pos(4, 4)},
		{gridWith(6, 6, pos(0, 1), pos(1, 1), pos(2, 1), pos(3, 3), pos(4, 3), pos(5, 3)), pos(0, 0), pos(5, 5)},
	}

	for i, g := range grids {
		pm, ok := MakePathMap(g.grid, g.start, g.end)
		if !ok {
			t.Fatalf("grid %d: expected a path", i)
		}
		fromStart := bfs(g.grid, g.start, nil)
		fromEnd := bfs(g.grid, g.end, nil)
		for idx, d := range pm.Dists {
			if d < 0 {
				continue
			}
			if fromStart[idx]+fromEnd[idx] != pm.Length() {
				t.Errorf("grid %d cell %d: %d + %d != %d", i, idx, fromStart[idx], fromEnd[idx], pm.Length())
			}
			if d != fromStart[idx] {
				t.Errorf("grid %d cell %d: tag %d, expected %d", i, idx, d, fromStart[idx])
			}
		}
	}
}

func collectPaths(t *testing.T, pm *PathMap, samples int) map[string]bool {
	t.Helper()
	rng := rand.New(rand.NewPCG(42, 1))
	seen := make(map[string]bool)
	for i := 0; i < samples; i++ {
		path, err := pm.RandomPath(rng)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if path[0] != pm.Start || path[len(path)-1] != pm.End {
			t.Fatalf("path has wrong endpoints: %v", path)
		}
		if len(path) != pm.Length()+1 {
			t.Fatalf("path is not shortest: %v", path)
		}
		seen[fmt.Sprint(path)] = true
	}
	return seen
}

func TestRandomPathSamplesAllShortestPaths(t *testing.T) {
	open, ok := MakePathMap(gridWith(3, 3), pos(0, 0), pos(2, 2))
	if !ok {
		t.Fatal("Expected a path")
	}
	if got := len(collectPaths(t, open, 500)); got != 6 {
		t.Errorf("Expected 6 distinct paths in open 3x3, got %d", got)
	}

	blocked, ok := MakePathMap(gridWith(3, 3, pos(1, 1)), pos(0, 0), pos(2, 2))
	if !ok {
		t.Fatal("Expected a path")
	}
	if got := len(collectPaths(t, blocked, 200)); got != 2 {
		t.Errorf("Expected 2 distinct paths around the center, got %d", got)
	}
}

func TestRandomPathIsDeterministicForSeed(t *testing.T) {
	pm, _ := MakePathMap(gridWith(6, 6), pos(0, 0), pos(5, 5))
	a, _ := pm.RandomPath(rand.New(rand.NewPCG(7, 7)))
	b, _ := pm.RandomPath(rand.New(rand.NewPCG(7, 7)))
	if fmt.Sprint(a) != fmt.Sprint(b) {
		t.Errorf("Expected identical paths for identical seeds, got %v and %v", a, b)
	}
}

func TestPathExists(t *testing.T) {
	if !PathExists(gridWith(3, 3, pos(1, 1)), pos(0, 0), pos(2, 2)) {
		t.Error("Expected path around the center")
	}
	if PathExists(gridWith(3, 3, pos(0, 1), pos(1, 1), pos(2, 1)), pos(0, 0), pos(2, 2)) {
		t.Error("Expected wall to block every path")
	}
}
