package pathing

import (
	"errors"
	"reflect"
	"testing"

	"github.com/rhofour/InfiniTDBackend-sub000/internal/domain"
)

func TestCompressPath(t *testing.T) {
	tests := []struct {
		name     string
		path     []domain.CellPos
		expected []domain.CellPos
	}{
		{
			name:     "two cells",
			path:     []domain.CellPos{pos(0, 0), pos(0, 1)},
			expected: []domain.CellPos{pos(0, 0), pos(0, 1)},
		},
		{
			name:     "straight line",
			path:     []domain.CellPos{pos(0, 0), pos(1, 0), pos(2, 0), pos(3, 0)},
			expected: []domain.CellPos{pos(0, 0), pos(3, 0)},
		},
		{
			name:     "one corner",
			path:     []domain.CellPos{pos(0, 0), pos(0, 1), pos(0, 2), pos(1, 2), pos(2, 2)},
			expected: []domain.CellPos{pos(0, 0), pos(0, 2), pos(2, 2)},
		},
		{
			name:     "staircase",
			path:     []domain.CellPos{pos(0, 0), pos(0, 1), pos(1, 1), pos(1, 2), pos(2, 2)},
			expected: []domain.CellPos{pos(0, 0), pos(0, 1), pos(1, 1), pos(1, 2), pos(2, 2)},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := CompressPath(tt.path)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("CompressPath() = %v, want %v", got, tt.expected)
			}

			again, err := CompressPath(got)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(again, got) {
				t.Errorf("Expected compression to be idempotent, got %v then %v", got, again)
			}
		})
	}
}

func TestCompressPathTooShort(t *testing.T) {
	for _, path := range [][]domain.CellPos{nil, {pos(0, 0)}} {
		if _, err := CompressPath(path); !errors.Is(err, ErrPathTooShort) {
			t.Errorf("Expected ErrPathTooShort for %v, got %v", path, err)
		}
	}
}

func TestCompressRandomPathsKeepsEndpoints(t *testing.T) {
	pm, ok := MakePathMap(gridWith(5, 5, pos(1, 1), pos(3, 3)), pos(0, 0), pos(4, 4))
	if !ok {
		t.Fatal("Expected a path")
	}
	for i := 0; i < 20; i++ {
		raw, err := pm.RandomPath(fixedRand(i))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		comp, err := CompressPath(raw)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if comp[0] != raw[0] || comp[len(comp)-1] != raw[len(raw)-1] {
			t.Errorf("Endpoints changed: %v -> %v", raw, comp)
		}
		for j := 1; j < len(comp); j++ {
			if comp[j].Row != comp[j-1].Row && comp[j].Col != comp[j-1].Col {
				t.Errorf("Waypoints %v and %v are not aligned", comp[j-1], comp[j])
			}
		}
	}
}

// fixedRand всегда выбирает один и тот же индекс (по модулю числа вариантов).
type fixedRand int

func (f fixedRand) IntN(n int) int { return int(f) % n }
