package domain

import (
	"encoding/binary"
	"slices"
)

// BgTower - башня, установленная в клетке поля.
type BgTower struct {
	ID ConfigID `json:"id"`
}

// Battleground - расстановка башен защитника. nil в клетке означает пустую клетку.
// Ядро воспринимает его как неизменяемый снимок.
type Battleground struct {
	Towers [][]*BgTower `json:"towers"`
}

// EmptyBattleground создает пустое поле rows x cols.
func EmptyBattleground(rows, cols int) Battleground {
	towers := make([][]*BgTower, rows)
	for r := range towers {
		towers[r] = make([]*BgTower, cols)
	}
	return Battleground{Towers: towers}
}

func (b Battleground) NumRows() int {
	return len(b.Towers)
}

func (b Battleground) NumCols() int {
	if len(b.Towers) == 0 {
		return 0
	}
	return len(b.Towers[0])
}

// Occupied возвращает true, если в клетке стоит башня.
// Клетки за пределами поля считаются занятыми.
func (b Battleground) Occupied(row, col int) bool {
	if row < 0 || row >= len(b.Towers) || col < 0 || col >= len(b.Towers[row]) {
		return true
	}
	return b.Towers[row][col] != nil
}

// TowerAt возвращает ID башни в клетке.
func (b Battleground) TowerAt(p CellPos) (ConfigID, bool) {
	if p.Row < 0 || p.Row >= len(b.Towers) || p.Col < 0 || p.Col >= len(b.Towers[p.Row]) ||
		b.Towers[p.Row][p.Col] == nil {
		return 0, false
	}
	return b.Towers[p.Row][p.Col].ID, true
}

// Clone делает глубокую копию.
func (b Battleground) Clone() Battleground {
	towers := make([][]*BgTower, len(b.Towers))
	for r, row := range b.Towers {
		towers[r] = make([]*BgTower, len(row))
		for c, t := range row {
			if t != nil {
				cp := *t
				towers[r][c] = &cp
			}
		}
	}
	return Battleground{Towers: towers}
}

// WithTower возвращает копию поля с башней id в клетке p.
func (b Battleground) WithTower(p CellPos, id ConfigID) Battleground {
	next := b.Clone()
	next.Towers[p.Row][p.Col] = &BgTower{ID: id}
	return next
}

// Equal сравнивает два снимка поля по значению.
func (b Battleground) Equal(other Battleground) bool {
	if len(b.Towers) != len(other.Towers) {
		return false
	}
	for r := range b.Towers {
		if len(b.Towers[r]) != len(other.Towers[r]) {
			return false
		}
		for c := range b.Towers[r] {
			x, y := b.Towers[r][c], other.Towers[r][c]
			if (x == nil) != (y == nil) {
				return false
			}
			if x != nil && x.ID != y.ID {
				return false
			}
		}
	}
	return true
}

// Fingerprint - каноническое байтовое представление для вывода сида и сравнения снимков.
func (b Battleground) Fingerprint() []byte {
	buf := make([]byte, 0, 8+4*len(b.Towers)*b.NumCols())
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(b.Towers)))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(b.NumCols()))
	for _, row := range b.Towers {
		for _, t := range row {
			id := int32(-1)
			if t != nil {
				id = int32(t.ID)
			}
			buf = binary.LittleEndian.AppendUint32(buf, uint32(id))
		}
	}
	return buf
}

// Wave - упорядоченная последовательность типов монстров.
type Wave []ConfigID

func (w Wave) Equal(other Wave) bool {
	return slices.Equal(w, other)
}

func (w Wave) Fingerprint() []byte {
	buf := make([]byte, 0, 4+4*len(w))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(w)))
	for _, id := range w {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(int32(id)))
	}
	return buf
}
