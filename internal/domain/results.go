package domain

import (
	"math"
	"slices"
)

// DefeatCount - сколько монстров одного типа было отправлено и побеждено.
// Инвариант: Defeated <= Sent.
type DefeatCount struct {
	Defeated int `json:"numDefeated"`
	Sent     int `json:"numSent"`
}

// MonstersDefeated - ID типа монстра -> счетчики.
type MonstersDefeated map[ConfigID]DefeatCount

// Totals возвращает суммарные счетчики по всем типам.
func (m MonstersDefeated) Totals() (defeated, sent int) {
	for _, c := range m {
		defeated += c.Defeated
		sent += c.Sent
	}
	return defeated, sent
}

// PercentDefeated - доля побежденных в процентах, -1 если никого не отправили.
func (m MonstersDefeated) PercentDefeated() float64 {
	defeated, sent := m.Totals()
	if sent == 0 {
		return -1
	}
	return float64(defeated) / float64(sent) * 100
}

// SortedIDs возвращает ключи по возрастанию (детерминированный обход карты).
func (m MonstersDefeated) SortedIDs() []ConfigID {
	ids := make([]ConfigID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (m MonstersDefeated) Clone() MonstersDefeated {
	out := make(MonstersDefeated, len(m))
	for id, c := range m {
		out[id] = c
	}
	return out
}

// BattleResults - итог битвы.
type BattleResults struct {
	MonstersDefeated MonstersDefeated `json:"monstersDefeated"`
	Bonuses          []ConfigID       `json:"bonuses"`
	Reward           float64          `json:"reward"`
	TimeSecs         float64          `json:"timeSecs"`
}

// GoldPerMinute нормирует награду на длительность битвы (не меньше минуты).
func (r BattleResults) GoldPerMinute() float64 {
	minutes := math.Max(1, r.TimeSecs/60)
	return RoundTo(r.Reward/minutes, 1)
}

// AllMonstersDefeated - true, если ни один монстр не дошел до выхода.
func (r BattleResults) AllMonstersDefeated() bool {
	for _, c := range r.MonstersDefeated {
		if c.Sent != c.Defeated {
			return false
		}
	}
	return true
}
