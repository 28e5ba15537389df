package storage

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/rhofour/InfiniTDBackend-sub000/internal/domain"
)

const (
	MagicHeader string = `TDBT` // 4 байта
	Version1    uint32 = 1
)

// Record - записанная битва плюс то, из чего она посчитана.
// Seed выводится из (поле, волна), поэтому по нему же проверяется устаревание.
type Record struct {
	Battle    domain.Battle
	Seed      int64
	Timestamp int64
}

// BattleFileHeader - точное представление заголовка файла.
// binary.Write пишет его целиком: здесь только массивы и числа.
type BattleFileHeader struct {
	Magic       [4]byte // 4 байта
	Version     uint32  // 4 байта
	Seed        int64   // 8 байт
	Timestamp   int64   // 8 байт
	Reward      float64 // 8 байт
	TimeSecs    float64 // 8 байт
	EventCount  uint32  // 4 байта
	MonsterRows uint16  // 2 байта
	BonusCount  uint16  // 2 байта
	NameLen     uint8   // 1 байт
	AttackerLen uint8   // 1 байт
	DefenderLen uint8   // 1 байт
	_           uint8   // выравнивание
}

// DefeatedRecord - строка MonstersDefeated.
type DefeatedRecord struct {
	ConfigID int32
	Defeated int32
	Sent     int32
}

// EventHeader - общая часть каждого события.
type EventHeader struct {
	Kind      uint8 // domain.EventKind
	ObjKind   uint8 // domain.ObjectKind, 0 для Damage
	_         uint16
	ID        int32
	StartTime float64
}

// MoveBody следует за EventHeader для Move.
type MoveBody struct {
	ConfigID int32
	_        int32
	StartRow float64
	StartCol float64
	DestRow  float64
	DestCol  float64
	EndTime  float64
}

func writeString(w io.Writer, s string) error {
	_, err := io.WriteString(w, s)
	return err
}

func writeBinary(w io.Writer, rec *Record) error {
	b := &rec.Battle
	for _, s := range []string{b.Name, b.AttackerName, b.DefenderName} {
		if len(s) > math.MaxUint8 {
			return fmt.Errorf("name too long: %d", len(s))
		}
	}
	if len(b.Results.MonstersDefeated) > math.MaxUint16 || len(b.Results.Bonuses) > math.MaxUint16 {
		return fmt.Errorf("results too large: %d monster rows, %d bonuses",
			len(b.Results.MonstersDefeated), len(b.Results.Bonuses))
	}

	// 1. Глобальный заголовок
	header := BattleFileHeader{
		Version:     Version1,
		Seed:        rec.Seed,
		Timestamp:   rec.Timestamp,
		Reward:      b.Results.Reward,
		TimeSecs:    b.Results.TimeSecs,
		EventCount:  uint32(len(b.Events)),
		MonsterRows: uint16(len(b.Results.MonstersDefeated)),
		BonusCount:  uint16(len(b.Results.Bonuses)),
		NameLen:     uint8(len(b.Name)),
		AttackerLen: uint8(len(b.AttackerName)),
		DefenderLen: uint8(len(b.DefenderName)),
	}
	copy(header.Magic[:], MagicHeader)

	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, s := range []string{b.Name, b.AttackerName, b.DefenderName} {
		if err := writeString(w, s); err != nil {
			return fmt.Errorf("failed to write names: %w", err)
		}
	}

	// 2. Результаты
	for _, id := range b.Results.MonstersDefeated.SortedIDs() {
		c := b.Results.MonstersDefeated[id]
		row := DefeatedRecord{ConfigID: int32(id), Defeated: int32(c.Defeated), Sent: int32(c.Sent)}
		if err := binary.Write(w, binary.LittleEndian, &row); err != nil {
			return fmt.Errorf("failed to write results: %w", err)
		}
	}
	for _, id := range b.Results.Bonuses {
		if err := binary.Write(w, binary.LittleEndian, int32(id)); err != nil {
			return fmt.Errorf("failed to write bonuses: %w", err)
		}
	}

	// 3. События
	for i, e := range b.Events {
		if err := writeEvent(w, e); err != nil {
			return fmt.Errorf("failed to write event %d: %w", i, err)
		}
	}
	return nil
}

func writeEvent(w io.Writer, e domain.Event) error {
	eh := EventHeader{
		Kind:      uint8(e.Kind()),
		ID:        int32(e.Object()),
		StartTime: e.Start(),
	}

	switch ev := e.(type) {
	case domain.MoveEvent:
		eh.ObjKind = uint8(ev.ObjKind)
		if err := binary.Write(w, binary.LittleEndian, &eh); err != nil {
			return err
		}
		body := MoveBody{
			ConfigID: int32(ev.ConfigID),
			StartRow: ev.StartPos.Row,
			StartCol: ev.StartPos.Col,
			DestRow:  ev.DestPos.Row,
			DestCol:  ev.DestPos.Col,
			EndTime:  ev.EndTime,
		}
		return binary.Write(w, binary.LittleEndian, &body)
	case domain.DamageEvent:
		if err := binary.Write(w, binary.LittleEndian, &eh); err != nil {
			return err
		}
		return binary.Write(w, binary.LittleEndian, ev.Health)
	case domain.DeleteEvent:
		eh.ObjKind = uint8(ev.ObjKind)
		return binary.Write(w, binary.LittleEndian, &eh)
	}
	return fmt.Errorf("unsupported event type %T", e)
}
