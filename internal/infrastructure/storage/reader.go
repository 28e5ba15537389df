package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/rhofour/InfiniTDBackend-sub000/internal/domain"
)

var ErrCorruptRecord = errors.New("corrupt battle record")

const (
	// maxRecordEvents - верхняя граница EventCount из заголовка.
	maxRecordEvents = 1 << 22
	// preallocEvents ограничивает память, выделяемую до чтения событий.
	preallocEvents = 4096
)

func readString(r io.Reader, n uint8) (string, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func readBinary(r io.Reader) (*Record, error) {
	// 1. Заголовок целиком
	var header BattleFileHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	if string(header.Magic[:]) != MagicHeader {
		return nil, fmt.Errorf("%w: invalid magic %q", ErrCorruptRecord, header.Magic[:])
	}
	if header.Version != Version1 {
		return nil, fmt.Errorf("unsupported version: %d (expected %d)", header.Version, Version1)
	}

	if header.EventCount > maxRecordEvents {
		return nil, fmt.Errorf("%w: %d events, max %d", ErrCorruptRecord, header.EventCount, maxRecordEvents)
	}

	rec := &Record{Seed: header.Seed, Timestamp: header.Timestamp}
	b := &rec.Battle

	var err error
	if b.Name, err = readString(r, header.NameLen); err != nil {
		return nil, fmt.Errorf("failed to read name: %w", err)
	}
	if b.AttackerName, err = readString(r, header.AttackerLen); err != nil {
		return nil, fmt.Errorf("failed to read attacker: %w", err)
	}
	if b.DefenderName, err = readString(r, header.DefenderLen); err != nil {
		return nil, fmt.Errorf("failed to read defender: %w", err)
	}

	// 2. Результаты
	b.Results = domain.BattleResults{
		MonstersDefeated: make(domain.MonstersDefeated, header.MonsterRows),
		Bonuses:          make([]domain.ConfigID, header.BonusCount),
		Reward:           header.Reward,
		TimeSecs:         header.TimeSecs,
	}
	for i := 0; i < int(header.MonsterRows); i++ {
		var row DefeatedRecord
		if err := binary.Read(r, binary.LittleEndian, &row); err != nil {
			return nil, fmt.Errorf("failed to read results: %w", err)
		}
		if row.Defeated > row.Sent {
			return nil, fmt.Errorf("%w: monster %d defeated %d of %d", ErrCorruptRecord, row.ConfigID, row.Defeated, row.Sent)
		}
		b.Results.MonstersDefeated[domain.ConfigID(row.ConfigID)] = domain.DefeatCount{
			Defeated: int(row.Defeated),
			Sent:     int(row.Sent),
		}
	}
	for i := range b.Results.Bonuses {
		var id int32
		if err := binary.Read(r, binary.LittleEndian, &id); err != nil {
			return nil, fmt.Errorf("failed to read bonuses: %w", err)
		}
		b.Results.Bonuses[i] = domain.ConfigID(id)
	}

	// 3. События
	b.Events = make([]domain.Event, 0, min(int(header.EventCount), preallocEvents))
	for i := 0; i < int(header.EventCount); i++ {
		e, err := readEvent(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read event %d: %w", i, err)
		}
		b.Events = append(b.Events, e)
	}
	return rec, nil
}

func readEvent(r io.Reader) (domain.Event, error) {
	var eh EventHeader
	if err := binary.Read(r, binary.LittleEndian, &eh); err != nil {
		return nil, err
	}

	kind := domain.EventKind(eh.Kind)
	objKind := domain.ObjectKind(eh.ObjKind)
	if kind == domain.EventMove || kind == domain.EventDelete {
		if objKind != domain.ObjectMonster && objKind != domain.ObjectProjectile {
			return nil, fmt.Errorf("%w: unknown object kind %d", ErrCorruptRecord, eh.ObjKind)
		}
	}

	switch kind {
	case domain.EventMove:
		var body MoveBody
		if err := binary.Read(r, binary.LittleEndian, &body); err != nil {
			return nil, err
		}
		return domain.MoveEvent{
			ObjKind:   objKind,
			ID:        domain.ObjectID(eh.ID),
			ConfigID:  domain.ConfigID(body.ConfigID),
			StartPos:  domain.FpCellPos{Row: body.StartRow, Col: body.StartCol},
			DestPos:   domain.FpCellPos{Row: body.DestRow, Col: body.DestCol},
			StartTime: eh.StartTime,
			EndTime:   body.EndTime,
		}, nil
	case domain.EventDamage:
		var health float64
		if err := binary.Read(r, binary.LittleEndian, &health); err != nil {
			return nil, err
		}
		return domain.DamageEvent{ID: domain.ObjectID(eh.ID), StartTime: eh.StartTime, Health: health}, nil
	case domain.EventDelete:
		return domain.DeleteEvent{
			ObjKind:   objKind,
			ID:        domain.ObjectID(eh.ID),
			StartTime: eh.StartTime,
		}, nil
	}
	return nil, fmt.Errorf("%w: unknown event kind %d", ErrCorruptRecord, eh.Kind)
}
