package domain

import (
	"encoding/json"
	"fmt"
)

// eventJSON - плоское представление события на проводе с дискриминатором eventType.
type eventJSON struct {
	EventType string     `json:"eventType"`
	ObjType   string     `json:"objType,omitempty"`
	ID        ObjectID   `json:"id"`
	ConfigID  *ConfigID  `json:"configId,omitempty"`
	StartPos  *FpCellPos `json:"startPos,omitempty"`
	DestPos   *FpCellPos `json:"destPos,omitempty"`
	StartTime float64    `json:"startTime"`
	EndTime   *float64   `json:"endTime,omitempty"`
	Health    *float64   `json:"health,omitempty"`
}

func (e MoveEvent) MarshalJSON() ([]byte, error) {
	cfg, start, dest, end := e.ConfigID, e.StartPos, e.DestPos, e.EndTime
	return json.Marshal(eventJSON{
		EventType: EventMove.String(),
		ObjType:   e.ObjKind.String(),
		ID:        e.ID,
		ConfigID:  &cfg,
		StartPos:  &start,
		DestPos:   &dest,
		StartTime: e.StartTime,
		EndTime:   &end,
	})
}

func (e DamageEvent) MarshalJSON() ([]byte, error) {
	health := e.Health
	return json.Marshal(eventJSON{
		EventType: EventDamage.String(),
		ID:        e.ID,
		StartTime: e.StartTime,
		Health:    &health,
	})
}

func (e DeleteEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(eventJSON{
		EventType: EventDelete.String(),
		ObjType:   e.ObjKind.String(),
		ID:        e.ID,
		StartTime: e.StartTime,
	})
}

// DecodeEvent восстанавливает событие по полю eventType.
func DecodeEvent(data []byte) (Event, error) {
	var raw eventJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	kind, ok := ParseEventKind(raw.EventType)
	if !ok {
		return nil, fmt.Errorf("unknown event type %q", raw.EventType)
	}

	switch kind {
	case EventMove:
		obj, ok := ParseObjectKind(raw.ObjType)
		if !ok {
			return nil, fmt.Errorf("move event %d: unknown object type %q", raw.ID, raw.ObjType)
		}
		if raw.ConfigID == nil || raw.StartPos == nil || raw.DestPos == nil || raw.EndTime == nil {
			return nil, fmt.Errorf("move event %d: missing fields", raw.ID)
		}
		return MoveEvent{
			ObjKind:   obj,
			ID:        raw.ID,
			ConfigID:  *raw.ConfigID,
			StartPos:  *raw.StartPos,
			DestPos:   *raw.DestPos,
			StartTime: raw.StartTime,
			EndTime:   *raw.EndTime,
		}, nil
	case EventDamage:
		if raw.Health == nil {
			return nil, fmt.Errorf("damage event %d: missing health", raw.ID)
		}
		return DamageEvent{ID: raw.ID, StartTime: raw.StartTime, Health: *raw.Health}, nil
	case EventDelete:
		obj, ok := ParseObjectKind(raw.ObjType)
		if !ok {
			return nil, fmt.Errorf("delete event %d: unknown object type %q", raw.ID, raw.ObjType)
		}
		return DeleteEvent{ObjKind: obj, ID: raw.ID, StartTime: raw.StartTime}, nil
	}
	return nil, fmt.Errorf("unhandled event kind %s", kind)
}

// DecodeEvents декодирует JSON-массив событий.
func DecodeEvents(data []byte) ([]Event, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	events := make([]Event, 0, len(raws))
	for i, raw := range raws {
		ev, err := DecodeEvent(raw)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		events = append(events, ev)
	}
	return events, nil
}
