package domain

import (
	"encoding/json"
	"fmt"
)

// Battle - неизменяемая запись битвы: ее кэшируют и проигрывают.
type Battle struct {
	Name         string
	AttackerName string
	DefenderName string
	Events       []Event
	Results      BattleResults
}

type battleJSON struct {
	Name         string          `json:"name"`
	AttackerName string          `json:"attackerName"`
	DefenderName string          `json:"defenderName"`
	Events       json.RawMessage `json:"events"`
	Results      BattleResults   `json:"results"`
}

func (b Battle) MarshalJSON() ([]byte, error) {
	events := b.Events
	if events == nil {
		events = []Event{}
	}
	encoded, err := json.Marshal(events)
	if err != nil {
		return nil, fmt.Errorf("encode battle events: %w", err)
	}
	return json.Marshal(battleJSON{
		Name:         b.Name,
		AttackerName: b.AttackerName,
		DefenderName: b.DefenderName,
		Events:       encoded,
		Results:      b.Results,
	})
}

func (b *Battle) UnmarshalJSON(data []byte) error {
	var raw battleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode battle: %w", err)
	}
	events := []Event{}
	if len(raw.Events) > 0 {
		decoded, err := DecodeEvents(raw.Events)
		if err != nil {
			return err
		}
		events = decoded
	}
	*b = Battle{
		Name:         raw.Name,
		AttackerName: raw.AttackerName,
		DefenderName: raw.DefenderName,
		Events:       events,
		Results:      raw.Results,
	}
	return nil
}

