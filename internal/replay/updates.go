package replay

import (
	"encoding/json"

	"github.com/rhofour/InfiniTDBackend-sub000/internal/domain"
)

// Status - фаза проигрывания битвы.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusLive     Status = "LIVE"
	StatusFinished Status = "FINISHED"
)

// Update - закрытый набор сообщений для подписчиков: MetadataUpdate, EventUpdate, ResultsUpdate.
type Update interface {
	isUpdate()
}

// MetadataUpdate сообщает о смене фазы. Time задан только для LIVE.
type MetadataUpdate struct {
	Status       Status   `json:"status"`
	Name         string   `json:"name"`
	AttackerName string   `json:"attackerName"`
	DefenderName string   `json:"defenderName"`
	Time         *float64 `json:"time,omitempty"`
}

type EventUpdate struct {
	Event domain.Event
}

type ResultsUpdate struct {
	Results domain.BattleResults
}

func (MetadataUpdate) isUpdate() {}
func (EventUpdate) isUpdate() {}
func (ResultsUpdate) isUpdate() {}

// На проводе событие и результаты идут без обертки.
func (u EventUpdate) MarshalJSON() ([]byte, error) { return json.Marshal(u.Event) }
func (u ResultsUpdate) MarshalJSON() ([]byte, error) { return json.Marshal(u.Results) }

// Sink получает обновления для битвы с именем name.
// Publish вызывается под локом битвы и не должен блокироваться.
type Sink interface {
	Publish(name string, u Update)
}

// SinkFunc позволяет использовать обычную функцию как Sink.
type SinkFunc func(name string, u Update)

func (f SinkFunc) Publish(name string, u Update) { f(name, u) }
