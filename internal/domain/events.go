package domain

import (
	"sort"
	"strings"
)

// EventKind - тип события битвы. Порядок значений задает приоритет
// при одинаковом времени: Move < Damage < Delete.
type EventKind uint8

const (
	EventMove EventKind = iota
	EventDamage
	EventDelete
)

// Маппинг для конвертации JSON -> Domain
var eventStringToKind = map[string]EventKind{
	"MOVE":   EventMove,
	"DAMAGE": EventDamage,
	"DELETE": EventDelete,
}

// Маппинг для логов Domain -> String
var eventKindToString = map[EventKind]string{
	EventMove:   "MOVE",
	EventDamage: "DAMAGE",
	EventDelete: "DELETE",
}

// ParseEventKind конвертирует строку из JSON в EventKind.
func ParseEventKind(s string) (EventKind, bool) {
	k, ok := eventStringToKind[strings.ToUpper(s)]
	return k, ok
}

func (k EventKind) String() string {
	if val, ok := eventKindToString[k]; ok {
		return val
	}
	return "UNKNOWN"
}

// ObjectKind - кто участвует в событии.
type ObjectKind uint8

const (
	ObjectMonster ObjectKind = iota + 1
	ObjectProjectile
)

var objectStringToKind = map[string]ObjectKind{
	"MONSTER":    ObjectMonster,
	"PROJECTILE": ObjectProjectile,
}

var objectKindToString = map[ObjectKind]string{
	ObjectMonster:    "MONSTER",
	ObjectProjectile: "PROJECTILE",
}

func ParseObjectKind(s string) (ObjectKind, bool) {
	k, ok := objectStringToKind[strings.ToUpper(s)]
	return k, ok
}

func (k ObjectKind) String() string {
	if val, ok := objectKindToString[k]; ok {
		return val
	}
	return "UNKNOWN"
}

// Event - закрытый набор событий битвы: MoveEvent, DamageEvent, DeleteEvent.
// Событие описывает отрезок движения или дискретное изменение состояния,
// клиент сам интерполирует позиции между StartTime и EndTime.
type Event interface {
	Kind() EventKind
	Start() float64
	Object() ObjectID
	isEvent()
}

// MoveEvent - движение объекта по прямой от StartPos к DestPos.
type MoveEvent struct {
	ObjKind   ObjectKind
	ID        ObjectID
	ConfigID  ConfigID
	StartPos  FpCellPos
	DestPos   FpCellPos
	StartTime float64
	EndTime   float64
}

// DamageEvent - здоровье монстра после попадания.
type DamageEvent struct {
	ID        ObjectID
	StartTime float64
	Health    float64
}

// DeleteEvent - объект исчезает с поля.
type DeleteEvent struct {
	ObjKind   ObjectKind
	ID        ObjectID
	StartTime float64
}

func (MoveEvent) Kind() EventKind { return EventMove }
func (e MoveEvent) Start() float64 { return e.StartTime }
func (e MoveEvent) Object() ObjectID { return e.ID }
func (MoveEvent) isEvent() {}
func (DamageEvent) Kind() EventKind { return EventDamage }
func (e DamageEvent) Start() float64 { return e.StartTime }
func (e DamageEvent) Object() ObjectID { return e.ID }
func (DamageEvent) isEvent() {}
func (DeleteEvent) Kind() EventKind { return EventDelete }
func (e DeleteEvent) Start() float64 { return e.StartTime }
func (e DeleteEvent) Object() ObjectID { return e.ID }
func (DeleteEvent) isEvent() {}

// RoundEvent округляет время и координаты события до precision знаков.
func RoundEvent(e Event, precision int) Event {
	switch ev := e.(type) {
	case MoveEvent:
		ev.StartPos = ev.StartPos.Round(precision)
		ev.DestPos = ev.DestPos.Round(precision)
		ev.StartTime = RoundTo(ev.StartTime, precision)
		ev.EndTime = RoundTo(ev.EndTime, precision)
		return ev
	case DamageEvent:
		ev.StartTime = RoundTo(ev.StartTime, precision)
		ev.Health = RoundTo(ev.Health, precision)
		return ev
	case DeleteEvent:
		ev.StartTime = RoundTo(ev.StartTime, precision)
		return ev
	}
	return e
}

// endTimeKey - третий ключ сортировки: EndTime для Move, -1 для остальных.
func endTimeKey(e Event) float64 {
	if mv, ok := e.(MoveEvent); ok {
		return mv.EndTime
	}
	return -1
}

// EventLess задает порядок воспроизведения: время начала, затем тип, затем время окончания.
func EventLess(a, b Event) bool {
	if a.Start() != b.Start() {
		return a.Start() < b.Start()
	}
	if a.Kind() != b.Kind() {
		return a.Kind() < b.Kind()
	}
	return endTimeKey(a) < endTimeKey(b)
}

// SortEvents стабильно сортирует события. Стабильность важна: два Damage одному
// монстру в один момент должны сохранить порядок, иначе меньшее здоровье "откатится".
func SortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return EventLess(events[i], events[j])
	})
}
