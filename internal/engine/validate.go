package engine

import (
	"fmt"

	"github.com/rhofour/InfiniTDBackend-sub000/internal/domain"
)

type objectKey struct {
	kind domain.ObjectKind
	id   domain.ObjectID
}

// ValidateEvents проверяет отсортированный поток: после Delete объект больше не упоминается,
// и удалить объект можно только один раз.
// Damage всегда относится к монстру.
func ValidateEvents(events []domain.Event) error {
	deleted := make(map[objectKey]float64)
	for i, e := range events {
		var key objectKey
		switch ev := e.(type) {
		case domain.MoveEvent:
			key = objectKey{ev.ObjKind, ev.ID}
		case domain.DamageEvent:
			key = objectKey{domain.ObjectMonster, ev.ID}
		case domain.DeleteEvent:
			key = objectKey{ev.ObjKind, ev.ID}
			if at, ok := deleted[key]; ok {
				return fmt.Errorf("%w: event %d deletes %s %d again (first at %v)",
					ErrInvalidEventStream, i, ev.ObjKind, ev.ID, at)
			}
			deleted[key] = ev.StartTime
			continue
		default:
			return fmt.Errorf("%w: event %d has unexpected type %T", ErrInvalidEventStream, i, e)
		}
		if at, ok := deleted[key]; ok {
			return fmt.Errorf("%w: event %d (%s) for %s %d after its delete at %v",
				ErrInvalidEventStream, i, e.Kind(), key.kind, key.id, at)
		}
	}
	return nil
}
