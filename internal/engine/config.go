package engine

import "github.com/rhofour/InfiniTDBackend-sub000/internal/domain"

const (
	// DefaultTickSecs - шаг виртуальных часов для боевых расчетов.
	DefaultTickSecs = 0.01
	// BulkTickSecs - грубый шаг для массовой оценки (балансировщик).
	BulkTickSecs = 0.05
)

// Config хранит параметры симуляции.
type Config struct {
	TickSecs       float64
	EventPrecision int
	// Validate включает проверку потока событий после расчета (дубли Delete,
	// события для уже удаленных объектов). Дорого, для отладки.
	Validate bool
}

// NewConfig создает конфиг по умолчанию.
func NewConfig() Config {
	return Config{
		TickSecs:       DefaultTickSecs,
		EventPrecision: domain.EventPrecision,
	}
}

// BulkConfig - конфиг для быстрых прикидок.
func BulkConfig() Config {
	cfg := NewConfig()
	cfg.TickSecs = BulkTickSecs
	return cfg
}
