package domain

// ConfigID - идентификатор конфигурации (башни, монстра, снаряда или бонуса) из правил игры.
type ConfigID int

// ObjectID - идентификатор объекта внутри одной битвы (монстр или снаряд).
type ObjectID int

// MaxWaveLength ограничивает размер волны, которую можно отправить в бой.
const MaxWaveLength = 500

// EventPrecision - число знаков после запятой для времени и координат событий.
// Округление делает сохраненные битвы побитово воспроизводимыми.
const EventPrecision = 4
