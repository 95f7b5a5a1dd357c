package valueobject

import "errors"

// Dimension представляет измеряемое направление KPI (Value Object)
type Dimension string

const (
	CPU         Dimension = "cpu"
	Memory      Dimension = "memory"
	Disk        Dimension = "disk"
	Network     Dimension = "network"
	FileLatency Dimension = "file_latency"
	Policy      Dimension = "policy"
	EventLog    Dimension = "event_log"
)

// Validate проверяет валидность направления
func (d Dimension) Validate() error {
	switch d {
	case CPU, Memory, Disk, Network, FileLatency, Policy, EventLog:
		return nil
	default:
		return errors.New("invalid dimension")
	}
}

// String возвращает строковое представление
func (d Dimension) String() string {
	return string(d)
}

// AllDimensions возвращает список всех допустимых направлений
func AllDimensions() []Dimension {
	return []Dimension{CPU, Memory, Disk, Network, FileLatency, Policy, EventLog}
}
