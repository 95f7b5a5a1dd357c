package port

import (
	"context"
	"time"
)

// EventLevel уровень записи журнала событий
type EventLevel int

const (
	EventLevelCritical    EventLevel = 1
	EventLevelError       EventLevel = 2
	EventLevelWarning     EventLevel = 3
	EventLevelInformation EventLevel = 4
	EventLevelVerbose     EventLevel = 5
)

// IsError уровень Critical или Error
func (l EventLevel) IsError() bool {
	return l == EventLevelCritical || l == EventLevelError
}

// EventRecord запись журнала событий
type EventRecord struct {
	Provider    string
	EventID     int
	Level       EventLevel
	TimeCreated time.Time
	Message     string
}

// EventQuery фильтр журнала событий
type EventQuery struct {
	LogName   string
	Providers []string
	Since     time.Time
	MaxEvents int
}

// EventLogSource источник записей журнала событий (Port)
type EventLogSource interface {
	Query(ctx context.Context, query EventQuery) ([]EventRecord, error)
}
