package port

import (
	"context"
)

// Subjects used for suite events
const (
	SubjectCheckCompleted = "dlp.kpi.check.completed"
	SubjectSuiteCompleted = "dlp.kpi.suite.completed"
	SubjectKPIAlert       = "dlp.kpi.alert"
)

// EventPublisher defines the interface for publishing events to a message broker
type EventPublisher interface {
	// PublishEvent publishes an event to the specified subject
	PublishEvent(ctx context.Context, subject string, event interface{}) error

	// Close closes the connection to the message broker
	Close() error
}
