package events

import (
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/models"
)

// EventType identifies a linkage event on the wire
type EventType string

const (
	// Job lifecycle events
	EventTypeJobStarted   EventType = "linkage.started"
	EventTypeJobCompleted EventType = "linkage.completed"
	EventTypeJobFailed    EventType = "linkage.failed"

	// Match events
	EventTypePairMatched EventType = "pair.matched"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// CompletedPayload is the stats payload carried by linkage.completed events
type CompletedPayload struct {
	SchemaVersion string          `json:"schema_version"`
	Stats         models.RunStats `json:"stats"`
}

// NewCorrelationID returns a fresh correlation id for an emitted event
func NewCorrelationID() string {
	return uuid.New().String()
}
