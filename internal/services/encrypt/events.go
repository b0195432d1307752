package encrypt

import (
	"time"

	"github.com/TheMichaelB/sealfile/internal/models"
)

// EventType defines orchestrator event types.
type EventType string

const (
	EventStarted   EventType = "started"
	EventStage     EventType = "stage"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
)

// Event reports progress of an encryption attempt.
type Event struct {
	Type        EventType
	OperationID string
	Timestamp   time.Time
	File        string
	Stage       models.Stage
	Location    string
	Error       error
}

// Terminal reports whether no further events follow for the operation.
func (e Event) Terminal() bool {
	return e.Type == EventCompleted || e.Type == EventFailed
}
