package events

import (
	"time"

	"github.com/spec-kit/complaint-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventComplaintCreated     EventType = "complaint_created"
	EventStageCompleted       EventType = "complaint_stage_completed"
	EventComplaintClosed      EventType = "complaint_closed"
	EventComplaintHoldChanged EventType = "complaint_hold_changed"
)

// AllEventTypes lists every event a complaint change can emit.
var AllEventTypes = []EventType{
	EventComplaintCreated,
	EventStageCompleted,
	EventComplaintClosed,
	EventComplaintHoldChanged,
}

// Actor identifies who caused an event.
type Actor struct {
	SubjectID string `json:"subject_id,omitempty"`
	Email     string `json:"email,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID          string      `json:"id"`
	Type        EventType   `json:"type"`
	ComplaintID string      `json:"complaint_id"`
	Actor       Actor       `json:"actor"`
	Timestamp   time.Time   `json:"timestamp"`
	Payload     interface{} `json:"payload"`
}

// ComplaintCreatedPayload payload.
type ComplaintCreatedPayload struct {
	Name    string `json:"name"`
	Product string `json:"product"`
}

// StageCompletedPayload payload.
type StageCompletedPayload struct {
	Stage        int                    `json:"stage"`
	CurrentStage int                    `json:"current_stage"`
	Status       domain.ComplaintStatus `json:"status"`
	RecordedAt   time.Time              `json:"recorded_at"`
}

// HoldChangedPayload payload.
type HoldChangedPayload struct {
	OnHold bool `json:"on_hold"`
}
