package event

import "time"

// Event types carried on the request intake topic. Stand devices publish
// these; the hub turns them into tickets.
const (
	EventDeliveryRequested = "ops.delivery.requested"
	EventEmergencyReported = "ops.emergency.reported"
)

type IntakeMetadata struct {
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
}

type DeliveryRequestedEvent struct {
	IntakeMetadata
	StandID     string `json:"stand_id"`
	RequesterID string `json:"requester_id"`
	Department  string `json:"department"`
	Priority    string `json:"priority,omitempty"`
	Description string `json:"description,omitempty"`
}

type EmergencyReportedEvent struct {
	IntakeMetadata
	AlertType   string `json:"alert_type"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	StandID     string `json:"stand_id,omitempty"`
	ReporterID  string `json:"reporter_id"`
}
