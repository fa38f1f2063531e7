package ticket

import (
	"time"

	"github.com/google/uuid"
)

type AlertID = uuid.UUID

// EmergencyAlert is an incident ticket raised anywhere in the venue. Its
// lifecycle is acknowledge-then-resolve; resolved alerts stay around for
// audit history.
type EmergencyAlert struct {
	ID          AlertID  `bson:"_id" json:"id"`
	AlertType   string   `bson:"alert_type" json:"alert_type"`
	Title       string   `bson:"title" json:"title"`
	Description string   `bson:"description,omitempty" json:"description,omitempty"`
	StandID     *StandID `bson:"stand_id,omitempty" json:"stand_id,omitempty"`
	ReporterID  ActorID  `bson:"reporter_id" json:"reporter_id"`

	// IsActive is false exactly when the alert has been resolved.
	IsActive bool `bson:"is_active" json:"is_active"`

	AcknowledgedBy *ActorID   `bson:"acknowledged_by,omitempty" json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `bson:"acknowledged_at,omitempty" json:"acknowledged_at,omitempty"`

	ResolvedBy      *ActorID   `bson:"resolved_by,omitempty" json:"resolved_by,omitempty"`
	ResolvedAt      *time.Time `bson:"resolved_at,omitempty" json:"resolved_at,omitempty"`
	ResolutionNotes string     `bson:"resolution_notes,omitempty" json:"resolution_notes,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`

	ModelVersion int `bson:"model_version" json:"model_version"`
}

func (a *EmergencyAlert) Acknowledged() bool {
	return a.AcknowledgedAt != nil
}

func (a *EmergencyAlert) Resolved() bool {
	return a.ResolvedAt != nil
}

// Version is the upsert comparison marker: the latest of the three
// lifecycle timestamps the alert has accumulated so far.
func (a *EmergencyAlert) Version() time.Time {
	v := a.CreatedAt
	if a.AcknowledgedAt != nil && a.AcknowledgedAt.After(v) {
		v = *a.AcknowledgedAt
	}
	if a.ResolvedAt != nil && a.ResolvedAt.After(v) {
		v = *a.ResolvedAt
	}
	return v
}

// Clone returns an independent copy, pointer fields included.
func (a *EmergencyAlert) Clone() *EmergencyAlert {
	if a == nil {
		return nil
	}
	out := *a
	if a.StandID != nil {
		id := *a.StandID
		out.StandID = &id
	}
	if a.AcknowledgedBy != nil {
		id := *a.AcknowledgedBy
		out.AcknowledgedBy = &id
	}
	if a.AcknowledgedAt != nil {
		t := *a.AcknowledgedAt
		out.AcknowledgedAt = &t
	}
	if a.ResolvedBy != nil {
		id := *a.ResolvedBy
		out.ResolvedBy = &id
	}
	if a.ResolvedAt != nil {
		t := *a.ResolvedAt
		out.ResolvedAt = &t
	}
	return &out
}
