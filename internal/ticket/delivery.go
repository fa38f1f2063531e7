package ticket

import (
	"time"

	"github.com/google/uuid"

	"github.com/venueops/opssync/pkg/enums/deliverystatus"
)

type DeliveryID = uuid.UUID
type StandID = uuid.UUID
type ActorID = uuid.UUID

type Priority string

const (
	PriorityNormal    Priority = "normal"
	PriorityEmergency Priority = "emergency"
)

// DeliveryRequest is a restocking ticket raised by stand staff. It moves
// strictly forward through the deliverystatus lifecycle and is never
// deleted; "delivered" is terminal.
type DeliveryRequest struct {
	ID          DeliveryID `bson:"_id" json:"id"`
	StandID     StandID    `bson:"stand_id" json:"stand_id"`
	RequesterID ActorID    `bson:"requester_id" json:"requester_id"`
	Department  string     `bson:"department" json:"department"`
	Priority    Priority   `bson:"priority" json:"priority"`
	Status      string     `bson:"status" json:"status"`
	Description string     `bson:"description,omitempty" json:"description,omitempty"`

	// ETAMinutes is set only at dispatch (on-the-way) and later.
	ETAMinutes *int `bson:"eta_minutes,omitempty" json:"eta_minutes,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`

	ModelVersion int `bson:"model_version" json:"model_version"`
}

// Version is the marker used to decide whether an incoming upsert
// supersedes a stored copy. UpdatedAt strictly increases on every accepted
// mutation, so it doubles as the version.
func (d *DeliveryRequest) Version() time.Time {
	return d.UpdatedAt
}

// Terminal reports whether the request reached its final status.
func (d *DeliveryRequest) Terminal() bool {
	return d.Status == deliverystatus.Statuses.Delivered.Code()
}

// Clone returns an independent copy. Store and state machine code hand out
// clones so no caller can mutate shared state behind the lock.
func (d *DeliveryRequest) Clone() *DeliveryRequest {
	if d == nil {
		return nil
	}
	out := *d
	if d.ETAMinutes != nil {
		eta := *d.ETAMinutes
		out.ETAMinutes = &eta
	}
	return &out
}
