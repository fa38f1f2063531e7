package event

import (
	"encoding/json"
	"time"
)

const (
	// DeliveriesTopic carries delivery request upserts. Publishers append the
	// stand location id as a subject token so pinned sessions can narrow their
	// subscription; unpinned sessions subscribe with a wildcard.
	DeliveriesTopic = "ops.deliveries"

	// EmergenciesTopic carries emergency alert upserts. Alerts are always
	// venue-wide: every session subscribes to the full topic.
	EmergenciesTopic = "ops.emergencies"

	// RequestIntakeTopic is where external producers (request forms, kiosk
	// integrations) publish new delivery requests for the hub to persist.
	RequestIntakeTopic = "ops.requests"
)

const (
	KindDelivery  = "delivery"
	KindEmergency = "emergency"
)

// UpsertEnvelope is the tagged push message: "insert or update this entity
// to this version". Kind discriminates the payload; Entity is the full
// entity document at the version the backing store just committed.
type UpsertEnvelope struct {
	Kind       string          `json:"kind"`
	OccurredAt time.Time       `json:"occurred_at"`
	Entity     json.RawMessage `json:"entity"`
}

// DeliverySubject returns the publish subject for a delivery upsert scoped
// to a stand location. An empty location falls back to a catch-all token so
// wildcard subscriptions still match.
func DeliverySubject(locationID string) string {
	if locationID == "" {
		locationID = "unassigned"
	}
	return DeliveriesTopic + "." + locationID
}

// DeliveriesWildcard matches delivery upserts for every stand location.
func DeliveriesWildcard() string {
	return DeliveriesTopic + ".>"
}
