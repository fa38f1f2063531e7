package ticket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/venueops/opssync/pkg/event"
)

// EncodeDeliveryUpsert wraps a delivery request in the tagged wire envelope.
func EncodeDeliveryUpsert(d *DeliveryRequest, occurredAt time.Time) (*event.UpsertEnvelope, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode delivery upsert: %w", err)
	}
	return &event.UpsertEnvelope{
		Kind:       event.KindDelivery,
		OccurredAt: occurredAt,
		Entity:     raw,
	}, nil
}

// EncodeEmergencyUpsert wraps an emergency alert in the tagged wire envelope.
func EncodeEmergencyUpsert(a *EmergencyAlert, occurredAt time.Time) (*event.UpsertEnvelope, error) {
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode emergency upsert: %w", err)
	}
	return &event.UpsertEnvelope{
		Kind:       event.KindEmergency,
		OccurredAt: occurredAt,
		Entity:     raw,
	}, nil
}

// DecodeUpsert validates an inbound envelope at the channel boundary and
// returns exactly one typed entity. Anything undecodable, including an
// unknown kind or a payload missing its identity, is ErrMalformedMessage so
// the channel can drop it without dying.
func DecodeUpsert(env *event.UpsertEnvelope) (*DeliveryRequest, *EmergencyAlert, error) {
	if env == nil {
		return nil, nil, ErrMalformedMessage
	}

	switch env.Kind {
	case event.KindDelivery:
		var d DeliveryRequest
		if err := json.Unmarshal(env.Entity, &d); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		if d.ID == (DeliveryID{}) {
			return nil, nil, fmt.Errorf("%w: delivery upsert without id", ErrMalformedMessage)
		}
		return &d, nil, nil
	case event.KindEmergency:
		var a EmergencyAlert
		if err := json.Unmarshal(env.Entity, &a); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		if a.ID == (AlertID{}) {
			return nil, nil, fmt.Errorf("%w: emergency upsert without id", ErrMalformedMessage)
		}
		return nil, &a, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown kind %q", ErrMalformedMessage, env.Kind)
	}
}
