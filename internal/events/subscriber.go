package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/events"
	"github.com/google/uuid"

	"github.com/venueops/opssync/internal/hub"
	"github.com/venueops/opssync/internal/ticket"
	"github.com/venueops/opssync/pkg/event"
)

// RequestSubscriber turns intake events published by stand devices into
// tickets. It is the async counterpart of the hub's POST endpoints: same
// validation, same push, just fed from the wire.
type RequestSubscriber struct {
	subscriber events.Subscriber
	service    *hub.Service
	logger     aqm.Logger
}

func NewRequestSubscriber(subscriber events.Subscriber, service *hub.Service, logger aqm.Logger) *RequestSubscriber {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &RequestSubscriber{
		subscriber: subscriber,
		service:    service,
		logger:     logger,
	}
}

func (s *RequestSubscriber) Start(ctx context.Context) error {
	s.logger.Info("Starting RequestSubscriber for topic: " + event.RequestIntakeTopic)

	if err := s.subscriber.Subscribe(ctx, event.RequestIntakeTopic, s.handleEvent); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", event.RequestIntakeTopic, err)
	}

	s.logger.Info("RequestSubscriber started successfully")
	return nil
}

func (s *RequestSubscriber) handleEvent(ctx context.Context, msg []byte) error {
	var meta event.IntakeMetadata
	if err := json.Unmarshal(msg, &meta); err != nil {
		s.logger.Errorf("Failed to unmarshal intake event: %v", err)
		return nil
	}

	switch meta.EventType {
	case event.EventDeliveryRequested:
		return s.handleDeliveryRequested(ctx, msg)
	case event.EventEmergencyReported:
		return s.handleEmergencyReported(ctx, msg)
	default:
		s.logger.Infof("Unknown intake event type: %s", meta.EventType)
	}

	return nil
}

func (s *RequestSubscriber) handleDeliveryRequested(ctx context.Context, msg []byte) error {
	var evt event.DeliveryRequestedEvent
	if err := json.Unmarshal(msg, &evt); err != nil {
		s.logger.Errorf("Failed to unmarshal delivery request event: %v", err)
		return nil
	}

	standID, err := uuid.Parse(evt.StandID)
	if err != nil {
		s.logger.Errorf("Invalid stand_id: %v", err)
		return nil
	}
	requesterID, err := uuid.Parse(evt.RequesterID)
	if err != nil {
		s.logger.Errorf("Invalid requester_id: %v", err)
		return nil
	}

	d, err := s.service.CreateDelivery(ctx, hub.CreateDeliveryInput{
		StandID:     standID,
		RequesterID: requesterID,
		Department:  evt.Department,
		Priority:    ticket.Priority(evt.Priority),
		Description: evt.Description,
	})
	if err != nil {
		// Malformed payloads are dropped, not redelivered: retrying cannot
		// make an unknown department valid.
		if ticket.ErrCode(err) != "" {
			s.logger.Errorf("Rejected delivery request: %v", err)
			return nil
		}
		s.logger.Errorf("Failed to create delivery: %v", err)
		return err
	}

	s.logger.Infof("Created delivery %s for stand %s", d.ID, evt.StandID)
	return nil
}

func (s *RequestSubscriber) handleEmergencyReported(ctx context.Context, msg []byte) error {
	var evt event.EmergencyReportedEvent
	if err := json.Unmarshal(msg, &evt); err != nil {
		s.logger.Errorf("Failed to unmarshal emergency report event: %v", err)
		return nil
	}

	reporterID, err := uuid.Parse(evt.ReporterID)
	if err != nil {
		s.logger.Errorf("Invalid reporter_id: %v", err)
		return nil
	}

	var standID *ticket.StandID
	if evt.StandID != "" {
		id, err := uuid.Parse(evt.StandID)
		if err != nil {
			s.logger.Errorf("Invalid stand_id: %v", err)
			return nil
		}
		standID = &id
	}

	a, err := s.service.CreateEmergency(ctx, hub.CreateEmergencyInput{
		AlertType:   evt.AlertType,
		Title:       evt.Title,
		Description: evt.Description,
		StandID:     standID,
		ReporterID:  reporterID,
	})
	if err != nil {
		if ticket.ErrCode(err) != "" {
			s.logger.Errorf("Rejected emergency report: %v", err)
			return nil
		}
		s.logger.Errorf("Failed to create emergency: %v", err)
		return err
	}

	s.logger.Infof("Created emergency %s (%s)", a.ID, a.AlertType)
	return nil
}
