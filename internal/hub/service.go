package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/events"
	"github.com/google/uuid"

	"github.com/venueops/opssync/internal/ticket"
	"github.com/venueops/opssync/pkg/enums/alerttype"
	"github.com/venueops/opssync/pkg/enums/deliverystatus"
	"github.com/venueops/opssync/pkg/enums/department"
	"github.com/venueops/opssync/pkg/event"
)

// activityLimit bounds the recent-activity feed carried in snapshots.
const activityLimit = 50

// Service is the authoritative side of ticket synchronization: it owns the
// only write path for deliveries and emergencies, validates every
// transition, and pushes the resulting upsert to all connected consoles.
type Service struct {
	deliveries  ticket.DeliveryRepository
	emergencies ticket.EmergencyRepository
	publisher   events.Publisher
	trans       ticket.Transitioner
	logger      aqm.Logger

	mu       sync.Mutex
	activity []event.ActivityEntry
}

func NewService(deliveries ticket.DeliveryRepository, emergencies ticket.EmergencyRepository, publisher events.Publisher, trans ticket.Transitioner, logger aqm.Logger) *Service {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Service{
		deliveries:  deliveries,
		emergencies: emergencies,
		publisher:   publisher,
		trans:       trans,
		logger:      logger,
	}
}

type CreateDeliveryInput struct {
	StandID     ticket.StandID
	RequesterID ticket.ActorID
	Department  string
	Priority    ticket.Priority
	Description string
}

func (s *Service) CreateDelivery(ctx context.Context, input CreateDeliveryInput) (*ticket.DeliveryRequest, error) {
	if department.ByName(input.Department) == nil {
		return nil, fmt.Errorf("%w: unknown department %q", ticket.ErrMalformedMessage, input.Department)
	}

	priority := input.Priority
	if priority == "" {
		priority = ticket.PriorityNormal
	}
	if priority != ticket.PriorityNormal && priority != ticket.PriorityEmergency {
		return nil, fmt.Errorf("%w: unknown priority %q", ticket.ErrMalformedMessage, priority)
	}

	now := time.Now().UTC()
	d := &ticket.DeliveryRequest{
		ID:          uuid.New(),
		StandID:     input.StandID,
		RequesterID: input.RequesterID,
		Department:  input.Department,
		Priority:    priority,
		Status:      deliverystatus.Statuses.Requested.Code(),
		Description: input.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.deliveries.Create(ctx, d); err != nil {
		return nil, err
	}

	s.publishDelivery(ctx, d)
	s.recordActivity(event.ActivityEntry{
		Kind:     event.KindDelivery,
		EntityID: d.ID.String(),
		Status:   d.Status,
		ActorID:  input.RequesterID.String(),
		At:       now,
	})
	return d, nil
}

func (s *Service) AdvanceDelivery(ctx context.Context, id ticket.DeliveryID, next deliverystatus.Status, actorID ticket.ActorID, etaMinutes *int) (*ticket.DeliveryRequest, error) {
	current, err := s.deliveries.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updated, err := s.trans.AdvanceDelivery(current, next, etaMinutes, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	// The repo write re-checks the previous status, so a racing advance
	// from another console loses here rather than double-applying.
	if err := s.deliveries.UpdateStatusFrom(ctx, updated, current.Status); err != nil {
		return nil, err
	}

	s.publishDelivery(ctx, updated)
	s.recordActivity(event.ActivityEntry{
		Kind:     event.KindDelivery,
		EntityID: updated.ID.String(),
		Status:   updated.Status,
		ActorID:  actorID.String(),
		At:       updated.UpdatedAt,
	})
	return updated, nil
}

type CreateEmergencyInput struct {
	AlertType   string
	Title       string
	Description string
	StandID     *ticket.StandID
	ReporterID  ticket.ActorID
}

func (s *Service) CreateEmergency(ctx context.Context, input CreateEmergencyInput) (*ticket.EmergencyAlert, error) {
	if alerttype.ByName(input.AlertType) == nil {
		return nil, fmt.Errorf("%w: unknown alert type %q", ticket.ErrMalformedMessage, input.AlertType)
	}
	if input.Title == "" {
		return nil, fmt.Errorf("%w: alert title is required", ticket.ErrMalformedMessage)
	}

	now := time.Now().UTC()
	a := &ticket.EmergencyAlert{
		ID:          uuid.New(),
		AlertType:   input.AlertType,
		Title:       input.Title,
		Description: input.Description,
		StandID:     input.StandID,
		ReporterID:  input.ReporterID,
		IsActive:    true,
		CreatedAt:   now,
	}

	if err := s.emergencies.Create(ctx, a); err != nil {
		return nil, err
	}

	s.publishEmergency(ctx, a)
	s.recordActivity(event.ActivityEntry{
		Kind:     event.KindEmergency,
		EntityID: a.ID.String(),
		Status:   "reported",
		ActorID:  input.ReporterID.String(),
		At:       now,
	})
	return a, nil
}

func (s *Service) AcknowledgeEmergency(ctx context.Context, id ticket.AlertID, actorID ticket.ActorID) (*ticket.EmergencyAlert, error) {
	current, err := s.emergencies.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updated, err := s.trans.AcknowledgeEmergency(current, actorID, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	// Same-actor repeat: the transition is a no-op, nothing to persist or
	// announce.
	if current.Acknowledged() {
		return updated, nil
	}

	if err := s.emergencies.SetAcknowledged(ctx, updated); err != nil {
		return nil, err
	}

	s.publishEmergency(ctx, updated)
	s.recordActivity(event.ActivityEntry{
		Kind:     event.KindEmergency,
		EntityID: updated.ID.String(),
		Status:   "acknowledged",
		ActorID:  actorID.String(),
		At:       *updated.AcknowledgedAt,
	})
	return updated, nil
}

func (s *Service) ResolveEmergency(ctx context.Context, id ticket.AlertID, actorID ticket.ActorID, notes string) (*ticket.EmergencyAlert, error) {
	current, err := s.emergencies.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updated, err := s.trans.ResolveEmergency(current, actorID, notes, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	if err := s.emergencies.SetResolved(ctx, updated); err != nil {
		return nil, err
	}

	s.publishEmergency(ctx, updated)
	s.recordActivity(event.ActivityEntry{
		Kind:     event.KindEmergency,
		EntityID: updated.ID.String(),
		Status:   "resolved",
		ActorID:  actorID.String(),
		At:       *updated.ResolvedAt,
	})
	return updated, nil
}

// Snapshot assembles the point-in-time baseline a console loads on connect.
// Deliveries can be scoped to one stand; emergencies are venue-wide by
// design, every console sees all of them.
func (s *Service) Snapshot(ctx context.Context, standID *ticket.StandID) (*ticket.Snapshot, error) {
	deliveries, err := s.deliveries.List(ctx, ticket.DeliveryFilter{StandID: standID})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ticket.ErrUnavailable, err)
	}

	emergencies, err := s.emergencies.List(ctx, ticket.EmergencyFilter{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ticket.ErrUnavailable, err)
	}

	summary := ticket.Summary{GeneratedAt: time.Now().UTC()}
	for i := range deliveries {
		d := &deliveries[i]
		if d.Terminal() {
			summary.Delivered++
			continue
		}
		summary.OpenDeliveries++
		if d.Priority == ticket.PriorityEmergency {
			summary.EmergencyPriorityOpen++
		}
	}
	for i := range emergencies {
		a := &emergencies[i]
		if !a.IsActive {
			continue
		}
		summary.ActiveAlerts++
		if !a.Acknowledged() {
			summary.UnacknowledgedAlerts++
		}
	}

	return &ticket.Snapshot{
		Summary:        summary,
		Deliveries:     deliveries,
		Emergencies:    emergencies,
		RecentActivity: s.RecentActivity(),
	}, nil
}

func (s *Service) RecentActivity() []event.ActivityEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.ActivityEntry(nil), s.activity...)
}

// recordActivity prepends one feed entry, newest first, bounded.
func (s *Service) recordActivity(e event.ActivityEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activity = append([]event.ActivityEntry{e}, s.activity...)
	if len(s.activity) > activityLimit {
		s.activity = s.activity[:activityLimit]
	}
}

// publishDelivery pushes the upsert to the stand's subject. Publish
// failures are logged, not returned: the write already happened and the
// next snapshot closes the gap for any console that missed it.
func (s *Service) publishDelivery(ctx context.Context, d *ticket.DeliveryRequest) {
	env, err := ticket.EncodeDeliveryUpsert(d, d.UpdatedAt)
	if err != nil {
		s.logger.Errorf("cannot encode delivery upsert: %v", err)
		return
	}
	data, _ := json.Marshal(env)
	if err := s.publisher.Publish(ctx, event.DeliverySubject(d.StandID.String()), data); err != nil {
		s.logger.Errorf("Failed to publish delivery upsert: %v", err)
	}
}

// UpsertFetcher replays retained upsert messages from a durable stream,
// oldest first.
type UpsertFetcher interface {
	Fetch(ctx context.Context, limit int) ([]events.StreamMessage, error)
}

// WarmActivity rebuilds the recent-activity ring from retained emergency
// upserts after a restart. Undecodable messages are skipped: the stream is
// best-effort history, the collections stay the source of truth.
func (s *Service) WarmActivity(ctx context.Context, fetcher UpsertFetcher) error {
	msgs, err := fetcher.Fetch(ctx, activityLimit)
	if err != nil {
		return fmt.Errorf("cannot fetch retained upserts: %w", err)
	}

	warmed := 0
	for _, msg := range msgs {
		var env event.UpsertEnvelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			continue
		}
		_, a, err := ticket.DecodeUpsert(&env)
		if err != nil || a == nil {
			continue
		}
		s.recordActivity(alertActivity(a))
		warmed++
	}

	s.logger.Info("recent activity warmed from stream", "messages", len(msgs), "entries", warmed)
	return nil
}

// alertActivity derives the feed entry for the alert's latest lifecycle step.
func alertActivity(a *ticket.EmergencyAlert) event.ActivityEntry {
	entry := event.ActivityEntry{
		Kind:     event.KindEmergency,
		EntityID: a.ID.String(),
		Status:   "reported",
		ActorID:  a.ReporterID.String(),
		At:       a.Version(),
	}
	switch {
	case a.Resolved():
		entry.Status = "resolved"
		if a.ResolvedBy != nil {
			entry.ActorID = a.ResolvedBy.String()
		}
	case a.Acknowledged():
		entry.Status = "acknowledged"
		if a.AcknowledgedBy != nil {
			entry.ActorID = a.AcknowledgedBy.String()
		}
	}
	return entry
}

func (s *Service) publishEmergency(ctx context.Context, a *ticket.EmergencyAlert) {
	env, err := ticket.EncodeEmergencyUpsert(a, a.Version())
	if err != nil {
		s.logger.Errorf("cannot encode emergency upsert: %v", err)
		return
	}
	data, _ := json.Marshal(env)
	if err := s.publisher.Publish(ctx, event.EmergenciesTopic, data); err != nil {
		s.logger.Errorf("Failed to publish emergency upsert: %v", err)
	}
}
