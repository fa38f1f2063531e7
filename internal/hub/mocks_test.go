package hub

import (
	"context"
	"fmt"
	"sync"

	"github.com/aquamarinepk/aqm/events"
	"github.com/google/uuid"

	"github.com/venueops/opssync/internal/ticket"
)

// MockDeliveryRepository is a test mock for ticket.DeliveryRepository with
// real compare-and-swap semantics, so racing advances behave like they do
// against the database.
type MockDeliveryRepository struct {
	mu         sync.Mutex
	deliveries map[uuid.UUID]*ticket.DeliveryRequest

	CreateFunc   func(ctx context.Context, d *ticket.DeliveryRequest) error
	FindByIDFunc func(ctx context.Context, id ticket.DeliveryID) (*ticket.DeliveryRequest, error)
}

func NewMockDeliveryRepository() *MockDeliveryRepository {
	return &MockDeliveryRepository{
		deliveries: make(map[uuid.UUID]*ticket.DeliveryRequest),
	}
}

func (m *MockDeliveryRepository) Create(ctx context.Context, d *ticket.DeliveryRequest) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, d)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveries[d.ID] = d.Clone()
	return nil
}

func (m *MockDeliveryRepository) FindByID(ctx context.Context, id ticket.DeliveryID) (*ticket.DeliveryRequest, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, exists := m.deliveries[id]
	if !exists {
		return nil, ticket.ErrNotFound
	}
	return d.Clone(), nil
}

func (m *MockDeliveryRepository) List(ctx context.Context, filter ticket.DeliveryFilter) ([]ticket.DeliveryRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]ticket.DeliveryRequest, 0, len(m.deliveries))
	for _, d := range m.deliveries {
		if filter.StandID != nil && d.StandID != *filter.StandID {
			continue
		}
		if filter.Status != nil && d.Status != *filter.Status {
			continue
		}
		if filter.Department != nil && d.Department != *filter.Department {
			continue
		}
		if filter.Priority != nil && d.Priority != *filter.Priority {
			continue
		}
		result = append(result, *d.Clone())
	}
	return result, nil
}

func (m *MockDeliveryRepository) UpdateStatusFrom(ctx context.Context, d *ticket.DeliveryRequest, fromStatus string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, exists := m.deliveries[d.ID]
	if !exists {
		return ticket.ErrNotFound
	}
	if current.Status != fromStatus {
		return fmt.Errorf("%w: delivery %s no longer in status %s", ticket.ErrInvalidTransition, d.ID, fromStatus)
	}
	m.deliveries[d.ID] = d.Clone()
	return nil
}

// AddDelivery is a helper to seed the mock repository
func (m *MockDeliveryRepository) AddDelivery(d *ticket.DeliveryRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveries[d.ID] = d.Clone()
}

// MockEmergencyRepository is a test mock for ticket.EmergencyRepository.
type MockEmergencyRepository struct {
	mu     sync.Mutex
	alerts map[uuid.UUID]*ticket.EmergencyAlert
}

func NewMockEmergencyRepository() *MockEmergencyRepository {
	return &MockEmergencyRepository{
		alerts: make(map[uuid.UUID]*ticket.EmergencyAlert),
	}
}

func (m *MockEmergencyRepository) Create(ctx context.Context, a *ticket.EmergencyAlert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts[a.ID] = a.Clone()
	return nil
}

func (m *MockEmergencyRepository) FindByID(ctx context.Context, id ticket.AlertID) (*ticket.EmergencyAlert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, exists := m.alerts[id]
	if !exists {
		return nil, ticket.ErrNotFound
	}
	return a.Clone(), nil
}

func (m *MockEmergencyRepository) List(ctx context.Context, filter ticket.EmergencyFilter) ([]ticket.EmergencyAlert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]ticket.EmergencyAlert, 0, len(m.alerts))
	for _, a := range m.alerts {
		if filter.StandID != nil && (a.StandID == nil || *a.StandID != *filter.StandID) {
			continue
		}
		if filter.ActiveOnly && !a.IsActive {
			continue
		}
		result = append(result, *a.Clone())
	}
	return result, nil
}

func (m *MockEmergencyRepository) SetAcknowledged(ctx context.Context, a *ticket.EmergencyAlert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, exists := m.alerts[a.ID]
	if !exists {
		return ticket.ErrNotFound
	}
	if current.Resolved() {
		return fmt.Errorf("%w: emergency %s already resolved", ticket.ErrInvalidTransition, a.ID)
	}
	if current.Acknowledged() {
		return fmt.Errorf("%w: emergency %s", ticket.ErrAlreadyAcknowledged, a.ID)
	}
	m.alerts[a.ID] = a.Clone()
	return nil
}

func (m *MockEmergencyRepository) SetResolved(ctx context.Context, a *ticket.EmergencyAlert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, exists := m.alerts[a.ID]
	if !exists {
		return ticket.ErrNotFound
	}
	if current.Resolved() {
		return fmt.Errorf("%w: emergency %s already resolved", ticket.ErrInvalidTransition, a.ID)
	}
	if !current.Acknowledged() {
		return fmt.Errorf("%w: emergency %s", ticket.ErrNotAcknowledged, a.ID)
	}
	m.alerts[a.ID] = a.Clone()
	return nil
}

// AddAlert is a helper to seed the mock repository
func (m *MockEmergencyRepository) AddAlert(a *ticket.EmergencyAlert) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts[a.ID] = a.Clone()
}

// MockPublisher is a test mock for events.Publisher
type MockPublisher struct {
	mu              sync.Mutex
	PublishedEvents []PublishedEvent
	PublishFunc     func(ctx context.Context, topic string, data []byte) error
}

type PublishedEvent struct {
	Topic string
	Data  []byte
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		PublishedEvents: make([]PublishedEvent, 0),
	}
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, data []byte) error {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, topic, data)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PublishedEvents = append(m.PublishedEvents, PublishedEvent{Topic: topic, Data: data})
	return nil
}

func (m *MockPublisher) Events() []PublishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PublishedEvent(nil), m.PublishedEvents...)
}

// MockUpsertFetcher is a test mock for UpsertFetcher
type MockUpsertFetcher struct {
	Messages []events.StreamMessage
	Err      error
}

func (m *MockUpsertFetcher) Fetch(ctx context.Context, limit int) ([]events.StreamMessage, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Messages, nil
}
