package ticket

import "context"

type DeliveryFilter struct {
	StandID    *StandID
	Status     *string
	Department *string
	Priority   *Priority
	Limit      int
	Offset     int
}

type EmergencyFilter struct {
	StandID    *StandID
	ActiveOnly bool
	Limit      int
	Offset     int
}

// DeliveryRepository persists delivery tickets. UpdateStatusFrom is the
// compare-and-swap write the hub relies on: it only applies when the stored
// status still equals fromStatus, so two racing advances cannot both win.
type DeliveryRepository interface {
	Create(ctx context.Context, d *DeliveryRequest) error
	FindByID(ctx context.Context, id DeliveryID) (*DeliveryRequest, error)
	List(ctx context.Context, filter DeliveryFilter) ([]DeliveryRequest, error)
	UpdateStatusFrom(ctx context.Context, d *DeliveryRequest, fromStatus string) error
}

// EmergencyRepository persists emergency alerts. SetAcknowledged only
// applies while the alert is unacknowledged and SetResolved only while it is
// acknowledged but unresolved; a lost race surfaces as the matching
// taxonomy error.
type EmergencyRepository interface {
	Create(ctx context.Context, a *EmergencyAlert) error
	FindByID(ctx context.Context, id AlertID) (*EmergencyAlert, error)
	List(ctx context.Context, filter EmergencyFilter) ([]EmergencyAlert, error)
	SetAcknowledged(ctx context.Context, a *EmergencyAlert) error
	SetResolved(ctx context.Context, a *EmergencyAlert) error
}
