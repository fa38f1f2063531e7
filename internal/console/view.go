package console

import (
	"sort"

	"github.com/venueops/opssync/internal/ticket"
)

// View is the render-ready partition of the store: active work first,
// terminal history after, each bucket already sorted for display. It is
// derived on every call and never mutated in place.
type View struct {
	ActiveDeliveries    []ticket.DeliveryRequest `json:"active_deliveries"`
	CompletedDeliveries []ticket.DeliveryRequest `json:"completed_deliveries"`
	ActiveAlerts        []ticket.EmergencyAlert  `json:"active_alerts"`
	ResolvedAlerts      []ticket.EmergencyAlert  `json:"resolved_alerts"`
}

// View builds the partitioned read view. Emergency-priority requests sort
// ahead of normal ones regardless of recency (triage weight); within the
// same priority, most recently updated first. Alerts: unacknowledged ahead
// of acknowledged, then newest version first.
func (s *Store) View() *View {
	s.mu.RLock()
	v := &View{
		ActiveDeliveries:    make([]ticket.DeliveryRequest, 0, len(s.deliveries)),
		CompletedDeliveries: make([]ticket.DeliveryRequest, 0),
		ActiveAlerts:        make([]ticket.EmergencyAlert, 0, len(s.emergencies)),
		ResolvedAlerts:      make([]ticket.EmergencyAlert, 0),
	}
	for _, d := range s.deliveries {
		if d.Terminal() {
			v.CompletedDeliveries = append(v.CompletedDeliveries, *d.Clone())
		} else {
			v.ActiveDeliveries = append(v.ActiveDeliveries, *d.Clone())
		}
	}
	for _, a := range s.emergencies {
		if a.Resolved() {
			v.ResolvedAlerts = append(v.ResolvedAlerts, *a.Clone())
		} else {
			v.ActiveAlerts = append(v.ActiveAlerts, *a.Clone())
		}
	}
	s.mu.RUnlock()

	sortDeliveries(v.ActiveDeliveries)
	sortDeliveries(v.CompletedDeliveries)
	sortAlerts(v.ActiveAlerts)
	sortAlerts(v.ResolvedAlerts)

	return v
}

func sortDeliveries(ds []ticket.DeliveryRequest) {
	sort.SliceStable(ds, func(i, j int) bool {
		ei := ds[i].Priority == ticket.PriorityEmergency
		ej := ds[j].Priority == ticket.PriorityEmergency
		if ei != ej {
			return ei
		}
		return ds[i].UpdatedAt.After(ds[j].UpdatedAt)
	})
}

func sortAlerts(as []ticket.EmergencyAlert) {
	sort.SliceStable(as, func(i, j int) bool {
		ai := as[i].Acknowledged()
		aj := as[j].Acknowledged()
		if ai != aj {
			return !ai
		}
		return as[i].Version().After(as[j].Version())
	})
}
