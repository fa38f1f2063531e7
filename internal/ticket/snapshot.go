package ticket

import (
	"time"

	"github.com/venueops/opssync/pkg/event"
)

// Snapshot is the full, point-in-time consistent state the hub serves on
// GET /snapshot. Consoles load it as their baseline on connect, reconnect
// and on demand.
type Snapshot struct {
	Summary        Summary               `json:"summary"`
	Deliveries     []DeliveryRequest     `json:"deliveries"`
	Emergencies    []EmergencyAlert      `json:"emergencies"`
	RecentActivity []event.ActivityEntry `json:"recent_activity"`
}

// Summary holds the dashboard counters derived from the collections at the
// snapshot instant.
type Summary struct {
	OpenDeliveries        int       `json:"open_deliveries"`
	EmergencyPriorityOpen int       `json:"emergency_priority_open"`
	Delivered             int       `json:"delivered"`
	ActiveAlerts          int       `json:"active_alerts"`
	UnacknowledgedAlerts  int       `json:"unacknowledged_alerts"`
	GeneratedAt           time.Time `json:"generated_at"`
}
