package event

import "time"

// ActivityEntry is one line of the recent-activity feed included in
// snapshots: which entity moved, where it landed, and who moved it.
type ActivityEntry struct {
	Kind     string    `json:"kind"`
	EntityID string    `json:"entity_id"`
	Status   string    `json:"status"`
	ActorID  string    `json:"actor_id,omitempty"`
	At       time.Time `json:"at"`
}
