package console

import (
	"sync"

	"github.com/aquamarinepk/aqm"
	"github.com/google/uuid"

	"github.com/venueops/opssync/internal/ticket"
	"github.com/venueops/opssync/pkg/event"
)

// Store is the per-session authoritative replica of the two ticket
// collections. Snapshots replace the whole baseline atomically; pushed
// upserts merge in through version comparison, so applying the same set of
// upserts in any order and any multiplicity converges to the same state.
//
// The store has no write authority of its own: every mutation round-trips
// through the gateway and comes back as a pushed upsert before it is
// visible here.
type Store struct {
	mu          sync.RWMutex
	deliveries  map[uuid.UUID]*ticket.DeliveryRequest
	emergencies map[uuid.UUID]*ticket.EmergencyAlert
	summary     ticket.Summary
	activity    []event.ActivityEntry

	subMu       sync.Mutex
	subscribers map[int]func()
	nextSubID   int

	logger aqm.Logger
}

// NewStore creates an empty session store. Multiple independent stores per
// process are fine; there is no package-level state.
func NewStore(logger aqm.Logger) *Store {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Store{
		deliveries:  make(map[uuid.UUID]*ticket.DeliveryRequest),
		emergencies: make(map[uuid.UUID]*ticket.EmergencyAlert),
		subscribers: make(map[int]func()),
		logger:      logger,
	}
}

// LoadSnapshot replaces the entire baseline in one swap. A snapshot is
// self-consistent at a point in time; merging it cell-by-cell against the
// current maps would resurrect already-superseded entries.
func (s *Store) LoadSnapshot(snap *ticket.Snapshot) {
	if snap == nil {
		return
	}

	deliveries := make(map[uuid.UUID]*ticket.DeliveryRequest, len(snap.Deliveries))
	for i := range snap.Deliveries {
		d := snap.Deliveries[i].Clone()
		deliveries[d.ID] = d
	}
	emergencies := make(map[uuid.UUID]*ticket.EmergencyAlert, len(snap.Emergencies))
	for i := range snap.Emergencies {
		a := snap.Emergencies[i].Clone()
		emergencies[a.ID] = a
	}

	s.mu.Lock()
	s.deliveries = deliveries
	s.emergencies = emergencies
	s.summary = snap.Summary
	s.activity = append([]event.ActivityEntry(nil), snap.RecentActivity...)
	s.mu.Unlock()

	s.logger.Debug("snapshot loaded", "deliveries", len(deliveries), "emergencies", len(emergencies))
	s.notify()
}

// ApplyDelivery merges one pushed delivery upsert. Stale and duplicate
// versions are dropped silently; the return value reports whether the
// entity actually changed.
func (s *Store) ApplyDelivery(d *ticket.DeliveryRequest) bool {
	if d == nil {
		return false
	}

	s.mu.Lock()
	current, exists := s.deliveries[d.ID]
	if exists && !d.Version().After(current.Version()) {
		s.mu.Unlock()
		s.logger.Debug("dropping stale delivery upsert", "delivery_id", d.ID, "version", d.Version())
		return false
	}
	s.deliveries[d.ID] = d.Clone()
	s.mu.Unlock()

	s.notify()
	return true
}

// ApplyEmergency merges one pushed emergency upsert under the same
// version-comparison contract as ApplyDelivery.
func (s *Store) ApplyEmergency(a *ticket.EmergencyAlert) bool {
	if a == nil {
		return false
	}

	s.mu.Lock()
	current, exists := s.emergencies[a.ID]
	if exists && !a.Version().After(current.Version()) {
		s.mu.Unlock()
		s.logger.Debug("dropping stale emergency upsert", "alert_id", a.ID, "version", a.Version())
		return false
	}
	s.emergencies[a.ID] = a.Clone()
	s.mu.Unlock()

	s.notify()
	return true
}

// Delivery returns a copy of the stored request, if present.
func (s *Store) Delivery(id ticket.DeliveryID) (*ticket.DeliveryRequest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.deliveries[id]
	return d.Clone(), ok
}

// Emergency returns a copy of the stored alert, if present.
func (s *Store) Emergency(id ticket.AlertID) (*ticket.EmergencyAlert, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.emergencies[id]
	return a.Clone(), ok
}

// Summary returns the counters from the last loaded snapshot.
func (s *Store) Summary() ticket.Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summary
}

// RecentActivity returns the activity feed from the last loaded snapshot.
func (s *Store) RecentActivity() []event.ActivityEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]event.ActivityEntry(nil), s.activity...)
}

// Subscribe registers a change callback invoked after every applied
// (non-dropped) mutation and after every snapshot load. It returns an
// unsubscribe function. Callbacks run outside the store lock.
func (s *Store) Subscribe(fn func()) func() {
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subscribers, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify() {
	s.subMu.Lock()
	fns := make([]func(), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
