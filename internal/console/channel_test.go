package console

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/venueops/opssync/internal/ticket"
	"github.com/venueops/opssync/pkg/event"
)

func publishDelivery(t *testing.T, conn *fakeConn, d *ticket.DeliveryRequest) {
	t.Helper()
	env, err := ticket.EncodeDeliveryUpsert(d, d.UpdatedAt)
	if err != nil {
		t.Fatalf("encode upsert: %v", err)
	}
	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	conn.Publish(event.DeliverySubject(d.StandID.String()), data)
}

func startTestChannel(t *testing.T, dialer Dialer, store *Store, api SnapshotAPI) *Channel {
	t.Helper()
	ch := NewChannel(dialer, store, api, Scope{UserID: uuid.New()}, nil)
	ch.baseBackoff = 2 * time.Millisecond
	ch.maxBackoff = 10 * time.Millisecond

	ctx := context.Background()
	if err := ch.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		ch.Stop(stopCtx)
	})
	return ch
}

func TestChannelAppliesPushedUpserts(t *testing.T) {
	store := NewStore(nil)
	api := newFakeSnapshotAPI()
	dialer := newFakeDialer()

	startTestChannel(t, dialer, store, api)

	if !waitUntil(time.Second, func() bool { return dialer.DialCount() == 1 }) {
		t.Fatal("channel never connected")
	}

	d := deliveryAt(uuid.New(), "requested", baseTime())
	publishDelivery(t, dialer.LastConn(), d)

	if !waitUntil(time.Second, func() bool {
		_, ok := store.Delivery(d.ID)
		return ok
	}) {
		t.Fatal("pushed upsert never reached the store")
	}
}

func TestChannelDropsMalformedAndKeepsRunning(t *testing.T) {
	store := NewStore(nil)
	api := newFakeSnapshotAPI()
	dialer := newFakeDialer()

	startTestChannel(t, dialer, store, api)
	if !waitUntil(time.Second, func() bool { return dialer.DialCount() == 1 }) {
		t.Fatal("channel never connected")
	}
	conn := dialer.LastConn()

	conn.Publish(event.EmergenciesTopic, []byte("not json"))
	conn.Publish(event.EmergenciesTopic, []byte(`{"kind":"table","entity":{}}`))
	conn.Publish(event.DeliveriesTopic+".x", []byte(`{"kind":"delivery","entity":{"id":0}}`))

	d := deliveryAt(uuid.New(), "requested", baseTime())
	publishDelivery(t, conn, d)

	if !waitUntil(time.Second, func() bool {
		_, ok := store.Delivery(d.ID)
		return ok
	}) {
		t.Fatal("valid upsert after malformed ones was not applied")
	}
	if dialer.DialCount() != 1 {
		t.Errorf("malformed messages forced a reconnect: dials = %d", dialer.DialCount())
	}
}

func TestChannelReconnectResync(t *testing.T) {
	store := NewStore(nil)
	api := newFakeSnapshotAPI()
	dialer := newFakeDialer()

	id := uuid.New()
	api.SetSnapshot(&ticket.Snapshot{
		Deliveries: []ticket.DeliveryRequest{*deliveryAt(id, "requested", baseTime())},
	})

	startTestChannel(t, dialer, store, api)

	if !waitUntil(time.Second, func() bool {
		d, ok := store.Delivery(id)
		return ok && d.Status == "requested"
	}) {
		t.Fatal("initial snapshot never loaded")
	}

	// Two transitions happen while the wire is down: the upserts are lost
	// in flight, but the hub snapshot has moved on.
	api.SetSnapshot(&ticket.Snapshot{
		Deliveries: []ticket.DeliveryRequest{*deliveryAt(id, "in-progress", baseTime().Add(4*time.Minute))},
	})
	dialer.LastConn().Drop()

	if !waitUntil(time.Second, func() bool { return dialer.DialCount() == 2 }) {
		t.Fatal("channel never reconnected")
	}
	if !waitUntil(time.Second, func() bool {
		d, _ := store.Delivery(id)
		return d != nil && d.Status == "in-progress"
	}) {
		t.Fatal("reconnect did not restore the always-connected state")
	}
	if api.Calls() < 2 {
		t.Errorf("snapshot fetched %d times, want one per connect", api.Calls())
	}

	// The stream stays additive after resync.
	d := deliveryAt(id, "on-the-way", baseTime().Add(6*time.Minute))
	publishDelivery(t, dialer.LastConn(), d)
	if !waitUntil(time.Second, func() bool {
		got, _ := store.Delivery(id)
		return got != nil && got.Status == "on-the-way"
	}) {
		t.Fatal("upsert after resync was not applied")
	}
}

func TestChannelHoldsUpsertsArrivingDuringSnapshotFetch(t *testing.T) {
	store := NewStore(nil)
	api := newFakeSnapshotAPI()
	dialer := newFakeDialer()

	// This upsert lands while the snapshot fetch is still in flight. It is
	// not in the baseline, so losing it would leave the store stale until
	// the next reconnect.
	d := deliveryAt(uuid.New(), "acknowledged", baseTime().Add(2*time.Minute))
	env, err := ticket.EncodeDeliveryUpsert(d, d.UpdatedAt)
	if err != nil {
		t.Fatalf("encode upsert: %v", err)
	}
	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}

	api.mu.Lock()
	api.onFetch = func() {
		if conn := dialer.LastConn(); conn != nil {
			conn.Publish(event.DeliverySubject(d.StandID.String()), data)
		}
	}
	api.mu.Unlock()

	startTestChannel(t, dialer, store, api)

	if !waitUntil(time.Second, func() bool {
		got, ok := store.Delivery(d.ID)
		return ok && got.Status == "acknowledged"
	}) {
		t.Fatal("upsert published during the snapshot fetch was lost")
	}
	if dialer.DialCount() != 1 {
		t.Errorf("recovering the in-flight upsert took %d dials, want 1", dialer.DialCount())
	}
}

func TestChannelRetriesDialWithBackoff(t *testing.T) {
	store := NewStore(nil)
	api := newFakeSnapshotAPI()
	dialer := newFakeDialer()
	dialer.dialErrs = []error{errDialRefused, errDialRefused}

	startTestChannel(t, dialer, store, api)

	if !waitUntil(time.Second, func() bool { return dialer.DialCount() == 1 }) {
		t.Fatal("channel never connected after dial failures")
	}
}

func TestChannelSnapshotBeforeResumedApplies(t *testing.T) {
	store := NewStore(nil)
	api := newFakeSnapshotAPI()
	api.err = ticket.ErrUnavailable
	dialer := newFakeDialer()

	startTestChannel(t, dialer, store, api)

	// Snapshot keeps failing: the channel must keep cycling rather than
	// apply pushes to an empty baseline.
	if !waitUntil(time.Second, func() bool { return api.Calls() >= 2 }) {
		t.Fatal("channel did not retry the snapshot")
	}

	id := uuid.New()
	api.mu.Lock()
	api.err = nil
	api.snap = &ticket.Snapshot{
		Deliveries: []ticket.DeliveryRequest{*deliveryAt(id, "requested", baseTime())},
	}
	api.mu.Unlock()

	if !waitUntil(time.Second, func() bool {
		_, ok := store.Delivery(id)
		return ok
	}) {
		t.Fatal("baseline never loaded once the snapshot recovered")
	}
}
