package console

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/venueops/opssync/internal/ticket"
	"github.com/venueops/opssync/pkg/enums/deliverystatus"
)

// fakeConn is an in-process push connection. Tests publish envelopes into
// it and drop it to simulate a network failure.
type fakeConn struct {
	mu        sync.Mutex
	handlers  map[string][]func([]byte)
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		handlers: make(map[string][]func([]byte)),
		closed:   make(chan struct{}),
	}
}

func (c *fakeConn) Subscribe(subject string, handler func(data []byte)) (Unsubscriber, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[subject] = append(c.handlers[subject], handler)
	return fakeSub{}, nil
}

func (c *fakeConn) Closed() <-chan struct{} {
	return c.closed
}

func (c *fakeConn) Close() {
	c.Drop()
}

// Drop severs the connection as a network failure would.
func (c *fakeConn) Drop() {
	c.closeOnce.Do(func() { close(c.closed) })
}

// Publish delivers data to every handler whose subscription pattern
// matches the subject (exact match or trailing ".>" wildcard).
func (c *fakeConn) Publish(subject string, data []byte) {
	c.mu.Lock()
	var matched []func([]byte)
	for pattern, handlers := range c.handlers {
		if subjectMatches(pattern, subject) {
			matched = append(matched, handlers...)
		}
	}
	c.mu.Unlock()

	for _, h := range matched {
		h(data)
	}
}

func subjectMatches(pattern, subject string) bool {
	if pattern == subject {
		return true
	}
	if strings.HasSuffix(pattern, ".>") {
		return strings.HasPrefix(subject, strings.TrimSuffix(pattern, ">"))
	}
	return false
}

type fakeSub struct{}

func (fakeSub) Unsubscribe() error { return nil }

// fakeDialer hands out fakeConns and records every dial.
type fakeDialer struct {
	mu       sync.Mutex
	conns    []*fakeConn
	dialErrs []error // consumed front-to-back before dials start succeeding
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{}
}

func (d *fakeDialer) Dial(ctx context.Context) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.dialErrs) > 0 {
		err := d.dialErrs[0]
		d.dialErrs = d.dialErrs[1:]
		return nil, err
	}
	conn := newFakeConn()
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) DialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func (d *fakeDialer) LastConn() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

// fakeSnapshotAPI serves a mutable snapshot fixture and counts fetches.
// onFetch, when set, runs while a fetch is in flight, so tests can race
// pushes against the baseline load.
type fakeSnapshotAPI struct {
	mu      sync.Mutex
	snap    *ticket.Snapshot
	err     error
	calls   int
	onFetch func()
}

func newFakeSnapshotAPI() *fakeSnapshotAPI {
	return &fakeSnapshotAPI{snap: &ticket.Snapshot{}}
}

func (f *fakeSnapshotAPI) Snapshot(ctx context.Context, scope Scope) (*ticket.Snapshot, error) {
	f.mu.Lock()
	f.calls++
	err := f.err
	snap := *f.snap
	hook := f.onFetch
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (f *fakeSnapshotAPI) SetSnapshot(snap *ticket.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap = snap
}

func (f *fakeSnapshotAPI) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeCommandAPI scripts per-call results and records invocations.
type fakeCommandAPI struct {
	mu      sync.Mutex
	results []error // consumed front-to-back; empty means success
	calls   int
}

func (f *fakeCommandAPI) next() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.results) == 0 {
		return nil
	}
	err := f.results[0]
	f.results = f.results[1:]
	return err
}

func (f *fakeCommandAPI) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeCommandAPI) AcknowledgeDelivery(ctx context.Context, id ticket.DeliveryID, actorID ticket.ActorID) error {
	return f.next()
}

func (f *fakeCommandAPI) AdvanceDeliveryStatus(ctx context.Context, id ticket.DeliveryID, next deliverystatus.Status, actorID ticket.ActorID, etaMinutes *int) error {
	return f.next()
}

func (f *fakeCommandAPI) AcknowledgeEmergency(ctx context.Context, id ticket.AlertID, actorID ticket.ActorID) error {
	return f.next()
}

func (f *fakeCommandAPI) ResolveEmergency(ctx context.Context, id ticket.AlertID, actorID ticket.ActorID, notes string) error {
	return f.next()
}

var errDialRefused = errors.New("connection refused")

// waitUntil polls cond until it holds or the deadline passes.
func waitUntil(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}
