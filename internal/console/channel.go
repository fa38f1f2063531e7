package console

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/aquamarinepk/aqm"

	"github.com/venueops/opssync/internal/ticket"
	"github.com/venueops/opssync/pkg/event"
)

// Unsubscriber tears down one subject subscription.
type Unsubscriber interface {
	Unsubscribe() error
}

// Conn is the slice of a push connection the channel needs: subscribe to a
// subject, learn when the connection dies, close it.
type Conn interface {
	Subscribe(subject string, handler func(data []byte)) (Unsubscriber, error)
	Closed() <-chan struct{}
	Close()
}

// Dialer opens push connections. The NATS implementation lives in nats.go;
// tests inject their own.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// Channel owns one persistent push subscription for a session and feeds
// every decodable upsert into the store. On any disconnect it retries with
// capped exponential backoff and reloads a fresh snapshot before resuming
// incremental application: messages in flight during the outage are
// presumed lost, and only a snapshot can close that gap. On each connect
// the subscription opens before the snapshot fetch, with arrivals held
// until the baseline is in, so nothing published during the fetch is lost.
type Channel struct {
	dialer Dialer
	store  *Store
	api    SnapshotAPI
	scope  Scope
	logger aqm.Logger

	baseBackoff time.Duration
	maxBackoff  time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewChannel(dialer Dialer, store *Store, api SnapshotAPI, scope Scope, logger aqm.Logger) *Channel {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Channel{
		dialer:      dialer,
		store:       store,
		api:         api,
		scope:       scope,
		logger:      logger,
		baseBackoff: 1 * time.Second,
		maxBackoff:  30 * time.Second,
	}
}

// Start launches the receive loop in the background. Starting an already
// started channel is an error on the caller's side; Session enforces the
// one-channel-per-session rule.
func (c *Channel) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	go c.run(runCtx)
	return nil
}

// Stop tears the channel down and waits for the receive loop to exit.
func (c *Channel) Stop(ctx context.Context) error {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.cancel = nil
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Channel) run(ctx context.Context) {
	defer close(c.done)

	backoff := c.baseBackoff
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := c.dialer.Dial(ctx)
		if err != nil {
			c.logger.Error("live channel dial failed", "error", err, "retry_in", backoff)
			if !c.sleep(ctx, backoff) {
				return
			}
			backoff = c.nextBackoff(backoff)
			continue
		}

		// Subscribe before fetching the baseline so nothing published
		// during the fetch slips between snapshot and stream. Arrivals are
		// held until the snapshot is loaded, then replayed through the
		// same versioned merge.
		buf := newPushBuffer()
		subs, err := c.subscribeAll(conn, func(data []byte) {
			if buf.hold(data) {
				return
			}
			c.handleMessage(data)
		})
		if err != nil {
			c.logger.Error("subscribe failed", "error", err, "retry_in", backoff)
			conn.Close()
			if !c.sleep(ctx, backoff) {
				return
			}
			backoff = c.nextBackoff(backoff)
			continue
		}

		snap, err := c.api.Snapshot(ctx, c.scope)
		if err != nil {
			c.logger.Error("snapshot fetch failed", "error", err, "retry_in", backoff)
			for _, sub := range subs {
				sub.Unsubscribe()
			}
			conn.Close()
			if !c.sleep(ctx, backoff) {
				return
			}
			backoff = c.nextBackoff(backoff)
			continue
		}
		c.store.LoadSnapshot(snap)
		for _, data := range buf.release() {
			c.handleMessage(data)
		}

		c.logger.Info("live channel connected", "user_id", c.scope.UserID)
		backoff = c.baseBackoff

		select {
		case <-ctx.Done():
			for _, sub := range subs {
				sub.Unsubscribe()
			}
			conn.Close()
			return
		case <-conn.Closed():
			c.logger.Info("live channel disconnected, reconnecting")
		}
	}
}

func (c *Channel) subscribeAll(conn Conn, handler func(data []byte)) ([]Unsubscriber, error) {
	deliverySubject := event.DeliveriesWildcard()
	if c.scope.LocationID != nil {
		deliverySubject = event.DeliverySubject(c.scope.LocationID.String())
	}

	var subs []Unsubscriber
	for _, subject := range []string{deliverySubject, event.EmergenciesTopic} {
		sub, err := conn.Subscribe(subject, handler)
		if err != nil {
			for _, s := range subs {
				s.Unsubscribe()
			}
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// handleMessage decodes one inbound push message and merges it. Malformed
// payloads are logged and dropped; they are never fatal to the connection.
func (c *Channel) handleMessage(data []byte) {
	var env event.UpsertEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.logger.Info("dropping undecodable push message", "error", err)
		return
	}

	d, a, err := ticket.DecodeUpsert(&env)
	if err != nil {
		c.logger.Info("dropping malformed upsert", "kind", env.Kind, "error", err)
		return
	}

	if d != nil {
		c.store.ApplyDelivery(d)
		return
	}
	c.store.ApplyEmergency(a)
}

// pushBuffer holds messages that arrive between subscribing and loading the
// baseline snapshot. Releasing flushes them in arrival order; the store's
// version comparison makes the replay safe against duplicates.
type pushBuffer struct {
	mu      sync.Mutex
	holding bool
	pending [][]byte
}

func newPushBuffer() *pushBuffer {
	return &pushBuffer{holding: true}
}

func (b *pushBuffer) hold(data []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.holding {
		return false
	}
	b.pending = append(b.pending, data)
	return true
}

func (b *pushBuffer) release() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.holding = false
	pending := b.pending
	b.pending = nil
	return pending
}

func (c *Channel) nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > c.maxBackoff {
		return c.maxBackoff
	}
	return next
}

func (c *Channel) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
