package console

import (
	"context"
	"errors"
	"time"

	"github.com/aquamarinepk/aqm"

	"github.com/venueops/opssync/internal/ticket"
	"github.com/venueops/opssync/pkg/enums/deliverystatus"
)

// RetryConfig bounds the retry behavior of RetryingGateway.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   250 * time.Millisecond,
		MaxDelay:    2 * time.Second,
	}
}

// RetryingGateway decorates a CommandAPI with backoff retry for
// ErrUnavailable only. Deterministic rejections (invalid transition, ack
// conflicts, not found) are never retried: repeating them cannot change the
// outcome.
type RetryingGateway struct {
	next   CommandAPI
	cfg    RetryConfig
	logger aqm.Logger
}

func NewRetryingGateway(next CommandAPI, cfg RetryConfig, logger aqm.Logger) *RetryingGateway {
	if next == nil {
		return nil
	}
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	if cfg.MaxAttempts <= 0 {
		cfg = DefaultRetryConfig()
	}
	return &RetryingGateway{next: next, cfg: cfg, logger: logger}
}

func (g *RetryingGateway) AcknowledgeDelivery(ctx context.Context, id ticket.DeliveryID, actorID ticket.ActorID) error {
	return g.retry(ctx, "AcknowledgeDelivery", func() error {
		return g.next.AcknowledgeDelivery(ctx, id, actorID)
	})
}

func (g *RetryingGateway) AdvanceDeliveryStatus(ctx context.Context, id ticket.DeliveryID, next deliverystatus.Status, actorID ticket.ActorID, etaMinutes *int) error {
	return g.retry(ctx, "AdvanceDeliveryStatus", func() error {
		return g.next.AdvanceDeliveryStatus(ctx, id, next, actorID, etaMinutes)
	})
}

func (g *RetryingGateway) AcknowledgeEmergency(ctx context.Context, id ticket.AlertID, actorID ticket.ActorID) error {
	return g.retry(ctx, "AcknowledgeEmergency", func() error {
		return g.next.AcknowledgeEmergency(ctx, id, actorID)
	})
}

func (g *RetryingGateway) ResolveEmergency(ctx context.Context, id ticket.AlertID, actorID ticket.ActorID, notes string) error {
	return g.retry(ctx, "ResolveEmergency", func() error {
		return g.next.ResolveEmergency(ctx, id, actorID, notes)
	})
}

func (g *RetryingGateway) retry(ctx context.Context, method string, call func() error) error {
	var lastErr error
	for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
		err := call()
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil || attempt == g.cfg.MaxAttempts || !errors.Is(err, ticket.ErrUnavailable) {
			break
		}

		delay := backoff(g.cfg.BaseDelay, g.cfg.MaxDelay, attempt)
		g.logger.Info("command gateway retry", "method", method, "attempt", attempt, "delay", delay, "error", err)
		if !sleepWithContext(ctx, delay) {
			break
		}
	}
	return lastErr
}

func backoff(base, max time.Duration, attempt int) time.Duration {
	d := base << (attempt - 1)
	if d > max {
		return max
	}
	return d
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

var _ CommandAPI = (*RetryingGateway)(nil)
