package console

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aquamarinepk/aqm"

	"github.com/venueops/opssync/internal/ticket"
	"github.com/venueops/opssync/pkg/enums/deliverystatus"
)

// CommandAPI is the mutation surface a console issues against the backing
// store. Implementations never touch the session store: the visible state
// changes only when the resulting upsert arrives through the live channel.
type CommandAPI interface {
	AcknowledgeDelivery(ctx context.Context, id ticket.DeliveryID, actorID ticket.ActorID) error
	AdvanceDeliveryStatus(ctx context.Context, id ticket.DeliveryID, next deliverystatus.Status, actorID ticket.ActorID, etaMinutes *int) error
	AcknowledgeEmergency(ctx context.Context, id ticket.AlertID, actorID ticket.ActorID) error
	ResolveEmergency(ctx context.Context, id ticket.AlertID, actorID ticket.ActorID, notes string) error
}

// Gateway sends commands to the hub over HTTP. Before each round trip it
// replays the transition against the local replica, so obviously illegal
// moves fail fast; the hub re-validates authoritatively either way.
type Gateway struct {
	baseURL string
	httpc   *http.Client
	store   *Store
	trans   ticket.Transitioner
	logger  aqm.Logger
}

func NewGateway(hubURL string, store *Store, trans ticket.Transitioner, logger aqm.Logger) *Gateway {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Gateway{
		baseURL: hubURL,
		httpc:   &http.Client{Timeout: 10 * time.Second},
		store:   store,
		trans:   trans,
		logger:  logger,
	}
}

type advancePayload struct {
	NextStatus string `json:"next_status"`
	ActorID    string `json:"actor_id"`
	ETAMinutes *int   `json:"eta_minutes,omitempty"`
}

type actorPayload struct {
	ActorID string `json:"actor_id"`
}

type resolvePayload struct {
	ActorID string `json:"actor_id"`
	Notes   string `json:"notes,omitempty"`
}

func (g *Gateway) AcknowledgeDelivery(ctx context.Context, id ticket.DeliveryID, actorID ticket.ActorID) error {
	return g.AdvanceDeliveryStatus(ctx, id, deliverystatus.Statuses.Acknowledged, actorID, nil)
}

func (g *Gateway) AdvanceDeliveryStatus(ctx context.Context, id ticket.DeliveryID, next deliverystatus.Status, actorID ticket.ActorID, etaMinutes *int) error {
	if d, ok := g.store.Delivery(id); ok {
		if _, err := g.trans.AdvanceDelivery(d, next, etaMinutes, time.Now().UTC()); err != nil {
			return err
		}
	}

	path := fmt.Sprintf("/deliveries/%s/advance", id)
	return g.do(ctx, http.MethodPatch, path, advancePayload{
		NextStatus: next.Code(),
		ActorID:    actorID.String(),
		ETAMinutes: etaMinutes,
	})
}

func (g *Gateway) AcknowledgeEmergency(ctx context.Context, id ticket.AlertID, actorID ticket.ActorID) error {
	if a, ok := g.store.Emergency(id); ok {
		if _, err := g.trans.AcknowledgeEmergency(a, actorID, time.Now().UTC()); err != nil {
			return err
		}
	}

	path := fmt.Sprintf("/emergencies/%s/acknowledge", id)
	return g.do(ctx, http.MethodPatch, path, actorPayload{ActorID: actorID.String()})
}

func (g *Gateway) ResolveEmergency(ctx context.Context, id ticket.AlertID, actorID ticket.ActorID, notes string) error {
	if a, ok := g.store.Emergency(id); ok {
		if _, err := g.trans.ResolveEmergency(a, actorID, notes, time.Now().UTC()); err != nil {
			return err
		}
	}

	path := fmt.Sprintf("/emergencies/%s/resolve", id)
	return g.do(ctx, http.MethodPatch, path, resolvePayload{ActorID: actorID.String(), Notes: notes})
}

func (g *Gateway) do(ctx context.Context, method, path string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build command request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ticket.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return decodeCommandError(resp)
}

// decodeCommandError maps the hub's error envelope back onto the taxonomy.
// The envelope carries the wire code in its error field; if the body is
// unusable, the HTTP status alone decides.
func decodeCommandError(resp *http.Response) error {
	var envelope struct {
		Error string `json:"error"`
	}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(data, &envelope) == nil {
		if err := ticket.ErrFromCode(envelope.Error); err != nil {
			return err
		}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ticket.ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ticket.ErrUnauthorized
	case resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusUnprocessableEntity:
		return ticket.ErrInvalidTransition
	case resp.StatusCode >= 500:
		return ticket.ErrUnavailable
	default:
		return fmt.Errorf("hub rejected command: status %d", resp.StatusCode)
	}
}

var _ CommandAPI = (*Gateway)(nil)
