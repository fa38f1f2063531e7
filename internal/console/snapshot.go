package console

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aquamarinepk/aqm"
	"github.com/google/uuid"

	"github.com/venueops/opssync/internal/ticket"
)

// Scope identifies what a session is allowed to watch: the viewing user,
// optionally pinned to a single stand location.
type Scope struct {
	UserID     uuid.UUID
	LocationID *uuid.UUID
}

// SnapshotAPI pulls the full current state from the hub. Implementations
// must return a snapshot that is fully consistent at one instant.
type SnapshotAPI interface {
	Snapshot(ctx context.Context, scope Scope) (*ticket.Snapshot, error)
}

// HubSnapshotAPI fetches snapshots over the hub's HTTP surface.
type HubSnapshotAPI struct {
	client *aqm.ServiceClient
	logger aqm.Logger
}

func NewHubSnapshotAPI(hubURL string, logger aqm.Logger) *HubSnapshotAPI {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &HubSnapshotAPI{
		client: aqm.NewServiceClient(hubURL),
		logger: logger,
	}
}

// Snapshot fetches the venue-wide snapshot, or the location-scoped one when
// the scope is pinned. Transport failures surface as ErrUnavailable so
// callers can apply their backoff policy.
func (f *HubSnapshotAPI) Snapshot(ctx context.Context, scope Scope) (*ticket.Snapshot, error) {
	var (
		data interface{}
	)

	if scope.LocationID != nil {
		resp, err := f.client.Get(ctx, "snapshot", scope.LocationID.String())
		if err != nil {
			return nil, fmt.Errorf("%w: fetch scoped snapshot: %v", ticket.ErrUnavailable, err)
		}
		data = resp.Data
	} else {
		resp, err := f.client.List(ctx, "snapshot")
		if err != nil {
			return nil, fmt.Errorf("%w: fetch snapshot: %v", ticket.ErrUnavailable, err)
		}
		data = resp.Data
	}

	var snap ticket.Snapshot
	if err := rehydrate(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

func rehydrate(data interface{}, out interface{}) error {
	bytes, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, out)
}
