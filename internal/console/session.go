package console

import (
	"context"
	"sync"

	"github.com/aquamarinepk/aqm"
	"github.com/google/uuid"
)

// Session ties one console's store, snapshot fetcher, live channel and
// command gateway together. A session holds at most one live channel at a
// time; opening a new one supersedes and closes the prior one.
type Session struct {
	id     uuid.UUID
	scope  Scope
	store  *Store
	api    SnapshotAPI
	dialer Dialer
	cmds   CommandAPI
	logger aqm.Logger

	mu      sync.Mutex
	channel *Channel
}

func NewSession(scope Scope, store *Store, api SnapshotAPI, dialer Dialer, cmds CommandAPI, logger aqm.Logger) *Session {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	id := uuid.New()
	return &Session{
		id:     id,
		scope:  scope,
		store:  store,
		api:    api,
		dialer: dialer,
		cmds:   cmds,
		logger: logger.With("session_id", id.String()),
	}
}

func (s *Session) ID() uuid.UUID {
	return s.id
}

func (s *Session) Store() *Store {
	return s.store
}

func (s *Session) Commands() CommandAPI {
	return s.cmds
}

// Start opens the live channel. The channel's own loop fetches the initial
// snapshot before applying anything, so callers get a consistent baseline
// without a separate priming step.
func (s *Session) Start(ctx context.Context) error {
	return s.OpenChannel(ctx)
}

// OpenChannel establishes the session's push subscription, closing any
// prior one first (one channel per session).
func (s *Session) OpenChannel(ctx context.Context) error {
	s.mu.Lock()
	prior := s.channel
	s.mu.Unlock()

	if prior != nil {
		if err := prior.Stop(ctx); err != nil {
			s.logger.Info("superseded channel did not stop cleanly", "error", err)
		}
	}

	ch := NewChannel(s.dialer, s.store, s.api, s.scope, s.logger)
	if err := ch.Start(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.channel = ch
	s.mu.Unlock()
	return nil
}

// Refresh pulls a fresh snapshot on demand and swaps it in, independent of
// the channel's own reconnect resync.
func (s *Session) Refresh(ctx context.Context) error {
	snap, err := s.api.Snapshot(ctx, s.scope)
	if err != nil {
		return err
	}
	s.store.LoadSnapshot(snap)
	return nil
}

// Stop tears down the live channel. The backing store is unaffected by a
// subscriber disappearing; there is nothing else to release.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	ch := s.channel
	s.channel = nil
	s.mu.Unlock()

	if ch == nil {
		return nil
	}
	return ch.Stop(ctx)
}
