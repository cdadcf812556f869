package chatstore

import (
	"context"
	"errors"

	logx "github.com/bizowl/support-assistant/pkg/logger"
)

// FallbackStore routes operations across the remote and in-process tiers.
//
// Two fallback levels exist:
//
//   - Hard, session-level: an id minted while the remote tier was down is
//     Local-tagged and never attempted against the remote tier again for
//     the rest of the process run.
//   - Soft, per-call: a remote-tagged id whose single write or read fails
//     re-routes just that operation to the in-process tier, keeping the id
//     untouched.
//
// A soft-fallback session can therefore hold messages in both tiers; a
// later remote read returns only the remotely persisted window. That
// shorter context is a bounded consistency weakness accepted by design,
// logged rather than papered over.
type FallbackStore struct {
	remote Tier
	local  Tier
}

func NewFallbackStore(remote, local Tier) *FallbackStore {
	return &FallbackStore{remote: remote, local: local}
}

// CreateSession establishes a session in the remote tier. The one retry in
// the whole system lives here: a deadline-exceeded failure is attempted a
// second time before a Local-tagged id is minted. Any other failure class
// degrades immediately.
func (s *FallbackStore) CreateSession(ctx context.Context) (SessionID, error) {
	v, err := s.remote.CreateSession(ctx)
	if err == nil {
		return RemoteID(v), nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		logx.Warn().Err(err).Msg("deadline exceeded creating chat session, retrying once")
		if v, err = s.remote.CreateSession(ctx); err == nil {
			return RemoteID(v), nil
		}
	}

	logx.Error().Err(err).Msg("remote session creation failed, minting fallback session")
	v, err = s.local.CreateSession(ctx)
	if err != nil {
		return SessionID{}, err
	}
	return LocalID(v), nil
}

// run applies the shared fallback policy to one operation: local ids go
// straight to the in-process tier, remote ids try the remote tier and drop
// to memory on failure.
func (s *FallbackStore) run(ctx context.Context, id SessionID, op string, remote, local func(context.Context, Tier) error) error {
	if id.Backend() == Local {
		return local(ctx, s.local)
	}
	if err := remote(ctx, s.remote); err != nil {
		logx.Warn().Err(err).Str("session_id", id.String()).Str("op", op).
			Msg("remote chat store failed, using memory fallback")
		return local(ctx, s.local)
	}
	return nil
}

func (s *FallbackStore) Append(ctx context.Context, id SessionID, msg Message) error {
	return s.run(ctx, id, "append",
		func(ctx context.Context, t Tier) error { return t.Append(ctx, id.value, msg) },
		func(ctx context.Context, t Tier) error { return t.Append(ctx, id.value, msg) },
	)
}

func (s *FallbackStore) ReadHistory(ctx context.Context, id SessionID, limit int) ([]Message, error) {
	var msgs []Message
	err := s.run(ctx, id, "read_history",
		func(ctx context.Context, t Tier) error {
			var err error
			msgs, err = t.ReadHistory(ctx, id.value, limit)
			return err
		},
		func(ctx context.Context, t Tier) error {
			var err error
			msgs, err = t.ReadHistory(ctx, id.value, limit)
			return err
		},
	)
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (s *FallbackStore) SaveContact(ctx context.Context, id SessionID, c Contact) error {
	return s.run(ctx, id, "save_contact",
		func(ctx context.Context, t Tier) error { return t.SaveContact(ctx, id.value, c) },
		func(ctx context.Context, t Tier) error { return t.SaveContact(ctx, id.value, c) },
	)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// RemoteHealthy reports whether the remote tier answers a ping. Always
// false when the remote tier has no ping support.
func (s *FallbackStore) RemoteHealthy(ctx context.Context) bool {
	p, ok := s.remote.(pinger)
	if !ok {
		return false
	}
	return p.Ping(ctx) == nil
}

var _ Store = (*FallbackStore)(nil)
