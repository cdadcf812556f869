package chatstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is the in-process volatile tier. It holds every session that
// was minted during a remote outage, plus single messages re-routed here
// when a remote write fails. Contents do not survive a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (s *MemoryStore) CreateSession(ctx context.Context) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = &Session{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
		Status:    StatusActive,
	}
	return id, nil
}

func (s *MemoryStore) session(id string) *Session {
	sess, ok := s.sessions[id]
	if !ok {
		// A remote-tagged id can land here mid-conversation on a soft
		// fallback; adopt it without a create step.
		now := time.Now().UTC()
		sess = &Session{ID: id, CreatedAt: now, UpdatedAt: now, Status: StatusActive}
		s.sessions[id] = sess
	}
	return sess
}

func (s *MemoryStore) Append(ctx context.Context, id string, msg Message) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.session(id)
	sess.Messages = append(sess.Messages, msg)
	sess.UpdatedAt = msg.Timestamp
	return nil
}

func (s *MemoryStore) ReadHistory(ctx context.Context, id string, limit int) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return []Message{}, nil
	}
	msgs := sess.Messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *MemoryStore) SaveContact(ctx context.Context, id string, c Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.session(id)
	sess.Contact = &c
	sess.UpdatedAt = time.Now().UTC()
	return nil
}

var _ Tier = (*MemoryStore)(nil)
