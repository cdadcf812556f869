// Package chatstore persists chat sessions and their messages. The primary
// tier is a remote Redis store; an in-process volatile tier covers remote
// outages so a conversation never loses continuity.
package chatstore

import (
	"context"
	"strings"
	"time"
)

// Sender identifies who produced a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Status is the lifecycle state of a session. Sessions are never closed or
// deleted here; expiry is handled externally (Redis TTL).
type Status string

const StatusActive Status = "active"

// Message is one chat turn half. Messages are append-only and ordered by
// timestamp within a session.
type Message struct {
	Content   string    `json:"content"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// Contact holds visitor contact details submitted for a callback request.
type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Issue string `json:"issue,omitempty"`
}

// Session is the persisted record shape.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Status    Status    `json:"status"`
	Contact   *Contact  `json:"contact_info,omitempty"`
	Messages  []Message `json:"messages"`
}

// Backend tags which tier owns a session id.
type Backend int

const (
	// Remote sessions live in Redis, with per-call fallback to memory.
	Remote Backend = iota
	// Local sessions were minted during a remote outage and stay in the
	// in-process tier for the rest of the process lifetime.
	Local
)

// localPrefix marks fallback-minted ids on the wire. Clients see it as an
// opaque id; it only exists so the tag survives the request round trip.
const localPrefix = "fallback-"

// SessionID is a tagged session identifier. The tag, not string parsing,
// decides which tier an operation goes to; the reserved prefix appears only
// when the id is rendered for or parsed from the outside world.
type SessionID struct {
	backend Backend
	value   string
}

// RemoteID tags v as a remote-backed id.
func RemoteID(v string) SessionID {
	return SessionID{backend: Remote, value: v}
}

// LocalID tags v as a fallback-backed id.
func LocalID(v string) SessionID {
	return SessionID{backend: Local, value: v}
}

// ParseSessionID recovers the tag from a wire-format id.
func ParseSessionID(s string) SessionID {
	if rest, ok := strings.CutPrefix(s, localPrefix); ok {
		return LocalID(rest)
	}
	return RemoteID(s)
}

// Backend returns the owning tier.
func (id SessionID) Backend() Backend {
	return id.backend
}

// String renders the wire format: local ids carry the reserved prefix.
func (id SessionID) String() string {
	if id.backend == Local {
		return localPrefix + id.value
	}
	return id.value
}

// IsZero reports whether the id is unset.
func (id SessionID) IsZero() bool {
	return id.value == ""
}

// Store is the persistence contract the session controller uses. The
// fallback implementation absorbs remote failures; none of these operations
// surface persistence errors to the visitor.
type Store interface {
	// CreateSession establishes a new session and returns its id. The id
	// is Local-tagged when the remote tier was unreachable.
	CreateSession(ctx context.Context) (SessionID, error)
	// Append adds one message to the session's ordered log.
	Append(ctx context.Context, id SessionID, msg Message) error
	// ReadHistory returns up to limit most recent messages, oldest first.
	ReadHistory(ctx context.Context, id SessionID, limit int) ([]Message, error)
	// SaveContact attaches contact details to the session.
	SaveContact(ctx context.Context, id SessionID, c Contact) error
}

// Tier is one storage backend. Both tiers speak raw id values; the tagged
// routing lives one level up in the fallback store.
type Tier interface {
	CreateSession(ctx context.Context) (string, error)
	Append(ctx context.Context, id string, msg Message) error
	ReadHistory(ctx context.Context, id string, limit int) ([]Message, error)
	SaveContact(ctx context.Context, id string, c Contact) error
}
