package chatstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/bizowl/support-assistant/internal/core/errx"
	logx "github.com/bizowl/support-assistant/pkg/logger"
)

// RedisStore is the remote tier. Each session is a hash (metadata) plus a
// list of JSON-encoded messages, both under the session id, with a TTL
// refreshed on every touch.
type RedisStore struct {
	rdb       redis.Cmdable
	ttl       time.Duration
	opTimeout time.Duration
}

func NewRedisStore(rdb redis.Cmdable, ttl, opTimeout time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl, opTimeout: opTimeout}
}

func (s *RedisStore) sessionKey(id string) string {
	return fmt.Sprintf("chat:%s", id)
}

func (s *RedisStore) messagesKey(id string) string {
	return fmt.Sprintf("chat:%s:messages", id)
}

func (s *RedisStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

func (s *RedisStore) CreateSession(ctx context.Context) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	id := uuid.NewString()
	key := s.sessionKey(id)
	now := time.Now().UTC()

	if err := s.rdb.HSet(ctx, key,
		"created_at", now.Format(time.RFC3339Nano),
		"updated_at", now.Format(time.RFC3339Nano),
		"status", string(StatusActive),
	).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to create chat session in redis")
		return "", errx.WrapRedis(err)
	}
	s.touch(ctx, key)

	logx.Debug().Str("session_id", id).Msg("created chat session in redis")
	return id, nil
}

func (s *RedisStore) Append(ctx context.Context, id string, msg Message) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	key := s.messagesKey(id)
	if err := s.rdb.RPush(ctx, key, b).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to push message to redis")
		return errx.WrapRedis(err)
	}
	if err := s.rdb.HSet(ctx, s.sessionKey(id), "updated_at", msg.Timestamp.Format(time.RFC3339Nano)).Err(); err != nil {
		logx.Error().Err(err).Str("session_id", id).Msg("failed to bump session updated_at")
		return errx.WrapRedis(err)
	}
	s.touch(ctx, key)
	s.touch(ctx, s.sessionKey(id))
	return nil
}

func (s *RedisStore) ReadHistory(ctx context.Context, id string, limit int) ([]Message, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	key := s.messagesKey(id)
	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}
	rows, err := s.rdb.LRange(ctx, key, start, -1).Result()
	if err != nil {
		if err == redis.Nil {
			return []Message{}, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load chat history from redis")
		return nil, errx.WrapRedis(err)
	}

	msgs := make([]Message, 0, len(rows))
	for i, row := range rows {
		var m Message
		if err := json.Unmarshal([]byte(row), &m); err != nil {
			return nil, fmt.Errorf("unmarshal message at index %d: %w", i, err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (s *RedisStore) SaveContact(ctx context.Context, id string, c Contact) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	b, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal contact: %w", err)
	}
	key := s.sessionKey(id)
	if err := s.rdb.HSet(ctx, key,
		"contact_info", b,
		"updated_at", time.Now().UTC().Format(time.RFC3339Nano),
	).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to save contact info to redis")
		return errx.WrapRedis(err)
	}
	s.touch(ctx, key)
	return nil
}

// Ping reports remote tier reachability for health checks.
func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return errx.WrapRedis(err)
	}
	return nil
}

func (s *RedisStore) touch(ctx context.Context, key string) {
	if s.ttl <= 0 {
		return
	}
	if ok, err := s.rdb.Expire(ctx, key, s.ttl).Result(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to set expire")
	} else if !ok {
		logx.Warn().Str("key", key).Dur("ttl", s.ttl).Msg("failed to set TTL on chat key")
	}
}

var _ Tier = (*RedisStore)(nil)
