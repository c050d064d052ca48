package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store remembers processed identifiers in redis for a bounded window. It
// dedups two kinds of replays: redelivered kafka messages (by offset) and
// redelivered provider webhooks (by provider event id).
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func (s *Store) OffsetKey(topic string, partition int, offset int64) string {
	return fmt.Sprintf("idem:kafka:%s:%d:%d", topic, partition, offset)
}

// Seen marks the key and reports whether it had been marked before.
func (s *Store) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, key, "1", s.ttl).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}

func (s *Store) SeenWebhook(ctx context.Context, provider, eventID string) (bool, error) {
	return s.Seen(ctx, fmt.Sprintf("idem:webhook:%s:%s", provider, eventID))
}
