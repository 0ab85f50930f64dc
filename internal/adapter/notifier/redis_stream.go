package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"library-backend/internal/domain/notification"

	"github.com/redis/go-redis/v9"
)

// DefaultStreamMaxLen keeps the notification stream bounded; trimming is approximate.
const DefaultStreamMaxLen = 100_000

// RedisStream appends events to a Redis stream for the mail/push workers to consume.
type RedisStream struct {
	rdb    *redis.Client
	stream string
	maxLen int64
}

func NewRedisStream(rdb *redis.Client, stream string) *RedisStream {
	return &RedisStream{rdb: rdb, stream: stream, maxLen: DefaultStreamMaxLen}
}

func (s *RedisStream) Notify(ctx context.Context, e notification.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", e.Kind, err)
	}
	err = s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"event_id": e.EventID,
			"kind":     string(e.Kind),
			"user_id":  e.UserID,
			"payload":  payload,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", s.stream, err)
	}
	return nil
}
