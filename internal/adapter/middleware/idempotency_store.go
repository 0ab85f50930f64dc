package middleware

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	statePending = "pending"
	stateDone    = "done"
)

// record is one idempotency entry, stored as a redis hash.
type record struct {
	Pending     bool
	BodySHA256  string
	Code        int
	ContentType string
	Body        []byte
}

// reserveScript claims KEYS[1] atomically, or returns the existing entry.
var reserveScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return redis.call('HMGET', KEYS[1], 'state', 'sha', 'code', 'ctype', 'body')
end
redis.call('HSET', KEYS[1], 'state', 'pending', 'sha', ARGV[1], 'at', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return false
`)

type store struct{ rdb *redis.Client }

// reserve returns (nil, nil) when this request now owns key.
func (s store) reserve(ctx context.Context, key, sha string, at time.Time, lock time.Duration) (*record, error) {
	res, err := reserveScript.Run(ctx, s.rdb, []string{key}, sha, at.UnixMilli(), lock.Milliseconds()).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reserve %s: %w", key, err)
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) != 5 {
		return nil, fmt.Errorf("reserve %s: unexpected reply %v", key, res)
	}
	str := func(i int) string { v, _ := vals[i].(string); return v }
	r := &record{
		Pending:     str(0) != stateDone,
		BodySHA256:  str(1),
		ContentType: str(3),
		Body:        []byte(str(4)),
	}
	r.Code, _ = strconv.Atoi(str(2))
	return r, nil
}

func (s store) commit(ctx context.Context, key string, r record, ttl time.Duration) error {
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, "state", stateDone, "code", r.Code, "ctype", r.ContentType, "body", r.Body)
		p.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit %s: %w", key, err)
	}
	return nil
}

func (s store) release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}
