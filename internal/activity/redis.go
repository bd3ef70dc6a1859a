package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bedwards/imaginary-crime-lab/internal/clock"
)

// DefaultRedisKey is the sorted set holding the activity log.
const DefaultRedisKey = "crimelab:activity"

// RedisConfig configures a RedisLog.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// Key is the sorted set name. Default: DefaultRedisKey.
	Key string

	// Retention bounds how far back events are kept. Default: DefaultRetention.
	Retention time.Duration

	// Clock decides which events have expired. Default: system clock.
	Clock clock.Clock
}

// redisAppendScript adds an event unless its id marker exists, then trims
// expired members and refreshes the key TTL.
//
// KEYS[1] = sorted set, KEYS[2] = id marker
// ARGV[1] = score (unix ms), ARGV[2] = member, ARGV[3] = cutoff (unix ms),
// ARGV[4] = retention (ms)
var redisAppendScript = redis.NewScript(`
if redis.call("SET", KEYS[2], "1", "NX", "PX", ARGV[4]) then
  redis.call("ZADD", KEYS[1], ARGV[1], ARGV[2])
end
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", "(" .. ARGV[3])
redis.call("PEXPIRE", KEYS[1], ARGV[4])
return 1
`)

// RedisLog is a Log stored in a single Redis sorted set.
//
// Members are JSON-encoded events scored by unix milliseconds. Every append
// trims members older than the retention and refreshes the key TTL in one
// script, so an idle log expires as a whole. A per-event marker key with
// the same TTL keeps an id from being added twice.
type RedisLog struct {
	client    *redis.Client
	key       string
	retention time.Duration
	clock     clock.Clock
}

// OpenRedis connects to Redis and verifies the connection.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*RedisLog, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", cfg.Addr, err)
	}
	return NewRedisLog(client, cfg), nil
}

// NewRedisLog wraps an existing client. Addr, Password and DB in cfg are ignored.
func NewRedisLog(client *redis.Client, cfg RedisConfig) *RedisLog {
	if cfg.Key == "" {
		cfg.Key = DefaultRedisKey
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	return &RedisLog{
		client:    client,
		key:       cfg.Key,
		retention: cfg.Retention,
		clock:     clock.Or(cfg.Clock),
	}
}

func (l *RedisLog) Append(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	cutoff := l.cutoff()

	keys := []string{l.key, l.key + ":id:" + e.ID}
	err = redisAppendScript.Run(ctx, l.client, keys,
		e.Timestamp.UnixMilli(),
		data,
		cutoff.UnixMilli(),
		l.retention.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("redis append: %w", err)
	}
	return nil
}

// Since reads from the cursor's millisecond onwards and filters the rest in
// process, since scores do not carry nanoseconds or ids.
func (l *RedisLog) Since(ctx context.Context, c Cursor, limit int) ([]Event, error) {
	lo := "-inf"
	if !c.Time.IsZero() {
		lo = strconv.FormatInt(c.Time.UnixMilli(), 10)
	}
	events, err := l.rangeByScore(ctx, lo, "+inf")
	if err != nil {
		return nil, err
	}

	out := []Event{}
	for _, e := range events {
		if !c.Before(e) {
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, e)
	}
	return out, nil
}

func (l *RedisLog) Between(ctx context.Context, from, to time.Time) ([]Event, error) {
	events, err := l.rangeByScore(ctx,
		strconv.FormatInt(from.UnixMilli(), 10),
		strconv.FormatInt(to.UnixMilli(), 10))
	if err != nil {
		return nil, err
	}
	out := []Event{}
	for _, e := range events {
		if e.Timestamp.Before(from) || e.Timestamp.After(to) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Close closes the client.
func (l *RedisLog) Close() error {
	return l.client.Close()
}

// rangeByScore returns unexpired events in the score range, sorted by
// (Timestamp, ID).
func (l *RedisLog) rangeByScore(ctx context.Context, lo, hi string) ([]Event, error) {
	members, err := l.client.ZRangeByScore(ctx, l.key, &redis.ZRangeBy{Min: lo, Max: hi}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis range: %w", err)
	}

	cutoff := l.cutoff()
	events := make([]Event, 0, len(members))
	for _, m := range members {
		var e Event
		if err := json.Unmarshal([]byte(m), &e); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		if e.Timestamp.Before(cutoff) {
			continue
		}
		events = append(events, e)
	}
	sort.Slice(events, func(i, j int) bool { return Less(events[i], events[j]) })
	return events, nil
}

func (l *RedisLog) cutoff() time.Time {
	return l.clock.Now().Add(-l.retention)
}
