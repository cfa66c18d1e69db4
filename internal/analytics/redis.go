package analytics

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/djlord-it/easy-remind/internal/domain"
)

// Config controls fired-notification counting. Window must be 1m, 5m or 1h
// so bucket keys line up with truncateToBucket; Retention is the key TTL.
type Config struct {
	Enabled   bool
	Window    time.Duration
	Retention time.Duration
}

// RedisSink counts fired notifications per source in time buckets.
type RedisSink struct {
	client *redis.Client
	config Config
}

func NewRedisSink(client *redis.Client, config Config) *RedisSink {
	return &RedisSink{client: client, config: config}
}

func (s *RedisSink) Write(ctx context.Context, event domain.FiredEvent) error {
	if !s.config.Enabled {
		return nil
	}

	key := buildKey(event.Source, event.FiredAt, s.config.Window)

	pipe := s.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.config.Retention)

	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}

	return nil
}

// Bucket is the number of notifications fired in one window.
type Bucket struct {
	Start time.Time `json:"start"`
	Count int64     `json:"count"`
}

// Recent returns the last n buckets for source ending with the bucket that
// contains now, oldest first. Missing buckets count as zero.
func (s *RedisSink) Recent(ctx context.Context, source domain.Source, now time.Time, n int) ([]Bucket, error) {
	if n <= 0 {
		return nil, nil
	}

	window := s.config.Window
	if window <= 0 {
		window = time.Minute
	}
	end := now.UTC().Truncate(window)

	starts := make([]time.Time, n)
	keys := make([]string, n)
	for i := 0; i < n; i++ {
		starts[i] = end.Add(-time.Duration(n-1-i) * window)
		keys[i] = buildKey(source, starts[i], window)
	}

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	buckets := make([]Bucket, n)
	for i := range buckets {
		buckets[i].Start = starts[i]
		if i < len(vals) {
			buckets[i].Count = parseCount(vals[i])
		}
	}
	return buckets, nil
}

func parseCount(v any) int64 {
	str, ok := v.(string)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func buildKey(source domain.Source, t time.Time, window time.Duration) string {
	return fmt.Sprintf("n:%s:%s", source, truncateToBucket(t, window))
}

func truncateToBucket(t time.Time, window time.Duration) string {
	t = t.UTC()
	switch window {
	case time.Minute:
		return t.Format("200601021504")
	case 5 * time.Minute:
		minute := (t.Minute() / 5) * 5
		return t.Format("2006010215") + fmt.Sprintf("%02d", minute)
	case time.Hour:
		return t.Format("2006010215")
	default:
		return t.Format("200601021504")
	}
}
