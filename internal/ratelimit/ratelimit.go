// Package ratelimit implements per-key request limits for the public API.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether a request for key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Memory is a per-process fixed window limiter with the same semantics as
// Redis: at most limit requests per key in each window.
type Memory struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int
	window  time.Duration
	now     func() time.Time
}

type window struct {
	start time.Time
	count int
}

// NewMemory allows limit requests per window per key.
func NewMemory(limit int, length time.Duration) *Memory {
	if limit <= 0 {
		limit = 60
	}
	if length <= 0 {
		length = time.Minute
	}
	return &Memory{
		windows: make(map[string]*window),
		limit:   limit,
		window:  length,
		now:     time.Now,
	}
}

// Allow implements Limiter.
func (m *Memory) Allow(_ context.Context, key string) (Decision, error) {
	now := m.now()
	start := now.Truncate(m.window)

	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.windows[key]
	if !ok || !w.start.Equal(start) {
		w = &window{start: start}
		m.windows[key] = w
	}
	w.count++

	d := Decision{Limit: m.limit, Remaining: m.limit - w.count}
	if w.count <= m.limit {
		d.Allowed = true
		return d, nil
	}
	d.Remaining = 0
	d.RetryAfter = start.Add(m.window).Sub(now)
	return d, nil
}

// Cleanup drops counters of windows that have already closed.
func (m *Memory) Cleanup() {
	current := m.now().Truncate(m.window)
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, w := range m.windows {
		if w.start.Before(current) {
			delete(m.windows, key)
		}
	}
}

// Size returns the number of tracked keys.
func (m *Memory) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}

// Redis is a fixed window limiter shared by every API replica.
type Redis struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
	now    func() time.Time
}

// NewRedis allows limit requests per window per key.
func NewRedis(client *redis.Client, limit int, window time.Duration) *Redis {
	if window <= 0 {
		window = time.Minute
	}
	return &Redis{client: client, limit: limit, window: window, prefix: "gestly:ratelimit:", now: time.Now}
}

// Connect parses a redis:// URL and verifies the server answers.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// WindowKey returns the counter key for key in the window containing t.
func (r *Redis) WindowKey(key string, t time.Time) (string, time.Time) {
	start := t.Truncate(r.window)
	return r.prefix + key + ":" + strconv.FormatInt(start.Unix(), 10), start
}

// Allow implements Limiter.
func (r *Redis) Allow(ctx context.Context, key string) (Decision, error) {
	now := r.now()
	counterKey, start := r.WindowKey(key, now)

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, counterKey)
	pipe.Expire(ctx, counterKey, r.window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("rate limit counter: %w", err)
	}

	count := int(incr.Val())
	d := Decision{Limit: r.limit, Remaining: r.limit - count}
	if count <= r.limit {
		d.Allowed = true
		return d, nil
	}
	d.Remaining = 0
	d.RetryAfter = start.Add(r.window).Sub(now)
	return d, nil
}
