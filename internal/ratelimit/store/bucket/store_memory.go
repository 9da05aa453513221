// Package bucket keeps one token bucket per client key in memory.
package bucket

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"xclone/internal/ratelimit/models"
)

// InMemoryBucketStore holds a token bucket per key. Buckets idle for longer
// than the idle TTL are dropped by the cleanup loop.
type InMemoryBucketStore struct {
	rps     rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type Option func(*InMemoryBucketStore)

// WithIdleTTL sets how long an unused bucket is kept.
func WithIdleTTL(d time.Duration) Option {
	return func(s *InMemoryBucketStore) { s.idleTTL = d }
}

// WithClock replaces the store's clock.
func WithClock(now func() time.Time) Option {
	return func(s *InMemoryBucketStore) { s.now = now }
}

// NewInMemoryBucketStore creates a store whose buckets refill at rps and hold
// at most burst tokens.
func NewInMemoryBucketStore(rps float64, burst int, opts ...Option) *InMemoryBucketStore {
	s := &InMemoryBucketStore{
		rps:     rate.Limit(rps),
		burst:   burst,
		idleTTL: 30 * time.Minute,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Allow takes one token from key's bucket if one is available.
func (s *InMemoryBucketStore) Allow(_ context.Context, key string) (*models.RateLimitResult, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.getOrCreateBucket(key, now)
	b.lastSeen = now

	allowed := b.limiter.AllowN(now, 1)
	tokens := b.limiter.TokensAt(now)
	result := &models.RateLimitResult{
		Allowed:   allowed,
		Limit:     s.burst,
		Remaining: max(int(math.Floor(tokens)), 0),
		ResetAt:   now.Add(s.untilTokens(float64(s.burst) - tokens)),
	}
	if !allowed {
		wait := s.untilTokens(1 - tokens)
		result.RetryAfter = int(math.Ceil(wait.Seconds()))
	}
	return result, nil
}

// Len reports how many keys have a bucket.
func (s *InMemoryBucketStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

// StartCleanup drops idle buckets every interval until ctx is cancelled.
func (s *InMemoryBucketStore) StartCleanup(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RemoveIdleAt(s.now())
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RemoveIdleAt drops every bucket unused for longer than the idle TTL as of
// now and returns how many were dropped.
func (s *InMemoryBucketStore) RemoveIdleAt(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, b := range s.buckets {
		if now.Sub(b.lastSeen) > s.idleTTL {
			delete(s.buckets, key)
			removed++
		}
	}
	return removed
}

// untilTokens is how long the bucket needs to refill n tokens.
func (s *InMemoryBucketStore) untilTokens(n float64) time.Duration {
	if n <= 0 {
		return 0
	}
	if s.rps <= 0 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(n / float64(s.rps) * float64(time.Second))
}

// getOrCreateBucket must be called while holding s.mu.
func (s *InMemoryBucketStore) getOrCreateBucket(key string, now time.Time) *bucket {
	if b := s.buckets[key]; b != nil {
		return b
	}
	b := &bucket{limiter: rate.NewLimiter(s.rps, s.burst), lastSeen: now}
	s.buckets[key] = b
	return b
}
