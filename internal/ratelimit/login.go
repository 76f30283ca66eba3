package ratelimit

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Haufe-Lexware/wicked.portal-test/internal/config"
	redis "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

const keyLoginClient = "wicked:login:client:"

// LoginLimiter throttles login form posts per client address.
type LoginLimiter interface {
	Allow(ctx context.Context, clientIP string) (*RateLimitResult, error)
}

// NewLoginLimiter returns the Redis token bucket when Redis is configured,
// otherwise an in-process limiter. A non-positive rate disables throttling.
func NewLoginLimiter(cfg config.Config, client *redis.Client) LoginLimiter {
	r, burst := cfg.OAuth2.LoginRate, cfg.OAuth2.LoginBurst
	if r <= 0 || burst <= 0 {
		return unlimited{}
	}
	if client != nil {
		return &redisLoginLimiter{bucket: NewTokenBucket(client), rate: r, burst: burst}
	}
	return NewLocalLoginLimiter(r, burst)
}

type unlimited struct{}

func (unlimited) Allow(context.Context, string) (*RateLimitResult, error) {
	return &RateLimitResult{Allowed: true}, nil
}

type redisLoginLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func (l *redisLoginLimiter) Allow(ctx context.Context, clientIP string) (*RateLimitResult, error) {
	return l.bucket.Allow(ctx, keyLoginClient+strings.TrimSpace(clientIP), l.rate, l.burst)
}

const (
	localIdleTTL    = 10 * time.Minute
	localPruneEvery = 256
)

// LocalLoginLimiter keeps one x/time/rate limiter per client address and
// forgets addresses that have been idle for a while.
type LocalLoginLimiter struct {
	mu      sync.Mutex
	rate    rate.Limit
	burst   int
	clients map[string]*localClient
	calls   int
	now     func() time.Time
}

type localClient struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewLocalLoginLimiter(r float64, burst int) *LocalLoginLimiter {
	return &LocalLoginLimiter{
		rate:    rate.Limit(r),
		burst:   burst,
		clients: make(map[string]*localClient),
		now:     time.Now,
	}
}

func (l *LocalLoginLimiter) Allow(_ context.Context, clientIP string) (*RateLimitResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.calls++
	if l.calls%localPruneEvery == 0 {
		l.prune(now)
	}

	key := strings.TrimSpace(clientIP)
	c, ok := l.clients[key]
	if !ok {
		c = &localClient{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.clients[key] = c
	}
	c.lastSeen = now

	allowed := c.limiter.AllowN(now, 1)
	result := &RateLimitResult{
		Allowed:   allowed,
		Limit:     l.burst,
		Remaining: int(c.limiter.TokensAt(now)),
	}
	if !allowed {
		result.RetryAfter = time.Duration(float64(time.Second) / float64(l.rate))
		result.ResetTime = now.Add(result.RetryAfter)
	}
	return result, nil
}

func (l *LocalLoginLimiter) prune(now time.Time) {
	for key, c := range l.clients {
		if now.Sub(c.lastSeen) > localIdleTTL {
			delete(l.clients, key)
		}
	}
}
