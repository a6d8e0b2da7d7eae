package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/dinhthangx01/facebook-bot-multi/internal/domain"
)

// Limited wraps a Generator with one token bucket per credential, so a busy
// page cannot exhaust another page's quota.
type Limited struct {
	next    domain.Generator
	limit   rate.Limit
	burst   int
	maxWait time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// DefaultMaxWait bounds how long a request queues for a token.
const DefaultMaxWait = 5 * time.Second

// NewLimited allows perMinute requests per credential with the given burst.
// A request that would wait longer than maxWait for a token fails at once;
// maxWait <= 0 selects DefaultMaxWait. perMinute <= 0 returns next unchanged.
func NewLimited(next domain.Generator, perMinute, burst int, maxWait time.Duration) domain.Generator {
	if perMinute <= 0 {
		return next
	}
	if burst < 1 {
		burst = 1
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	return &Limited{
		next:     next,
		limit:    rate.Limit(float64(perMinute) / 60),
		burst:    burst,
		maxWait:  maxWait,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (l *Limited) Name() string { return l.next.Name() }

func (l *Limited) Generate(ctx context.Context, req domain.GenerateRequest) (string, error) {
	// Wait refuses up front when the token is due after the deadline.
	wctx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()
	if err := l.limiter(req.Credential).Wait(wctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}
	return l.next.Generate(ctx, req)
}

func (l *Limited) limiter(credential string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[credential]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[credential] = lim
	}
	return lim
}
