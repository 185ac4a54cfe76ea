package timing

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RateLimiter throttles signing calls across batch workers. A non-positive
// rate disables throttling.
type RateLimiter struct {
	limiter *rate.Limiter
	logger  *logrus.Logger

	mu           sync.Mutex
	requestCount int64
	blockedCount int64
	waited       time.Duration
	lastBlocked  time.Time
}

func NewRateLimiter(perSecond float64, burst int, logger *logrus.Logger) *RateLimiter {
	if logger == nil {
		logger = logrus.New()
	}
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
}

// Wait blocks until a token is available or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	start := time.Now()
	err := rl.limiter.Wait(ctx)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.requestCount++
	rl.waited += time.Since(start)
	if err != nil {
		rl.blockedCount++
		rl.lastBlocked = time.Now()
		rl.logger.WithError(err).Debug("rate limiter wait aborted")
	}
	return err
}

func (rl *RateLimiter) Allow() bool {
	allowed := rl.limiter.Allow()
	rl.mu.Lock()
	rl.requestCount++
	if !allowed {
		rl.blockedCount++
		rl.lastBlocked = time.Now()
	}
	rl.mu.Unlock()
	return allowed
}

func (rl *RateLimiter) SetRate(perSecond float64) {
	if perSecond <= 0 {
		rl.limiter.SetLimit(rate.Inf)
		return
	}
	rl.limiter.SetLimit(rate.Limit(perSecond))
}

func (rl *RateLimiter) GetStats() map[string]interface{} {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return map[string]interface{}{
		"limit":         float64(rl.limiter.Limit()),
		"burst":         rl.limiter.Burst(),
		"request_count": rl.requestCount,
		"blocked_count": rl.blockedCount,
		"waited":        rl.waited.String(),
		"last_blocked":  rl.lastBlocked,
	}
}
