package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DistributedLimiter is a shared token bucket, e.g. cache.RedisClient.
type DistributedLimiter interface {
	AllowAction(ctx context.Context, participantID, action string, rate, burst int) (bool, error)
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter limits requests per participant. With a distributed limiter
// it is consulted first; the in-process limiter takes over when it fails.
type RateLimiter struct {
	limiters map[string]*limiterEntry
	mu       sync.Mutex
	rps      int
	rate     rate.Limit
	burst    int

	shared DistributedLimiter
	logger *zap.Logger
}

func NewRateLimiter(rps int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		rps:      rps,
		rate:     rate.Limit(rps),
		burst:    rps * 2,
		logger:   zap.NewNop(),
	}
}

// WithShared makes the limiter consult a distributed bucket first
func (rl *RateLimiter) WithShared(shared DistributedLimiter, logger *zap.Logger) *RateLimiter {
	rl.shared = shared
	if logger != nil {
		rl.logger = logger
	}
	return rl
}

func (rl *RateLimiter) getLimiter(participantID string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, exists := rl.limiters[participantID]
	if !exists {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[participantID] = entry
	}
	entry.lastSeen = time.Now()

	return entry.limiter
}

// Allow reports whether participantID may perform action now.
func (rl *RateLimiter) Allow(ctx context.Context, participantID, action string) bool {
	if rl.shared != nil {
		ok, err := rl.shared.AllowAction(ctx, participantID, action, rl.rps, rl.burst)
		if err == nil {
			return ok
		}
		rl.logger.Warn("shared rate limiter unavailable", zap.Error(err))
	}
	return rl.getLimiter(participantID).Allow()
}

// prune drops limiters idle for longer than idle
func (rl *RateLimiter) prune(idle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-idle)
	for id, entry := range rl.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.limiters, id)
		}
	}
}

// Cleanup removes idle limiters until ctx is cancelled
func (rl *RateLimiter) Cleanup(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.prune(10 * time.Minute)
			}
		}
	}()
}

// RateLimitMiddleware limits requests per authenticated participant
func RateLimitMiddleware(rl *RateLimiter, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		plate := c.GetString(ContextLicensePlate)
		if plate == "" {
			c.Next()
			return
		}

		if !rl.Allow(c.Request.Context(), plate, action) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			c.Abort()
			return
		}

		c.Next()
	}
}
