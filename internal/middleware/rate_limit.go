package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/metrics"
	"golang.org/x/time/rate"
)

// TeamRateLimiter manages rate limiters per team
type TeamRateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
}

// NewTeamRateLimiter creates a new team rate limiter
func NewTeamRateLimiter(rps float64, burst int) *TeamRateLimiter {
	return &TeamRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(rps),
		burst:    burst,
	}
}

// GetLimiter returns the rate limiter for a specific team
func (rl *TeamRateLimiter) GetLimiter(teamID string) *rate.Limiter {
	rl.mu.RLock()
	limiter, exists := rl.limiters[teamID]
	rl.mu.RUnlock()

	if !exists {
		rl.mu.Lock()
		// Double-check after acquiring write lock
		limiter, exists = rl.limiters[teamID]
		if !exists {
			limiter = rate.NewLimiter(rl.rate, rl.burst)
			rl.limiters[teamID] = limiter
		}
		rl.mu.Unlock()
	}

	return limiter
}

// RateLimitMiddleware limits requests per team. It must run after TeamMiddleware.
func RateLimitMiddleware(rl *TeamRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		teamID := GetTeamID(c)
		if teamID == "" {
			c.Next()
			return
		}

		if !rl.GetLimiter(teamID).Allow() {
			metrics.RateLimitExceeded.WithLabelValues(teamID).Inc()
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded. Please try again later.",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
