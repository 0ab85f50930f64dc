package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// maxTrackedKeys bounds the limiter map; past it the map is reset on the next sweep.
const maxTrackedKeys = 10_000

// RateLimiter keeps one token bucket per caller, keyed by Ax-User-Id or, failing that, the client IP.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
	log      *logrus.Logger
}

func NewRateLimiter(rps float64, burst int, log *logrus.Logger) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(rps),
		burst:    burst,
		log:      log,
	}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	l, ok := rl.limiters[key]
	if !ok {
		l = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[key] = l
	}
	return l
}

func callerKey(c echo.Context) string {
	if id, ok := c.Get(ContextUserID).(string); ok && id != "" {
		return "user:" + id
	}
	if id := c.Request().Header.Get(HeaderUserID); reHex32.MatchString(id) {
		return "user:" + id
	}
	return "ip:" + c.RealIP()
}

func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := callerKey(c)
			if !rl.limiter(key).Allow() {
				rl.log.WithFields(logrus.Fields{
					"key":    key,
					"method": c.Request().Method,
					"path":   c.Path(),
				}).Warn("rate limit exceeded")
				c.Response().Header().Set("Retry-After", "1")
				return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			}
			return next(c)
		}
	}
}

// Sweep drops every tracked bucket once the map grows past maxTrackedKeys.
func (rl *RateLimiter) Sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if len(rl.limiters) > maxTrackedKeys {
		rl.limiters = make(map[string]*rate.Limiter)
	}
}

// StartSweeper runs Sweep every interval until stop is closed.
func (rl *RateLimiter) StartSweeper(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.Sweep()
			case <-stop:
				return
			}
		}
	}()
}
