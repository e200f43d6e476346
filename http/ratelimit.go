package http

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiterConfig defines rate limiting behavior.
type RateLimiterConfig struct {
	// RPS is the default requests per second per host (0 = unlimited).
	RPS float64
	// Burst is the token bucket size. Defaults to 1.
	Burst int
	// CustomRates maps host names to RPS values.
	CustomRates map[string]float64
}

// DefaultRateLimiterConfig returns conservative defaults for the Data API.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RPS:         2.0,
		Burst:       1,
		CustomRates: make(map[string]float64),
	}
}

// RateLimiter manages per-host request rate limiting using a token bucket.
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	config   RateLimiterConfig
}

// NewRateLimiter creates a new rate limiter with the given configuration.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.CustomRates == nil {
		cfg.CustomRates = make(map[string]float64)
	}
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		config:   cfg,
	}
}

// Wait blocks until a request to urlStr is allowed or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context, urlStr string) error {
	if rl == nil {
		return nil
	}
	limiter := rl.getLimiter(urlStr)
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}

// getLimiter returns the limiter for the URL's host, creating one if needed.
// It returns nil for unlimited hosts.
func (rl *RateLimiter) getLimiter(urlStr string) *rate.Limiter {
	host := extractHost(urlStr)
	rps := rl.config.RPS
	if custom, ok := rl.config.CustomRates[host]; ok {
		rps = custom
	}
	if rps <= 0 {
		return nil
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if limiter, ok := rl.limiters[host]; ok {
		return limiter
	}
	limiter := rate.NewLimiter(rate.Limit(rps), rl.config.Burst)
	rl.limiters[host] = limiter
	return limiter
}

// extractHost returns the host of urlStr without port.
func extractHost(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	host := u.Host
	if idx := strings.LastIndex(host, ":"); idx != -1 && !strings.HasSuffix(host, "]") {
		host = host[:idx]
	}
	return host
}
