// Package ratelimit provides per-client rate limiting backed by golang.org/x/time/rate token buckets.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Info contains information about rate limit status.
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// bucket pairs a token bucket with its last use.
type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter manages rate limiting for multiple clients.
type Limiter struct {
	mu            sync.Mutex
	buckets       map[string]*bucket // clientID:pattern:method -> bucket
	config        *Config
	now           func() time.Time
	cleanupTicker *time.Ticker
	cleanupStop   chan struct{}
	stopOnce      sync.Once
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	IdleTTL         time.Duration
	Whitelist       map[string]bool
	Blacklist       map[string]bool
	EndpointConfigs []EndpointConfig
}

// NewLimiter creates a new rate limiter with the given configuration.
func NewLimiter(config *Config) *Limiter {
	if config == nil {
		config = &Config{
			Enabled:         true,
			DefaultLimit:    1000,
			DefaultWindow:   time.Minute,
			CleanupInterval: 5 * time.Minute,
			Whitelist:       make(map[string]bool),
			Blacklist:       make(map[string]bool),
		}
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = time.Hour
	}

	limiter := &Limiter{
		buckets: make(map[string]*bucket),
		config:  config,
		now:     time.Now,
	}

	if config.Enabled && config.CleanupInterval > 0 {
		limiter.cleanupTicker = time.NewTicker(config.CleanupInterval)
		limiter.cleanupStop = make(chan struct{})
		go limiter.cleanup()
	}

	return limiter
}

// Allow checks if a request from the given client is allowed for the specified endpoint.
// Returns true if allowed, false if rate limited, along with rate limit information.
func (l *Limiter) Allow(clientID string, endpoint string, method string) (bool, Info) {
	if !l.config.Enabled || l.config.Whitelist[clientID] {
		return true, Info{Allowed: true}
	}
	if l.config.Blacklist[clientID] {
		return false, Info{Allowed: false}
	}

	// Matched endpoints share one bucket per pattern, so /runs/a and /runs/b count together.
	key := endpoint
	endpointConfig := MatchEndpoint(endpoint, method, l.config.EndpointConfigs)
	if endpointConfig != nil {
		key = endpointConfig.Path
	} else {
		endpointConfig = &EndpointConfig{
			Limit:  l.config.DefaultLimit,
			Window: l.config.DefaultWindow,
			Burst:  l.config.DefaultLimit,
		}
	}

	// Unlimited endpoint (e.g., health check)
	if endpointConfig.Limit <= 0 || endpointConfig.Window <= 0 {
		return true, Info{Allowed: true}
	}

	now := l.now()
	b := l.getBucket(clientID+":"+key+":"+method, endpointConfig, now)

	res := b.limiter.ReserveN(now, 1)
	delay := res.DelayFrom(now)
	allowed := res.OK() && delay == 0
	if !allowed {
		// Return the token so rejected requests do not push the window further out.
		res.CancelAt(now)
	}

	tokens := b.limiter.TokensAt(now)
	remaining := max(int(tokens), 0)

	info := Info{
		Allowed:   allowed,
		Limit:     endpointConfig.Limit,
		Remaining: remaining,
		ResetTime: resetTime(b.limiter, tokens, now),
	}
	if !allowed {
		info.RetryAfter = max(delay, 0)
	}
	return allowed, info
}

// resetTime is when the bucket will be full again.
func resetTime(lim *rate.Limiter, tokens float64, now time.Time) time.Time {
	missing := float64(lim.Burst()) - tokens
	if missing <= 0 || lim.Limit() <= 0 {
		return now
	}
	return now.Add(time.Duration(missing / float64(lim.Limit()) * float64(time.Second)))
}

// getBucket gets or creates the bucket for key.
func (l *Limiter) getBucket(key string, cfg *EndpointConfig, now time.Time) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.buckets[key]; ok {
		b.lastSeen = now
		return b
	}

	burst := cfg.Burst
	if burst <= 0 {
		burst = cfg.Limit
	}
	every := cfg.Window / time.Duration(cfg.Limit)
	b := &bucket{
		limiter:  rate.NewLimiter(rate.Every(every), burst),
		lastSeen: now,
	}
	l.buckets[key] = b
	return b
}

// cleanup removes idle buckets until Stop is called.
func (l *Limiter) cleanup() {
	for {
		select {
		case <-l.cleanupTicker.C:
			l.cleanupBuckets()
		case <-l.cleanupStop:
			return
		}
	}
}

// cleanupBuckets removes buckets idle for longer than IdleTTL.
func (l *Limiter) cleanupBuckets() {
	cutoff := l.now().Add(-l.config.IdleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() {
		if l.cleanupTicker != nil {
			l.cleanupTicker.Stop()
		}
		if l.cleanupStop != nil {
			close(l.cleanupStop)
		}
	})
}
