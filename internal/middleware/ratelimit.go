package middleware

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/monitaro/pjmanager/internal/app/session"
	"github.com/monitaro/pjmanager/internal/errors"
	"github.com/monitaro/pjmanager/internal/httputil"
	"github.com/monitaro/pjmanager/pkg/logger"
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// SessionLookup resolves a session credential to its live binding.
type SessionLookup interface {
	Binding(id string) (*session.Binding, bool)
}

// RateLimiter applies a token bucket per caller. A credential naming a live
// session gets its own bucket; everything else shares the remote host's.
type RateLimiter struct {
	limiters map[string]*limiterEntry
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	maxIdle  time.Duration
	logger   *logger.Logger
	now      func() time.Time
	sessions SessionLookup

	cancel context.CancelFunc
	done   chan struct{}
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(requestsPerSecond int, burst int, log *logger.Logger) *RateLimiter {
	if log == nil {
		log = logger.NewDefault("ratelimit")
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
		maxIdle:  10 * time.Minute,
		logger:   log,
		now:      time.Now,
	}
}

// WithSessions lets callers with a live session keep a bucket of their own.
// It must be called before the limiter serves requests.
func (rl *RateLimiter) WithSessions(sessions SessionLookup) *RateLimiter {
	rl.sessions = sessions
	return rl
}

func (rl *RateLimiter) key(r *http.Request) string {
	if token := session.RequestToken(r); token != "" && rl.sessions != nil {
		if _, ok := rl.sessions.Binding(token); ok {
			return "session:" + token
		}
	}
	return "addr:" + remoteHost(r)
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	e, exists := rl.limiters[key]
	if !exists {
		e = &limiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = e
	}
	e.lastSeen = rl.now()
	return e.limiter
}

// Handler returns the rate limiting middleware handler
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.getLimiter(rl.key(r)).Allow() {
			rl.logger.LogSecurityEvent(r.Context(), "rate_limit_exceeded", map[string]interface{}{
				"path":   r.URL.Path,
				"method": r.Method,
			})
			httputil.WriteError(w, http.StatusTooManyRequests, errors.RateLimitExceeded(int(rl.rate), "1s"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Cleanup drops limiters idle for longer than maxIdle and returns how many went.
func (rl *RateLimiter) Cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-rl.maxIdle)
	removed := 0
	for key, e := range rl.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(rl.limiters, key)
			removed++
		}
	}
	return removed
}

// Name implements system.Service.
func (rl *RateLimiter) Name() string { return "rate-limit-janitor" }

// Start runs Cleanup periodically until Stop.
func (rl *RateLimiter) Start(context.Context) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	rl.cancel = cancel
	rl.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(rl.maxIdle / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.Cleanup()
			}
		}
	}(rl.done)
	return nil
}

// Stop ends the cleanup loop.
func (rl *RateLimiter) Stop(ctx context.Context) error {
	rl.mu.Lock()
	cancel, done := rl.cancel, rl.done
	rl.cancel, rl.done = nil, nil
	rl.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
