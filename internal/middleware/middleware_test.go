package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monitaro/pjmanager/internal/app/session"
	"github.com/monitaro/pjmanager/internal/httputil"
	"github.com/monitaro/pjmanager/pkg/logger"
)

func ok() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestTracingAssignsAndEchoesTraceID(t *testing.T) {
	var seen string
	h := NewTracingMiddleware(logger.Discard()).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.TraceID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/projects", nil))
	require.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(TraceHeader))

	req := httptest.NewRequest(http.MethodGet, "/projects", nil)
	req.Header.Set(TraceHeader, "trace-1")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "trace-1", seen)
	assert.Equal(t, "trace-1", rec.Header().Get(TraceHeader))
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	h := NewCORSMiddleware([]string{"https://app.example.com/", ""}).Handler(ok())

	req := httptest.NewRequest(http.MethodOptions, "/projects", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "PATCH")

	req = httptest.NewRequest(http.MethodGet, "/projects", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSWildcard(t *testing.T) {
	h := NewCORSMiddleware([]string{"*"}).Handler(ok())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimiterRejectsBurst(t *testing.T) {
	rl := NewRateLimiter(1, 2, logger.Discard())
	h := rl.Handler(ok())

	do := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/projects", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, do("10.0.0.1:1000").Code)
	assert.Equal(t, http.StatusNoContent, do("10.0.0.1:1001").Code)
	rec := do("10.0.0.1:1002")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	var body httputil.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "rate limit exceeded", body.Error)

	// other callers keep their own bucket
	assert.Equal(t, http.StatusNoContent, do("10.0.0.2:1000").Code)
}

type liveSessions map[string]bool

func (l liveSessions) Binding(id string) (*session.Binding, bool) {
	if !l[id] {
		return nil, false
	}
	return session.NewBinding(""), true
}

func TestRateLimiterKeysBySessionCredential(t *testing.T) {
	rl := NewRateLimiter(1, 1, logger.Discard()).WithSessions(liveSessions{"alice": true, "bob": true})
	h := rl.Handler(ok())

	do := func(token string) int {
		req := httptest.NewRequest(http.MethodGet, "/projects", nil)
		req.RemoteAddr = "10.0.0.1:1000"
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusNoContent, do("alice"))
	assert.Equal(t, http.StatusNoContent, do("bob"))
	assert.Equal(t, http.StatusTooManyRequests, do("alice"))
}
func TestRateLimiterIgnoresUnknownBearers(t *testing.T) {
	rl := NewRateLimiter(1, 1, logger.Discard()).WithSessions(liveSessions{"alice": true})
	h := rl.Handler(ok())

	passed := 0
	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodGet, "/projects", nil)
		req.RemoteAddr = "10.0.0.1:1000"
		req.Header.Set("Authorization", fmt.Sprintf("Bearer forged-%d", i))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code == http.StatusNoContent {
			passed++
		}
	}
	assert.Equal(t, 1, passed)
	assert.Len(t, rl.limiters, 1)

	// a live session from the same host still has its own bucket
	req := httptest.NewRequest(http.MethodGet, "/projects", nil)
	req.RemoteAddr = "10.0.0.1:1000"
	req.Header.Set("Authorization", "Bearer alice")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRateLimiterCleanupDropsIdle(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 1, logger.Discard())
	rl.now = func() time.Time { return now }

	rl.getLimiter("a")
	now = now.Add(5 * time.Minute)
	rl.getLimiter("b")
	now = now.Add(6 * time.Minute)

	assert.Equal(t, 1, rl.Cleanup())
	assert.Len(t, rl.limiters, 1)
	assert.Contains(t, rl.limiters, "b")
}

func TestRateLimiterStartStop(t *testing.T) {
	rl := NewRateLimiter(1, 1, logger.Discard())
	require.NoError(t, rl.Start(context.Background()))
	require.NoError(t, rl.Start(context.Background()))
	require.NoError(t, rl.Stop(context.Background()))
	require.NoError(t, rl.Stop(context.Background()))
}

func TestRecoveryWritesInternalError(t *testing.T) {
	h := Recovery(logger.Discard())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/projects", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body httputil.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal server error", body.Error)
}
