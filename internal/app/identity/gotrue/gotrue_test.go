package gotrue

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/monitaro/pjmanager/internal/app/identity"
)

func newTestProvider(t *testing.T, secret string, h http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	p, err := New(Config{URL: srv.URL, APIKey: "anon", JWTSecret: secret})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return p
}

func TestSignInPassword(t *testing.T) {
	p := newTestProvider(t, "", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/token" || r.URL.Query().Get("grant_type") != "password" {
			t.Errorf("unexpected %s", r.URL)
		}
		if r.Header.Get("apikey") != "anon" {
			t.Errorf("missing apikey")
		}
		w.Write([]byte(`{"access_token":"at","refresh_token":"rt","expires_in":3600,"expires_at":1704070800,"user":{"id":"u1","email":"a@example.com"}}`))
	})
	tok, err := p.SignIn(context.Background(), "a@example.com", "pw")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if tok.AccessToken != "at" || tok.User.Email != "a@example.com" {
		t.Fatalf("token = %+v", tok)
	}
	if tok.ExpiresAt.Unix() != 1704070800 {
		t.Fatalf("expires = %v", tok.ExpiresAt)
	}
}

func TestSignInFailureMessage(t *testing.T) {
	p := newTestProvider(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid login credentials"}`))
	})
	_, err := p.SignIn(context.Background(), "a@example.com", "bad")
	if got := identity.Message(err); got != "Invalid login credentials" {
		t.Fatalf("message = %q", got)
	}
}

func TestVerifyLocalHS256(t *testing.T) {
	var calls int32
	p := newTestProvider(t, "secret", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "u1",
		"email": "a@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	user, err := p.Verify(context.Background(), signed)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if user.ID != "u1" || user.Email != "a@example.com" {
		t.Fatalf("user = %+v", user)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatalf("local verification should not call the server")
	}
}

func TestVerifyFallsBackToUserEndpoint(t *testing.T) {
	p := newTestProvider(t, "secret", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/user" || r.Header.Get("Authorization") != "Bearer opaque" {
			t.Errorf("unexpected %s auth=%q", r.URL.Path, r.Header.Get("Authorization"))
		}
		w.Write([]byte(`{"id":"u2","email":"b@example.com"}`))
	})
	user, err := p.Verify(context.Background(), "opaque")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if user.ID != "u2" {
		t.Fatalf("user = %+v", user)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	p := newTestProvider(t, "secret", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"msg":"invalid JWT"}`))
	})
	signed, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	_, err := p.Verify(context.Background(), signed)
	if !errors.Is(err, identity.ErrInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
}

func TestRecover(t *testing.T) {
	p := newTestProvider(t, "", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/recover" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{}`))
	})
	if err := p.SendPasswordReset(context.Background(), "a@example.com"); err != nil {
		t.Fatalf("recover: %v", err)
	}
}
