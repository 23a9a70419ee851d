package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/monitaro/pjmanager/internal/app/identity"
)

func TestSignInRefreshVerify(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := New(WithTokenTTL(time.Minute), WithClock(func() time.Time { return now }))
	p.AddUser("a@example.com", "pw")
	ctx := context.Background()

	_, err := p.SignIn(ctx, "a@example.com", "bad")
	if identity.Message(err) != "INVALID_PASSWORD" {
		t.Fatalf("err = %v", err)
	}

	tok, err := p.SignIn(ctx, "A@example.com", "pw")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if u, err := p.Verify(ctx, tok.AccessToken); err != nil || u.Email != "a@example.com" {
		t.Fatalf("verify = %v %v", u, err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := p.Verify(ctx, tok.AccessToken); !errors.Is(err, identity.ErrInvalidToken) {
		t.Fatalf("expired token accepted")
	}

	next, err := p.Refresh(ctx, tok.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if _, err := p.Refresh(ctx, tok.RefreshToken); err == nil {
		t.Fatalf("refresh token reused")
	}
	if _, err := p.Verify(ctx, next.AccessToken); err != nil {
		t.Fatalf("refreshed token: %v", err)
	}
}

func TestPasswordReset(t *testing.T) {
	p := New()
	p.AddUser("a@example.com", "pw")
	if err := p.SendPasswordReset(context.Background(), "a@example.com"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := p.SendPasswordReset(context.Background(), "x@example.com"); err == nil {
		t.Fatalf("unknown address accepted")
	}
	if got := p.Resets(); len(got) != 1 || got[0] != "a@example.com" {
		t.Fatalf("resets = %v", got)
	}
}
