// Package identity defines the sign-in provider contract shared by the
// Firebase, Supabase Auth and in-memory backends.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// User is the signed-in principal.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Token is the credential set returned by sign-in and refresh.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         User
}

// Provider authenticates users against an external identity service.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (Token, error)
	SendPasswordReset(ctx context.Context, email string) error
	Refresh(ctx context.Context, refreshToken string) (Token, error)
	Verify(ctx context.Context, accessToken string) (User, error)
}

// ErrInvalidToken is returned by Verify for tokens the provider rejects.
var ErrInvalidToken = errors.New("invalid token")

// Error is a rejection from the provider. Message is the provider's own
// text, e.g. INVALID_PASSWORD, and is shown to the user as is.
type Error struct {
	Op      string
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Message, e.Status)
}

// Message returns the provider message carried by err, or err's text.
func Message(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// ParseError builds an Error from a JSON error body. The first non-empty
// value among paths is used as the message.
func ParseError(op string, status int, body []byte, paths ...string) *Error {
	for _, path := range paths {
		if msg := gjson.GetBytes(body, path).String(); msg != "" {
			return &Error{Op: op, Status: status, Message: msg}
		}
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = fmt.Sprintf("status %d", status)
	}
	return &Error{Op: op, Status: status, Message: msg}
}

// ExpiresIn converts a lifetime in seconds into an absolute time.
func ExpiresIn(now time.Time, seconds int64) time.Time {
	if seconds <= 0 {
		seconds = 3600
	}
	return now.Add(time.Duration(seconds) * time.Second)
}
