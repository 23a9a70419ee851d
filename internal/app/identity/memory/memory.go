// Package memory is an in-process identity provider for tests and local runs.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/monitaro/pjmanager/internal/app/identity"
)

// Provider keeps users and issued tokens in memory.
type Provider struct {
	mu       sync.Mutex
	users    map[string]account
	access   map[string]grant
	refresh  map[string]identity.User
	resets   []string
	ttl      time.Duration
	now      func() time.Time
	failNext error
}

type account struct {
	user     identity.User
	password string
}

type grant struct {
	user    identity.User
	expires time.Time
}

var _ identity.Provider = (*Provider)(nil)

// Option configures a Provider.
type Option func(*Provider)

// WithTokenTTL sets the access token lifetime. The default is one hour.
func WithTokenTTL(d time.Duration) Option {
	return func(p *Provider) { p.ttl = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// New creates an empty Provider.
func New(opts ...Option) *Provider {
	p := &Provider{
		users:   map[string]account{},
		access:  map[string]grant{},
		refresh: map[string]identity.User{},
		ttl:     time.Hour,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AddUser registers an account and returns its user.
func (p *Provider) AddUser(email, password string) identity.User {
	p.mu.Lock()
	defer p.mu.Unlock()
	u := identity.User{ID: uuid.NewString(), Email: email}
	p.users[strings.ToLower(email)] = account{user: u, password: password}
	return u
}

// FailNextRefresh makes the next Refresh return err.
func (p *Provider) FailNextRefresh(err error) {
	p.mu.Lock()
	p.failNext = err
	p.mu.Unlock()
}

// Resets returns the addresses password resets were requested for.
func (p *Provider) Resets() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.resets...)
}

func (p *Provider) SignIn(_ context.Context, email, password string) (identity.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	acc, ok := p.users[strings.ToLower(email)]
	if !ok {
		return identity.Token{}, &identity.Error{Op: "sign in", Status: 400, Message: "EMAIL_NOT_FOUND"}
	}
	if acc.password != password {
		return identity.Token{}, &identity.Error{Op: "sign in", Status: 400, Message: "INVALID_PASSWORD"}
	}
	return p.issueLocked(acc.user), nil
}

func (p *Provider) SendPasswordReset(_ context.Context, email string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.users[strings.ToLower(email)]; !ok {
		return &identity.Error{Op: "password reset", Status: 400, Message: "EMAIL_NOT_FOUND"}
	}
	p.resets = append(p.resets, email)
	return nil
}

func (p *Provider) Refresh(_ context.Context, refreshToken string) (identity.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failNext; err != nil {
		p.failNext = nil
		return identity.Token{}, err
	}
	user, ok := p.refresh[refreshToken]
	if !ok {
		return identity.Token{}, &identity.Error{Op: "refresh", Status: 400, Message: "INVALID_REFRESH_TOKEN"}
	}
	delete(p.refresh, refreshToken)
	return p.issueLocked(user), nil
}

func (p *Provider) Verify(_ context.Context, accessToken string) (identity.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	g, ok := p.access[accessToken]
	if !ok || !p.now().Before(g.expires) {
		return identity.User{}, identity.ErrInvalidToken
	}
	return g.user, nil
}

func (p *Provider) issueLocked(user identity.User) identity.Token {
	tok := identity.Token{
		AccessToken:  uuid.NewString(),
		RefreshToken: uuid.NewString(),
		ExpiresAt:    p.now().Add(p.ttl),
		User:         user,
	}
	p.access[tok.AccessToken] = grant{user: user, expires: tok.ExpiresAt}
	p.refresh[tok.RefreshToken] = user
	return tok
}
