// Package gotrue signs users in through Supabase Auth (GoTrue).
package gotrue

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tidwall/gjson"

	"github.com/monitaro/pjmanager/internal/app/identity"
	"github.com/monitaro/pjmanager/internal/httputil"
)

const maxBodyBytes = 1 << 20

// Config holds the project URL, the anon key and the optional JWT secret
// used to verify access tokens without a round trip.
type Config struct {
	URL        string
	APIKey     string
	JWTSecret  string
	HTTPClient *http.Client
}

// Provider implements identity.Provider.
type Provider struct {
	client    *httputil.Client
	apiKey    string
	jwtSecret []byte
	now       func() time.Time
}

var _ identity.Provider = (*Provider)(nil)

// New creates a Provider.
func New(cfg Config) (*Provider, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("SUPABASE_URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("supabase API key is required")
	}
	header := http.Header{}
	header.Set("apikey", cfg.APIKey)
	header.Set("Accept", "application/json")
	return &Provider{
		client: httputil.NewClient(httputil.ClientConfig{
			BaseURL:    strings.TrimRight(cfg.URL, "/") + "/auth/v1",
			Header:     header,
			HTTPClient: cfg.HTTPClient,
			Timeout:    10 * time.Second,
		}),
		apiKey:    cfg.APIKey,
		jwtSecret: []byte(cfg.JWTSecret),
		now:       time.Now,
	}, nil
}

func (p *Provider) SignIn(ctx context.Context, email, password string) (identity.Token, error) {
	body, err := p.call(ctx, "sign in", http.MethodPost, "/token?grant_type=password",
		map[string]string{"email": email, "password": password}, "")
	if err != nil {
		return identity.Token{}, err
	}
	return p.token(body), nil
}

func (p *Provider) SendPasswordReset(ctx context.Context, email string) error {
	_, err := p.call(ctx, "password reset", http.MethodPost, "/recover", map[string]string{"email": email}, "")
	return err
}

func (p *Provider) Refresh(ctx context.Context, refreshToken string) (identity.Token, error) {
	body, err := p.call(ctx, "refresh", http.MethodPost, "/token?grant_type=refresh_token",
		map[string]string{"refresh_token": refreshToken}, "")
	if err != nil {
		return identity.Token{}, err
	}
	return p.token(body), nil
}

// Verify checks the token signature locally when a JWT secret is configured
// and falls back to GET /auth/v1/user otherwise.
func (p *Provider) Verify(ctx context.Context, accessToken string) (identity.User, error) {
	if accessToken == "" {
		return identity.User{}, identity.ErrInvalidToken
	}
	if len(p.jwtSecret) > 0 {
		if user, err := p.verifyLocal(accessToken); err == nil {
			return user, nil
		}
	}
	body, err := p.call(ctx, "lookup", http.MethodGet, "/user", nil, accessToken)
	if err != nil {
		return identity.User{}, fmt.Errorf("%w: %v", identity.ErrInvalidToken, err)
	}
	res := gjson.ParseBytes(body)
	return identity.User{ID: res.Get("id").String(), Email: res.Get("email").String()}, nil
}

func (p *Provider) verifyLocal(token string) (identity.User, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return p.jwtSecret, nil
	}, jwt.WithTimeFunc(p.now))
	if err != nil {
		return identity.User{}, fmt.Errorf("jwt parse: %w", err)
	}
	if !parsed.Valid {
		return identity.User{}, identity.ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	if sub == "" {
		return identity.User{}, identity.ErrInvalidToken
	}
	return identity.User{ID: sub, Email: email}, nil
}

func (p *Provider) token(body []byte) identity.Token {
	res := gjson.ParseBytes(body)
	expires := identity.ExpiresIn(p.now(), res.Get("expires_in").Int())
	if at := res.Get("expires_at").Int(); at > 0 {
		expires = time.Unix(at, 0)
	}
	return identity.Token{
		AccessToken:  res.Get("access_token").String(),
		RefreshToken: res.Get("refresh_token").String(),
		ExpiresAt:    expires,
		User:         identity.User{ID: res.Get("user.id").String(), Email: res.Get("user.email").String()},
	}
}

func (p *Provider) call(ctx context.Context, op, method, path string, payload interface{}, bearer string) ([]byte, error) {
	if bearer == "" {
		bearer = p.apiKey
	}
	extra := http.Header{"Authorization": {"Bearer " + bearer}}
	resp, err := p.client.Do(ctx, method, path, payload, extra)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, _, err := httputil.ReadAllWithLimit(resp.Body, maxBodyBytes)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", op, err)
	}
	if resp.StatusCode >= 400 {
		return nil, identity.ParseError(op, resp.StatusCode, data, "error_description", "msg", "message", "error")
	}
	return data, nil
}
