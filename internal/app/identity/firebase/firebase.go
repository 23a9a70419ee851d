// Package firebase signs users in through the Firebase Identity Toolkit REST API.
package firebase

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/monitaro/pjmanager/internal/app/identity"
	"github.com/monitaro/pjmanager/internal/httputil"
)

const (
	defaultIdentityURL = "https://identitytoolkit.googleapis.com"
	defaultTokenURL    = "https://securetoken.googleapis.com"
	maxBodyBytes       = 1 << 20
)

// Config holds the web API key and optional endpoint overrides.
type Config struct {
	APIKey      string
	IdentityURL string
	TokenURL    string
	HTTPClient  *http.Client
}

// Provider implements identity.Provider.
type Provider struct {
	apiKey   string
	identity *httputil.Client
	tokens   *httputil.Client
	now      func() time.Time
}

var _ identity.Provider = (*Provider)(nil)

// New creates a Provider.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("FIREBASE_API_KEY is required")
	}
	if cfg.IdentityURL == "" {
		cfg.IdentityURL = defaultIdentityURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	return &Provider{
		apiKey:   cfg.APIKey,
		identity: httputil.NewClient(httputil.ClientConfig{BaseURL: cfg.IdentityURL, HTTPClient: cfg.HTTPClient}),
		tokens:   httputil.NewClient(httputil.ClientConfig{BaseURL: cfg.TokenURL, HTTPClient: cfg.HTTPClient}),
		now:      time.Now,
	}, nil
}

func (p *Provider) SignIn(ctx context.Context, email, password string) (identity.Token, error) {
	body, err := p.call(ctx, "sign in", "/v1/accounts:signInWithPassword", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})
	if err != nil {
		return identity.Token{}, err
	}
	res := gjson.ParseBytes(body)
	return identity.Token{
		AccessToken:  res.Get("idToken").String(),
		RefreshToken: res.Get("refreshToken").String(),
		ExpiresAt:    identity.ExpiresIn(p.now(), res.Get("expiresIn").Int()),
		User:         identity.User{ID: res.Get("localId").String(), Email: res.Get("email").String()},
	}, nil
}

func (p *Provider) SendPasswordReset(ctx context.Context, email string) error {
	_, err := p.call(ctx, "password reset", "/v1/accounts:sendOobCode", map[string]any{
		"requestType": "PASSWORD_RESET",
		"email":       email,
	})
	return err
}

// Refresh exchanges a refresh token at the secure token endpoint. The
// response carries no email, so the new ID token is looked up as well.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (identity.Token, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	resp, err := p.tokens.DoRaw(ctx, http.MethodPost, "/v1/token?key="+url.QueryEscape(p.apiKey),
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", nil)
	if err != nil {
		return identity.Token{}, err
	}
	body, err := readBody(resp, "refresh")
	if err != nil {
		return identity.Token{}, err
	}
	res := gjson.ParseBytes(body)
	tok := identity.Token{
		AccessToken:  res.Get("id_token").String(),
		RefreshToken: res.Get("refresh_token").String(),
		ExpiresAt:    identity.ExpiresIn(p.now(), res.Get("expires_in").Int()),
	}
	user, err := p.Verify(ctx, tok.AccessToken)
	if err != nil {
		return identity.Token{}, err
	}
	tok.User = user
	return tok, nil
}

func (p *Provider) Verify(ctx context.Context, accessToken string) (identity.User, error) {
	if accessToken == "" {
		return identity.User{}, identity.ErrInvalidToken
	}
	body, err := p.call(ctx, "lookup", "/v1/accounts:lookup", map[string]any{"idToken": accessToken})
	if err != nil {
		return identity.User{}, fmt.Errorf("%w: %v", identity.ErrInvalidToken, err)
	}
	user := gjson.GetBytes(body, "users.0")
	if !user.Exists() {
		return identity.User{}, identity.ErrInvalidToken
	}
	return identity.User{ID: user.Get("localId").String(), Email: user.Get("email").String()}, nil
}

func (p *Provider) call(ctx context.Context, op, path string, payload map[string]any) ([]byte, error) {
	resp, err := p.identity.Do(ctx, http.MethodPost, path+"?key="+url.QueryEscape(p.apiKey), payload, nil)
	if err != nil {
		return nil, err
	}
	return readBody(resp, op)
}

func readBody(resp *http.Response, op string) ([]byte, error) {
	defer resp.Body.Close()
	body, _, err := httputil.ReadAllWithLimit(resp.Body, maxBodyBytes)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", op, err)
	}
	if resp.StatusCode >= 400 {
		return nil, identity.ParseError(op, resp.StatusCode, body, "error.message", "error_description", "error")
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return body, nil
}
