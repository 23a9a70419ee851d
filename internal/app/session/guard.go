package session

import (
	"context"
	"net/http"
	"strings"

	apperrors "github.com/monitaro/pjmanager/internal/errors"
	"github.com/monitaro/pjmanager/internal/httputil"
	"github.com/monitaro/pjmanager/pkg/logger"
)

// CookieName carries the session id.
const CookieName = "pj_session"

// Messages returned by the guard.
const (
	MsgLoginRequired = "ログインが必要です"
	MsgAdminOnly     = "管理者権限がありません。"
)

// PublicPaths are reachable without a session.
var PublicPaths = []string{"/", "/login", "/auth/login", "/auth/password-reset", "/healthz", "/metrics", "/options"}

type ctxKey struct{}

type resolved struct {
	id    string
	state State
}

// FromContext returns the session state attached by the guard.
func FromContext(ctx context.Context) (State, bool) {
	r, ok := ctx.Value(ctxKey{}).(resolved)
	if !ok || r.state.User == nil {
		return State{}, false
	}
	return r.state, true
}

// IDFromContext returns the session id attached by the guard. It is empty
// for requests authenticated with a provider token.
func IDFromContext(ctx context.Context) string {
	r, _ := ctx.Value(ctxKey{}).(resolved)
	return r.id
}

// WithState attaches st to ctx the way the guard does.
func WithState(ctx context.Context, id string, st State) context.Context {
	if st.User != nil {
		ctx = logger.WithUser(ctx, st.User.Email)
	}
	return context.WithValue(ctx, ctxKey{}, resolved{id: id, state: st})
}

// RequestToken returns the session cookie value or the bearer credential.
func RequestToken(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	auth := r.Header.Get("Authorization")
	if scheme, value, ok := strings.Cut(auth, " "); ok && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(value)
	}
	return ""
}

// Guard resolves the caller's session and enforces sign-in on every path
// outside PublicPaths. A loading session gets an empty 503; a missing one is
// redirected to / for browsers and answered 401 for API clients.
func (m *Manager) Guard(next http.Handler) http.Handler {
	public := make(map[string]struct{}, len(PublicPaths))
	for _, p := range PublicPaths {
		public[p] = struct{}{}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, st, found := m.resolve(r)
		ctx := r.Context()
		if found {
			ctx = WithState(ctx, id, st)
		}
		if _, ok := public[r.URL.Path]; ok || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}
		if found && st.Loading {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if !found || st.User == nil {
			m.log.LogSecurityEvent(ctx, "unauthenticated", map[string]interface{}{"path": r.URL.Path})
			if wantsHTML(r) {
				http.Redirect(w, r, "/", http.StatusSeeOther)
				return
			}
			httputil.WriteError(w, http.StatusUnauthorized, apperrors.Unauthorized(MsgLoginRequired))
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin answers 403 unless the guarded caller is the admin.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st, ok := FromContext(r.Context())
		if !ok {
			httputil.WriteError(w, http.StatusUnauthorized, apperrors.Unauthorized(MsgLoginRequired))
			return
		}
		if !st.IsAdmin {
			httputil.WriteError(w, http.StatusForbidden, apperrors.Forbidden(MsgAdminOnly))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Manager) resolve(r *http.Request) (string, State, bool) {
	token := RequestToken(r)
	if token == "" {
		return "", State{}, false
	}
	if b, ok := m.Binding(token); ok {
		return token, b.Snapshot(), true
	}
	if _, err := r.Cookie(CookieName); err == nil {
		return "", State{}, false
	}
	st, err := m.Verify(r.Context(), token)
	if err != nil {
		return "", State{}, false
	}
	return "", st, true
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
