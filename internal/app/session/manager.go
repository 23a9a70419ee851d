package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/monitaro/pjmanager/internal/app/identity"
	"github.com/monitaro/pjmanager/internal/app/metrics"
	apperrors "github.com/monitaro/pjmanager/internal/errors"
	"github.com/monitaro/pjmanager/pkg/logger"
)

// ErrNotStarted is returned by SignIn before Start or after Stop.
var ErrNotStarted = errors.New("session manager is not running")

type entry struct {
	binding *Binding
	cancel  context.CancelFunc
}

// Manager owns every signed-in session and its refresh watcher.
type Manager struct {
	provider    identity.Provider
	adminEmail  string
	margin      time.Duration
	minInterval time.Duration
	log         *logger.Logger

	mu       sync.Mutex
	sessions map[string]*entry
	base     context.Context
	stop     context.CancelFunc
	wg       sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager)

// WithMinRefreshInterval bounds how soon after a refresh the next one may run.
func WithMinRefreshInterval(d time.Duration) Option {
	return func(m *Manager) { m.minInterval = d }
}

// NewManager creates a Manager. Tokens are refreshed margin before they expire.
func NewManager(provider identity.Provider, adminEmail string, margin time.Duration, log *logger.Logger, opts ...Option) *Manager {
	if log == nil {
		log = logger.NewDefault("session")
	}
	m := &Manager{
		provider:    provider,
		adminEmail:  adminEmail,
		margin:      margin,
		minInterval: time.Second,
		log:         log,
		sessions:    make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name implements system.Service.
func (m *Manager) Name() string { return "session-manager" }

// Start allows sessions to be opened.
func (m *Manager) Start(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stop != nil {
		return nil
	}
	m.base, m.stop = context.WithCancel(context.Background())
	return nil
}

// Stop ends every session and waits for the watchers to exit.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	stop := m.stop
	m.stop, m.base = nil, nil
	for id, e := range m.sessions {
		e.cancel()
		e.binding.Publish(nil)
		delete(m.sessions, id)
	}
	metrics.SetActiveSessions(0)
	m.mu.Unlock()
	if stop == nil {
		return nil
	}
	stop()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SignIn authenticates with the provider and opens a session. It returns
// once the session's binding has settled.
func (m *Manager) SignIn(ctx context.Context, email, password string) (string, State, error) {
	tok, err := m.provider.SignIn(ctx, email, password)
	if err != nil {
		m.log.LogSecurityEvent(ctx, "sign_in_failed", map[string]interface{}{"email": email})
		return "", State{}, apperrors.AuthFailed(identity.Message(err), err)
	}

	m.mu.Lock()
	if m.base == nil {
		m.mu.Unlock()
		return "", State{}, ErrNotStarted
	}
	id := uuid.NewString()
	wctx, cancel := context.WithCancel(m.base)
	e := &entry{binding: NewBinding(m.adminEmail), cancel: cancel}
	m.sessions[id] = e
	metrics.SetActiveSessions(len(m.sessions))
	m.wg.Add(1)
	m.mu.Unlock()

	updates, unsubscribe := e.binding.Subscribe()
	defer unsubscribe()
	go m.watch(wctx, id, e.binding, tok)

	for {
		select {
		case st := <-updates:
			if st.Loading {
				continue
			}
			if st.User == nil {
				return "", st, apperrors.AuthFailed("セッションを確立できませんでした", nil)
			}
			m.log.WithContext(ctx).WithField("session", id).Info("signed in")
			return id, st, nil
		case <-ctx.Done():
			m.SignOut(id)
			return "", State{}, ctx.Err()
		}
	}
}

// Binding returns the binding of session id.
func (m *Manager) Binding(id string) (*Binding, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return e.binding, true
}

// Verify resolves a provider access token that is not a session id.
func (m *Manager) Verify(ctx context.Context, accessToken string) (State, error) {
	user, err := m.provider.Verify(ctx, accessToken)
	if err != nil {
		return State{}, err
	}
	return State{User: &user, IsAdmin: IsAdmin(m.adminEmail, user.Email)}, nil
}

// SendPasswordReset asks the provider to mail a reset link.
func (m *Manager) SendPasswordReset(ctx context.Context, email string) error {
	if err := m.provider.SendPasswordReset(ctx, email); err != nil {
		return apperrors.AuthFailed(identity.Message(err), err)
	}
	return nil
}

// SignOut ends session id. Unknown ids are ignored.
func (m *Manager) SignOut(id string) {
	m.mu.Lock()
	e, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
		metrics.SetActiveSessions(len(m.sessions))
	}
	m.mu.Unlock()
	if ok {
		e.cancel()
		e.binding.Publish(nil)
	}
}

// Active returns the number of open sessions.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// watch verifies the token once, publishes the user and then refreshes the
// token margin before each expiry. Any failure publishes a signed-out state
// and closes the session.
func (m *Manager) watch(ctx context.Context, id string, b *Binding, tok identity.Token) {
	defer m.wg.Done()
	log := m.log.WithField("session", id)

	user, err := m.provider.Verify(ctx, tok.AccessToken)
	if err != nil {
		log.WithError(err).Warn("session token rejected")
		b.Publish(nil)
		m.drop(id)
		return
	}
	b.Publish(&user)

	for {
		wait := time.Until(tok.ExpiresAt.Add(-m.margin))
		if wait < m.minInterval {
			wait = m.minInterval
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		next, err := m.provider.Refresh(ctx, tok.RefreshToken)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.WithError(err).Warn("session refresh failed")
			b.Publish(nil)
			m.drop(id)
			return
		}
		tok = next
		b.Publish(&tok.User)
		log.Debug("session token refreshed")
	}
}

func (m *Manager) drop(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.sessions[id]; ok {
		e.cancel()
		delete(m.sessions, id)
		metrics.SetActiveSessions(len(m.sessions))
	}
}
