// Package session tracks signed-in users on the server: one observable
// binding per session, a watcher that keeps its token fresh, and the route
// guard that reads it.
package session

import (
	"sync"

	"github.com/monitaro/pjmanager/internal/app/identity"
)

// State is what a binding publishes.
type State struct {
	User    *identity.User `json:"user"`
	IsAdmin bool           `json:"is_admin"`
	Loading bool           `json:"loading"`
}

// Binding holds the current State of one session. It starts loading and
// settles on the first Publish.
type Binding struct {
	mu         sync.Mutex
	adminEmail string
	state      State
	subs       map[int]chan State
	nextSub    int
}

// NewBinding creates a loading binding. An empty adminEmail makes nobody admin.
func NewBinding(adminEmail string) *Binding {
	return &Binding{
		adminEmail: adminEmail,
		state:      State{Loading: true},
		subs:       make(map[int]chan State),
	}
}

// IsAdmin reports whether email is the configured admin address.
func IsAdmin(adminEmail, email string) bool {
	return adminEmail != "" && email == adminEmail
}

// Publish sets the user (nil when signed out) and notifies subscribers.
func (b *Binding) Publish(user *identity.User) {
	b.mu.Lock()
	defer b.mu.Unlock()
	next := State{}
	if user != nil {
		u := *user
		next.User = &u
		next.IsAdmin = IsAdmin(b.adminEmail, u.Email)
	}
	b.state = next
	for _, ch := range b.subs {
		select {
		case <-ch:
		default:
		}
		ch <- b.copyLocked()
	}
}

// Snapshot returns a copy of the current state.
func (b *Binding) Snapshot() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.copyLocked()
}

// Subscribe returns a channel that always holds the latest state, starting
// with the current one. Call cancel to stop receiving.
func (b *Binding) Subscribe() (<-chan State, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan State, 1)
	ch <- b.copyLocked()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

func (b *Binding) copyLocked() State {
	c := b.state
	if c.User != nil {
		u := *c.User
		c.User = &u
	}
	return c
}
