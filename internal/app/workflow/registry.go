package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/monitaro/pjmanager/pkg/logger"
)

// Registry owns every user's drafts and board. Entries idle for longer
// than the TTL are swept by the background loop started with Start.
type Registry struct {
	mu     sync.Mutex
	drafts map[string]*Draft
	boards map[string]*Board

	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
	log      *logger.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithSweepInterval sets how often idle entries are swept.
func WithSweepInterval(d time.Duration) Option {
	return func(r *Registry) { r.interval = d }
}

// NewRegistry creates a Registry. A zero ttl keeps entries forever.
func NewRegistry(ttl time.Duration, log *logger.Logger, opts ...Option) *Registry {
	if log == nil {
		log = logger.NewDefault("workflow")
	}
	r := &Registry{
		drafts: make(map[string]*Draft),
		boards: make(map[string]*Board),
		ttl:    ttl,
		now:    time.Now,
		log:    log,
	}
	r.interval = ttl / 4
	if r.interval < time.Minute {
		r.interval = time.Minute
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewDraft opens a draft for owner in the editing state.
func (r *Registry) NewDraft(owner string, cloneOf int64) Draft {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := &Draft{
		ID:        uuid.NewString(),
		Owner:     owner,
		State:     DraftEditing,
		CloneOf:   cloneOf,
		UpdatedAt: r.now(),
	}
	r.drafts[d.ID] = d
	return d.Snapshot()
}

// Draft returns a copy of owner's draft id.
func (r *Registry) Draft(owner, id string) (Draft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drafts[id]
	if !ok || d.Owner != owner {
		return Draft{}, ErrNotFound
	}
	return d.Snapshot(), nil
}

// UpdateDraft applies fn to owner's draft under the registry lock and
// returns the resulting copy. fn must not block.
func (r *Registry) UpdateDraft(owner, id string, fn func(*Draft) error) (Draft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drafts[id]
	if !ok || d.Owner != owner {
		return Draft{}, ErrNotFound
	}
	err := fn(d)
	d.UpdatedAt = r.now()
	return d.Snapshot(), err
}

// DeleteDraft discards owner's draft. A draft being saved cannot be deleted.
func (r *Registry) DeleteDraft(owner, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drafts[id]
	if !ok || d.Owner != owner {
		return ErrNotFound
	}
	if d.State == DraftSaving {
		return ErrInvalidTransition
	}
	delete(r.drafts, id)
	return nil
}

// Board returns a copy of owner's board, creating an empty one if needed.
func (r *Registry) Board(owner string) Board {
	b, _ := r.UpdateBoard(owner, func(*Board) error { return nil })
	return b
}

// UpdateBoard applies fn to owner's board under the registry lock.
func (r *Registry) UpdateBoard(owner string, fn func(*Board) error) (Board, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.boards[owner]
	if !ok {
		b = &Board{Owner: owner, Criteria: map[string]string{}, Edit: InlineEdit{State: EditIdle}}
		r.boards[owner] = b
	}
	err := fn(b)
	b.UpdatedAt = r.now()
	return b.Snapshot(), err
}

// Sweep drops drafts and boards idle for longer than the TTL and returns
// how many were removed. Entries mid-save are kept.
func (r *Registry) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-r.ttl)
	removed := 0
	for id, d := range r.drafts {
		if d.State != DraftSaving && d.UpdatedAt.Before(cutoff) {
			delete(r.drafts, id)
			removed++
		}
	}
	for owner, b := range r.boards {
		if b.Edit.State != EditSaving && b.UpdatedAt.Before(cutoff) {
			delete(r.boards, owner)
			removed++
		}
	}
	return removed
}

// Name implements system.Service.
func (r *Registry) Name() string { return "workflow-sweeper" }

// Start launches the sweep loop.
func (r *Registry) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil || r.ttl <= 0 {
		return nil
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.loop(loopCtx, r.done)
	r.log.WithField("ttl", r.ttl.String()).Info("workflow sweeper started")
	return nil
}

// Stop ends the sweep loop and waits for it.
func (r *Registry) Stop(ctx context.Context) error {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Registry) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.log.WithField("removed", n).Debug("swept idle workflow state")
			}
		}
	}
}
