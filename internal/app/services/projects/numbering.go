package projects

import (
	"sync"
	"time"

	"github.com/monitaro/pjmanager/internal/app/forms"
)

// Numberer issues project numbers of the form PJ + yyMMddHHmmss in local
// time. Numbers never repeat within a process: a request landing in the
// same second as the previous number takes the next second.
type Numberer struct {
	mu   sync.Mutex
	loc  *time.Location
	now  func() time.Time
	last time.Time
}

// NewNumberer creates a Numberer for loc. A nil now uses time.Now.
func NewNumberer(loc *time.Location, now func() time.Time) *Numberer {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &Numberer{loc: loc, now: now}
}

// Next returns a fresh project number.
func (n *Numberer) Next() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	stamp := n.now().In(n.loc).Truncate(time.Second)
	if !stamp.After(n.last) {
		stamp = n.last.Add(time.Second)
	}
	n.last = stamp
	return "PJ" + stamp.Format("060102150405")
}

// Today returns the local date as yyyy-mm-dd.
func (n *Numberer) Today() string {
	return n.now().In(n.loc).Format(forms.DateLayout)
}
