// Package workflow holds the per-user state machines behind project
// creation and the project list.
package workflow

import (
	"errors"
	"fmt"
	"time"

	"github.com/monitaro/pjmanager/internal/app/domain/project"
	"github.com/monitaro/pjmanager/internal/app/files"
)

// ErrInvalidTransition is returned when an event does not apply to the
// current state.
var ErrInvalidTransition = errors.New("invalid state transition")

// ErrNotFound is returned for unknown or foreign drafts.
var ErrNotFound = errors.New("draft not found")

// DraftState is a step of the two-step create flow.
type DraftState string

const (
	DraftEditing    DraftState = "editing"
	DraftConfirming DraftState = "confirming"
	DraftSaving     DraftState = "saving"
	DraftDone       DraftState = "done"
	DraftFailed     DraftState = "failed"
)

// Draft is a new project on its way to the store. Input is what the user
// entered; Prepared adds the generated number, date and status and is what
// the confirmation view shows and what gets inserted.
type Draft struct {
	ID          string
	Owner       string
	State       DraftState
	CloneOf     int64
	Input       project.Project
	Prepared    project.Project
	Attachments map[files.Field]files.Attachment
	Result      *project.Project
	Warnings    []string
	LastError   string
	UpdatedAt   time.Time
}

func (d *Draft) transition(event string, to DraftState, from ...DraftState) error {
	for _, s := range from {
		if d.State == s {
			d.State = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s while %s", ErrInvalidTransition, event, d.State)
}

// Edit records input without submitting it. Allowed while editing.
func (d *Draft) Edit(input project.Project) error {
	if d.State != DraftEditing {
		return fmt.Errorf("%w: edit while %s", ErrInvalidTransition, d.State)
	}
	d.Input = input
	return nil
}

// Submit moves a validated draft to confirmation.
func (d *Draft) Submit(input, prepared project.Project) error {
	if err := d.transition("submit", DraftConfirming, DraftEditing); err != nil {
		return err
	}
	d.Input = input
	d.Prepared = prepared
	d.LastError = ""
	return nil
}

// Decline returns to editing with the input kept.
func (d *Draft) Decline() error {
	if err := d.transition("decline", DraftEditing, DraftConfirming, DraftFailed); err != nil {
		return err
	}
	d.Prepared = project.Project{}
	return nil
}

// BeginSave starts writing. A failed save may be retried.
func (d *Draft) BeginSave() error {
	return d.transition("confirm", DraftSaving, DraftConfirming, DraftFailed)
}

// Complete records the stored project.
func (d *Draft) Complete(p project.Project, warnings []string) error {
	if err := d.transition("complete", DraftDone, DraftSaving); err != nil {
		return err
	}
	d.Result = &p
	d.Warnings = warnings
	d.LastError = ""
	d.Attachments = nil
	return nil
}

// Fail records a failed insert.
func (d *Draft) Fail(err error) error {
	if terr := d.transition("fail", DraftFailed, DraftSaving); terr != nil {
		return terr
	}
	if err != nil {
		d.LastError = err.Error()
	}
	return nil
}

// Snapshot returns a copy safe to hand out.
func (d *Draft) Snapshot() Draft {
	c := *d
	if d.Attachments != nil {
		c.Attachments = make(map[files.Field]files.Attachment, len(d.Attachments))
		for k, v := range d.Attachments {
			c.Attachments[k] = v
		}
	}
	c.Warnings = append([]string(nil), d.Warnings...)
	return c
}
