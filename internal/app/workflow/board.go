package workflow

import (
	"fmt"
	"sort"
	"time"
)

// EditState is the inline edit row's state.
type EditState string

const (
	EditIdle    EditState = "idle"
	EditEditing EditState = "editing"
	EditSaving  EditState = "saving"
	EditError   EditState = "error"
)

// InlineEdit stages changes to one list row.
type InlineEdit struct {
	State     EditState      `json:"state"`
	ProjectID int64          `json:"project_id,omitempty"`
	Staging   map[string]any `json:"staging,omitempty"`
	LastError string         `json:"last_error,omitempty"`
}

// Begin snapshots a row into staging. Starting on another row drops the
// current staging.
func (e *InlineEdit) Begin(id int64, row map[string]any) error {
	if e.State == EditSaving {
		return fmt.Errorf("%w: begin edit while %s", ErrInvalidTransition, e.State)
	}
	e.State = EditEditing
	e.ProjectID = id
	e.Staging = make(map[string]any, len(row))
	for k, v := range row {
		e.Staging[k] = v
	}
	e.LastError = ""
	return nil
}

// UnknownFieldError rejects a change to a column the staged row does not have.
type UnknownFieldError struct {
	Field string
}

func (e *UnknownFieldError) Error() string {
	return "unknown field " + e.Field
}

// Merge overlays changed fields onto staging. Every key must already be a
// staged column; otherwise nothing is applied.
func (e *InlineEdit) Merge(changes map[string]any) error {
	if e.State != EditEditing && e.State != EditError {
		return fmt.Errorf("%w: change while %s", ErrInvalidTransition, e.State)
	}
	keys := make([]string, 0, len(changes))
	for k := range changes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, ok := e.Staging[k]; !ok {
			return &UnknownFieldError{Field: k}
		}
	}
	for k, v := range changes {
		if k == "id" {
			continue
		}
		e.Staging[k] = v
	}
	e.State = EditEditing
	return nil
}

// BeginSave hands staging to the writer.
func (e *InlineEdit) BeginSave() (int64, map[string]any, error) {
	if e.State != EditEditing && e.State != EditError {
		return 0, nil, fmt.Errorf("%w: save while %s", ErrInvalidTransition, e.State)
	}
	e.State = EditSaving
	staged := make(map[string]any, len(e.Staging))
	for k, v := range e.Staging {
		staged[k] = v
	}
	return e.ProjectID, staged, nil
}

// Saved clears the row after a successful write.
func (e *InlineEdit) Saved() error {
	if e.State != EditSaving {
		return fmt.Errorf("%w: saved while %s", ErrInvalidTransition, e.State)
	}
	*e = InlineEdit{State: EditIdle}
	return nil
}

// SaveFailed keeps staging so the user can fix and retry.
func (e *InlineEdit) SaveFailed(err error) error {
	if e.State != EditSaving {
		return fmt.Errorf("%w: failed while %s", ErrInvalidTransition, e.State)
	}
	e.State = EditError
	if err != nil {
		e.LastError = err.Error()
	}
	return nil
}

// Cancel discards staging without writing.
func (e *InlineEdit) Cancel() error {
	if e.State == EditSaving {
		return fmt.Errorf("%w: cancel while %s", ErrInvalidTransition, e.State)
	}
	*e = InlineEdit{State: EditIdle}
	return nil
}

// Board is one user's view of the project list: the active criteria and the
// inline edit row.
type Board struct {
	Owner     string
	Criteria  map[string]string
	Edit      InlineEdit
	UpdatedAt time.Time
}

// Snapshot returns a copy safe to hand out.
func (b *Board) Snapshot() Board {
	c := *b
	c.Criteria = make(map[string]string, len(b.Criteria))
	for k, v := range b.Criteria {
		c.Criteria[k] = v
	}
	if b.Edit.Staging != nil {
		c.Edit.Staging = make(map[string]any, len(b.Edit.Staging))
		for k, v := range b.Edit.Staging {
			c.Edit.Staging[k] = v
		}
	}
	return c
}
