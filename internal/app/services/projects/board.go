package projects

import (
	"context"
	"errors"

	"github.com/monitaro/pjmanager/internal/app/domain/project"
	"github.com/monitaro/pjmanager/internal/app/forms"
	"github.com/monitaro/pjmanager/internal/app/workflow"
	apperrors "github.com/monitaro/pjmanager/internal/errors"
	"github.com/monitaro/pjmanager/pkg/logger"
)

// Board runs the project list for each user: the remembered criteria and
// the inline edit row.
type Board struct {
	projects *Service
	registry *workflow.Registry
	log      *logger.Logger
}

// NewBoard creates a Board.
func NewBoard(projects *Service, registry *workflow.Registry, log *logger.Logger) *Board {
	if log == nil {
		log = logger.NewDefault("board")
	}
	return &Board{projects: projects, registry: registry, log: log}
}

// Search remembers c as owner's criteria and runs it.
func (b *Board) Search(ctx context.Context, owner string, c Criteria) (Result, error) {
	c = c.Clean()
	if _, err := c.Query(); err != nil {
		return Result{}, err
	}
	if _, err := b.registry.UpdateBoard(owner, func(bd *workflow.Board) error {
		bd.Criteria = c
		return nil
	}); err != nil {
		return Result{}, err
	}
	return b.projects.Search(ctx, c)
}

// Reset clears owner's criteria and runs the unfiltered list.
func (b *Board) Reset(ctx context.Context, owner string) (Result, error) {
	return b.Search(ctx, owner, Criteria{})
}

// Refresh re-runs owner's remembered criteria.
func (b *Board) Refresh(ctx context.Context, owner string) (Result, error) {
	return b.projects.Search(ctx, Criteria(b.registry.Board(owner).Criteria))
}

// State returns owner's board.
func (b *Board) State(owner string) workflow.Board {
	return b.registry.Board(owner)
}

// MsgUnknownEditField rejects an inline change to a column the row does not have.
const MsgUnknownEditField = "編集できない項目です"

// BeginEdit stages project id for inline editing in its column shape, with
// accessories in accessory_1..accessory_10 and dates as yyyy-mm-dd.
func (b *Board) BeginEdit(ctx context.Context, owner string, id int64) (workflow.Board, error) {
	p, err := b.projects.Get(ctx, id)
	if err != nil {
		return workflow.Board{}, err
	}
	row, err := editRow(p)
	if err != nil {
		return workflow.Board{}, apperrors.Internal("stage project", err)
	}
	bd, err := b.registry.UpdateBoard(owner, func(bd *workflow.Board) error {
		return bd.Edit.Begin(id, row)
	})
	return bd, editError(err)
}

// Change merges changed fields into the staged row.
func (b *Board) Change(owner string, changes map[string]any) (workflow.Board, error) {
	bd, err := b.registry.UpdateBoard(owner, func(bd *workflow.Board) error {
		return bd.Edit.Merge(changes)
	})
	return bd, editError(err)
}

// Cancel drops the staged row without writing.
func (b *Board) Cancel(owner string) (workflow.Board, error) {
	bd, err := b.registry.UpdateBoard(owner, func(bd *workflow.Board) error {
		return bd.Edit.Cancel()
	})
	return bd, editError(err)
}

// Save writes the staged row as a full update and returns the refreshed list.
// On failure the row stays staged in the error state.
func (b *Board) Save(ctx context.Context, owner string) (Result, workflow.Board, error) {
	var (
		id     int64
		staged map[string]any
	)
	bd, err := b.registry.UpdateBoard(owner, func(bd *workflow.Board) error {
		var err error
		id, staged, err = bd.Edit.BeginSave()
		return err
	})
	if err != nil {
		return Result{}, bd, editError(err)
	}

	p, err := project.FromColumns(staged)
	if err != nil {
		err = apperrors.Validation(map[string]string{"staging": err.Error()})
	} else {
		_, err = b.projects.Update(ctx, id, p)
	}

	bd, ferr := b.registry.UpdateBoard(owner, func(bd *workflow.Board) error {
		if err != nil {
			return bd.Edit.SaveFailed(err)
		}
		return bd.Edit.Saved()
	})
	if ferr != nil {
		b.log.WithContext(ctx).WithError(ferr).Warn("inline edit state lost while saving")
	}
	if err != nil {
		b.log.WithContext(ctx).WithField("project_id", id).WithError(err).Info("inline edit rejected")
		return Result{}, bd, err
	}

	res, err := b.projects.Search(ctx, Criteria(bd.Criteria))
	return res, bd, err
}

func editRow(p project.Project) (map[string]any, error) {
	for _, ref := range p.Dates() {
		if *ref.Value == nil {
			continue
		}
		if d, ok := forms.ParseDate(**ref.Value); ok {
			*ref.Value = &d
		}
	}
	return project.Columns(p)
}

func editError(err error) error {
	if errors.Is(err, workflow.ErrInvalidTransition) {
		return apperrors.InvalidState(err.Error())
	}
	var unknown *workflow.UnknownFieldError
	if errors.As(err, &unknown) {
		return apperrors.Validation(map[string]string{unknown.Field: MsgUnknownEditField})
	}
	return err
}
