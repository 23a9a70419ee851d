package projects

import (
	"context"
	"errors"
	"fmt"

	"github.com/monitaro/pjmanager/internal/app/domain/project"
	"github.com/monitaro/pjmanager/internal/app/files"
	"github.com/monitaro/pjmanager/internal/app/workflow"
	apperrors "github.com/monitaro/pjmanager/internal/errors"
	"github.com/monitaro/pjmanager/pkg/logger"
)

// Attacher stores an uploaded file against a project.
type Attacher interface {
	Attach(ctx context.Context, projectID int64, field files.Field, a files.Attachment) (files.Ref, error)
}

// Notifier is told about every project created through a draft.
type Notifier interface {
	ProjectCreated(ctx context.Context, p project.Project) error
}

// Drafts drives the two-step create flow on top of the workflow registry.
type Drafts struct {
	projects *Service
	registry *workflow.Registry
	attacher Attacher
	notifier Notifier
	log      *logger.Logger
}

// NewDrafts creates the create-flow coordinator. attacher and notifier may be nil.
func NewDrafts(projects *Service, registry *workflow.Registry, attacher Attacher, notifier Notifier, log *logger.Logger) *Drafts {
	if log == nil {
		log = logger.NewDefault("drafts")
	}
	return &Drafts{projects: projects, registry: registry, attacher: attacher, notifier: notifier, log: log}
}

// Start opens a draft for owner and submits input. With cloneOf set the
// clone prefill of that project is used as the base and input overrides it.
// A validation failure leaves the draft editing and returns both.
func (d *Drafts) Start(ctx context.Context, owner string, input project.Project, cloneOf int64, attachments map[files.Field]files.Attachment) (workflow.Draft, error) {
	if cloneOf > 0 {
		base, err := d.projects.Clone(ctx, cloneOf)
		if err != nil {
			return workflow.Draft{}, err
		}
		if input, err = overlay(base, input); err != nil {
			return workflow.Draft{}, apperrors.Internal("merge clone", err)
		}
	}
	draft := d.registry.NewDraft(owner, cloneOf)
	return d.submit(ctx, owner, draft.ID, input, attachments)
}

// Resubmit replaces the input of an editing draft and submits it again.
// Attachments are kept when none are given.
func (d *Drafts) Resubmit(ctx context.Context, owner, id string, input project.Project, attachments map[files.Field]files.Attachment) (workflow.Draft, error) {
	return d.submit(ctx, owner, id, input, attachments)
}

func (d *Drafts) submit(ctx context.Context, owner, id string, input project.Project, attachments map[files.Field]files.Attachment) (workflow.Draft, error) {
	prepared, invalid := d.projects.Prepare(input)
	draft, err := d.registry.UpdateDraft(owner, id, func(dr *workflow.Draft) error {
		if dr.State != workflow.DraftEditing {
			return fmt.Errorf("%w: submit while %s", workflow.ErrInvalidTransition, dr.State)
		}
		if len(attachments) > 0 {
			dr.Attachments = attachments
		}
		if invalid != nil {
			return dr.Edit(input)
		}
		return dr.Submit(input, prepared)
	})
	if err != nil {
		return draft, draftError(id, err)
	}
	if invalid != nil {
		if se := apperrors.GetServiceError(invalid); se != nil {
			return draft, se.WithDetails("draft_id", id)
		}
		return draft, invalid
	}
	d.log.WithContext(ctx).
		WithField("draft_id", id).
		WithField("pj_number", draft.Prepared.Number).
		Debug("draft submitted")
	return draft, nil
}

// Decline goes back to editing with the input kept.
func (d *Drafts) Decline(owner, id string) (workflow.Draft, error) {
	draft, err := d.registry.UpdateDraft(owner, id, func(dr *workflow.Draft) error {
		return dr.Decline()
	})
	return draft, draftError(id, err)
}

// Get returns owner's draft.
func (d *Drafts) Get(owner, id string) (workflow.Draft, error) {
	draft, err := d.registry.Draft(owner, id)
	return draft, draftError(id, err)
}

// Discard drops owner's draft.
func (d *Drafts) Discard(owner, id string) error {
	return draftError(id, d.registry.DeleteDraft(owner, id))
}

// Confirm inserts the prepared project, then uploads the attachments and
// sends the notification. Only the insert can fail the draft; later steps
// are reported as warnings on the completed draft.
func (d *Drafts) Confirm(ctx context.Context, owner, id string) (workflow.Draft, error) {
	draft, err := d.registry.UpdateDraft(owner, id, func(dr *workflow.Draft) error {
		return dr.BeginSave()
	})
	if err != nil {
		return draft, draftError(id, err)
	}

	created, err := d.projects.Insert(ctx, draft.Prepared)
	if err != nil {
		failed, ferr := d.registry.UpdateDraft(owner, id, func(dr *workflow.Draft) error {
			return dr.Fail(err)
		})
		if ferr != nil {
			d.log.WithContext(ctx).WithError(ferr).Warn("draft lost while saving")
		}
		return failed, err
	}

	var warnings []string
	attached := false
	for _, field := range files.Fields {
		a, ok := draft.Attachments[field]
		if !ok || d.attacher == nil {
			continue
		}
		if _, err := d.attacher.Attach(ctx, created.ID, field, a); err != nil {
			warnings = append(warnings, fmt.Sprintf("%s のアップロードに失敗しました: %s", a.Name, message(err)))
			continue
		}
		attached = true
	}
	if attached {
		if refreshed, err := d.projects.Get(ctx, created.ID); err == nil {
			created = refreshed
		}
	}
	if d.notifier != nil {
		if err := d.notifier.ProjectCreated(ctx, created); err != nil {
			warnings = append(warnings, "通知メールの送信に失敗しました: "+message(err))
		}
	}

	draft, err = d.registry.UpdateDraft(owner, id, func(dr *workflow.Draft) error {
		return dr.Complete(created, warnings)
	})
	if err != nil {
		return draft, draftError(id, err)
	}
	d.log.WithContext(ctx).
		WithField("draft_id", id).
		WithField("project_id", created.ID).
		WithField("warnings", len(warnings)).
		Info("draft confirmed")
	return draft, nil
}

// overlay returns base with every non-empty field of input applied on top.
func overlay(base, input project.Project) (project.Project, error) {
	merged, err := project.Columns(base)
	if err != nil {
		return project.Project{}, err
	}
	if len(input.Accessories) > 0 {
		for i := 1; i <= project.MaxAccessories; i++ {
			merged[project.AccessoryColumn(i)] = nil
		}
	}
	over, err := project.Columns(input)
	if err != nil {
		return project.Project{}, err
	}
	for k, v := range over {
		if v == nil || v == "" {
			continue
		}
		merged[k] = v
	}
	return project.FromColumns(merged)
}

func draftError(id string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, workflow.ErrNotFound):
		return apperrors.NotFound("draft", id)
	case errors.Is(err, workflow.ErrInvalidTransition):
		return apperrors.InvalidState(err.Error())
	default:
		return err
	}
}

func message(err error) string {
	if se := apperrors.GetServiceError(err); se != nil {
		return se.Message
	}
	return err.Error()
}
