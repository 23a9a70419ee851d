package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/monitaro/pjmanager/internal/app/domain/project"
	"github.com/monitaro/pjmanager/pkg/logger"
)

func TestDraftHappyPath(t *testing.T) {
	d := &Draft{State: DraftEditing}
	in := project.Project{SiteName: "A"}
	prepared := in
	prepared.Number = "PJ240101000000"

	if err := d.Submit(in, prepared); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if d.State != DraftConfirming || d.Prepared.Number == "" {
		t.Fatalf("state = %s", d.State)
	}
	if err := d.BeginSave(); err != nil {
		t.Fatalf("begin save: %v", err)
	}
	if err := d.Complete(project.Project{ID: 4}, []string{"upload failed"}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if d.State != DraftDone || d.Result.ID != 4 || len(d.Warnings) != 1 {
		t.Fatalf("draft = %+v", d)
	}
	if err := d.Decline(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("decline after done should fail, got %v", err)
	}
}

func TestDraftDeclineKeepsInput(t *testing.T) {
	d := &Draft{State: DraftEditing}
	in := project.Project{SiteName: "現場A", Memo: "memo"}
	if err := d.Submit(in, in); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := d.Decline(); err != nil {
		t.Fatalf("decline: %v", err)
	}
	if d.State != DraftEditing || d.Input.SiteName != "現場A" || d.Input.Memo != "memo" {
		t.Fatalf("draft = %+v", d)
	}
}

func TestDraftFailureAllowsRetryOrDecline(t *testing.T) {
	d := &Draft{State: DraftConfirming}
	if err := d.BeginSave(); err != nil {
		t.Fatalf("begin save: %v", err)
	}
	if err := d.Fail(errors.New("insert failed")); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if d.State != DraftFailed || d.LastError != "insert failed" {
		t.Fatalf("draft = %+v", d)
	}
	if err := d.BeginSave(); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if err := d.Submit(project.Project{}, project.Project{}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("submit while saving should fail, got %v", err)
	}
}

func TestInlineEditLifecycle(t *testing.T) {
	var e InlineEdit
	if err := e.Merge(map[string]any{"memo": "x"}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("merge while idle should fail")
	}
	if err := e.Begin(3, map[string]any{"id": int64(3), "memo": "old"}); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := e.Merge(map[string]any{"memo": "new", "id": int64(99)}); err != nil {
		t.Fatalf("merge: %v", err)
	}
	id, staged, err := e.BeginSave()
	if err != nil {
		t.Fatalf("begin save: %v", err)
	}
	if id != 3 || staged["memo"] != "new" || staged["id"] != int64(3) {
		t.Fatalf("staged = %v", staged)
	}
	if err := e.Cancel(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("cancel while saving should fail")
	}
	if err := e.SaveFailed(errors.New("boom")); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if e.State != EditError || e.Staging["memo"] != "new" {
		t.Fatalf("edit = %+v", e)
	}
	if err := e.Cancel(); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if e.State != EditIdle || e.Staging != nil {
		t.Fatalf("edit = %+v", e)
	}
}

func TestInlineEditMergeRejectsUnstagedField(t *testing.T) {
	var e InlineEdit
	if err := e.Begin(3, map[string]any{"id": int64(3), "memo": "old"}); err != nil {
		t.Fatalf("begin: %v", err)
	}
	err := e.Merge(map[string]any{"memo": "new", "accessories": []any{"x"}})
	var unknown *UnknownFieldError
	if !errors.As(err, &unknown) || unknown.Field != "accessories" {
		t.Fatalf("merge err = %v", err)
	}
	if e.Staging["memo"] != "old" {
		t.Fatalf("partial merge applied: %v", e.Staging)
	}
}

func TestRegistryScopesDraftsToOwner(t *testing.T) {
	r := NewRegistry(time.Hour, logger.Discard())
	d := r.NewDraft("a@example.com", 0)

	if _, err := r.Draft("b@example.com", d.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign draft visible: %v", err)
	}
	if err := r.DeleteDraft("b@example.com", d.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign delete: %v", err)
	}
	if err := r.DeleteDraft("a@example.com", d.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestRegistrySweepsIdleEntries(t *testing.T) {
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	r := NewRegistry(time.Hour, logger.Discard(), WithClock(func() time.Time { return now }))

	idle := r.NewDraft("a", 0)
	saving := r.NewDraft("a", 0)
	_, _ = r.UpdateDraft("a", saving.ID, func(d *Draft) error {
		d.State = DraftSaving
		return nil
	})
	r.Board("a")

	now = now.Add(2 * time.Hour)
	fresh := r.NewDraft("a", 0)

	if n := r.Sweep(); n != 2 {
		t.Fatalf("swept %d, want 2", n)
	}
	if _, err := r.Draft("a", idle.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("idle draft kept")
	}
	if _, err := r.Draft("a", saving.ID); err != nil {
		t.Fatalf("saving draft swept")
	}
	if _, err := r.Draft("a", fresh.ID); err != nil {
		t.Fatalf("fresh draft swept")
	}
}

func TestRegistryStopLeavesNoGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t)
	r := NewRegistry(time.Hour, logger.Discard(), WithSweepInterval(time.Millisecond))
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if err := r.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
