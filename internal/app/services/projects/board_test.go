package projects_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monitaro/pjmanager/internal/app/services/projects"
	"github.com/monitaro/pjmanager/internal/app/workflow"
	apperrors "github.com/monitaro/pjmanager/internal/errors"
	"github.com/monitaro/pjmanager/pkg/logger"
)

func newBoard(t *testing.T) (*projects.Board, *projects.Service, *workflow.Registry) {
	t.Helper()
	svc, _ := newService(t)
	registry := workflow.NewRegistry(0, logger.Discard())
	return projects.NewBoard(svc, registry, logger.Discard()), svc, registry
}

func TestBoardRemembersCriteria(t *testing.T) {
	ctx := context.Background()
	board, svc, _ := newBoard(t)
	a := validInput()
	a.SiteName = "大阪"
	insert(t, svc, a)
	insert(t, svc, validInput())

	res, err := board.Search(ctx, "u", projects.Criteria{"site_name": "大阪", "unknown": "x"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Filtered)
	assert.Equal(t, map[string]string{"site_name": "大阪"}, board.State("u").Criteria)
	assert.Empty(t, board.State("other").Criteria)

	res, err = board.Refresh(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Filtered)

	res, err = board.Reset(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Filtered)
	assert.Equal(t, 2, res.Total)
	assert.Empty(t, board.State("u").Criteria)
}

func TestInlineEditChangesOnlyTouchedField(t *testing.T) {
	ctx := context.Background()
	board, svc, _ := newBoard(t)
	in := validInput()
	in.ShippingDate = strp("2024-03-04")
	in.Accessories = []string{"a", "b"}
	created := insert(t, svc, in)

	bd, err := board.BeginEdit(ctx, "u", created.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.EditEditing, bd.Edit.State)
	assert.Equal(t, "2024-03-04", bd.Edit.Staging["shipping_date"])

	_, err = board.Change("u", map[string]any{"site_name": "変更後", "id": float64(999)})
	require.NoError(t, err)

	res, bd, err := board.Save(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, workflow.EditIdle, bd.Edit.State)
	require.Len(t, res.Items, 1)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	want := created
	want.SiteName = "変更後"
	assert.Equal(t, want, got)
}

func TestInlineEditFailureKeepsStaging(t *testing.T) {
	ctx := context.Background()
	board, svc, _ := newBoard(t)
	created := insert(t, svc, validInput())

	_, err := board.BeginEdit(ctx, "u", created.ID)
	require.NoError(t, err)
	_, err = board.Change("u", map[string]any{"dealer_name": ""})
	require.NoError(t, err)

	_, bd, err := board.Save(ctx, "u")
	require.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
	assert.Equal(t, workflow.EditError, bd.Edit.State)
	assert.Equal(t, "", bd.Edit.Staging["dealer_name"])

	_, err = board.Change("u", map[string]any{"dealer_name": "直った"})
	require.NoError(t, err)
	_, bd, err = board.Save(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, workflow.EditIdle, bd.Edit.State)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "直った", got.DealerName)
}

func TestInlineEditCancelAndMissing(t *testing.T) {
	ctx := context.Background()
	board, svc, _ := newBoard(t)
	created := insert(t, svc, validInput())

	_, err := board.BeginEdit(ctx, "u", created.ID+100)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))

	_, _, err = board.Save(ctx, "u")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidState))

	_, err = board.BeginEdit(ctx, "u", created.ID)
	require.NoError(t, err)
	bd, err := board.Cancel("u")
	require.NoError(t, err)
	assert.Equal(t, workflow.EditIdle, bd.Edit.State)
	assert.Nil(t, bd.Edit.Staging)

	n, err := svc.Search(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n.Total)
}

func TestInlineEditReplacesAccessorySlot(t *testing.T) {
	ctx := context.Background()
	board, svc, _ := newBoard(t)
	in := validInput()
	in.Accessories = []string{"a", "b"}
	created := insert(t, svc, in)

	bd, err := board.BeginEdit(ctx, "u", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", bd.Edit.Staging["accessory_1"])
	assert.Nil(t, bd.Edit.Staging["accessory_3"])
	assert.NotContains(t, bd.Edit.Staging, "accessories")

	_, err = board.Change("u", map[string]any{"accessory_1": "A"})
	require.NoError(t, err)
	_, _, err = board.Save(ctx, "u")
	require.NoError(t, err)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "b"}, got.Accessories)
	want := created
	want.Accessories = []string{"A", "b"}
	assert.Equal(t, want, got)
}

func TestInlineEditRejectsUnknownColumn(t *testing.T) {
	ctx := context.Background()
	board, svc, _ := newBoard(t)
	created := insert(t, svc, validInput())

	_, err := board.BeginEdit(ctx, "u", created.ID)
	require.NoError(t, err)

	bd, err := board.Change("u", map[string]any{"site_name": "変更", "accessories": []any{"x"}})
	require.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
	assert.Equal(t, workflow.EditEditing, bd.Edit.State)
	assert.Equal(t, created.SiteName, bd.Edit.Staging["site_name"])

	_, err = board.Change("u", map[string]any{"accessory_11": "x"})
	require.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}
