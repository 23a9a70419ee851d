package projects_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monitaro/pjmanager/internal/app/domain/project"
	"github.com/monitaro/pjmanager/internal/app/files"
	filesmem "github.com/monitaro/pjmanager/internal/app/files/memory"
	"github.com/monitaro/pjmanager/internal/app/services/projects"
	"github.com/monitaro/pjmanager/internal/app/storage"
	"github.com/monitaro/pjmanager/internal/app/storage/memory"
	"github.com/monitaro/pjmanager/internal/app/workflow"
	apperrors "github.com/monitaro/pjmanager/internal/errors"
	"github.com/monitaro/pjmanager/pkg/logger"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []project.Project
	err  error
}

func (n *recordingNotifier) ProjectCreated(_ context.Context, p project.Project) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, p)
	return n.err
}

type draftFixture struct {
	svc      *projects.Service
	drafts   *projects.Drafts
	store    *memory.Store
	blobs    *filesmem.Store
	notifier *recordingNotifier
}

func newDrafts(t *testing.T) draftFixture {
	t.Helper()
	svc, store := newService(t)
	blobs := filesmem.New("https://files.test")
	notifier := &recordingNotifier{}
	registry := workflow.NewRegistry(0, logger.Discard())
	uploader := files.NewUploader(blobs, store, logger.Discard())
	return draftFixture{
		svc:      svc,
		drafts:   projects.NewDrafts(svc, registry, uploader, notifier, logger.Discard()),
		store:    store,
		blobs:    blobs,
		notifier: notifier,
	}
}

func quote() map[files.Field]files.Attachment {
	return map[files.Field]files.Attachment{
		files.QuoteFile: {Name: "見積書.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4")},
	}
}

func TestDraftConfirmCreatesProjectWithAttachment(t *testing.T) {
	ctx := context.Background()
	f := newDrafts(t)

	d, err := f.drafts.Start(ctx, "a@example.com", validInput(), 0, quote())
	require.NoError(t, err)
	assert.Equal(t, workflow.DraftConfirming, d.State)
	assert.Equal(t, "PJ240101120000", d.Prepared.Number)

	n, err := f.store.Count(ctx, storage.TableProjects)
	require.NoError(t, err)
	assert.Zero(t, n, "nothing is written before confirmation")

	done, err := f.drafts.Confirm(ctx, "a@example.com", d.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.DraftDone, done.State)
	assert.Empty(t, done.Warnings)
	require.NotNil(t, done.Result)
	require.NotNil(t, done.Result.QuoteFileURL)
	assert.Equal(t, "https://files.test/"+files.Key(done.Result.ID, files.QuoteFile, "見積書.pdf"), *done.Result.QuoteFileURL)
	assert.Equal(t, "見積書.pdf", *done.Result.QuoteFileName)
	assert.Nil(t, done.Result.InvoiceFileURL)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, "PJ240101120000", f.notifier.sent[0].Number)

	_, err = f.drafts.Confirm(ctx, "a@example.com", d.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidState))
}

func TestDraftValidationFailureStaysEditing(t *testing.T) {
	ctx := context.Background()
	f := newDrafts(t)

	in := validInput()
	in.DealerName = ""
	d, err := f.drafts.Start(ctx, "a@example.com", in, 0, nil)
	require.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
	assert.Contains(t, apperrors.FieldErrors(err), "dealer_name")
	assert.Equal(t, d.ID, apperrors.GetServiceError(err).Details["draft_id"])
	assert.Equal(t, workflow.DraftEditing, d.State)
	assert.Equal(t, "渋谷現場", d.Input.SiteName)

	in.DealerName = "ABC商事"
	d, err = f.drafts.Resubmit(ctx, "a@example.com", d.ID, in, nil)
	require.NoError(t, err)
	assert.Equal(t, workflow.DraftConfirming, d.State)
}

func TestDraftDeclineKeepsInput(t *testing.T) {
	ctx := context.Background()
	f := newDrafts(t)
	d, err := f.drafts.Start(ctx, "a@example.com", validInput(), 0, nil)
	require.NoError(t, err)

	d, err = f.drafts.Decline("a@example.com", d.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.DraftEditing, d.State)
	assert.Equal(t, validInput().SiteName, d.Input.SiteName)
	assert.Empty(t, d.Prepared.Number)

	_, err = f.drafts.Confirm(ctx, "a@example.com", d.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidState))
}

func TestDraftInsertFailureCanBeRetried(t *testing.T) {
	ctx := context.Background()
	f := newDrafts(t)
	d, err := f.drafts.Start(ctx, "a@example.com", validInput(), 0, nil)
	require.NoError(t, err)

	f.store.FailNext(storage.TableProjects, "insert", &storage.Error{Kind: storage.KindNetwork, Message: "timeout"})
	failed, err := f.drafts.Confirm(ctx, "a@example.com", d.ID)
	require.True(t, apperrors.IsCode(err, apperrors.CodeStore))
	assert.Equal(t, workflow.DraftFailed, failed.State)
	assert.NotEmpty(t, failed.LastError)
	assert.Empty(t, f.notifier.sent)

	done, err := f.drafts.Confirm(ctx, "a@example.com", d.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.DraftDone, done.State)
}

func TestDraftUploadAndNotifyFailuresAreWarnings(t *testing.T) {
	ctx := context.Background()
	f := newDrafts(t)
	f.blobs.FailWith(errors.New("bucket missing"))
	f.notifier.err = errors.New("smtp down")

	d, err := f.drafts.Start(ctx, "a@example.com", validInput(), 0, quote())
	require.NoError(t, err)
	done, err := f.drafts.Confirm(ctx, "a@example.com", d.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.DraftDone, done.State)
	require.Len(t, done.Warnings, 2)
	assert.Contains(t, done.Warnings[0], "見積書.pdf")
	assert.Contains(t, done.Warnings[1], "smtp down")

	n, err := f.store.Count(ctx, storage.TableProjects)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "the record stays after an upload failure")
}

func TestDraftsAreScopedToOwner(t *testing.T) {
	ctx := context.Background()
	f := newDrafts(t)
	d, err := f.drafts.Start(ctx, "a@example.com", validInput(), 0, nil)
	require.NoError(t, err)

	_, err = f.drafts.Get("b@example.com", d.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
	_, err = f.drafts.Confirm(ctx, "b@example.com", d.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))

	require.NoError(t, f.drafts.Discard("a@example.com", d.ID))
	_, err = f.drafts.Get("a@example.com", d.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestDraftFromCloneOverlaysInput(t *testing.T) {
	ctx := context.Background()
	f := newDrafts(t)
	src := validInput()
	src.DealerContact = "佐藤"
	src.Accessories = []string{"リモコン"}
	src.ShippingDate = strp("2024-02-01")
	created := insert(t, f.svc, src)

	d, err := f.drafts.Start(ctx, "a@example.com", project.Project{SiteName: "新しい現場"}, created.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, created.ID, d.CloneOf)
	assert.Equal(t, "新しい現場", d.Prepared.SiteName)
	assert.Equal(t, "佐藤", d.Prepared.DealerContact)
	assert.Equal(t, []string{"リモコン"}, d.Prepared.Accessories)
	assert.Equal(t, "2024-02-01", *d.Prepared.ShippingDate)
	assert.NotEqual(t, created.Number, d.Prepared.Number)

	_, err = f.drafts.Start(ctx, "a@example.com", validInput(), 999, nil)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}
