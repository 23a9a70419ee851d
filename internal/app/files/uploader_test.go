package files_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/monitaro/pjmanager/internal/app/files"
	filesmem "github.com/monitaro/pjmanager/internal/app/files/memory"
	"github.com/monitaro/pjmanager/internal/app/storage"
	"github.com/monitaro/pjmanager/internal/app/storage/memory"
	apperrors "github.com/monitaro/pjmanager/internal/errors"
	"github.com/monitaro/pjmanager/pkg/logger"
)

func TestKey(t *testing.T) {
	require.Equal(t, "public/12/invoice_file_url-inv.pdf", files.Key(12, files.InvoiceFile, "inv.pdf"))
	require.Equal(t, "public/12/quote_file_url-q.pdf", files.Key(12, files.QuoteFile, `C:\Users\me\q.pdf`))
	require.Equal(t, "public/12/quote_file_url-q.pdf", files.Key(12, files.QuoteFile, "../../q.pdf"))
}

func TestAttachUploadsAndLinks(t *testing.T) {
	ctx := context.Background()
	records := memory.New()
	row, err := records.Insert(ctx, storage.TableProjects, storage.Row{"pj_number": "PJ1"})
	require.NoError(t, err)
	id, _ := row.Int64("id")

	blobs := filesmem.New("https://files.test")
	up := files.NewUploader(blobs, records, logger.Discard())

	ref, err := up.Attach(ctx, id, files.QuoteFile, files.Attachment{Name: "見積.pdf", ContentType: "application/pdf", Data: []byte("x")})
	require.NoError(t, err)
	require.Equal(t, "見積.pdf", ref.Name)

	obj, ok := blobs.Get(files.Key(id, files.QuoteFile, "見積.pdf"))
	require.True(t, ok)
	require.Equal(t, "application/pdf", obj.ContentType)

	rows, err := records.Select(ctx, storage.TableProjects, storage.ByID(id))
	require.NoError(t, err)
	require.Equal(t, ref.URL, rows[0]["quote_file_url"])
	require.Equal(t, "見積.pdf", rows[0]["quote_file_name"])
}

func TestAttachUploadFailureLeavesRowUntouched(t *testing.T) {
	ctx := context.Background()
	records := memory.New()
	row, err := records.Insert(ctx, storage.TableProjects, storage.Row{"pj_number": "PJ2"})
	require.NoError(t, err)
	id, _ := row.Int64("id")

	blobs := filesmem.New("")
	blobs.FailWith(errors.New("bucket offline"))
	up := files.NewUploader(blobs, records, logger.Discard())

	_, err = up.Attach(ctx, id, files.InvoiceFile, files.Attachment{Name: "i.pdf", Data: []byte("x")})
	require.True(t, apperrors.IsCode(err, apperrors.CodeUpload))

	rows, err := records.Select(ctx, storage.TableProjects, storage.ByID(id))
	require.NoError(t, err)
	require.Nil(t, rows[0]["invoice_file_url"])
}

func TestParseField(t *testing.T) {
	f, ok := files.ParseField("invoice_file")
	require.True(t, ok)
	require.Equal(t, "invoice_file_url", f.URLColumn())
	require.Equal(t, "invoice_file_name", f.NameColumn())
	_, ok = files.ParseField("memo")
	require.False(t, ok)
}
