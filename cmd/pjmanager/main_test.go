package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monitaro/pjmanager/internal/app/export"
	"github.com/monitaro/pjmanager/internal/app/storage"
	"github.com/monitaro/pjmanager/internal/app/storage/memory"
	apperrors "github.com/monitaro/pjmanager/internal/errors"
	"github.com/monitaro/pjmanager/pkg/logger"
)

const testFont = "../../internal/app/export/testdata/DejaVuSansCondensed.ttf"

func TestRootCommandHasSubcommands(t *testing.T) {
	root := newRootCommand()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "migrate", "export-pdf"}, names)
}

func TestMigrateRequiresDSN(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	root := newRootCommand()
	root.SetArgs([]string{"migrate"})
	root.SetOut(&bytes.Buffer{})
	err := root.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestExportPDFWritesFile(t *testing.T) {
	store := memory.New()
	row, err := store.Insert(context.Background(), storage.TableProjects, storage.Row{
		"pj_number":             "PJ240101120000",
		"transaction_type":      "販売",
		"sales_person":          "山田",
		"dealer_name":           "ABC商事",
		"installation_location": "東京都",
		"product_category":      "LED",
	})
	require.NoError(t, err)
	id, _ := row.Int64("id")

	out := filepath.Join(t.TempDir(), "sheet.pdf")
	name, err := exportPDF(context.Background(), store, export.NewPDFRenderer(testFont), id, out, logger.Discard())
	require.NoError(t, err)
	assert.Equal(t, out, name)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func TestExportPDFMissingProject(t *testing.T) {
	_, err := exportPDF(context.Background(), memory.New(), export.NewPDFRenderer(testFont), 7, filepath.Join(t.TempDir(), "x.pdf"), logger.Discard())
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestExportPDFRequiresFont(t *testing.T) {
	out := filepath.Join(t.TempDir(), "sheet.pdf")
	_, err := exportPDF(context.Background(), memory.New(), export.NewPDFRenderer(""), 1, out, logger.Discard())
	require.ErrorIs(t, err, export.ErrFontNotConfigured)
	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))

	t.Setenv("RECORD_STORE", "memory")
	t.Setenv("IDENTITY_PROVIDER", "memory")
	t.Setenv("FILE_STORE", "memory")
	t.Setenv("PDF_FONT_PATH", "")
	root := newRootCommand()
	root.SetArgs([]string{"export-pdf", "--id", "1", "--out", out})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	assert.ErrorIs(t, root.ExecuteContext(context.Background()), export.ErrFontNotConfigured)
}
