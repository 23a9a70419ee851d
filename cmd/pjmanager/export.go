package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/monitaro/pjmanager/internal/app/export"
	"github.com/monitaro/pjmanager/internal/app/runtime"
	"github.com/monitaro/pjmanager/internal/app/services/projects"
	"github.com/monitaro/pjmanager/internal/app/storage"
	"github.com/monitaro/pjmanager/internal/config"
	"github.com/monitaro/pjmanager/pkg/logger"
)

func newExportPDFCommand() *cobra.Command {
	var (
		id  int64
		out string
	)
	cmd := &cobra.Command{
		Use:   "export-pdf",
		Short: "Render one project as a PDF sheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if id <= 0 {
				return fmt.Errorf("--id is required")
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			renderer := export.NewPDFRenderer(cfg.Export.FontPath)
			if err := renderer.Ready(); err != nil {
				return err
			}
			store, db, err := runtime.OpenRecords(cmd.Context(), cfg.Store)
			if err != nil {
				return err
			}
			if db != nil {
				defer db.Close()
			}
			log := runtime.NewLogger(cfg.Logging)

			name, err := exportPDF(cmd.Context(), store, renderer, id, out, log)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", name)
			return nil
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "project id")
	cmd.Flags().StringVar(&out, "out", "", "output file (default: the download file name)")
	return cmd
}

// exportPDF renders project id into out and returns the written path. An
// empty out uses the download file name in the working directory.
func exportPDF(ctx context.Context, store storage.RecordStore, r *export.PDFRenderer, id int64, out string, log *logger.Logger) (string, error) {
	if err := r.Ready(); err != nil {
		return "", err
	}
	p, err := projects.New(store, nil, log).Get(ctx, id)
	if err != nil {
		return "", err
	}
	if out == "" {
		out = export.Filename(p)
	}
	f, err := os.Create(out)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", out, err)
	}
	if err := r.Render(p, f); err != nil {
		f.Close()
		os.Remove(out)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", out, err)
	}
	return out, nil
}
