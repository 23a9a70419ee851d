package main

import (
	"github.com/spf13/cobra"

	"github.com/monitaro/pjmanager/internal/app/runtime"
	"github.com/monitaro/pjmanager/internal/config"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "pjmanager",
		Short:         "Equipment rental and sales project manager",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          runServe,
	}
	root.AddCommand(newServeCommand(), newMigrateCommand(), newExportPDFCommand())
	return root
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	application, err := runtime.NewApplication(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	return application.Run(cmd.Context())
}
