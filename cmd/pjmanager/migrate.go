package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/monitaro/pjmanager/internal/app/storage/postgres"
	"github.com/monitaro/pjmanager/internal/platform/migrations"
)

func newMigrateCommand() *cobra.Command {
	var dsn string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded schema to a PostgreSQL database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dsn == "" {
				return fmt.Errorf("DATABASE_URL or --dsn is required")
			}
			db, err := postgres.Open(cmd.Context(), dsn)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			if err := migrations.Apply(cmd.Context(), db); err != nil {
				return err
			}
			names, _ := migrations.Names()
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migrations\n", len(names))
			return nil
		},
	}
	cmd.Flags().StringVar(&dsn, "dsn", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	return cmd
}
