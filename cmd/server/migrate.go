package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"contactlink/internal/contact/store/contact/migrations"
)

func newMigrateCommand(rootOpts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate <up|down>",
		Short:     "Apply or roll back the contact schema",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, syncLog, err := loadBase(rootOpts, stderr)
			if err != nil {
				return err
			}
			defer func() { _ = syncLog() }()
			if !cfg.Database.UsePostgres() {
				return fmt.Errorf("migrate: DATABASE_URL is not set")
			}

			db, err := openPostgres(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			if args[0] == "down" {
				return migrations.Down(db.DB, log)
			}
			return migrations.Up(db.DB, log)
		},
	}
	return cmd
}
