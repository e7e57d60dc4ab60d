package main

import (
	"github.com/spf13/cobra"

	"contactlink/internal/contact/seed"
	"contactlink/pkg/requestcontext"
)

type seedOptions struct {
	*rootOptions
	File string
}

func newSeedCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &seedOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Import contacts from a YAML fixture",
		Long: `Import contacts from a YAML fixture into the configured store.

Without --file the embedded demo dataset is imported. Records keep their ids,
so importing over existing ids fails.

Example:
  contactlink seed
  contactlink seed --file ./fixtures/contacts.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, syncLog, err := loadBase(opts.rootOptions, stderr)
			if err != nil {
				return err
			}
			defer func() { _ = syncLog() }()
			if !cfg.Database.UsePostgres() {
				log.Warn("seeding the in-memory store; records are lost on exit")
			}

			contacts, err := seed.Demo()
			if opts.File != "" {
				contacts, err = seed.LoadFile(opts.File)
			}
			if err != nil {
				return err
			}

			ctx := requestcontext.WithRequestID(cmd.Context(), "seed")
			d, err := connect(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer d.Close()
			if err := d.buildContacts(nil); err != nil {
				return err
			}
			if err := d.contacts.ImportContacts(ctx, contacts); err != nil {
				return err
			}
			log.Info("contacts imported", "count", len(contacts))
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.File, "file", "", "YAML fixture to import (defaults to the demo dataset)")
	return cmd
}
