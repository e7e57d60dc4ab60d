package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	contacthandler "contactlink/internal/contact/handler"
	"contactlink/pkg/requestcontext"
)

type identifyOptions struct {
	*rootOptions
	Email       string
	PhoneNumber string
	SeedDemo    bool
}

func newIdentifyCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &identifyOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "identify",
		Short: "Resolve one observation and print the identity as JSON",
		Long: `Resolve one observation against the configured store, exactly as
POST /identify does, and print the response body.

Example:
  contactlink identify --email mcfly@hillvalley.edu --phone 123456
  contactlink identify --seed-demo --email doc@hillvalley.edu --phone 123456`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, syncLog, err := loadBase(opts.rootOptions, stderr)
			if err != nil {
				return err
			}
			defer func() { _ = syncLog() }()

			ctx := requestcontext.WithRequestID(cmd.Context(), "cli")
			d, err := connect(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer d.Close()
			if err := d.buildContacts(nil); err != nil {
				return err
			}
			if opts.SeedDemo {
				if err := importDemo(ctx, d); err != nil {
					return err
				}
			}

			view, err := d.contacts.Identify(ctx, opts.Email, opts.PhoneNumber)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(contacthandler.FromView(view))
		},
	}
	cmd.Flags().StringVar(&opts.Email, "email", "", "observed email address")
	cmd.Flags().StringVar(&opts.PhoneNumber, "phone", "", "observed phone number")
	cmd.Flags().BoolVar(&opts.SeedDemo, "seed-demo", false, "import the demo contacts first")
	return cmd
}
