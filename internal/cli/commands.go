package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mrlokans/readerclient/internal/entrypoint"
)

func newServeCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.Config()
			if err != nil {
				return err
			}
			entrypoint.Run(cfg, opts.Version)
			return nil
		},
	}
}

var gcExample = `
  readerclient gc
  readerclient gc --db /var/lib/readerclient/reader.db`

func newGCCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:     "gc",
		Short:   "Delete content blobs that no book record references",
		Example: gcExample,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.open(func(app *entrypoint.App) error {
				removed, err := app.Library.CollectOrphans(cmd.Context())
				if err != nil {
					return fmt.Errorf("collecting orphans: %w", err)
				}
				if removed == 0 {
					infof(cmd.OutOrStdout(), "no orphan blobs")
					return nil
				}
				successf(cmd.OutOrStdout(), "removed %d orphan blobs", removed)
				return nil
			})
		},
	}
}

func newStatusCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show local store contents and the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.open(func(app *entrypoint.App) error {
				ctx := cmd.Context()
				out := cmd.OutOrStdout()

				stats, err := app.Library.Stats(ctx)
				if err != nil {
					return err
				}
				schema, err := app.DB.SchemaVersion()
				if err != nil {
					return err
				}

				field(out, "database", app.Config.Database.Path)
				field(out, "schema", schema)
				field(out, "books", fmt.Sprintf("%d (%d chunked)", stats.Books, stats.Chunked))
				field(out, "bytes", stats.Bytes)
				field(out, "blobs", stats.Blobs)

				session, err := app.Connector.Session(ctx)
				if err != nil {
					return err
				}
				if session == nil {
					warnf(out, "not logged in")
					return nil
				}
				field(out, "server", session.Server)
				field(out, "username", session.Username)
				return nil
			})
		},
	}
}

func newResetSettingsCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-settings",
		Short: "Remove every stored reader setting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.open(func(app *entrypoint.App) error {
				if err := app.Settings.Reset(cmd.Context()); err != nil {
					return fmt.Errorf("resetting settings: %w", err)
				}
				successf(cmd.OutOrStdout(), "settings reset")
				return nil
			})
		},
	}
}

func newVersionCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of readerclient",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "readerclient %s\n", opts.Version)
		},
	}
}
