// Package cli defines the readerclient command line. Without a command it
// starts the gateway; the other commands run maintenance against the
// local store and exit.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/mrlokans/readerclient/internal/config"
	"github.com/mrlokans/readerclient/internal/entrypoint"
)

// Options are the flags shared by every command.
type Options struct {
	Version string
	DBPath  string
	EnvFile string
}

// Config loads the env file, then the environment, then applies flags.
func (o *Options) Config() (*config.Config, error) {
	if err := config.LoadEnvFile(o.EnvFile); err != nil {
		return nil, err
	}
	cfg := config.NewConfig()
	if o.DBPath != "" {
		cfg.Database.Path = o.DBPath
	}
	return cfg, nil
}

// open runs fn with a fully wired app and closes it afterwards.
func (o *Options) open(fn func(app *entrypoint.App) error) error {
	cfg, err := o.Config()
	if err != nil {
		return err
	}
	app, err := entrypoint.Open(cfg)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}

// NewRootCmd builds the command tree.
func NewRootCmd(version string) *cobra.Command {
	opts := &Options{Version: version}

	serve := newServeCmd(opts)
	root := &cobra.Command{
		Use:           "readerclient",
		Short:         "Offline-first gateway between the reader UI and a library server",
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE:          serve.RunE,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&opts.DBPath, "db", "", "path to the local database (defaults to DATABASE_PATH)")
	f.StringVar(&opts.EnvFile, "env-file", config.DefaultEnvFile, "optional KEY=value file loaded before the environment")

	root.AddCommand(
		serve,
		newGCCmd(opts),
		newStatusCmd(opts),
		newResetSettingsCmd(opts),
		newVersionCmd(opts),
	)
	return root
}

// Execute runs the command line.
func Execute(version string) error {
	return NewRootCmd(version).Execute()
}
