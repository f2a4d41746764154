package main

import (
	"github.com/spf13/cobra"

	"github.com/JaimeStill/inspector/internal/config"
)

type globalFlags struct {
	dbPath string
	debug  bool
}

// newRootCommand builds the inspector command tree. Configuration is loaded
// from the working directory before any subcommand runs.
func newRootCommand() *cobra.Command {
	var (
		flags globalFlags
		cfg   = &config.Config{}
	)

	rootCmd := &cobra.Command{
		Use:           "inspector",
		Short:         "Classify vehicle images for defects and review recorded results",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			if flags.dbPath != "" {
				loaded.Database.Path = flags.dbPath
			}
			if flags.debug {
				loaded.LogLevel = "debug"
			}
			*cfg = *loaded
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&flags.dbPath, "db", "", "SQLite database file (overrides configuration)")
	rootCmd.PersistentFlags().BoolVarP(&flags.debug, "debug", "d", false, "Enable debug logging")

	rootCmd.AddCommand(
		classifyCommand(cfg),
		batchCommand(cfg),
		listCommand(cfg),
		searchCommand(cfg),
		deleteCommand(cfg),
		restoreCommand(cfg),
		schemaCommand(cfg),
	)

	return rootCmd
}

// withApp runs fn against a started App and always shuts it down.
func withApp(cfg *config.Config, fn func(*App) error) (err error) {
	app, err := NewApp(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(app)
}
