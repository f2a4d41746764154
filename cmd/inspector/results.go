package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/inspector/internal/config"
	"github.com/JaimeStill/inspector/internal/results"
	"github.com/JaimeStill/inspector/pkg/database"
)

func listCommand(cfg *config.Config) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the most recent results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cfg, func(app *App) error {
				records, err := app.Results.Fetch(cmd.Context(), limit)
				if err != nil {
					return err
				}
				total, err := app.Results.Count(cmd.Context(), results.Criteria{})
				if err != nil {
					return err
				}
				return writeRecords(cmd.OutOrStdout(), records, total, asJSON)
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of results (default from configuration)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")

	return cmd
}

func searchCommand(cfg *config.Config) *cobra.Command {
	var (
		criteria results.Criteria
		limit    int
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search results by label, severity, action, location, keyword, and date",
		Long: `Search combines every given filter. Dates use YYYY-MM-DD and include both
ends; --from defaults to one month ago and --to to today.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			if !cmd.Flags().Changed("from") {
				criteria.DateFrom = now.AddDate(0, -1, 0).Format(results.DateLayout)
			}
			if !cmd.Flags().Changed("to") {
				criteria.DateTo = now.Format(results.DateLayout)
			}

			return withApp(cfg, func(app *App) error {
				records, err := app.Results.Search(cmd.Context(), criteria, limit)
				if err != nil {
					return err
				}
				total, err := app.Results.Count(cmd.Context(), criteria)
				if err != nil {
					return err
				}
				return writeRecords(cmd.OutOrStdout(), records, total, asJSON)
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&criteria.Label, "label", "", "Defect label")
	f.StringVar(&criteria.Severity, "severity", "", "Severity: A, B, C or High, Medium, Low")
	f.StringVar(&criteria.Action, "action", "", "Action: Pass, Rework, Scrap, Hold, Reject")
	f.StringVar(&criteria.Location, "location", "", "Location substring")
	f.StringVarP(&criteria.Keyword, "keyword", "k", "", "Substring of the path, label, or description")
	f.StringVar(&criteria.DateFrom, "from", "", "First creation day (YYYY-MM-DD)")
	f.StringVar(&criteria.DateTo, "to", "", "Last creation day (YYYY-MM-DD)")
	f.IntVarP(&limit, "limit", "n", 0, "Maximum number of results (default from configuration)")
	f.BoolVar(&asJSON, "json", false, "Print results as JSON")

	return cmd
}

func deleteCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id...]",
		Short: "Delete results by id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}

			return withApp(cfg, func(app *App) error {
				n, err := app.Inspector.Delete(cmd.Context(), ids)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d of %d results.\n", n, len(ids))
				return nil
			})
		},
	}
}

func restoreCommand(cfg *config.Config) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "restore [id]",
		Short: "Download the archived image of a result",
		Long:  `Restore writes the archived copy of a result's image to --output, or to its recorded path.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}

			return withApp(cfg, func(app *App) error {
				dest, err := app.Inspector.Restore(cmd.Context(), ids[0], output)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Restored result #%d to %s.\n", ids[0], dest)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file (default: the recorded image path)")

	return cmd
}

func schemaCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Create the result schema if missing and show the database location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cfg, func(app *App) error {
				if err := app.Results.EnsureSchema(cmd.Context()); err != nil {
					return err
				}

				location := cfg.Database.Path
				if cfg.Database.Driver == database.DriverPostgres {
					location = "postgres"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Schema ready (%s: %s).\n", cfg.Database.Driver, location)
				return nil
			})
		},
	}
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid result id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
