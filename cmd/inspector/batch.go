package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/inspector/internal/config"
	"github.com/JaimeStill/inspector/internal/inspection"
)

func batchCommand(cfg *config.Config) *cobra.Command {
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "batch [folder]",
		Short: "Classify and save every new image under a folder",
		Long: `Batch walks the folder recursively and classifies each image whose content is
not stored yet. Interrupting stops the batch after the image in progress.
With --overwrite every image is classified and stored verdicts are replaced.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy := inspection.SkipExisting
			if overwrite {
				policy = inspection.Overwrite
			}

			return withApp(cfg, func(app *App) error {
				out := cmd.OutOrStdout()

				summary, err := app.Inspector.RunBatch(cmd.Context(), args[0], policy, func(p inspection.Progress) {
					if p.Err != nil {
						fmt.Fprintf(out, "[%d/%d] %s: error: %v\n", p.Index, p.Total, p.Path, p.Err)
						return
					}
					status := "saved"
					if !p.Saved {
						status = "already stored"
					}
					fmt.Fprintf(out, "[%d/%d] %s: %s %s (%s)\n",
						p.Index, p.Total, p.Path, p.Verdict.Label, p.Verdict.Action, status)
				})
				if err != nil {
					return err
				}

				fmt.Fprintln(out, summary.String())
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Reclassify stored images and replace their verdicts")

	return cmd
}
