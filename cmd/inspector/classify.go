package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/inspector/internal/config"
	"github.com/JaimeStill/inspector/internal/inspection"
)

func classifyCommand(cfg *config.Config) *cobra.Command {
	var (
		save        bool
		description string
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "classify [image]",
		Short: "Classify one image and optionally save the verdict",
		Long: `Classify sends one image to the vision model and prints the normalized verdict.
With --save the verdict replaces any result stored for the same image path or content.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if !inspection.IsImage(path) {
				return fmt.Errorf("unsupported image type: %s", path)
			}

			return withApp(cfg, func(app *App) error {
				verdict := app.Inspector.Classify(cmd.Context(), path)
				if description != "" {
					verdict.Description = description
				}

				out := cmd.OutOrStdout()
				if err := writeVerdict(out, verdict, asJSON); err != nil {
					return err
				}

				if !save {
					return nil
				}

				rec, err := app.Inspector.Save(cmd.Context(), path, verdict)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Saved result #%d.\n", rec.ID)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&save, "save", "s", false, "Save the verdict to the result store")
	cmd.Flags().StringVar(&description, "description", "", "Replace the model description before saving")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the verdict as JSON")

	return cmd
}
