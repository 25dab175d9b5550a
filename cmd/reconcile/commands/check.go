package commands

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the consumer contract over a catalogue",
	Long: "Check that every active record is categorized, carries fresh " +
		"derived search fields and shares its canonical code with no " +
		"other record of the catalogue.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if catalogueSlug == "" {
			return fmt.Errorf("--catalogue is required")
		}
		app, cleanup, err := buildApp()
		if err != nil {
			return err
		}
		defer cleanup()

		report, err := app.analyzer.AnalyzeCatalogue(cmd.Context(), catalogueSlug)
		if err != nil {
			return err
		}

		log.Printf("[Check] Catalogue %q: %d active panels analyzed", report.Catalogue, report.Panels)
		if report.Clean() {
			log.Printf("[Check] All checks passed")
			return nil
		}
		for _, f := range report.Findings {
			log.Printf("[Check]   %s: %s", f.Kind, f.Detail)
		}
		return fmt.Errorf("found %d contract violations", len(report.Findings))
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
