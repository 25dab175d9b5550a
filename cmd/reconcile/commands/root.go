// Package commands implements the reconcile CLI. Every subcommand targets
// one catalogue and defaults to dry-run; nothing is written unless --apply
// is passed.
package commands

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"panelcatalog/classification"
	"panelcatalog/config"
	"panelcatalog/database"
	"panelcatalog/pipeline"
	"panelcatalog/quality"
	"panelcatalog/reporting"
	"panelcatalog/search"
)

var (
	catalogueSlug string
	categorySlug  string
	touchedSince  string
	apply         bool
	exportPath    string
)

var rootCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Catalog reconciliation passes from the command line",
	Long: "Run deduplication, classification and search reindex passes " +
		"over a supplier catalogue. Passes are dry-run by default; pass " +
		"--apply to commit changes.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&catalogueSlug, "catalogue", "", "catalogue slug to operate on (required)")
	rootCmd.PersistentFlags().StringVar(&categorySlug, "category", "", "restrict the pass to one category")
	rootCmd.PersistentFlags().StringVar(&touchedSince, "touched-since", "", "restrict the pass to records updated at or after this RFC 3339 instant")
	rootCmd.PersistentFlags().BoolVar(&apply, "apply", false, "commit changes instead of planning them")
	rootCmd.PersistentFlags().StringVar(&exportPath, "export", "", "write the diff report to this file (.json, .csv or .xlsx)")
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// appContext holds everything a subcommand needs, built once per invocation.
type appContext struct {
	cfg      *config.Config
	db       *database.CatalogDB
	pipeline *pipeline.Pipeline
	analyzer *quality.Analyzer
}

func buildApp() (*appContext, func(), error) {
	// .env keeps local runs close to the server's environment.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	db, err := database.Open(cfg.DatabasePath, database.Options{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		QueryTimeout:    cfg.QueryTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open catalog database %s: %w", cfg.DatabasePath, err)
	}

	engines, err := classification.LoadRules(cfg.RulesPath)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("load classification rules: %w", err)
	}

	pl, err := pipeline.New(db, engines, pipeline.Config{
		TrustOrder:    cfg.TrustOrder,
		DefaultDomain: cfg.DefaultDomain,
		Reindex: search.BatchOptions{
			PageSize:        cfg.ReindexPageSize,
			Workers:         cfg.ReindexWorkers,
			WritesPerSecond: cfg.ReindexWriteRate,
		},
	})
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("build pipeline: %w", err)
	}

	app := &appContext{
		cfg:      cfg,
		db:       db,
		pipeline: pl,
		analyzer: quality.NewAnalyzer(db),
	}
	return app, func() { db.Close() }, nil
}

func selector() (pipeline.Selector, error) {
	if catalogueSlug == "" {
		return pipeline.Selector{}, fmt.Errorf("--catalogue is required")
	}
	return pipeline.Selector{
		CatalogueSlug: catalogueSlug,
		CategorySlug:  categorySlug,
		TouchedSince:  touchedSince,
	}, nil
}

func mode() pipeline.Mode {
	if apply {
		return pipeline.ModeApply
	}
	return pipeline.ModeDryRun
}

// runPass executes one pass with the given stages and handles the shared
// report printing and export.
func runPass(cmd *cobra.Command, stages pipeline.StageSet) error {
	app, cleanup, err := buildApp()
	if err != nil {
		return err
	}
	defer cleanup()

	sel, err := selector()
	if err != nil {
		return err
	}

	report, err := app.pipeline.Run(cmd.Context(), sel, stages, mode())
	if err != nil {
		return err
	}

	printReport(report)

	if exportPath != "" {
		format, err := formatForPath(exportPath)
		if err != nil {
			return err
		}
		if err := reporting.Export(report, format, exportPath); err != nil {
			return fmt.Errorf("export report: %w", err)
		}
		log.Printf("[Reconcile] Report written to %s", exportPath)
	}

	if n := report.FailureCount(); n > 0 {
		return fmt.Errorf("pass finished with %d failed records", n)
	}
	return nil
}

func printReport(r *pipeline.DiffReport) {
	log.Printf("[Reconcile] Pass %s (%s) on %q finished in %dms", r.RunID, r.Mode, r.Catalogue, r.Duration)
	log.Printf("[Reconcile]   merges: %d, removed: %d, collisions skipped: %d",
		len(r.Merges), len(r.Removed), len(r.Collisions))
	log.Printf("[Reconcile]   reclassifications: %d (no-ops: %d), tree ops: %d",
		len(r.Reclassifications), r.ClassifyNoOps, len(r.TreeOps))
	if r.Reindex != nil {
		log.Printf("[Reconcile]   reindexed: %d of %d records, skipped unchanged: %d",
			r.Reindex.Reindexed, r.Reindex.Records, r.Reindex.Skipped)
	}
	for _, f := range r.Failures {
		log.Printf("[Reconcile]   FAILED %s panel %d: %s", f.Stage, f.PanelID, f.Error)
	}
}

func formatForPath(path string) (reporting.ExportFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return reporting.FormatJSON, nil
	case ".csv":
		return reporting.FormatCSV, nil
	case ".xlsx":
		return reporting.FormatExcel, nil
	default:
		return "", fmt.Errorf("unsupported export extension %q, want .json, .csv or .xlsx", filepath.Ext(path))
	}
}
