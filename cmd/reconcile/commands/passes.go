package commands

import (
	"github.com/spf13/cobra"

	"panelcatalog/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pass: dedup, classify, reindex",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPass(cmd, pipeline.AllStages())
	},
}

var dedupCmd = &cobra.Command{
	Use:   "dedup",
	Short: "Merge records sharing a canonical code",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPass(cmd, pipeline.StageSet{Dedup: true})
	},
}

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Re-evaluate category assignments against the rule domains",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPass(cmd, pipeline.StageSet{Classify: true})
	},
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Refresh derived search fields for the selected records",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPass(cmd, pipeline.StageSet{Reindex: true})
	},
}

func init() {
	rootCmd.AddCommand(runCmd, dedupCmd, classifyCmd, reindexCmd)
}
