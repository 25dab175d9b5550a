package commands

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"panelcatalog/catalog"
	"panelcatalog/taxonomy"
)

var (
	treeSlug   string
	treeName   string
	treeParent string
	treeNode   int64
	treeTarget int64
)

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Structural operations on a catalogue's category tree",
}

var treeEnsureCmd = &cobra.Command{
	Use:   "ensure",
	Short: "Create a category if it does not exist yet",
	RunE: func(cmd *cobra.Command, args []string) error {
		if treeSlug == "" {
			return fmt.Errorf("--slug is required")
		}
		app, cleanup, err := buildApp()
		if err != nil {
			return err
		}
		defer cleanup()

		cat, err := app.db.GetCatalogueBySlug(cmd.Context(), catalogueSlug)
		if err != nil {
			return err
		}

		name := treeName
		if name == "" {
			name = treeSlug
		}
		id, err := taxonomy.NewReorganizer(app.db).EnsureCategory(cmd.Context(), cat.ID, treeSlug, name, treeParent)
		if err != nil {
			return err
		}
		log.Printf("[Tree] Category %q ready, id %d", treeSlug, id)
		return nil
	},
}

var treeMoveCmd = &cobra.Command{
	Use:   "move",
	Short: "Move a subtree under a new parent",
	RunE: func(cmd *cobra.Command, args []string) error {
		if treeNode == 0 || treeTarget == 0 {
			return fmt.Errorf("--node and --target are required")
		}
		app, cleanup, err := buildApp()
		if err != nil {
			return err
		}
		defer cleanup()

		err = taxonomy.NewReorganizer(app.db).MoveSubtree(cmd.Context(),
			catalog.CategoryID(treeNode), catalog.CategoryID(treeTarget))
		if err != nil {
			return err
		}
		log.Printf("[Tree] Moved subtree %d under %d", treeNode, treeTarget)
		return nil
	},
}

var treeMergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge a category into another, moving its children and panels",
	RunE: func(cmd *cobra.Command, args []string) error {
		if treeNode == 0 || treeTarget == 0 {
			return fmt.Errorf("--node and --target are required")
		}
		app, cleanup, err := buildApp()
		if err != nil {
			return err
		}
		defer cleanup()

		op, err := taxonomy.NewReorganizer(app.db).MergeInto(cmd.Context(),
			catalog.CategoryID(treeNode), catalog.CategoryID(treeTarget))
		if err != nil {
			return err
		}
		log.Printf("[Tree] Merged %d into %d: %d children and %d panels moved",
			treeNode, treeTarget, op.Children, op.Panels)
		return nil
	},
}

var treePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete a category if it has no children and no panels",
	RunE: func(cmd *cobra.Command, args []string) error {
		if treeNode == 0 {
			return fmt.Errorf("--node is required")
		}
		app, cleanup, err := buildApp()
		if err != nil {
			return err
		}
		defer cleanup()

		deleted, err := taxonomy.NewReorganizer(app.db).DeleteIfEmpty(cmd.Context(), catalog.CategoryID(treeNode))
		if err != nil {
			return err
		}
		if !deleted {
			log.Printf("[Tree] Category %d not empty, left in place", treeNode)
			return nil
		}
		log.Printf("[Tree] Category %d deleted", treeNode)
		return nil
	},
}

func init() {
	treeEnsureCmd.Flags().StringVar(&treeSlug, "slug", "", "category slug")
	treeEnsureCmd.Flags().StringVar(&treeName, "name", "", "display name, defaults to the slug")
	treeEnsureCmd.Flags().StringVar(&treeParent, "parent", "", "parent category slug, empty for a root category")

	for _, c := range []*cobra.Command{treeMoveCmd, treeMergeCmd, treePruneCmd} {
		c.Flags().Int64Var(&treeNode, "node", 0, "category id to operate on")
	}
	treeMoveCmd.Flags().Int64Var(&treeTarget, "target", 0, "new parent category id")
	treeMergeCmd.Flags().Int64Var(&treeTarget, "target", 0, "category id to merge into")

	treeCmd.AddCommand(treeEnsureCmd, treeMoveCmd, treeMergeCmd, treePruneCmd)
	rootCmd.AddCommand(treeCmd)
}
