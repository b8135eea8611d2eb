package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rna3dhub/motifatlas/internal/pipeline"
)

var diffCmd = &cobra.Command{
	Use:   "diff <old-release> <new-release>",
	Short: "Count motif and loop changes between two releases",
	Long: `Compare two stored releases of one loop type at the group level (added,
removed, updated and unchanged motifs) and at the loop level.

Example:
  motifatlas diff 1.2 1.3 --type IL`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		typ, _ := cmd.Flags().GetString("type")
		loopType, err := parseLoopType(typ)
		if err != nil {
			return err
		}

		ctx := context.Background()
		if err := openStore(ctx); err != nil {
			return err
		}
		d, err := pipeline.DiffReleases(ctx, store, loopType, args[0], args[1])
		if err != nil {
			return err
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		fmt.Printf("\n%s %s %s → %s\n", cyan("Δ"), loopType, d.Old.ID, d.New.ID)
		fmt.Printf("  Motifs: %d → %d\n\n", len(d.Old.Motifs), len(d.New.Motifs))
		printGroupChanges(d.Groups)
		printSetChanges("Loops", d.Loops)
		return nil
	},
}

func init() {
	diffCmd.Flags().StringP("type", "t", "HL", "Loop type: HL, IL or J3")
	rootCmd.AddCommand(diffCmd)
}
