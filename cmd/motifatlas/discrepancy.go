package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rna3dhub/motifatlas/internal/cluster"
	"github.com/rna3dhub/motifatlas/internal/pipeline"
)

var discrepancyCmd = &cobra.Command{
	Use:   "discrepancy",
	Short: "Compare two loops of a dataset",
	Long: `Search each loop's motif in the other and report the geometric discrepancy
of the best candidate, or the disqualification codes that rejected the pair.

Example:
  motifatlas discrepancy --dataset loops.json --loop1 HL_1S72_001 --loop2 HL_4V9F_012`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("dataset")
		loop1, _ := cmd.Flags().GetString("loop1")
		loop2, _ := cmd.Flags().GetString("loop2")
		if loop1 == "" || loop2 == "" {
			return fmt.Errorf("--loop1 and --loop2 are required")
		}
		ds, err := loadDataset(path)
		if err != nil {
			return err
		}

		p := pipeline.New(cfg, nil, newSearcher(), nil)
		fwd, rev, err := p.ComparePair(context.Background(), ds, loop1, loop2)
		if err != nil {
			return err
		}
		fmt.Println()
		printPairResult(fwd)
		printPairResult(rev)
		fmt.Println()
		return nil
	},
}

func printPairResult(r cluster.PairResult) {
	if r.Matched() {
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s %s in %s: discrepancy %.4f\n", green("✓"), r.Query, r.Target, r.Discrepancy)
		return
	}
	red := color.New(color.FgRed).SprintFunc()
	fmt.Printf("%s %s in %s: disqualified (%s)\n", red("✗"), r.Query, r.Target, formatCodes(r))
}

func init() {
	discrepancyCmd.Flags().String("dataset", "", "Dataset JSON file")
	discrepancyCmd.Flags().String("loop1", "", "First loop id")
	discrepancyCmd.Flags().String("loop2", "", "Second loop id")
	rootCmd.AddCommand(discrepancyCmd)
}
