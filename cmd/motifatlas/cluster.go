package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rna3dhub/motifatlas/internal/pipeline"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Cluster the loops of a dataset without creating a release",
	Long: `Compare every loop of one type against every other, cluster them into
groups and write provisional CSV files. Groups are not named and nothing is
stored.

Examples:
  motifatlas cluster --dataset loops.json --type HL
  motifatlas cluster --dataset loops.json --type IL --out /tmp/il`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("dataset")
		typ, _ := cmd.Flags().GetString("type")
		out, _ := cmd.Flags().GetString("out")

		loopType, err := parseLoopType(typ)
		if err != nil {
			return err
		}
		ds, err := loadDataset(path)
		if err != nil {
			return err
		}

		p := pipeline.New(cfg, nil, newSearcher(), nil)
		res, err := p.Run(context.Background(), ds, pipeline.Options{LoopType: loopType, OutputDir: out})
		if err != nil {
			return err
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("\n%s Clustered %s loops\n", green("✓"), loopType)
		printRunSummary(res)
		return nil
	},
}

func init() {
	clusterCmd.Flags().String("dataset", "", "Dataset JSON file")
	clusterCmd.Flags().StringP("type", "t", "HL", "Loop type: HL, IL or J3")
	clusterCmd.Flags().String("out", "", "Output directory (default: release.output_dir)")
	rootCmd.AddCommand(clusterCmd)
}
