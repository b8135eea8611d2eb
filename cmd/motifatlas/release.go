package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rna3dhub/motifatlas/internal/pipeline"
	"github.com/rna3dhub/motifatlas/internal/storage"
	"github.com/rna3dhub/motifatlas/internal/types"
)

var releaseCmd = &cobra.Command{
	Use:   "release",
	Short: "Cluster a dataset and store the result as a new release",
	Long: `Run the full pipeline for one loop type: compare, cluster, align, name the
groups against the latest release, store the new release and write its CSV
files.

The release id increments the minor number unless --major is given.

Examples:
  motifatlas release --dataset loops.json --type HL
  motifatlas release --dataset loops.json --type IL --major --description "new structures"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("dataset")
		typ, _ := cmd.Flags().GetString("type")
		out, _ := cmd.Flags().GetString("out")
		major, _ := cmd.Flags().GetBool("major")
		description, _ := cmd.Flags().GetString("description")

		loopType, err := parseLoopType(typ)
		if err != nil {
			return err
		}
		ds, err := loadDataset(path)
		if err != nil {
			return err
		}

		ctx := context.Background()
		if err := openStore(ctx); err != nil {
			return err
		}
		lockPath, err := storage.LockPath(dbPath)
		if err != nil {
			return err
		}

		mode := types.ReleaseMinor
		if major {
			mode = types.ReleaseMajor
		}
		p := pipeline.New(cfg, store, newSearcher(), nil)
		res, err := p.Run(ctx, ds, pipeline.Options{
			LoopType:    loopType,
			Mode:        mode,
			Description: description,
			OutputDir:   out,
			Persist:     true,
			LockPath:    lockPath,
		})
		if err != nil {
			return err
		}

		if res.Release == nil {
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Printf("\n%s No release created\n", yellow("⚠"))
			printRunSummary(res)
			return nil
		}

		green := color.New(color.FgGreen).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()
		fmt.Printf("\n%s Created release %s %s\n", green("✓"), loopType, cyan(res.Release.ID))
		if res.Parent != nil {
			fmt.Printf("  Parent:  %s\n", res.Parent.ID)
		}
		printRunSummary(res)
		printGroupChanges(res.Changes)
		printSetChanges("Loops", res.LoopChanges)
		return nil
	},
}

func init() {
	releaseCmd.Flags().String("dataset", "", "Dataset JSON file")
	releaseCmd.Flags().StringP("type", "t", "HL", "Loop type: HL, IL or J3")
	releaseCmd.Flags().String("out", "", "Output directory (default: release.output_dir)")
	releaseCmd.Flags().Bool("major", false, "Increment the major release number")
	releaseCmd.Flags().String("description", "", "Release description")
	rootCmd.AddCommand(releaseCmd)
}
