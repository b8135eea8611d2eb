package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rna3dhub/motifatlas/internal/types"
)

var releasesCmd = &cobra.Command{
	Use:   "releases",
	Short: "List stored releases",
	Long: `List stored releases, oldest first within each loop type.

Examples:
  motifatlas releases
  motifatlas releases --type IL`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		typ, _ := cmd.Flags().GetString("type")
		var loopType types.LoopType
		if typ != "" {
			var err error
			if loopType, err = parseLoopType(typ); err != nil {
				return err
			}
		}

		ctx := context.Background()
		if err := openStore(ctx); err != nil {
			return err
		}
		infos, err := store.ListReleases(ctx, loopType)
		if err != nil {
			return err
		}

		if len(infos) == 0 {
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Printf("\n%s No releases yet\n\n", yellow("✨"))
			return nil
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Printf("\n%s Releases (%d):\n\n", cyan("📋"), len(infos))
		for _, info := range infos {
			fmt.Printf("  %-3s %-7s %4d motifs  %s  %s\n",
				info.LoopType, info.ID, info.Motifs,
				info.Date.Format("2006-01-02"), gray(info.Description))
		}
		fmt.Println()
		return nil
	},
}

func init() {
	releasesCmd.Flags().StringP("type", "t", "", "Only list releases of this loop type")
	rootCmd.AddCommand(releasesCmd)
}
