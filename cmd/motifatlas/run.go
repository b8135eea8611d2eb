package main

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/rna3dhub/motifatlas/internal/dataset"
	"github.com/rna3dhub/motifatlas/internal/pipeline"
	"github.com/rna3dhub/motifatlas/internal/search"
	"github.com/rna3dhub/motifatlas/internal/types"
)

func loadDataset(path string) (*dataset.Dataset, error) {
	if path == "" {
		return nil, fmt.Errorf("--dataset is required")
	}
	return dataset.Load(path)
}

func parseLoopType(s string) (types.LoopType, error) {
	t := types.LoopType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("invalid loop type %q", s)
	}
	return t, nil
}

func newSearcher() search.Searcher {
	return &search.Backtracker{MaxCandidates: cfg.Search.MaxCandidates}
}

// printRunSummary prints what a pipeline run did, release or not.
func printRunSummary(res *pipeline.Result) {
	cyan := color.New(color.FgCyan).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	if res.Skipped && len(res.Loops) == 0 {
		fmt.Printf("\n%s Nothing to do\n\n", yellow("✨"))
		return
	}

	fmt.Printf("\n  Run:     %s\n", res.RunID)
	fmt.Printf("  Loops:   %s\n", cyan(len(res.Loops)))
	fmt.Printf("  Pairs:   %d\n", len(res.Pairs))
	fmt.Printf("  Groups:  %s\n", cyan(len(res.Groups)))
	if res.OutputDir != "" {
		fmt.Printf("  Output:  %s\n", cyan(res.OutputDir))
	}

	if len(res.Rejected) > 0 {
		fmt.Printf("\n%s %d loop(s) rejected while loading:\n", yellow("⚠"), len(res.Rejected))
		for _, r := range res.Rejected {
			fmt.Printf("  %s: %v\n", r.LoopID, r.Err)
		}
	}
	if len(res.Invalid) > 0 {
		fmt.Printf("\n%s %d unit(s) dropped:\n", yellow("⚠"), len(res.Invalid))
		for _, e := range res.Invalid {
			fmt.Printf("  %s: %v\n", e.Unit, e.Err)
		}
	}
	if res.Failures > 0 {
		fmt.Printf("\n%s %d stage(s) failed: %v\n", red("✗"), res.Failures, res.FailedStages)
		fmt.Printf("  Skipped: %v\n", res.SkippedStages)
	}
	fmt.Println()
}
