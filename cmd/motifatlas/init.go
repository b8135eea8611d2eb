package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rna3dhub/motifatlas/internal/storage"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a motif atlas in the current directory",
	Long: `Initialize a motif atlas by creating a .atlas/ directory with a database.

This creates:
  - .atlas/ directory
  - .atlas/atlas.db (SQLite database with the release schema)

Example:
  cd ~/atlas
  motifatlas init`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}

		path, err := storage.InitProject(cwd)
		if err != nil {
			return err
		}

		// Opening the database creates it and applies the migrations.
		db, err := storage.NewStorage(context.Background(), &storage.Config{Backend: storage.BackendSQLite, Path: path})
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		_ = db.Close()

		green := color.New(color.FgGreen).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s Initialized motif atlas\n\n", green("✓"))
		fmt.Printf("  Database: %s\n", cyan(path))
		fmt.Printf("  Project root: %s\n", cyan(cwd))
		fmt.Println()
		fmt.Printf("%s Next steps:\n", gray("→"))
		fmt.Printf("  %s\n", gray("motifatlas release --dataset loops.json --type HL"))
		fmt.Printf("  %s\n", gray("motifatlas releases"))
		fmt.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
