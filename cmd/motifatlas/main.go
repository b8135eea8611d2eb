package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/rna3dhub/motifatlas/internal/config"
	"github.com/rna3dhub/motifatlas/internal/storage"
)

var (
	cfgPath string
	dbFlag  string
	verbose bool

	cfg    *config.Config
	store  storage.Storage
	dbPath string
)

var rootCmd = &cobra.Command{
	Use:   "motifatlas",
	Short: "Build and release the RNA 3D motif atlas",
	Long: `motifatlas clusters RNA hairpin, internal and junction loops into motif
groups by geometric discrepancy and names them against the previous release.

Commands that read or write releases use the database in .atlas/ of the
current directory, ATLAS_DB_PATH, or the --db flag.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			_ = store.Close()
			store = nil
		}
	},
}

// openStore opens the configured release store into the global store.
func openStore(ctx context.Context) error {
	sc := cfg.StorageConfig()
	if sc.Backend == storage.BackendSQLite {
		path := dbFlag
		if path == "" {
			var err error
			path, err = storage.DiscoverDatabase()
			if err != nil {
				return err
			}
		}
		sc.Path = path
		dbPath = path
	}

	s, err := storage.NewStorage(ctx, sc)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	store = s
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&dbFlag, "db", "", "SQLite database path (default: discover .atlas/*.db)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
