package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// AtlasDir is the per-project state directory.
const AtlasDir = ".atlas"

// DiscoverDatabase looks for .atlas/*.db in the current directory only.
// ATLAS_DB_PATH, when set, is returned as is, which allows ":memory:" in
// tests.
func DiscoverDatabase() (string, error) {
	if dbPath := os.Getenv("ATLAS_DB_PATH"); dbPath != "" {
		return dbPath, nil
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	return discoverDatabaseInDir(dir)
}

// discoverDatabaseInDir checks for .atlas/*.db in dir. Parent directories
// are not searched so that a nested project never picks up its parent's
// database.
func discoverDatabaseInDir(dir string) (string, error) {
	atlasDir := filepath.Join(dir, AtlasDir)

	if info, err := os.Stat(atlasDir); err == nil && info.IsDir() {
		entries, err := os.ReadDir(atlasDir)
		if err == nil {
			for _, entry := range entries {
				if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".db") {
					absPath, err := filepath.Abs(filepath.Join(atlasDir, entry.Name()))
					if err != nil {
						return "", fmt.Errorf("failed to get absolute path: %w", err)
					}
					return absPath, nil
				}
			}
		}
	}

	return "", fmt.Errorf(
		"no %s/*.db found in %s\n"+
			"  Run 'motifatlas init' to initialize an atlas in this directory\n"+
			"  Or use --db flag to specify database path explicitly",
		AtlasDir, dir)
}

// GetProjectRoot returns the directory containing the .atlas/ directory of
// dbPath.
//
// Example:
//
//	dbPath: /home/user/atlas/.atlas/atlas.db
//	returns: /home/user/atlas
func GetProjectRoot(dbPath string) (string, error) {
	absPath, err := filepath.Abs(dbPath)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	dbDir := filepath.Dir(absPath)
	if filepath.Base(dbDir) != AtlasDir {
		return "", fmt.Errorf("database must be in a %s/ directory, got: %s", AtlasDir, dbPath)
	}
	return filepath.Dir(dbDir), nil
}

// InitProject creates the .atlas directory under projectDir and returns the
// database path to open. The database itself is created on first open.
func InitProject(projectDir string) (string, error) {
	if _, err := os.Stat(projectDir); os.IsNotExist(err) {
		return "", fmt.Errorf("project directory does not exist: %s", projectDir)
	}

	atlasDir := filepath.Join(projectDir, AtlasDir)
	if err := os.MkdirAll(atlasDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s directory: %w", AtlasDir, err)
	}

	dbPath := filepath.Join(atlasDir, "atlas.db")
	if _, err := os.Stat(dbPath); err == nil {
		return "", fmt.Errorf("database already exists: %s", dbPath)
	}
	return dbPath, nil
}
