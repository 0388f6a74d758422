// Package clinsync locates and lays out the .clinsync data directory.
//
// Layout:
//
//	.clinsync/
//	    config.yaml    configuration
//	    cache.db       SQLite key-value store (items + archive)
//	    clinsync.log   rotating log file (when configured)
package clinsync

import (
	"fmt"
	"os"
	"path/filepath"
)

// DirName is the data directory name searched for and created.
const DirName = ".clinsync"

// CacheFile is the SQLite store file inside the data directory.
const CacheFile = "cache.db"

// FindDataDir walks up from the working directory looking for a .clinsync
// directory, like git does for .git. Returns "" when none is found.
func FindDataDir() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, DirName)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// EnsureDataDir creates the data directory under root if needed and
// returns its path.
func EnsureDataDir(root string) (string, error) {
	dir := filepath.Join(root, DirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return dir, nil
}

// CachePath returns the SQLite store path inside a data directory.
func CachePath(dataDir string) string {
	return filepath.Join(dataDir, CacheFile)
}
