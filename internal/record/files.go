package record

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ReadItemFile reads and parses a single item JSON file.
func ReadItemFile(path string) (*Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read item file %s: %w", path, err)
	}

	var item Item
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("failed to parse item file %s: %w", path, err)
	}

	if err := item.Validate(); err != nil {
		return nil, fmt.Errorf("invalid item file %s: %w", path, err)
	}

	return &item, nil
}

// WriteItemFile writes an item to dir/{id}.json atomically via a temp file.
func WriteItemFile(dir string, item *Item) error {
	if err := item.Validate(); err != nil {
		return fmt.Errorf("cannot write invalid item: %w", err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create item directory: %w", err)
	}

	// Compact encoding: MarshalIndent would re-indent the raw Fields
	// bytes and break payload equality across a write/read round trip.
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item %s: %w", item.ID, err)
	}

	path := filepath.Join(dir, item.Filename())
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// ReadAllItemFiles reads every *.json item in the directory.
// A missing directory is treated as empty. Invalid files are skipped
// with a warning to stderr.
func ReadAllItemFiles(dir string) ([]*Item, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*Item{}, nil
		}
		return nil, fmt.Errorf("failed to read item directory: %w", err)
	}

	var items []*Item
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		item, err := ReadItemFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: skipping invalid item file %s: %v\n", entry.Name(), err)
			continue
		}

		items = append(items, item)
	}

	return items, nil
}
