package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/clinsync/clinsync/internal/config"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clinsync.log")
	logger := New("[test] ", config.LogConfig{File: path, MaxSizeMB: 1})
	logger.Println("hello from the test")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "[test] ") {
		t.Errorf("log file missing prefix: %q", data)
	}
	if !strings.Contains(string(data), "hello from the test") {
		t.Errorf("log file missing message: %q", data)
	}
}

func TestNewWithoutFile(t *testing.T) {
	logger := New("[test] ", config.LogConfig{})
	if logger == nil {
		t.Fatal("expected a logger")
	}
	logger.Println("stderr only")
}

func TestQuietDiscards(t *testing.T) {
	logger := Quiet("[quiet] ")
	logger.Println("should vanish")
}
