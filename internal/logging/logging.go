// Package logging builds the loggers used across clinsync. Every component
// logs through a stdlib *log.Logger with a bracketed prefix; when a log
// file is configured the output also goes to a size-rotated file.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/clinsync/clinsync/internal/config"
)

// New returns a logger with the given bracketed prefix ("[sync] "). With
// an empty cfg.File it writes to stderr only; otherwise output is teed to
// a rotating file.
func New(prefix string, cfg config.LogConfig) *log.Logger {
	var w io.Writer = os.Stderr
	if cfg.File != "" {
		w = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		})
	}
	return log.New(w, prefix, log.LstdFlags)
}

// Quiet returns a logger that discards everything. Used by commands whose
// output must stay machine-readable.
func Quiet(prefix string) *log.Logger {
	return log.New(io.Discard, prefix, 0)
}
