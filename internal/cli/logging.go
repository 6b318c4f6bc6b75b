// Package cli holds the small amount of process-setup code shared by
// FlexRender's three entry points (cmd/renderer, cmd/worker,
// cmd/baseline): debug-gated file logging with size-based rotation,
// disabled by default so a render's stdout stays clean.
package cli

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"
)

const (
	logDir     = "logs"
	maxLogSize = 10 * 1024 * 1024 // 10MB
)

// SetupLogging configures log output for one process named name. When
// debug is false, logging is disabled entirely. Otherwise it opens (and
// rotates, past maxLogSize) "logs/<name>.log" and returns the file handle
// the caller should close on exit.
func SetupLogging(name string, debug bool) (*log.Logger, *os.File) {
	logger := log.New(io.Discard, "", log.Ldate|log.Ltime|log.Lmicroseconds)
	if !debug {
		return logger, nil
	}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to create logs directory: %v\n", err)
		return logger, nil
	}

	logPath := filepath.Join(logDir, name+".log")
	if info, err := os.Stat(logPath); err == nil && info.Size() > maxLogSize {
		rotated := filepath.Join(logDir, fmt.Sprintf("%s-%s.log", name, time.Now().Format("2006-01-02-15-04-05")))
		if err := os.Rename(logPath, rotated); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to rotate log file: %v\n", err)
		}
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to open log file: %v\n", err)
		return logger, nil
	}

	logger.SetOutput(f)
	logger.Printf("=== %s started ===", name)
	return logger, f
}
