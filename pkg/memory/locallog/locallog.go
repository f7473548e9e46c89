// Package locallog implements the memory write path of last resort: an
// append-only plain-text file on the local machine.
//
// Entries are written as human-readable blocks so that memories captured
// while the remote service was unreachable can be recovered (or simply read)
// without any tooling:
//
//	--- Memory Entry ---
//	Timestamp: 2026-03-14T09:30:00Z
//	Category: note
//	Text: buy more coffee filters
//	Metadata: {"trigger":"note this"}
//	--- End Entry ---
package locallog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/k00jax/omi/pkg/memory"
)

// DefaultPath is the fallback log file used when no path is configured.
// Relative paths resolve against the process working directory.
const DefaultPath = "omi_memories.txt"

// Log appends memory records to a plain-text file.
// It is safe for concurrent use; blocks from concurrent writers never
// interleave.
type Log struct {
	mu   sync.Mutex
	path string
}

var _ memory.Writer = (*Log)(nil)

// New creates a local memory log writing to path. An empty path selects
// [DefaultPath]. The file is created on first write.
func New(path string) *Log {
	if path == "" {
		path = DefaultPath
	}
	return &Log{path: path}
}

// Path returns the file this log appends to.
func (l *Log) Path() string { return l.path }

// Write implements [memory.Writer]. It appends rec as one entry block,
// creating the file if it does not exist.
func (l *Log) Write(_ context.Context, rec memory.Record) error {
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	meta := rec.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("local memory log: marshal metadata: %w", err)
	}

	block := fmt.Sprintf("\n--- Memory Entry ---\nTimestamp: %s\nCategory: %s\nText: %s\nMetadata: %s\n--- End Entry ---\n",
		created.UTC().Format(time.RFC3339), rec.Category, rec.Text, metaJSON)

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("local memory log: open: %w", err)
	}
	if _, err := f.WriteString(block); err != nil {
		f.Close()
		return fmt.Errorf("local memory log: write: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("local memory log: close: %w", err)
	}

	slog.Debug("memory: saved to local log", "path", l.path, "category", rec.Category)
	return nil
}
