// Package filestore persists queue snapshots as newline-delimited JSON in a
// single file.
package filestore

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/phrazzld/runq/internal/queue"
)

// ErrEmptyPath is returned by New when no file path is given.
var ErrEmptyPath = errors.New("file path cannot be empty")

// Backend implements queue.Backend on top of one file.
type Backend struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

var _ queue.Backend = (*Backend)(nil)

// New creates a backend writing to path. The parent directory is created on
// first write.
func New(path string, logger *slog.Logger) (*Backend, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		path:   path,
		logger: logger.With("component", "filestore", "path", path),
	}, nil
}

// Path returns the file the backend writes to.
func (b *Backend) Path() string {
	return b.path
}

// Write replaces the file contents with records, one JSON object per line.
// The new contents are written to a temporary file and renamed over the old
// one so readers never observe a partial snapshot.
func (b *Backend) Write(ctx context.Context, records []queue.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("failed to encode record %d: %w", rec.ID, err)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpName)
	}

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, b.path); err != nil {
		cleanup()
		return fmt.Errorf("failed to replace %s: %w", b.path, err)
	}

	b.logger.Debug("snapshot written", "records", len(records))
	return nil
}

// ReadAll returns the stored records in order. A missing file yields no
// records and no error.
func (b *Backend) ReadAll(ctx context.Context) ([]queue.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	f, err := os.Open(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", b.path, err)
	}
	defer func() { _ = f.Close() }()

	var records []queue.Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var rec queue.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			b.logger.Warn("skipping malformed line", "line", line, "error", err)
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", b.path, err)
	}
	return records, nil
}
