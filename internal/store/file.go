// Package store provides the persistence backends the learning cache
// serializes its state to. Three implementations are available:
//
//   - [FileStore]: a single local snapshot file, suitable for desktop use.
//   - [BadgerStore]: an embedded key-value database for installations that
//     want crash-safe storage without an external service.
//   - [PostgresStore]: a PostgreSQL table for multi-instance deployments.
//
// All backends implement [learn.Store] and are safe for concurrent use.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/clarivox/clarivox/internal/learn"
)

// Compile-time interface check.
var _ learn.Store = (*FileStore)(nil)

// FileStore persists snapshots to a single local file. Writes go to a
// temporary file first and are renamed into place, so a crash mid-write
// never corrupts the previous snapshot.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a FileStore writing to path. Parent directories are
// created on first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// SaveSnapshot implements [learn.Store].
func (fs *FileStore) SaveSnapshot(_ context.Context, data []byte) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if dir := filepath.Dir(fs.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("store: create dir: %w", err)
		}
	}

	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("store: write snapshot: %w", err)
	}
	if err := os.Rename(tmp, fs.path); err != nil {
		return fmt.Errorf("store: replace snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot implements [learn.Store].
func (fs *FileStore) LoadSnapshot(_ context.Context) ([]byte, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, learn.ErrNoSnapshot
		}
		return nil, fmt.Errorf("store: read snapshot: %w", err)
	}
	return data, nil
}
