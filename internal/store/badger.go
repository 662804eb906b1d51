package store

import (
	"context"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/clarivox/clarivox/internal/learn"
)

// snapshotKey is the single key the learning snapshot lives under.
var snapshotKey = []byte("learn/snapshot")

// Compile-time interface check.
var _ learn.Store = (*BadgerStore)(nil)

// BadgerStore persists snapshots in an embedded Badger database.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a Badger database at dir and returns a store
// backed by it. Call [BadgerStore.Close] on shutdown.
func OpenBadger(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: open badger at %s: %w", dir, err)
	}
	return &BadgerStore{db: db}, nil
}

// NewBadgerStore wraps an already-open database. The caller retains
// ownership of db.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// SaveSnapshot implements [learn.Store].
func (bs *BadgerStore) SaveSnapshot(_ context.Context, data []byte) error {
	err := bs.db.Update(func(txn *badger.Txn) error {
		return txn.Set(snapshotKey, data)
	})
	if err != nil {
		return fmt.Errorf("store: badger save: %w", err)
	}
	return nil
}

// LoadSnapshot implements [learn.Store].
func (bs *BadgerStore) LoadSnapshot(_ context.Context) ([]byte, error) {
	var data []byte
	err := bs.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey)
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, learn.ErrNoSnapshot
		}
		return nil, fmt.Errorf("store: badger load: %w", err)
	}
	return data, nil
}

// Close closes the underlying database.
func (bs *BadgerStore) Close() error {
	if err := bs.db.Close(); err != nil {
		return fmt.Errorf("store: close badger: %w", err)
	}
	return nil
}
