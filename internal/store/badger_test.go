package store

import (
	"context"
	"errors"
	"testing"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/clarivox/clarivox/internal/learn"
)

func newInMemoryBadger(t *testing.T) *BadgerStore {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewBadgerStore(db)
}

func TestBadgerStore_Roundtrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newInMemoryBadger(t)

	want := []byte(`{"exact":{"formal|hello":"Hello."}}`)
	if err := s.SaveSnapshot(ctx, want); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	got, err := s.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if string(got) != string(want) {
		t.Errorf("LoadSnapshot = %q, want %q", got, want)
	}
}

func TestBadgerStore_EmptyIsNoSnapshot(t *testing.T) {
	t.Parallel()
	s := newInMemoryBadger(t)

	_, err := s.LoadSnapshot(context.Background())
	if !errors.Is(err, learn.ErrNoSnapshot) {
		t.Fatalf("LoadSnapshot = %v, want ErrNoSnapshot", err)
	}
}

func TestBadgerStore_OverwriteReplaces(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newInMemoryBadger(t)

	if err := s.SaveSnapshot(ctx, []byte("first")); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if err := s.SaveSnapshot(ctx, []byte("second")); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	got, err := s.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if string(got) != "second" {
		t.Errorf("LoadSnapshot = %q, want %q", got, "second")
	}
}
