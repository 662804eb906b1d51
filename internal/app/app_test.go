package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/clarivox/clarivox/internal/config"
	"github.com/clarivox/clarivox/internal/learn"
	"github.com/clarivox/clarivox/internal/polish"
	"github.com/clarivox/clarivox/internal/polish/tone"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{ListenAddr: "127.0.0.1:0"},
		Storage: config.StorageConfig{
			File: config.FileStorageConfig{
				Path: filepath.Join(t.TempDir(), "learning.json"),
			},
		},
	}
}

type stubStore struct {
	data  []byte
	saves int
}

func (s *stubStore) SaveSnapshot(_ context.Context, data []byte) error {
	s.data = data
	s.saves++
	return nil
}

func (s *stubStore) LoadSnapshot(_ context.Context) ([]byte, error) {
	if s.data == nil {
		return nil, learn.ErrNoSnapshot
	}
	return s.data, nil
}

func TestNew_FileBackend(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	a, err := New(ctx, testConfig(t), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestNew_InjectedStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := &stubStore{}
	a, err := New(ctx, testConfig(t), nil, WithSnapshotStore(s))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Shutdown(ctx)
}

func TestNew_UnknownStorageBackend(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Storage.Backend = "etcd"

	_, err := New(context.Background(), cfg, nil)
	if err == nil {
		t.Fatal("New accepted unknown storage backend")
	}
}

func TestNew_InvalidSilenceThresholds(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Silence.BreakThreshold = 3 * time.Second
	cfg.Silence.EndThreshold = 2 * time.Second

	_, err := New(context.Background(), cfg, nil)
	if err == nil {
		t.Fatal("New accepted break threshold above end threshold")
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	a, err := New(context.Background(), testConfig(t), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Shutdown(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	// Give the listener a moment to come up before cancelling.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestNew_PipelineRecordsStages(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	a, err := New(ctx, testConfig(t), nil, WithSnapshotStore(&stubStore{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { a.Shutdown(ctx) })

	// Drives the wired stage observer, which reports each stage's name,
	// applied flag, and elapsed seconds to the metrics instruments.
	res := a.pipeline.Run(ctx, polish.Utterance{
		RawText:  "um i could of done it",
		ToneMode: tone.ModeNeutral,
	})
	if want := "I could have done it."; res.FinalText != want {
		t.Errorf("FinalText = %q, want %q", res.FinalText, want)
	}
	if len(res.StagesApplied) != 5 {
		t.Errorf("StagesApplied = %d stages, want 5", len(res.StagesApplied))
	}
}

func TestShutdown_FlushesCacheToStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := &stubStore{}
	a, err := New(ctx, testConfig(t), nil, WithSnapshotStore(s))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	a.cache.SubmitCorrection("helo world", "helo world", "hello world", "neutral")

	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if s.saves == 0 {
		t.Fatal("Shutdown did not flush the learning snapshot")
	}
}
