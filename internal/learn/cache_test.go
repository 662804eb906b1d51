package learn

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/clarivox/clarivox/internal/polish/tone"
)

// memStore is an in-memory snapshot store.
type memStore struct {
	mu      sync.Mutex
	data    []byte
	saves   int
	saveErr error
}

func (s *memStore) SaveSnapshot(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.data = append([]byte(nil), data...)
	return nil
}

func (s *memStore) LoadSnapshot(context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return nil, ErrNoSnapshot
	}
	return append([]byte(nil), s.data...), nil
}

func newTestCache(t *testing.T, opts ...CacheOption) *Cache {
	t.Helper()
	c := NewCache(opts...)
	t.Cleanup(c.Close)
	return c
}

func TestCache_ExactMatch(t *testing.T) {
	t.Parallel()

	c := newTestCache(t)
	c.SubmitCorrection("i could of done it", "I could of done it.", "I could have done it.", tone.ModeNeutral)

	// The key is the normalized system output: case, spacing, and terminal
	// punctuation are ignored.
	got, ok := c.LookupExact("i could of done it", tone.ModeNeutral)
	if !ok {
		t.Fatal("LookupExact() miss, want hit")
	}
	if got != "I could have done it." {
		t.Errorf("LookupExact() = %q, want stored correction", got)
	}

	if _, ok := c.LookupExact("something else", tone.ModeNeutral); ok {
		t.Error("LookupExact() hit for unknown text")
	}
}

func TestCache_ExactMatchToneScoped(t *testing.T) {
	t.Parallel()

	c := newTestCache(t)
	c.SubmitCorrection("orig", "the output", "formal correction", tone.ModeFormal)

	if _, ok := c.LookupExact("the output", tone.ModeCasual); ok {
		t.Error("correction learned under formal leaked into casual")
	}
	if _, ok := c.LookupExact("the output", tone.ModeFormal); !ok {
		t.Error("correction missing under its own mode")
	}
}

func TestCache_LastWriteWins(t *testing.T) {
	t.Parallel()

	c := newTestCache(t)
	c.SubmitCorrection("o", "same output", "first correction", tone.ModeNeutral)
	c.SubmitCorrection("o", "same output", "second correction", tone.ModeNeutral)

	got, ok := c.LookupExact("same output", tone.ModeNeutral)
	if !ok || got != "second correction" {
		t.Errorf("LookupExact() = %q, %v; want latest correction", got, ok)
	}
}

func TestCache_RuleActivation(t *testing.T) {
	t.Parallel()

	c := newTestCache(t)

	// One occurrence is not enough.
	c.SubmitCorrection("orig", "the colour red", "the color red", tone.ModeNeutral)
	if rules := c.ActiveRules(tone.ModeNeutral); len(rules) != 0 {
		t.Fatalf("ActiveRules() after one sighting = %v, want none", rules)
	}

	// A second single-token confirmation activates the rule.
	c.SubmitCorrection("orig", "my colour choice", "my color choice", tone.ModeNeutral)
	rules := c.ActiveRules(tone.ModeNeutral)
	if len(rules) != 1 {
		t.Fatalf("ActiveRules() = %v, want one rule", rules)
	}
	if rules[0].From != "colour" || rules[0].To != "color" {
		t.Errorf("rule = %+v, want colour→color", rules[0])
	}
}

func TestCache_ActivationHookFiresOnce(t *testing.T) {
	t.Parallel()

	type activation struct {
		from, to string
		mode     tone.Mode
	}
	var got []activation
	c := newTestCache(t, WithActivationHook(func(from, to string, mode tone.Mode) {
		got = append(got, activation{from, to, mode})
	}))

	c.SubmitCorrection("orig", "the colour red", "the color red", tone.ModeNeutral)
	c.SubmitCorrection("orig", "my colour choice", "my color choice", tone.ModeNeutral)
	// A third confirmation must not re-fire the hook.
	c.SubmitCorrection("orig", "colour is fine", "color is fine", tone.ModeNeutral)

	want := []activation{{"colour", "color", tone.ModeNeutral}}
	if len(got) != 1 || got[0] != want[0] {
		t.Errorf("activations = %v, want %v", got, want)
	}
}

func TestCache_RulesToneScoped(t *testing.T) {
	t.Parallel()

	c := newTestCache(t)
	c.SubmitCorrection("o", "the colour red", "the color red", tone.ModeFormal)
	c.SubmitCorrection("o", "my colour choice", "my color choice", tone.ModeFormal)

	if rules := c.ActiveRules(tone.ModeCasual); len(rules) != 0 {
		t.Errorf("formal rule visible under casual: %v", rules)
	}
	if rules := c.ActiveRules(tone.ModeFormal); len(rules) != 1 {
		t.Errorf("ActiveRules(formal) = %v, want one rule", rules)
	}
}

func TestCache_NoRuleForMultiTokenDiff(t *testing.T) {
	t.Parallel()

	c := newTestCache(t)
	for range 3 {
		c.SubmitCorrection("o", "this are bad wording", "these were good wording", tone.ModeNeutral)
	}
	if rules := c.ActiveRules(tone.ModeNeutral); len(rules) != 0 {
		t.Errorf("multi-token diff produced rules: %v", rules)
	}
}

func TestSingleTokenDiff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		a, b     string
		from, to string
		ok       bool
	}{
		{"one token differs", "the colour red", "the color red", "colour", "color", true},
		{"punctuation ignored", "Fix teh bug.", "Fix the bug.", "teh", "the", true},
		{"identical", "same text", "same text", "", "", false},
		{"two tokens differ", "a b c", "x b y", "", "", false},
		{"different lengths", "one two", "one two three", "", "", false},
		{"empty", "", "", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			from, to, ok := singleTokenDiff(tt.a, tt.b)
			if ok != tt.ok || from != tt.from || to != tt.to {
				t.Errorf("singleTokenDiff(%q, %q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.a, tt.b, from, to, ok, tt.from, tt.to, tt.ok)
			}
		})
	}
}

func TestCache_StatsScore(t *testing.T) {
	t.Parallel()

	c := newTestCache(t)

	if got := c.Stats(tone.ModeNeutral).Score(); got != 0 {
		t.Errorf("empty Score() = %v, want 0", got)
	}

	for range 17 {
		c.Approve(tone.ModeNeutral)
	}
	for range 3 {
		c.Reject(tone.ModeNeutral)
	}

	st := c.Stats(tone.ModeNeutral)
	if st.Approved != 17 || st.Rejected != 3 {
		t.Fatalf("Stats = %+v, want 17 approved / 3 rejected", st)
	}
	if got := st.Score(); got != 0.85 {
		t.Errorf("Score() = %v, want 0.85", got)
	}

	// Stats are partitioned by tone mode.
	if got := c.Stats(tone.ModeFormal).Score(); got != 0 {
		t.Errorf("Stats(formal).Score() = %v, want 0", got)
	}
}

func TestCache_Eviction(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, WithMaxEntries(2))
	c.SubmitCorrection("o", "first entry", "c1", tone.ModeNeutral)
	c.SubmitCorrection("o", "second entry", "c2", tone.ModeNeutral)
	c.SubmitCorrection("o", "third entry", "c3", tone.ModeNeutral)

	if _, ok := c.LookupExact("first entry", tone.ModeNeutral); ok {
		t.Error("oldest entry not evicted")
	}
	if _, ok := c.LookupExact("second entry", tone.ModeNeutral); !ok {
		t.Error("second entry evicted, want kept")
	}
	if _, ok := c.LookupExact("third entry", tone.ModeNeutral); !ok {
		t.Error("newest entry evicted, want kept")
	}
}

func TestCache_SnapshotRoundtrip(t *testing.T) {
	t.Parallel()

	store := &memStore{}

	first := NewCache(WithStore(store))
	first.SubmitCorrection("orig", "the colour red", "the color red", tone.ModeFormal)
	first.SubmitCorrection("orig", "my colour pick", "my color pick", tone.ModeFormal)
	first.Approve(tone.ModeFormal)
	first.Reject(tone.ModeFormal)
	first.Close() // flushes the final snapshot

	second := newTestCache(t, WithStore(store))
	if err := second.Load(context.Background()); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if _, ok := second.LookupExact("the colour red", tone.ModeFormal); !ok {
		t.Error("exact entry lost across snapshot")
	}
	if rules := second.ActiveRules(tone.ModeFormal); len(rules) != 1 {
		t.Errorf("ActiveRules() after restore = %v, want one rule", rules)
	}
	st := second.Stats(tone.ModeFormal)
	if st.Approved != 1 || st.Rejected != 1 {
		t.Errorf("Stats after restore = %+v", st)
	}
}

func TestCache_LoadWithoutSnapshotIsClean(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, WithStore(&memStore{}))
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load() on empty store error: %v", err)
	}
	if s := c.Summarize(); s.ExactEntries != 0 || s.Rules != 0 {
		t.Errorf("Summarize() after clean load = %+v", s)
	}
}

func TestCache_MemoryAuthoritativeOnPersistFailure(t *testing.T) {
	t.Parallel()

	store := &memStore{saveErr: errors.New("disk full")}
	c := newTestCache(t, WithStore(store))

	c.SubmitCorrection("o", "broken persist", "still cached", tone.ModeNeutral)

	if got, ok := c.LookupExact("broken persist", tone.ModeNeutral); !ok || got != "still cached" {
		t.Errorf("LookupExact() = %q, %v; in-memory state must survive store failure", got, ok)
	}
}

func TestCache_CloseDuringMutations(t *testing.T) {
	t.Parallel()

	// Close races the persistence queue against in-flight mutators. Feedback
	// can still arrive from hijacked websocket sessions while shutdown runs,
	// so a mutation landing after Close must be dropped, not panic.
	c := NewCache(WithStore(&memStore{}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				c.Approve(tone.ModeNeutral)
				c.SubmitCorrection("o", "teh end", "the end", tone.ModeNeutral)
			}
		}()
	}
	c.Close()
	wg.Wait()

	if got, ok := c.LookupExact("teh end", tone.ModeNeutral); ok && got != "the end" {
		t.Errorf("LookupExact() = %q, want %q", got, "the end")
	}
}

func TestCache_Summarize(t *testing.T) {
	t.Parallel()

	c := newTestCache(t)
	c.SubmitCorrection("o", "the colour red", "the color red", tone.ModeNeutral)
	c.SubmitCorrection("o", "my colour pick", "my color pick", tone.ModeNeutral)
	c.Approve(tone.ModeNeutral)

	s := c.Summarize()
	if s.ExactEntries != 2 {
		t.Errorf("ExactEntries = %d, want 2", s.ExactEntries)
	}
	if s.Rules != 1 || s.ActiveRules != 1 {
		t.Errorf("Rules = %d, ActiveRules = %d, want 1/1", s.Rules, s.ActiveRules)
	}
	if s.Corrections != 2 {
		t.Errorf("Corrections = %d, want 2", s.Corrections)
	}
}

func TestAccuracyStats_Score(t *testing.T) {
	t.Parallel()

	tests := []struct {
		stats AccuracyStats
		want  float64
	}{
		{AccuracyStats{}, 0},
		{AccuracyStats{Approved: 1}, 1},
		{AccuracyStats{Rejected: 4}, 0},
		{AccuracyStats{Approved: 17, Rejected: 3}, 0.85},
	}
	for _, tt := range tests {
		if got := tt.stats.Score(); got != tt.want {
			t.Errorf("%+v.Score() = %v, want %v", tt.stats, got, tt.want)
		}
	}
}
