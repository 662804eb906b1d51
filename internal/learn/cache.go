// Package learn holds the per-tone learning memory: exact-match corrections,
// mined single-token rewrite rules, the append-only feedback history, and
// accuracy counters.
//
// All state is partitioned by tone mode — a correction learned under one
// tone mode never applies under another. The in-memory copy is authoritative;
// every mutation triggers a best-effort snapshot to the configured [Store],
// and a failed save is logged but never rolled back.
package learn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/clarivox/clarivox/internal/polish"
	"github.com/clarivox/clarivox/internal/polish/tone"
)

// ErrNoSnapshot is returned by [Store.LoadSnapshot] implementations when no
// prior state exists. The cache treats it as a clean first start.
var ErrNoSnapshot = errors.New("learn: no snapshot")

// Store persists the cache's full serialized state. Implementations live in
// internal/store and must be safe for concurrent use.
type Store interface {
	// SaveSnapshot durably replaces the previous snapshot with data.
	SaveSnapshot(ctx context.Context, data []byte) error

	// LoadSnapshot returns the most recent snapshot, or [ErrNoSnapshot] when
	// none has been saved yet.
	LoadSnapshot(ctx context.Context) ([]byte, error)
}

// activationCount is how many times the same single-token rewrite must be
// observed before its rule starts applying automatically.
const activationCount = 2

// Rule is a mined single-token rewrite. It becomes eligible for automatic
// application once Count reaches the activation threshold; Count only ever
// increases.
type Rule struct {
	From        string    `json:"from"`
	To          string    `json:"to"`
	Mode        tone.Mode `json:"mode"`
	Count       int       `json:"count"`
	ExampleRefs []int     `json:"example_refs"`
	FirstSeen   time.Time `json:"first_seen"`
}

// Active reports whether the rule has been confirmed often enough to apply.
func (r *Rule) Active() bool { return r.Count >= activationCount }

// FeedbackRecord is one entry of the append-only correction history. Records
// are never deleted; rules carry indexes into this history as provenance.
type FeedbackRecord struct {
	Timestamp      time.Time `json:"timestamp"`
	Original       string    `json:"original"`
	SystemOutput   string    `json:"system_output"`
	UserCorrection string    `json:"user_correction"`
	ToneMode       tone.Mode `json:"tone_mode"`
}

// AccuracyStats counts explicit user verdicts for one tone mode.
type AccuracyStats struct {
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

// Score is the approval ratio, defined as 0 when no verdicts exist.
func (s AccuracyStats) Score() float64 {
	total := s.Approved + s.Rejected
	if total == 0 {
		return 0
	}
	return float64(s.Approved) / float64(total)
}

type exactKey struct {
	Normalized string
	Mode       tone.Mode
}

type exactEntry struct {
	Correction string
	UpdatedAt  time.Time
}

type ruleKey struct {
	From string
	To   string
	Mode tone.Mode
}

// Cache is the learning memory. It implements [polish.ExactMatcher] and
// [tone.RuleSource].
//
// A single mutex guards all state; mutations marshal a snapshot while still
// holding the lock and hand it to a background writer, so persisted snapshots
// are applied in mutation order.
type Cache struct {
	mu         sync.RWMutex
	exact      map[exactKey]exactEntry
	rules      map[ruleKey]*Rule
	history    []FeedbackRecord
	stats      map[tone.Mode]*AccuracyStats
	maxEntries int

	store      Store
	logger     *slog.Logger
	onActivate func(from, to string, mode tone.Mode)

	persistCh chan []byte
	done      chan struct{}
	closeOnce sync.Once
	closed    bool
}

// Compile-time interface checks.
var (
	_ polish.ExactMatcher = (*Cache)(nil)
	_ tone.RuleSource     = (*Cache)(nil)
)

// CacheOption configures a [Cache].
type CacheOption func(*Cache)

// WithStore wires the persistence backend. Without it the cache is purely
// in-memory.
func WithStore(s Store) CacheOption {
	return func(c *Cache) { c.store = s }
}

// WithMaxEntries bounds the exact-match store; the least recently updated
// entry is evicted when the bound is exceeded. 0 (the default) means
// unbounded.
func WithMaxEntries(n int) CacheOption {
	return func(c *Cache) {
		if n >= 0 {
			c.maxEntries = n
		}
	}
}

// WithActivationHook registers fn to run after a rewrite rule crosses its
// activation threshold. The hook is called outside the cache lock and must
// not block.
func WithActivationHook(fn func(from, to string, mode tone.Mode)) CacheOption {
	return func(c *Cache) { c.onActivate = fn }
}

// WithCacheLogger sets the structured logger. Defaults to [slog.Default].
func WithCacheLogger(l *slog.Logger) CacheOption {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCache creates an empty cache and starts its persistence writer.
// Call [Cache.Load] before first use to restore prior state, and
// [Cache.Close] on shutdown to flush pending snapshots.
func NewCache(opts ...CacheOption) *Cache {
	c := &Cache{
		exact:     make(map[exactKey]exactEntry),
		rules:     make(map[ruleKey]*Rule),
		stats:     make(map[tone.Mode]*AccuracyStats),
		logger:    slog.Default(),
		persistCh: make(chan []byte, 16),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.persistLoop()
	return c
}

// Load restores state from the store. Missing snapshots are not an error.
func (c *Cache) Load(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	data, err := c.store.LoadSnapshot(ctx)
	if err != nil {
		if errors.Is(err, ErrNoSnapshot) {
			return nil
		}
		return fmt.Errorf("learn: load snapshot: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.restoreLocked(data); err != nil {
		return fmt.Errorf("learn: restore snapshot: %w", err)
	}
	return nil
}

// Close stops the persistence writer after draining queued snapshots.
func (c *Cache) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.persistCh)
		<-c.done
	})
}

// LookupExact implements [polish.ExactMatcher].
func (c *Cache) LookupExact(normalized string, mode tone.Mode) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.exact[exactKey{Normalized: normalized, Mode: mode}]
	return e.Correction, ok
}

// ActiveRules implements [tone.RuleSource]. Only rules confirmed at least
// twice under the given tone mode are returned.
func (c *Cache) ActiveRules(mode tone.Mode) []tone.LearnedRule {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []tone.LearnedRule
	for _, r := range c.rules {
		if r.Mode == mode && r.Active() {
			out = append(out, tone.LearnedRule{From: r.From, To: r.To})
		}
	}
	return out
}

// SubmitCorrection records a user correction: it appends to the history,
// updates the exact-match store (last write wins) and, when systemOutput and
// userCorrection differ by exactly one token, credits the corresponding rule.
func (c *Cache) SubmitCorrection(original, systemOutput, userCorrection string, mode tone.Mode) {
	now := time.Now()
	var activated bool

	c.mu.Lock()
	c.history = append(c.history, FeedbackRecord{
		Timestamp:      now,
		Original:       original,
		SystemOutput:   systemOutput,
		UserCorrection: userCorrection,
		ToneMode:       mode,
	})
	ref := len(c.history) - 1

	key := exactKey{Normalized: polish.Normalize(systemOutput), Mode: mode}
	c.exact[key] = exactEntry{Correction: userCorrection, UpdatedAt: now}
	c.evictLocked()

	if from, to, ok := singleTokenDiff(systemOutput, userCorrection); ok {
		rk := ruleKey{From: from, To: to, Mode: mode}
		r, exists := c.rules[rk]
		if !exists {
			r = &Rule{From: from, To: to, Mode: mode, FirstSeen: now}
			c.rules[rk] = r
		}
		r.Count++
		r.ExampleRefs = append(r.ExampleRefs, ref)
		if r.Count == activationCount {
			activated = true
			c.logger.Info("rewrite rule activated",
				slog.String("from", from),
				slog.String("to", to),
				slog.String("tone", string(mode)))
		}
	}

	data := c.snapshotLocked()
	c.mu.Unlock()

	if activated && c.onActivate != nil {
		from, to, _ := singleTokenDiff(systemOutput, userCorrection)
		c.onActivate(from, to, mode)
	}
	c.persist(data)
}

// Approve records a positive verdict for mode.
func (c *Cache) Approve(mode tone.Mode) {
	c.mu.Lock()
	c.statsLocked(mode).Approved++
	data := c.snapshotLocked()
	c.mu.Unlock()
	c.persist(data)
}

// Reject records a negative verdict for mode.
func (c *Cache) Reject(mode tone.Mode) {
	c.mu.Lock()
	c.statsLocked(mode).Rejected++
	data := c.snapshotLocked()
	c.mu.Unlock()
	c.persist(data)
}

// Stats returns a copy of the verdict counters for mode.
func (c *Cache) Stats(mode tone.Mode) AccuracyStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if s, ok := c.stats[mode]; ok {
		return *s
	}
	return AccuracyStats{}
}

// Summary describes the cache's current contents for the stats endpoint.
type Summary struct {
	ExactEntries int                         `json:"exact_entries"`
	Rules        int                         `json:"rules"`
	ActiveRules  int                         `json:"active_rules"`
	Corrections  int                         `json:"corrections"`
	Stats        map[tone.Mode]AccuracyStats `json:"stats"`
}

// Summarize reports aggregate counts across all tone modes.
func (c *Cache) Summarize() Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := Summary{
		ExactEntries: len(c.exact),
		Rules:        len(c.rules),
		Corrections:  len(c.history),
		Stats:        make(map[tone.Mode]AccuracyStats, len(c.stats)),
	}
	for _, r := range c.rules {
		if r.Active() {
			s.ActiveRules++
		}
	}
	for mode, st := range c.stats {
		s.Stats[mode] = *st
	}
	return s
}

func (c *Cache) statsLocked(mode tone.Mode) *AccuracyStats {
	s, ok := c.stats[mode]
	if !ok {
		s = &AccuracyStats{}
		c.stats[mode] = s
	}
	return s
}

// evictLocked drops least-recently-updated exact entries beyond the bound.
func (c *Cache) evictLocked() {
	if c.maxEntries <= 0 {
		return
	}
	for len(c.exact) > c.maxEntries {
		var (
			oldest   exactKey
			oldestAt time.Time
			found    bool
		)
		for k, e := range c.exact {
			if !found || e.UpdatedAt.Before(oldestAt) {
				oldest, oldestAt, found = k, e.UpdatedAt, true
			}
		}
		delete(c.exact, oldest)
	}
}

func (c *Cache) persist(data []byte) {
	if c.store == nil || data == nil {
		return
	}
	// The send happens under the read lock. Close sets closed and closes
	// persistCh under the write lock, so it cannot interleave between the
	// check and the send. persistLoop never takes the lock, so a full
	// channel still drains while we hold it.
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	c.persistCh <- data
}

// persistLoop writes snapshots in the order mutations produced them. When the
// queue backs up, intermediate snapshots are superseded by draining to the
// newest before writing.
func (c *Cache) persistLoop() {
	defer close(c.done)
	for data := range c.persistCh {
	drain:
		for {
			select {
			case next, ok := <-c.persistCh:
				if !ok {
					break drain
				}
				data = next
			default:
				break drain
			}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := c.store.SaveSnapshot(ctx, data); err != nil {
			c.logger.Error("snapshot save failed, in-memory state remains authoritative",
				slog.String("error", err.Error()))
		}
		cancel()
	}
}

// singleTokenDiff reports the (from, to) pair when a and b tokenize to the
// same length and differ in exactly one position. Tokens are compared
// case-insensitively with surrounding punctuation stripped.
func singleTokenDiff(a, b string) (from, to string, ok bool) {
	at := strings.Fields(a)
	bt := strings.Fields(b)
	if len(at) != len(bt) || len(at) == 0 {
		return "", "", false
	}
	diffs := 0
	for i := range at {
		fa := canonToken(at[i])
		fb := canonToken(bt[i])
		if fa == fb {
			continue
		}
		diffs++
		if diffs > 1 {
			return "", "", false
		}
		from, to = fa, fb
	}
	if diffs != 1 || from == "" || to == "" {
		return "", "", false
	}
	return from, to, true
}

func canonToken(t string) string {
	return strings.ToLower(strings.Trim(t, `.,!?;:"'()[]`))
}

// snapshot is the serialized on-disk form of the cache.
type snapshot struct {
	SavedAt time.Time                   `json:"saved_at"`
	Exact   []exactSnapshotEntry        `json:"exact"`
	Rules   []Rule                      `json:"rules"`
	History []FeedbackRecord            `json:"history"`
	Stats   map[tone.Mode]AccuracyStats `json:"stats"`
}

type exactSnapshotEntry struct {
	Normalized string    `json:"normalized"`
	Mode       tone.Mode `json:"mode"`
	Correction string    `json:"correction"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (c *Cache) snapshotLocked() []byte {
	snap := snapshot{
		SavedAt: time.Now(),
		Exact:   make([]exactSnapshotEntry, 0, len(c.exact)),
		Rules:   make([]Rule, 0, len(c.rules)),
		History: c.history,
		Stats:   make(map[tone.Mode]AccuracyStats, len(c.stats)),
	}
	for k, e := range c.exact {
		snap.Exact = append(snap.Exact, exactSnapshotEntry{
			Normalized: k.Normalized,
			Mode:       k.Mode,
			Correction: e.Correction,
			UpdatedAt:  e.UpdatedAt,
		})
	}
	for _, r := range c.rules {
		snap.Rules = append(snap.Rules, *r)
	}
	for mode, st := range c.stats {
		snap.Stats[mode] = *st
	}

	data, err := json.Marshal(snap)
	if err != nil {
		// All snapshot fields are plain JSON-serializable values.
		c.logger.Error("snapshot marshal failed", slog.String("error", err.Error()))
		return nil
	}
	return data
}

func (c *Cache) restoreLocked(data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}

	c.exact = make(map[exactKey]exactEntry, len(snap.Exact))
	for _, e := range snap.Exact {
		c.exact[exactKey{Normalized: e.Normalized, Mode: e.Mode}] = exactEntry{
			Correction: e.Correction,
			UpdatedAt:  e.UpdatedAt,
		}
	}

	c.rules = make(map[ruleKey]*Rule, len(snap.Rules))
	for i := range snap.Rules {
		r := snap.Rules[i]
		c.rules[ruleKey{From: r.From, To: r.To, Mode: r.Mode}] = &r
	}

	c.history = snap.History
	c.stats = make(map[tone.Mode]*AccuracyStats, len(snap.Stats))
	for mode, st := range snap.Stats {
		s := st
		c.stats[mode] = &s
	}
	return nil
}
