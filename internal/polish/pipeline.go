package polish

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/clarivox/clarivox/internal/polish/tone"
	"github.com/clarivox/clarivox/internal/segment"
)

// Utterance is one finished stretch of speech handed to the pipeline after
// an end-of-turn event. It is immutable once created.
type Utterance struct {
	// RawText is the transcript text as produced by the speech engine. It may
	// contain [segment.ParagraphMarker] separators inserted by the tracker.
	RawText string

	// ToneMode selects the tone transformation and partitions all learned
	// corrections.
	ToneMode tone.Mode

	// CreatedAt is when the utterance was finalized.
	CreatedAt time.Time
}

// StageResult records one stage's contribution to a pipeline run.
type StageResult struct {
	// Name is the stage's [Stage.Name].
	Name string

	// Applied is false when the stage was skipped for budget reasons, failed,
	// or degraded to a cheap fallback sub-path.
	Applied bool

	// Elapsed is the wall time spent inside the stage.
	Elapsed time.Duration

	// Err is the stage's error, nil on success or budget skip. Degraded
	// stages carry [ErrStageDegraded] alongside usable output.
	Err error
}

// Result is the outcome of one pipeline run. It is never mutated after
// being returned.
type Result struct {
	// FinalText is the fully processed text.
	FinalText string

	// StagesApplied lists every stage in execution order. Empty (non-nil)
	// when the run was served from the learned exact-match store.
	StagesApplied []StageResult

	// Learned is true when FinalText came from a previously submitted user
	// correction rather than the stage chain.
	Learned bool

	// TotalElapsed is the wall time of the whole run.
	TotalElapsed time.Duration
}

// ExactMatcher looks up a previously learned correction for a normalized
// system output under a tone mode. Implemented by the learning cache.
type ExactMatcher interface {
	LookupExact(normalized string, mode tone.Mode) (correction string, ok bool)
}

// StageObserver is called synchronously after each stage with the stage's
// result and a snapshot of the text at that point. Transport layers use it
// to stream staged progress; the metrics layer uses it to record latencies.
// Not called on the learned fast path.
type StageObserver func(index int, res StageResult, text string)

// Pipeline sequences correction stages over an utterance under a latency
// budget, consulting the learned exact-match store first.
//
// Safe for concurrent use provided its stages are.
type Pipeline struct {
	stages   []Stage
	cache    ExactMatcher
	budget   atomic.Int64 // nanoseconds; swapped on config reload
	observer StageObserver
	logger   *slog.Logger
}

// PipelineOption configures a [Pipeline].
type PipelineOption func(*Pipeline)

// WithBudget sets the default latency budget for [Pipeline.Run].
// Defaults to 2s.
func WithBudget(d time.Duration) PipelineOption {
	return func(p *Pipeline) {
		if d > 0 {
			p.budget.Store(int64(d))
		}
	}
}

// WithExactMatcher wires the learned exact-match store consulted before any
// stage runs. Without it every run takes the full stage chain.
func WithExactMatcher(m ExactMatcher) PipelineOption {
	return func(p *Pipeline) { p.cache = m }
}

// WithStageObserver registers a [StageObserver].
func WithStageObserver(fn StageObserver) PipelineOption {
	return func(p *Pipeline) { p.observer = fn }
}

// WithLogger sets the structured logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPipeline creates a pipeline running stages in the given order.
func NewPipeline(stages []Stage, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		stages: stages,
		logger: slog.Default(),
	}
	p.budget.Store(int64(2 * time.Second))
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetBudget replaces the latency budget for subsequent runs. Runs already in
// flight keep the budget they started with.
func (p *Pipeline) SetBudget(d time.Duration) {
	if d > 0 {
		p.budget.Store(int64(d))
	}
}

// Run processes u through the stage chain and returns the result. A single
// failing stage never aborts the run: its output is discarded and the chain
// continues with the previous text. Run never blocks past the budget by more
// than one already-started stage.
func (p *Pipeline) Run(ctx context.Context, u Utterance) *Result {
	return p.RunObserved(ctx, u, nil)
}

// RunObserved is [Pipeline.Run] with an additional per-run observer, invoked
// after the pipeline-level one. Transport sessions use it to stream staged
// progress for a single utterance.
func (p *Pipeline) RunObserved(ctx context.Context, u Utterance, obs StageObserver) *Result {
	start := time.Now()

	normalized := Normalize(u.RawText)
	if p.cache != nil {
		if correction, ok := p.cache.LookupExact(normalized, u.ToneMode); ok {
			p.logger.Debug("serving learned correction",
				slog.String("tone", string(u.ToneMode)))
			return &Result{
				FinalText:     correction,
				StagesApplied: []StageResult{},
				Learned:       true,
				TotalElapsed:  time.Since(start),
			}
		}
	}

	text, sentenceCounts := stripParagraphMarkers(u.RawText)
	budget := time.Duration(p.budget.Load())

	results := make([]StageResult, 0, len(p.stages))
	for _, stage := range p.stages {
		remaining := budget - time.Since(start)

		if bs, ok := stage.(BudgetedStage); ok && remaining < bs.MinBudget() {
			stageStart := time.Now()
			text = bs.ApplyFast(text, u.ToneMode)
			res := StageResult{
				Name:    stage.Name(),
				Applied: false,
				Elapsed: time.Since(stageStart),
			}
			results = append(results, res)
			p.notify(obs, len(results)-1, res, text)
			p.logger.Debug("stage over budget, took fast path",
				slog.String("stage", stage.Name()),
				slog.Duration("remaining", remaining))
			continue
		}

		stageStart := time.Now()
		out, err := stage.Apply(ctx, text, u.ToneMode)
		elapsed := time.Since(stageStart)

		applied := err == nil
		switch {
		case err == nil:
			text = out
		case errors.Is(err, ErrStageDegraded):
			// Degraded output is still usable; the stage just could not run
			// its full sub-path.
			text = out
			p.logger.Warn("stage degraded",
				slog.String("stage", stage.Name()),
				slog.String("error", err.Error()))
		default:
			p.logger.Warn("stage failed, keeping previous text",
				slog.String("stage", stage.Name()),
				slog.String("error", err.Error()))
		}

		res := StageResult{
			Name:    stage.Name(),
			Applied: applied,
			Elapsed: elapsed,
			Err:     err,
		}
		results = append(results, res)
		p.notify(obs, len(results)-1, res, text)
	}

	if len(sentenceCounts) > 1 {
		text = insertParagraphBreaks(text, sentenceCounts)
	}

	return &Result{
		FinalText:     text,
		StagesApplied: results,
		Learned:       false,
		TotalElapsed:  time.Since(start),
	}
}

func (p *Pipeline) notify(obs StageObserver, index int, res StageResult, text string) {
	if p.observer != nil {
		p.observer(index, res, text)
	}
	if obs != nil {
		obs(index, res, text)
	}
}

// Normalize produces the canonical form used as the exact-match store key:
// lowercased, whitespace-collapsed, terminal punctuation stripped.
func Normalize(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	text = strings.Join(strings.Fields(text), " ")
	return strings.TrimRight(text, ".!?")
}

// stripParagraphMarkers flattens paragraph-separated text to a single run of
// prose and remembers how many sentences each paragraph held so the breaks
// can be re-inserted after the stages run.
func stripParagraphMarkers(text string) (string, []int) {
	paragraphs := strings.Split(text, segment.ParagraphMarker)
	if len(paragraphs) == 1 {
		return text, nil
	}

	counts := make([]int, 0, len(paragraphs))
	joined := make([]string, 0, len(paragraphs))
	for _, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		// A paragraph break ends the thought even when the transcript
		// carries no terminal punctuation. Close the paragraph so its
		// sentence boundary survives the flattened stage run.
		if !strings.ContainsAny(string(para[len(para)-1]), ".!?") {
			para += "."
		}
		counts = append(counts, len(SplitSentences(para)))
		joined = append(joined, para)
	}
	return strings.Join(joined, " "), counts
}

// insertParagraphBreaks re-interleaves paragraph separators into processed
// text at sentence boundaries, preserving the original per-paragraph sentence
// counts as closely as the surviving sentences allow.
func insertParagraphBreaks(text string, sentenceCounts []int) string {
	sentences := SplitSentences(text)
	if len(sentences) < 2 {
		return text
	}

	var b strings.Builder
	idx := 0
	for pi, count := range sentenceCounts {
		if idx >= len(sentences) {
			break
		}
		end := idx + count
		if end > len(sentences) || pi == len(sentenceCounts)-1 {
			end = len(sentences)
		}
		if pi > 0 {
			b.WriteString(segment.ParagraphMarker)
		}
		b.WriteString(strings.Join(sentences[idx:end], " "))
		idx = end
	}
	return b.String()
}
