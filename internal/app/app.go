// Package app wires all Clarivox subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves until the context is cancelled, and Shutdown tears
// everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithSnapshotStore, WithCache, etc.). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/clarivox/clarivox/internal/config"
	"github.com/clarivox/clarivox/internal/feedback"
	"github.com/clarivox/clarivox/internal/health"
	"github.com/clarivox/clarivox/internal/learn"
	"github.com/clarivox/clarivox/internal/observe"
	"github.com/clarivox/clarivox/internal/polish"
	"github.com/clarivox/clarivox/internal/polish/grammar"
	"github.com/clarivox/clarivox/internal/polish/tone"
	"github.com/clarivox/clarivox/internal/segment"
	"github.com/clarivox/clarivox/internal/server"
	"github.com/clarivox/clarivox/internal/store"
	"github.com/clarivox/clarivox/pkg/provider/llm"
)

// Providers holds one model backend per role. Nil means the role is not
// configured and its deterministic fallback carries the load alone.
// Populated by main.go via the config registry.
type Providers struct {
	// Grammar is consulted by the grammar stage's model strategy.
	Grammar llm.Provider

	// Suggest produces auto-improve suggestions. Typically wrapped in a
	// resilience fallback chain by main.go.
	Suggest llm.Provider
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers
	logger    *slog.Logger

	// Subsystems, initialised in New, torn down in Shutdown.
	snapshots   learn.Store
	cache       *learn.Cache
	classifier  *segment.Classifier
	pipeline    *polish.Pipeline
	coordinator *feedback.Coordinator
	server      *server.Server

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithSnapshotStore injects a snapshot store instead of creating one from
// the storage config.
func WithSnapshotStore(s learn.Store) Option {
	return func(a *App) { a.snapshots = s }
}

// WithCache injects a pre-built learning cache.
func WithCache(c *learn.Cache) Option {
	return func(a *App) { a.cache = c }
}

// WithLogger sets the application logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.logger = l
		}
	}
}

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). Use Option
// functions to inject test doubles for any subsystem.
//
// Initialisation order: snapshot store, learning cache (loading any prior
// snapshot), silence classifier, correction pipeline, feedback coordinator,
// HTTP server.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(a)
	}

	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}
	if err := a.initCache(ctx); err != nil {
		return nil, fmt.Errorf("app: init cache: %w", err)
	}
	if err := a.initClassifier(); err != nil {
		return nil, fmt.Errorf("app: init classifier: %w", err)
	}
	a.initPipeline()
	a.initCoordinator()
	a.initServer()

	return a, nil
}

// initStore creates the snapshot persistence backend selected in config.
func (a *App) initStore(ctx context.Context) error {
	if a.snapshots != nil {
		return nil
	}

	switch a.cfg.Storage.Backend {
	case config.BackendFile, "":
		path := a.cfg.Storage.File.Path
		if path == "" {
			path = "clarivox-learning.json"
		}
		a.snapshots = store.NewFileStore(path)

	case config.BackendBadger:
		bs, err := store.OpenBadger(a.cfg.Storage.Badger.Dir)
		if err != nil {
			return err
		}
		a.snapshots = bs
		a.closers = append(a.closers, bs.Close)

	case config.BackendPostgres:
		pool, err := pgxpool.New(ctx, a.cfg.Storage.Postgres.DSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		ps := store.NewPostgresStore(pool, a.cfg.Storage.Postgres.InstanceID)
		if err := ps.Migrate(ctx); err != nil {
			pool.Close()
			return fmt.Errorf("migrate postgres: %w", err)
		}
		a.snapshots = ps
		a.closers = append(a.closers, func() error {
			pool.Close()
			return nil
		})

	default:
		return fmt.Errorf("unknown storage backend %q", a.cfg.Storage.Backend)
	}

	a.logger.Info("snapshot store ready", slog.String("backend", string(a.cfg.Storage.Backend)))
	return nil
}

// initCache creates the learning cache and restores the last snapshot.
func (a *App) initCache(ctx context.Context) error {
	if a.cache == nil {
		metrics := observe.DefaultMetrics()
		a.cache = learn.NewCache(
			learn.WithStore(a.snapshots),
			learn.WithMaxEntries(a.cfg.Learning.MaxEntries),
			learn.WithCacheLogger(a.logger),
			learn.WithActivationHook(func(_, _ string, _ tone.Mode) {
				metrics.RecordRuleActivation(context.Background())
			}),
		)
	}

	if err := a.cache.Load(ctx); err != nil {
		return err
	}

	a.closers = append(a.closers, func() error {
		a.cache.Close()
		return nil
	})
	return nil
}

func (a *App) initClassifier() error {
	c, err := segment.NewClassifier(a.cfg.Silence.BreakThreshold, a.cfg.Silence.EndThreshold)
	if err != nil {
		return err
	}
	a.classifier = c
	return nil
}

// initPipeline assembles the five correction stages in their fixed order.
func (a *App) initPipeline() {
	metrics := observe.DefaultMetrics()

	var dedupOpts []polish.DedupOption
	if a.cfg.Pipeline.Dedup.Window > 0 {
		dedupOpts = append(dedupOpts, polish.WithDedupWindow(a.cfg.Pipeline.Dedup.Window))
	}
	if a.cfg.Pipeline.Dedup.Threshold > 0 {
		dedupOpts = append(dedupOpts, polish.WithDedupThreshold(a.cfg.Pipeline.Dedup.Threshold))
	}

	grammarOpts := []grammar.Option{}
	if a.providers.Grammar != nil {
		grammarOpts = append(grammarOpts, grammar.WithModel(grammar.NewLLMModel(a.providers.Grammar)))
	}
	if a.cfg.Pipeline.Grammar.ModelTimeout > 0 {
		grammarOpts = append(grammarOpts, grammar.WithModelTimeout(a.cfg.Pipeline.Grammar.ModelTimeout))
	}
	if a.cfg.Pipeline.Grammar.MinBudget > 0 {
		grammarOpts = append(grammarOpts, grammar.WithMinBudget(a.cfg.Pipeline.Grammar.MinBudget))
	}

	stages := []polish.Stage{
		polish.NewDedup(dedupOpts...),
		polish.NewDisfluency(),
		grammar.New(grammarOpts...),
		tone.NewTransformer(a.cache),
		polish.NewAutoFormat(),
	}

	a.pipeline = polish.NewPipeline(stages,
		polish.WithBudget(a.cfg.Pipeline.Budget),
		polish.WithExactMatcher(a.cache),
		polish.WithLogger(a.logger),
		polish.WithStageObserver(func(_ int, res polish.StageResult, _ string) {
			ctx := context.Background()
			metrics.RecordStage(ctx, res.Name, res.Applied, res.Elapsed.Seconds())
			if res.Err != nil && !errors.Is(res.Err, polish.ErrStageDegraded) {
				metrics.RecordStageError(ctx, res.Name)
			}
		}),
	)
}

func (a *App) initCoordinator() {
	opts := []feedback.CoordinatorOption{
		feedback.WithLogger(a.logger),
	}
	if a.providers.Suggest != nil {
		opts = append(opts, feedback.WithSuggester(a.providers.Suggest))
	}
	if a.cfg.Learning.SuggestTimeout > 0 {
		opts = append(opts, feedback.WithSuggestTimeout(a.cfg.Learning.SuggestTimeout))
	}
	a.coordinator = feedback.NewCoordinator(a.cache, opts...)
}

func (a *App) initServer() {
	a.server = server.New(a.cfg.Server.ListenAddr, server.Deps{
		Pipeline:    a.pipeline,
		Coordinator: a.coordinator,
		Cache:       a.cache,
		Classifier:  a.classifier,
		Health:      health.New(health.StoreChecker(a.snapshots)),
		Metrics:     observe.DefaultMetrics(),
		DefaultTone: a.cfg.Pipeline.DefaultTone,
		Logger:      a.logger,
	})
}

// Run serves until ctx is cancelled, then shuts the server down gracefully.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.server.StartTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = a.server.Start()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// ApplyDiff applies a hot-reloadable configuration change. Silence threshold
// changes take effect for new sessions; the pipeline budget for new runs.
// Stage tuning (dedup window, grammar timeouts) requires a restart.
func (a *App) ApplyDiff(d config.ConfigDiff) {
	if d.SilenceChanged {
		c, err := segment.NewClassifier(d.NewSilence.BreakThreshold, d.NewSilence.EndThreshold)
		if err != nil {
			a.logger.Warn("ignoring invalid silence thresholds in reloaded config",
				slog.String("error", err.Error()))
		} else {
			a.classifier = c
			a.server.SetClassifier(c)
			a.logger.Info("silence thresholds updated",
				slog.Duration("break", d.NewSilence.BreakThreshold),
				slog.Duration("end", d.NewSilence.EndThreshold))
		}
	}

	if d.PipelineChanged {
		a.pipeline.SetBudget(d.NewPipeline.Budget)
		a.logger.Info("pipeline budget updated", slog.Duration("budget", d.NewPipeline.Budget))
	}
}

// Shutdown tears down all subsystems in reverse dependency order: the
// learning cache's final snapshot is flushed before its store closes.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.logger.Info("shutting down", slog.Int("closers", len(a.closers)))

		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				a.logger.Warn("shutdown deadline exceeded", slog.Int("remaining", i+1))
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				a.logger.Warn("closer error", slog.Int("index", i), slog.String("error", err.Error()))
			}
		}

		a.logger.Info("shutdown complete")
	})
	return shutdownErr
}
