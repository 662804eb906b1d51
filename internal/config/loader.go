package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known model provider names. Used by [Validate] to
// warn about unrecognised provider names.
var ValidProviderNames = []string{
	"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral",
	"groq", "llamacpp", "llamafile",
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Silence thresholds
	if cfg.Silence.BreakThreshold < 0 {
		errs = append(errs, fmt.Errorf("silence.break_threshold must not be negative"))
	}
	if cfg.Silence.EndThreshold < 0 {
		errs = append(errs, fmt.Errorf("silence.end_threshold must not be negative"))
	}
	if cfg.Silence.BreakThreshold > 0 && cfg.Silence.EndThreshold > 0 &&
		cfg.Silence.BreakThreshold >= cfg.Silence.EndThreshold {
		errs = append(errs, fmt.Errorf("silence.break_threshold (%s) must be shorter than silence.end_threshold (%s)",
			cfg.Silence.BreakThreshold, cfg.Silence.EndThreshold))
	}

	// Pipeline
	if cfg.Pipeline.Budget < 0 {
		errs = append(errs, fmt.Errorf("pipeline.budget must not be negative"))
	}
	if cfg.Pipeline.DefaultTone != "" && !cfg.Pipeline.DefaultTone.IsValid() {
		errs = append(errs, fmt.Errorf("pipeline.default_tone %q is invalid", cfg.Pipeline.DefaultTone))
	}
	if cfg.Pipeline.Dedup.Window < 0 {
		errs = append(errs, fmt.Errorf("pipeline.dedup.window must not be negative"))
	}
	if t := cfg.Pipeline.Dedup.Threshold; t != 0 && (t <= 0 || t > 1) {
		errs = append(errs, fmt.Errorf("pipeline.dedup.threshold %.2f is out of range (0, 1]", t))
	}
	if cfg.Pipeline.Grammar.ModelTimeout < 0 {
		errs = append(errs, fmt.Errorf("pipeline.grammar.model_timeout must not be negative"))
	}
	if cfg.Pipeline.Grammar.MinBudget < 0 {
		errs = append(errs, fmt.Errorf("pipeline.grammar.min_budget must not be negative"))
	}

	// Learning
	if cfg.Learning.MaxEntries < 0 {
		errs = append(errs, fmt.Errorf("learning.max_entries must not be negative"))
	}

	// Providers — warn for unknown names, error on missing models.
	validateProviderName("grammar", cfg.Providers.Grammar.Name)
	validateProviderName("suggest", cfg.Providers.Suggest.Name)
	for i, e := range cfg.Providers.SuggestFallbacks {
		validateProviderName(fmt.Sprintf("suggest_fallbacks[%d]", i), e.Name)
		if e.Name == "" {
			errs = append(errs, fmt.Errorf("providers.suggest_fallbacks[%d].name is required", i))
		}
	}
	if len(cfg.Providers.SuggestFallbacks) > 0 && cfg.Providers.Suggest.Name == "" {
		errs = append(errs, fmt.Errorf("providers.suggest_fallbacks requires providers.suggest to be configured"))
	}
	if cfg.Providers.Grammar.Name == "" && cfg.Providers.Suggest.Name == "" {
		slog.Warn("no model providers configured; grammar and auto-improve will use rule fallbacks only")
	}

	// Storage
	if cfg.Storage.Backend != "" && !cfg.Storage.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("storage.backend %q is invalid; valid values: file, badger, postgres", cfg.Storage.Backend))
	}
	switch cfg.Storage.Backend {
	case BackendBadger:
		if cfg.Storage.Badger.Dir == "" {
			errs = append(errs, fmt.Errorf("storage.badger.dir is required when storage.backend is badger"))
		}
	case BackendPostgres:
		if cfg.Storage.Postgres.DSN == "" {
			errs = append(errs, fmt.Errorf("storage.postgres.dsn is required when storage.backend is postgres"))
		}
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// [ValidProviderNames].
func validateProviderName(role, name string) {
	if name == "" || slices.Contains(ValidProviderNames, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"role", role,
		"name", name,
		"known", ValidProviderNames,
	)
}
