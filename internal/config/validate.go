package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/flemzord/utsuwa/internal/core"
	"github.com/flemzord/utsuwa/internal/cron"
)

// singletonCapabilities are module ID prefixes of which at most one module
// may be configured: they all register the same service.
var singletonCapabilities = []string{"store", "embedding"}

// Validate checks the structural validity of a Config.
// It verifies the version field, checks that all referenced module IDs
// exist in the registry, that no capability is provided twice, and that
// the memory, embedding, autosave and telemetry sections hold usable
// values. It expects ApplyDefaults to have run.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	for _, id := range Resolve(cfg) {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
		}
	}
	errs = append(errs, validateCapabilities(cfg)...)
	errs = append(errs, validateMemory(cfg.Memory)...)
	errs = append(errs, validateEmbedding(cfg.Embedding)...)
	errs = append(errs, validateAutosave(cfg.Autosave)...)

	if r := cfg.Telemetry.Tracing.SampleRate; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("config: telemetry.tracing.sample_rate must be within [0, 1], got %v", r))
	}

	return errors.Join(errs...)
}

func validateCapabilities(cfg *Config) []error {
	var errs []error
	for _, capability := range singletonCapabilities {
		if ids := capabilityIDs(cfg, capability); len(ids) > 1 {
			errs = append(errs, fmt.Errorf("config: only one %s module may be configured, got %s",
				capability, strings.Join(ids, ", ")))
		}
	}
	return errs
}

func validateMemory(m MemoryConfig) []error {
	var errs []error
	if m.SimilarityWeight < 0 || m.ImportanceWeight < 0 {
		errs = append(errs, errors.New("config: memory weights must not be negative"))
	}
	if m.SimilarityWeight == 0 && m.ImportanceWeight == 0 {
		errs = append(errs, errors.New("config: memory weights must not both be zero"))
	}
	if m.MinSimilarity < -1 || m.MinSimilarity > 1 {
		errs = append(errs, fmt.Errorf("config: memory.min_similarity must be within [-1, 1], got %v", m.MinSimilarity))
	}
	if m.Limit < 0 {
		errs = append(errs, fmt.Errorf("config: memory.limit must not be negative, got %d", m.Limit))
	}
	return errs
}

func validateEmbedding(e EmbeddingConfig) []error {
	var errs []error
	if e.LoadTimeout < 0 {
		errs = append(errs, errors.New("config: embedding.load_timeout must not be negative"))
	}
	if e.BackfillBatch < 0 {
		errs = append(errs, errors.New("config: embedding.backfill_batch must not be negative"))
	}
	if err := validateSchedule(e.BackfillSchedule); err != nil {
		errs = append(errs, fmt.Errorf("config: embedding.backfill_schedule: %w", err))
	}
	return errs
}

func validateAutosave(a AutosaveConfig) []error {
	var errs []error
	if a.Keep < 0 {
		errs = append(errs, errors.New("config: autosave.keep must not be negative"))
	}
	if err := validateSchedule(a.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("config: autosave.schedule: %w", err))
	}
	return errs
}

// validateSchedule accepts an empty expression, which defaults later.
func validateSchedule(expr string) error {
	if expr == "" {
		return nil
	}
	_, err := cron.ParseSchedule(expr)
	return err
}

// capabilityIDs returns the configured modules that provide capability.
func capabilityIDs(cfg *Config, capability string) []string {
	var ids []string
	for _, info := range core.GetModulesByNamespace(capability) {
		if _, ok := cfg.Modules[string(info.ID)]; ok {
			ids = append(ids, string(info.ID))
		}
	}
	return ids
}
