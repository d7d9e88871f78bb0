// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for utsuwa.
package config

import (
	"path/filepath"
	"time"

	"github.com/flemzord/utsuwa/internal/memory"
	"github.com/flemzord/utsuwa/internal/telemetry"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "store.sqlite").
	Modules map[string]yaml.Node `yaml:"modules"`

	Memory    MemoryConfig    `yaml:"memory"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Autosave  AutosaveConfig  `yaml:"autosave"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// MemoryConfig tunes fact recall.
type MemoryConfig struct {
	memory.RankOptions `yaml:",inline"`

	// Limit is the number of facts recalled per query.
	Limit int `yaml:"limit"`
}

// EmbeddingConfig controls the embedding service and its backfill job.
type EmbeddingConfig struct {
	// Interactive allows the daemon to load a model. Nil means true.
	Interactive *bool `yaml:"interactive"`

	LoadTimeout time.Duration `yaml:"load_timeout"`

	// BackfillSchedule is a five-field cron expression.
	BackfillSchedule string `yaml:"backfill_schedule"`
	BackfillBatch    int    `yaml:"backfill_batch"`
}

// AutosaveConfig controls the periodic save-file job.
type AutosaveConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Dir      string `yaml:"dir"`
	Schedule string `yaml:"schedule"`
	Keep     int    `yaml:"keep"`
}

// TelemetryConfig holds metrics and tracing settings.
type TelemetryConfig struct {
	Tracing telemetry.TracingConfig `yaml:"tracing"`
}

// Defaults used when a section leaves a field unset.
const (
	DefaultBackfillSchedule = "*/10 * * * *"
	DefaultBackfillBatch    = 100
	DefaultAutosaveSchedule = "0 3 * * *"
	DefaultAutosaveKeep     = 7
	DefaultLoadTimeout      = 2 * time.Minute
)

// ApplyDefaults fills unset fields. dataDir anchors the autosave directory.
func (c *Config) ApplyDefaults(dataDir string) {
	if c.Memory.RankOptions == (memory.RankOptions{}) {
		c.Memory.RankOptions = memory.DefaultRankOptions()
	}
	if c.Memory.Limit == 0 {
		c.Memory.Limit = memory.DefaultLimit
	}

	if c.Embedding.Interactive == nil {
		interactive := true
		c.Embedding.Interactive = &interactive
	}
	if c.Embedding.LoadTimeout == 0 {
		c.Embedding.LoadTimeout = DefaultLoadTimeout
	}
	if c.Embedding.BackfillSchedule == "" {
		c.Embedding.BackfillSchedule = DefaultBackfillSchedule
	}
	if c.Embedding.BackfillBatch == 0 {
		c.Embedding.BackfillBatch = DefaultBackfillBatch
	}

	if c.Autosave.Schedule == "" {
		c.Autosave.Schedule = DefaultAutosaveSchedule
	}
	if c.Autosave.Keep == 0 {
		c.Autosave.Keep = DefaultAutosaveKeep
	}
	if c.Autosave.Dir == "" && dataDir != "" {
		c.Autosave.Dir = filepath.Join(dataDir, "backups")
	}
}

// IsInteractive reports whether the embedding model may be loaded.
func (e EmbeddingConfig) IsInteractive() bool {
	return e.Interactive == nil || *e.Interactive
}
