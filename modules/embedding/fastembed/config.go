package fastembed

import (
	"errors"
	"fmt"
	"path/filepath"
)

const (
	defaultModel    = "fast-all-MiniLM-L6-v2"
	defaultCacheDir = "models"
)

// knownDimensions maps the models shipped by fastembed to their vector size.
var knownDimensions = map[string]int{
	"fast-all-MiniLM-L6-v2":  384,
	"fast-bge-small-en":      384,
	"fast-bge-small-en-v1.5": 384,
	"fast-bge-small-zh-v1.5": 512,
	"fast-bge-base-en":       768,
	"fast-bge-base-en-v1.5":  768,
}

// Config holds the configuration for the local embedding module.
type Config struct {
	Model string `yaml:"model"`

	// CacheDir stores downloaded model files. Relative paths resolve
	// against the data directory.
	CacheDir string `yaml:"cache_dir"`

	// MaxLength is the token limit per input. Zero keeps the model default.
	MaxLength int `yaml:"max_length"`
}

func (c *Config) defaults() {
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
}

func (c *Config) resolveCacheDir(dataDir string) {
	if !filepath.IsAbs(c.CacheDir) && dataDir != "" {
		c.CacheDir = filepath.Join(dataDir, c.CacheDir)
	}
}

func (c *Config) validate() error {
	var errs []error
	if _, ok := knownDimensions[c.Model]; !ok {
		errs = append(errs, fmt.Errorf("embedding.fastembed: unknown model %q", c.Model))
	}
	if c.MaxLength < 0 {
		errs = append(errs, errors.New("embedding.fastembed: max_length must be non-negative"))
	}
	return errors.Join(errs...)
}
