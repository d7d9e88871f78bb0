package openai

import (
	"errors"
	"fmt"
	"os"
	"time"
)

const (
	defaultModel     = "text-embedding-3-small"
	defaultAPIKeyEnv = "OPENAI_API_KEY"
	defaultTimeout   = "30s"
)

// Config holds the configuration for the OpenAI embedding module.
type Config struct {
	// APIKey is the API key. When empty the key is read from APIKeyEnv.
	APIKey    string `yaml:"api_key"`
	APIKeyEnv string `yaml:"api_key_env"`

	// BaseURL overrides the API endpoint, for OpenAI-compatible servers.
	BaseURL string `yaml:"base_url"`

	Model string `yaml:"model"`

	// Dimensions asks models that support it to shorten their output.
	// Zero keeps the model's native size.
	Dimensions int `yaml:"dimensions"`

	Timeout string `yaml:"timeout"`
}

func (c *Config) defaults() {
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.APIKeyEnv == "" {
		c.APIKeyEnv = defaultAPIKeyEnv
	}
	if c.Timeout == "" {
		c.Timeout = defaultTimeout
	}
}

// apiKey returns the configured key, falling back to the environment.
func (c *Config) apiKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	return os.Getenv(c.APIKeyEnv)
}

func (c *Config) parsedTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

func (c *Config) validate() error {
	var errs []error
	if c.apiKey() == "" && c.BaseURL == "" {
		errs = append(errs, fmt.Errorf("embedding.openai: api_key is required (or set %s)", c.APIKeyEnv))
	}
	if c.Dimensions < 0 {
		errs = append(errs, errors.New("embedding.openai: dimensions must be non-negative"))
	}
	if d, err := time.ParseDuration(c.Timeout); err != nil || d <= 0 {
		errs = append(errs, fmt.Errorf("embedding.openai: invalid timeout %q", c.Timeout))
	}
	return errors.Join(errs...)
}
