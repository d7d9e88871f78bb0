package ollama

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"
)

const (
	defaultModel   = "nomic-embed-text"
	defaultHost    = "http://localhost:11434"
	defaultTimeout = "60s"
)

// Config holds the configuration for the Ollama embedding module.
type Config struct {
	// Host is the Ollama server URL. Defaults to $OLLAMA_HOST, then
	// http://localhost:11434.
	Host    string `yaml:"host"`
	Model   string `yaml:"model"`
	Timeout string `yaml:"timeout"`

	// Pull downloads the model at load time when the server lacks it.
	Pull bool `yaml:"pull"`
}

func (c *Config) defaults() {
	if c.Host == "" {
		c.Host = os.Getenv("OLLAMA_HOST")
	}
	if c.Host == "" {
		c.Host = defaultHost
	}
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.Timeout == "" {
		c.Timeout = defaultTimeout
	}
}

func (c *Config) parsedTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

func (c *Config) hostURL() (*url.URL, error) {
	u, err := url.Parse(c.Host)
	if err != nil {
		return nil, fmt.Errorf("embedding.ollama: invalid host %q: %w", c.Host, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("embedding.ollama: host %q must use http or https", c.Host)
	}
	return u, nil
}

func (c *Config) validate() error {
	var errs []error
	if _, err := c.hostURL(); err != nil {
		errs = append(errs, err)
	}
	if d, err := time.ParseDuration(c.Timeout); err != nil || d <= 0 {
		errs = append(errs, fmt.Errorf("embedding.ollama: invalid timeout %q", c.Timeout))
	}
	return errors.Join(errs...)
}
