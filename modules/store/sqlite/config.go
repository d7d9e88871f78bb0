package sqlite

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

const (
	defaultBusyTimeout = 5000
	defaultDBFile      = "utsuwa.db"
	defaultSynchronous = "NORMAL"
)

var synchronousModes = []string{"OFF", "NORMAL", "FULL", "EXTRA"}

// Config holds the SQLite store module configuration.
type Config struct {
	// Path is the database file path. Defaults to {DataDir}/utsuwa.db.
	Path string `yaml:"path"`

	// WAL enables WAL journal mode so the gateway can read while an import
	// writes. Defaults to true.
	WAL *bool `yaml:"wal"`

	// BusyTimeout is the milliseconds to wait on a busy lock. Defaults to 5000.
	BusyTimeout int `yaml:"busy_timeout"`

	// Synchronous is the PRAGMA synchronous level. Defaults to NORMAL.
	Synchronous string `yaml:"synchronous"`
}

func (c *Config) defaults() {
	if c.WAL == nil {
		t := true
		c.WAL = &t
	}
	if c.BusyTimeout == 0 {
		c.BusyTimeout = defaultBusyTimeout
	}
	if c.Synchronous == "" {
		c.Synchronous = defaultSynchronous
	}
	c.Synchronous = strings.ToUpper(c.Synchronous)
}

func (c *Config) walEnabled() bool {
	return c.WAL == nil || *c.WAL
}

func (c *Config) validate() error {
	var errs []error
	if c.BusyTimeout < 0 {
		errs = append(errs, fmt.Errorf("sqlite: busy_timeout must be non-negative, got %d", c.BusyTimeout))
	}
	if !slices.Contains(synchronousModes, c.Synchronous) {
		errs = append(errs, fmt.Errorf("sqlite: synchronous must be one of %v, got %q", synchronousModes, c.Synchronous))
	}
	return errors.Join(errs...)
}
