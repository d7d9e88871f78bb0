// Package sqlite implements a persistent SQLite-backed entity store module.
// It uses modernc.org/sqlite (pure Go, no CGO) in WAL mode and registers
// itself as the "store" service.
package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/flemzord/utsuwa/internal/core"
	"github.com/flemzord/utsuwa/internal/store"
	"gopkg.in/yaml.v3"
)

// ModuleID is the id under which the module registers.
const ModuleID core.ModuleID = "store.sqlite"

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// Module provides a store.Store backed by a single SQLite database.
type Module struct {
	config Config
	logger *slog.Logger
	store  *Store
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  ModuleID,
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("sqlite: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	if err := m.config.validate(); err != nil {
		return err
	}
	if m.config.Path == "" {
		m.config.Path = filepath.Join(ctx.DataDir, defaultDBFile)
	}

	db, err := openDB(context.Background(), m.config)
	if err != nil {
		return err
	}
	m.store = newStore(db)

	ctx.RegisterService(store.ServiceName, store.Store(m.store))

	m.logger.Info("sqlite store provisioned",
		"path", m.config.Path,
		"wal", m.config.walEnabled(),
		"schema_version", schemaVersion,
	)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if err := m.config.validate(); err != nil {
		return err
	}
	if err := m.store.db.PingContext(context.Background()); err != nil {
		return fmt.Errorf("sqlite: ping failed: %w", err)
	}
	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	if m.logger != nil {
		m.logger.Info("sqlite store stopping")
	}
	if m.store != nil {
		return m.store.Close()
	}
	return nil
}

// Store returns the store. It is nil before Provision.
func (m *Module) Store() *Store {
	return m.store
}
