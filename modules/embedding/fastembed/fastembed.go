// Package fastembed implements the embedding.fastembed module, which runs a
// sentence embedding model in process with ONNX Runtime. The model is
// downloaded into the cache directory on first load.
//
// The ONNX bindings are compiled only with the fastembed build tag. Without
// it every load fails with ErrNotCompiled.
package fastembed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/flemzord/utsuwa/internal/core"
	"github.com/flemzord/utsuwa/internal/embedding"
	"gopkg.in/yaml.v3"
)

// ModuleID is the id under which the module registers.
const ModuleID core.ModuleID = "embedding.fastembed"

// ErrNotCompiled is returned by Load in builds without the fastembed tag.
var ErrNotCompiled = errors.New("embedding.fastembed: support not compiled in; rebuild with -tags fastembed")

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ embedding.Loader  = (*Module)(nil)
)

// Module registers an embedding.Loader for a local ONNX model.
type Module struct {
	config Config
	logger *slog.Logger
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
		return fmt.Errorf("embedding.fastembed: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.config.resolveCacheDir(ctx.DataDir)
	m.logger = ctx.Logger
	ctx.RegisterService(embedding.LoaderService, embedding.Loader(m))
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	return m.config.validate()
}

// Load implements embedding.Loader. Model construction cannot be
// interrupted; when ctx ends first, Load returns and the late model is
// released once it arrives.
func (m *Module) Load(ctx context.Context) (embedding.Model, error) {
	type result struct {
		model *model
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		mdl, err := newModel(m.config)
		ch <- result{mdl, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		return r.model, nil
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.err == nil {
				_ = r.model.Close()
			}
		}()
		return nil, fmt.Errorf("embedding.fastembed: load %s: %w", m.config.Model, ctx.Err())
	}
}
