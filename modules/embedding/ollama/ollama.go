// Package ollama implements the embedding.ollama module, which embeds text
// with a local Ollama server.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/flemzord/utsuwa/internal/core"
	"github.com/flemzord/utsuwa/internal/embedding"
	"github.com/ollama/ollama/api"
	"gopkg.in/yaml.v3"
)

// ModuleID is the id under which the module registers.
const ModuleID core.ModuleID = "embedding.ollama"

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

var errEmptyResponse = errors.New("embedding.ollama: empty embedding response")

// Module registers an embedding.Loader backed by an Ollama server.
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
		return fmt.Errorf("embedding.ollama: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger
	ctx.RegisterService(embedding.LoaderService, embedding.Loader(m))
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	return m.config.validate()
}

// Load implements embedding.Loader. It checks that the server has the
// model, pulling it first when configured to, then embeds a warm-up text to
// learn the vector size.
func (m *Module) Load(ctx context.Context) (embedding.Model, error) {
	if m.logger == nil {
		m.logger = slog.Default()
	}
	u, err := m.config.hostURL()
	if err != nil {
		return nil, err
	}
	client := api.NewClient(u, &http.Client{Timeout: m.config.parsedTimeout()})

	if _, err := client.Show(ctx, &api.ShowRequest{Model: m.config.Model}); err != nil {
		if !m.config.Pull {
			return nil, fmt.Errorf("embedding.ollama: model %s unavailable: %w", m.config.Model, err)
		}
		m.logger.Info("pulling embedding model", "model", m.config.Model, "host", u.Redacted())
		err := client.Pull(ctx, &api.PullRequest{Model: m.config.Model}, func(p api.ProgressResponse) error {
			m.logger.Debug("pull progress", "status", p.Status, "completed", p.Completed, "total", p.Total)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("embedding.ollama: pull %s: %w", m.config.Model, err)
		}
	}

	mdl := &model{client: client, name: m.config.Model}
	vec, err := mdl.Embed(ctx, "utsuwa")
	if err != nil {
		return nil, fmt.Errorf("embedding.ollama: warm-up: %w", err)
	}
	mdl.dimensions = len(vec)
	return mdl, nil
}

type model struct {
	client     *api.Client
	name       string
	dimensions int
}

var (
	_ embedding.Model     = (*model)(nil)
	_ embedding.Describer = (*model)(nil)
)

func (m *model) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := m.client.Embed(ctx, &api.EmbedRequest{
		Model: m.name,
		Input: text,
	})
	if err != nil {
		return nil, err
	}
	if res == nil || len(res.Embeddings) == 0 || len(res.Embeddings[0]) == 0 {
		return nil, errEmptyResponse
	}
	return res.Embeddings[0], nil
}

func (m *model) Info() embedding.ModelInfo {
	return embedding.ModelInfo{Name: m.name, Dimensions: m.dimensions}
}
