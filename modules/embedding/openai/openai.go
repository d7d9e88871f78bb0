// Package openai implements the embedding.openai module, which embeds text
// with the OpenAI embeddings API or any server compatible with it.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/flemzord/utsuwa/internal/core"
	"github.com/flemzord/utsuwa/internal/embedding"
	"github.com/flemzord/utsuwa/internal/security"
	goopenai "github.com/sashabaranov/go-openai"
	"gopkg.in/yaml.v3"
)

// ModuleID is the id under which the module registers.
const ModuleID core.ModuleID = "embedding.openai"

// warmupText is embedded once at load time to verify credentials and learn
// the vector size.
const warmupText = "utsuwa"

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

// Module registers an embedding.Loader backed by the OpenAI API.
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
		return fmt.Errorf("embedding.openai: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	if r, err := core.ServiceAs[*security.Redactor](ctx, security.RedactorService); err == nil {
		r.AddLiteral(m.config.apiKey())
	}
	ctx.RegisterService(embedding.LoaderService, embedding.Loader(m))
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	return m.config.validate()
}

// Load implements embedding.Loader. It builds a client and embeds a warm-up
// text, so bad credentials surface as a load error.
func (m *Module) Load(ctx context.Context) (embedding.Model, error) {
	cfg := goopenai.DefaultConfig(m.config.apiKey())
	if m.config.BaseURL != "" {
		cfg.BaseURL = m.config.BaseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: m.config.parsedTimeout()}

	mdl := &model{
		client:    goopenai.NewClientWithConfig(cfg),
		name:      m.config.Model,
		requested: m.config.Dimensions,
	}
	vec, err := mdl.Embed(ctx, warmupText)
	if err != nil {
		return nil, fmt.Errorf("embedding.openai: warm-up: %w", err)
	}
	mdl.dimensions = len(vec)
	return mdl, nil
}

// errEmptyResponse is returned when the API answers without a vector.
var errEmptyResponse = errors.New("embedding.openai: empty embedding response")

type model struct {
	client     *goopenai.Client
	name       string
	requested  int // sent to the API only when nonzero
	dimensions int
}

var (
	_ embedding.Model     = (*model)(nil)
	_ embedding.Describer = (*model)(nil)
)

func (m *model) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := m.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Model:      goopenai.EmbeddingModel(m.name),
		Input:      []string{text},
		Dimensions: m.requested,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, errEmptyResponse
	}
	return resp.Data[0].Embedding, nil
}

func (m *model) Info() embedding.ModelInfo {
	return embedding.ModelInfo{Name: m.name, Dimensions: m.dimensions}
}
