//go:build fastembed

package fastembed

import (
	"context"
	"fmt"
	"sync"

	fastembed "github.com/anush008/fastembed-go"
	"github.com/flemzord/utsuwa/internal/embedding"
)

// model serializes calls into the ONNX session.
type model struct {
	mu   sync.Mutex
	fe   *fastembed.FlagEmbedding
	name string
	dims int
}

var (
	_ embedding.Model     = (*model)(nil)
	_ embedding.Describer = (*model)(nil)
)

func newModel(cfg Config) (*model, error) {
	fe, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:     fastembed.EmbeddingModel(cfg.Model),
		CacheDir:  cfg.CacheDir,
		MaxLength: cfg.MaxLength,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding.fastembed: load %s: %w", cfg.Model, err)
	}
	return &model{fe: fe, name: cfg.Model, dims: knownDimensions[cfg.Model]}, nil
}

func (m *model) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fe == nil {
		return nil, fmt.Errorf("embedding.fastembed: model closed")
	}
	return m.fe.QueryEmbed(text)
}

func (m *model) Info() embedding.ModelInfo {
	return embedding.ModelInfo{Name: m.name, Dimensions: m.dims}
}

// Close releases the ONNX session.
func (m *model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fe != nil {
		m.fe.Destroy()
		m.fe = nil
	}
	return nil
}
