//go:build !fastembed

package fastembed

import (
	"context"

	"github.com/flemzord/utsuwa/internal/embedding"
)

type model struct{}

func newModel(Config) (*model, error) { return nil, ErrNotCompiled }

func (*model) Embed(context.Context, string) ([]float32, error) { return nil, ErrNotCompiled }

func (*model) Info() embedding.ModelInfo { return embedding.ModelInfo{} }

func (*model) Close() error { return nil }
