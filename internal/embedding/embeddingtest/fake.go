// Package embeddingtest provides test doubles for the embedding package.
package embeddingtest

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/flemzord/utsuwa/internal/embedding"
)

// ErrEmbed is returned by a Model configured to fail.
var ErrEmbed = errors.New("embeddingtest: embed failed")

// Model is a deterministic embedding model. Texts sharing words produce
// similar vectors.
type Model struct {
	Name string
	Dims int

	// Vectors overrides the computed embedding for exact texts.
	Vectors map[string][]float32

	// FailOn makes Embed fail for texts containing the substring.
	FailOn string

	calls  atomic.Int64
	closed atomic.Bool
}

// Compile-time interface checks.
var (
	_ embedding.Model     = (*Model)(nil)
	_ embedding.Describer = (*Model)(nil)
)

// Embed implements embedding.Model.
func (m *Model) Embed(ctx context.Context, text string) ([]float32, error) {
	m.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.FailOn != "" && strings.Contains(text, m.FailOn) {
		return nil, ErrEmbed
	}
	if v, ok := m.Vectors[text]; ok {
		return v, nil
	}

	dims := m.dims()
	vec := make([]float32, dims)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		vec[h.Sum32()%uint32(dims)]++
	}
	return vec, nil
}

// Info implements embedding.Describer.
func (m *Model) Info() embedding.ModelInfo {
	name := m.Name
	if name == "" {
		name = "fake"
	}
	return embedding.ModelInfo{Name: name, Dimensions: m.dims()}
}

// Close marks the model closed.
func (m *Model) Close() error {
	m.closed.Store(true)
	return nil
}

// Calls returns the number of Embed calls.
func (m *Model) Calls() int { return int(m.calls.Load()) }

// Closed reports whether Close was called.
func (m *Model) Closed() bool { return m.closed.Load() }

func (m *Model) dims() int {
	if m.Dims <= 0 {
		return 16
	}
	return m.Dims
}

// Loader is a controllable embedding.Loader. When Gate is non-nil, Load
// blocks until Gate is closed or receives a value.
type Loader struct {
	Model *Model
	Err   error
	Gate  chan struct{}

	mu    sync.Mutex
	loads int
}

// Compile-time interface check.
var _ embedding.Loader = (*Loader)(nil)

// Load implements embedding.Loader.
func (l *Loader) Load(ctx context.Context) (embedding.Model, error) {
	l.mu.Lock()
	l.loads++
	err := l.Err
	l.mu.Unlock()

	if l.Gate != nil {
		select {
		case <-l.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if l.Model == nil {
		return &Model{}, nil
	}
	return l.Model, nil
}

// SetErr changes the error returned by later loads.
func (l *Loader) SetErr(err error) {
	l.mu.Lock()
	l.Err = err
	l.mu.Unlock()
}

// Loads returns the number of Load calls.
func (l *Loader) Loads() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loads
}

// ReadyService returns an interactive Service whose model is already
// loaded.
func ReadyService(ctx context.Context, m *Model) *embedding.Service {
	svc := embedding.NewService(&Loader{Model: m}, embedding.Options{Interactive: true})
	svc.Init(ctx)
	return svc
}
