// Package embedding turns text into vectors for semantic memory recall.
//
// A Service owns a lazily loaded Model and moves through the states idle,
// loading, ready and error. Concurrent initializers share a single load, and
// observers are notified of every transition. Embedding is a soft operation:
// callers receive nil instead of an error when no model is available.
package embedding

import (
	"context"
	"errors"
)

// Service registry names.
const (
	// ServiceName is the name under which the *Service is registered.
	ServiceName = "embedding"

	// LoaderService is the name under which provider modules register
	// their Loader.
	LoaderService = "embedding.loader"
)

// State is the lifecycle state of the embedding model.
type State string

// Model states.
const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateError   State = "error"
)

// States lists every State, in lifecycle order.
var States = []string{string(StateIdle), string(StateLoading), string(StateReady), string(StateError)}

// ErrNotInteractive is reported when the service is asked to load a model
// outside an interactive runtime.
var ErrNotInteractive = errors.New("embedding: not running in an interactive context")

// ErrNoLoader is recorded when no provider module supplied a Loader.
var ErrNoLoader = errors.New("embedding: no model provider configured")

// ModelInfo describes a loaded model.
type ModelInfo struct {
	Name       string `json:"name"`
	Dimensions int    `json:"dimensions"`
}

// Status is a point-in-time view of the service.
type Status struct {
	State State     `json:"state"`
	Error string    `json:"error,omitempty"`
	Model ModelInfo `json:"model,omitzero"`
}

// Model produces embeddings. Implementations must be safe for concurrent use.
type Model interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Describer is optionally implemented by models that can report what they
// are.
type Describer interface {
	Info() ModelInfo
}

// Loader loads a Model. It is called at most once per load attempt.
type Loader interface {
	Load(ctx context.Context) (Model, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) (Model, error)

// Load implements Loader.
func (f LoaderFunc) Load(ctx context.Context) (Model, error) { return f(ctx) }
