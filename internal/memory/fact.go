// Package memory implements long-term memory recall for the companion:
// facts, similarity ranking blended with importance, and formatting of
// recalled facts for prompt injection.
package memory

import (
	"errors"
	"time"
)

// ErrFactNotFound indicates the requested fact does not exist.
var ErrFactNotFound = errors.New("memory: fact not found")

// Importance bounds. Importance is normalized by MaxImportance when blended
// into a ranking score.
const (
	MinImportance = 0
	MaxImportance = 100
)

// Fact is an atomic unit of long-term memory.
//
// ID is assigned by the store and is zero before the fact is persisted.
// Embedding is derived data: it is filled asynchronously by the embedding
// service and never exported. A fact without an embedding is still valid;
// it is only skipped by semantic ranking.
type Fact struct {
	ID           int64     `json:"id,omitempty"`
	Content      string    `json:"content"`
	Importance   int       `json:"importance"`
	Category     string    `json:"category,omitempty"`
	Embedding    []float32 `json:"embedding,omitempty"`
	AccessCount  int       `json:"accessCount,omitempty"`
	CreatedAt    time.Time `json:"createdAt,omitzero"`
	UpdatedAt    time.Time `json:"updatedAt,omitzero"`
	LastAccessed time.Time `json:"lastAccessed,omitzero"`
}

// HasEmbedding reports whether the fact can take part in semantic ranking.
func (f Fact) HasEmbedding() bool {
	return len(f.Embedding) > 0
}

// Portable returns a copy of f without storage-local and derived fields
// (ID and Embedding), suitable for export.
func (f Fact) Portable() Fact {
	f.ID = 0
	f.Embedding = nil
	return f
}

// ClampImportance bounds v to [MinImportance, MaxImportance].
func ClampImportance(v int) int {
	return min(max(v, MinImportance), MaxImportance)
}
