package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/flemzord/utsuwa/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// RecallerService is the name under which the *Recaller is registered.
const RecallerService = "memory.recaller"

// QueryEmbedder turns recall queries into vectors. A nil result means no
// embedding is available, which is not an error.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) []float32
}

// FactSource lists the facts that are candidates for recall.
type FactSource interface {
	List(ctx context.Context) ([]Fact, error)
}

// Recaller retrieves the facts most relevant to a query.
type Recaller struct {
	embedder QueryEmbedder
	facts    FactSource
	opts     RankOptions
	logger   *slog.Logger
}

// NewRecaller creates a Recaller. A nil logger uses slog.Default().
func NewRecaller(embedder QueryEmbedder, facts FactSource, opts RankOptions, logger *slog.Logger) *Recaller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recaller{
		embedder: embedder,
		facts:    facts,
		opts:     opts,
		logger:   logger,
	}
}

// Options returns the blend options used by Recall.
func (r *Recaller) Options() RankOptions {
	return r.opts
}

// Recall embeds query and ranks all stored facts against it.
//
// Returns nil (not an error) when the query is blank or no embedding can be
// produced for it, so callers can fall back to a prompt without memories.
func (r *Recaller) Recall(ctx context.Context, query string, limit int) (_ []SimilarFact, err error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	ctx, span := telemetry.StartSpan(ctx, "memory.recall", attribute.Int("limit", limit))
	defer func() { telemetry.EndSpan(span, err) }()

	vec := r.embedder.Embed(ctx, query)
	if len(vec) == 0 {
		span.AddEvent("no query embedding")
		r.logger.Debug("memory: no query embedding, skipping recall")
		return nil, nil
	}

	facts, err := r.facts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("memory: list facts: %w", err)
	}

	results := FindSimilarFacts(vec, facts, limit, r.opts)
	span.SetAttributes(attribute.Int("candidates", len(facts)), attribute.Int("results", len(results)))
	r.logger.Debug("memory: recall complete",
		"candidates", len(facts),
		"results", len(results),
	)
	return results, nil
}
