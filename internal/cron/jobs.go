package cron

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/flemzord/utsuwa/internal/memory"
	"github.com/flemzord/utsuwa/internal/savefile"
	"github.com/flemzord/utsuwa/internal/store"
	"github.com/flemzord/utsuwa/internal/telemetry"
)

// Job names.
const (
	BackfillJobName = "embedding_backfill"
	AutosaveJobName = "autosave"
)

// FactEmbedder is the subset of embedding.Service used by the backfill job.
type FactEmbedder interface {
	Init(ctx context.Context) bool
	EmbedFacts(ctx context.Context, facts []memory.Fact, progress func(done, total int)) (map[int64][]float32, error)
}

// EmbeddingBackfillJob embeds persisted facts that have no embedding yet,
// such as facts created while the model was unavailable or freshly
// imported from a save file.
type EmbeddingBackfillJob struct {
	Store    store.Store
	Embedder FactEmbedder
	Metrics  *telemetry.Metrics
	Logger   *slog.Logger

	// BatchSize caps the facts embedded per run. Zero means no cap.
	BatchSize    int
	ScheduleExpr string // empty = default "*/10 * * * *"
}

// Compile-time interface check.
var _ Job = (*EmbeddingBackfillJob)(nil)

// Name implements Job.
func (j *EmbeddingBackfillJob) Name() string { return BackfillJobName }

// Schedule implements Job.
func (j *EmbeddingBackfillJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/10 * * * *"
}

// Run embeds pending facts and stores their vectors. It does nothing when
// every fact is embedded or the model cannot be made ready. Embeddings
// computed before a cancellation are still written back.
func (j *EmbeddingBackfillJob) Run(ctx context.Context) error {
	pending, err := store.FactsWithoutEmbedding(ctx, j.Store)
	if err != nil {
		return fmt.Errorf("cron: backfill: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}
	if !j.Embedder.Init(ctx) {
		j.logger().Debug("cron: backfill skipped, model not ready", "pending", len(pending))
		return nil
	}
	if j.BatchSize > 0 && len(pending) > j.BatchSize {
		pending = pending[:j.BatchSize]
	}

	vecs, embedErr := j.Embedder.EmbedFacts(ctx, pending, nil)

	written := 0
	for _, f := range pending {
		vec, ok := vecs[f.ID]
		if !ok {
			continue
		}
		if err := j.Store.Facts().SetEmbedding(context.WithoutCancel(ctx), f.ID, vec); err != nil {
			return fmt.Errorf("cron: backfill: store embedding for fact %d: %w", f.ID, err)
		}
		written++
	}
	j.Metrics.AddBackfilled(written)

	if written > 0 {
		j.logger().Info("cron: backfilled fact embeddings", "embedded", written, "pending", len(pending))
	}
	if embedErr != nil {
		return fmt.Errorf("cron: backfill: %w", embedErr)
	}
	return nil
}

func (j *EmbeddingBackfillJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}

// Exporter produces a save file of the current data.
type Exporter interface {
	Export(ctx context.Context) (*savefile.SaveFile, error)
}

// AutosaveJob writes a save file into Dir and prunes old ones, keeping the
// Keep most recent. Saves are named by UTC date, so a second run on the
// same day replaces that day's file.
type AutosaveJob struct {
	Exporter Exporter
	Dir      string
	Keep     int // <= 0 keeps every save
	Clock    func() time.Time
	Logger   *slog.Logger

	ScheduleExpr string // empty = default "0 3 * * *"
}

// Compile-time interface check.
var _ Job = (*AutosaveJob)(nil)

// Name implements Job.
func (j *AutosaveJob) Name() string { return AutosaveJobName }

// Schedule implements Job.
func (j *AutosaveJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "0 3 * * *"
}

// Run implements Job.
func (j *AutosaveJob) Run(ctx context.Context) error {
	sf, err := j.Exporter.Export(ctx)
	if err != nil {
		return fmt.Errorf("cron: autosave: %w", err)
	}

	now := time.Now
	if j.Clock != nil {
		now = j.Clock
	}
	path, err := savefile.WriteFile(j.Dir, sf, now())
	if err != nil {
		return fmt.Errorf("cron: autosave: %w", err)
	}

	removed, err := j.prune()
	if err != nil {
		return fmt.Errorf("cron: autosave: prune: %w", err)
	}

	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("cron: autosave written", "path", path, "pruned", removed)
	return nil
}

// prune removes the oldest saves beyond Keep and reports how many went.
func (j *AutosaveJob) prune() (int, error) {
	if j.Keep <= 0 {
		return 0, nil
	}
	saves, err := filepath.Glob(filepath.Join(j.Dir, "utsuwa-save-*.json"))
	if err != nil {
		return 0, err
	}
	if len(saves) <= j.Keep {
		return 0, nil
	}

	// Date-stamped names sort chronologically.
	slices.Sort(saves)
	stale := saves[:len(saves)-j.Keep]
	for _, p := range stale {
		if err := os.Remove(p); err != nil {
			return 0, err
		}
	}
	return len(stale), nil
}
