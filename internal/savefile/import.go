package savefile

import (
	"context"
	"fmt"

	"github.com/flemzord/utsuwa/internal/companion"
	"github.com/flemzord/utsuwa/internal/memory"
	"github.com/flemzord/utsuwa/internal/store"
	"github.com/flemzord/utsuwa/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// Reloader refreshes the in-process character from the store.
type Reloader interface {
	Reload(ctx context.Context) error
}

// ImportOptions tunes an import.
type ImportOptions struct {
	// SkipDuplicateFacts skips incoming facts whose content matches a fact
	// already stored or imported earlier in the same run. Skipped facts are
	// counted in Result.Skipped. By default every fact is inserted, so
	// merging the same document twice duplicates its facts.
	SkipDuplicateFacts bool
}

// Result reports what an import did.
type Result struct {
	// Imported counts every inserted entity, the character included.
	Imported int `json:"imported"`

	// Skipped counts entities left out by the merge policy.
	Skipped int `json:"skipped"`

	// Rejected counts collection entries that were not JSON objects.
	Rejected int `json:"rejected,omitempty"`
}

// Migrator imports documents of either format into a store.
type Migrator struct {
	store store.Store
	live  Reloader
	opts  Options
}

// NewMigrator creates a Migrator. live, when non-nil, is reloaded after
// every successful import.
func NewMigrator(s store.Store, live Reloader, opts Options) *Migrator {
	return &Migrator{store: s, live: live, opts: opts.withDefaults()}
}

// plan is a fully decoded import, built before the store is touched.
type plan struct {
	character *companion.CharacterState
	facts     []memory.Fact
	sessions  []companion.Record
	turns     []companion.Record
	events    []companion.Record
	rejected  int
}

// Import writes doc into the store.
//
// In ModeReplace every collection is cleared first and the incoming
// character always inserted. In ModeMerge the character is only inserted
// when none exists and is otherwise counted as skipped. All other entries
// are appended with fresh ids.
//
// When the store is store.Transactional the whole import, clearing
// included, is applied atomically: on error nothing has changed.
func (m *Migrator) Import(ctx context.Context, doc *Document, mode Mode, opts ImportOptions) (res Result, err error) {
	if _, err := ParseMode(string(mode)); err != nil {
		return Result{}, err
	}
	ctx, span := telemetry.StartSpan(ctx, "savefile.import",
		attribute.String("version", doc.Version),
		attribute.String("mode", string(mode)),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	p := m.plan(doc)

	err = store.Atomic(ctx, m.store, func(tx store.Store) error {
		res = Result{Rejected: p.rejected}
		return m.apply(ctx, tx, p, mode, opts, &res)
	})
	if err != nil {
		return Result{}, fmt.Errorf("savefile: import: %w", err)
	}

	m.opts.Metrics.AddImport(res.Imported, res.Skipped)
	span.SetAttributes(attribute.Int("imported", res.Imported), attribute.Int("skipped", res.Skipped))
	m.opts.Logger.Info("save file imported",
		"version", doc.Version,
		"mode", string(mode),
		"imported", res.Imported,
		"skipped", res.Skipped,
		"rejected", res.Rejected,
	)

	if m.live != nil {
		if err := m.live.Reload(ctx); err != nil {
			return res, fmt.Errorf("savefile: import: %w", err)
		}
	}
	return res, nil
}

func (m *Migrator) plan(doc *Document) plan {
	now := m.opts.Clock().UTC()
	var p plan

	if doc.IsV2() {
		c := currentCharacter(doc.data.Get("character"), now)
		p.character = &c
	} else {
		state, hasState := doc.first("characterStates")
		persona, hasPersona := doc.first("personas")
		if hasState || hasPersona {
			c := legacyCharacter(state, persona, now)
			p.character = &c
		}
	}

	for _, r := range doc.items("facts") {
		if f, ok := factOf(r); ok {
			p.facts = append(p.facts, f)
		} else {
			p.rejected++
		}
	}
	p.sessions = m.records(doc, "sessions", &p.rejected)
	p.turns = m.records(doc, "conversationTurns", &p.rejected)
	p.events = m.records(doc, "completedEvents", &p.rejected)
	return p
}

func (m *Migrator) records(doc *Document, name string, rejected *int) []companion.Record {
	var out []companion.Record
	for _, r := range doc.items(name) {
		if rec, ok := recordOf(r); ok {
			out = append(out, rec)
		} else {
			*rejected++
		}
	}
	return out
}

func (m *Migrator) apply(ctx context.Context, tx store.Store, p plan, mode Mode, opts ImportOptions, res *Result) error {
	if mode == ModeReplace {
		if err := store.ClearAll(ctx, tx); err != nil {
			return err
		}
	}

	if p.character != nil {
		insert := mode == ModeReplace
		if !insert {
			_, exists, err := tx.Characters().First(ctx)
			if err != nil {
				return fmt.Errorf("read character: %w", err)
			}
			insert = !exists
		}
		if insert {
			if _, err := tx.Characters().Add(ctx, *p.character); err != nil {
				return fmt.Errorf("add character: %w", err)
			}
			res.Imported++
		} else {
			res.Skipped++
		}
	}

	seen, err := m.existingContents(ctx, tx, opts)
	if err != nil {
		return err
	}
	for _, f := range p.facts {
		if seen != nil {
			if _, dup := seen[f.Content]; dup {
				res.Skipped++
				continue
			}
			seen[f.Content] = struct{}{}
		}
		if f.CreatedAt.IsZero() {
			f.CreatedAt = m.opts.Clock().UTC()
		}
		if f.UpdatedAt.IsZero() {
			f.UpdatedAt = f.CreatedAt
		}
		if _, err := tx.Facts().Add(ctx, f); err != nil {
			return fmt.Errorf("add fact: %w", err)
		}
		res.Imported++
	}

	if err := addRecords(ctx, tx.Sessions(), p.sessions, wrapSession, res); err != nil {
		return fmt.Errorf("add session: %w", err)
	}
	if err := addRecords(ctx, tx.Turns(), p.turns, wrapTurn, res); err != nil {
		return fmt.Errorf("add conversation turn: %w", err)
	}
	if err := addRecords(ctx, tx.Events(), p.events, wrapEvent, res); err != nil {
		return fmt.Errorf("add completed event: %w", err)
	}
	return nil
}

// existingContents returns the set of stored fact contents, or nil when
// duplicates are not skipped.
func (m *Migrator) existingContents(ctx context.Context, tx store.Store, opts ImportOptions) (map[string]struct{}, error) {
	if !opts.SkipDuplicateFacts {
		return nil, nil
	}
	facts, err := tx.Facts().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list facts: %w", err)
	}
	seen := make(map[string]struct{}, len(facts))
	for _, f := range facts {
		seen[f.Content] = struct{}{}
	}
	return seen, nil
}

func addRecords[T any](ctx context.Context, c store.Collection[T], recs []companion.Record, wrap func(companion.Record) T, res *Result) error {
	for _, r := range recs {
		if _, err := c.Add(ctx, wrap(r)); err != nil {
			return err
		}
		res.Imported++
	}
	return nil
}

// ParseAndImport validates raw and imports it.
func (m *Migrator) ParseAndImport(ctx context.Context, raw []byte, mode Mode, opts ImportOptions) (Result, error) {
	doc, err := Parse(raw)
	if err != nil {
		return Result{}, err
	}
	return m.Import(ctx, doc, mode, opts)
}
