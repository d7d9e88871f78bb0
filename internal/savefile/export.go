package savefile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flemzord/utsuwa/internal/companion"
	"github.com/flemzord/utsuwa/internal/memory"
	"github.com/flemzord/utsuwa/internal/store"
	"github.com/flemzord/utsuwa/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// Options configures a Codec or a Migrator.
type Options struct {
	// AppVersion is stamped into exported documents.
	AppVersion string

	// Clock defaults to time.Now.
	Clock func() time.Time

	Logger  *slog.Logger
	Metrics *telemetry.Metrics
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Snapshotter exposes the in-process character.
type Snapshotter interface {
	Snapshot() companion.CharacterState
}

// Codec exports the store as a SaveFile.
type Codec struct {
	store store.Store
	live  Snapshotter
	opts  Options
}

// NewCodec creates a Codec. live provides the character when none has been
// persisted yet; it may be nil, in which case a default character is used.
func NewCodec(s store.Store, live Snapshotter, opts Options) *Codec {
	return &Codec{store: s, live: live, opts: opts.withDefaults()}
}

// Export reads every collection and returns a portable SaveFile.
func (c *Codec) Export(ctx context.Context) (_ *SaveFile, err error) {
	ctx, span := telemetry.StartSpan(ctx, "savefile.export")
	defer func() { telemetry.EndSpan(span, err) }()

	now := c.opts.Clock().UTC()

	character, ok, err := c.store.Characters().First(ctx)
	if err != nil {
		return nil, fmt.Errorf("savefile: export: read character: %w", err)
	}
	if !ok {
		character = c.liveCharacter(now)
	}
	character = character.Portable()
	normalizeCharacter(&character)

	facts, err := c.store.Facts().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("savefile: export: list facts: %w", err)
	}
	sessions, err := c.store.Sessions().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("savefile: export: list sessions: %w", err)
	}
	turns, err := c.store.Turns().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("savefile: export: list conversation turns: %w", err)
	}
	events, err := c.store.Events().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("savefile: export: list completed events: %w", err)
	}

	sf := &SaveFile{
		Version:    Version,
		ExportedAt: now.Format(exportedAtLayout),
		AppVersion: c.opts.AppVersion,
		Data: Data{
			Character:         character,
			Facts:             portableFacts(facts),
			Sessions:          portableRecords(sessions, func(s companion.SessionSummary) companion.Record { return s.Record }, wrapSession),
			ConversationTurns: portableRecords(turns, func(t companion.ConversationTurn) companion.Record { return t.Record }, wrapTurn),
			CompletedEvents:   portableRecords(events, func(e companion.CompletedEventRecord) companion.Record { return e.Record }, wrapEvent),
		},
	}

	span.SetAttributes(
		attribute.Int("facts", len(sf.Data.Facts)),
		attribute.Int("sessions", len(sf.Data.Sessions)),
		attribute.Int("conversation_turns", len(sf.Data.ConversationTurns)),
		attribute.Int("completed_events", len(sf.Data.CompletedEvents)),
	)
	c.opts.Metrics.IncExport()
	c.opts.Logger.Info("save file exported",
		"character", character.Name,
		"persisted_character", ok,
		"facts", len(sf.Data.Facts),
		"sessions", len(sf.Data.Sessions),
		"conversation_turns", len(sf.Data.ConversationTurns),
		"completed_events", len(sf.Data.CompletedEvents),
	)
	return sf, nil
}

func (c *Codec) liveCharacter(now time.Time) companion.CharacterState {
	if c.live == nil {
		return companion.DefaultCharacter(now)
	}
	return c.live.Snapshot()
}

func portableFacts(facts []memory.Fact) []memory.Fact {
	out := make([]memory.Fact, len(facts))
	for i, f := range facts {
		out[i] = f.Portable()
	}
	return out
}

func portableRecords[T any](in []T, unwrap func(T) companion.Record, wrap func(companion.Record) T) []T {
	out := make([]T, len(in))
	for i, v := range in {
		out[i] = wrap(unwrap(v).Portable())
	}
	return out
}

func wrapSession(r companion.Record) companion.SessionSummary { return companion.SessionSummary{Record: r} }

func wrapTurn(r companion.Record) companion.ConversationTurn { return companion.ConversationTurn{Record: r} }

func wrapEvent(r companion.Record) companion.CompletedEventRecord {
	return companion.CompletedEventRecord{Record: r}
}
