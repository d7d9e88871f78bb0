// Package store defines the persistent entity store shared by the memory,
// save-file and companion packages.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/flemzord/utsuwa/internal/companion"
	"github.com/flemzord/utsuwa/internal/memory"
)

// ServiceName is the name under which a Store is registered in the
// application context.
const ServiceName = "store"

// Collection is an append-only, auto-incrementing table of entities.
// Add ignores any id carried by v and returns the new one.
type Collection[T any] interface {
	List(ctx context.Context) ([]T, error)
	Add(ctx context.Context, v T) (int64, error)
	First(ctx context.Context) (T, bool, error)
	Clear(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}

// FactCollection adds the mutations the memory subsystem needs.
type FactCollection interface {
	Collection[memory.Fact]

	// Get returns memory.ErrFactNotFound for unknown ids.
	Get(ctx context.Context, id int64) (memory.Fact, error)
	Update(ctx context.Context, f memory.Fact) error
	SetEmbedding(ctx context.Context, id int64, vec []float32) error
	Delete(ctx context.Context, id int64) error
}

// Store exposes the five entity collections.
type Store interface {
	Characters() Collection[companion.CharacterState]
	Facts() FactCollection
	Sessions() Collection[companion.SessionSummary]
	Turns() Collection[companion.ConversationTurn]
	Events() Collection[companion.CompletedEventRecord]
}

// Transactional is implemented by stores that can apply a group of
// operations atomically. fn receives a Store bound to the transaction; the
// transaction commits when fn returns nil and rolls back otherwise.
type Transactional interface {
	WithTx(ctx context.Context, fn func(tx Store) error) error
}

// Atomic runs fn in a transaction when s supports one, and directly
// against s otherwise.
func Atomic(ctx context.Context, s Store, fn func(tx Store) error) error {
	if t, ok := s.(Transactional); ok {
		return t.WithTx(ctx, fn)
	}
	return fn(s)
}

// ClearAll empties every collection.
func ClearAll(ctx context.Context, s Store) error {
	return errors.Join(
		wrapClear("characters", s.Characters().Clear(ctx)),
		wrapClear("facts", s.Facts().Clear(ctx)),
		wrapClear("sessions", s.Sessions().Clear(ctx)),
		wrapClear("turns", s.Turns().Clear(ctx)),
		wrapClear("events", s.Events().Clear(ctx)),
	)
}

func wrapClear(name string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("store: clear %s: %w", name, err)
}

// Counts reports the number of entities per collection.
type Counts struct {
	Characters        int `json:"characters"`
	Facts             int `json:"facts"`
	Sessions          int `json:"sessions"`
	ConversationTurns int `json:"conversationTurns"`
	CompletedEvents   int `json:"completedEvents"`
}

// Count gathers Counts for s.
func Count(ctx context.Context, s Store) (Counts, error) {
	var (
		c   Counts
		err error
	)
	if c.Characters, err = s.Characters().Count(ctx); err != nil {
		return c, fmt.Errorf("store: count characters: %w", err)
	}
	if c.Facts, err = s.Facts().Count(ctx); err != nil {
		return c, fmt.Errorf("store: count facts: %w", err)
	}
	if c.Sessions, err = s.Sessions().Count(ctx); err != nil {
		return c, fmt.Errorf("store: count sessions: %w", err)
	}
	if c.ConversationTurns, err = s.Turns().Count(ctx); err != nil {
		return c, fmt.Errorf("store: count turns: %w", err)
	}
	if c.CompletedEvents, err = s.Events().Count(ctx); err != nil {
		return c, fmt.Errorf("store: count events: %w", err)
	}
	return c, nil
}

// FactsWithoutEmbedding returns the persisted facts that still need an
// embedding.
func FactsWithoutEmbedding(ctx context.Context, s Store) ([]memory.Fact, error) {
	all, err := s.Facts().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: list facts: %w", err)
	}
	var out []memory.Fact
	for _, f := range all {
		if !f.HasEmbedding() {
			out = append(out, f)
		}
	}
	return out, nil
}
