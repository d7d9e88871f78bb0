package store

import (
	"context"
	"slices"
	"sync"

	"github.com/flemzord/utsuwa/internal/companion"
	"github.com/flemzord/utsuwa/internal/memory"
)

// InMemoryStore is a thread-safe, in-memory implementation of Store.
// Transactions run against a private copy of the data that replaces the
// live data on commit; writers are serialized with transactions.
type InMemoryStore struct {
	writeMu sync.Mutex
	mu      sync.RWMutex
	data    *memData
}

type memData struct {
	characters memTable[companion.CharacterState]
	facts      memTable[memory.Fact]
	sessions   memTable[companion.SessionSummary]
	turns      memTable[companion.ConversationTurn]
	events     memTable[companion.CompletedEventRecord]
}

type memTable[T any] struct {
	rows []T
	seq  int64
}

func (t memTable[T]) clone() memTable[T] {
	return memTable[T]{rows: slices.Clone(t.rows), seq: t.seq}
}

func (d *memData) clone() *memData {
	return &memData{
		characters: d.characters.clone(),
		facts:      d.facts.clone(),
		sessions:   d.sessions.clone(),
		turns:      d.turns.clone(),
		events:     d.events.clone(),
	}
}

// NewInMemoryStore creates a new empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{data: &memData{}}
}

// Compile-time interface checks.
var (
	_ Store         = (*InMemoryStore)(nil)
	_ Transactional = (*InMemoryStore)(nil)
)

// Characters implements Store.
func (s *InMemoryStore) Characters() Collection[companion.CharacterState] {
	return memCollection[companion.CharacterState]{
		s:     s,
		table: func(d *memData) *memTable[companion.CharacterState] { return &d.characters },
		setID: func(c *companion.CharacterState, id int64) { c.ID = id },
	}
}

// Facts implements Store.
func (s *InMemoryStore) Facts() FactCollection {
	return memFacts{memCollection[memory.Fact]{
		s:     s,
		table: func(d *memData) *memTable[memory.Fact] { return &d.facts },
		setID: func(f *memory.Fact, id int64) { f.ID = id },
	}}
}

// Sessions implements Store.
func (s *InMemoryStore) Sessions() Collection[companion.SessionSummary] {
	return memCollection[companion.SessionSummary]{
		s:     s,
		table: func(d *memData) *memTable[companion.SessionSummary] { return &d.sessions },
		setID: func(r *companion.SessionSummary, id int64) { r.ID = id },
	}
}

// Turns implements Store.
func (s *InMemoryStore) Turns() Collection[companion.ConversationTurn] {
	return memCollection[companion.ConversationTurn]{
		s:     s,
		table: func(d *memData) *memTable[companion.ConversationTurn] { return &d.turns },
		setID: func(r *companion.ConversationTurn, id int64) { r.ID = id },
	}
}

// Events implements Store.
func (s *InMemoryStore) Events() Collection[companion.CompletedEventRecord] {
	return memCollection[companion.CompletedEventRecord]{
		s:     s,
		table: func(d *memData) *memTable[companion.CompletedEventRecord] { return &d.events },
		setID: func(r *companion.CompletedEventRecord, id int64) { r.ID = id },
	}
}

// WithTx implements Transactional.
func (s *InMemoryStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	tx := &InMemoryStore{data: s.data.clone()}
	s.mu.RUnlock()

	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = tx.data
	s.mu.Unlock()
	return nil
}

func (s *InMemoryStore) read(fn func(d *memData)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.data)
}

func (s *InMemoryStore) write(fn func(d *memData)) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.data)
}

type memCollection[T any] struct {
	s     *InMemoryStore
	table func(*memData) *memTable[T]
	setID func(*T, int64)
}

func (c memCollection[T]) List(_ context.Context) ([]T, error) {
	var out []T
	c.s.read(func(d *memData) { out = slices.Clone(c.table(d).rows) })
	return out, nil
}

func (c memCollection[T]) Add(_ context.Context, v T) (int64, error) {
	var id int64
	c.s.write(func(d *memData) {
		t := c.table(d)
		t.seq++
		id = t.seq
		c.setID(&v, id)
		t.rows = append(t.rows, v)
	})
	return id, nil
}

func (c memCollection[T]) First(_ context.Context) (T, bool, error) {
	var (
		v  T
		ok bool
	)
	c.s.read(func(d *memData) {
		if rows := c.table(d).rows; len(rows) > 0 {
			v, ok = rows[0], true
		}
	})
	return v, ok, nil
}

func (c memCollection[T]) Clear(_ context.Context) error {
	c.s.write(func(d *memData) { c.table(d).rows = nil })
	return nil
}

func (c memCollection[T]) Count(_ context.Context) (int, error) {
	var n int
	c.s.read(func(d *memData) { n = len(c.table(d).rows) })
	return n, nil
}

type memFacts struct {
	memCollection[memory.Fact]
}

func (c memFacts) Get(_ context.Context, id int64) (memory.Fact, error) {
	var (
		f     memory.Fact
		found bool
	)
	c.s.read(func(d *memData) {
		if i := indexFact(d.facts.rows, id); i >= 0 {
			f, found = d.facts.rows[i], true
		}
	})
	if !found {
		return memory.Fact{}, memory.ErrFactNotFound
	}
	return f, nil
}

func (c memFacts) Update(_ context.Context, f memory.Fact) error {
	found := false
	c.s.write(func(d *memData) {
		if i := indexFact(d.facts.rows, f.ID); i >= 0 {
			d.facts.rows[i] = f
			found = true
		}
	})
	if !found {
		return memory.ErrFactNotFound
	}
	return nil
}

func (c memFacts) SetEmbedding(_ context.Context, id int64, vec []float32) error {
	found := false
	c.s.write(func(d *memData) {
		if i := indexFact(d.facts.rows, id); i >= 0 {
			d.facts.rows[i].Embedding = slices.Clone(vec)
			found = true
		}
	})
	if !found {
		return memory.ErrFactNotFound
	}
	return nil
}

func (c memFacts) Delete(_ context.Context, id int64) error {
	found := false
	c.s.write(func(d *memData) {
		if i := indexFact(d.facts.rows, id); i >= 0 {
			d.facts.rows = slices.Delete(d.facts.rows, i, i+1)
			found = true
		}
	})
	if !found {
		return memory.ErrFactNotFound
	}
	return nil
}

func indexFact(rows []memory.Fact, id int64) int {
	return slices.IndexFunc(rows, func(f memory.Fact) bool { return f.ID == id })
}
