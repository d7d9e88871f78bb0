package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/flemzord/utsuwa/internal/companion"
	"github.com/flemzord/utsuwa/internal/memory"
	"github.com/flemzord/utsuwa/internal/store"
	"github.com/flemzord/utsuwa/internal/vecmath"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements store.Store and store.Transactional on a SQLite database.
type Store struct {
	db *sql.DB
	q  querier
}

// Compile-time interface guards.
var (
	_ store.Store         = (*Store)(nil)
	_ store.Transactional = (*Store)(nil)
)

func newStore(db *sql.DB) *Store {
	return &Store{db: db, q: db}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// WithTx implements store.Transactional.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Store) error) error {
	if _, nested := s.q.(*sql.Tx); nested {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	if err := fn(&Store{db: s.db, q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

// Characters implements store.Store.
func (s *Store) Characters() store.Collection[companion.CharacterState] {
	return bodyTable[companion.CharacterState]{
		q:     s.q,
		table: "character_states",
		encode: func(c companion.CharacterState) ([]byte, []any, error) {
			body, err := json.Marshal(c.Portable())
			return body, []any{c.Name}, err
		},
		extraCols: []string{"name"},
		decode: func(id int64, body []byte) (companion.CharacterState, error) {
			var c companion.CharacterState
			if err := json.Unmarshal(body, &c); err != nil {
				return c, err
			}
			c.ID = id
			return c, nil
		},
	}
}

// Sessions implements store.Store.
func (s *Store) Sessions() store.Collection[companion.SessionSummary] {
	return recordTable(s.q, "sessions",
		func(r companion.SessionSummary) companion.Record { return r.Record },
		func(r companion.Record) companion.SessionSummary { return companion.SessionSummary{Record: r} },
	)
}

// Turns implements store.Store.
func (s *Store) Turns() store.Collection[companion.ConversationTurn] {
	return recordTable(s.q, "conversation_turns",
		func(r companion.ConversationTurn) companion.Record { return r.Record },
		func(r companion.Record) companion.ConversationTurn { return companion.ConversationTurn{Record: r} },
	)
}

// Events implements store.Store.
func (s *Store) Events() store.Collection[companion.CompletedEventRecord] {
	return recordTable(s.q, "completed_events",
		func(r companion.CompletedEventRecord) companion.Record { return r.Record },
		func(r companion.Record) companion.CompletedEventRecord { return companion.CompletedEventRecord{Record: r} },
	)
}

// Facts implements store.Store.
func (s *Store) Facts() store.FactCollection {
	return factTable{q: s.q}
}

// bodyTable stores each entity as a JSON body plus optional indexed columns.
type bodyTable[T any] struct {
	q         querier
	table     string
	extraCols []string
	encode    func(T) (body []byte, extra []any, err error)
	decode    func(id int64, body []byte) (T, error)
}

func recordTable[T any](q querier, table string, unwrap func(T) companion.Record, wrap func(companion.Record) T) bodyTable[T] {
	return bodyTable[T]{
		q:     q,
		table: table,
		encode: func(v T) ([]byte, []any, error) {
			body, err := unwrap(v).Body()
			return body, nil, err
		},
		decode: func(id int64, body []byte) (T, error) {
			r, err := companion.NewRecord(body)
			r.ID = id
			return wrap(r), err
		},
	}
}

func (t bodyTable[T]) List(ctx context.Context) ([]T, error) {
	rows, err := t.q.QueryContext(ctx, "SELECT id, body FROM "+t.table+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("sqlite: list %s: %w", t.table, err)
	}
	defer func() { _ = rows.Close() }()

	var out []T
	for rows.Next() {
		var (
			id   int64
			body []byte
		)
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("sqlite: scan %s: %w", t.table, err)
		}
		v, err := t.decode(id, body)
		if err != nil {
			return nil, fmt.Errorf("sqlite: decode %s %d: %w", t.table, id, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: scan %s rows: %w", t.table, err)
	}
	return out, nil
}

func (t bodyTable[T]) Add(ctx context.Context, v T) (int64, error) {
	body, extra, err := t.encode(v)
	if err != nil {
		return 0, fmt.Errorf("sqlite: encode %s: %w", t.table, err)
	}

	cols, marks := "body", "?"
	for _, c := range t.extraCols {
		cols += ", " + c
		marks += ", ?"
	}
	args := append([]any{string(body)}, extra...)

	res, err := t.q.ExecContext(ctx, "INSERT INTO "+t.table+" ("+cols+") VALUES ("+marks+")", args...)
	if err != nil {
		return 0, fmt.Errorf("sqlite: insert %s: %w", t.table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("sqlite: insert %s: last id: %w", t.table, err)
	}
	return id, nil
}

func (t bodyTable[T]) First(ctx context.Context) (T, bool, error) {
	var (
		zero T
		id   int64
		body []byte
	)
	err := t.q.QueryRowContext(ctx, "SELECT id, body FROM "+t.table+" ORDER BY id LIMIT 1").Scan(&id, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("sqlite: first %s: %w", t.table, err)
	}
	v, err := t.decode(id, body)
	if err != nil {
		return zero, false, fmt.Errorf("sqlite: decode %s %d: %w", t.table, id, err)
	}
	return v, true, nil
}

func (t bodyTable[T]) Clear(ctx context.Context) error {
	return clearTable(ctx, t.q, t.table)
}

func (t bodyTable[T]) Count(ctx context.Context) (int, error) {
	return countTable(ctx, t.q, t.table)
}

func clearTable(ctx context.Context, q querier, table string) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return fmt.Errorf("sqlite: clear %s: %w", table, err)
	}
	return nil
}

func countTable(ctx context.Context, q querier, table string) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count %s: %w", table, err)
	}
	return n, nil
}

// factTable maps memory.Fact onto explicit columns; embeddings are stored as
// vecmath blobs.
type factTable struct {
	q querier
}

const factColumns = "id, content, importance, category, embedding, access_count, created_at, updated_at, last_accessed"

func (t factTable) List(ctx context.Context) ([]memory.Fact, error) {
	rows, err := t.q.QueryContext(ctx, "SELECT "+factColumns+" FROM facts ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("sqlite: list facts: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanFacts(rows)
}

func (t factTable) Get(ctx context.Context, id int64) (memory.Fact, error) {
	rows, err := t.q.QueryContext(ctx, "SELECT "+factColumns+" FROM facts WHERE id = ?", id)
	if err != nil {
		return memory.Fact{}, fmt.Errorf("sqlite: get fact: %w", err)
	}
	defer func() { _ = rows.Close() }()

	facts, err := scanFacts(rows)
	if err != nil {
		return memory.Fact{}, err
	}
	if len(facts) == 0 {
		return memory.Fact{}, memory.ErrFactNotFound
	}
	return facts[0], nil
}

func (t factTable) First(ctx context.Context) (memory.Fact, bool, error) {
	rows, err := t.q.QueryContext(ctx, "SELECT "+factColumns+" FROM facts ORDER BY id LIMIT 1")
	if err != nil {
		return memory.Fact{}, false, fmt.Errorf("sqlite: first fact: %w", err)
	}
	defer func() { _ = rows.Close() }()

	facts, err := scanFacts(rows)
	if err != nil || len(facts) == 0 {
		return memory.Fact{}, false, err
	}
	return facts[0], true, nil
}

func (t factTable) Add(ctx context.Context, f memory.Fact) (int64, error) {
	blob, err := encodeEmbedding(f.Embedding)
	if err != nil {
		return 0, err
	}
	res, err := t.q.ExecContext(ctx, `
		INSERT INTO facts (content, importance, category, embedding, access_count, created_at, updated_at, last_accessed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.Content, f.Importance, f.Category, blob, f.AccessCount,
		formatTime(f.CreatedAt), formatTime(f.UpdatedAt), formatTime(f.LastAccessed),
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: insert fact: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("sqlite: insert fact: last id: %w", err)
	}
	return id, nil
}

func (t factTable) Update(ctx context.Context, f memory.Fact) error {
	blob, err := encodeEmbedding(f.Embedding)
	if err != nil {
		return err
	}
	res, err := t.q.ExecContext(ctx, `
		UPDATE facts SET content = ?, importance = ?, category = ?, embedding = ?,
			access_count = ?, created_at = ?, updated_at = ?, last_accessed = ?
		WHERE id = ?`,
		f.Content, f.Importance, f.Category, blob, f.AccessCount,
		formatTime(f.CreatedAt), formatTime(f.UpdatedAt), formatTime(f.LastAccessed),
		f.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: update fact: %w", err)
	}
	return requireAffected(res)
}

func (t factTable) SetEmbedding(ctx context.Context, id int64, vec []float32) error {
	blob, err := encodeEmbedding(vec)
	if err != nil {
		return err
	}
	res, err := t.q.ExecContext(ctx, "UPDATE facts SET embedding = ? WHERE id = ?", blob, id)
	if err != nil {
		return fmt.Errorf("sqlite: set embedding: %w", err)
	}
	return requireAffected(res)
}

// Delete removes a fact by ID. Returns memory.ErrFactNotFound if the fact
// does not exist.
func (t factTable) Delete(ctx context.Context, id int64) error {
	res, err := t.q.ExecContext(ctx, "DELETE FROM facts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("sqlite: delete fact: %w", err)
	}
	return requireAffected(res)
}

func (t factTable) Clear(ctx context.Context) error {
	return clearTable(ctx, t.q, "facts")
}

func (t factTable) Count(ctx context.Context) (int, error) {
	return countTable(ctx, t.q, "facts")
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if n == 0 {
		return memory.ErrFactNotFound
	}
	return nil
}

func encodeEmbedding(vec []float32) ([]byte, error) {
	if len(vec) == 0 {
		return nil, nil
	}
	blob, err := vecmath.EncodeVector(vec)
	if err != nil {
		return nil, fmt.Errorf("sqlite: encode embedding: %w", err)
	}
	return blob, nil
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s sql.NullString) (time.Time, error) {
	if !s.Valid || s.String == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s.String)
}

func scanFacts(rows *sql.Rows) ([]memory.Fact, error) {
	var facts []memory.Fact
	for rows.Next() {
		var (
			f                          memory.Fact
			blob                       []byte
			created, updated, accessed sql.NullString
		)
		if err := rows.Scan(&f.ID, &f.Content, &f.Importance, &f.Category, &blob, &f.AccessCount,
			&created, &updated, &accessed); err != nil {
			return nil, fmt.Errorf("sqlite: scan fact: %w", err)
		}

		if len(blob) > 0 {
			vec, err := vecmath.DecodeVector(blob)
			if err != nil {
				return nil, fmt.Errorf("sqlite: decode embedding of fact %d: %w", f.ID, err)
			}
			f.Embedding = vec
		}

		var err error
		if f.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("sqlite: parse created_at %q: %w", created.String, err)
		}
		if f.UpdatedAt, err = parseTime(updated); err != nil {
			return nil, fmt.Errorf("sqlite: parse updated_at %q: %w", updated.String, err)
		}
		if f.LastAccessed, err = parseTime(accessed); err != nil {
			return nil, fmt.Errorf("sqlite: parse last_accessed %q: %w", accessed.String, err)
		}

		facts = append(facts, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: scan facts rows: %w", err)
	}
	return facts, nil
}
