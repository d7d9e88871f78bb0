// Package storetest provides a behavioral test suite shared by every
// store.Store implementation.
package storetest

import (
	"errors"
	"testing"
	"time"

	"github.com/flemzord/utsuwa/internal/companion"
	"github.com/flemzord/utsuwa/internal/memory"
	"github.com/flemzord/utsuwa/internal/store"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) store.Store

// Run exercises s against the store contract.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("CharactersAddFirst", func(t *testing.T) { testCharacters(t, newStore(t)) })
	t.Run("FactsLifecycle", func(t *testing.T) { testFacts(t, newStore(t)) })
	t.Run("FactNotFound", func(t *testing.T) { testFactNotFound(t, newStore(t)) })
	t.Run("RecordsRoundTrip", func(t *testing.T) { testRecords(t, newStore(t)) })
	t.Run("ClearAll", func(t *testing.T) { testClearAll(t, newStore(t)) })

	if _, ok := newStore(t).(store.Transactional); ok {
		t.Run("TxCommit", func(t *testing.T) { testTxCommit(t, newStore(t)) })
		t.Run("TxRollback", func(t *testing.T) { testTxRollback(t, newStore(t)) })
	}
}

// MustRecord decodes raw JSON into a record or fails the test.
func MustRecord(t *testing.T, raw string) companion.Record {
	t.Helper()
	r, err := companion.NewRecord([]byte(raw))
	if err != nil {
		t.Fatalf("NewRecord(%s): %v", raw, err)
	}
	return r
}

func testCharacters(t *testing.T, s store.Store) {
	ctx := t.Context()

	if _, ok, err := s.Characters().First(ctx); err != nil || ok {
		t.Fatalf("First on empty store = ok %v, err %v", ok, err)
	}

	c := companion.DefaultCharacter(time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC))
	c.ID = 999
	c.Name = "Aiko"
	c.Affection = 42
	streak := "2026-02-03"
	c.StreakLastDate = &streak

	id, err := s.Characters().Add(ctx, c)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if id == 0 || id == 999 {
		t.Errorf("Add returned id %d, want a store-assigned id", id)
	}

	got, ok, err := s.Characters().First(ctx)
	if err != nil || !ok {
		t.Fatalf("First = ok %v, err %v", ok, err)
	}
	if got.ID != id || got.Name != "Aiko" || got.Affection != 42 {
		t.Errorf("First = %+v", got)
	}
	if got.StreakLastDate == nil || *got.StreakLastDate != streak {
		t.Errorf("StreakLastDate = %v", got.StreakLastDate)
	}
	if !got.FirstMet.Equal(c.FirstMet) {
		t.Errorf("FirstMet = %v, want %v", got.FirstMet, c.FirstMet)
	}
	if got.Personality != c.Personality {
		t.Errorf("Personality = %+v", got.Personality)
	}
}

func testFacts(t *testing.T, s store.Store) {
	ctx := t.Context()
	facts := s.Facts()

	id1, err := facts.Add(ctx, memory.Fact{Content: "likes tea", Importance: 80})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	id2, err := facts.Add(ctx, memory.Fact{Content: "has a cat", Importance: 60, Embedding: []float32{0, 1}})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if id2 <= id1 {
		t.Errorf("ids must increase: %d then %d", id1, id2)
	}

	if err := facts.SetEmbedding(ctx, id1, []float32{1, 0.5}); err != nil {
		t.Fatalf("SetEmbedding: %v", err)
	}
	got, err := facts.Get(ctx, id1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Embedding) != 2 || got.Embedding[1] != 0.5 {
		t.Errorf("Embedding = %v", got.Embedding)
	}

	got.Content = "loves tea"
	got.Importance = 95
	if err := facts.Update(ctx, got); err != nil {
		t.Fatalf("Update: %v", err)
	}

	list, err := facts.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ID != id1 || list[1].ID != id2 {
		t.Fatalf("List = %+v", list)
	}
	if list[0].Content != "loves tea" || list[0].Importance != 95 || !list[0].HasEmbedding() {
		t.Errorf("updated fact = %+v", list[0])
	}

	if err := facts.Delete(ctx, id2); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if n, _ := facts.Count(ctx); n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
}

func testFactNotFound(t *testing.T, s store.Store) {
	ctx := t.Context()
	facts := s.Facts()

	if _, err := facts.Get(ctx, 77); !errors.Is(err, memory.ErrFactNotFound) {
		t.Errorf("Get: %v", err)
	}
	if err := facts.Update(ctx, memory.Fact{ID: 77}); !errors.Is(err, memory.ErrFactNotFound) {
		t.Errorf("Update: %v", err)
	}
	if err := facts.SetEmbedding(ctx, 77, []float32{1}); !errors.Is(err, memory.ErrFactNotFound) {
		t.Errorf("SetEmbedding: %v", err)
	}
	if err := facts.Delete(ctx, 77); !errors.Is(err, memory.ErrFactNotFound) {
		t.Errorf("Delete: %v", err)
	}
}

func testRecords(t *testing.T, s store.Store) {
	ctx := t.Context()

	rec := MustRecord(t, `{"id":5,"summary":"tea talk","topics":["tea","cats"]}`)
	if _, err := s.Sessions().Add(ctx, companion.SessionSummary{Record: rec}); err != nil {
		t.Fatalf("Sessions.Add: %v", err)
	}
	if _, err := s.Turns().Add(ctx, companion.ConversationTurn{Record: MustRecord(t, `{"role":"user","content":"hi"}`)}); err != nil {
		t.Fatalf("Turns.Add: %v", err)
	}
	if _, err := s.Events().Add(ctx, companion.CompletedEventRecord{Record: MustRecord(t, `{"eventId":"first_chat"}`)}); err != nil {
		t.Fatalf("Events.Add: %v", err)
	}

	sessions, err := s.Sessions().List(ctx)
	if err != nil || len(sessions) != 1 {
		t.Fatalf("Sessions.List = %d, %v", len(sessions), err)
	}
	var topics []string
	if ok, err := sessions[0].Field("topics", &topics); !ok || err != nil || len(topics) != 2 {
		t.Errorf("topics = %v (%v, %v)", topics, ok, err)
	}
	if sessions[0].ID == 0 {
		t.Error("stored session should carry its id")
	}

	turn, ok, err := s.Turns().First(ctx)
	if err != nil || !ok {
		t.Fatalf("Turns.First = %v, %v", ok, err)
	}
	var role string
	if _, err := turn.Field("role", &role); err != nil || role != "user" {
		t.Errorf("role = %q, %v", role, err)
	}
}

func testClearAll(t *testing.T, s store.Store) {
	ctx := t.Context()
	seed(t, s)

	if err := store.ClearAll(ctx, s); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	counts, err := store.Count(ctx, s)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if counts != (store.Counts{}) {
		t.Errorf("counts after ClearAll = %+v", counts)
	}
}

func testTxCommit(t *testing.T, s store.Store) {
	ctx := t.Context()
	tx := s.(store.Transactional)

	err := tx.WithTx(ctx, func(tx store.Store) error {
		seed(t, tx)
		return nil
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}

	counts, err := store.Count(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	want := store.Counts{Characters: 1, Facts: 2, Sessions: 1, ConversationTurns: 1, CompletedEvents: 1}
	if counts != want {
		t.Errorf("counts = %+v, want %+v", counts, want)
	}
}

func testTxRollback(t *testing.T, s store.Store) {
	ctx := t.Context()
	seed(t, s)
	before, err := store.Count(ctx, s)
	if err != nil {
		t.Fatal(err)
	}

	boom := errors.New("abort")
	err = s.(store.Transactional).WithTx(ctx, func(tx store.Store) error {
		if err := store.ClearAll(ctx, tx); err != nil {
			return err
		}
		if _, err := tx.Facts().Add(ctx, memory.Fact{Content: "partial"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx error = %v, want %v", err, boom)
	}

	after, err := store.Count(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	if after != before {
		t.Errorf("counts after rollback = %+v, want %+v", after, before)
	}
}

func seed(t *testing.T, s store.Store) {
	t.Helper()
	ctx := t.Context()
	if _, err := s.Characters().Add(ctx, companion.DefaultCharacter(time.Unix(0, 0).UTC())); err != nil {
		t.Fatal(err)
	}
	for _, content := range []string{"likes tea", "has a cat"} {
		if _, err := s.Facts().Add(ctx, memory.Fact{Content: content, Importance: 50}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.Sessions().Add(ctx, companion.SessionSummary{Record: MustRecord(t, `{"summary":"s"}`)}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Turns().Add(ctx, companion.ConversationTurn{Record: MustRecord(t, `{"content":"c"}`)}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Events().Add(ctx, companion.CompletedEventRecord{Record: MustRecord(t, `{"eventId":"e"}`)}); err != nil {
		t.Fatal(err)
	}
}
