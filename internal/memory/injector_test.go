package memory_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/flemzord/utsuwa/internal/memory"
)

// keywordEmbedder maps texts onto a two-dimensional space: texts mentioning
// "tea" point along x, everything else along y.
type keywordEmbedder struct {
	disabled bool
}

func (e keywordEmbedder) Embed(_ context.Context, text string) []float32 {
	if e.disabled {
		return nil
	}
	if strings.Contains(text, "tea") {
		return []float32{1, 0}
	}
	return []float32{0, 1}
}

type staticFacts struct {
	facts []memory.Fact
	err   error
}

func (s staticFacts) List(context.Context) ([]memory.Fact, error) {
	return s.facts, s.err
}

// mockEstimator charges one token per four bytes, plus one.
type mockEstimator struct{}

func (mockEstimator) Estimate(text string) int { return len(text)/4 + 1 }

func teaFacts() []memory.Fact {
	return []memory.Fact{
		{ID: 1, Content: "user drinks green tea every morning", Importance: 80, Embedding: []float32{1, 0}},
		{ID: 2, Content: "user owns a cat named Mochi", Importance: 90, Embedding: []float32{0, 1}},
		{ID: 3, Content: "user dislikes sweet tea", Importance: 40, Embedding: []float32{0.9, 0.1}},
		{ID: 4, Content: "not embedded yet", Importance: 100},
	}
}

func TestRecaller_Recall(t *testing.T) {
	t.Parallel()

	r := memory.NewRecaller(keywordEmbedder{}, staticFacts{facts: teaFacts()}, memory.DefaultRankOptions(), nil)

	got, err := r.Recall(t.Context(), "what tea do I like?", 10)
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2", len(got))
	}
	if got[0].Fact.ID != 1 || got[1].Fact.ID != 3 {
		t.Errorf("order = [%d %d], want [1 3]", got[0].Fact.ID, got[1].Fact.ID)
	}
}

func TestRecaller_Recall_NoEmbedding(t *testing.T) {
	t.Parallel()

	r := memory.NewRecaller(keywordEmbedder{disabled: true}, staticFacts{facts: teaFacts()}, memory.DefaultRankOptions(), nil)

	got, err := r.Recall(t.Context(), "tea", 10)
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if got != nil {
		t.Errorf("got %v, want nil when no query embedding is available", got)
	}
}

func TestRecaller_Recall_BlankQuery(t *testing.T) {
	t.Parallel()

	r := memory.NewRecaller(keywordEmbedder{}, staticFacts{err: errors.New("must not be called")}, memory.DefaultRankOptions(), nil)

	got, err := r.Recall(t.Context(), "   ", 10)
	if err != nil || got != nil {
		t.Errorf("Recall(blank) = %v, %v; want nil, nil", got, err)
	}
}

func TestRecaller_Recall_SourceError(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk on fire")
	r := memory.NewRecaller(keywordEmbedder{}, staticFacts{err: boom}, memory.DefaultRankOptions(), nil)

	if _, err := r.Recall(t.Context(), "tea", 10); !errors.Is(err, boom) {
		t.Errorf("error = %v, want wrapped %v", err, boom)
	}
}

func TestInjectMemory_WithFacts(t *testing.T) {
	t.Parallel()

	r := memory.NewRecaller(keywordEmbedder{}, staticFacts{facts: teaFacts()}, memory.DefaultRankOptions(), nil)

	result, err := memory.InjectMemory(t.Context(), memory.InjectionRequest{
		Recaller: r, Query: "tea", MaxFacts: 10, MaxTokens: 10000, Estimator: mockEstimator{},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("got %d facts, want 2", len(result))
	}
	if result[0] != "user drinks green tea every morning" {
		t.Errorf("first fact = %q", result[0])
	}
}

func TestInjectMemory_TokenBudgetTruncates(t *testing.T) {
	t.Parallel()

	var facts []memory.Fact
	for i := range 10 {
		facts = append(facts, memory.Fact{
			ID:         int64(i + 1),
			Content:    fmt.Sprintf("tea fact %d with a lot of extra content to consume tokens padding padding", i),
			Importance: 50,
			Embedding:  []float32{1, 0},
		})
	}
	r := memory.NewRecaller(keywordEmbedder{}, staticFacts{facts: facts}, memory.DefaultRankOptions(), nil)

	est := mockEstimator{}
	perFact := est.Estimate(facts[0].Content)

	result, err := memory.InjectMemory(t.Context(), memory.InjectionRequest{
		Recaller: r, Query: "tea", MaxFacts: 10, MaxTokens: perFact*3 + 1, Estimator: est,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) != 3 {
		t.Errorf("got %d facts, want 3 within budget", len(result))
	}
}

func TestInjectMemory_Disabled(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		req  memory.InjectionRequest
	}{
		{name: "nil recaller", req: memory.InjectionRequest{Query: "tea", MaxFacts: 5, MaxTokens: 100}},
		{name: "zero facts", req: memory.InjectionRequest{
			Recaller: memory.NewRecaller(keywordEmbedder{}, staticFacts{}, memory.DefaultRankOptions(), nil),
			Query:    "tea", MaxTokens: 100,
		}},
		{name: "zero tokens", req: memory.InjectionRequest{
			Recaller: memory.NewRecaller(keywordEmbedder{}, staticFacts{}, memory.DefaultRankOptions(), nil),
			Query:    "tea", MaxFacts: 5,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := memory.InjectMemory(context.Background(), tt.req)
			if err != nil || got != nil {
				t.Errorf("InjectMemory = %v, %v; want nil, nil", got, err)
			}
		})
	}
}

func TestFormatFacts(t *testing.T) {
	t.Parallel()

	if got := memory.FormatFacts(nil); got != "" {
		t.Errorf("FormatFacts(nil) = %q, want empty", got)
	}

	got := memory.FormatFacts([]string{"likes tea", "has a cat"})
	if !strings.HasPrefix(got, "## ") {
		t.Errorf("missing section header: %q", got)
	}
	if !strings.Contains(got, "- likes tea\n- has a cat\n") {
		t.Errorf("unexpected body: %q", got)
	}
}

func TestCharEstimator(t *testing.T) {
	t.Parallel()

	e := memory.CharEstimator{CharsPerToken: 4}
	if got := e.Estimate(""); got != 0 {
		t.Errorf("Estimate(\"\") = %d, want 0", got)
	}
	if got := e.Estimate("abcdefgh"); got != 3 {
		t.Errorf("Estimate(8 chars) = %d, want 3", got)
	}
	if got := (memory.CharEstimator{}).Estimate("abcd"); got != 2 {
		t.Errorf("zero CharsPerToken should default to 4, got %d", got)
	}
}
