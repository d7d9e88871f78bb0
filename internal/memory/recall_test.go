package memory_test

import (
	"errors"
	"testing"

	"github.com/flemzord/utsuwa/internal/memory"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"
)

// recordSpans installs a recording tracer provider for the test.
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(noop.NewTracerProvider()) })
	return rec
}

func attr(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestRecaller_RecallSpan(t *testing.T) {
	rec := recordSpans(t)

	r := memory.NewRecaller(keywordEmbedder{}, staticFacts{facts: teaFacts()}, memory.DefaultRankOptions(), nil)
	got, err := r.Recall(t.Context(), "tea", 5)
	if err != nil {
		t.Fatal(err)
	}

	spans := rec.Ended()
	if len(spans) != 1 || spans[0].Name() != "memory.recall" {
		t.Fatalf("spans = %v, want one memory.recall span", spans)
	}
	attrs := spans[0].Attributes()
	if v, ok := attr(attrs, "limit"); !ok || v.AsInt64() != 5 {
		t.Errorf("limit attribute = %v", v)
	}
	if v, ok := attr(attrs, "results"); !ok || v.AsInt64() != int64(len(got)) {
		t.Errorf("results attribute = %v, want %d", v, len(got))
	}
}

func TestRecaller_RecallSpanRecordsError(t *testing.T) {
	rec := recordSpans(t)

	r := memory.NewRecaller(keywordEmbedder{}, staticFacts{err: errors.New("disk gone")}, memory.DefaultRankOptions(), nil)
	if _, err := r.Recall(t.Context(), "tea", 5); err == nil {
		t.Fatal("expected an error")
	}

	spans := rec.Ended()
	if len(spans) != 1 || spans[0].Status().Code != codes.Error {
		t.Fatalf("spans = %v, want one errored span", spans)
	}
}

func TestRecaller_BlankQueryStartsNoSpan(t *testing.T) {
	rec := recordSpans(t)

	r := memory.NewRecaller(keywordEmbedder{}, staticFacts{}, memory.DefaultRankOptions(), nil)
	_, _ = r.Recall(t.Context(), "  ", 5)

	if n := len(rec.Ended()); n != 0 {
		t.Errorf("ended spans = %d, want 0", n)
	}
}
