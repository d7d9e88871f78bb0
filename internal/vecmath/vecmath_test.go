package vecmath_test

import (
	"errors"
	"math"
	"testing"

	"github.com/flemzord/utsuwa/internal/vecmath"
)

const tolerance = 1e-9

func TestCosineSimilarity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{name: "identical", a: []float32{1, 2, 3}, b: []float32{1, 2, 3}, want: 1},
		{name: "scaled", a: []float32{1, 2, 3}, b: []float32{2, 4, 6}, want: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: -1},
		{name: "length mismatch", a: []float32{1, 0}, b: []float32{1, 0, 0}, want: 0},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 1}, want: 0},
		{name: "both empty", a: nil, b: []float32{}, want: 0},
		{name: "45 degrees", a: []float32{1, 0}, b: []float32{1, 1}, want: 1 / math.Sqrt2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := vecmath.CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("CosineSimilarity(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestCosineSimilarity_Range(t *testing.T) {
	t.Parallel()

	vectors := [][]float32{
		{0.1, -0.7, 0.3},
		{-5, 2, 9},
		{1e-3, 1e-3, 1e-3},
		{100, -100, 50},
		{0.33, 0.33, 0.34},
	}

	for _, a := range vectors {
		for _, b := range vectors {
			got := vecmath.CosineSimilarity(a, b)
			if got < -1 || got > 1 {
				t.Errorf("CosineSimilarity(%v, %v) = %v, outside [-1, 1]", a, b, got)
			}
		}
		if self := vecmath.CosineSimilarity(a, a); math.Abs(self-1) > 1e-6 {
			t.Errorf("CosineSimilarity(a, a) = %v, want ~1", self)
		}
	}
}

func TestNorm(t *testing.T) {
	t.Parallel()

	if got := vecmath.Norm([]float32{3, 4}); math.Abs(got-5) > tolerance {
		t.Errorf("Norm = %v, want 5", got)
	}
	if got := vecmath.Norm(nil); got != 0 {
		t.Errorf("Norm(nil) = %v, want 0", got)
	}
}

func TestEncodeDecodeVector(t *testing.T) {
	t.Parallel()

	in := []float32{0.25, -1.5, 3, 0}
	blob, err := vecmath.EncodeVector(in)
	if err != nil {
		t.Fatalf("EncodeVector: %v", err)
	}
	if len(blob) != 4+4*len(in) {
		t.Fatalf("blob length = %d, want %d", len(blob), 4+4*len(in))
	}

	out, err := vecmath.DecodeVector(blob)
	if err != nil {
		t.Fatalf("DecodeVector: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("decoded %d values, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("value %d = %v, want %v", i, out[i], in[i])
		}
	}
}

func TestEncodeVector_Errors(t *testing.T) {
	t.Parallel()

	if _, err := vecmath.EncodeVector(nil); !errors.Is(err, vecmath.ErrEmptyVector) {
		t.Errorf("EncodeVector(nil) error = %v, want ErrEmptyVector", err)
	}
	if _, err := vecmath.EncodeVector([]float32{float32(math.NaN())}); err == nil {
		t.Error("expected error for NaN component")
	}
}

func TestDecodeVector_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		blob []byte
	}{
		{name: "short", blob: []byte{1, 0}},
		{name: "zero dim", blob: []byte{0, 0, 0, 0}},
		{name: "truncated payload", blob: []byte{2, 0, 0, 0, 0, 0, 128, 63}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := vecmath.DecodeVector(tt.blob); err == nil {
				t.Error("expected error")
			}
		})
	}
}
