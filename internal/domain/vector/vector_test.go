package vector

import (
	"math"
	"testing"
)

const eps = 1e-9

func almostEqual(a, b []float64, tol float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > tol {
			return false
		}
	}
	return true
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"self", []float64{1, 2, 3}, []float64{1, 2, 3}, 1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1},
		{"zero vector", []float64{1, 2}, []float64{0, 0}, 0},
		{"dimension mismatch", []float64{1, 2}, []float64{1, 2, 3}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cosine(tt.a, tt.b)
			if math.Abs(got-tt.want) > eps {
				t.Errorf("Cosine() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCosine_Symmetric(t *testing.T) {
	a := []float64{0.3, -1.2, 4}
	b := []float64{2, 0.5, -0.7}
	if math.Abs(Cosine(a, b)-Cosine(b, a)) > eps {
		t.Error("cosine must be symmetric")
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize([]float64{3, 4})
	if !almostEqual(got, []float64{0.6, 0.8}, eps) {
		t.Errorf("Normalize = %v", got)
	}

	zero := Normalize([]float64{0, 0, 0})
	if !IsZero(zero) {
		t.Errorf("zero vector must stay zero, got %v", zero)
	}
}

func TestFold_ZeroWeightDecaysOnly(t *testing.T) {
	taste := []float64{0.5, 0.5}
	got := Fold(taste, []float64{1, 1}, 0.05, 0)
	// Weight zero still applies the (1-alpha) decay; a unit-normalized vector keeps its direction.
	if math.Abs(Cosine(got, taste)-1) > eps {
		t.Errorf("direction changed: %v", got)
	}
	if !almostEqual(Normalize(got), Normalize(taste), eps) {
		t.Errorf("normalized fold = %v, want %v", Normalize(got), Normalize(taste))
	}
}

func TestFold_DoesNotMutateInput(t *testing.T) {
	taste := []float64{0.1, 0.2}
	_ = Fold(taste, []float64{1, 1}, 0.5, 1)
	if taste[0] != 0.1 || taste[1] != 0.2 {
		t.Errorf("input mutated: %v", taste)
	}
}

func TestNudgeRevert_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		taste []float64
		item  []float64
		beta  float64
		// want defaults to taste
		want []float64
	}{
		{"neutral profile", []float64{0, 0, 0, 0}, []float64{1, 0, 0.5, 1}, 0.1, nil},
		{"populated profile", []float64{0.2, -0.4, 0.7, 0.1}, []float64{0.9, 0.2, 1, 0.3}, 0.1, nil},
		{"zero taste off item support", []float64{0.2, 0, 0.7, 0}, []float64{0.9, 0, 1, 0}, 0.1, nil},
		{"large beta", []float64{0.3, 0.3}, []float64{1, 1}, 0.5, nil},
		// the decay on dimensions the item does not touch is kept
		{"decay off item support stays", []float64{0.5, 0.5}, []float64{1, 0}, 0.1, []float64{0.5, 0.45}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := tt.want
			if want == nil {
				want = tt.taste
			}
			forward := Nudge(tt.taste, tt.item, tt.beta)
			back := Revert(forward, tt.item, tt.beta, 1e-9)
			if !almostEqual(back, want, 1e-9) {
				t.Errorf("round trip = %v, want %v", back, want)
			}
		})
	}
}

func TestRevert_SkipsNegligibleDimensions(t *testing.T) {
	taste := []float64{0.5, 0.5}
	got := Revert(taste, []float64{0, 1}, 0.1, 1e-6)
	if got[0] != 0.5 {
		t.Errorf("dimension without contribution changed: %v", got[0])
	}
}

func TestHot(t *testing.T) {
	got := Hot([]float64{0.05, 0.2, 0.1, 0.9}, 0.1)
	if len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Errorf("Hot = %v, want [1 3]", got)
	}
	if Hot([]float64{0, 0}, 0) != nil {
		t.Error("zero vector has no hot dimensions")
	}
}
