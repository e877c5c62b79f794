// Package vector holds the float vector arithmetic shared by scoring,
// taste folding and candidate selection. Every function is pure.
package vector

import "math"

// Zero returns a neutral vector of dimension d.
func Zero(d int) []float64 {
	return make([]float64, d)
}

// Clone returns a copy of v.
func Clone(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}

// Magnitude returns the L2 norm of v.
func Magnitude(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// IsZero reports whether v has zero magnitude.
func IsZero(v []float64) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// Cosine returns the cosine similarity of a and b.
// It is 0 when either vector has zero magnitude or the dimensions differ.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	mag := math.Sqrt(na) * math.Sqrt(nb)
	if mag == 0 {
		return 0
	}
	return dot / mag
}

// Normalize returns v scaled to unit length. A zero vector is returned unchanged.
func Normalize(v []float64) []float64 {
	out := Clone(v)
	mag := Magnitude(v)
	if mag == 0 {
		return out
	}
	for i := range out {
		out[i] /= mag
	}
	return out
}

// Fold applies one exponential moving average step:
// t[i] = (1-alpha)*t[i] + alpha*weight*item[i].
// Dimensions beyond the shorter vector are left untouched.
func Fold(taste, item []float64, alpha, weight float64) []float64 {
	out := Clone(taste)
	n := min(len(out), len(item))
	for i := 0; i < n; i++ {
		out[i] = (1-alpha)*out[i] + alpha*weight*item[i]
	}
	return out
}

// Nudge is the online update used by quick reactions: Fold with unit weight.
func Nudge(taste, item []float64, beta float64) []float64 {
	return Fold(taste, item, beta, 1)
}

// Revert inverts Nudge on every dimension where |item[i]| > eps:
// t[i] = (t[i] - beta*item[i]) / (1-beta). Other dimensions are left as is.
// A beta of 1 or more cannot be inverted and returns a copy of taste.
func Revert(taste, item []float64, beta, eps float64) []float64 {
	out := Clone(taste)
	if beta >= 1 {
		return out
	}
	n := min(len(out), len(item))
	for i := 0; i < n; i++ {
		if math.Abs(item[i]) <= eps {
			continue
		}
		out[i] = (out[i] - beta*item[i]) / (1 - beta)
	}
	return out
}

// Hot returns the indices whose value exceeds threshold, ascending.
func Hot(v []float64, threshold float64) []int {
	var idx []int
	for i, x := range v {
		if x > threshold {
			idx = append(idx, i)
		}
	}
	return idx
}
