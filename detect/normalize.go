// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package detect

import "math"

// Norm returns the Euclidean norm of v. It scales by the largest magnitude
// first so large components do not overflow.
func Norm(v []float64) float64 {
	scale, sum := scaledSquares(v)
	if math.IsInf(scale, 0) {
		return scale
	}
	return scale * math.Sqrt(sum)
}

// Normalize returns v divided by its Euclidean norm. The zero vector is
// returned unchanged (as a copy). Components must be finite.
func Normalize(v []float64) []float64 {
	out := make([]float64, len(v))
	scale, sum := scaledSquares(v)
	if scale == 0 {
		copy(out, v)
		return out
	}
	root := math.Sqrt(sum)
	for i, x := range v {
		out[i] = (x / scale) / root
	}
	return out
}

func scaledSquares(v []float64) (scale, sum float64) {
	for _, x := range v {
		scale = math.Max(scale, math.Abs(x))
	}
	if scale == 0 || math.IsInf(scale, 0) || math.IsNaN(scale) {
		return scale, 0
	}
	for _, x := range v {
		r := x / scale
		sum += r * r
	}
	return scale, sum
}
