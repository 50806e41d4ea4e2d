// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stream

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// RampFractions returns the R+1 interpolation fractions alpha_s =
// (s+1)/(R+1) for s = 0..R, in ascending order ending at 1.0 (the
// final step always lands exactly on the target). R==0 yields {1.0}:
// a single, unramped step straight to the target.
func RampFractions(r int) []float64 {
	n := r + 1
	fracs := make([]float64, n)
	if n == 1 {
		fracs[0] = 1
		return fracs
	}
	floats.Span(fracs, 1/float64(n), 1)
	return fracs
}

// RampValue computes one interpolated DAC code between prev and
// target at fraction alpha, using the firmware's own integer-floor,
// saturating arithmetic: prev + floor((target-prev)*alpha).
func RampValue(prev, target int16, alpha float64) int16 {
	delta := math.Floor((float64(target) - float64(prev)) * alpha)
	v := float64(prev) + delta
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	default:
		return int16(v)
	}
}
