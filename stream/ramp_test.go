// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stream

import "testing"

func TestRampFractionsZero(t *testing.T) {
	got := RampFractions(0)
	want := []float64{1}
	if len(got) != 1 || got[0] != want[0] {
		t.Fatalf("RampFractions(0) = %v, want %v", got, want)
	}
}

func rampSequence(prev, target int16, r int) []int16 {
	fracs := RampFractions(r)
	out := make([]int16, len(fracs))
	for i, a := range fracs {
		out[i] = RampValue(prev, target, a)
	}
	return out
}

func TestRampSequenceUp(t *testing.T) {
	got := rampSequence(0, 1000, 4)
	want := []int16{200, 400, 600, 800, 1000}
	if !equalInt16(got, want) {
		t.Fatalf("ramp(0,1000,R=4) = %v, want %v", got, want)
	}
}

func TestRampSequenceDown(t *testing.T) {
	got := rampSequence(1000, -1000, 1)
	want := []int16{0, -1000}
	if !equalInt16(got, want) {
		t.Fatalf("ramp(1000,-1000,R=1) = %v, want %v", got, want)
	}
}

func TestRampValueSaturates(t *testing.T) {
	if got := RampValue(32000, 32767, 1.0); got != 32767 {
		t.Fatalf("RampValue saturating up = %d, want 32767", got)
	}
	if got := RampValue(-32000, -32767, 1.0); got != -32767 {
		t.Fatalf("RampValue saturating down = %d, want -32767", got)
	}
}

func equalInt16(a, b []int16) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
