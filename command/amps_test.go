// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package command

import "testing"

func TestAmpsToDAC(t *testing.T) {
	for _, tc := range []struct {
		amps float64
		want int16
	}{
		{-5.0, -32767},
		{0, 0},
		{5.0, 32767},
		{10.0, 32767},  // saturates above range
		{-10.0, -32767}, // saturates below range
	} {
		if got := AmpsToDAC(tc.amps); got != tc.want {
			t.Errorf("AmpsToDAC(%v) = %d, want %d", tc.amps, got, tc.want)
		}
	}
}

func TestAmpsToDACMonotonic(t *testing.T) {
	prev := AmpsToDAC(-5.0)
	for amps := -4.9; amps <= 5.0; amps += 0.1 {
		v := AmpsToDAC(amps)
		if v < prev {
			t.Fatalf("AmpsToDAC not monotonic at %.2f: %d < %d", amps, v, prev)
		}
		prev = v
	}
}

func TestDACToAmpsRoundTrip(t *testing.T) {
	for _, v := range []int16{-32767, -1000, 0, 1000, 32767} {
		amps := DACToAmps(v)
		if got := AmpsToDAC(amps); got != v {
			t.Errorf("round trip for %d: amps=%v got=%d", v, amps, got)
		}
	}
}
