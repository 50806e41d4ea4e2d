// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package status

import "testing"

func TestDecodeEmpty(t *testing.T) {
	raw := uint32(1 << bitEmpty)
	got := Decode(raw, 8192)
	if !got.Empty || got.Present || got.WordCount != 0 {
		t.Fatalf("got %+v, want Empty with zero count", got)
	}
}

func TestDecodeWordCount(t *testing.T) {
	const capacity = 8192 // countWidth = 14
	raw := uint32(1<<bitPresent) | 100
	got := Decode(raw, capacity)
	if !got.Present || got.WordCount != 100 {
		t.Fatalf("got %+v, want Present with count 100", got)
	}
}

func TestDecodeFullOverflow(t *testing.T) {
	raw := uint32(1<<bitFull) | uint32(1<<bitOverflow) | uint32(1<<bitPresent) | 8192
	got := Decode(raw, 8192)
	if !got.Full || !got.Overflow || !got.Present || got.WordCount != 8192 {
		t.Fatalf("got %+v, want Full+Overflow+Present at capacity", got)
	}
}

func TestDecodeUnderflow(t *testing.T) {
	raw := uint32(1 << bitUnderflow)
	got := Decode(raw, 8192)
	if !got.Underflow {
		t.Fatalf("got %+v, want Underflow", got)
	}
}

func TestCountWidth(t *testing.T) {
	for _, tc := range []struct {
		capacity uint32
		want     uint
	}{
		{0, 0},
		{1, 1},
		{8192, 14},
		{16384, 15},
	} {
		if got := countWidth(tc.capacity); got != tc.want {
			t.Errorf("countWidth(%d) = %d, want %d", tc.capacity, got, tc.want)
		}
	}
}
