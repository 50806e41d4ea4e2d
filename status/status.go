// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package status decodes the FIFO status word shared by every command
// and data FIFO in the Rev-C register map.
package status // import "github.com/lincolncb/shimrunner/status"

import "math/bits"

// Word is the decoded form of a FIFO status register read.
type Word struct {
	Present   bool // the FIFO's board is connected; other fields are meaningless when false
	WordCount uint32
	Full      bool
	Overflow  bool
	Empty     bool
	Underflow bool
}

// bit positions, counted from the top of the 32-bit status word; the
// WORD_COUNT field occupies the bits below them, sized to hold
// capacity itself (so a FIFO of N words reports counts 0..N).
const (
	bitUnderflow = 31
	bitEmpty     = 30
	bitOverflow  = 29
	bitFull      = 28
	bitPresent   = 27
)

// countWidth returns the number of bits needed to represent capacity
// values 0..capacity inclusive.
func countWidth(capacity uint32) uint {
	return uint(bits.Len32(capacity))
}

// Decode interprets a raw status register read against a FIFO of the
// given capacity (in words).
func Decode(raw uint32, capacity uint32) Word {
	w := countWidth(capacity)
	mask := uint32(1)<<w - 1
	return Word{
		Present:   raw&(1<<bitPresent) != 0,
		WordCount: raw & mask,
		Full:      raw&(1<<bitFull) != 0,
		Overflow:  raw&(1<<bitOverflow) != 0,
		Empty:     raw&(1<<bitEmpty) != 0,
		Underflow: raw&(1<<bitUnderflow) != 0,
	}
}
