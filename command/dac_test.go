// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package command

import "testing"

func decodeDacWrite(words []uint32) DacWrite {
	op := words[0]
	c := DacWrite{
		Trig: op&(1<<flagTrigShift) != 0,
		Cont: op&(1<<flagContShift) != 0,
		Ldac: op&(1<<flagLdacShift) != 0,
		Count: op & payloadMask,
	}
	for pair := 0; pair < 4; pair++ {
		hi := int16(int32(words[1+pair]>>16) - 0x8000)
		lo := int16(int32(words[1+pair]&0xFFFF) - 0x8000)
		c.Channels[2*pair] = hi
		c.Channels[2*pair+1] = lo
	}
	return c
}

func TestDacWriteRoundTrip(t *testing.T) {
	orig := DacWrite{
		Board:    2,
		Channels: [8]int16{100, -200, 300, -400, 500, -600, 700, -800},
		Trig:     true,
		Cont:     false,
		Ldac:     true,
		Count:    42,
	}
	words, err := orig.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(words) != 5 {
		t.Fatalf("Encode produced %d words, want 5", len(words))
	}
	got := decodeDacWrite(words)
	if got.Channels != orig.Channels || got.Trig != orig.Trig || got.Cont != orig.Cont ||
		got.Ldac != orig.Ldac || got.Count != orig.Count {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, orig)
	}
}

func TestDacWriteBadCount(t *testing.T) {
	c := DacWrite{Count: payloadMask + 1}
	if _, err := c.Encode(); err != ErrBadArg {
		t.Fatalf("Encode with oversized count: err=%v, want ErrBadArg", err)
	}
}

func TestDacOrderRoundTrip(t *testing.T) {
	orig := DacOrder{Channels: [8]uint8{7, 6, 5, 4, 3, 2, 1, 0}}
	words, err := orig.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(words) != 1 {
		t.Fatalf("Encode produced %d words, want 1", len(words))
	}
	got := unpackOrder(words[0] & payloadMask)
	if got != orig.Channels {
		t.Fatalf("order round trip: got %v, want %v", got, orig.Channels)
	}
}

func TestDacOrderBadChannel(t *testing.T) {
	c := DacOrder{Channels: [8]uint8{0, 1, 2, 3, 4, 5, 6, 8}}
	if _, err := c.Encode(); err != ErrBadArg {
		t.Fatalf("Encode with channel>7: err=%v, want ErrBadArg", err)
	}
}
