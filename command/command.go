// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package command encodes the three FIFO command languages the Rev-C
// bitstream understands -- DAC writes, ADC reads, and trigger control
// -- into the 32-bit words the hardware expects. Every encoder here is
// pure: it produces a []uint32 (or reports ErrBadArg) and never
// touches a FIFO itself; callers push the words through a mmio.Fifo.
package command // import "github.com/lincolncb/shimrunner/command"

import "errors"

// ErrBadArg is returned when a command field does not fit the width
// the hardware reserves for it. No words are emitted in this case.
var ErrBadArg = errors.New("command: argument out of range")

// Shared bit layout for the single/multi-word DAC and ADC command
// opcode words: a 4-bit opcode in the top nibble, three flag bits
// (trig, cont, ldac), one reserved bit, and a 24-bit payload that is either a cycle count or
// eight 3-bit channel-order slots (see packOrder).
const (
	opcodeShift = 28
	opcodeMask  = 0xF

	flagTrigShift = 27
	flagContShift = 26
	flagLdacShift = 25 // DAC_WR only; unused (zero) elsewhere

	payloadMask = 0x00FFFFFF // 24 bits
)

func packOpcodeWord(opcode uint8, trig, cont, ldac bool, payload uint32) (uint32, error) {
	if payload > payloadMask {
		return 0, ErrBadArg
	}
	w := uint32(opcode&opcodeMask) << opcodeShift
	if trig {
		w |= 1 << flagTrigShift
	}
	if cont {
		w |= 1 << flagContShift
	}
	if ldac {
		w |= 1 << flagLdacShift
	}
	w |= payload & payloadMask
	return w, nil
}

// packOrder packs eight 3-bit channel indices (0..7) into the 24-bit
// payload area, least-significant slot first.
func packOrder(order [8]uint8) (uint32, error) {
	var payload uint32
	for i, ch := range order {
		if ch > 7 {
			return 0, ErrBadArg
		}
		payload |= uint32(ch&0x7) << (3 * uint(i))
	}
	return payload, nil
}

func unpackOrder(payload uint32) [8]uint8 {
	var order [8]uint8
	for i := range order {
		order[i] = uint8((payload >> (3 * uint(i))) & 0x7)
	}
	return order
}
