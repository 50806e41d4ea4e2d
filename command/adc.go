// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package command

// ADC command opcodes, top nibble of the command word.
const (
	OpAdcRead  uint8 = 0x1
	OpAdcNoop  uint8 = 0x2
	OpAdcOrder uint8 = 0x3
)

// AdcRead triggers one acquisition cycle; Count is the number of SPI
// clock cycles (trigger edges, when Trig is set) the board waits
// before sampling. Extra is an opaque per-command tag some firmware
// revisions use to correlate read-backs with the command that asked
// for them; Rev-C does not interpret it.
type AdcRead struct {
	Trig  bool
	Cont  bool
	Count uint32
	Extra uint8
}

func (c AdcRead) Encode() ([]uint32, error) {
	w, err := packOpcodeWord(OpAdcRead, c.Trig, c.Cont, false, c.Count)
	if err != nil {
		return nil, ErrBadArg
	}
	return []uint32{w}, nil
}

// AdcNoop parks the ADC command stream without sampling; used as a
// buffer stopper and as the fixed inter-row delay when no ramp is
// requested.
type AdcNoop struct {
	Trig  bool
	Cont  bool
	Count uint32
}

func (c AdcNoop) Encode() ([]uint32, error) {
	w, err := packOpcodeWord(OpAdcNoop, c.Trig, c.Cont, false, c.Count)
	if err != nil {
		return nil, ErrBadArg
	}
	return []uint32{w}, nil
}

// AdcSetOrder sets the channel read-back order; Channels holds a
// permutation of 0..7.
type AdcSetOrder struct {
	Channels [8]uint8
}

func (c AdcSetOrder) Encode() ([]uint32, error) {
	payload, err := packOrder(c.Channels)
	if err != nil {
		return nil, ErrBadArg
	}
	w := uint32(OpAdcOrder&opcodeMask) << opcodeShift
	w |= payload
	return []uint32{w}, nil
}

// ADC is implemented by every ADC command variant.
type ADC interface {
	Encode() ([]uint32, error)
}

var (
	_ ADC = AdcRead{}
	_ ADC = AdcNoop{}
	_ ADC = AdcSetOrder{}
)
