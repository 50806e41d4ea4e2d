// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package regs holds the physical memory layout of the Rev-C-compatible
// shim instrument, as programmed into the AXI address map by the
// FPGA bitstream. Addresses are stable across binary releases; see
// the hardware design Tcl file for the authoritative source.
package regs // import "github.com/lincolncb/shimrunner/internal/regs"

// System control/status region: hardware state machine status and
// prestart configuration.
const (
	SysCtrlBase = 0x40000000
	SysCtrlSize = 5 * 4 // 5 32-bit words

	// Offsets within the prestart configuration region, in bytes.
	OffIntegratorThresholdAvg = 0 * 4
	OffIntegratorWindow       = 1 * 4
	OffIntegratorEnable       = 2 * 4
	OffBufferReset            = 3 * 4
	OffHardwareReset          = 4 * 4

	// StateRunning is the bit of the hardware-reset/status word that
	// reads back 1 once the bitstream has left reset and is ready to
	// accept command-FIFO traffic. It is an assumed mapping onto the
	// OffHardwareReset word; the map has no separate state register.
	StateRunning = 1 << 0
)

// SPI clock control region (SLCR-adjacent; clock-divider programming
// itself is an external collaborator, out of scope here).
const (
	SpiClkBase = 0x40200000
	SpiClkSize = 2048

	OffSpiClkReset  = 0x000
	OffSpiClkStatus = 0x004
	OffSpiClkCfg0   = 0x200
	OffSpiClkCfg1   = 0x208
	OffSpiClkPhase  = 0x20C
	OffSpiClkDuty   = 0x210
	OffSpiClkEnable = 0x25C
)

// Per-board FIFO base addresses. Board numbers are 1-based in the
// address formula (board 1 sits at the unshifted base) but 0-based
// everywhere else in this module; DacCmdFIFO and friends take the
// 0-based board index, which is board-1, and multiply it by the
// stride directly.
const (
	dacCmdBase  = 0x80000000
	adcCmdBase  = 0x80001000
	adcDataBase = 0x80002000

	boardStride = 0x10000

	TrigCmdFIFO  = 0x80100000
	TrigDataFIFO = 0x80101000

	// FifoWords is the capacity, in 32-bit words, of every command and
	// data FIFO in the design. A single constant is accurate for this
	// revision of the bitstream; it is not derived from a status read.
	FifoWords = 8192

	// Every command/data FIFO exposes the same two-register layout
	// within its page: a push/pop port at offset 0 and a status word
	// at offset 4.
	OffFifoPort   = 0x0
	OffFifoStatus = 0x4
)

// DacCmdFIFO returns the command-port address of board's DAC command
// FIFO. board is 0-based (0..3).
func DacCmdFIFO(board uint8) uint32 {
	return dacCmdBase + uint32(board)*boardStride
}

// AdcCmdFIFO returns the command-port address of board's ADC command
// FIFO. board is 0-based (0..3).
func AdcCmdFIFO(board uint8) uint32 {
	return adcCmdBase + uint32(board)*boardStride
}

// AdcDataFIFO returns the data-port address of board's ADC data FIFO.
// board is 0-based (0..3).
func AdcDataFIFO(board uint8) uint32 {
	return adcDataBase + uint32(board)*boardStride
}

// NumBoards is the number of analog boards the Rev-C bitstream wires
// up; the experiment runner requires all of them present.
const NumBoards = 4
