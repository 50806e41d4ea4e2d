// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package command

import "math"

const (
	// AmpsFullScale is the largest magnitude, in amperes, a setpoint row
	// may carry; it maps onto the largest-magnitude signed DAC code.
	AmpsFullScale = 5.0
	// DACFullScale is the signed 16-bit code corresponding to
	// +AmpsFullScale. The codec saturates at ±DACFullScale rather than
	// using the full int16 range, matching the Rev-C firmware.
	DACFullScale = 32767
)

// AmpsToDAC converts a current in amperes to a signed DAC code, linear
// over [-5.0, +5.0] with -5.0 -> -32767, 0 -> 0, +5.0 -> +32767, and
// saturating outside that range.
func AmpsToDAC(amps float64) int16 {
	v := math.Round(amps / AmpsFullScale * DACFullScale)
	switch {
	case v >= DACFullScale:
		return DACFullScale
	case v <= -DACFullScale:
		return -DACFullScale
	default:
		return int16(v)
	}
}

// DACToAmps is the inverse mapping of AmpsToDAC.
func DACToAmps(v int16) float64 {
	return float64(v) / DACFullScale * AmpsFullScale
}

// offsetBinary converts a signed DAC code to the unsigned
// offset-binary representation the DAC front end's shift register
// expects (0x8000 is code zero).
func offsetBinary(v int16) uint16 {
	return uint16(int32(v) + 0x8000)
}
