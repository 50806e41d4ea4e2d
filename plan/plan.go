// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package plan parses and validates setpoint files and experiment
// plans: the user-facing inputs to a shimming run, before any of it
// is turned into FIFO command words.
package plan // import "github.com/lincolncb/shimrunner/plan"

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ChannelsPerRow is the number of DAC channels a setpoint row must
// supply: 8 channels on each of the 4 boards.
const ChannelsPerRow = 32

// AmpsMin and AmpsMax bound every value a setpoint file may contain.
const (
	AmpsMin = -5.0
	AmpsMax = 5.0
)

// SetpointRow is one line of a parsed setpoint file: a target current,
// in amperes, for each of the 32 channels across all 4 boards.
type SetpointRow [ChannelsPerRow]float64

// LoadSetpoints reads and validates a setpoint file: comment lines
// (leading '#') and blank lines are skipped; every other line must
// hold exactly ChannelsPerRow whitespace-separated decimals, each in
// [AmpsMin, AmpsMax]. It reports the error location by line number and
// fails the whole file on the first bad line, matching the upstream
// Rev-C loader's all-or-nothing validation.
func LoadSetpoints(r io.Reader) ([]SetpointRow, error) {
	var rows []SetpointRow
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	lineNum := 0
	for sc.Scan() {
		lineNum++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != ChannelsPerRow {
			return nil, fmt.Errorf("plan: line %d: expected %d values, got %d", lineNum, ChannelsPerRow, len(fields))
		}
		var row SetpointRow
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("plan: line %d, value %d: %q is not a number", lineNum, i+1, f)
			}
			if v < AmpsMin || v > AmpsMax {
				return nil, fmt.Errorf("plan: line %d, value %d: %.3f out of range [%.1f, %.1f]", lineNum, i+1, v, AmpsMin, AmpsMax)
			}
			row[i] = v
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("plan: could not read setpoint file: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("plan: setpoint file contains no valid data lines")
	}
	return rows, nil
}

// LoadSetpointsFile opens path and parses it with LoadSetpoints.
func LoadSetpointsFile(path string) ([]SetpointRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("plan: could not open setpoint file %q: %w", path, err)
	}
	defer f.Close()
	return LoadSetpoints(f)
}

// BoardChannels splits a full 32-channel row into the 4 per-board
// 8-channel groups the DAC codec expects, board-major order (board 0
// gets channels 0..7, board 1 gets 8..15, and so on).
func (r SetpointRow) BoardChannels(board uint8) [8]float64 {
	var out [8]float64
	copy(out[:], r[int(board)*8:int(board)*8+8])
	return out
}

// TriggerCountLimit is 2^28, the number of distinct values of the
// trigger subsystem's 28-bit EXPECT_EXT field (which itself carries at
// most TriggerCountLimit-1). Resolve accepts iterations*lines up to
// and including this value.
const TriggerCountLimit = 1 << 28

// Experiment is the fully-resolved set of parameters an
// ExperimentRunner needs to drive one shimming run. Millisecond fields
// are what a user supplies; the Cycles fields are derived from them
// once SPIFrequencyMHz is known (see Experiment.Resolve).
type Experiment struct {
	Iterations     int     // I >= 1
	RampSamples    int     // R >= 0
	RampTimeMS     float64 // per-sample ramp time; >= 0.02*R when R>0
	AdcDelayMS     float64 // >= 0
	LockoutMS      float64 // > 0
	SPIFrequencyMHz float64 // > 0
	FinalZero      bool
	OutputBasePath string
	ChannelBias    *[ChannelsPerRow]float64 // optional per-channel ADC bias
	Force          bool                     // skip the preload-timeout prompt

	// Resolved cycle counts, set by Resolve.
	RampCycles   uint32
	AdcCycles    uint32
	LockoutCycles uint32
}

// cyclesFromMS converts a millisecond duration to an SPI-clock cycle
// count at the plan's SPI frequency, matching the firmware's own
// round(ms * MHz * 1000) conversion.
func cyclesFromMS(ms, mhz float64) uint32 {
	return uint32(ms*mhz*1000 + 0.5)
}

// Resolve validates the experiment's invariants and fills in the
// derived cycle-count fields. lines is the number of valid setpoint
// rows the experiment will stream.
func (e *Experiment) Resolve(lines int) error {
	if e.Iterations < 1 {
		return fmt.Errorf("plan: iterations must be >= 1, got %d", e.Iterations)
	}
	if e.RampSamples < 0 {
		return fmt.Errorf("plan: ramp samples must be >= 0, got %d", e.RampSamples)
	}
	if e.SPIFrequencyMHz <= 0 {
		return fmt.Errorf("plan: SPI frequency must be > 0, got %v", e.SPIFrequencyMHz)
	}
	if e.RampSamples > 0 && e.RampTimeMS < 0.02*float64(e.RampSamples) {
		return fmt.Errorf("plan: ramp time %v ms too short for %d ramp samples (need >= %v ms)",
			e.RampTimeMS, e.RampSamples, 0.02*float64(e.RampSamples))
	}
	if e.AdcDelayMS < 0 {
		return fmt.Errorf("plan: ADC delay must be >= 0, got %v", e.AdcDelayMS)
	}
	if e.LockoutMS <= 0 {
		return fmt.Errorf("plan: trigger lockout must be > 0, got %v", e.LockoutMS)
	}
	if e.OutputBasePath == "" {
		return fmt.Errorf("plan: output base path must not be empty")
	}
	if total := e.Iterations * lines; total > TriggerCountLimit {
		return fmt.Errorf("plan: iterations*lines = %d exceeds trigger-count field limit %d", total, TriggerCountLimit)
	}

	e.RampCycles = cyclesFromMS(e.RampTimeMS, e.SPIFrequencyMHz)
	e.AdcCycles = cyclesFromMS(e.AdcDelayMS, e.SPIFrequencyMHz)
	e.LockoutCycles = cyclesFromMS(e.LockoutMS, e.SPIFrequencyMHz)
	if e.LockoutCycles == 0 {
		return fmt.Errorf("plan: resolved lockout cycle count is 0")
	}
	return nil
}

// ExpectedTriggers is the trigger count the TriggerMonitor and the
// EXPECT_EXT command should be armed with. When FinalZero is set, the
// producers emit one extra trigger-bearing command after the last
// iteration (the final-zero row), so the count is one higher than
// Iterations*lines.
func (e *Experiment) ExpectedTriggers(lines int) uint32 {
	total := e.Iterations * lines
	if e.FinalZero {
		total++
	}
	return uint32(total)
}

// AdcSamplesPerBoard is the number of ADC data words each board's data
// FIFO will carry over the whole experiment: the AdcProducer emits one
// ADC_RD per ramp step (RampSamples+1 of them, including the R=0
// case), once per row per iteration, plus one more full row's worth
// when FinalZero repeats the final-row sequence.
func (e *Experiment) AdcSamplesPerBoard(lines int) uint32 {
	rows := e.Iterations * lines
	if e.FinalZero {
		rows++
	}
	return uint32(rows * (e.RampSamples + 1))
}
