// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stream

import (
	"fmt"
	"time"

	"github.com/lincolncb/shimrunner/command"
	"github.com/lincolncb/shimrunner/mmio"
	"github.com/lincolncb/shimrunner/plan"
)

// headroomPollInterval is the sleep between block-poll checks on a
// command FIFO's available space.
const headroomPollInterval = 1 * time.Millisecond

// interRowYield is the pause a producer takes between setpoint rows,
// giving the drain workers and trigger monitor a scheduling turn.
const interRowYield = 100 * time.Microsecond

// NumBoards is the number of analog boards every experiment drives.
const NumBoards = 4

// DacProducer streams a setpoint file to all four boards' DAC command
// FIFOs, ramping between rows. One DacProducer runs per experiment,
// round-robining boards 0..3 inside a single goroutine.
type DacProducer struct {
	Boards      [NumBoards]*mmio.Fifo
	Rows        []plan.SetpointRow
	Iterations  int
	RampSamples int
	RampCycles  uint32
	FinalZero   bool
	Stop        *StopFlag
}

// Run streams the full experiment. It returns nil on a clean finish or
// a cooperative stop; it returns an error (after setting Stop, which
// fans out to sibling producers sharing the same flag) when a board's
// FIFO reports PRESENT=0.
func (p *DacProducer) Run() error {
	var prev [NumBoards][8]int16
	fracs := RampFractions(p.RampSamples)

	for iter := 0; iter < p.Iterations; iter++ {
		lastIter := iter == p.Iterations-1
		for rowIdx, row := range p.Rows {
			lastRow := rowIdx == len(p.Rows)-1
			for b := 0; b < NumBoards; b++ {
				if err := p.streamRow(b, row, &prev[b], fracs, lastIter, lastRow); err != nil {
					return err
				}
				if p.Stop.IsSet() {
					return nil
				}
			}
			time.Sleep(interRowYield)
		}
	}

	if p.FinalZero {
		for b := 0; b < NumBoards; b++ {
			if p.Stop.IsSet() {
				return nil
			}
			cmd := command.DacWrite{Board: uint8(b), Trig: true, Cont: false, Ldac: true, Count: 1}
			words, err := cmd.Encode()
			if err != nil {
				return fmt.Errorf("stream: dac producer: final zero board %d: %w", b, err)
			}
			if err := p.Boards[b].Push(words...); err != nil {
				return fmt.Errorf("stream: dac producer: final zero board %d: %w", b, err)
			}
		}
	}
	return nil
}

func (p *DacProducer) streamRow(b int, row plan.SetpointRow, prev *[8]int16, fracs []float64, lastIter, lastRow bool) error {
	fifo := p.Boards[b]
	needed := 5 * len(fracs)
	if err := p.blockForHeadroom(fifo, needed); err != nil {
		return err
	}
	if p.Stop.IsSet() {
		return nil
	}

	var target [8]int16
	ch := row.BoardChannels(uint8(b))
	for i, amps := range ch {
		target[i] = command.AmpsToDAC(amps)
	}

	for s, alpha := range fracs {
		var words [8]int16
		for c := range words {
			words[c] = RampValue(prev[c], target[c], alpha)
		}
		trig := s == 0
		cont := !(lastIter && lastRow && s == len(fracs)-1)
		count := p.RampCycles
		if trig {
			count = 1
		}
		cmd := command.DacWrite{
			Board:    uint8(b),
			Channels: words,
			Trig:     trig,
			Cont:     cont,
			Ldac:     true,
			Count:    count,
		}
		encoded, err := cmd.Encode()
		if err != nil {
			return fmt.Errorf("stream: dac producer: board %d: %w", b, err)
		}
		if err := fifo.Push(encoded...); err != nil {
			return fmt.Errorf("stream: dac producer: board %d: %w", b, err)
		}
	}
	*prev = target
	return nil
}

// blockForHeadroom polls fifo until it has room for at least needed
// more words, sleeping headroomPollInterval between checks. It fails
// (and sets Stop, fanning out to sibling producers) if the FIFO
// reports PRESENT=0.
func (p *DacProducer) blockForHeadroom(fifo *mmio.Fifo, needed int) error {
	for {
		if p.Stop.IsSet() {
			return nil
		}
		st, err := fifo.Status()
		if err != nil {
			p.Stop.Set()
			return fmt.Errorf("stream: dac producer: %s: could not read status: %w", fifo.Name(), err)
		}
		if !st.Present {
			p.Stop.Set()
			return fmt.Errorf("stream: dac producer: %s: FIFO not present", fifo.Name())
		}
		available := int(fifo.Capacity()) - int(st.WordCount)
		if available >= needed {
			return nil
		}
		time.Sleep(headroomPollInterval)
	}
}
