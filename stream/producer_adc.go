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

// AdcProducer streams the matched ADC read-back command sequence to
// all four boards, in lock-step with a DacProducer driving the same
// setpoint rows.
type AdcProducer struct {
	Boards      [NumBoards]*mmio.Fifo
	Rows        []plan.SetpointRow
	Iterations  int
	RampSamples int
	RampCycles  uint32
	AdcCycles   uint32
	FinalZero   bool
	Stop        *StopFlag
}

// Run streams the full experiment's ADC command sequence. See
// DacProducer.Run for the stop/error contract.
func (p *AdcProducer) Run() error {
	for b := 0; b < NumBoards; b++ {
		cmd := command.AdcSetOrder{Channels: [8]uint8{0, 1, 2, 3, 4, 5, 6, 7}}
		words, err := cmd.Encode()
		if err != nil {
			return fmt.Errorf("stream: adc producer: board %d: SET_ORD: %w", b, err)
		}
		if err := p.Boards[b].Push(words...); err != nil {
			return fmt.Errorf("stream: adc producer: board %d: SET_ORD: %w", b, err)
		}
	}

	headroom := 3
	if p.RampSamples > 0 {
		headroom = p.RampSamples + 2
	}

	for iter := 0; iter < p.Iterations; iter++ {
		lastIter := iter == p.Iterations-1
		for rowIdx := range p.Rows {
			lastRow := rowIdx == len(p.Rows)-1
			for b := 0; b < NumBoards; b++ {
				fifo := p.Boards[b]
				if err := p.blockForHeadroom(fifo, headroom); err != nil {
					return err
				}
				if p.Stop.IsSet() {
					return nil
				}
				if err := p.emitRowSequence(fifo, b, lastIter && lastRow); err != nil {
					return err
				}
			}
		}
	}

	if p.FinalZero {
		for b := 0; b < NumBoards; b++ {
			if p.Stop.IsSet() {
				return nil
			}
			fifo := p.Boards[b]
			if err := p.blockForHeadroom(fifo, headroom); err != nil {
				return err
			}
			if p.Stop.IsSet() {
				return nil
			}
			if err := p.emitRowSequence(fifo, b, true); err != nil {
				return err
			}
		}
	}
	return nil
}

// emitRowSequence emits one row's worth of ADC commands for board b.
// last marks the very final sequence of the whole experiment, whose
// trailing command carries cont=false to let the pipeline drain to a
// stop.
func (p *AdcProducer) emitRowSequence(fifo *mmio.Fifo, b int, last bool) error {
	push := func(c command.ADC) error {
		words, err := c.Encode()
		if err != nil {
			return fmt.Errorf("stream: adc producer: board %d: %w", b, err)
		}
		return fifo.Push(words...)
	}

	if p.RampSamples == 0 {
		if err := push(command.AdcNoop{Trig: true, Cont: true, Count: 1}); err != nil {
			return err
		}
		if err := push(command.AdcNoop{Trig: false, Cont: true, Count: p.AdcCycles}); err != nil {
			return err
		}
		return push(command.AdcRead{Trig: true, Cont: !last, Count: 0})
	}

	if err := push(command.AdcRead{Trig: true, Cont: true, Count: 1}); err != nil {
		return err
	}
	// The bitstream's middle-sample count is one shy of RampSamples;
	// see the ramp-count discrepancy noted against the DAC producer's
	// R+1-step ramp (DESIGN.md).
	for s := 0; s < p.RampSamples-1; s++ {
		if err := push(command.AdcRead{Trig: false, Cont: true, Count: p.RampCycles}); err != nil {
			return err
		}
	}
	return push(command.AdcRead{Trig: false, Cont: !last, Count: p.RampCycles + p.AdcCycles})
}

func (p *AdcProducer) blockForHeadroom(fifo *mmio.Fifo, needed int) error {
	for {
		if p.Stop.IsSet() {
			return nil
		}
		st, err := fifo.Status()
		if err != nil {
			p.Stop.Set()
			return fmt.Errorf("stream: adc producer: %s: could not read status: %w", fifo.Name(), err)
		}
		if !st.Present {
			p.Stop.Set()
			return fmt.Errorf("stream: adc producer: %s: FIFO not present", fifo.Name())
		}
		available := int(fifo.Capacity()) - int(st.WordCount)
		if available >= needed {
			return nil
		}
		time.Sleep(headroomPollInterval)
	}
}
