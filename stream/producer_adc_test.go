// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stream

import (
	"testing"

	"github.com/lincolncb/shimrunner/plan"
)

func TestAdcProducerWordCountsNoRamp(t *testing.T) {
	fifos, wires := newProducerBoards(t)
	rows := []plan.SetpointRow{{}, {}}

	p := &AdcProducer{
		Boards:      fifos,
		Rows:        rows,
		Iterations:  1,
		RampSamples: 0,
		AdcCycles:   10,
		Stop:        &StopFlag{},
	}
	if err := p.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// 1 SET_ORD word + rows(2) * 3 NOOP/RD words = 7
	for b, w := range wires {
		if got := w.Pushed(); got != 7 {
			t.Errorf("board %d: pushed %d words, want 7", b, got)
		}
	}
}

func TestAdcProducerWordCountsWithRamp(t *testing.T) {
	fifos, wires := newProducerBoards(t)
	rows := []plan.SetpointRow{{}}

	p := &AdcProducer{
		Boards:      fifos,
		Rows:        rows,
		Iterations:  1,
		RampSamples: 4,
		RampCycles:  5,
		AdcCycles:   10,
		Stop:        &StopFlag{},
	}
	if err := p.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// 1 SET_ORD + (1 first + (R-1=3) middle + 1 final) = 1 + 5 = 6
	for b, w := range wires {
		if got := w.Pushed(); got != 6 {
			t.Errorf("board %d: pushed %d words, want 6", b, got)
		}
	}
}

func TestAdcProducerStopsOnNotPresent(t *testing.T) {
	fifos, wires := newProducerBoards(t)
	wires[2].setPresent(false)
	rows := []plan.SetpointRow{{}, {}}

	stop := &StopFlag{}
	p := &AdcProducer{Boards: fifos, Rows: rows, Iterations: 1, Stop: stop}
	if err := p.Run(); err == nil {
		t.Fatal("expected error when board 2 reports not present")
	}
	if !stop.IsSet() {
		t.Fatal("expected shared stop flag to be set")
	}
}
