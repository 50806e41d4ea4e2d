// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stream

import (
	"os"
	"strings"
	"testing"

	"github.com/lincolncb/shimrunner/mmio"
)

func TestDrainASCII(t *testing.T) {
	path := t.TempDir() + "/out.txt"
	fake := mmio.NewFake("adc0", 8)
	fifo := mmio.NewFifo(fake, "adc0", 0, 4, 8192)
	fake.Set(0, 111)
	fake.Set(4, 1<<27|1) // Present, WordCount=1

	d := &Drain{Fifo: fifo, Samples: 1, Mode: OutputASCII, OutputPath: path, Stop: &StopFlag{}}
	stats, err := d.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.WordsRead != 1 {
		t.Fatalf("WordsRead = %d, want 1", stats.WordsRead)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if strings.TrimSpace(string(data)) != "111" {
		t.Fatalf("output = %q, want \"111\"", string(data))
	}
}

func TestDrainStopsEarly(t *testing.T) {
	path := t.TempDir() + "/out.txt"
	fake := mmio.NewFake("adc0", 8)
	fifo := mmio.NewFifo(fake, "adc0", 0, 4, 8192)
	fake.Set(4, 1<<30) // Empty

	stop := &StopFlag{}
	stop.Set()
	d := &Drain{Fifo: fifo, Samples: 100, Mode: OutputASCII, OutputPath: path, Stop: stop}
	stats, err := d.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !stats.StoppedEarly {
		t.Fatal("expected StoppedEarly")
	}
}

func TestDrainNotPresentErrors(t *testing.T) {
	path := t.TempDir() + "/out.txt"
	fake := mmio.NewFake("adc0", 8)
	fifo := mmio.NewFifo(fake, "adc0", 0, 4, 8192)
	fake.Set(4, 0) // Present=0

	d := &Drain{Fifo: fifo, Samples: 1, Mode: OutputASCII, OutputPath: path, Stop: &StopFlag{}}
	if _, err := d.Run(); err == nil {
		t.Fatal("expected error when FIFO not present")
	}
}
