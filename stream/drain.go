// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stream

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/lincolncb/shimrunner/mmio"
)

// OutputMode selects how a Drain serializes the words it reads back.
type OutputMode int

const (
	// OutputASCII writes one sample per line, its words in decimal
	// separated by a space.
	OutputASCII OutputMode = iota
	// OutputBinary writes fixed-width little-endian words.
	OutputBinary
)

// samplePollInterval is how often a Drain re-checks FIFO status when
// it does not yet have enough words to satisfy its next read.
const samplePollInterval = 1 * time.Millisecond

// DrainStats summarizes one Drain run for the experiment result
// summary.
type DrainStats struct {
	WordsRead int
	Overruns  int
	StoppedEarly bool
}

// Drain reads exactly N words (or N pairs, when WordsPerSample is 2,
// for the 64-bit trigger data stream) from a data FIFO and appends
// them to an output file, pacing itself against FIFO availability.
type Drain struct {
	Fifo           *mmio.Fifo
	Samples        int
	WordsPerSample int // 1 for ADC data, 2 for trigger data
	Mode           OutputMode
	OutputPath     string
	Stop           *StopFlag
}

// Run executes the drain to completion, to early stop, or to a FIFO
// that reports PRESENT=0 (hardware gone away, which is treated as
// permanent and unrecoverable for the current experiment).
func (d *Drain) Run() (DrainStats, error) {
	if d.WordsPerSample == 0 {
		d.WordsPerSample = 1
	}
	f, err := os.Create(d.OutputPath)
	if err != nil {
		return DrainStats{}, fmt.Errorf("stream: drain: could not create %q: %w", d.OutputPath, err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	defer w.Flush()

	var stats DrainStats
	for stats.WordsRead/d.WordsPerSample < d.Samples {
		if d.Stop != nil && d.Stop.IsSet() {
			stats.StoppedEarly = true
			break
		}

		st, err := d.Fifo.Status()
		if err != nil {
			return stats, fmt.Errorf("stream: drain %s: could not read status: %w", d.Fifo.Name(), err)
		}
		if !st.Present {
			return stats, fmt.Errorf("stream: drain %s: FIFO not present", d.Fifo.Name())
		}
		if st.Full {
			stats.Overruns++
		}
		if st.WordCount < uint32(d.WordsPerSample) {
			time.Sleep(samplePollInterval)
			continue
		}

		words := make([]uint32, d.WordsPerSample)
		for i := range words {
			v, err := d.Fifo.Pop()
			if err != nil {
				return stats, fmt.Errorf("stream: drain %s: could not pop word: %w", d.Fifo.Name(), err)
			}
			words[i] = v
		}
		if err := writeSample(w, d.Mode, words); err != nil {
			return stats, fmt.Errorf("stream: drain %s: could not write sample: %w", d.Fifo.Name(), err)
		}
		stats.WordsRead += d.WordsPerSample
	}
	if err := w.Flush(); err != nil {
		return stats, fmt.Errorf("stream: drain %s: could not flush %q: %w", d.Fifo.Name(), d.OutputPath, err)
	}
	return stats, nil
}

func writeSample(w *bufio.Writer, mode OutputMode, words []uint32) error {
	switch mode {
	case OutputBinary:
		for _, v := range words {
			var buf [4]byte
			buf[0] = byte(v)
			buf[1] = byte(v >> 8)
			buf[2] = byte(v >> 16)
			buf[3] = byte(v >> 24)
			if _, err := w.Write(buf[:]); err != nil {
				return err
			}
		}
		return nil
	default: // OutputASCII
		for i, v := range words {
			sep := " "
			if i == len(words)-1 {
				sep = "\n"
			}
			if _, err := fmt.Fprintf(w, "%d%s", v, sep); err != nil {
				return err
			}
		}
		return nil
	}
}
