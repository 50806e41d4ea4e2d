// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stream

import (
	"sync"

	"github.com/lincolncb/shimrunner/mmio"
)

// countingWordIO is a WordIO double that reports an empty FIFO (so
// headroom checks never block), present unless setPresent(false) was
// called, and counts how many words were pushed to its port offset
// instead of storing them.
type countingWordIO struct {
	mu       sync.Mutex
	pushed   int
	present  bool
	wordCount uint32
}

func newCountingFifo(name string) (*mmio.Fifo, *countingWordIO) {
	w := &countingWordIO{present: true}
	return mmio.NewFifo(w, name, 0, 4, 8192), w
}

func (w *countingWordIO) ReadWord(offset uint32) (uint32, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if offset == 4 {
		var raw uint32
		if w.present {
			raw |= 1 << 27
		}
		raw |= w.wordCount
		return raw, nil
	}
	return 0, nil
}

func (w *countingWordIO) WriteWord(offset uint32, v uint32) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if offset == 0 {
		w.pushed++
	}
	return nil
}

func (w *countingWordIO) Pushed() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pushed
}

func (w *countingWordIO) setPresent(present bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.present = present
}
