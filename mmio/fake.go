// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mmio

import (
	"fmt"
	"sync"
)

// Fake is an in-memory WordIO used by tests (and by code that wants to
// exercise the codec/status/stream layers without a board attached).
// It is safe for concurrent use, matching the real contention pattern
// of a command FIFO fed by one producer and observed by one drain.
type Fake struct {
	mu   sync.Mutex
	name string
	data []uint32
}

// NewFake returns a Fake word store of the given capacity in words.
func NewFake(name string, words uint32) *Fake {
	return &Fake{name: name, data: make([]uint32, words)}
}

func (f *Fake) ReadWord(offset uint32) (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := offset / 4
	if int(i) >= len(f.data) {
		return 0, fmt.Errorf("mmio: fake %q: read offset 0x%x out of range", f.name, offset)
	}
	return f.data[i], nil
}

func (f *Fake) WriteWord(offset uint32, v uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := offset / 4
	if int(i) >= len(f.data) {
		return fmt.Errorf("mmio: fake %q: write offset 0x%x out of range", f.name, offset)
	}
	f.data[i] = v
	return nil
}

// Set directly pokes a word, for seeding fixture state. Unlike
// WriteWord it returns no error: an out-of-range offset panics.
func (f *Fake) Set(offset uint32, v uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[offset/4] = v
}

// Get directly peeks a word for assertions in tests.
func (f *Fake) Get(offset uint32) uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data[offset/4]
}

var _ WordIO = (*Fake)(nil)
