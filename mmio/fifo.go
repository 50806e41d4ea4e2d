// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mmio

import (
	"fmt"

	"github.com/lincolncb/shimrunner/status"
)

// Fifo is a command or data FIFO: a push/pop port paired with a status
// register, both within the same mapped WordIO. Command FIFOs are
// pushed to (Push); data FIFOs are popped from (Pop). Neither
// direction is prevented by this type -- the caller decides which
// operations a given FIFO's role allows.
type Fifo struct {
	io       WordIO
	port     uint32
	statusOff uint32
	capacity uint32
	name     string
}

// NewFifo wraps io as a FIFO with capacity words, whose push/pop port
// sits at portOffset and whose status register sits at statusOffset.
func NewFifo(io WordIO, name string, portOffset, statusOffset, capacity uint32) *Fifo {
	return &Fifo{io: io, port: portOffset, statusOff: statusOffset, capacity: capacity, name: name}
}

// Status reads and decodes the FIFO's status register.
func (f *Fifo) Status() (status.Word, error) {
	raw, err := f.io.ReadWord(f.statusOff)
	if err != nil {
		return status.Word{}, fmt.Errorf("mmio: %s: could not read status: %w", f.name, err)
	}
	return status.Decode(raw, f.capacity), nil
}

// Capacity reports the FIFO's depth in words.
func (f *Fifo) Capacity() uint32 { return f.capacity }

// Push writes words, one at a time, into the FIFO's command port. It
// does not check headroom itself; callers that care about overflow
// should consult Status first (see the stream producers'
// blockForHeadroom).
func (f *Fifo) Push(words ...uint32) error {
	for i, w := range words {
		if err := f.io.WriteWord(f.port, w); err != nil {
			return fmt.Errorf("mmio: %s: could not push word %d/%d: %w", f.name, i+1, len(words), err)
		}
	}
	return nil
}

// Pop reads a single word from the FIFO's data port.
func (f *Fifo) Pop() (uint32, error) {
	v, err := f.io.ReadWord(f.port)
	if err != nil {
		return 0, fmt.Errorf("mmio: %s: could not pop word: %w", f.name, err)
	}
	return v, nil
}

// Name reports the label the FIFO was constructed with.
func (f *Fifo) Name() string { return f.name }
