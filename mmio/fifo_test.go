// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mmio

import "testing"

func TestFifoPushPop(t *testing.T) {
	fake := NewFake("test", 4)
	f := NewFifo(fake, "test", 0, 4, 8192)

	if err := f.Push(0xdeadbeef); err != nil {
		t.Fatalf("Push: %v", err)
	}
	// port and status share the same underlying word store in this
	// fake, at offsets 0 and 4 respectively; a push followed by a pop
	// on offset 0 should read back the same word.
	got, err := f.Pop()
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if got != 0xdeadbeef {
		t.Fatalf("Pop = %#x, want %#x", got, 0xdeadbeef)
	}
}

func TestFifoStatus(t *testing.T) {
	fake := NewFake("test", 4)
	f := NewFifo(fake, "test", 0, 4, 8192)

	fake.Set(4, 1<<27|100) // Present, WordCount=100
	st, err := f.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !st.Present || st.WordCount != 100 {
		t.Fatalf("Status = %+v, want Present with count 100", st)
	}
}

func TestFifoCapacity(t *testing.T) {
	f := NewFifo(NewFake("test", 4), "test", 0, 4, 8192)
	if got := f.Capacity(); got != 8192 {
		t.Fatalf("Capacity() = %d, want 8192", got)
	}
}
