// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mmio maps physical memory windows and performs word-granular
// volatile reads and writes across them. It is the only layer in this
// module allowed to touch /dev/mem directly; every higher layer talks
// to a WordIO (a Window or a Fake) or a Fifo, never to a raw pointer.
package mmio // import "github.com/lincolncb/shimrunner/mmio"

import (
	"encoding/binary"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/lincolncb/shimrunner/internal/mmap"
)

// WordIO is the minimal read/write contract a Fifo needs.
// Window implements it against /dev/mem; Fake implements it against a
// plain slice of words for tests and for driving this module without a
// board attached.
type WordIO interface {
	ReadWord(offset uint32) (uint32, error)
	WriteWord(offset uint32, v uint32) error
}

// Window is a contiguous range of physical memory, mapped once and
// accessed only through 32-bit word-aligned loads and stores. A Window
// must not be mapped twice over the same physical range; its lifetime
// is the life of the process that mapped it.
type Window struct {
	name string
	base uint32
	size uint32

	fd *os.File
	h  *mmap.Handle
}

// Map maps size bytes of physical memory starting at base, using
// /dev/mem as the backing file. name is used only for error messages
// and verbose logging.
func Map(base, size uint32, name string, verbose bool) (*Window, error) {
	fd, err := os.OpenFile("/dev/mem", os.O_RDWR|os.O_SYNC, 0666)
	if err != nil {
		return nil, fmt.Errorf("mmio: could not open /dev/mem for %q: %w", name, err)
	}
	defer func() {
		if err != nil {
			_ = fd.Close()
		}
	}()

	data, err := unix.Mmap(
		int(fd.Fd()), int64(base), int(size),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED,
	)
	if err != nil {
		return nil, fmt.Errorf("mmio: could not mmap %q at 0x%x (%d bytes): %w", name, base, size, err)
	}

	w := &Window{name: name, base: base, size: size, fd: fd, h: mmap.HandleFrom(data)}
	if verbose {
		fmt.Printf("mmio: mapped %q at 0x%08x (%d bytes)\n", name, base, size)
	}
	return w, nil
}

// Close unmaps the window and closes the underlying /dev/mem handle.
// The mapping is also released by a finalizer on the underlying
// mmap.Handle if Close is never called, but callers should not rely
// on that for a timely unmap.
func (w *Window) Close() error {
	if w == nil || w.h == nil {
		return nil
	}
	h := w.h
	w.h = nil
	if err := h.Close(); err != nil {
		return fmt.Errorf("mmio: could not munmap %q: %w", w.name, err)
	}
	if w.fd != nil {
		return w.fd.Close()
	}
	return nil
}

// ReadWord reads the little-endian 32-bit word at the given byte
// offset within the window by copying 4 bytes out of the mapping
// through mmap.Handle.ReadAt. The copy is not an atomic 32-bit load;
// the width of the resulting bus access is left to the copy routine.
func (w *Window) ReadWord(offset uint32) (uint32, error) {
	if w.h == nil {
		return 0, fmt.Errorf("mmio: %q: read after close", w.name)
	}
	var buf [4]byte
	if _, err := w.h.ReadAt(buf[:], int64(offset)); err != nil {
		return 0, fmt.Errorf("mmio: %q: read offset 0x%x out of range (size=%d): %w", w.name, offset, w.h.Len(), err)
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// WriteWord stores v as a little-endian 32-bit word at the given byte
// offset within the window by copying 4 bytes into the mapping
// through mmap.Handle.WriteAt. The copy is not an atomic 32-bit store;
// the width of the resulting bus access is left to the copy routine.
func (w *Window) WriteWord(offset uint32, v uint32) error {
	if w.h == nil {
		return fmt.Errorf("mmio: %q: write after close", w.name)
	}
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	if _, err := w.h.WriteAt(buf[:], int64(offset)); err != nil {
		return fmt.Errorf("mmio: %q: write offset 0x%x out of range (size=%d): %w", w.name, offset, w.h.Len(), err)
	}
	return nil
}

// Name reports the label the window was mapped with.
func (w *Window) Name() string { return w.name }

var _ WordIO = (*Window)(nil)
