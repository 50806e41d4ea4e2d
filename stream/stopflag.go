// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package stream implements the producer/drain/monitor goroutines that
// stream an experiment's setpoints and read-backs through the FIFOs,
// and the ramp arithmetic they share.
package stream // import "github.com/lincolncb/shimrunner/stream"

import "sync/atomic"

// StopFlag is a cooperative cancellation flag shared by every producer
// and drain in an experiment: any one of them can set it, and every
// other one observes it within one poll interval. It exists alongside
// context.Context (which governs the outer run) because the upstream
// firmware distinguishes "one board failed" (set just that board's
// flag, which fans out to the rest) from "the caller cancelled"
// (context).
type StopFlag struct {
	v int32
}

// Set requests a stop. Safe to call more than once or concurrently.
func (f *StopFlag) Set() { atomic.StoreInt32(&f.v, 1) }

// IsSet reports whether Set has been called.
func (f *StopFlag) IsSet() bool { return atomic.LoadInt32(&f.v) != 0 }
