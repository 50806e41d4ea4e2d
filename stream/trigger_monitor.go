// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stream

import (
	"context"
	"sync/atomic"
	"time"
)

// triggerPollInterval is how often the monitor re-checks the observed
// trigger count against its target.
const triggerPollInterval = 1 * time.Millisecond

// TriggerMonitor watches the trigger data stream's progress against an
// expected sample count and exposes whether the experiment's trigger
// phase is still active. It does not itself enforce lockout or edge
// counting -- the hardware does that -- it only reports on it, so the
// ExperimentRunner and any CLI front end can tell a normal finish from
// a stall.
type TriggerMonitor struct {
	// Expected is the total number of trigger samples the experiment
	// should see (plan.Experiment.ExpectedTriggers).
	Expected uint32
	// Observed is read with atomic.LoadUint32 on every poll; the
	// caller stores the observed trigger count into it (the runner
	// does so once, when the trigger Drain returns).
	Observed *uint32
	Stop     *StopFlag

	active int32
}

// IsActive reports whether Run is currently polling.
func (m *TriggerMonitor) IsActive() bool {
	return atomic.LoadInt32(&m.active) != 0
}

// Run blocks until the observed count reaches Expected, the stop flag
// is set, or ctx is cancelled, then clears the active flag and
// returns.
func (m *TriggerMonitor) Run(ctx context.Context) {
	atomic.StoreInt32(&m.active, 1)
	defer atomic.StoreInt32(&m.active, 0)

	ticker := time.NewTicker(triggerPollInterval)
	defer ticker.Stop()
	for {
		if atomic.LoadUint32(m.Observed) >= m.Expected {
			return
		}
		if m.Stop != nil && m.Stop.IsSet() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
