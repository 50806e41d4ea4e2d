// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stream

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestTriggerMonitorFinishesOnExpectedCount(t *testing.T) {
	var observed uint32
	m := &TriggerMonitor{Expected: 5, Observed: &observed, Stop: &StopFlag{}}

	done := make(chan struct{})
	go func() {
		m.Run(context.Background())
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	if !m.IsActive() {
		t.Fatal("monitor should be active while below target")
	}
	atomic.StoreUint32(&observed, 5)

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("monitor did not finish after reaching expected count")
	}
	if m.IsActive() {
		t.Fatal("monitor should be inactive after finishing")
	}
}

func TestTriggerMonitorStopsOnFlag(t *testing.T) {
	var observed uint32
	stop := &StopFlag{}
	m := &TriggerMonitor{Expected: 1000, Observed: &observed, Stop: stop}

	done := make(chan struct{})
	go func() {
		m.Run(context.Background())
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	stop.Set()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("monitor did not stop after Stop.Set()")
	}
}

func TestTriggerMonitorStopsOnContextCancel(t *testing.T) {
	var observed uint32
	m := &TriggerMonitor{Expected: 1000, Observed: &observed, Stop: &StopFlag{}}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("monitor did not stop after context cancellation")
	}
}
