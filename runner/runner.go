// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package runner implements the top-level orchestration of one
// shimming experiment: validating inputs, provisioning drains and
// producers, and releasing the synchronous trigger sequence that
// starts the hardware moving.
package runner // import "github.com/lincolncb/shimrunner/runner"

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lincolncb/shimrunner/command"
	"github.com/lincolncb/shimrunner/internal/regs"
	"github.com/lincolncb/shimrunner/mmio"
	"github.com/lincolncb/shimrunner/plan"
	"github.com/lincolncb/shimrunner/stream"
)

// Error kinds from spec §7: BadInput aborts before any thread starts;
// HwNotReady aborts (pre-start) or sets stop flags (mid-run);
// HwOverrun is recorded but non-fatal; Timeout governs the preload
// prompt; InternalCodec is a bug class and always aborts.
var (
	ErrBadInput     = errors.New("runner: bad input")
	ErrHwNotReady   = errors.New("runner: hardware not ready")
	ErrHwOverrun    = errors.New("runner: FIFO overrun")
	ErrTimeout      = errors.New("runner: preload timeout")
	ErrInternalCodec = errors.New("runner: internal codec error")
)

// preloadMinWords is the command-FIFO depth every board's DAC and ADC
// command FIFO must reach before the sync trigger is safe to fire.
const preloadMinWords = 10

// bufferResetSettle is how long the runner waits after issuing a
// global buffer reset before trusting FIFO status reads.
const bufferResetSettle = 10 * time.Millisecond

// Prompter resolves the human-in-the-loop decision the spec calls for
// when the preload wait times out: continue anyway, or abort.
type Prompter interface {
	ConfirmContinueAfterPreloadTimeout() (bool, error)
}

// AutoPrompter always answers yes, for --force or for tests.
type AutoPrompter struct{}

// ConfirmContinueAfterPreloadTimeout implements Prompter.
func (AutoPrompter) ConfirmContinueAfterPreloadTimeout() (bool, error) { return true, nil }

// Hardware bundles every mapped window and FIFO an experiment touches.
// SysCtrl is a mmio.WordIO rather than a concrete *mmio.Window so
// tests can substitute a mmio.Fake.
type Hardware struct {
	SysCtrl mmio.WordIO

	DacCmd  [stream.NumBoards]*mmio.Fifo
	AdcCmd  [stream.NumBoards]*mmio.Fifo
	AdcData [stream.NumBoards]*mmio.Fifo

	TrigCmd  *mmio.Fifo
	TrigData *mmio.Fifo
}

// Result summarizes a finished (or aborted) experiment for the
// caller and for the run ledger.
type Result struct {
	ExpectedTriggers uint32
	DrainStats       [stream.NumBoards]stream.DrainStats
	TrigDrainStats   stream.DrainStats
	Overruns         int

	// Boards is the pre-run connectivity summary: one entry per board,
	// reporting whether its DAC command, ADC command, and ADC data
	// FIFOs all answered PRESENT=1. It is populated even when Run
	// aborts on a missing board, so a caller can print which boards
	// were seen before the abort.
	Boards [stream.NumBoards]BoardStatus
}

// BoardStatus is one board's connectivity result from the pre-run
// presence check.
type BoardStatus struct {
	Board   int
	Present bool
}

// Runner owns the hardware handles and orchestrates one experiment at
// a time; it is not safe to call Run concurrently on the same Runner.
type Runner struct {
	HW       Hardware
	Prompt   Prompter
	Force    bool
	NoReset  bool
	Verbose  bool
	Msg      *log.Logger

	// OutputMode controls how drains write ADC/trigger samples to
	// disk; the zero value is stream.OutputASCII.
	OutputMode stream.OutputMode

	// PreloadTimeout overrides how long waitForPreload waits before
	// consulting Prompt; zero means the default 5s from spec §4.7.
	PreloadTimeout time.Duration
}

// New builds a Runner with sensible defaults. Prompt is an
// AutoPrompter, so a preload timeout continues without asking unless
// the caller installs an interactive Prompter.
func New(hw Hardware) *Runner {
	return &Runner{HW: hw, Prompt: AutoPrompter{}, Msg: log.New(os.Stdout, "runner: ", 0)}
}

// Run validates setpointPath and exp, then drives the experiment to
// completion or to an early, cooperative stop. It blocks until every
// drain, producer, and monitor has exited.
func (r *Runner) Run(ctx context.Context, setpointPath string, exp plan.Experiment) (Result, error) {
	if err := r.checkHardwareRunning(); err != nil {
		return Result{}, err
	}
	r.logf("hardware state: RUNNING")

	if !r.NoReset {
		if err := r.resetBuffers(); err != nil {
			return Result{}, err
		}
		time.Sleep(bufferResetSettle)
		r.logf("buffer reset: done")
	}

	boards, err := r.checkAllPresent()
	if err != nil {
		return Result{Boards: boards}, err
	}

	rows, err := plan.LoadSetpointsFile(setpointPath)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrBadInput, err)
	}
	r.logf("setpoint file %q: %d valid rows", setpointPath, len(rows))

	if err := exp.Resolve(len(rows)); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrBadInput, err)
	}
	expected := exp.ExpectedTriggers(len(rows))
	adcSamples := exp.AdcSamplesPerBoard(len(rows))

	if err := r.seedStoppers(); err != nil {
		return Result{}, err
	}

	stop := &stream.StopFlag{}
	var observedTriggers uint32
	monitor := &stream.TriggerMonitor{Expected: expected, Observed: &observedTriggers, Stop: stop}

	grp, gctx := errgroup.WithContext(ctx)
	var result Result
	result.ExpectedTriggers = expected
	result.Boards = boards

	for b := 0; b < stream.NumBoards; b++ {
		b := b
		grp.Go(func() error {
			d := &stream.Drain{
				Fifo:       r.HW.AdcData[b],
				Samples:    int(adcSamples),
				Mode:       r.OutputMode,
				OutputPath: r.outputPath(exp.OutputBasePath, "adc", b),
				Stop:       stop,
			}
			stats, err := d.Run()
			result.DrainStats[b] = stats
			return err
		})
	}
	grp.Go(func() error {
		d := &stream.Drain{
			Fifo:           r.HW.TrigData,
			Samples:        int(expected),
			WordsPerSample: 2,
			Mode:           r.OutputMode,
			OutputPath:     r.outputPath(exp.OutputBasePath, "trig", -1),
			Stop:           stop,
		}
		stats, err := d.Run()
		result.TrigDrainStats = stats
		atomic.StoreUint32(&observedTriggers, uint32(stats.WordsRead/2))
		return err
	})

	dacProd := &stream.DacProducer{
		Boards: r.HW.DacCmd, Rows: rows, Iterations: exp.Iterations,
		RampSamples: exp.RampSamples, RampCycles: exp.RampCycles,
		FinalZero: exp.FinalZero, Stop: stop,
	}
	adcProd := &stream.AdcProducer{
		Boards: r.HW.AdcCmd, Rows: rows, Iterations: exp.Iterations,
		RampSamples: exp.RampSamples, RampCycles: exp.RampCycles,
		AdcCycles: exp.AdcCycles, FinalZero: exp.FinalZero, Stop: stop,
	}
	grp.Go(func() error { return dacProd.Run() })
	grp.Go(func() error { return adcProd.Run() })

	grp.Go(func() error {
		monitor.Run(gctx)
		return nil
	})

	if err := r.waitForPreload(); err != nil {
		if !errors.Is(err, ErrTimeout) {
			stop.Set()
			_ = grp.Wait()
			r.tallyOverruns(&result)
			return result, err
		}
		if r.Force || exp.Force {
			r.logf("preload not reached, continuing without prompt (force)")
		} else {
			cont, perr := r.Prompt.ConfirmContinueAfterPreloadTimeout()
			if perr != nil || !cont {
				stop.Set()
				_ = grp.Wait()
				r.tallyOverruns(&result)
				return result, fmt.Errorf("%w: preload not reached and user declined to continue", ErrTimeout)
			}
		}
	}

	r.logf("preload reached, firing sync sequence (expected triggers=%d)", expected)
	if err := r.fireSyncSequence(exp.LockoutCycles, expected); err != nil {
		stop.Set()
		_ = grp.Wait()
		r.tallyOverruns(&result)
		return result, err
	}

	err = grp.Wait()
	r.tallyOverruns(&result)
	return result, err
}

// OverrunError reports ErrHwOverrun, wrapped with a count, if any
// drain observed the FIFO full flag during the run. It is advisory:
// per spec §7 an overrun is recorded but never fails the experiment,
// so callers that want to flag it (the run ledger, an alert) check
// this after a nil error from Run.
func (res Result) OverrunError() error {
	if res.Overruns == 0 {
		return nil
	}
	return fmt.Errorf("%w: observed on %d drain poll(s)", ErrHwOverrun, res.Overruns)
}

func (r *Runner) tallyOverruns(result *Result) {
	result.Overruns = 0
	for _, s := range result.DrainStats {
		result.Overruns += s.Overruns
	}
	result.Overruns += result.TrigDrainStats.Overruns
}

func (r *Runner) outputPath(base, kind string, board int) string {
	if board < 0 {
		return filepath.Join(base, fmt.Sprintf("%s.csv", kind))
	}
	return filepath.Join(base, fmt.Sprintf("%s_board%d.csv", kind, board))
}

func (r *Runner) logf(format string, args ...interface{}) {
	if !r.Verbose || r.Msg == nil {
		return
	}
	r.Msg.Printf(format, args...)
}

func (r *Runner) checkHardwareRunning() error {
	v, err := r.HW.SysCtrl.ReadWord(regs.OffHardwareReset)
	if err != nil {
		return fmt.Errorf("%w: could not read system status: %v", ErrHwNotReady, err)
	}
	if v&regs.StateRunning == 0 {
		return fmt.Errorf("%w: hardware state is not RUNNING", ErrHwNotReady)
	}
	return nil
}

func (r *Runner) resetBuffers() error {
	if err := r.HW.SysCtrl.WriteWord(regs.OffBufferReset, 1); err != nil {
		return fmt.Errorf("%w: could not issue buffer reset: %v", ErrHwNotReady, err)
	}
	return nil
}

// checkAllPresent reads every FIFO's PRESENT flag and builds the
// per-board connectivity summary, continuing past an absent board
// instead of aborting on the first one so the caller gets a full
// picture of what is and isn't connected. It still returns the first
// ErrHwNotReady encountered (an absent board, or an I/O error reading
// a status register) so Run aborts exactly as before.
func (r *Runner) checkAllPresent() ([stream.NumBoards]BoardStatus, error) {
	var boards [stream.NumBoards]BoardStatus
	var firstErr error
	for b := 0; b < stream.NumBoards; b++ {
		boards[b].Board = b
		present := true
		for _, f := range []*mmio.Fifo{r.HW.DacCmd[b], r.HW.AdcCmd[b], r.HW.AdcData[b]} {
			st, err := f.Status()
			if err != nil {
				return boards, fmt.Errorf("%w: could not read %s status: %v", ErrHwNotReady, f.Name(), err)
			}
			if !st.Present {
				present = false
			}
		}
		boards[b].Present = present
		if !present && firstErr == nil {
			firstErr = fmt.Errorf("%w: board %d reports PRESENT=0 on one or more FIFOs", ErrHwNotReady, b)
		}
	}
	for _, f := range []*mmio.Fifo{r.HW.TrigCmd, r.HW.TrigData} {
		st, err := f.Status()
		if err != nil {
			return boards, fmt.Errorf("%w: could not read %s status: %v", ErrHwNotReady, f.Name(), err)
		}
		if !st.Present && firstErr == nil {
			firstErr = fmt.Errorf("%w: %s reports PRESENT=0", ErrHwNotReady, f.Name())
		}
	}
	return boards, firstErr
}

func (r *Runner) seedStoppers() error {
	for b := 0; b < stream.NumBoards; b++ {
		dacStop := command.DacNoop{Trig: true, Cont: true, Count: 0}
		words, err := dacStop.Encode()
		if err != nil {
			return fmt.Errorf("%w: stopper encode: %v", ErrInternalCodec, err)
		}
		if err := r.HW.DacCmd[b].Push(words...); err != nil {
			return fmt.Errorf("%w: could not push DAC stopper board %d: %v", ErrHwNotReady, b, err)
		}

		adcStop := command.AdcNoop{Trig: true, Cont: true, Count: 0}
		words, err = adcStop.Encode()
		if err != nil {
			return fmt.Errorf("%w: stopper encode: %v", ErrInternalCodec, err)
		}
		if err := r.HW.AdcCmd[b].Push(words...); err != nil {
			return fmt.Errorf("%w: could not push ADC stopper board %d: %v", ErrHwNotReady, b, err)
		}
	}
	return nil
}

func (r *Runner) waitForPreload() error {
	timeout := r.PreloadTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	deadline := time.Now().Add(timeout)
	for {
		ready := true
		for b := 0; b < stream.NumBoards; b++ {
			for _, f := range []*mmio.Fifo{r.HW.DacCmd[b], r.HW.AdcCmd[b]} {
				st, err := f.Status()
				if err != nil {
					return fmt.Errorf("%w: could not read %s status: %v", ErrHwNotReady, f.Name(), err)
				}
				if st.WordCount < preloadMinWords {
					ready = false
				}
			}
		}
		if ready {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: command FIFOs did not reach %d words", ErrTimeout, preloadMinWords)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func (r *Runner) fireSyncSequence(lockoutCycles uint32, expectedTriggers uint32) error {
	seq := []command.Trigger{
		command.SyncChannel{Log: true},
		command.ResetCount{},
		command.SetLockout{Cycles: lockoutCycles},
		command.ExpectExternal{Count: expectedTriggers, Log: true},
	}
	for _, t := range seq {
		words, err := t.Encode()
		if err != nil {
			return fmt.Errorf("%w: trigger sequence encode: %v", ErrInternalCodec, err)
		}
		if err := r.HW.TrigCmd.Push(words...); err != nil {
			return fmt.Errorf("%w: could not push trigger sequence: %v", ErrHwNotReady, err)
		}
	}
	return nil
}
