// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command shimctl runs one shimming experiment against the Rev-C
// compatible FPGA instrument: it maps the command/data FIFOs and the
// system control region over /dev/mem, prompts for the experiment's
// timing parameters, and drives runner.Runner to completion.
package main // import "github.com/lincolncb/shimrunner/cmd/shimctl"

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/peterh/liner"

	"github.com/lincolncb/shimrunner/config"
	"github.com/lincolncb/shimrunner/internal/regs"
	"github.com/lincolncb/shimrunner/mmio"
	"github.com/lincolncb/shimrunner/notify"
	"github.com/lincolncb/shimrunner/plan"
	"github.com/lincolncb/shimrunner/rundb"
	"github.com/lincolncb/shimrunner/runner"
	"github.com/lincolncb/shimrunner/stream"
)

func main() {
	var (
		noReset  = flag.Bool("no_reset", false, "skip the global buffer reset before streaming")
		binOut   = flag.Bool("bin", false, "write ADC/trigger output in binary instead of ASCII")
		verbose  = flag.Bool("verbose", false, "enable trace logging of mmio and runner activity")
		force    = flag.Bool("force", false, "skip the preload-timeout confirmation prompt")
		cfgPath  = flag.String("config", "", "YAML file of default prompt values")
		devMem   = flag.String("devmem", "/dev/mem", "physical memory device node (informational; the mapping always opens /dev/mem)")
		mailAddr = flag.String("mail", "", "address to alert on overrun/stall, empty disables alerting")
		dsn      = flag.String("rundb", "", "MySQL DSN for the run ledger, empty disables it")
		setpoint = flag.String("setpoints", "", "path to the setpoint file (required)")
		biasFile = flag.String("bias", "", "path to a 32-value per-channel ADC bias file, empty disables it")
	)
	flag.Parse()

	log.SetPrefix("shimctl: ")
	log.SetFlags(0)

	if *setpoint == "" {
		log.Fatal("could not start: -setpoints is required")
	}

	opts := []config.Option{
		config.WithVerbose(*verbose),
		config.WithForce(*force),
		config.WithNoReset(*noReset),
		config.WithDevMemPath(*devMem),
	}
	if *cfgPath != "" {
		opts = append(opts, config.WithDefaultsFile(*cfgPath))
	}
	if *mailAddr != "" {
		opts = append(opts, config.WithMailAddr(*mailAddr))
	}
	if *dsn != "" {
		opts = append(opts, config.WithRunDBDSN(*dsn))
	}
	cfg := config.New(opts...)

	mode := stream.OutputASCII
	if *binOut {
		mode = stream.OutputBinary
	}

	if err := run(cfg, *setpoint, *biasFile, mode); err != nil {
		log.Fatalf("could not run experiment: %+v", err)
	}
}

func run(cfg config.Config, setpointPath, biasPath string, mode stream.OutputMode) error {
	term := liner.NewLiner()
	defer term.Close()
	term.SetCtrlCAborts(true)

	exp, err := promptExperiment(term, cfg.Defaults, cfg.Force)
	if err != nil {
		return fmt.Errorf("shimctl: could not collect experiment inputs: %w", err)
	}

	if biasPath != "" {
		bias, err := loadChannelBias(biasPath)
		if err != nil {
			return fmt.Errorf("shimctl: could not load channel bias file: %w", err)
		}
		exp.ChannelBias = bias
	}

	hw, closeHW, err := mapHardware(cfg.DevMemPath, cfg.Verbose)
	if err != nil {
		return fmt.Errorf("shimctl: could not map hardware: %w", err)
	}
	defer closeHW()

	r := runner.New(hw)
	r.Verbose = cfg.Verbose
	r.Force = cfg.Force
	r.NoReset = cfg.NoReset
	r.OutputMode = mode
	r.PreloadTimeout = cfg.PreloadWait
	if !cfg.Force {
		r.Prompt = linerPrompter{term: term}
	}

	var mailer *notify.Mailer
	if cfg.MailAddr != "" {
		mailer = notify.NewMailer(os.Getenv("SHIM_SMTP_HOST"), atoi(os.Getenv("SHIM_SMTP_PORT")),
			os.Getenv("SHIM_SMTP_USER"), os.Getenv("SHIM_SMTP_PASS"), os.Getenv("SHIM_SMTP_FROM"),
			strings.Split(cfg.MailAddr, ","), log.Default())
	}

	var ledger *rundb.DB
	if cfg.RunDBDSN != "" {
		ledger, err = rundb.Open(cfg.RunDBDSN)
		if err != nil {
			log.Printf("shimctl: could not open run ledger, continuing without it: %+v", err)
		} else {
			defer ledger.Close()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	started := time.Now()
	result, runErr := r.Run(ctx, setpointPath, exp)
	ended := time.Now()

	printBoardSummary(result.Boards)

	if mailer != nil && mailer.Ready() {
		if result.Overruns > 0 {
			mailer.AlertOverrun("adc+trigger", -1, result.Overruns)
		}
		if result.ExpectedTriggers > 0 && result.TrigDrainStats.WordsRead/2 < int(result.ExpectedTriggers) && runErr != nil {
			mailer.AlertStall(result.ExpectedTriggers, uint32(result.TrigDrainStats.WordsRead/2))
		}
	}

	if ledger != nil {
		note := ""
		if runErr != nil {
			note = runErr.Error()
		}
		if _, dbErr := ledger.Insert(context.Background(), rundb.Run{
			StartedAt:       started,
			EndedAt:         ended,
			SetpointFile:    setpointPath,
			Iterations:      exp.Iterations,
			RampSamples:     exp.RampSamples,
			SPIFrequencyMHz: exp.SPIFrequencyMHz,
			LockoutMS:       exp.LockoutMS,
			FinalZero:       exp.FinalZero,
			Overruns:        result.Overruns,
			Succeeded:       runErr == nil,
			Note:            note,
			ChannelBias:     formatChannelBias(exp.ChannelBias),
		}); dbErr != nil {
			log.Printf("shimctl: could not record run in ledger: %+v", dbErr)
		}
	}

	if runErr != nil {
		return runErr
	}
	log.Printf("experiment complete: %d trigger(s) expected, %d overrun event(s)", result.ExpectedTriggers, result.Overruns)
	return nil
}

// printBoardSummary prints one "Connected"/"Not connected" line per
// board, mirroring the original rev_c_compat operator console output.
func printBoardSummary(boards [stream.NumBoards]runner.BoardStatus) {
	for _, b := range boards {
		state := "Connected"
		if !b.Present {
			state = "Not connected"
		}
		fmt.Printf("board %d: %s\n", b.Board, state)
	}
}

// mapHardware opens the /dev/mem windows for the system control
// region and every per-board and trigger FIFO, and returns the
// runner.Hardware ready to drive, plus a cleanup func.
func mapHardware(devMem string, verbose bool) (runner.Hardware, func(), error) {
	_ = devMem // real deployments substitute a patched /dev/mem open in mmio.Map; path is informational here.

	var windows []*mmio.Window
	closeAll := func() {
		for _, w := range windows {
			_ = w.Close()
		}
	}

	mapWindow := func(base, size uint32, name string) (*mmio.Window, error) {
		w, err := mmio.Map(base, size, name, verbose)
		if err != nil {
			return nil, err
		}
		windows = append(windows, w)
		return w, nil
	}

	sysWin, err := mapWindow(regs.SysCtrlBase, regs.SysCtrlSize, "sysctrl")
	if err != nil {
		closeAll()
		return runner.Hardware{}, nil, err
	}

	var hw runner.Hardware
	hw.SysCtrl = sysWin

	for b := uint8(0); b < stream.NumBoards; b++ {
		dacWin, err := mapWindow(regs.DacCmdFIFO(b), regs.FifoWords*4, fmt.Sprintf("dac_cmd_%d", b))
		if err != nil {
			closeAll()
			return runner.Hardware{}, nil, err
		}
		hw.DacCmd[b] = mmio.NewFifo(dacWin, fmt.Sprintf("dac_cmd_%d", b), regs.OffFifoPort, regs.OffFifoStatus, regs.FifoWords)

		adcCmdWin, err := mapWindow(regs.AdcCmdFIFO(b), regs.FifoWords*4, fmt.Sprintf("adc_cmd_%d", b))
		if err != nil {
			closeAll()
			return runner.Hardware{}, nil, err
		}
		hw.AdcCmd[b] = mmio.NewFifo(adcCmdWin, fmt.Sprintf("adc_cmd_%d", b), regs.OffFifoPort, regs.OffFifoStatus, regs.FifoWords)

		adcDataWin, err := mapWindow(regs.AdcDataFIFO(b), regs.FifoWords*4, fmt.Sprintf("adc_data_%d", b))
		if err != nil {
			closeAll()
			return runner.Hardware{}, nil, err
		}
		hw.AdcData[b] = mmio.NewFifo(adcDataWin, fmt.Sprintf("adc_data_%d", b), regs.OffFifoPort, regs.OffFifoStatus, regs.FifoWords)
	}

	trigCmdWin, err := mapWindow(regs.TrigCmdFIFO, regs.FifoWords*4, "trig_cmd")
	if err != nil {
		closeAll()
		return runner.Hardware{}, nil, err
	}
	hw.TrigCmd = mmio.NewFifo(trigCmdWin, "trig_cmd", regs.OffFifoPort, regs.OffFifoStatus, regs.FifoWords)

	trigDataWin, err := mapWindow(regs.TrigDataFIFO, regs.FifoWords*4, "trig_data")
	if err != nil {
		closeAll()
		return runner.Hardware{}, nil, err
	}
	hw.TrigData = mmio.NewFifo(trigDataWin, "trig_data", regs.OffFifoPort, regs.OffFifoStatus, regs.FifoWords)

	return hw, closeAll, nil
}

// loadChannelBias reads a single setpoint-file-shaped row of 32
// per-channel bias values.
func loadChannelBias(path string) (*[plan.ChannelsPerRow]float64, error) {
	rows, err := plan.LoadSetpointsFile(path)
	if err != nil {
		return nil, err
	}
	if len(rows) != 1 {
		return nil, fmt.Errorf("shimctl: bias file %q must hold exactly one row, got %d", path, len(rows))
	}
	bias := [plan.ChannelsPerRow]float64(rows[0])
	return &bias, nil
}

// formatChannelBias serializes a channel bias table for the run
// ledger; an unset table serializes to the empty string.
func formatChannelBias(bias *[plan.ChannelsPerRow]float64) string {
	if bias == nil {
		return ""
	}
	parts := make([]string, len(bias))
	for i, v := range bias {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

// promptExperiment collects the runner inputs interactively, pre-filled
// from defs. When force is set, defs is used verbatim and no prompt is
// shown -- matching the --force automation escape hatch.
func promptExperiment(term *liner.State, defs config.PlanDefaults, force bool) (plan.Experiment, error) {
	exp := plan.Experiment{
		Iterations:      defs.Iterations,
		SPIFrequencyMHz: defs.SPIFrequencyMHz,
		RampSamples:     defs.RampSamples,
		RampTimeMS:      defs.RampTimeMS,
		AdcDelayMS:      defs.AdcDelayMS,
		LockoutMS:       defs.LockoutMS,
		FinalZero:       defs.FinalZero,
		OutputBasePath:  defs.OutputBasePath,
		Force:           force,
	}
	if force {
		return exp, nil
	}

	var err error
	if exp.Iterations, err = promptInt(term, "iteration count", defs.Iterations); err != nil {
		return plan.Experiment{}, err
	}
	if exp.SPIFrequencyMHz, err = promptFloat(term, "SPI frequency (MHz)", defs.SPIFrequencyMHz); err != nil {
		return plan.Experiment{}, err
	}
	if exp.RampSamples, err = promptInt(term, "ramp samples", defs.RampSamples); err != nil {
		return plan.Experiment{}, err
	}
	if exp.RampTimeMS, err = promptFloat(term, "ramp time (ms)", defs.RampTimeMS); err != nil {
		return plan.Experiment{}, err
	}
	if exp.AdcDelayMS, err = promptFloat(term, "ADC delay (ms)", defs.AdcDelayMS); err != nil {
		return plan.Experiment{}, err
	}
	if exp.LockoutMS, err = promptFloat(term, "trigger lockout (ms)", defs.LockoutMS); err != nil {
		return plan.Experiment{}, err
	}
	if exp.FinalZero, err = promptBool(term, "final-zero", defs.FinalZero); err != nil {
		return plan.Experiment{}, err
	}
	if exp.OutputBasePath, err = promptString(term, "base output path", defs.OutputBasePath); err != nil {
		return plan.Experiment{}, err
	}
	return exp, nil
}

func promptString(term *liner.State, label, def string) (string, error) {
	line, err := term.Prompt(fmt.Sprintf("%s [%s]: ", label, def))
	if err != nil {
		return "", fmt.Errorf("shimctl: could not read %s: %w", label, err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return def, nil
	}
	return line, nil
}

func promptInt(term *liner.State, label string, def int) (int, error) {
	line, err := promptString(term, label, strconv.Itoa(def))
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(line)
	if err != nil {
		return 0, fmt.Errorf("shimctl: could not parse %s %q: %w", label, line, err)
	}
	return v, nil
}

func promptFloat(term *liner.State, label string, def float64) (float64, error) {
	line, err := promptString(term, label, strconv.FormatFloat(def, 'g', -1, 64))
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(line, 64)
	if err != nil {
		return 0, fmt.Errorf("shimctl: could not parse %s %q: %w", label, line, err)
	}
	return v, nil
}

func promptBool(term *liner.State, label string, def bool) (bool, error) {
	defStr := "n"
	if def {
		defStr = "y"
	}
	line, err := promptString(term, label+" (y/n)", defStr)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	case "n", "no":
		return false, nil
	default:
		return false, fmt.Errorf("shimctl: could not parse %s %q as y/n", label, line)
	}
}

// linerPrompter implements runner.Prompter over the interactive
// terminal, for the preload-timeout escape hatch.
type linerPrompter struct {
	term *liner.State
}

func (p linerPrompter) ConfirmContinueAfterPreloadTimeout() (bool, error) {
	line, err := p.term.Prompt("preload window exceeded; continue anyway? (y/n): ")
	if err != nil {
		return false, fmt.Errorf("shimctl: could not read preload confirmation: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func atoi(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}
