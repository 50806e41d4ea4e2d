// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config holds the runtime-configurable knobs of a shimrunner
// deployment: where /dev/mem windows are expected, defaults for the
// interactive prompts, and the optional alerting/run-ledger targets.
package config // import "github.com/lincolncb/shimrunner/config"

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Option configures a Config; see With* below.
type Option func(*Config)

// Config is the resolved runtime configuration for one shimctl
// process.
type Config struct {
	Verbose     bool
	Force       bool
	NoReset     bool
	DevMemPath  string
	PreloadWait time.Duration

	Defaults PlanDefaults

	MailAddr string // empty disables overrun/liveness alerting
	RunDBDSN string // empty disables the run ledger
}

// PlanDefaults are the values shimctl's prompts pre-fill, overridable
// per run; loaded from a YAML defaults file when one is given.
type PlanDefaults struct {
	Iterations      int     `yaml:"iterations"`
	SPIFrequencyMHz float64 `yaml:"spi_frequency_mhz"`
	RampSamples     int     `yaml:"ramp_samples"`
	RampTimeMS      float64 `yaml:"ramp_time_ms"`
	AdcDelayMS      float64 `yaml:"adc_delay_ms"`
	LockoutMS       float64 `yaml:"lockout_ms"`
	FinalZero       bool    `yaml:"final_zero"`
	OutputBasePath  string  `yaml:"output_base_path"`
}

func newConfig() Config {
	return Config{
		DevMemPath:  "/dev/mem",
		PreloadWait: 5 * time.Second,
	}
}

// New builds a Config from zero or more options.
func New(opts ...Option) Config {
	cfg := newConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithVerbose toggles verbose mmio/runner logging.
func WithVerbose(v bool) Option {
	return func(cfg *Config) { cfg.Verbose = v }
}

// WithForce skips the preload-timeout confirmation prompt.
func WithForce(v bool) Option {
	return func(cfg *Config) { cfg.Force = v }
}

// WithNoReset skips the global buffer reset step.
func WithNoReset(v bool) Option {
	return func(cfg *Config) { cfg.NoReset = v }
}

// WithDevMemPath records a physical memory device node in the Config.
// The path is informational only: mmio.Map always opens /dev/mem.
func WithDevMemPath(path string) Option {
	return func(cfg *Config) { cfg.DevMemPath = path }
}

// WithPreloadWait overrides how long the runner waits for every
// command FIFO to reach its minimum preload depth before prompting.
func WithPreloadWait(d time.Duration) Option {
	return func(cfg *Config) { cfg.PreloadWait = d }
}

// WithMailAddr enables overrun/liveness alerting to addr.
func WithMailAddr(addr string) Option {
	return func(cfg *Config) { cfg.MailAddr = addr }
}

// WithRunDBDSN enables the MySQL run ledger at the given DSN.
func WithRunDBDSN(dsn string) Option {
	return func(cfg *Config) { cfg.RunDBDSN = dsn }
}

// WithDefaultsFile loads plan defaults from a YAML file. A missing
// file is not an error -- the zero-value defaults simply apply.
func WithDefaultsFile(path string) Option {
	return func(cfg *Config) {
		d, err := LoadDefaults(path)
		if err != nil {
			return
		}
		cfg.Defaults = d
	}
}

// LoadDefaults reads a PlanDefaults YAML file from path.
func LoadDefaults(path string) (PlanDefaults, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PlanDefaults{}, fmt.Errorf("config: could not read defaults file %q: %w", path, err)
	}
	var d PlanDefaults
	if err := yaml.Unmarshal(data, &d); err != nil {
		return PlanDefaults{}, fmt.Errorf("config: could not parse defaults file %q: %w", path, err)
	}
	return d, nil
}
