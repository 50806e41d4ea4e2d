// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewDefaults(t *testing.T) {
	cfg := New()
	if cfg.DevMemPath != "/dev/mem" {
		t.Errorf("DevMemPath = %q, want /dev/mem", cfg.DevMemPath)
	}
	if cfg.Verbose || cfg.Force || cfg.NoReset {
		t.Errorf("expected all boolean flags false by default, got %+v", cfg)
	}
}

func TestOptions(t *testing.T) {
	cfg := New(WithVerbose(true), WithForce(true), WithNoReset(true), WithMailAddr("ops@example.com"), WithRunDBDSN("user:pass@/db"))
	if !cfg.Verbose || !cfg.Force || !cfg.NoReset {
		t.Errorf("options not applied: %+v", cfg)
	}
	if cfg.MailAddr != "ops@example.com" {
		t.Errorf("MailAddr = %q", cfg.MailAddr)
	}
	if cfg.RunDBDSN != "user:pass@/db" {
		t.Errorf("RunDBDSN = %q", cfg.RunDBDSN)
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "defaults.yaml")
	data := []byte("iterations: 5\nspi_frequency_mhz: 50\nramp_samples: 4\nfinal_zero: true\noutput_base_path: /tmp/run\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	d, err := LoadDefaults(path)
	if err != nil {
		t.Fatalf("LoadDefaults: %v", err)
	}
	if d.Iterations != 5 || d.SPIFrequencyMHz != 50 || d.RampSamples != 4 || !d.FinalZero || d.OutputBasePath != "/tmp/run" {
		t.Fatalf("unexpected defaults: %+v", d)
	}
}

func TestWithDefaultsFileMissingIsNotFatal(t *testing.T) {
	cfg := New(WithDefaultsFile("/no/such/file.yaml"))
	if cfg.Defaults != (PlanDefaults{}) {
		t.Fatalf("expected zero-value defaults, got %+v", cfg.Defaults)
	}
}
