// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rundb records a ledger of experiment runs -- parameters,
// start/end time, and outcome -- to a MySQL database, for sites that
// want shimming runs queryable alongside their other instrument logs.
// It is optional: a shimrunner deployment with no DSN configured never
// imports this package's functionality at runtime.
package rundb // import "github.com/lincolncb/shimrunner/rundb"

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

const drvName = "mysql"

// DB is a handle to the run ledger database.
type DB struct {
	db *sql.DB
}

// Open opens a connection to the run ledger at dsn (a standard
// go-sql-driver/mysql data source name) and verifies it is reachable.
func Open(dsn string) (*DB, error) {
	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, fmt.Errorf("rundb: could not open db: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("rundb: could not ping db: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the underlying connection pool.
func (d *DB) Close() error {
	return d.db.Close()
}

// Run is one row of the run ledger.
type Run struct {
	ID              int64
	StartedAt       time.Time
	EndedAt         time.Time
	SetpointFile    string
	Iterations      int
	RampSamples     int
	SPIFrequencyMHz float64
	LockoutMS       float64
	FinalZero       bool
	Overruns        int
	Succeeded       bool
	Note            string

	// ChannelBias is the operator-supplied per-channel ADC bias table
	// for this run, serialized as 32 comma-separated decimals; empty
	// when no bias was supplied. The runner never reads this back to
	// transform ADC samples -- it is pass-through metadata only.
	ChannelBias string
}

// Insert records a completed run and returns its assigned ID.
func (d *DB) Insert(ctx context.Context, r Run) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := d.db.ExecContext(ctx, `
INSERT INTO runs (
	started_at, ended_at, setpoint_file, iterations, ramp_samples,
	spi_frequency_mhz, lockout_ms, final_zero, overruns, succeeded, note, channel_bias
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.StartedAt, r.EndedAt, r.SetpointFile, r.Iterations, r.RampSamples,
		r.SPIFrequencyMHz, r.LockoutMS, r.FinalZero, r.Overruns, r.Succeeded, r.Note, r.ChannelBias,
	)
	if err != nil {
		return 0, fmt.Errorf("rundb: could not insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("rundb: could not read inserted run id: %w", err)
	}
	return id, nil
}

// Recent returns the n most recently started runs, newest first.
func (d *DB) Recent(ctx context.Context, n int) ([]Run, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
SELECT id, started_at, ended_at, setpoint_file, iterations, ramp_samples,
       spi_frequency_mhz, lockout_ms, final_zero, overruns, succeeded, note, channel_bias
FROM runs ORDER BY started_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("rundb: could not query recent runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(
			&r.ID, &r.StartedAt, &r.EndedAt, &r.SetpointFile, &r.Iterations, &r.RampSamples,
			&r.SPIFrequencyMHz, &r.LockoutMS, &r.FinalZero, &r.Overruns, &r.Succeeded, &r.Note, &r.ChannelBias,
		); err != nil {
			return nil, fmt.Errorf("rundb: could not scan run row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rundb: could not scan recent runs: %w", err)
	}
	return out, nil
}
