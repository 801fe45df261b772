// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Command casecross selects case-crossover control periods for NSVT events
// in a set of overnight sleep studies and writes the annotated records.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/OpenPSG/casecross"
	"github.com/OpenPSG/casecross/ingest"
	"github.com/OpenPSG/casecross/report"
	"go.uber.org/zap"
)

var (
	configPath = flag.String("config", "", "YAML config file (defaults apply when empty)")
	sleepTimes = flag.String("sleep-times", "", "Lights off/on table (overrides config)")
	caseTimes  = flag.String("case-times", "", "Case times table (overrides config)")
	annDir     = flag.String("annotations", "", "Directory of Profusion XML files (overrides config)")
	signalDir  = flag.String("signals", "", "Directory of EDF files for SpO2 (overrides config)")
	csvOut     = flag.String("csv", "", "CSV output path (overrides config)")
	xlsxOut    = flag.String("xlsx", "", "XLSX output path (overrides config)")
	sqliteOut  = flag.String("sqlite", "", "SQLite output path (overrides config)")
	workers    = flag.Int("workers", 0, "Patients analysed in parallel (overrides config)")
	verbose    = flag.Bool("verbose", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	cfg, err := casecross.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyFlags(&cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	logger, err := newLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Run failed", zap.Error(err))
		os.Exit(1)
	}
}

func applyFlags(cfg *casecross.Config) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Input.SleepTimes, *sleepTimes)
	set(&cfg.Input.CaseTimes, *caseTimes)
	set(&cfg.Input.AnnotationDir, *annDir)
	set(&cfg.Input.SignalDir, *signalDir)
	set(&cfg.Output.CSV, *csvOut)
	set(&cfg.Output.XLSX, *xlsxOut)
	set(&cfg.Output.SQLite, *sqliteOut)
	if *workers > 0 {
		cfg.Workers = *workers
	}
}

func run(ctx context.Context, cfg casecross.Config, logger *zap.Logger) error {
	if cfg.Input.SleepTimes == "" || cfg.Input.CaseTimes == "" {
		return errors.New("sleep times and case times tables are required")
	}

	inputs, loadFailures, err := ingest.NewLoader(cfg, logger).Load()
	if err != nil {
		return err
	}

	result, err := casecross.Run(ctx, cfg, inputs, logger)
	if err != nil {
		return err
	}
	result.Failed = append(loadFailures, result.Failed...)

	writers, err := openWriters(cfg.Output, result)
	if err != nil {
		return err
	}
	var errs []error
	for _, w := range writers {
		if err := w.Write(result.Records); err != nil {
			errs = append(errs, err)
		}
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("error writing reports: %w", errors.Join(errs...))
	}

	printSummary(os.Stderr, result)
	return nil
}

func openWriters(out casecross.OutputConfig, result *casecross.RunResult) ([]report.Writer, error) {
	var writers []report.Writer
	closeAll := func() {
		for _, w := range writers {
			_ = w.Close()
		}
	}

	if out.CSV != "" {
		f, err := os.Create(out.CSV)
		if err != nil {
			return nil, fmt.Errorf("error creating %s: %w", out.CSV, err)
		}
		w, err := report.NewCSVWriter(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		writers = append(writers, w)
	}
	if out.XLSX != "" {
		w, err := report.NewXLSXWriter(out.XLSX)
		if err != nil {
			closeAll()
			return nil, err
		}
		writers = append(writers, w)
	}
	if out.SQLite != "" {
		w, err := report.NewSQLiteWriter(out.SQLite, result.ID)
		if err != nil {
			closeAll()
			return nil, err
		}
		writers = append(writers, w)
	}
	if len(writers) == 0 {
		// Wrapped so closing the writer leaves stdout open.
		w, err := report.NewCSVWriter(struct{ io.Writer }{os.Stdout})
		if err != nil {
			return nil, err
		}
		writers = append(writers, w)
	}
	return writers, nil
}
