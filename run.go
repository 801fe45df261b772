// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package casecross

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// PatientFailure records a patient that could not be processed.
type PatientFailure struct {
	PatientID string
	Err       error
}

// RunResult is the outcome of a whole study run.
type RunResult struct {
	ID uuid.UUID
	// Records are grouped by patient in input order.
	Records   []Record
	Summaries []PatientSummary
	Failed    []PatientFailure
	Elapsed   time.Duration
}

// Run analyses every patient. Each patient samples from its own stream
// derived from cfg.Seed and its identifier, so results do not depend on
// cfg.Workers. A patient whose input is malformed is reported in
// RunResult.Failed without stopping the others.
func Run(ctx context.Context, cfg Config, inputs []PatientInput, logger *zap.Logger) (*RunResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	result := &RunResult{ID: uuid.New()}
	logger = logger.With(zap.String("run_id", result.ID.String()))
	started := time.Now()

	logger.Info("Starting run",
		zap.Int("patients", len(inputs)),
		zap.Uint64("seed", cfg.Seed),
		zap.Int("workers", cfg.Workers),
	)

	type outcome struct {
		records []Record
		summary PatientSummary
		err     error
	}
	outcomes := make([]outcome, len(inputs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i, in := range inputs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			p, err := NewPatient(in, cfg)
			if err != nil {
				outcomes[i].err = err
				return nil
			}
			records, summary := AnalyzePatient(p, cfg, NewSampler(cfg.Seed, p.ID), logger)
			outcomes[i] = outcome{records: records, summary: summary}

			logger.Info("Analysed patient",
				zap.String("patient", p.ID),
				zap.Int("cases", summary.Cases),
				zap.Int("retained", summary.Retained),
				zap.Int("records", len(records)),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("error running study: %w", err)
	}

	for i, o := range outcomes {
		if o.err != nil {
			logger.Error("Failed to process patient", zap.String("patient", inputs[i].ID), zap.Error(o.err))
			result.Failed = append(result.Failed, PatientFailure{PatientID: inputs[i].ID, Err: o.err})
			continue
		}
		result.Records = append(result.Records, o.records...)
		result.Summaries = append(result.Summaries, o.summary)
	}
	result.Elapsed = time.Since(started)

	logger.Info("Run complete",
		zap.String("records", humanize.Comma(int64(len(result.Records)))),
		zap.Int("patients", len(result.Summaries)),
		zap.Int("failed", len(result.Failed)),
		zap.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

// Totals sums the per-patient summaries.
func (r *RunResult) Totals() PatientSummary {
	total := PatientSummary{Skipped: map[string]int{}}
	for _, s := range r.Summaries {
		total.Cases += s.Cases
		total.Retained += s.Retained
		for reason, n := range s.Skipped {
			total.Skipped[reason] += n
		}
	}
	return total
}
