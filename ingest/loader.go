// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/OpenPSG/casecross"
	"github.com/OpenPSG/casecross/edf"
	"go.uber.org/zap"
)

// Loader assembles patient inputs from the study's directory layout. Each
// patient ID has an annotation file <id>.edf.XML in AnnotationDir and,
// when SignalDir is set, a signal file <id>.edf in SignalDir (lower-cased id).
type Loader struct {
	Input       casecross.InputConfig
	CaseSpacing time.Duration
	Logger      *zap.Logger
}

// NewLoader returns a loader for cfg's inputs.
func NewLoader(cfg casecross.Config, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		Input:       cfg.Input,
		CaseSpacing: cfg.CaseSpacing,
		Logger:      logger,
	}
}

// Load reads every patient listed in the case-times table. Only patients
// with case events are studied. A patient whose own files are missing or
// malformed is returned as a failure; problems with the shared tables are
// returned as an error.
func (l *Loader) Load() ([]casecross.PatientInput, []casecross.PatientFailure, error) {
	sleepTimes, err := readFile(l.Input.SleepTimes, func(f *os.File) (map[string]SleepTimes, error) {
		return ReadSleepTimes(f)
	})
	if err != nil {
		return nil, nil, err
	}

	var order []string
	caseTimes, err := readFile(l.Input.CaseTimes, func(f *os.File) (map[string]CaseTimes, error) {
		m, ids, err := ReadCaseTimes(f, l.CaseSpacing)
		order = ids
		return m, err
	})
	if err != nil {
		return nil, nil, err
	}

	var (
		inputs   []casecross.PatientInput
		failures []casecross.PatientFailure
	)
	for _, id := range order {
		in, err := l.loadPatient(id, sleepTimes, caseTimes[id])
		if err != nil {
			l.Logger.Warn("Failed to load patient", zap.String("patient", id), zap.Error(err))
			failures = append(failures, casecross.PatientFailure{PatientID: id, Err: err})
			continue
		}
		inputs = append(inputs, in)
	}

	l.Logger.Info("Loaded patients",
		zap.Int("loaded", len(inputs)),
		zap.Int("failed", len(failures)),
	)
	return inputs, failures, nil
}

func (l *Loader) loadPatient(id string, sleepTimes map[string]SleepTimes, cases CaseTimes) (casecross.PatientInput, error) {
	st, ok := sleepTimes[id]
	if !ok {
		return casecross.PatientInput{}, fmt.Errorf("%w: no sleep times for patient %s", casecross.ErrMalformedInput, id)
	}

	base := strings.ToLower(id) + ".edf"
	ann, err := readFile(filepath.Join(l.Input.AnnotationDir, base+".XML"), func(f *os.File) (*Annotations, error) {
		return ReadAnnotations(f)
	})
	if err != nil {
		return casecross.PatientInput{}, err
	}
	if ann.Ignored > 0 {
		l.Logger.Debug("Ignored scored events", zap.String("patient", id), zap.Int("count", ann.Ignored))
	}

	in := casecross.PatientInput{
		ID:         id,
		StudyStart: cases.StudyStart,
		SleepOnset: st.SleepOnset,
		LightsOn:   st.LightsOn,
		CaseTimes:  cases.Onsets,
		Stages:     ann.Stages,
		Events: casecross.EventSources{
			LimbMovements: ann.LimbMovements,
			Arousals:      ann.Arousals,
			Respiratory:   ann.Respiratory,
		},
	}

	if l.Input.SignalDir != "" {
		samples, err := readFile(filepath.Join(l.Input.SignalDir, base), func(f *os.File) ([]edf.Sample, error) {
			return edf.ReadSaturation(f, l.Input.SaturationLabels...)
		})
		if err != nil {
			return casecross.PatientInput{}, err
		}
		in.Events.Oxygen = SaturationTrace(samples)
	}

	return in, nil
}

// SaturationTrace converts EDF samples to raw oxygen readings.
func SaturationTrace(samples []edf.Sample) []casecross.RawSample {
	out := make([]casecross.RawSample, len(samples))
	for i, s := range samples {
		out[i] = casecross.RawSample{Offset: s.Offset.Seconds(), Percent: s.Value}
	}
	return out
}

func readFile[T any](path string, parse func(*os.File) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(path)
	if err != nil {
		return zero, fmt.Errorf("error opening %s: %w", path, err)
	}
	defer f.Close()

	v, err := parse(f)
	if err != nil {
		return zero, fmt.Errorf("error reading %s: %w", filepath.Base(path), err)
	}
	return v, nil
}
