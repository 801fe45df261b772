// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package ingest reads the study's input files and assembles the per-patient
// inputs of the case-crossover analysis.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/OpenPSG/casecross"
)

// ReferenceDate is the calendar date clock times are placed on. Only the
// differences between instants matter, so any fixed date works.
var ReferenceDate = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// SleepTimes is one row of the lights-off/lights-on table.
type SleepTimes struct {
	LightsOff  time.Time
	SleepOnset time.Time
	LightsOn   time.Time
}

// CaseTimes is one row of the case-times table.
type CaseTimes struct {
	StudyStart time.Time
	// Onsets are rolled across midnight and de-duplicated.
	Onsets []time.Time
}

// Column positions in the sleep-times table.
const (
	colLightsOff    = 1
	colSleepLatency = 2
	colLightsOn     = 5
)

// ReadSleepTimes parses the sleep period table: patient id, lights off
// clock time, sleep latency in minutes and, in the sixth column, the lights
// on clock time. A header row starting with PPTID is skipped. Identifiers
// are upper-cased.
func ReadSleepTimes(r io.Reader) (map[string]SleepTimes, error) {
	rows, err := readRows(r)
	if err != nil {
		return nil, fmt.Errorf("error reading sleep times: %w", err)
	}

	out := make(map[string]SleepTimes, len(rows))
	for line, row := range rows {
		if len(row) == 0 || strings.EqualFold(strings.TrimSpace(row[0]), "PPTID") {
			continue
		}
		if len(row) <= colLightsOn {
			return nil, fmt.Errorf("%w: sleep times line %d: expected at least %d columns, got %d",
				casecross.ErrMalformedInput, line+1, colLightsOn+1, len(row))
		}

		id := patientID(row[0])
		lightsOff, err := casecross.ParseClock(row[colLightsOff], ReferenceDate)
		if err != nil {
			return nil, fmt.Errorf("sleep times for %s: %w", id, err)
		}
		lightsOn, err := casecross.ParseClock(row[colLightsOn], ReferenceDate)
		if err != nil {
			return nil, fmt.Errorf("sleep times for %s: %w", id, err)
		}
		latency, err := strconv.ParseFloat(strings.TrimSpace(row[colSleepLatency]), 64)
		if err != nil || latency < 0 || math.IsNaN(latency) || math.IsInf(latency, 0) {
			return nil, fmt.Errorf("%w: sleep times for %s: sleep latency %q", casecross.ErrMalformedInput, id, row[colSleepLatency])
		}

		onset := lightsOff.Add(time.Duration(latency * float64(time.Minute)))
		out[id] = SleepTimes{
			LightsOff:  lightsOff,
			SleepOnset: onset,
			LightsOn:   casecross.RollAfter(lightsOff, lightsOn),
		}
	}
	return out, nil
}

// ReadCaseTimes parses the case-times table: patient id, then clock times
// where the first is the study start and the rest are case event onsets.
// Times are rolled forward across midnight and onsets closer than spacing to
// the previous one are dropped.
func ReadCaseTimes(r io.Reader, spacing time.Duration) (map[string]CaseTimes, []string, error) {
	rows, err := readRows(r)
	if err != nil {
		return nil, nil, fmt.Errorf("error reading case times: %w", err)
	}

	out := make(map[string]CaseTimes, len(rows))
	var order []string
	for line, row := range rows {
		if len(row) < 2 {
			return nil, nil, fmt.Errorf("%w: case times line %d: missing study start", casecross.ErrMalformedInput, line+1)
		}

		id := patientID(row[0])
		times := make([]time.Time, 0, len(row)-1)
		for _, cell := range row[1:] {
			if strings.TrimSpace(cell) == "" {
				continue
			}
			t, err := casecross.ParseClock(cell, ReferenceDate)
			if err != nil {
				return nil, nil, fmt.Errorf("case times for %s: %w", id, err)
			}
			times = append(times, t)
		}
		if len(times) == 0 {
			return nil, nil, fmt.Errorf("%w: case times for %s: missing study start", casecross.ErrMalformedInput, id)
		}

		times = casecross.RollSequence(times[0], times)
		if _, dup := out[id]; !dup {
			order = append(order, id)
		}
		out[id] = CaseTimes{
			StudyStart: times[0],
			Onsets:     casecross.DedupeCases(times[1:], spacing),
		}
	}
	return out, order, nil
}

func readRows(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var rows [][]string
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
}

func patientID(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
