// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package report writes case-crossover records to CSV, XLSX and SQLite.
package report

import (
	"strconv"
	"time"

	"github.com/OpenPSG/casecross"
)

// Writer receives batches of records. Close flushes and releases the output.
type Writer interface {
	Write(records []casecross.Record) error
	Close() error
}

// Columns is the record layout shared by every writer.
var Columns = []string{
	"ID",
	"patient_event_number",
	"case_control",
	"period_start_time",
	"period_end_time",
	"sleep_stage",
	"PLMS_event",
	"resp_event",
	"resp_central",
	"resp_obstructive",
	"resp_mixed",
	"resp_hypopnea",
	"arousal",
	"PLMS_assos",
	"resp_assos",
	"PLMSresp",
	"arousal_PLMS",
	"min_spo2",
	"mean_spo2",
	"desaturation",
	"NSVT_start",
	"NSVT_sstage",
	"segment_duration",
	"segment_start",
	"segment_end",
}

// values flattens a record in Columns order. Flags are 0/1 integers and a
// missing saturation summary is nil.
func values(rec casecross.Record) []any {
	var minSpO2, meanSpO2 any
	if rec.SpO2 != nil {
		minSpO2, meanSpO2 = rec.SpO2.Min, rec.SpO2.Mean
	}

	v := []any{
		rec.PatientID,
		rec.CaseNumber,
		flag(rec.Case),
		clock(rec.Period.Start),
		clock(rec.Period.End),
		int(rec.Stage),
		flag(rec.LimbMovement),
		flag(rec.Respiratory),
	}
	for _, t := range casecross.RespiratoryTypes {
		v = append(v, flag(rec.RespiratoryByType[t]))
	}
	return append(v,
		rec.Arousals,
		rec.LimbArousals,
		rec.ArousalRespiratory,
		rec.LimbRespiratory,
		rec.ArousalLimbs,
		minSpO2,
		meanSpO2,
		flag(rec.Desaturation),
		clock(rec.CaseOnset),
		int(rec.CaseStage),
		rec.Chunk.Duration().Minutes(),
		clock(rec.Chunk.Start),
		clock(rec.Chunk.End),
	)
}

// textValues renders values as text for the CSV writer.
func textValues(rec casecross.Record) []string {
	vs := values(rec)
	out := make([]string, len(vs))
	for i, v := range vs {
		switch v := v.(type) {
		case nil:
			out[i] = ""
		case string:
			out[i] = v
		case int:
			out[i] = strconv.Itoa(v)
		case float64:
			out[i] = strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return out
}

func flag(b bool) int {
	if b {
		return 1
	}
	return 0
}

func clock(t time.Time) string {
	return t.Format(casecross.ClockLayout)
}
