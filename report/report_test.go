// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package report_test

import (
	"bytes"
	"database/sql"
	"encoding/csv"
	"path/filepath"
	"testing"
	"time"

	"github.com/OpenPSG/casecross"
	"github.com/OpenPSG/casecross/report"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func hms(h, m, s int) time.Time {
	return time.Date(2000, 1, 2, h, m, s, 0, time.UTC)
}

func sampleRecords() []casecross.Record {
	chunk := casecross.Interval{Start: hms(1, 30, 0), End: hms(2, 0, 0)}
	hazard := casecross.Record{
		PatientID:  "AA0001",
		CaseNumber: 1,
		Case:       true,
		Period:     casecross.Interval{Start: hms(1, 59, 30), End: hms(2, 0, 0)},
		Stage:      2,

		LimbMovement: true,
		Respiratory:  true,
		RespiratoryByType: map[casecross.RespiratoryType]bool{
			casecross.Hypopnea: true,
		},
		Arousals:     2,
		LimbArousals: 1,
		ArousalLimbs: 1,

		SpO2:         &casecross.Saturation{Min: 88.5, Mean: 90.25, Samples: 4},
		Desaturation: true,

		CaseOnset: hms(2, 0, 0),
		CaseStage: 2,
		Chunk:     chunk,
	}
	control := casecross.Record{
		PatientID:  "AA0001",
		CaseNumber: 1,
		Period:     casecross.Interval{Start: hms(1, 53, 45), End: hms(1, 54, 15)},
		Stage:      3,
		CaseOnset:  hms(2, 0, 0),
		CaseStage:  2,
		Chunk:      chunk,
	}
	return []casecross.Record{hazard, control}
}

var (
	hazardRow = []string{
		"AA0001", "1", "1", "01:59:30", "02:00:00", "2",
		"1", "1", "0", "0", "0", "1",
		"2", "1", "0", "0", "1",
		"88.5", "90.25", "1",
		"02:00:00", "2", "30", "01:30:00", "02:00:00",
	}
	controlRow = []string{
		"AA0001", "1", "0", "01:53:45", "01:54:15", "3",
		"0", "0", "0", "0", "0", "0",
		"0", "0", "0", "0", "0",
		"", "", "0",
		"02:00:00", "2", "30", "01:30:00", "02:00:00",
	}
)

func TestCSVWriter(t *testing.T) {
	var buf bytes.Buffer

	w, err := report.NewCSVWriter(&buf)
	require.NoError(t, err)
	require.NoError(t, w.Write(sampleRecords()))
	require.NoError(t, w.Close())

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, report.Columns, rows[0])
	assert.Equal(t, hazardRow, rows[1])
	assert.Equal(t, controlRow, rows[2])
}

func TestXLSXWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.xlsx")

	w, err := report.NewXLSXWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(sampleRecords()))
	require.NoError(t, w.Write(sampleRecords()[:1]))
	require.NoError(t, w.Close())

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, f.Close())
	})

	assert.Equal(t, []string{report.SheetName}, f.GetSheetList())

	rows, err := f.GetRows(report.SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, report.Columns, rows[0])
	assert.Equal(t, hazardRow, rows[1])
	assert.Equal(t, controlRow, rows[2])
	assert.Equal(t, hazardRow, rows[3])
}

func TestSQLiteWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.db")
	runID := uuid.New()

	w, err := report.NewSQLiteWriter(path, runID)
	require.NoError(t, err)
	require.NoError(t, w.Write(sampleRecords()))
	require.NoError(t, w.Close())

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM records WHERE run_id = ?`, runID.String()).Scan(&count))
	assert.Equal(t, 2, count)

	var (
		minSpO2 sql.NullFloat64
		arousal int
		start   string
	)
	row := db.QueryRow(`SELECT min_spo2, arousal, period_start_time FROM records WHERE case_control = 1`)
	require.NoError(t, row.Scan(&minSpO2, &arousal, &start))
	assert.True(t, minSpO2.Valid)
	assert.InDelta(t, 88.5, minSpO2.Float64, 1e-9)
	assert.Equal(t, 2, arousal)
	assert.Equal(t, "01:59:30", start)

	require.NoError(t, db.QueryRow(`SELECT min_spo2 FROM records WHERE case_control = 0`).Scan(&minSpO2))
	assert.False(t, minSpO2.Valid)

	// Reopening appends to the same table.
	w, err = report.NewSQLiteWriter(path, uuid.New())
	require.NoError(t, err)
	require.NoError(t, w.Write(sampleRecords()))
	require.NoError(t, w.Close())

	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM records`).Scan(&count))
	assert.Equal(t, 4, count)
}
