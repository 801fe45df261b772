// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package edf_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/OpenPSG/casecross/edf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var studyStart = time.Date(2003, 11, 4, 21, 48, 12, 0, time.UTC)

func psgHeader() edf.Header {
	return edf.Header{
		Version:            edf.Version0,
		PatientID:          "AA0001",
		RecordingID:        "Overnight PSG",
		StartTime:          studyStart,
		DataRecordDuration: 2 * time.Second,
		Signals: []edf.Signal{
			{
				Label:             "EEG C4-A1",
				TransducerType:    "AgAgCl electrode",
				PhysicalDimension: "uV",
				PhysicalMin:       -500,
				PhysicalMax:       500,
				DigitalMin:        -2048,
				DigitalMax:        2047,
				SamplesPerRecord:  8,
			},
			{
				Label:             "SaO2",
				TransducerType:    "Pulse oximeter",
				PhysicalDimension: "%",
				PhysicalMin:       0,
				PhysicalMax:       100,
				DigitalMin:        -32768,
				DigitalMax:        32767,
				SamplesPerRecord:  2,
			},
		},
	}
}

// writePSG writes records records where the saturation channel holds
// 90 + record index and the EEG channel holds its sample index.
func writePSG(t *testing.T, records int) *os.File {
	t.Helper()

	f, err := os.OpenFile(filepath.Join(t.TempDir(), "psg.edf"), os.O_RDWR|os.O_CREATE, 0o644)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, f.Close())
	})

	ew, err := edf.Create(f, psgHeader())
	require.NoError(t, err)

	for r := 0; r < records; r++ {
		eeg := make([]float64, 8)
		for i := range eeg {
			eeg[i] = float64(i)
		}
		sat := []float64{90 + float64(r), 90 + float64(r)}
		require.NoError(t, ew.WriteRecord([][]float64{eeg, sat}))
	}
	require.NoError(t, ew.Close())

	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)
	return f
}

func TestHeaderRoundTrip(t *testing.T) {
	f := writePSG(t, 3)

	er, err := edf.Open(f)
	require.NoError(t, err)

	hdr := er.Header()
	assert.Equal(t, "AA0001", hdr.PatientID)
	assert.Equal(t, studyStart, hdr.StartTime)
	assert.Equal(t, 3, hdr.DataRecords)
	assert.Equal(t, 2*time.Second, hdr.DataRecordDuration)
	assert.Equal(t, 2, hdr.SignalCount)
	assert.Equal(t, 3*256, hdr.HeaderBytes)
	assert.Equal(t, 1, hdr.SignalIndex("spo2", "sao2"))
	assert.Equal(t, -1, hdr.SignalIndex("Pleth"))
	assert.Equal(t, time.Second, hdr.Signals[1].SamplePeriod(hdr.DataRecordDuration))
}

func TestSignalReader(t *testing.T) {
	f := writePSG(t, 2)

	er, err := edf.Open(f)
	require.NoError(t, err)

	sr, err := er.Signal(0)
	require.NoError(t, err)

	// Read across the record boundary in uneven chunks.
	samples := make([]float64, 5)
	n, err := sr.Read(samples)
	require.NoError(t, err)
	require.Equal(t, 5, n)

	rest := make([]float64, 20)
	n, err = sr.Read(rest)
	require.Equal(t, io.EOF, err)
	require.Equal(t, 11, n)

	all := append(samples, rest[:n]...)
	for i, v := range all {
		assert.InDelta(t, float64(i%8), v, 1.0)
	}

	_, err = er.Signal(2)
	require.Error(t, err)
}

func TestReadSaturation(t *testing.T) {
	f := writePSG(t, 3)

	samples, err := edf.ReadSaturation(f)
	require.NoError(t, err)
	require.Len(t, samples, 6)

	for i, s := range samples {
		assert.Equal(t, time.Duration(i)*time.Second, s.Offset)
		assert.InDelta(t, 90+float64(i/2), s.Value, 0.01)
	}
}

func TestReadSaturationMissingChannel(t *testing.T) {
	f := writePSG(t, 1)

	_, err := edf.ReadSaturation(f, "Pleth")
	require.ErrorIs(t, err, edf.ErrSignalNotFound)
}

func TestOpenTruncatedHeader(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "short-*.edf")
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, f.Close())
	})

	_, err = f.WriteString("0       short")
	require.NoError(t, err)
	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)

	_, err = edf.Open(f)
	require.Error(t, err)
}
