// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package ingest_test

import (
	"strings"
	"testing"
	"time"

	"github.com/OpenPSG/casecross"
	"github.com/OpenPSG/casecross/ingest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clock(day, h, m, s int) time.Time {
	return ingest.ReferenceDate.AddDate(0, 0, day).Add(
		time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second)
}

const sleepTimesCSV = `PPTID,lights_off,sleep_latency,stage1,stage2,lights_on
aa0001,22:50:00,12.5,,,06:10:00
AA0002, 23:30:00, 0, a, b, 07:00:00
`

func TestReadSleepTimes(t *testing.T) {
	got, err := ingest.ReadSleepTimes(strings.NewReader(sleepTimesCSV))
	require.NoError(t, err)

	assert.Equal(t, map[string]ingest.SleepTimes{
		"AA0001": {
			LightsOff:  clock(0, 22, 50, 0),
			SleepOnset: clock(0, 23, 2, 30),
			LightsOn:   clock(1, 6, 10, 0),
		},
		"AA0002": {
			LightsOff:  clock(0, 23, 30, 0),
			SleepOnset: clock(0, 23, 30, 0),
			LightsOn:   clock(1, 7, 0, 0),
		},
	}, got)
}

func TestReadSleepTimesErrors(t *testing.T) {
	tests := []struct {
		name string
		csv  string
	}{
		{"too few columns", "aa0001,22:50:00,12.5\n"},
		{"bad clock", "aa0001,22:50,12.5,,,06:10:00\n"},
		{"negative latency", "aa0001,22:50:00,-1,,,06:10:00\n"},
		{"bad latency", "aa0001,22:50:00,soon,,,06:10:00\n"},
		{"NaN latency", "aa0001,22:50:00,NaN,,,06:10:00\n"},
		{"infinite latency", "aa0001,22:50:00,+Inf,,,06:10:00\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ingest.ReadSleepTimes(strings.NewReader(tt.csv))
			require.ErrorIs(t, err, casecross.ErrMalformedInput)
		})
	}
}

func TestReadCaseTimes(t *testing.T) {
	const csv = `aa0001,22:45:00,23:30:00,23:33:00,00:15:00,,
aa0002,21:00:00
`
	got, order, err := ingest.ReadCaseTimes(strings.NewReader(csv), 5*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, []string{"AA0001", "AA0002"}, order)
	assert.Equal(t, ingest.CaseTimes{
		StudyStart: clock(0, 22, 45, 0),
		Onsets:     []time.Time{clock(0, 23, 30, 0), clock(1, 0, 15, 0)},
	}, got["AA0001"])
	assert.Equal(t, clock(0, 21, 0, 0), got["AA0002"].StudyStart)
	assert.Empty(t, got["AA0002"].Onsets)
}

func TestReadCaseTimesErrors(t *testing.T) {
	_, _, err := ingest.ReadCaseTimes(strings.NewReader("aa0001\n"), 5*time.Minute)
	require.ErrorIs(t, err, casecross.ErrMalformedInput)

	_, _, err = ingest.ReadCaseTimes(strings.NewReader("aa0001,,,\n"), 5*time.Minute)
	require.ErrorIs(t, err, casecross.ErrMalformedInput)

	_, _, err = ingest.ReadCaseTimes(strings.NewReader("aa0001,22:45:00,midnight\n"), 5*time.Minute)
	require.ErrorIs(t, err, casecross.ErrMalformedInput)
}
