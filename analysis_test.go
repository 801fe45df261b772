// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package casecross_test

import (
	"testing"
	"time"

	"github.com/OpenPSG/casecross"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// studyInput is a two hour recording, asleep throughout except for the
// epoch holding the third case event. Sleep starts ten minutes in.
func studyInput(id string) casecross.PatientInput {
	hypnogram := repeatStage(2, 240)
	hypnogram[200] = casecross.Wake

	in := patientInput(id, hypnogram)
	in.SleepOnset = at(10 * time.Minute)
	in.CaseTimes = []time.Time{
		at(5 * time.Minute),   // before sleep onset
		at(45 * time.Minute),  // retained
		at(100 * time.Minute), // awake
	}
	in.Events = casecross.EventSources{
		LimbMovements: []casecross.RawEvent{{Label: "left", Offset: 2680, Duration: 1}},
		Arousals:      []casecross.RawEvent{{Label: "Arousal (ASDA)", Offset: 2681.2, Duration: 3}},
		Respiratory: map[casecross.RespiratoryType][]casecross.RawEvent{
			casecross.ObstructiveApnea: {{Label: "Obstructive Apnea", Offset: 2650, Duration: 29.8}},
			casecross.Hypopnea:         {{Label: "Hypopnea", Offset: 2690, Duration: 10}},
		},
		Oxygen: []casecross.RawSample{
			{Offset: 2670, Percent: 95},
			{Offset: 2690, Percent: 85},
			{Offset: 2695, Percent: 10},
		},
	}
	return in
}

func TestAnalyzePatient(t *testing.T) {
	cfg := casecross.DefaultConfig()
	p, err := casecross.NewPatient(studyInput("P1"), cfg)
	require.NoError(t, err)

	records, summary := casecross.AnalyzePatient(p, cfg, casecross.NewSampler(cfg.Seed, p.ID), zaptest.NewLogger(t))

	assert.Equal(t, casecross.PatientSummary{
		PatientID: "P1",
		Cases:     3,
		Retained:  1,
		Skipped: map[string]int{
			casecross.SkipOutsideSleep: 1,
			casecross.SkipAwake:        1,
		},
	}, summary)

	require.Len(t, records, 1+cfg.TargetControls)

	chunk := interval(10*time.Minute, 46*time.Minute+40*time.Second)
	hazard := records[0]
	assert.True(t, hazard.Case)
	assert.Equal(t, "P1", hazard.PatientID)
	assert.Equal(t, 1, hazard.CaseNumber)
	assert.Equal(t, interval(44*time.Minute+30*time.Second, 45*time.Minute), hazard.Period)
	assert.Equal(t, casecross.SleepStage(2), hazard.Stage)
	assert.Equal(t, casecross.SleepStage(2), hazard.CaseStage)
	assert.Equal(t, at(45*time.Minute), hazard.CaseOnset)
	assert.Equal(t, chunk, hazard.Chunk)

	assert.True(t, hazard.LimbMovement)
	assert.True(t, hazard.Respiratory)
	assert.Equal(t, map[casecross.RespiratoryType]bool{
		casecross.CentralApnea:     false,
		casecross.ObstructiveApnea: false,
		casecross.MixedApnea:       false,
		casecross.Hypopnea:         true,
	}, hazard.RespiratoryByType)
	assert.Equal(t, 1, hazard.Arousals)
	assert.Equal(t, 1, hazard.LimbArousals)
	assert.Equal(t, 1, hazard.ArousalLimbs)
	assert.Equal(t, 1, hazard.LimbRespiratory)
	assert.Equal(t, 0, hazard.ArousalRespiratory)

	require.NotNil(t, hazard.SpO2)
	assert.InDelta(t, 85, hazard.SpO2.Min, 1e-9)
	assert.InDelta(t, 90, hazard.SpO2.Mean, 1e-9)
	assert.True(t, hazard.Desaturation)

	for _, ctrl := range records[1:] {
		assert.False(t, ctrl.Case)
		assert.Equal(t, 1, ctrl.CaseNumber)
		assert.Equal(t, cfg.ControlPeriod, ctrl.Period.Duration())
		assert.True(t, ctrl.Period.Within(chunk), "control %s outside chunk", ctrl.Period)
		assert.True(t, p.IsSleepInterval(ctrl.Period))
		assert.True(t, ctrl.Period.End.Before(at(45*time.Minute)))
		assert.Equal(t, hazard.CaseOnset, ctrl.CaseOnset)
		assert.Equal(t, chunk, ctrl.Chunk)
		assert.Nil(t, ctrl.SpO2)
		assert.False(t, ctrl.LimbMovement)
	}
	// Backward windows are visited nearest first.
	for i := 2; i < len(records); i++ {
		assert.True(t, records[i].Period.End.Before(records[i-1].Period.Start), "controls not in window order")
	}
}

func TestAnalyzePatientInsufficientControls(t *testing.T) {
	cfg := casecross.DefaultConfig()
	cfg.TargetControls = 10

	p, err := casecross.NewPatient(studyInput("P1"), cfg)
	require.NoError(t, err)

	records, summary := casecross.AnalyzePatient(p, cfg, casecross.NewSampler(cfg.Seed, p.ID), zaptest.NewLogger(t))
	assert.Empty(t, records)
	assert.Zero(t, summary.Retained)
	assert.Equal(t, 1, summary.Skipped[casecross.SkipControls])
}

func TestAnalyzePatientEmptySleepPeriod(t *testing.T) {
	cfg := casecross.DefaultConfig()

	in := studyInput("P1")
	in.LightsOn = in.SleepOnset
	p, err := casecross.NewPatient(in, cfg)
	require.NoError(t, err)

	records, summary := casecross.AnalyzePatient(p, cfg, casecross.NewSampler(cfg.Seed, p.ID), zaptest.NewLogger(t))
	assert.Empty(t, records)
	assert.Equal(t, 2, summary.Skipped[casecross.SkipOutsideSleep])
	assert.Equal(t, 1, summary.Skipped[casecross.SkipAwake])
}
