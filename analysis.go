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
	"time"

	"go.uber.org/zap"
)

// Record is one hazard or control period of a retained case event together
// with its event annotations.
type Record struct {
	PatientID string
	// CaseNumber numbers the patient's retained case events from 1.
	CaseNumber int
	// Case is true for the hazard period and false for control periods.
	Case   bool
	Period Interval
	// Stage is the sleep stage at the start of the period.
	Stage SleepStage

	LimbMovement      bool
	Respiratory       bool
	RespiratoryByType map[RespiratoryType]bool

	Arousals           int
	LimbArousals       int
	LimbRespiratory    int
	ArousalRespiratory int
	ArousalLimbs       int

	// SpO2 is nil when the period holds no usable saturation reading.
	SpO2         *Saturation
	Desaturation bool

	CaseOnset time.Time
	CaseStage SleepStage
	Chunk     Interval
}

// Skip reasons reported for case events that produce no records.
const (
	SkipAwake        = "awake"
	SkipOutsideSleep = "outside sleep period"
	SkipControls     = "insufficient controls"
)

// PatientSummary counts what happened to a patient's case events.
type PatientSummary struct {
	PatientID string
	Cases     int
	Retained  int
	Skipped   map[string]int
}

// AnalyzePatient builds the hazard and control records of every case event
// of p. Case events are visited in recording order and all sampling draws
// come from sampler, so equal inputs and seeds give identical records.
func AnalyzePatient(p *Patient, cfg Config, sampler *Sampler, logger *zap.Logger) ([]Record, PatientSummary) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("patient", p.ID))

	summary := PatientSummary{
		PatientID: p.ID,
		Cases:     len(p.CaseTimes),
		Skipped:   map[string]int{},
	}
	skip := func(caseTime time.Time, reason string) {
		summary.Skipped[reason]++
		logger.Debug("Skipping case event",
			zap.Time("onset", caseTime),
			zap.String("reason", reason),
		)
	}

	chunkWidth, ok := EvenChunkWidth(p.SleepOnset, p.LightsOn, cfg.ChunkWidth)
	if !ok {
		logger.Warn("Empty sleep period",
			zap.Time("sleep_onset", p.SleepOnset),
			zap.Time("lights_on", p.LightsOn),
		)
	}

	var records []Record
	for _, caseTime := range p.CaseTimes {
		if !p.IsSleep(caseTime) {
			skip(caseTime, SkipAwake)
			continue
		}

		chunk, ok := ChunkContaining(caseTime, p.SleepOnset, p.LightsOn, chunkWidth)
		if !ok {
			skip(caseTime, SkipOutsideSleep)
			continue
		}

		windows := ControlWindows(caseTime, chunk, cfg.ControlWindow, cfg.ControlInterval)
		periods := make([][]Interval, len(windows))
		for i, w := range windows {
			periods[i] = p.ControlPeriods(w, cfg.ControlPeriod)
		}

		controls, ok := sampler.SelectControls(periods, cfg.controlPolicy())
		if !ok {
			skip(caseTime, SkipControls)
			continue
		}

		summary.Retained++
		hazard := HazardPeriod(caseTime, cfg.ControlPeriod, cfg.HazardOffset)
		caseStage := p.stageOrUnknown(caseTime)

		records = append(records, p.annotate(cfg, hazard, true, summary.Retained, caseTime, caseStage, chunk))
		for _, ctrl := range controls {
			records = append(records, p.annotate(cfg, ctrl, false, summary.Retained, caseTime, caseStage, chunk))
		}
	}

	return records, summary
}

func (p *Patient) annotate(cfg Config, period Interval, isCase bool, number int, caseTime time.Time, caseStage SleepStage, chunk Interval) Record {
	ev := p.events
	rec := Record{
		PatientID:          p.ID,
		CaseNumber:         number,
		Case:               isCase,
		Period:             period,
		Stage:              p.stageOrUnknown(period.Start),
		LimbMovement:       ev.AnyDuring(LimbMovements, period),
		Respiratory:        ev.AnyDuring(Respiratory, period),
		RespiratoryByType:  make(map[RespiratoryType]bool, len(RespiratoryTypes)),
		Arousals:           ev.CountDuring(Arousals, period),
		LimbArousals:       ev.CountDuring(LimbWithArousal, period),
		LimbRespiratory:    ev.CountDuring(LimbWithRespiratory, period),
		ArousalRespiratory: ev.CountDuring(ArousalWithRespiratory, period),
		ArousalLimbs:       ev.CountDuring(ArousalWithLimb, period),
		CaseOnset:          caseTime,
		CaseStage:          caseStage,
		Chunk:              chunk,
	}
	for _, t := range RespiratoryTypes {
		rec.RespiratoryByType[t] = ev.AnyDuring(RespiratoryKind(t), period)
	}
	if sat, ok := ev.Saturation(period); ok {
		rec.SpO2 = &sat
		rec.Desaturation = sat.Min < cfg.DesaturationThreshold
	}
	return rec
}

// stageOrUnknown reports StageUnknown for instants outside the hypnogram,
// which a hazard period near the start of the recording can reach.
func (p *Patient) stageOrUnknown(t time.Time) SleepStage {
	stage, err := p.SleepStage(t)
	if err != nil {
		return StageUnknown
	}
	return stage
}
