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
	"fmt"
	"math"
	"time"
)

// RawEvent is a scored event as it appears in an annotation file: a label
// and an onset and duration in seconds from the study start.
type RawEvent struct {
	Label    string
	Offset   float64
	Duration float64
}

// RawSample is an oxygen-saturation reading at an offset in seconds from the
// study start.
type RawSample struct {
	Offset  float64
	Percent float64
}

// EventSources holds one patient's unprocessed physiological event lists.
type EventSources struct {
	LimbMovements []RawEvent
	Arousals      []RawEvent
	Respiratory   map[RespiratoryType][]RawEvent
	Oxygen        []RawSample
}

// PatientInput is everything the external collaborators supply for one patient.
type PatientInput struct {
	ID         string
	StudyStart time.Time
	SleepOnset time.Time
	LightsOn   time.Time
	// CaseTimes are the de-duplicated case event onsets, in recording order.
	CaseTimes []time.Time
	// Stages holds one code per epoch; Stages[0] is epoch 1.
	Stages []SleepStage
	Events EventSources
}

// Patient is the frozen per-patient view every query reads from.
type Patient struct {
	ID         string
	StudyStart time.Time
	SleepOnset time.Time
	LightsOn   time.Time
	CaseTimes  []time.Time

	stages []SleepStage
	events *EventStore
}

// NewPatient validates in, disambiguates its clock times across midnight and
// builds the event store.
func NewPatient(in PatientInput, cfg Config) (*Patient, error) {
	if in.ID == "" {
		return nil, fmt.Errorf("%w: patient without identifier", ErrMalformedInput)
	}
	if in.StudyStart.IsZero() {
		return nil, fmt.Errorf("%w: patient %s: missing study start", ErrMalformedInput, in.ID)
	}
	if in.SleepOnset.IsZero() || in.LightsOn.IsZero() {
		return nil, fmt.Errorf("%w: patient %s: missing sleep onset or lights on", ErrMalformedInput, in.ID)
	}

	p := &Patient{
		ID:         in.ID,
		StudyStart: in.StudyStart,
		stages:     append([]SleepStage(nil), in.Stages...),
	}
	p.SleepOnset = RollAfter(p.StudyStart, in.SleepOnset)
	p.LightsOn = RollAfter(p.SleepOnset, in.LightsOn)
	p.CaseTimes = RollSequence(p.StudyStart, in.CaseTimes)

	for i, s := range p.stages {
		if s < 0 {
			return nil, fmt.Errorf("%w: patient %s: negative stage code %d at epoch %d", ErrMalformedInput, in.ID, s, i+1)
		}
	}

	events, err := NewEventStore(p.StudyStart, in.Events, cfg.storeOptions())
	if err != nil {
		return nil, fmt.Errorf("error building events for patient %s: %w", in.ID, err)
	}
	p.events = events

	return p, nil
}

// Events returns the patient's event store.
func (p *Patient) Events() *EventStore {
	return p.events
}

// Epochs is the number of scored epochs.
func (p *Patient) Epochs() int {
	return len(p.stages)
}

// EpochOf maps an instant to its 1-based epoch number. Instants before the
// study start map to epochs below 1.
func (p *Patient) EpochOf(t time.Time) int {
	d := t.Sub(p.StudyStart)
	e := d / EpochLength
	if d < 0 && d%EpochLength != 0 {
		e--
	}
	return int(e) + 1
}

// EpochSpan is the 30 second interval covered by epoch.
func (p *Patient) EpochSpan(epoch int) Interval {
	return span(p.StudyStart.Add(time.Duration(epoch-1)*EpochLength), EpochLength)
}

// StageOfEpoch looks up the stage code of a 1-based epoch.
func (p *Patient) StageOfEpoch(epoch int) (SleepStage, error) {
	if epoch < 1 || epoch > len(p.stages) {
		return StageUnknown, fmt.Errorf("%w: epoch %d of %d", ErrEpochOutOfRange, epoch, len(p.stages))
	}
	return p.stages[epoch-1], nil
}

// SleepStage looks up the stage code at t.
func (p *Patient) SleepStage(t time.Time) (SleepStage, error) {
	return p.StageOfEpoch(p.EpochOf(t))
}

// IsSleep reports whether t falls in a scored sleep epoch.
func (p *Patient) IsSleep(t time.Time) bool {
	return p.asleepBetween(p.EpochOf(t), p.EpochOf(t))
}

// IsSleepInterval reports whether every epoch iv touches, including the
// epoch holding iv.End, is scored as sleep. Epochs outside the hypnogram
// count as not asleep.
func (p *Patient) IsSleepInterval(iv Interval) bool {
	return p.asleepBetween(p.EpochOf(iv.Start), p.EpochOf(iv.End))
}

func (p *Patient) asleepBetween(first, last int) bool {
	if first < 1 || last > len(p.stages) || first > last {
		return false
	}
	for _, s := range p.stages[first-1 : last] {
		if !s.Asleep() {
			return false
		}
	}
	return true
}

// secondsAfter converts an offset in seconds to an instant after start.
func secondsAfter(start time.Time, seconds float64) (time.Time, error) {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return time.Time{}, fmt.Errorf("%w: offset %v is not finite", ErrMalformedInput, seconds)
	}
	return start.Add(time.Duration(math.Round(seconds * float64(time.Second)))), nil
}
