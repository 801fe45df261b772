// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package casecross builds case-crossover control sets for arrhythmia events
// recorded during polysomnography, and annotates hazard and control periods
// with co-occurring physiological events.
package casecross

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMalformedInput marks input that cannot be parsed or validated.
	ErrMalformedInput = errors.New("malformed input")
	// ErrEpochOutOfRange is returned for stage lookups outside the hypnogram.
	ErrEpochOutOfRange = errors.New("epoch out of range")
)

// Interval is a span of absolute time. All intervals of one patient share the
// same study start anchor, so they compare directly.
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval returns the interval [start, end].
func NewInterval(start, end time.Time) (Interval, error) {
	if end.Before(start) {
		return Interval{}, fmt.Errorf("%w: interval ends %s before it starts", ErrMalformedInput, start.Sub(end))
	}
	return Interval{Start: start, End: end}, nil
}

// span builds an interval whose ordering the caller has already established.
func span(start time.Time, width time.Duration) Interval {
	return Interval{Start: start, End: start.Add(width)}
}

// Duration is the width of the interval.
func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Contains reports whether t lies in the closed interval.
func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && !t.After(iv.End)
}

// Within reports whether iv lies entirely inside outer.
func (iv Interval) Within(outer Interval) bool {
	return !iv.Start.Before(outer.Start) && !iv.End.After(outer.End)
}

// Clip truncates iv to bounds. It returns false when the two do not touch.
func (iv Interval) Clip(bounds Interval) (Interval, bool) {
	out := iv
	if out.Start.Before(bounds.Start) {
		out.Start = bounds.Start
	}
	if out.End.After(bounds.End) {
		out.End = bounds.End
	}
	if out.End.Before(out.Start) {
		return Interval{}, false
	}
	return out, true
}

func (iv Interval) String() string {
	return iv.Start.Format(time.TimeOnly) + "-" + iv.End.Format(time.TimeOnly)
}

// LabeledEvent is a scored physiological event. Limb movements carry their
// side in Label.
type LabeledEvent struct {
	Interval
	Label string
}

// Sample is a single oxygen-saturation reading.
type Sample struct {
	At    time.Time
	Value float64
}

// SleepStage is a hypnogram code for one 30 second epoch.
type SleepStage int

const (
	// Wake is the only stage code that counts as awake.
	Wake SleepStage = 0
	// StageUnknown is reported when an instant falls outside the hypnogram.
	StageUnknown SleepStage = -1
)

// Asleep reports whether the stage code is any sleep stage.
func (s SleepStage) Asleep() bool {
	return s != Wake
}

// RespiratoryType is a respiratory event sub-type.
type RespiratoryType string

const (
	CentralApnea     RespiratoryType = "central_apnea"
	ObstructiveApnea RespiratoryType = "obstructive_apnea"
	MixedApnea       RespiratoryType = "mixed_apnea"
	Hypopnea         RespiratoryType = "hypopnea"
)

// RespiratoryTypes lists the sub-types in reporting order.
var RespiratoryTypes = []RespiratoryType{CentralApnea, ObstructiveApnea, MixedApnea, Hypopnea}
