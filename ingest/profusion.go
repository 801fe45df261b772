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
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/OpenPSG/casecross"
)

// Limb movement side labels.
const (
	SideLeft  = "left"
	SideRight = "right"
)

// Annotations is the scored content of a Compumedics Profusion XML file.
type Annotations struct {
	Stages        []casecross.SleepStage
	LimbMovements []casecross.RawEvent
	Arousals      []casecross.RawEvent
	Respiratory   map[casecross.RespiratoryType][]casecross.RawEvent
	// Ignored counts scored events of kinds the analysis does not use.
	Ignored int
}

type profusionDoc struct {
	XMLName     xml.Name         `xml:"CMPStudyConfig"`
	EpochLength float64          `xml:"EpochLength"`
	Events      []profusionEvent `xml:"ScoredEvents>ScoredEvent"`
	Stages      []int            `xml:"SleepStages>SleepStage"`
}

type profusionEvent struct {
	Name     string  `xml:"Name"`
	Start    float64 `xml:"Start"`
	Duration float64 `xml:"Duration"`
}

// ReadAnnotations parses a Profusion annotation file.
func ReadAnnotations(r io.Reader) (*Annotations, error) {
	var doc profusionDoc
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: error parsing annotations: %v", casecross.ErrMalformedInput, err)
	}
	if doc.EpochLength != 0 && doc.EpochLength != casecross.EpochLength.Seconds() {
		return nil, fmt.Errorf("%w: epoch length %vs, expected %vs",
			casecross.ErrMalformedInput, doc.EpochLength, casecross.EpochLength.Seconds())
	}

	a := &Annotations{
		Stages:      make([]casecross.SleepStage, len(doc.Stages)),
		Respiratory: map[casecross.RespiratoryType][]casecross.RawEvent{},
	}
	for i, s := range doc.Stages {
		a.Stages[i] = casecross.SleepStage(s)
	}

	for _, ev := range doc.Events {
		raw := casecross.RawEvent{Offset: ev.Start, Duration: ev.Duration}
		name := strings.ToLower(strings.TrimSpace(ev.Name))

		switch {
		case strings.HasPrefix(name, "arousal"):
			raw.Label = ev.Name
			a.Arousals = append(a.Arousals, raw)
		case isLimbMovement(name):
			raw.Label = limbSide(name)
			if raw.Label == "" {
				a.Ignored++
				continue
			}
			a.LimbMovements = append(a.LimbMovements, raw)
		default:
			t, ok := respiratoryType(name)
			if !ok {
				a.Ignored++
				continue
			}
			raw.Label = ev.Name
			a.Respiratory[t] = append(a.Respiratory[t], raw)
		}
	}
	return a, nil
}

func isLimbMovement(name string) bool {
	return strings.HasPrefix(name, "limb movement") || strings.HasPrefix(name, "plm")
}

func limbSide(name string) string {
	switch {
	case strings.Contains(name, "left"):
		return SideLeft
	case strings.Contains(name, "right"):
		return SideRight
	}
	return ""
}

func respiratoryType(name string) (casecross.RespiratoryType, bool) {
	switch {
	case strings.Contains(name, "central apnea"):
		return casecross.CentralApnea, true
	case strings.Contains(name, "obstructive apnea"):
		return casecross.ObstructiveApnea, true
	case strings.Contains(name, "mixed apnea"):
		return casecross.MixedApnea, true
	case strings.Contains(name, "hypopnea"):
		return casecross.Hypopnea, true
	}
	return "", false
}
