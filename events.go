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
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// EventKind names one collection of the event store.
type EventKind string

const (
	LimbMovements EventKind = "limb_movements"
	Arousals      EventKind = "arousals"
	// Respiratory is every respiratory sub-type merged.
	Respiratory EventKind = "respiratory"

	LimbWithArousal        EventKind = "limb_with_arousal"
	LimbWithRespiratory    EventKind = "limb_with_respiratory"
	ArousalWithRespiratory EventKind = "arousal_with_respiratory"
	ArousalWithLimb        EventKind = "arousal_with_limb"
)

// RespiratoryKind is the collection holding one respiratory sub-type.
func RespiratoryKind(t RespiratoryType) EventKind {
	return EventKind("respiratory/" + string(t))
}

// StoreOptions controls event store construction.
type StoreOptions struct {
	Associations Associations
	// LimbCoalesce is the onset tolerance for merging left and right limb
	// movement detections.
	LimbCoalesce time.Duration
	// SpO2Floor excludes saturation readings at or below it as artefacts.
	SpO2Floor float64
}

// EventStore holds one patient's events as absolute intervals sorted by
// start, plus the derived association views. It is read-only once built.
type EventStore struct {
	collections map[EventKind][]LabeledEvent
	oxygen      []Sample
	spo2Floor   float64
}

// NewEventStore converts raw events to absolute intervals anchored at
// studyStart, coalesces limb movements and computes the derived views.
func NewEventStore(studyStart time.Time, src EventSources, opts StoreOptions) (*EventStore, error) {
	toEvents := func(name string, raw []RawEvent) ([]LabeledEvent, error) {
		events, err := absoluteEvents(studyStart, raw)
		if err != nil {
			return nil, fmt.Errorf("error converting %s: %w", name, err)
		}
		return events, nil
	}

	limbs, err := toEvents("limb movements", src.LimbMovements)
	if err != nil {
		return nil, err
	}
	limbs = coalesceLimbMovements(limbs, opts.LimbCoalesce)

	arousals, err := toEvents("arousals", src.Arousals)
	if err != nil {
		return nil, err
	}

	c := map[EventKind][]LabeledEvent{
		LimbMovements: limbs,
		Arousals:      arousals,
	}

	var respiratory []LabeledEvent
	for _, t := range RespiratoryTypes {
		events, err := toEvents(string(t), src.Respiratory[t])
		if err != nil {
			return nil, err
		}
		c[RespiratoryKind(t)] = events
		respiratory = append(respiratory, events...)
	}
	for t := range src.Respiratory {
		if _, ok := c[RespiratoryKind(t)]; !ok {
			return nil, fmt.Errorf("%w: unknown respiratory type %q", ErrMalformedInput, t)
		}
	}
	sortEvents(respiratory)
	c[Respiratory] = respiratory

	rules := opts.Associations
	c[LimbWithArousal] = associatedWith(limbs, arousals, rules.LimbArousal, true)
	c[ArousalWithLimb] = associatedWith(arousals, limbs, rules.LimbArousal, true)
	c[LimbWithRespiratory] = associatedWith(limbs, respiratory, rules.LimbRespiratory, false)
	c[ArousalWithRespiratory] = associatedWith(arousals, respiratory, rules.ArousalRespiratory, false)

	oxygen := make([]Sample, 0, len(src.Oxygen))
	for _, s := range src.Oxygen {
		at, err := secondsAfter(studyStart, s.Offset)
		if err != nil {
			return nil, fmt.Errorf("error converting oxygen saturation: %w", err)
		}
		oxygen = append(oxygen, Sample{At: at, Value: s.Percent})
	}
	sort.SliceStable(oxygen, func(i, j int) bool { return oxygen[i].At.Before(oxygen[j].At) })

	return &EventStore{
		collections: c,
		oxygen:      oxygen,
		spo2Floor:   opts.SpO2Floor,
	}, nil
}

func absoluteEvents(studyStart time.Time, raw []RawEvent) ([]LabeledEvent, error) {
	events := make([]LabeledEvent, 0, len(raw))
	for _, r := range raw {
		if r.Duration < 0 {
			return nil, fmt.Errorf("%w: %q at %.1fs has negative duration %.1fs", ErrMalformedInput, r.Label, r.Offset, r.Duration)
		}
		start, err := secondsAfter(studyStart, r.Offset)
		if err != nil {
			return nil, err
		}
		end, err := secondsAfter(start, r.Duration)
		if err != nil {
			return nil, err
		}
		events = append(events, LabeledEvent{Interval: Interval{Start: start, End: end}, Label: r.Label})
	}
	sortEvents(events)
	return events, nil
}

func sortEvents(events []LabeledEvent) {
	sort.SliceStable(events, func(i, j int) bool { return events[i].Start.Before(events[j].Start) })
}

// Events returns a copy of one collection.
func (s *EventStore) Events(kind EventKind) []LabeledEvent {
	return append([]LabeledEvent(nil), s.collections[kind]...)
}

// GetDuring returns the events of kind that start within period: at or after
// its start and strictly before its end.
func (s *EventStore) GetDuring(kind EventKind, period Interval) []LabeledEvent {
	events := s.collections[kind]
	lo := sort.Search(len(events), func(i int) bool { return !events[i].Start.Before(period.Start) })
	hi := sort.Search(len(events), func(i int) bool { return !events[i].Start.Before(period.End) })
	if hi <= lo {
		return nil
	}
	return append([]LabeledEvent(nil), events[lo:hi]...)
}

// CountDuring counts the events of kind that start within period.
func (s *EventStore) CountDuring(kind EventKind, period Interval) int {
	return len(s.GetDuring(kind, period))
}

// AnyDuring reports whether any event of kind starts within period.
func (s *EventStore) AnyDuring(kind EventKind, period Interval) bool {
	return s.CountDuring(kind, period) > 0
}

// GetDuring filters an arbitrary event list with the same rule as
// EventStore.GetDuring.
func GetDuring(events []LabeledEvent, period Interval) []LabeledEvent {
	var out []LabeledEvent
	for _, ev := range events {
		if !ev.Start.Before(period.Start) && ev.Start.Before(period.End) {
			out = append(out, ev)
		}
	}
	return out
}

// CountDuring counts the events of an arbitrary list that start within period.
func CountDuring(events []LabeledEvent, period Interval) int {
	return len(GetDuring(events, period))
}

// AnyDuring reports whether any event of an arbitrary list starts within period.
func AnyDuring(events []LabeledEvent, period Interval) bool {
	return CountDuring(events, period) > 0
}

// Saturation summarises the oxygen saturation over a period.
type Saturation struct {
	Min  float64
	Mean float64
	// Samples is the number of readings used.
	Samples int
}

// Saturation summarises the readings taken within period, ignoring readings
// at or below the artefact floor. It returns false when no usable reading
// remains.
func (s *EventStore) Saturation(period Interval) (Saturation, bool) {
	lo := sort.Search(len(s.oxygen), func(i int) bool { return !s.oxygen[i].At.Before(period.Start) })

	var values []float64
	for _, sample := range s.oxygen[lo:] {
		if !sample.At.Before(period.End) {
			break
		}
		if sample.Value > s.spo2Floor {
			values = append(values, sample.Value)
		}
	}
	if len(values) == 0 {
		return Saturation{}, false
	}

	return Saturation{
		Min:     floats.Min(values),
		Mean:    stat.Mean(values, nil),
		Samples: len(values),
	}, true
}
