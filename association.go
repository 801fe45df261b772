// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package casecross

import "time"

// AssociationRule bounds the gap between two events for them to count as
// associated. The gap runs from the end of the first event to the start of
// the second and is negative when they overlap. Both bounds are exclusive and
// optional.
type AssociationRule struct {
	GapMin *time.Duration `yaml:"gap_min"`
	GapMax *time.Duration `yaml:"gap_max"`
	// FixedOrder requires the first argument to start no later than the
	// second instead of sorting the pair by start.
	FixedOrder bool `yaml:"fixed_order"`
}

// Associated reports whether a and b are associated under rule.
func Associated(a, b Interval, rule AssociationRule) bool {
	first, second := a, b
	if first.Start.After(second.Start) {
		if rule.FixedOrder {
			return false
		}
		first, second = second, first
	} else if !rule.FixedOrder && first.Start.Equal(second.Start) && first.End.Before(second.End) {
		// Same start: the longer event goes first so the pair orders the
		// same way in both argument orders.
		first, second = second, first
	}

	gap := second.Start.Sub(first.End)
	if rule.GapMin != nil && gap <= *rule.GapMin {
		return false
	}
	if rule.GapMax != nil && gap >= *rule.GapMax {
		return false
	}
	return true
}

// CoalescesWith reports whether next is the other-side detection of the same
// limb movement as prev: opposite side labels and next starting less than dt
// after prev.
func CoalescesWith(prev, next LabeledEvent, dt time.Duration) bool {
	if prev.Label == next.Label {
		return false
	}
	d := next.Start.Sub(prev.Start)
	return d >= 0 && d < dt
}

// coalesceLimbMovements merges opposite-side detections of one movement into
// a single event spanning both, labelled with the later side. events must be
// sorted by start.
func coalesceLimbMovements(events []LabeledEvent, dt time.Duration) []LabeledEvent {
	var out []LabeledEvent
	for _, ev := range events {
		if n := len(out); n > 0 && CoalescesWith(out[n-1], ev, dt) {
			merged := &out[n-1]
			if ev.End.After(merged.End) {
				merged.End = ev.End
			}
			merged.Label = ev.Label
			continue
		}
		out = append(out, ev)
	}
	return out
}

// associatedWith keeps the events of subjects that are associated with at
// least one event of others. When subjectFirst is false the other event is
// passed as the first argument to Associated, which matters for fixed-order
// rules.
func associatedWith(subjects, others []LabeledEvent, rule AssociationRule, subjectFirst bool) []LabeledEvent {
	var out []LabeledEvent
	for _, s := range subjects {
		for _, o := range others {
			var ok bool
			if subjectFirst {
				ok = Associated(s.Interval, o.Interval, rule)
			} else {
				ok = Associated(o.Interval, s.Interval, rule)
			}
			if ok {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

// Associations holds the rule for each derived event relation.
type Associations struct {
	// LimbArousal links limb movements and arousals in either direction.
	LimbArousal AssociationRule `yaml:"limb_arousal"`
	// LimbRespiratory links a limb movement to a preceding respiratory
	// event; the respiratory event is the first argument.
	LimbRespiratory AssociationRule `yaml:"limb_respiratory"`
	// ArousalRespiratory links an arousal to a preceding respiratory event;
	// the respiratory event is the first argument.
	ArousalRespiratory AssociationRule `yaml:"arousal_respiratory"`
}

// DefaultAssociations returns the half-second tolerance rules.
func DefaultAssociations() Associations {
	return Associations{
		LimbArousal: AssociationRule{
			GapMax: durationPtr(500 * time.Millisecond),
		},
		LimbRespiratory: AssociationRule{
			GapMin:     durationPtr(-500 * time.Millisecond),
			GapMax:     durationPtr(500 * time.Millisecond),
			FixedOrder: true,
		},
		ArousalRespiratory: AssociationRule{
			GapMin:     durationPtr(-500 * time.Millisecond),
			GapMax:     durationPtr(500 * time.Millisecond),
			FixedOrder: true,
		},
	}
}

func durationPtr(d time.Duration) *time.Duration {
	return &d
}
