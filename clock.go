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
	"strings"
	"time"
)

// EpochLength is the width of one sleep-scoring epoch.
const EpochLength = 30 * time.Second

// ClockLayout is the wall-clock format used by the study's tabular inputs.
const ClockLayout = "15:04:05"

// ParseClock parses an HH:MM:SS time of day onto the calendar date of ref.
func ParseClock(s string, ref time.Time) (time.Time, error) {
	tod, err := time.Parse(ClockLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: clock time %q: %v", ErrMalformedInput, s, err)
	}
	y, m, d := ref.Date()
	return time.Date(y, m, d, tod.Hour(), tod.Minute(), tod.Second(), 0, ref.Location()), nil
}

// RollAfter moves a time of day that appears earlier than before onto the
// following day. Clock values crossing midnight are stored without a date,
// so an earlier clock reading means the next calendar day.
func RollAfter(before, after time.Time) time.Time {
	if after.Before(before) {
		return after.AddDate(0, 0, 1)
	}
	return after
}

// RollSequence rolls each time forward past its predecessor, starting from
// anchor.
func RollSequence(anchor time.Time, times []time.Time) []time.Time {
	out := make([]time.Time, len(times))
	prev := anchor
	for i, t := range times {
		out[i] = RollAfter(prev, t)
		prev = out[i]
	}
	return out
}

// DedupeCases drops case events closer than spacing to the preceding raw
// event. The first event is always kept.
func DedupeCases(times []time.Time, spacing time.Duration) []time.Time {
	if len(times) == 0 {
		return nil
	}
	out := []time.Time{times[0]}
	for i := 1; i < len(times); i++ {
		if times[i].Sub(times[i-1]) >= spacing {
			out = append(out, times[i])
		}
	}
	return out
}
