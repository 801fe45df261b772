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

// chunkTolerance absorbs rounding in the chunk width at the end of the sleep
// period.
const chunkTolerance = time.Second

// EvenChunkWidth splits [onset, lightsOn] into the whole number of chunks of
// roughly ideal width that fit, and returns the exact chunk width. A sleep
// period shorter than ideal is a single chunk. It returns false for an empty
// or inverted sleep period.
func EvenChunkWidth(onset, lightsOn time.Time, ideal time.Duration) (time.Duration, bool) {
	total := lightsOn.Sub(onset)
	if total <= 0 || ideal <= 0 {
		return 0, false
	}
	n := total / ideal
	if n < 1 {
		return total, true
	}
	return total / n, true
}

// ChunkContaining returns the chunk of [ts, tf] that holds t, walking forward
// from ts in steps of width. An instant on a chunk boundary belongs to the
// following chunk, except at the end of the final chunk.
func ChunkContaining(t, ts, tf time.Time, width time.Duration) (Interval, bool) {
	if width <= 0 || t.Before(ts) || t.After(tf) {
		return Interval{}, false
	}

	limit := tf.Add(chunkTolerance)
	for chunk := span(ts, width); !chunk.End.After(limit); chunk = span(chunk.End, width) {
		if t.Before(chunk.End) {
			return chunk, true
		}
		// The final chunk keeps its end boundary and absorbs the rounding
		// left over from the chunk width. A remainder wider than that
		// belongs to no chunk.
		if chunk.End.Add(width).After(limit) {
			if t.After(chunk.End.Add(chunkTolerance)) {
				return Interval{}, false
			}
			return chunk, true
		}
	}
	return Interval{}, false
}

// ControlWindows steps away from the case event in both directions, one
// interval at a time, and returns a window of windowWidth centred on each
// step, clipped to chunk. The first interval on each side is skipped as a
// buffer around the event. Backward windows come first, nearest first.
func ControlWindows(caseTime time.Time, chunk Interval, windowWidth, interval time.Duration) []Interval {
	if interval <= 0 || windowWidth < 0 {
		return nil
	}

	half := windowWidth / 2
	var windows []Interval
	add := func(t time.Time) {
		if w, ok := span(t.Add(-half), windowWidth).Clip(chunk); ok {
			windows = append(windows, w)
		}
	}

	for t := caseTime.Add(-interval); !t.Before(chunk.Start.Add(-half)); t = t.Add(-interval) {
		add(t)
	}
	for t := caseTime.Add(interval); !t.After(chunk.End.Add(half)); t = t.Add(interval) {
		add(t)
	}
	return windows
}

// SleepPeriodsWithin returns the maximal runs of consecutive sleep epochs
// touched by window, clipped to the window's exact bounds. It returns nil
// when the window holds no sleep epoch.
func (p *Patient) SleepPeriodsWithin(window Interval) []Interval {
	var (
		runs []Interval
		run  *Interval
	)
	for e := p.EpochOf(window.Start); e <= p.EpochOf(window.End); e++ {
		stage, err := p.StageOfEpoch(e)
		if err != nil || !stage.Asleep() {
			run = nil
			continue
		}
		if run == nil {
			runs = append(runs, p.EpochSpan(e))
			run = &runs[len(runs)-1]
			continue
		}
		run.End = p.EpochSpan(e).End
	}

	var out []Interval
	for _, r := range runs {
		if clipped, ok := r.Clip(window); ok && clipped.Duration() > 0 {
			out = append(out, clipped)
		}
	}
	return out
}

// ControlPeriods tiles every sleep run within window with back-to-back
// periods of width, starting at the run's start. Remainders shorter than
// width are dropped. It returns nil when no period fits.
func (p *Patient) ControlPeriods(window Interval, width time.Duration) []Interval {
	if width <= 0 {
		return nil
	}
	var periods []Interval
	for _, run := range p.SleepPeriodsWithin(window) {
		for period := span(run.Start, width); !period.End.After(run.End); period = span(period.End, width) {
			periods = append(periods, period)
		}
	}
	return periods
}

// HazardPeriod is the period of width ending offset before the case event.
func HazardPeriod(caseTime time.Time, width, offset time.Duration) Interval {
	return span(caseTime.Add(-offset-width), width)
}
