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
)

func gap(d time.Duration) *time.Duration {
	return &d
}

func TestAssociated(t *testing.T) {
	within := casecross.AssociationRule{GapMax: gap(500 * time.Millisecond)}
	tolerant := casecross.AssociationRule{
		GapMin:     gap(-500 * time.Millisecond),
		GapMax:     gap(500 * time.Millisecond),
		FixedOrder: true,
	}

	tests := []struct {
		name string
		a, b casecross.Interval
		rule casecross.AssociationRule
		want bool
	}{
		{"short gap", interval(0, secs(1)), interval(secs(1.2), secs(2)), within, true},
		{"short gap reversed", interval(secs(1.2), secs(2)), interval(0, secs(1)), within, true},
		{"long gap", interval(0, secs(1)), interval(secs(1.6), secs(2)), within, false},
		{"gap on the upper bound", interval(0, secs(1)), interval(secs(1.5), secs(2)), within, false},
		{"overlap below upper bound", interval(0, secs(5)), interval(secs(1), secs(2)), within, true},
		{"deep overlap below lower bound", interval(0, secs(5)), interval(secs(1), secs(2)), tolerant, false},
		{"gap on the lower bound", interval(0, secs(1)), interval(secs(0.5), secs(2)), tolerant, false},
		{"fixed order in order", interval(0, secs(10)), interval(secs(10.2), secs(11)), tolerant, true},
		{"fixed order reversed", interval(secs(10.2), secs(11)), interval(0, secs(10)), tolerant, false},
		{"no bounds", interval(0, secs(1)), interval(secs(100), secs(101)), casecross.AssociationRule{}, true},
		{"no bounds fixed order reversed", interval(secs(100), secs(101)), interval(0, secs(1)), casecross.AssociationRule{FixedOrder: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, casecross.Associated(tt.a, tt.b, tt.rule))
		})
	}
}

func TestAssociatedIsSymmetricWhenUnordered(t *testing.T) {
	rules := []casecross.AssociationRule{
		{GapMax: gap(500 * time.Millisecond)},
		{GapMin: gap(0)},
		{GapMin: gap(-time.Second), GapMax: gap(time.Second)},
	}

	var events []casecross.Interval
	for start := 0.0; start <= 3; start += 0.5 {
		for width := 0.0; width <= 2; width += 0.7 {
			events = append(events, interval(secs(start), secs(start+width)))
		}
	}

	for _, rule := range rules {
		for _, a := range events {
			for _, b := range events {
				assert.Equal(t, casecross.Associated(a, b, rule), casecross.Associated(b, a, rule), "%s %s", a, b)
			}
		}
	}
}

func TestCoalescesWith(t *testing.T) {
	left := casecross.LabeledEvent{Interval: interval(secs(10), secs(11)), Label: "left"}
	dt := 500 * time.Millisecond

	right := func(start float64) casecross.LabeledEvent {
		return casecross.LabeledEvent{Interval: interval(secs(start), secs(start+0.8)), Label: "right"}
	}

	assert.True(t, casecross.CoalescesWith(left, right(10.3), dt))
	assert.True(t, casecross.CoalescesWith(left, right(10), dt))
	assert.False(t, casecross.CoalescesWith(left, right(10.5), dt), "onset difference equal to the tolerance")
	assert.False(t, casecross.CoalescesWith(left, right(9.9), dt), "next starts first")

	sameSide := casecross.LabeledEvent{Interval: interval(secs(10.1), secs(11)), Label: "left"}
	assert.False(t, casecross.CoalescesWith(left, sameSide, dt))
}
