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
	"hash/fnv"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat/sampleuv"
)

// Sampler draws uniform samples without replacement from a seeded stream.
// A Sampler is not safe for concurrent use; give each patient its own.
type Sampler struct {
	src rand.Source
}

// NewSampler returns a sampler whose stream is fixed by the run seed and a
// stream name, normally the patient identifier.
func NewSampler(seed uint64, stream string) *Sampler {
	h := fnv.New64a()
	_, _ = h.Write([]byte(stream))
	return &Sampler{src: rand.NewPCG(seed, h.Sum64())}
}

// Choose returns k distinct indices from [0, n) in ascending order. It
// returns nil when k is not in [1, n].
func (s *Sampler) Choose(n, k int) []int {
	if k < 1 || k > n {
		return nil
	}
	idxs := make([]int, k)
	sampleuv.WithoutReplacement(idxs, n, s.src)
	sort.Ints(idxs)
	return idxs
}

// ControlPolicy gates the control set of each case event.
type ControlPolicy struct {
	// MinControls is the fewest candidate controls a case event may have.
	MinControls int
	// TargetControls is the exact number of controls to keep; zero keeps
	// every candidate.
	TargetControls int
}

// SelectControls picks one period from every window that has any, then
// applies the policy. It returns false when the case event must be
// discarded. Draws made for a discarded case event still advance the stream.
func (s *Sampler) SelectControls(periodsByWindow [][]Interval, policy ControlPolicy) ([]Interval, bool) {
	var candidates []Interval
	for _, periods := range periodsByWindow {
		if len(periods) == 0 {
			continue
		}
		candidates = append(candidates, periods[s.Choose(len(periods), 1)[0]])
	}

	if len(candidates) < policy.MinControls {
		return nil, false
	}
	if policy.TargetControls <= 0 {
		return candidates, true
	}
	if len(candidates) < policy.TargetControls {
		return nil, false
	}

	selected := make([]Interval, 0, policy.TargetControls)
	for _, i := range s.Choose(len(candidates), policy.TargetControls) {
		selected = append(selected, candidates[i])
	}
	return selected, true
}
