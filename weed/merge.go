// Copyright 2025 The PsWeed Authors
// SPDX-License-Identifier: Apache-2.0

package weed

import (
	"math"
	"slices"
)

// Cluster is a set of candidates transitively linked by the neighbor
// relation. Only the survivor is kept.
type Cluster struct {
	Members  []int `json:"members"`
	Survivor int   `json:"survivor"`
}

// better reports whether a should survive over b. NaN coherence ranks
// lowest and equal coherence goes to the smaller ID.
func better(a, b *Candidate) bool {
	aNaN, bNaN := math.IsNaN(a.Coherence), math.IsNaN(b.Coherence)

	switch {
	case aNaN && bNaN:
		return a.ID < b.ID
	case aNaN:
		return false
	case bNaN:
		return true
	case a.Coherence != b.Coherence:
		return a.Coherence > b.Coherence
	default:
		return a.ID < b.ID
	}
}

// mergeClusters unions every anchor with the candidates filed under it and
// keeps one candidate per resulting cluster. Anchors are visited in index
// order so clusters come out ordered by their first member.
func mergeClusters(cands []Candidate, n neighbours) ([]bool, []Cluster) {
	keep := make([]bool, len(cands))
	for i := range keep {
		keep[i] = true
	}

	ds := newDisjointSet(len(cands))

	for anchor := range cands {
		for _, i := range n[anchor] {
			ds.union(anchor, i)
		}
	}

	groups := make(map[int][]int)

	var roots []int

	for i := range cands {
		if ds.componentSize(i) < 2 {
			continue
		}

		root := ds.find(i)
		if _, ok := groups[root]; !ok {
			roots = append(roots, root)
		}

		groups[root] = append(groups[root], i)
	}

	clusters := make([]Cluster, 0, len(roots))

	for _, root := range roots {
		members := groups[root]

		best := members[0]
		for _, m := range members[1:] {
			if better(&cands[m], &cands[best]) {
				best = m
			}
		}

		ids := make([]int, len(members))
		for k, m := range members {
			ids[k] = cands[m].ID
			keep[m] = m == best
		}

		slices.Sort(ids)

		clusters = append(clusters, Cluster{Members: ids, Survivor: cands[best].ID})
	}

	return keep, clusters
}
