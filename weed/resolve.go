// Copyright 2025 The PsWeed Authors
// SPDX-License-Identifier: Apache-2.0

package weed

import "github.com/jcodagnone/psweed/spatial"

// neighbours is the sparse neighbor relation: for each anchor index, the
// candidate indexes that resolved to it.
type neighbours map[int][]int

func (n neighbours) add(anchor, i int) {
	n[anchor] = append(n[anchor], i)
}

// links returns the number of distinct unordered candidate pairs in n. Both
// passes may record the same pair, in either direction.
func (n neighbours) links() int {
	pairs := make(map[[2]int]struct{})

	for anchor, l := range n {
		for _, i := range l {
			pairs[[2]int{min(anchor, i), max(anchor, i)}] = struct{}{}
		}
	}

	return len(pairs)
}

// resolveNeighbours derives the neighbor relation from the claim grid and
// the occupancy grid.
//
// A candidate whose own cell was claimed by someone else is filed under that
// claimant. Since the first claimant of a cell wins, a candidate that claimed
// its own cell before a later candidate covered it would otherwise go
// unrelated to that later candidate, so every candidate also files the
// occupants found in its own claiming block.
func resolveNeighbours(pixels []spatial.Pixel, claims, occupancy *cellGrid) neighbours {
	n := make(neighbours)

	for i, p := range pixels {
		if j := claims.at(p); j >= 0 && j != i {
			n.add(j, i)
		}
	}

	for i, p := range pixels {
		footprint(p, func(c spatial.Pixel) {
			if o := occupancy.at(c); o >= 0 && o != i {
				n.add(i, o)
			}
		})
	}

	return n
}
