// Copyright 2025 The PsWeed Authors
// SPDX-License-Identifier: Apache-2.0

package weed

import "github.com/jcodagnone/psweed/spatial"

// window is the side of the claiming block. The block's bottom-right corner
// is the claiming candidate's own cell.
const window = 3

// cellGrid is a dense row-major table of candidate indexes. A zero cell is
// empty; any other value is the candidate index plus one.
type cellGrid struct {
	cols  int
	cells []int32
}

func newCellGrid(b spatial.Bounds) *cellGrid {
	return &cellGrid{
		cols:  b.Cols(),
		cells: make([]int32, b.Cells()),
	}
}

func (g *cellGrid) offset(p spatial.Pixel) int {
	return p.Row*g.cols + p.Col
}

// at returns the candidate index held by the cell, or -1 when empty.
func (g *cellGrid) at(p spatial.Pixel) int {
	return int(g.cells[g.offset(p)]) - 1
}

func (g *cellGrid) set(p spatial.Pixel, i int) {
	g.cells[g.offset(p)] = int32(i + 1)
}

func (g *cellGrid) clear(p spatial.Pixel) {
	g.cells[g.offset(p)] = 0
}

// footprint calls fn for every cell of the claiming block of p except its
// center, walking rows then columns from the top-left corner.
func footprint(p spatial.Pixel, fn func(spatial.Pixel)) {
	for dr := range window {
		for dc := range window {
			if dr == 1 && dc == 1 {
				continue
			}

			fn(spatial.Pixel{Row: p.Row - window + 1 + dr, Col: p.Col - window + 1 + dc})
		}
	}
}

// buildClaims runs the claiming pass over normalized pixels in index order.
// Each candidate takes every still-empty cell of its block and then empties
// the block center, no matter who held it.
func buildClaims(pixels []spatial.Pixel, b spatial.Bounds) *cellGrid {
	g := newCellGrid(b)

	for i, p := range pixels {
		footprint(p, func(c spatial.Pixel) {
			if g.at(c) < 0 {
				g.set(c, i)
			}
		})

		g.clear(spatial.Pixel{Row: p.Row - 1, Col: p.Col - 1})
	}

	return g
}

// buildOccupancy records, per cell, the first candidate sitting on it.
func buildOccupancy(pixels []spatial.Pixel, b spatial.Bounds) *cellGrid {
	g := newCellGrid(b)

	for i, p := range pixels {
		if g.at(p) < 0 {
			g.set(p, i)
		}
	}

	return g
}
