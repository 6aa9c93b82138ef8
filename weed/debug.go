// Copyright 2025 The PsWeed Authors
// SPDX-License-Identifier: Apache-2.0

package weed

import "github.com/jcodagnone/psweed/spatial"

// ClaimTable is a snapshot of the claim grid for inspection.
type ClaimTable struct {
	// Shift is the offset added to every candidate pixel.
	Shift spatial.Pixel
	// Claims holds, per normalized cell, the position in the input slice of
	// the claiming candidate, or -1 when the cell is empty.
	Claims [][]int
}

// Claims runs only the claiming pass and returns the resulting grid. It
// honors the grid size limit of w.
func (w *Weeder) Claims(cands []Candidate) (*ClaimTable, error) {
	if err := validate(cands); err != nil {
		return nil, err
	}

	if len(cands) == 0 {
		return &ClaimTable{Claims: [][]int{}}, nil
	}

	pixels := make([]spatial.Pixel, len(cands))
	for i, c := range cands {
		pixels[i] = c.Pixel
	}

	if err := w.checkGrid(pixels); err != nil {
		return nil, err
	}

	norm, shift, bounds := spatial.Normalize(pixels)

	g := buildClaims(norm, bounds)

	claims := make([][]int, bounds.Rows())
	for r := range claims {
		claims[r] = make([]int, bounds.Cols())
		for c := range claims[r] {
			claims[r][c] = g.at(spatial.Pixel{Row: r, Col: c})
		}
	}

	return &ClaimTable{Shift: shift, Claims: claims}, nil
}
