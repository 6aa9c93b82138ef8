// Copyright 2025 The PsWeed Authors
// SPDX-License-Identifier: Apache-2.0

// Package weed removes spatially redundant persistent scatterer candidates,
// keeping the most coherent candidate of every neighborhood cluster.
//
// Weeding runs in three sequential passes over the candidates in their input
// order: a claiming pass over a dense grid, a neighbor resolution pass and a
// union-find merge that picks one survivor per cluster. The input order
// decides which candidate claims a contested cell; it does not change
// cluster membership or the survivor.
package weed

import (
	"fmt"
	"math"

	"github.com/jcodagnone/psweed/spatial"
)

// DefaultMaxGridCells bounds the claim grid when Options.MaxGridCells is zero.
// Two int32 grids of this size take 2 GiB.
const DefaultMaxGridCells = 1 << 28

// Candidate is a persistent scatterer candidate.
type Candidate struct {
	ID        int            `json:"id"`
	Pixel     spatial.Pixel  `json:"pixel"`
	Coherence float64        `json:"coherence"`
	Point     *spatial.Point `json:"point,omitempty"`
}

// Options configures a Weeder.
type Options struct {
	// MaxGridCells caps the number of grid cells a single invocation may
	// allocate. Zero means DefaultMaxGridCells, negative disables the check.
	MaxGridCells int
	// SkipNeighbours keeps every candidate without building any grid.
	SkipNeighbours bool
}

// Result is the outcome of a weeding invocation.
type Result struct {
	// Keep is the keep-mask, in input order.
	Keep     []bool         `json:"keep"`
	Clusters []Cluster      `json:"clusters"`
	Shift    spatial.Pixel  `json:"shift"`
	Bounds   spatial.Bounds `json:"bounds"`
	// Links is the number of neighbor pairs found before merging.
	Links int `json:"links"`
}

// Kept returns the number of retained candidates.
func (r *Result) Kept() int {
	n := 0
	for _, k := range r.Keep {
		if k {
			n++
		}
	}

	return n
}

// Removed returns the number of weeded candidates.
func (r *Result) Removed() int {
	return len(r.Keep) - r.Kept()
}

// Survivors returns the candidates retained by r, in input order. cands must
// be the slice r was computed from.
func (r *Result) Survivors(cands []Candidate) []Candidate {
	out := make([]Candidate, 0, r.Kept())

	for i, c := range cands {
		if r.Keep[i] {
			out = append(out, c)
		}
	}

	return out
}

// Weeder runs the weeding passes. A Weeder holds no state between calls and
// is safe for concurrent use.
type Weeder struct {
	maxGridCells   int
	skipNeighbours bool
}

// New returns a Weeder configured with opts.
func New(opts Options) *Weeder {
	maxCells := opts.MaxGridCells
	if maxCells == 0 {
		maxCells = DefaultMaxGridCells
	}

	return &Weeder{
		maxGridCells:   maxCells,
		skipNeighbours: opts.SkipNeighbours,
	}
}

// Weed computes the keep-mask for cands. The slice order is the processing
// order.
func (w *Weeder) Weed(cands []Candidate) (*Result, error) {
	if err := validate(cands); err != nil {
		return nil, err
	}

	if len(cands) == 0 || w.skipNeighbours {
		keep := make([]bool, len(cands))
		for i := range keep {
			keep[i] = true
		}

		return &Result{Keep: keep, Clusters: []Cluster{}}, nil
	}

	pixels := make([]spatial.Pixel, len(cands))
	for i, c := range cands {
		pixels[i] = c.Pixel
	}

	if err := w.checkGrid(pixels); err != nil {
		return nil, err
	}

	norm, shift, bounds := spatial.Normalize(pixels)

	claims := buildClaims(norm, bounds)
	occupancy := buildOccupancy(norm, bounds)
	n := resolveNeighbours(norm, claims, occupancy)

	keep, clusters := mergeClusters(cands, n)

	return &Result{
		Keep:     keep,
		Clusters: clusters,
		Shift:    shift,
		Bounds:   bounds,
		Links:    n.links(),
	}, nil
}

// addressableCells bounds every claim grid, whatever the configured limit.
const addressableCells = min(math.MaxInt/4, 1<<44)

// checkGrid rejects pixels whose normalized grid can't be indexed or
// allocated, or is larger than the configured limit.
func (w *Weeder) checkGrid(pixels []spatial.Pixel) error {
	low, high := spatial.Extent(pixels)

	rows, okRows := gridSpan(low.Row, high.Row)
	cols, okCols := gridSpan(low.Col, high.Col)

	if !okRows || !okCols || rows > addressableCells/cols || !shiftable(low) {
		msg := fmt.Sprintf("pixels span rows %d to %d and columns %d to %d, beyond any claim grid",
			low.Row, high.Row, low.Col, high.Col)

		return &InputError{Type: ErrorTypeGridTooLarge, Message: msg}
	}

	if w.maxGridCells > 0 && rows > w.maxGridCells/cols {
		msg := fmt.Sprintf("claim grid of %dx%d cells exceeds limit of %d", rows, cols, w.maxGridCells)

		return &InputError{Type: ErrorTypeGridTooLarge, Message: msg}
	}

	return nil
}

// shiftable reports whether the shift moving low onto the margin fits in an
// int.
func shiftable(low spatial.Pixel) bool {
	const lowest = math.MinInt + spatial.Margin + 1

	return low.Row >= lowest && low.Col >= lowest
}

// gridSpan returns the number of grid cells covering lo..hi after
// normalization, or false when that count overflows an int.
func gridSpan(lo, hi int) (int, bool) {
	span := uint64(hi) - uint64(lo)
	if span > uint64(math.MaxInt-spatial.Margin-1) {
		return 0, false
	}

	return int(span) + spatial.Margin + 1, true
}

// KeepMask weeds candidates given as parallel arrays, using array positions
// as candidate IDs.
func KeepMask(coords []spatial.Pixel, coherence []float64) ([]bool, error) {
	if len(coords) != len(coherence) {
		return nil, &InputError{
			Type:    ErrorTypeLengthMismatch,
			Message: fmt.Sprintf("%d coordinates but %d coherence values", len(coords), len(coherence)),
		}
	}

	cands := make([]Candidate, len(coords))
	for i := range coords {
		cands[i] = Candidate{ID: i, Pixel: coords[i], Coherence: coherence[i]}
	}

	r, err := New(Options{}).Weed(cands)
	if err != nil {
		return nil, err
	}

	return r.Keep, nil
}

func validate(cands []Candidate) error {
	if len(cands) >= math.MaxInt32 {
		return &InputError{
			Type:    ErrorTypeGridTooLarge,
			Message: fmt.Sprintf("%d candidates exceed the grid index range", len(cands)),
		}
	}

	seen := make(map[int]int, len(cands))
	for i, c := range cands {
		if j, ok := seen[c.ID]; ok {
			return &InputError{
				Type:    ErrorTypeDuplicateID,
				Message: fmt.Sprintf("candidate id %d repeated at positions %d and %d", c.ID, j, i),
			}
		}

		seen[c.ID] = i
	}

	return nil
}
