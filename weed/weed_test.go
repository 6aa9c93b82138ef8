// Copyright 2025 The PsWeed Authors
// SPDX-License-Identifier: Apache-2.0

package weed

import (
	"math"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jcodagnone/psweed/spatial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func px(row, col int) spatial.Pixel {
	return spatial.Pixel{Row: row, Col: col}
}

func TestKeepMask(t *testing.T) {
	tests := []struct {
		name      string
		coords    []spatial.Pixel
		coherence []float64
		want      []bool
	}{
		{
			name:      "empty input",
			coords:    []spatial.Pixel{},
			coherence: []float64{},
			want:      []bool{},
		},
		{
			name:      "single candidate",
			coords:    []spatial.Pixel{px(40, 40)},
			coherence: []float64{0.1},
			want:      []bool{true},
		},
		{
			name:      "adjacent pair and isolated candidate",
			coords:    []spatial.Pixel{px(2, 2), px(2, 3), px(2, 20)},
			coherence: []float64{0.90, 0.95, 0.99},
			want:      []bool{false, true, true},
		},
		{
			name:      "same pixel keeps the more coherent",
			coords:    []spatial.Pixel{px(5, 5), px(5, 5)},
			coherence: []float64{0.3, 0.8},
			want:      []bool{false, true},
		},
		{
			name:      "same pixel keeps the more coherent when first",
			coords:    []spatial.Pixel{px(5, 5), px(5, 5)},
			coherence: []float64{0.8, 0.3},
			want:      []bool{true, false},
		},
		{
			name:      "three columns apart",
			coords:    []spatial.Pixel{px(0, 0), px(0, 3)},
			coherence: []float64{0.5, 0.6},
			want:      []bool{true, true},
		},
		{
			name:      "three rows apart",
			coords:    []spatial.Pixel{px(0, 0), px(3, 0)},
			coherence: []float64{0.5, 0.6},
			want:      []bool{true, true},
		},
		{
			name:      "diagonal step lands on the cleared center",
			coords:    []spatial.Pixel{px(0, 0), px(1, 1)},
			coherence: []float64{0.5, 0.6},
			want:      []bool{true, true},
		},
		{
			name:      "transitive chain keeps the last",
			coords:    []spatial.Pixel{px(10, 10), px(10, 12), px(10, 14)},
			coherence: []float64{0.5, 0.6, 0.7},
			want:      []bool{false, false, true},
		},
		{
			name:      "transitive chain keeps the first",
			coords:    []spatial.Pixel{px(10, 10), px(10, 12), px(10, 14)},
			coherence: []float64{0.9, 0.6, 0.7},
			want:      []bool{true, false, false},
		},
		{
			name:      "negative coordinates",
			coords:    []spatial.Pixel{px(-100, -7), px(-99, -7), px(50, 50)},
			coherence: []float64{0.2, 0.1, 0.3},
			want:      []bool{true, false, true},
		},
		{
			name:      "NaN ranks lowest",
			coords:    []spatial.Pixel{px(0, 0), px(0, 0)},
			coherence: []float64{math.NaN(), 0.1},
			want:      []bool{false, true},
		},
		{
			name:      "NaN ties go to the lower id",
			coords:    []spatial.Pixel{px(0, 0), px(0, 0)},
			coherence: []float64{math.NaN(), math.NaN()},
			want:      []bool{true, false},
		},
		{
			name:      "equal coherence goes to the lower id",
			coords:    []spatial.Pixel{px(0, 0), px(0, 1)},
			coherence: []float64{0.4, 0.4},
			want:      []bool{true, false},
		},
		{
			name:      "infinities are ordered",
			coords:    []spatial.Pixel{px(0, 0), px(0, 1), px(0, 2)},
			coherence: []float64{math.Inf(-1), math.Inf(1), 0},
			want:      []bool{false, true, false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := KeepMask(tt.coords, tt.coherence)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("KeepMask() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestKeepMaskLengthMismatch(t *testing.T) {
	_, err := KeepMask([]spatial.Pixel{px(0, 0), px(1, 1)}, []float64{0.5})
	require.Error(t, err)
	assert.True(t, IsLengthMismatch(err))
	assert.False(t, IsDuplicateID(err))
}

func TestWeedDuplicateID(t *testing.T) {
	cands := []Candidate{
		{ID: 4, Pixel: px(0, 0), Coherence: 0.1},
		{ID: 4, Pixel: px(9, 9), Coherence: 0.2},
	}

	_, err := New(Options{}).Weed(cands)
	require.Error(t, err)
	assert.True(t, IsDuplicateID(err))
}

func TestWeedGridTooLarge(t *testing.T) {
	cands := []Candidate{
		{ID: 0, Pixel: px(0, 0), Coherence: 0.1},
		{ID: 1, Pixel: px(0, 100), Coherence: 0.2},
	}

	_, err := New(Options{MaxGridCells: 10}).Weed(cands)
	require.Error(t, err)
	assert.True(t, IsGridTooLarge(err))

	r, err := New(Options{MaxGridCells: -1}).Weed(cands)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true}, r.Keep)
}

func TestWeedExtremeCoordinates(t *testing.T) {
	tests := []struct {
		name   string
		pixels []spatial.Pixel
	}{
		{
			name:   "columns span the whole int range",
			pixels: []spatial.Pixel{px(0, math.MinInt), px(0, math.MaxInt)},
		},
		{
			name:   "rows span the whole int range",
			pixels: []spatial.Pixel{px(math.MaxInt, 0), px(math.MinInt, 0)},
		},
		{
			name:   "shift of the lowest column does not fit",
			pixels: []spatial.Pixel{px(0, math.MinInt), px(0, math.MinInt)},
		},
		{
			name:   "cell count overflows",
			pixels: []spatial.Pixel{px(0, 0), px(math.MaxInt/2, math.MaxInt/2)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cands := make([]Candidate, len(tt.pixels))
			for i, p := range tt.pixels {
				cands[i] = Candidate{ID: i, Pixel: p, Coherence: 0.5}
			}

			for _, limit := range []int{0, -1} {
				w := New(Options{MaxGridCells: limit})

				_, err := w.Weed(cands)
				require.Error(t, err)
				assert.True(t, IsGridTooLarge(err), "limit %d: %v", limit, err)

				_, err = w.Claims(cands)
				assert.True(t, IsGridTooLarge(err), "limit %d: %v", limit, err)
			}
		})
	}
}

func TestWeedFarFromOrigin(t *testing.T) {
	cands := []Candidate{
		{ID: 0, Pixel: px(math.MaxInt-1, math.MaxInt-1), Coherence: 0.2},
		{ID: 1, Pixel: px(math.MaxInt-1, math.MaxInt), Coherence: 0.9},
		{ID: 2, Pixel: px(math.MinInt+3, math.MinInt+3), Coherence: 0.1},
	}

	r, err := New(Options{}).Weed(cands[:2])
	require.NoError(t, err)
	assert.Equal(t, []bool{false, true}, r.Keep)
	assert.Equal(t, 1, r.Links)

	r, err = New(Options{}).Weed(cands[2:])
	require.NoError(t, err)
	assert.Equal(t, []bool{true}, r.Keep)
	assert.Equal(t, px(math.MaxInt, math.MaxInt), r.Shift)
}

func TestWeedLinksCountsPairsOnce(t *testing.T) {
	// Candidates 1 and 2 are linked by both resolution passes.
	cands := []Candidate{
		{ID: 0, Pixel: px(0, 0), Coherence: 0.1},
		{ID: 1, Pixel: px(0, 1), Coherence: 0.2},
		{ID: 2, Pixel: px(0, 1), Coherence: 0.3},
	}

	r, err := New(Options{}).Weed(cands)
	require.NoError(t, err)
	assert.Equal(t, 3, r.Links)
	assert.Equal(t, []bool{false, false, true}, r.Keep)
}

func TestWeedSkipNeighbours(t *testing.T) {
	cands := []Candidate{
		{ID: 0, Pixel: px(0, 0), Coherence: 0.1},
		{ID: 1, Pixel: px(0, 0), Coherence: 0.2},
	}

	r, err := New(Options{SkipNeighbours: true}).Weed(cands)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true}, r.Keep)
	assert.Empty(t, r.Clusters)
}

func TestWeedExplicitIDs(t *testing.T) {
	cands := []Candidate{
		{ID: 70, Pixel: px(3, 3), Coherence: 0.5},
		{ID: 12, Pixel: px(3, 3), Coherence: 0.5},
		{ID: 31, Pixel: px(3, 4), Coherence: 0.2},
		{ID: 99, Pixel: px(30, 30), Coherence: 0.9},
	}

	r, err := New(Options{}).Weed(cands)
	require.NoError(t, err)

	assert.Equal(t, []bool{false, true, false, true}, r.Keep)
	assert.Equal(t, []Cluster{{Members: []int{12, 31, 70}, Survivor: 12}}, r.Clusters)
	assert.Equal(t, 2, r.Kept())
	assert.Equal(t, 2, r.Removed())
	assert.Equal(t, []Candidate{cands[1], cands[3]}, r.Survivors(cands))
	assert.Equal(t, px(-1, -1), r.Shift)
	assert.Equal(t, spatial.Bounds{MaxRow: 29, MaxCol: 29}, r.Bounds)
}

// randomCandidates scatters n candidates over a size×size area dense enough
// to form clusters.
func randomCandidates(seed uint64, n, size int) []Candidate {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	cands := make([]Candidate, n)

	for i := range cands {
		cands[i] = Candidate{
			ID:        i,
			Pixel:     px(rng.IntN(size), rng.IntN(size)),
			Coherence: rng.Float64(),
		}
	}

	return cands
}

func TestMaskLength(t *testing.T) {
	for _, n := range []int{0, 1, 2, 17, 500} {
		cands := randomCandidates(uint64(n), n, 40)

		r, err := New(Options{}).Weed(cands)
		require.NoError(t, err)
		assert.Len(t, r.Keep, n)
	}
}

func TestWeedIdempotent(t *testing.T) {
	for seed := range uint64(5) {
		cands := randomCandidates(seed, 800, 60)

		first, err := New(Options{}).Weed(cands)
		require.NoError(t, err)
		require.NotEmpty(t, first.Clusters)

		survivors := first.Survivors(cands)

		second, err := New(Options{}).Weed(survivors)
		require.NoError(t, err)
		assert.Empty(t, second.Clusters)
		assert.Equal(t, len(survivors), second.Kept())
	}
}

func TestWeedOneSurvivorPerCluster(t *testing.T) {
	cands := randomCandidates(42, 1000, 70)

	r, err := New(Options{}).Weed(cands)
	require.NoError(t, err)

	byID := make(map[int]int, len(cands))
	for i, c := range cands {
		byID[c.ID] = i
	}

	clustered := make(map[int]bool)

	for _, cl := range r.Clusters {
		require.GreaterOrEqual(t, len(cl.Members), 2)

		kept := 0

		for _, id := range cl.Members {
			clustered[id] = true

			if r.Keep[byID[id]] {
				kept++
				assert.Equal(t, cl.Survivor, id)
			}

			assert.GreaterOrEqual(t, cands[byID[cl.Survivor]].Coherence, cands[byID[id]].Coherence)
		}

		assert.Equal(t, 1, kept)
	}

	for i, c := range cands {
		if !clustered[c.ID] {
			assert.True(t, r.Keep[i], "isolated candidate %d removed", c.ID)
		}
	}
}

func TestContestedClaimDependsOnOrder(t *testing.T) {
	a := Candidate{ID: 1, Pixel: px(0, 0), Coherence: 0.4}
	b := Candidate{ID: 2, Pixel: px(0, 1), Coherence: 0.7}
	contested := px(2, 1) // inside both claiming blocks after normalization

	winner := func(cands []Candidate) int {
		pixels := []spatial.Pixel{cands[0].Pixel, cands[1].Pixel}
		norm, _, bounds := spatial.Normalize(pixels)
		claims := buildClaims(norm, bounds)

		return cands[claims.at(contested)].ID
	}

	assert.Equal(t, 1, winner([]Candidate{a, b}))
	assert.Equal(t, 2, winner([]Candidate{b, a}))

	for _, order := range [][]Candidate{{a, b}, {b, a}} {
		r, err := New(Options{}).Weed(order)
		require.NoError(t, err)
		assert.Equal(t, []Cluster{{Members: []int{1, 2}, Survivor: 2}}, r.Clusters)
	}
}

func TestWeedPermutationInvariant(t *testing.T) {
	cands := randomCandidates(7, 600, 50)

	base, err := New(Options{}).Weed(cands)
	require.NoError(t, err)

	survivorIDs := func(r *Result, cs []Candidate) []int {
		var ids []int
		for _, c := range r.Survivors(cs) {
			ids = append(ids, c.ID)
		}

		slices.Sort(ids)

		return ids
	}

	sortClusters := func(cs []Cluster) []Cluster {
		out := slices.Clone(cs)
		slices.SortFunc(out, func(x, y Cluster) int { return x.Members[0] - y.Members[0] })

		return out
	}

	wantClusters := sortClusters(base.Clusters)
	wantSurvivors := survivorIDs(base, cands)

	rng := rand.New(rand.NewPCG(1, 2))

	for range 5 {
		shuffled := slices.Clone(cands)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		r, err := New(Options{}).Weed(shuffled)
		require.NoError(t, err)

		if diff := cmp.Diff(wantClusters, sortClusters(r.Clusters)); diff != "" {
			t.Errorf("clusters changed under permutation (-want +got):\n%s", diff)
		}

		assert.Equal(t, wantSurvivors, survivorIDs(r, shuffled))
	}
}
