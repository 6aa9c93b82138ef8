// Copyright 2025 The PsWeed Authors
//
// SPDX-License-Identifier: Apache-2.0
package spatial

import "fmt"

// Margin is the smallest row and column a normalized pixel can take. It
// leaves room for the two rows and columns a claiming window reaches back.
const Margin = 2

// Pixel is an integer (row, column) position in the radar image.
type Pixel struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (p Pixel) String() string {
	return fmt.Sprintf("(%d,%d)", p.Row, p.Col)
}

// Add returns the componentwise sum of p and o.
func (p Pixel) Add(o Pixel) Pixel {
	return Pixel{Row: p.Row + o.Row, Col: p.Col + o.Col}
}

// Bounds is the extent of a set of normalized pixels.
type Bounds struct {
	MaxRow int `json:"max_row"`
	MaxCol int `json:"max_col"`
}

// Rows returns the number of grid rows needed to index every pixel.
func (b Bounds) Rows() int { return b.MaxRow + 1 }

// Cols returns the number of grid columns needed to index every pixel.
func (b Bounds) Cols() int { return b.MaxCol + 1 }

// Cells returns Rows()*Cols().
func (b Bounds) Cells() int { return b.Rows() * b.Cols() }

// Extent returns the componentwise minimum and maximum of pixels. An empty
// input yields two zero pixels.
func Extent(pixels []Pixel) (Pixel, Pixel) {
	if len(pixels) == 0 {
		return Pixel{}, Pixel{}
	}

	low, high := pixels[0], pixels[0]
	for _, p := range pixels[1:] {
		low.Row = min(low.Row, p.Row)
		low.Col = min(low.Col, p.Col)
		high.Row = max(high.Row, p.Row)
		high.Col = max(high.Col, p.Col)
	}

	return low, high
}

// Normalize shifts pixels so that the componentwise minimum lands on
// (Margin, Margin). It returns the shifted pixels, the shift applied and the
// bounds of the result. An empty input yields a nil slice, a zero shift and
// zero bounds. The span of pixels must fit in an int once the margin is added.
func Normalize(pixels []Pixel) ([]Pixel, Pixel, Bounds) {
	if len(pixels) == 0 {
		return nil, Pixel{}, Bounds{}
	}

	low, _ := Extent(pixels)
	shift := Pixel{Row: Margin - low.Row, Col: Margin - low.Col}
	out := make([]Pixel, len(pixels))

	var b Bounds

	for i, p := range pixels {
		out[i] = p.Add(shift)
		b.MaxRow = max(b.MaxRow, out[i].Row)
		b.MaxCol = max(b.MaxCol, out[i].Col)
	}

	return out, shift, b
}
