// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vision

import (
	"fmt"
	"math"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/apache/arrow-go/v18/arrow"
)

// MaskType selects how a [Mask] encodes its region.
type MaskType string

const (
	// MaskRLE stores alternating zero/one run lengths over the pixels in
	// row-major order, starting with a run of zeros.
	MaskRLE MaskType = "rle"
	// MaskCocoRLE stores run lengths in column-major order, as used by the
	// COCO dataset annotations.
	MaskCocoRLE MaskType = "coco_rle"
	// MaskPolygon stores one or more rings of flattened x,y coordinates.
	MaskPolygon MaskType = "polygon"
)

// Mask is a binary region over a Height x Width pixel grid.
type Mask struct {
	Type    MaskType    `arrow:"type"`
	Height  int32       `arrow:"height"`
	Width   int32       `arrow:"width"`
	Counts  []int32     `arrow:"counts"`
	Polygon [][]float64 `arrow:"polygon"`
}

func (m Mask) ArrowSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "type", Type: arrow.BinaryTypes.String},
		{Name: "height", Type: arrow.PrimitiveTypes.Int32},
		{Name: "width", Type: arrow.PrimitiveTypes.Int32},
		{Name: "counts", Type: arrow.ListOf(arrow.PrimitiveTypes.Int32), Nullable: true},
		{Name: "polygon", Type: arrow.ListOf(arrow.ListOf(arrow.PrimitiveTypes.Float64)), Nullable: true},
	}, nil)
}

func (Mask) TypeName() string { return "mask" }

// MaskFromRLE builds a row-major run-length mask. The counts must cover
// exactly height*width pixels.
func MaskFromRLE(counts []int32, height, width int32) (Mask, error) {
	return newRunLengthMask(MaskRLE, counts, height, width)
}

// MaskFromCocoRLE builds a column-major (COCO) run-length mask.
func MaskFromCocoRLE(counts []int32, height, width int32) (Mask, error) {
	return newRunLengthMask(MaskCocoRLE, counts, height, width)
}

func newRunLengthMask(kind MaskType, counts []int32, height, width int32) (Mask, error) {
	if err := checkRuns(counts, height, width); err != nil {
		return Mask{}, err
	}
	return Mask{
		Type:   kind,
		Height: height,
		Width:  width,
		Counts: append([]int32{}, counts...),
	}, nil
}

// checkRuns verifies that every run is non-negative and that the runs cover
// exactly height*width pixels.
func checkRuns(counts []int32, height, width int32) error {
	if height < 0 || width < 0 {
		return fmt.Errorf("%w: negative mask size %dx%d", ErrInvalid, height, width)
	}
	var total int64
	for i, c := range counts {
		if c < 0 {
			return fmt.Errorf("%w: negative run length %d at %d", ErrInvalid, c, i)
		}
		total += int64(c)
	}
	if total != int64(height)*int64(width) {
		return fmt.Errorf("%w: run lengths cover %d pixels, want %d (%dx%d)",
			ErrInvalid, total, int64(height)*int64(width), height, width)
	}
	return nil
}

// MaskFromPolygon builds a polygon mask. Each ring is a flat list of x,y
// pairs and must hold at least three points.
func MaskFromPolygon(rings [][]float64, height, width int32) (Mask, error) {
	if height < 0 || width < 0 {
		return Mask{}, fmt.Errorf("%w: negative mask size %dx%d", ErrInvalid, height, width)
	}
	out := make([][]float64, len(rings))
	for i, ring := range rings {
		if len(ring)%2 != 0 || len(ring) < 6 {
			return Mask{}, fmt.Errorf("%w: polygon ring %d has %d coordinates", ErrInvalid, i, len(ring))
		}
		out[i] = append([]float64{}, ring...)
	}
	return Mask{Type: MaskPolygon, Height: height, Width: width, Polygon: out}, nil
}

// MaskFromArray run-length encodes a row-major binary array. Any non-zero
// value counts as set.
func MaskFromArray(pixels [][]uint8) (Mask, error) {
	height := int32(len(pixels))
	var width int32
	if height > 0 {
		width = int32(len(pixels[0]))
	}
	flat := make([]uint8, 0, int(height)*int(width))
	for y, row := range pixels {
		if int32(len(row)) != width {
			return Mask{}, fmt.Errorf("%w: row %d has %d pixels, want %d", ErrInvalid, y, len(row), width)
		}
		flat = append(flat, row...)
	}
	return Mask{Type: MaskRLE, Height: height, Width: width, Counts: encodeRuns(flat)}, nil
}

// encodeRuns returns alternating zero/one run lengths, starting with zeros.
func encodeRuns(flat []uint8) []int32 {
	counts := []int32{}
	var current uint8
	var run int32
	for _, v := range flat {
		bit := uint8(0)
		if v != 0 {
			bit = 1
		}
		if bit != current {
			counts = append(counts, run)
			run = 0
			current = bit
		}
		run++
	}
	return append(counts, run)
}

// Bitmap returns the set pixels as row-major indices (y*Width + x). Run
// lengths are checked before decoding, since masks read back from a frame
// bypass the constructors.
func (m Mask) Bitmap() (*roaring.Bitmap, error) {
	if m.Height < 0 || m.Width < 0 {
		return nil, fmt.Errorf("%w: negative mask size %dx%d", ErrInvalid, m.Height, m.Width)
	}
	bm := roaring.New()
	w, h := uint64(m.Width), uint64(m.Height)
	switch m.Type {
	case MaskRLE, MaskCocoRLE:
		if err := checkRuns(m.Counts, m.Height, m.Width); err != nil {
			return nil, err
		}
	}
	switch m.Type {
	case MaskRLE:
		var pos uint64
		for i, c := range m.Counts {
			if i%2 == 1 && c > 0 {
				bm.AddRange(pos, pos+uint64(c))
			}
			pos += uint64(c)
		}
	case MaskCocoRLE:
		var pos uint64
		for i, c := range m.Counts {
			if i%2 == 1 {
				for p := pos; p < pos+uint64(c); p++ {
					y, x := p%h, p/h
					bm.Add(uint32(y*w + x))
				}
			}
			pos += uint64(c)
		}
	case MaskPolygon:
		for y := uint64(0); y < h; y++ {
			for x := uint64(0); x < w; x++ {
				if m.containsPoint(float64(x)+0.5, float64(y)+0.5) {
					bm.Add(uint32(y*w + x))
				}
			}
		}
	default:
		return nil, fmt.Errorf("%w: unknown mask type %q", ErrInvalid, m.Type)
	}
	return bm, nil
}

// containsPoint applies the even-odd rule across all rings.
func (m Mask) containsPoint(px, py float64) bool {
	inside := false
	for _, ring := range m.Polygon {
		n := len(ring) / 2
		for i, j := 0, n-1; i < n; j, i = i, i+1 {
			xi, yi := ring[2*i], ring[2*i+1]
			xj, yj := ring[2*j], ring[2*j+1]
			if (yi > py) != (yj > py) && px < (xj-xi)*(py-yi)/(yj-yi)+xi {
				inside = !inside
			}
		}
	}
	return inside
}

// ToArray decodes the mask into a row-major Height x Width array of 0/1.
func (m Mask) ToArray() ([][]uint8, error) {
	bm, err := m.Bitmap()
	if err != nil {
		return nil, err
	}
	out := make([][]uint8, m.Height)
	for y := range out {
		out[y] = make([]uint8, m.Width)
	}
	it := bm.Iterator()
	for it.HasNext() {
		p := it.Next()
		out[p/uint32(m.Width)][p%uint32(m.Width)] = 1
	}
	return out, nil
}

// Area returns the number of set pixels.
func (m Mask) Area() (int64, error) {
	bm, err := m.Bitmap()
	if err != nil {
		return 0, err
	}
	return int64(bm.GetCardinality()), nil
}

// IoU returns the intersection over union of two masks of the same size.
func (m Mask) IoU(o Mask) (float64, error) {
	if m.Height != o.Height || m.Width != o.Width {
		return 0, fmt.Errorf("%w: mask sizes differ: %dx%d vs %dx%d", ErrInvalid, m.Height, m.Width, o.Height, o.Width)
	}
	a, err := m.Bitmap()
	if err != nil {
		return 0, err
	}
	b, err := o.Bitmap()
	if err != nil {
		return 0, err
	}
	union := roaring.Or(a, b).GetCardinality()
	if union == 0 {
		return 0, nil
	}
	return float64(roaring.And(a, b).GetCardinality()) / float64(union), nil
}

// BoundingBox returns the tight box around the set pixels.
func (m Mask) BoundingBox() (Box2d, error) {
	bm, err := m.Bitmap()
	if err != nil {
		return Box2d{}, err
	}
	if bm.IsEmpty() {
		return Box2d{}, nil
	}
	xmin, ymin := math.Inf(1), math.Inf(1)
	xmax, ymax := math.Inf(-1), math.Inf(-1)
	it := bm.Iterator()
	for it.HasNext() {
		p := it.Next()
		x, y := float64(p%uint32(m.Width)), float64(p/uint32(m.Width))
		xmin, ymin = math.Min(xmin, x), math.Min(ymin, y)
		xmax, ymax = math.Max(xmax, x+1), math.Max(ymax, y+1)
	}
	return NewBox2d(xmin, ymin, xmax, ymax), nil
}

func (m Mask) String() string {
	if m.Type == MaskPolygon {
		return fmt.Sprintf("Mask(type=%s, height=%d, width=%d, rings=%d)", m.Type, m.Height, m.Width, len(m.Polygon))
	}
	return fmt.Sprintf("Mask(type=%s, height=%d, width=%d, counts=%v)", m.Type, m.Height, m.Width, m.Counts)
}
