// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package benchmark generates random frames of vision types and times their
// round-trip through each format.
package benchmark

import (
	"fmt"
	"math/rand/v2"

	"github.com/Query-farm/ligavision-go/conformance"
	"github.com/Query-farm/ligavision-go/vision"
)

var labels = []string{"person", "car", "cat", "dog", "bicycle", "traffic light"}

// Generator produces deterministic random rows for a seed.
type Generator struct {
	rng        *rand.Rand
	ImageBytes int
	MaskSize   int32
}

// NewGenerator returns a generator with 1 KiB images and 32x32 masks.
func NewGenerator(seed uint64) *Generator {
	return &Generator{
		rng:        rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		ImageBytes: 1024,
		MaskSize:   32,
	}
}

// Box returns a random box inside a 1920x1080 image.
func (g *Generator) Box() vision.Box2d {
	x, y := g.rng.Float64()*1800, g.rng.Float64()*1000
	return vision.NewBox2d(x, y, x+1+g.rng.Float64()*120, y+1+g.rng.Float64()*80)
}

// Mask returns a random rectangular blob, run-length encoded.
func (g *Generator) Mask() vision.Mask {
	n := int(g.MaskSize)
	pixels := make([][]uint8, n)
	x0, y0 := g.rng.IntN(n), g.rng.IntN(n)
	x1, y1 := x0+g.rng.IntN(n-x0)+1, y0+g.rng.IntN(n-y0)+1
	for y := range pixels {
		pixels[y] = make([]uint8, n)
		if y < y0 || y >= y1 {
			continue
		}
		for x := x0; x < x1; x++ {
			pixels[y][x] = 1
		}
	}
	m, err := vision.MaskFromArray(pixels)
	if err != nil {
		panic(fmt.Sprintf("benchmark: mask: %v", err))
	}
	return m
}

// Image returns random embedded bytes.
func (g *Generator) Image() vision.Image {
	data := make([]byte, g.ImageBytes)
	for i := range data {
		data[i] = byte(g.rng.UintN(256))
	}
	return vision.NewImage(data)
}

// Segment returns a random segment; roughly one in eight is open-ended.
func (g *Generator) Segment() vision.Segment {
	start := g.rng.Int64N(10_000)
	if g.rng.IntN(8) == 0 {
		return vision.Segment{Start: start, End: vision.OpenEnd}
	}
	return vision.Segment{Start: start, End: start + g.rng.Int64N(500)}
}

// Detections returns n random detection rows.
func (g *Generator) Detections(n int) []conformance.DetectionRow {
	rows := make([]conformance.DetectionRow, n)
	for i := range rows {
		box := g.Box()
		center := box.Center()
		rows[i] = conformance.DetectionRow{
			ID:     int64(i),
			Label:  labels[g.rng.IntN(len(labels))],
			Score:  g.rng.Float32(),
			Box:    box,
			Center: vision.Point{X: center.X, Y: center.Y, Z: g.rng.Float64() * 50},
			Mask:   g.Mask(),
			Frame:  g.Image(),
			Video:  vision.YouTubeVideo{VID: fmt.Sprintf("vid%08d", g.rng.IntN(1e8))},
			Stream: vision.VideoStream{URI: fmt.Sprintf("s3://videos/%d.mp4", i)},
			Clip:   g.Segment(),
			Tags:   []string{labels[g.rng.IntN(len(labels))]},
		}
		if g.rng.IntN(2) == 0 {
			rows[i].Cuboid = &vision.Box3d{
				Center:  rows[i].Center,
				Length:  box.Width(),
				Width:   box.Height(),
				Height:  1 + g.rng.Float64()*3,
				Heading: g.rng.Float64() * 6.283185307179586,
			}
		}
	}
	return rows
}
