// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vision

import (
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
)

// Point is a point in 3D space.
type Point struct {
	X float64 `arrow:"x"`
	Y float64 `arrow:"y"`
	Z float64 `arrow:"z"`
}

var pointFields = []arrow.Field{
	{Name: "x", Type: arrow.PrimitiveTypes.Float64},
	{Name: "y", Type: arrow.PrimitiveTypes.Float64},
	{Name: "z", Type: arrow.PrimitiveTypes.Float64},
}

func (p Point) ArrowSchema() *arrow.Schema { return arrow.NewSchema(pointFields, nil) }

func (Point) TypeName() string { return "point" }

// Distance returns the euclidean distance between p and o.
func (p Point) Distance(o Point) float64 {
	dx, dy, dz := p.X-o.X, p.Y-o.Y, p.Z-o.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func (p Point) String() string {
	return fmt.Sprintf("Point(%g, %g, %g)", p.X, p.Y, p.Z)
}

// Box2d is an axis-aligned bounding box in image coordinates.
type Box2d struct {
	XMin float64 `arrow:"xmin"`
	YMin float64 `arrow:"ymin"`
	XMax float64 `arrow:"xmax"`
	YMax float64 `arrow:"ymax"`
}

var box2dFields = []arrow.Field{
	{Name: "xmin", Type: arrow.PrimitiveTypes.Float64},
	{Name: "ymin", Type: arrow.PrimitiveTypes.Float64},
	{Name: "xmax", Type: arrow.PrimitiveTypes.Float64},
	{Name: "ymax", Type: arrow.PrimitiveTypes.Float64},
}

// NewBox2d returns the box spanning (xmin, ymin) to (xmax, ymax).
func NewBox2d(xmin, ymin, xmax, ymax float64) Box2d {
	return Box2d{XMin: xmin, YMin: ymin, XMax: xmax, YMax: ymax}
}

// Box2dFromCenter builds a box from its center and size.
func Box2dFromCenter(cx, cy, width, height float64) Box2d {
	return Box2d{
		XMin: cx - width/2,
		YMin: cy - height/2,
		XMax: cx + width/2,
		YMax: cy + height/2,
	}
}

func (b Box2d) ArrowSchema() *arrow.Schema { return arrow.NewSchema(box2dFields, nil) }

func (Box2d) TypeName() string { return "box2d" }

// Validate reports whether the corners are ordered.
func (b Box2d) Validate() error {
	if b.XMin > b.XMax || b.YMin > b.YMax {
		return fmt.Errorf("%w: box2d corners out of order: %v", ErrInvalid, b)
	}
	return nil
}

func (b Box2d) Width() float64  { return b.XMax - b.XMin }
func (b Box2d) Height() float64 { return b.YMax - b.YMin }
func (b Box2d) Area() float64   { return b.Width() * b.Height() }

// Center returns the center of the box with Z set to zero.
func (b Box2d) Center() Point {
	return Point{X: (b.XMin + b.XMax) / 2, Y: (b.YMin + b.YMax) / 2}
}

// Intersection returns the overlapping box and whether the boxes overlap.
func (b Box2d) Intersection(o Box2d) (Box2d, bool) {
	r := Box2d{
		XMin: math.Max(b.XMin, o.XMin),
		YMin: math.Max(b.YMin, o.YMin),
		XMax: math.Min(b.XMax, o.XMax),
		YMax: math.Min(b.YMax, o.YMax),
	}
	if r.XMin >= r.XMax || r.YMin >= r.YMax {
		return Box2d{}, false
	}
	return r, true
}

// IoU returns the intersection over union of two boxes.
func (b Box2d) IoU(o Box2d) float64 {
	inter, ok := b.Intersection(o)
	if !ok {
		return 0
	}
	union := b.Area() + o.Area() - inter.Area()
	if union <= 0 {
		return 0
	}
	return inter.Area() / union
}

func (b Box2d) String() string {
	return fmt.Sprintf("Box2d(xmin=%g, ymin=%g, xmax=%g, ymax=%g)", b.XMin, b.YMin, b.XMax, b.YMax)
}

// Box3d is an oriented 3D box. Heading is the rotation around the Z axis in
// radians.
type Box3d struct {
	Center  Point   `arrow:"center"`
	Length  float64 `arrow:"length"`
	Width   float64 `arrow:"width"`
	Height  float64 `arrow:"height"`
	Heading float64 `arrow:"heading"`
}

func (b Box3d) ArrowSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "center", Type: arrow.StructOf(pointFields...)},
		{Name: "length", Type: arrow.PrimitiveTypes.Float64},
		{Name: "width", Type: arrow.PrimitiveTypes.Float64},
		{Name: "height", Type: arrow.PrimitiveTypes.Float64},
		{Name: "heading", Type: arrow.PrimitiveTypes.Float64},
	}, nil)
}

func (Box3d) TypeName() string { return "box3d" }

// Volume returns length * width * height.
func (b Box3d) Volume() float64 { return b.Length * b.Width * b.Height }

// BirdsEye projects the box onto the XY plane, ignoring heading.
func (b Box3d) BirdsEye() Box2d {
	return Box2dFromCenter(b.Center.X, b.Center.Y, b.Length, b.Width)
}

func (b Box3d) String() string {
	return fmt.Sprintf("Box3d(center=%v, length=%g, width=%g, height=%g, heading=%g)",
		b.Center, b.Length, b.Width, b.Height, b.Heading)
}
