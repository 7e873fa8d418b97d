// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package conformance

import "github.com/Query-farm/ligavision-go/vision"

// BboxRow holds one 2D bounding box.
type BboxRow struct {
	Bbox vision.Box2d `liga:"bbox"`
}

// PointRow holds one 3D point.
type PointRow struct {
	Point vision.Point `liga:"_1"`
}

// Box3dRow holds one 3D box.
type Box3dRow struct {
	Box vision.Box3d `liga:"_1"`
}

// MaskRow holds one mask.
type MaskRow struct {
	Mask vision.Mask `liga:"mask"`
}

// ImageRow holds one image.
type ImageRow struct {
	Image vision.Image `liga:"_1"`
}

// YouTubeRow holds one YouTube video reference.
type YouTubeRow struct {
	Video vision.YouTubeVideo `liga:"_1"`
}

// VideoStreamRow holds one video stream reference.
type VideoStreamRow struct {
	Stream vision.VideoStream `liga:"_1"`
}

// SegmentRow holds one frame segment.
type SegmentRow struct {
	Segment vision.Segment `liga:"_1"`
}

// DetectionRow mixes every vision type in one row.
type DetectionRow struct {
	ID      int64               `liga:"id"`
	Label   string              `liga:"label"`
	Score   float32             `liga:"score"`
	Box     vision.Box2d        `liga:"box"`
	Center  vision.Point        `liga:"center"`
	Cuboid  *vision.Box3d       `liga:"cuboid"`
	Mask    vision.Mask         `liga:"mask"`
	Frame   vision.Image        `liga:"frame"`
	Video   vision.YouTubeVideo `liga:"video"`
	Stream  vision.VideoStream  `liga:"stream"`
	Clip    vision.Segment      `liga:"clip"`
	Tags    []string            `liga:"tags"`
	Attrs   map[string]string   `liga:"attrs"`
	Comment *string             `liga:"comment"`
}
