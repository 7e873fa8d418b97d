// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package conformance

import (
	"context"
	"crypto/rand"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Query-farm/ligavision-go/roundtrip"
	"github.com/Query-farm/ligavision-go/session"
	"github.com/Query-farm/ligavision-go/vision"
)

// SampleImageURIs are two public photos used by image fixtures.
var SampleImageURIs = []string{
	"http://farm2.staticflickr.com/1129/4726871278_4dd241a03a_z.jpg",
	"http://farm4.staticflickr.com/3726/9457732891_87c6512b62_z.jpg",
}

// Case is one fixture of the suite.
type Case struct {
	Name string
	// Check persists the fixture under dir and compares it with the reload.
	Check func(ctx context.Context, sess *session.Session, dir string, format session.Format) error
}

// Result is the outcome of one Case.
type Result struct {
	Case     string
	Format   session.Format
	Duration time.Duration
	Err      error
}

func newCase[T any](name string, rows func() ([]T, error)) Case {
	return Case{
		Name: name,
		Check: func(ctx context.Context, sess *session.Session, dir string, format session.Format) error {
			data, err := rows()
			if err != nil {
				return fmt.Errorf("%s: build rows: %w", name, err)
			}
			return roundtrip.Check(ctx, sess, data, dir, format)
		},
	}
}

func fixed[T any](rows ...T) func() ([]T, error) {
	return func() ([]T, error) { return rows, nil }
}

// Suite returns the fixture cases in a stable order.
func Suite() []Case {
	return []Case{
		newCase("bbox", fixed(
			BboxRow{vision.NewBox2d(1, 2, 3, 4)},
			BboxRow{vision.NewBox2d(23, 33, 44, 88)},
		)),
		newCase("point", fixed(
			PointRow{vision.Point{X: 1, Y: 2, Z: 3}},
			PointRow{vision.Point{X: 2, Y: 3, Z: 4}},
		)),
		newCase("box3d", fixed(
			Box3dRow{vision.Box3d{Center: vision.Point{X: 1, Y: 2, Z: 3}, Length: 1, Width: 2, Height: 3, Heading: 2.5}},
		)),
		newCase("mask", func() ([]MaskRow, error) {
			m, err := vision.MaskFromRLE([]int32{1, 10, 10}, 3, 7)
			if err != nil {
				return nil, err
			}
			return []MaskRow{{m}}, nil
		}),
		newCase("embedded_images", func() ([]ImageRow, error) {
			data := make([]byte, 128)
			if _, err := rand.Read(data); err != nil {
				return nil, err
			}
			return []ImageRow{{vision.NewImage(data)}}, nil
		}),
		newCase("youtubevideo", fixed(
			YouTubeRow{vision.YouTubeVideo{VID: "video_id"}},
			YouTubeRow{vision.YouTubeVideo{VID: "other_video_id"}},
		)),
		newCase("videostream", fixed(
			VideoStreamRow{vision.VideoStream{URI: "uri1"}},
			VideoStreamRow{vision.VideoStream{URI: "uri2"}},
		)),
		newCase("segment", fixed(
			SegmentRow{vision.Segment{Start: 0, End: 10}},
			SegmentRow{vision.Segment{Start: 15, End: vision.OpenEnd}},
		)),
		newCase("detections", Detections),
	}
}

// Detections returns rows that mix every vision type, including nil and
// empty containers.
func Detections() ([]DetectionRow, error) {
	rle, err := vision.MaskFromRLE([]int32{1, 10, 10}, 3, 7)
	if err != nil {
		return nil, err
	}
	coco, err := vision.MaskFromCocoRLE([]int32{0, 2, 2}, 2, 2)
	if err != nil {
		return nil, err
	}
	poly, err := vision.MaskFromPolygon([][]float64{{1, 1, 3, 1, 3, 3, 1, 3}}, 4, 4)
	if err != nil {
		return nil, err
	}
	comment := "partially occluded"
	return []DetectionRow{
		{
			ID: 1, Label: "cat", Score: 0.75,
			Box:     vision.NewBox2d(1, 2, 3, 4),
			Center:  vision.Point{X: 2, Y: 3},
			Cuboid:  &vision.Box3d{Center: vision.Point{X: 1, Y: 2, Z: 3}, Length: 1, Width: 2, Height: 3, Heading: 2.5},
			Mask:    rle,
			Frame:   vision.NewImage([]byte{0xff, 0xd8, 0xff, 0xe0}),
			Video:   vision.YouTubeVideo{VID: "video_id"},
			Stream:  vision.VideoStream{URI: "s3://videos/cat.mp4"},
			Clip:    vision.Segment{Start: 15, End: vision.OpenEnd},
			Tags:    []string{"animal", "pet"},
			Attrs:   map[string]string{"source": "coco"},
			Comment: &comment,
		},
		{
			ID: 2, Label: "dog", Score: 0.5,
			Box:   vision.NewBox2d(23, 33, 44, 88),
			Mask:  coco,
			Frame: vision.ImageFromURI(SampleImageURIs[0]),
			Clip:  vision.Segment{Start: 0, End: 10},
			Tags:  []string{},
		},
		{
			ID: 3, Label: "dog", Score: 0.5,
			Box:   vision.NewBox2d(23, 33, 44, 88),
			Mask:  poly,
			Frame: vision.ImageFromURI(SampleImageURIs[1]),
			Clip:  vision.Segment{Start: 0, End: 10},
			Attrs: map[string]string{},
		},
	}, nil
}

// Run checks every case under root, one subdirectory per case.
func Run(ctx context.Context, sess *session.Session, root string, format session.Format) []Result {
	cases := Suite()
	results := make([]Result, 0, len(cases))
	for _, c := range cases {
		start := time.Now()
		err := c.Check(ctx, sess, joinPath(root, c.Name), format)
		results = append(results, Result{Case: c.Name, Format: format, Duration: time.Since(start), Err: err})
		if err != nil {
			sess.Logger().Error("conformance case failed", "case", c.Name, "format", format, "err", err)
		}
	}
	return results
}

// joinPath joins local paths with the OS separator and URIs with "/".
func joinPath(root, name string) string {
	if strings.Contains(root, "://") {
		return strings.TrimRight(root, "/") + "/" + name
	}
	return filepath.Join(root, name)
}

// FetchSampleImages reads each URI into an embedded image.
func FetchSampleImages(ctx context.Context, sess *session.Session, uris []string) ([]vision.Image, error) {
	images := make([]vision.Image, 0, len(uris))
	for _, uri := range uris {
		img, err := sess.ReadImage(ctx, uri)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, nil
}
