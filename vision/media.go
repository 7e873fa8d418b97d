// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vision

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/gabriel-vasile/mimetype"
)

// Image holds either embedded image bytes or a URI to fetch them from.
// Exactly one of Data and URI is normally set.
type Image struct {
	Data []byte `arrow:"data"`
	URI  string `arrow:"uri"`
}

// NewImage returns an embedded image. An empty payload is stored as nil.
func NewImage(data []byte) Image {
	if len(data) == 0 {
		return Image{}
	}
	return Image{Data: data}
}

// ImageFromURI returns an image that references external content.
func ImageFromURI(uri string) Image {
	return Image{URI: uri}
}

// ArrowSchema leaves data null for URI images. The uri child is never null;
// embedded images store "".
func (i Image) ArrowSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "data", Type: arrow.BinaryTypes.Binary, Nullable: true},
		{Name: "uri", Type: arrow.BinaryTypes.String},
	}, nil)
}

func (Image) TypeName() string { return "image" }

// IsEmbedded reports whether the image carries its own bytes.
func (i Image) IsEmbedded() bool { return i.Data != nil }

// MimeType sniffs the embedded payload. It returns "" for URI images.
func (i Image) MimeType() string {
	if !i.IsEmbedded() {
		return ""
	}
	return mimetype.Detect(i.Data).String()
}

func (i Image) String() string {
	if i.IsEmbedded() {
		return fmt.Sprintf("Image(<%d bytes>)", len(i.Data))
	}
	return fmt.Sprintf("Image(uri=%q)", i.URI)
}

// YouTubeVideo references a video by its YouTube id.
type YouTubeVideo struct {
	VID string `arrow:"vid"`
}

func (v YouTubeVideo) ArrowSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "vid", Type: arrow.BinaryTypes.String},
	}, nil)
}

func (YouTubeVideo) TypeName() string { return "youtube_video" }

// URL returns the watch page for the video.
func (v YouTubeVideo) URL() string { return "https://www.youtube.com/watch?v=" + v.VID }

// EmbedURL returns the embeddable player URL for the video.
func (v YouTubeVideo) EmbedURL() string { return "https://www.youtube.com/embed/" + v.VID }

func (v YouTubeVideo) String() string { return fmt.Sprintf("YouTubeVideo(vid=%q)", v.VID) }

// VideoStream references a video file or stream by URI.
type VideoStream struct {
	URI string `arrow:"uri"`
}

func (v VideoStream) ArrowSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "uri", Type: arrow.BinaryTypes.String},
	}, nil)
}

func (VideoStream) TypeName() string { return "video_stream" }

func (v VideoStream) String() string { return fmt.Sprintf("VideoStream(uri=%q)", v.URI) }

// OpenEnd marks a [Segment] that runs to the end of the video.
const OpenEnd int64 = -1

// Segment is a range of frames [Start, End). End == OpenEnd means the
// segment is open-ended.
type Segment struct {
	Start int64 `arrow:"start"`
	End   int64 `arrow:"end"`
}

// NewSegment validates and returns a segment.
func NewSegment(start, end int64) (Segment, error) {
	s := Segment{Start: start, End: end}
	return s, s.Validate()
}

func (s Segment) ArrowSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "start", Type: arrow.PrimitiveTypes.Int64},
		{Name: "end", Type: arrow.PrimitiveTypes.Int64},
	}, nil)
}

func (Segment) TypeName() string { return "segment" }

// Validate checks 0 <= Start and that End is OpenEnd or not before Start.
func (s Segment) Validate() error {
	if s.Start < 0 {
		return fmt.Errorf("%w: segment start %d is negative", ErrInvalid, s.Start)
	}
	if s.End != OpenEnd && s.End < s.Start {
		return fmt.Errorf("%w: segment end %d before start %d", ErrInvalid, s.End, s.Start)
	}
	return nil
}

// IsOpen reports whether the segment runs to the end of the video.
func (s Segment) IsOpen() bool { return s.End == OpenEnd }

// Length returns End - Start, or -1 for open segments.
func (s Segment) Length() int64 {
	if s.IsOpen() {
		return -1
	}
	return s.End - s.Start
}

func (s Segment) String() string {
	return fmt.Sprintf("Segment(start=%d, end=%d)", s.Start, s.End)
}
