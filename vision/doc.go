// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package vision defines the geometric and media value types that can be
// stored as columns of a [frame.Frame] and persisted through any session
// format.
//
// # Types
//
//   - [Box2d]: an axis-aligned 2D bounding box (xmin, ymin, xmax, ymax).
//   - [Point]: a 3D point.
//   - [Box3d]: a 3D box given by its center [Point], size and heading.
//   - [Mask]: a binary region stored as run-length counts or polygons.
//   - [Image]: embedded image bytes or a URI reference.
//   - [YouTubeVideo], [VideoStream]: video references.
//   - [Segment]: a [start, end) frame range; End == -1 means open-ended.
//
// Every type implements ArrowSchema, which returns the Arrow struct layout
// the type occupies in a column. Go fields are mapped to schema fields with
// `arrow` struct tags, and TypeName returns the name recorded in frame
// metadata.
package vision
