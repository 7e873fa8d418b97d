// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package roundtrip verifies that frames of vision types survive a write and
// read through a columnar format.
//
// A check writes the rows to a directory in overwrite mode, reads the
// dataset back and compares both collections as multisets: row order is
// ignored, but every row must come back exactly as often as it went in.
// Rows are compared by their deterministic CBOR encoding, so float64
// precision loss, nil-versus-empty containers and a changed Segment.End
// sentinel all count as mismatches.
//
//	func TestBox2d(t *testing.T) {
//	    roundtrip.Require(t, sess, []bboxRow{{Box: vision.NewBox2d(1, 2, 3, 4)}},
//	        filepath.Join(t.TempDir(), "bbox"), session.FormatParquet)
//	}
package roundtrip
