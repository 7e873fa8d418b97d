// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package benchmark

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/Query-farm/ligavision-go/conformance"
	"github.com/Query-farm/ligavision-go/frame"
	"github.com/Query-farm/ligavision-go/roundtrip"
	"github.com/Query-farm/ligavision-go/session"
)

// Options configures Run.
type Options struct {
	Rows      int
	BatchSize int
	Seed      uint64
	Formats   []session.Format
	// Dir is the local directory that receives one dataset per format.
	Dir string
	// Verify compares the reloaded rows with the originals.
	Verify bool
}

// Result is the timing of one format.
type Result struct {
	Format session.Format
	Rows   int64
	Write  time.Duration
	Read   time.Duration
}

// RowsPerSecond returns the combined write and read throughput.
func (r Result) RowsPerSecond() float64 {
	total := (r.Write + r.Read).Seconds()
	if total == 0 {
		return 0
	}
	return float64(r.Rows) / total
}

func (r Result) String() string {
	return fmt.Sprintf("%-10s rows=%d write=%s read=%s rows/s=%.0f",
		r.Format, r.Rows, r.Write.Round(time.Microsecond), r.Read.Round(time.Microsecond), r.RowsPerSecond())
}

// Run writes and reads one generated frame per format.
func Run(ctx context.Context, sess *session.Session, opts Options) ([]Result, error) {
	formats := opts.Formats
	if len(formats) == 0 {
		formats = session.Formats()
	}
	rows := NewGenerator(opts.Seed).Detections(opts.Rows)
	f, err := frame.FromRows("detections", rows, frame.WithBatchSize(opts.BatchSize))
	if err != nil {
		return nil, err
	}
	defer f.Release()

	results := make([]Result, 0, len(formats))
	for _, format := range formats {
		dir := filepath.Join(opts.Dir, string(format))
		res := Result{Format: format, Rows: f.NumRows()}

		start := time.Now()
		if err := sess.Write(ctx, f, dir, format, session.SaveOverwrite); err != nil {
			return results, err
		}
		res.Write = time.Since(start)

		start = time.Now()
		back, err := sess.Read(ctx, dir, format)
		if err != nil {
			return results, err
		}
		res.Read = time.Since(start)

		if opts.Verify {
			got, err := frame.Rows[conformance.DetectionRow](back)
			if err == nil {
				err = roundtrip.Equal(rows, got)
			}
			if err != nil {
				back.Release()
				return results, fmt.Errorf("%s: %w", format, err)
			}
		}
		back.Release()

		sess.Logger().Info("benchmark", "format", format, "rows", res.Rows,
			"write", res.Write, "read", res.Read)
		results = append(results, res)
	}
	return results, nil
}
