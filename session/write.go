// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Query-farm/ligavision-go/frame"
	"github.com/Query-farm/ligavision-go/storage"
)

// SaveMode selects what a write does when the path already holds data.
type SaveMode string

const (
	// SaveOverwrite replaces existing data.
	SaveOverwrite SaveMode = "overwrite"
	// SaveAppend adds new part files next to existing ones.
	SaveAppend SaveMode = "append"
	// SaveErrorIfExists fails with ErrPathExists.
	SaveErrorIfExists SaveMode = "error"
	// SaveIgnore leaves existing data untouched and writes nothing.
	SaveIgnore SaveMode = "ignore"
)

// ParseSaveMode maps a case-insensitive mode name to a SaveMode.
func ParseSaveMode(name string) (SaveMode, error) {
	switch m := SaveMode(strings.ToLower(name)); m {
	case SaveOverwrite, SaveAppend, SaveErrorIfExists, SaveIgnore:
		return m, nil
	case "errorifexists", "":
		return SaveErrorIfExists, nil
	default:
		return "", fmt.Errorf("session: unknown save mode %q", name)
	}
}

// SuccessMarker is written last by every successful write.
const SuccessMarker = "_SUCCESS"

// isDataFile reports whether a listed name is a part file.
func isDataFile(name string) bool {
	return !strings.HasPrefix(name, "_") && !strings.HasPrefix(name, ".")
}

// Write persists f under path as a dataset of part files.
func (s *Session) Write(ctx context.Context, f *frame.Frame, path string, format Format, mode SaveMode) error {
	info := OperationInfo{Op: OpWrite, Path: path, Format: format, Mode: mode}
	return s.run(ctx, info, func(ctx context.Context, stats *IOStatistics) error {
		return s.write(ctx, f, info, stats)
	})
}

func (s *Session) write(ctx context.Context, f *frame.Frame, info OperationInfo, stats *IOStatistics) error {
	c, ok := codecs[info.Format]
	if !ok {
		return newError(KindUnsupportedFormat, OpWrite, info.Path, fmt.Errorf("format %q", info.Format))
	}
	if f.Schema() == nil {
		return newError(KindSchema, OpWrite, info.Path, errors.New("frame has no schema"))
	}
	store, err := s.resolve(ctx, info.Path)
	if err != nil {
		return newError(KindIO, OpWrite, info.Path, err)
	}

	existing, err := store.List(ctx, "")
	if err != nil {
		return newError(KindIO, OpWrite, info.Path, err)
	}
	var old []string
	hasData := false
	for _, name := range existing {
		if isDataFile(name) || name == SuccessMarker {
			hasData = true
		}
		if isDataFile(name) {
			old = append(old, name)
		}
	}

	first := 0
	switch info.Mode {
	case SaveOverwrite:
	case SaveAppend:
		first = len(old)
	case SaveErrorIfExists:
		if hasData {
			return newError(KindPathExists, OpWrite, info.Path, nil)
		}
	case SaveIgnore:
		if hasData {
			s.logger.Debug("write: path exists, ignoring", "path", info.Path)
			return nil
		}
	default:
		return newError(KindIO, OpWrite, info.Path, fmt.Errorf("unknown save mode %q", info.Mode))
	}

	parts := splitParts(f.Records(), s.cfg.RowsPerPart)
	defer func() {
		for _, p := range parts {
			releaseAll(p)
		}
	}()
	if len(parts) == 0 {
		parts = [][]arrow.RecordBatch{nil}
	}

	s.logger.Debug("write: writing dataset", "path", info.Path, "format", info.Format,
		"mode", info.Mode, "rows", f.NumRows(), "parts", len(parts))

	id := uuid.NewString()
	names := make([]string, len(parts))
	sizes := make([]int64, len(parts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Parallelism)
	for i, part := range parts {
		name := fmt.Sprintf("part-%05d-%s.%s", first+i, id, c.ext())
		names[i] = name
		g.Go(func() error {
			n, err := writePart(gctx, store, name, c, f.Schema(), part, s.cfg)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			sizes[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.removeParts(ctx, store, info.Path, names)
		return newError(KindIO, OpWrite, info.Path, err)
	}

	for i, part := range parts {
		stats.Parts++
		stats.Bytes += sizes[i]
		for _, rec := range part {
			stats.RecordBatch(rec.NumRows())
		}
	}

	if info.Mode == SaveOverwrite {
		for _, name := range old {
			if err := store.Delete(ctx, name); err != nil {
				return newError(KindIO, OpWrite, info.Path, err)
			}
		}
	}

	w, err := store.Create(ctx, SuccessMarker)
	if err != nil {
		return newError(KindIO, OpWrite, info.Path, err)
	}
	if err := w.Close(); err != nil {
		return newError(KindIO, OpWrite, info.Path, err)
	}
	return nil
}

func writePart(ctx context.Context, store storage.Store, name string, c codec, schema *arrow.Schema, records []arrow.RecordBatch, cfg Config) (int64, error) {
	w, err := store.Create(ctx, name)
	if err != nil {
		return 0, err
	}
	cw := &countingWriter{w: w}
	if err := c.write(cw, schema, records, cfg); err != nil {
		if abortErr := w.Abort(); abortErr != nil {
			return 0, errors.Join(err, abortErr)
		}
		return 0, err
	}
	if err := w.Close(); err != nil {
		return 0, err
	}
	return cw.n, nil
}

// removeParts deletes the parts of a failed write so that the dataset keeps
// only the files it held before. Names that were never committed are
// already absent.
func (s *Session) removeParts(ctx context.Context, store storage.Store, path string, names []string) {
	ctx = context.WithoutCancel(ctx)
	for _, name := range names {
		if err := store.Delete(ctx, name); err != nil {
			s.logger.Warn("write: could not remove part of failed write", "path", path, "part", name, "err", err)
		}
	}
}

// splitParts groups batches into parts of at most limit rows. Every returned
// batch is a new reference owned by the caller. A limit of zero keeps one
// part per batch.
func splitParts(records []arrow.RecordBatch, limit int) [][]arrow.RecordBatch {
	var parts [][]arrow.RecordBatch
	if limit <= 0 {
		for _, rec := range records {
			rec.Retain()
			parts = append(parts, []arrow.RecordBatch{rec})
		}
		return parts
	}

	var cur []arrow.RecordBatch
	var curRows int64
	for _, rec := range records {
		rows := rec.NumRows()
		if rows == 0 && len(records) == 1 {
			rec.Retain()
			return [][]arrow.RecordBatch{{rec}}
		}
		for off := int64(0); off < rows; {
			n := min(int64(limit)-curRows, rows-off)
			cur = append(cur, rec.NewSlice(off, off+n))
			curRows += n
			off += n
			if curRows == int64(limit) {
				parts = append(parts, cur)
				cur, curRows = nil, 0
			}
		}
	}
	if len(cur) > 0 {
		parts = append(parts, cur)
	}
	return parts
}
