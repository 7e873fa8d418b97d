// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"golang.org/x/sync/errgroup"

	"github.com/Query-farm/ligavision-go/frame"
	"github.com/Query-farm/ligavision-go/storage"
)

// Read loads the dataset at path into a new frame named after the last path
// element. Part files are read concurrently and concatenated in name order.
// The caller releases the returned frame.
func (s *Session) Read(ctx context.Context, p string, format Format) (*frame.Frame, error) {
	info := OperationInfo{Op: OpRead, Path: p, Format: format}
	var out *frame.Frame
	err := s.run(ctx, info, func(ctx context.Context, stats *IOStatistics) error {
		f, err := s.read(ctx, info, stats)
		out = f
		return err
	})
	return out, err
}

func (s *Session) read(ctx context.Context, info OperationInfo, stats *IOStatistics) (*frame.Frame, error) {
	c, ok := codecs[info.Format]
	if !ok {
		return nil, newError(KindUnsupportedFormat, OpRead, info.Path, fmt.Errorf("format %q", info.Format))
	}
	store, err := s.resolve(ctx, info.Path)
	if err != nil {
		return nil, newError(KindIO, OpRead, info.Path, err)
	}
	names, err := store.List(ctx, "")
	if err != nil {
		return nil, newError(KindIO, OpRead, info.Path, err)
	}

	var parts []string
	marked := false
	for _, name := range names {
		switch {
		case name == SuccessMarker:
			marked = true
		case isDataFile(name):
			if !strings.HasSuffix(name, "."+c.ext()) {
				return nil, newError(KindUnsupportedFormat, OpRead, info.Path,
					fmt.Errorf("part %s is not %s", name, info.Format))
			}
			parts = append(parts, name)
		}
	}
	if len(parts) == 0 {
		if marked {
			return nil, newError(KindSchema, OpRead, info.Path, errors.New("dataset has no part files"))
		}
		return nil, newError(KindNotFound, OpRead, info.Path, nil)
	}

	type result struct {
		schema  *arrow.Schema
		records []arrow.RecordBatch
		size    int64
	}
	results := make([]result, len(parts))
	defer func() {
		for _, r := range results {
			releaseAll(r.records)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Parallelism)
	for i, name := range parts {
		g.Go(func() error {
			schema, records, size, err := readPart(gctx, store, name, c, s)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			results[i] = result{schema: schema, records: records, size: size}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		kind := KindIO
		if errors.Is(err, storage.ErrNotFound) {
			kind = KindNotFound
		}
		return nil, newError(kind, OpRead, info.Path, err)
	}

	schema := results[0].schema
	var records []arrow.RecordBatch
	for i, r := range results {
		if !schema.Equal(r.schema) {
			return nil, newError(KindSchema, OpRead, info.Path,
				fmt.Errorf("part %s schema %s differs from %s", parts[i], r.schema, schema))
		}
		stats.Parts++
		stats.Bytes += r.size
		for _, rec := range r.records {
			stats.RecordBatch(rec.NumRows())
			records = append(records, rec)
		}
	}

	s.logger.Debug("read: loaded dataset", "path", info.Path, "format", info.Format,
		"parts", stats.Parts, "rows", stats.Rows)
	return frame.New(path.Base(strings.TrimRight(info.Path, "/")), schema, records), nil
}

func readPart(ctx context.Context, store storage.Store, name string, c codec, s *Session) (*arrow.Schema, []arrow.RecordBatch, int64, error) {
	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, nil, 0, err
	}
	defer blob.Close()
	schema, records, err := c.read(ctx, blob, s.mem)
	if err != nil {
		return nil, nil, 0, err
	}
	return schema, records, blob.Size(), nil
}
