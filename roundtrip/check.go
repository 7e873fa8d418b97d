// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package roundtrip

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/require"

	"github.com/Query-farm/ligavision-go/frame"
	"github.com/Query-farm/ligavision-go/session"
)

// showRows is the number of rows logged before each write.
const showRows = 20

// Check writes rows to dir in overwrite mode, reads them back and compares
// both collections as multisets. A mismatch is returned as *MismatchError.
func Check[T any](ctx context.Context, sess *session.Session, rows []T, dir string, format session.Format) error {
	f, err := frame.FromRows(frameName(dir), rows)
	if err != nil {
		return err
	}
	defer f.Release()

	back, err := persist(ctx, sess, f, dir, format)
	if err != nil {
		return err
	}
	defer back.Release()

	got, err := frame.Rows[T](back)
	if err != nil {
		return err
	}
	if err := Equal(rows, got); err != nil {
		var mm *MismatchError
		if errors.As(err, &mm) {
			mm.Frame = f.Name()
		}
		return err
	}
	sess.Logger().Debug("roundtrip: ok", "frame", f.Name(), "format", format, "rows", len(rows))
	return nil
}

// CheckFrame is Check for an untyped frame. Rows are compared column by
// column on their Arrow values.
func CheckFrame(ctx context.Context, sess *session.Session, f *frame.Frame, dir string, format session.Format) error {
	back, err := persist(ctx, sess, f, dir, format)
	if err != nil {
		return err
	}
	defer back.Release()

	wantCols := columnNames(f.Schema())
	c := newCounter()
	for _, side := range []struct {
		f         *frame.Frame
		want, got int
	}{{f, 1, 0}, {back, 0, 1}} {
		for _, rec := range side.f.Records() {
			for r := range int(rec.NumRows()) {
				row := make([]any, rec.NumCols())
				for i, col := range rec.Columns() {
					row[i] = col.GetOneForMarshal(r)
				}
				key, err := rowKey(row)
				if err != nil {
					return fmt.Errorf("roundtrip %q: encode row %d: %w", f.Name(), r, err)
				}
				c.add(key, formatRow(wantCols, row), side.want, side.got)
			}
		}
	}
	return c.mismatch(f.Name())
}

// Validator runs frame checks with a fixed session and format.
type Validator struct {
	Session *session.Session
	Format  session.Format
}

// Validate runs CheckFrame for f under dir.
func (v *Validator) Validate(ctx context.Context, f *frame.Frame, dir string) error {
	sess := v.Session
	if sess == nil {
		sess = session.Default()
	}
	format := v.Format
	if format == "" {
		format = session.FormatParquet
	}
	return CheckFrame(ctx, sess, f, dir, format)
}

// Require is Check for tests: it stops the test on any error or mismatch.
func Require[T any](t testing.TB, sess *session.Session, rows []T, dir string, format session.Format) {
	t.Helper()
	require.NoError(t, Check(context.Background(), sess, rows, dir, format))
}

func persist(ctx context.Context, sess *session.Session, f *frame.Frame, dir string, format session.Format) (*frame.Frame, error) {
	logger := sess.Logger()
	if logger.Enabled(ctx, slog.LevelDebug) {
		var sb strings.Builder
		if err := f.Show(&sb, showRows); err == nil {
			logger.Debug("roundtrip: writing frame", "frame", f.Name(), "format", format, "table", "\n"+sb.String())
		}
	}
	if err := sess.Write(ctx, f, dir, format, session.SaveOverwrite); err != nil {
		return nil, err
	}
	back, err := sess.Read(ctx, dir, format)
	if err != nil {
		return nil, err
	}
	if err := compareSchemas(f.Name(), f.Schema(), back.Schema()); err != nil {
		back.Release()
		return nil, err
	}
	return back, nil
}

// compareSchemas requires the reloaded columns to match the written ones in
// name, order and Arrow type. Row values alone cannot tell an int64 column
// from one reloaded as int32.
func compareSchemas(name string, want, got *arrow.Schema) error {
	wantCols, gotCols := columnNames(want), columnNames(got)
	if !slices.Equal(wantCols, gotCols) {
		return fmt.Errorf("roundtrip %q: columns %v reloaded as %v", name, wantCols, gotCols)
	}
	for i, fd := range want.Fields() {
		if gotType := got.Field(i).Type; !arrow.TypeEqual(fd.Type, gotType) {
			return fmt.Errorf("roundtrip %q: column %s of type %s reloaded as %s", name, fd.Name, fd.Type, gotType)
		}
	}
	return nil
}

func frameName(dir string) string {
	return path.Base(strings.TrimRight(strings.ReplaceAll(dir, "\\", "/"), "/"))
}

func columnNames(schema *arrow.Schema) []string {
	if schema == nil {
		return nil
	}
	names := make([]string, schema.NumFields())
	for i, f := range schema.Fields() {
		names[i] = f.Name
	}
	return names
}

func formatRow(cols []string, row []any) string {
	parts := make([]string, len(row))
	for i, v := range row {
		if raw, ok := v.(json.RawMessage); ok {
			v = string(raw)
		}
		parts[i] = fmt.Sprintf("%s:%v", cols[i], v)
	}
	return "{" + strings.Join(parts, " ") + "}"
}
