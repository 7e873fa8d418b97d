// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package frame

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Frame is a named, immutable collection of rows backed by Arrow record
// batches that share one schema. Each batch is one partition.
type Frame struct {
	name    string
	schema  *arrow.Schema
	records []arrow.RecordBatch
	numRows int64
}

// New wraps existing record batches. The frame retains every batch; callers
// keep ownership of their own references.
func New(name string, schema *arrow.Schema, records []arrow.RecordBatch) *Frame {
	f := &Frame{name: name, schema: schema}
	for _, rec := range records {
		rec.Retain()
		f.records = append(f.records, rec)
		f.numRows += rec.NumRows()
	}
	return f
}

type options struct {
	mem       memory.Allocator
	batchSize int
}

// Option configures [FromRows].
type Option func(*options)

// WithAllocator sets the allocator used for the frame's buffers.
func WithAllocator(mem memory.Allocator) Option {
	return func(o *options) { o.mem = mem }
}

// WithBatchSize splits the rows into batches of at most n rows. The default
// keeps all rows in one batch.
func WithBatchSize(n int) Option {
	return func(o *options) { o.batchSize = n }
}

// SchemaOf returns the Arrow schema derived from the liga tags of T.
func SchemaOf[T any]() (*arrow.Schema, error) {
	schema, _, err := structToSchema(reflect.TypeFor[T]())
	return schema, err
}

// FromRows builds a frame from typed rows. T must be a struct (or pointer to
// struct) whose columns are declared with `liga` tags.
func FromRows[T any](name string, rows []T, opts ...Option) (*Frame, error) {
	o := options{mem: memory.NewGoAllocator()}
	for _, opt := range opts {
		opt(&o)
	}
	schema, bindings, err := structToSchema(reflect.TypeFor[T]())
	if err != nil {
		return nil, fmt.Errorf("frame %q: %w", name, err)
	}

	size := o.batchSize
	if size <= 0 || size > len(rows) {
		size = len(rows)
	}

	// An empty frame still carries one zero-row batch so the schema survives writes.
	bounds := [][2]int{{0, 0}}
	if len(rows) > 0 {
		bounds = bounds[:0]
		for start := 0; start < len(rows); start += size {
			bounds = append(bounds, [2]int{start, min(start+size, len(rows))})
		}
	}

	f := &Frame{name: name, schema: schema}
	for _, bd := range bounds {
		rec, err := buildRecord(o.mem, schema, bindings, rows[bd[0]:bd[1]])
		if err != nil {
			f.Release()
			return nil, fmt.Errorf("frame %q: %w", name, err)
		}
		f.records = append(f.records, rec)
		f.numRows += rec.NumRows()
	}
	return f, nil
}

func buildRecord[T any](mem memory.Allocator, schema *arrow.Schema, bindings []binding, rows []T) (arrow.RecordBatch, error) {
	builders := make([]array.Builder, len(bindings))
	for i, f := range schema.Fields() {
		builders[i] = array.NewBuilder(mem, f.Type)
		defer builders[i].Release()
	}

	for r, row := range rows {
		rv := reflect.ValueOf(row)
		if rv.Kind() == reflect.Ptr {
			if rv.IsNil() {
				return nil, fmt.Errorf("row %d is nil", r)
			}
			rv = rv.Elem()
		}
		for i, b := range bindings {
			fv := rv.Field(b.Index)
			if err := appendToBuilder(builders[i], schema.Field(i).Type, fv.Interface()); err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", r, b.Name, err)
			}
		}
	}

	cols := make([]arrow.Array, len(builders))
	for i, b := range builders {
		cols[i] = b.NewArray()
		defer cols[i].Release()
	}
	return array.NewRecordBatch(schema, cols, int64(len(rows))), nil
}

// Rows decodes every row of the frame into T. Columns are matched by name;
// columns absent from the frame and null values leave the zero value.
func Rows[T any](f *Frame) ([]T, error) {
	t := reflect.TypeFor[T]()
	isPtr := t.Kind() == reflect.Ptr
	st := t
	if isPtr {
		st = t.Elem()
	}
	_, bindings, err := structToSchema(st)
	if err != nil {
		return nil, fmt.Errorf("frame %q: %w", f.name, err)
	}

	out := make([]T, 0, f.numRows)
	for _, rec := range f.records {
		cols := make([]arrow.Array, len(bindings))
		for i, b := range bindings {
			if indices := rec.Schema().FieldIndices(b.Name); len(indices) > 0 {
				cols[i] = rec.Column(indices[0])
			}
		}
		for r := range int(rec.NumRows()) {
			row := reflect.New(st).Elem()
			for i, b := range bindings {
				col := cols[i]
				if col == nil || col.IsNull(r) {
					continue
				}
				if err := setFieldFromArrow(row.Field(b.Index), b.Type, col, r, b.Tag); err != nil {
					return nil, fmt.Errorf("frame %q row %d column %s: %w", f.name, len(out), b.Name, err)
				}
			}
			if isPtr {
				out = append(out, row.Addr().Interface().(T))
			} else {
				out = append(out, row.Interface().(T))
			}
		}
	}
	return out, nil
}

// Name returns the frame name.
func (f *Frame) Name() string { return f.name }

// Schema returns the shared schema of all batches.
func (f *Frame) Schema() *arrow.Schema { return f.schema }

// Records returns the frame's batches. The frame keeps ownership.
func (f *Frame) Records() []arrow.RecordBatch { return f.records }

// NumRows returns the total row count across batches.
func (f *Frame) NumRows() int64 { return f.numRows }

// Types returns the custom type name of each value-type column, read from
// the schema metadata. Frames without the metadata have no custom types.
func (f *Frame) Types() (map[string]string, error) {
	types := map[string]string{}
	if f.schema == nil {
		return types, nil
	}
	raw, ok := f.schema.Metadata().GetValue(MetaTypes)
	if !ok {
		return types, nil
	}
	if err := json.Unmarshal([]byte(raw), &types); err != nil {
		return map[string]string{}, fmt.Errorf("frame %q: metadata %s: %w", f.name, MetaTypes, err)
	}
	return types, nil
}

// Release drops the frame's references to its batches.
func (f *Frame) Release() {
	for _, rec := range f.records {
		rec.Release()
	}
	f.records = nil
}
