// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/Query-farm/ligavision-go/storage"
)

// Format identifies an on-disk columnar format.
type Format string

const (
	FormatParquet   Format = "parquet"
	FormatArrow     Format = "arrow"
	FormatArrowZstd Format = "arrow+zstd"
	FormatArrowLZ4  Format = "arrow+lz4"
)

// Formats lists every supported format.
func Formats() []Format {
	return []Format{FormatParquet, FormatArrow, FormatArrowZstd, FormatArrowLZ4}
}

// ParseFormat maps a case-insensitive format name to a Format.
func ParseFormat(name string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := codecs[f]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
	return f, nil
}

// codec encodes one part file.
type codec interface {
	ext() string
	write(w io.Writer, schema *arrow.Schema, records []arrow.RecordBatch, cfg Config) error
	read(ctx context.Context, blob storage.Blob, mem memory.Allocator) (*arrow.Schema, []arrow.RecordBatch, error)
}

var codecs = map[Format]codec{
	FormatParquet:   parquetCodecImpl{},
	FormatArrow:     ipcCodec{extension: "arrow"},
	FormatArrowZstd: ipcCodec{extension: "arrow.zst", wrap: zstdWrap{}},
	FormatArrowLZ4:  ipcCodec{extension: "arrow.lz4", wrap: lz4Wrap{}},
}

func parquetCodec(name string) (compress.Compression, error) {
	switch strings.ToLower(name) {
	case "snappy", "":
		return compress.Codecs.Snappy, nil
	case "zstd":
		return compress.Codecs.Zstd, nil
	case "gzip":
		return compress.Codecs.Gzip, nil
	case "none", "uncompressed":
		return compress.Codecs.Uncompressed, nil
	default:
		return compress.Codecs.Uncompressed, fmt.Errorf("session: unknown parquet compression %q", name)
	}
}

type parquetCodecImpl struct{}

func (parquetCodecImpl) ext() string { return "parquet" }

func (parquetCodecImpl) write(w io.Writer, schema *arrow.Schema, records []arrow.RecordBatch, cfg Config) error {
	codec, err := parquetCodec(cfg.Compression)
	if err != nil {
		return err
	}
	props := parquet.NewWriterProperties(
		parquet.WithCompression(codec),
		parquet.WithMaxRowGroupLength(cfg.RowGroupLength),
	)
	fw, err := pqarrow.NewFileWriter(schema, w, props, pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema()))
	if err != nil {
		return err
	}
	for _, rec := range records {
		if err := fw.Write(rec); err != nil {
			fw.Close()
			return err
		}
	}
	return fw.Close()
}

func (parquetCodecImpl) read(ctx context.Context, blob storage.Blob, mem memory.Allocator) (*arrow.Schema, []arrow.RecordBatch, error) {
	tbl, err := pqarrow.ReadTable(ctx, io.NewSectionReader(blob, 0, blob.Size()),
		parquet.NewReaderProperties(mem), pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return nil, nil, err
	}
	defer tbl.Release()

	tr := array.NewTableReader(tbl, 0)
	defer tr.Release()

	var records []arrow.RecordBatch
	for tr.Next() {
		rec := tr.RecordBatch()
		rec.Retain()
		records = append(records, rec)
	}
	if err := tr.Err(); err != nil {
		releaseAll(records)
		return nil, nil, err
	}
	return tbl.Schema(), records, nil
}

// wrapper adds a compression frame around an IPC stream.
type wrapper interface {
	writer(w io.Writer) (io.WriteCloser, error)
	reader(r io.Reader) (io.Reader, func(), error)
}

type zstdWrap struct{}

func (zstdWrap) writer(w io.Writer) (io.WriteCloser, error) {
	return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

func (zstdWrap) reader(r io.Reader) (io.Reader, func(), error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, nil, err
	}
	return dec, dec.Close, nil
}

type lz4Wrap struct{}

func (lz4Wrap) writer(w io.Writer) (io.WriteCloser, error) {
	return lz4.NewWriter(w), nil
}

func (lz4Wrap) reader(r io.Reader) (io.Reader, func(), error) {
	return lz4.NewReader(r), func() {}, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// ipcCodec writes an Arrow IPC stream, optionally inside a compression frame.
type ipcCodec struct {
	extension string
	wrap      wrapper
}

func (c ipcCodec) ext() string { return c.extension }

func (c ipcCodec) write(w io.Writer, schema *arrow.Schema, records []arrow.RecordBatch, _ Config) error {
	var sink io.WriteCloser = nopWriteCloser{w}
	if c.wrap != nil {
		var err error
		if sink, err = c.wrap.writer(w); err != nil {
			return err
		}
	}
	writer := ipc.NewWriter(sink, ipc.WithSchema(schema))
	for _, rec := range records {
		if err := writer.Write(rec); err != nil {
			writer.Close()
			sink.Close()
			return err
		}
	}
	if err := writer.Close(); err != nil {
		sink.Close()
		return err
	}
	return sink.Close()
}

func (c ipcCodec) read(_ context.Context, blob storage.Blob, mem memory.Allocator) (*arrow.Schema, []arrow.RecordBatch, error) {
	var src io.Reader = io.NewSectionReader(blob, 0, blob.Size())
	if c.wrap != nil {
		r, done, err := c.wrap.reader(src)
		if err != nil {
			return nil, nil, err
		}
		defer done()
		src = r
	}
	reader, err := ipc.NewReader(src, ipc.WithAllocator(mem))
	if err != nil {
		return nil, nil, err
	}
	defer reader.Release()

	var records []arrow.RecordBatch
	for reader.Next() {
		rec := reader.RecordBatch()
		rec.Retain()
		records = append(records, rec)
	}
	if err := reader.Err(); err != nil {
		releaseAll(records)
		return nil, nil, err
	}
	return reader.Schema(), records, nil
}

func releaseAll(records []arrow.RecordBatch) {
	for _, rec := range records {
		rec.Release()
	}
}
