// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Query-farm/ligavision-go/frame"
	"github.com/Query-farm/ligavision-go/storage"
	"github.com/Query-farm/ligavision-go/vision"
)

var testSession *Session

func TestMain(m *testing.M) {
	sess, err := New(DefaultConfig(), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		panic(err)
	}
	testSession = sess
	os.Exit(m.Run())
}

type clipRow struct {
	Name  string         `liga:"name"`
	Box   vision.Box2d   `liga:"box"`
	Clip  vision.Segment `liga:"clip"`
	Frame vision.Image   `liga:"frame"`
	Tags  []string       `liga:"tags"`
}

func clipRows(n int) []clipRow {
	rows := make([]clipRow, n)
	for i := range rows {
		rows[i] = clipRow{
			Name: "clip-" + strings.Repeat("x", i),
			Box:  vision.NewBox2d(float64(i), 0.1, float64(i)+1.5, 2.25),
			Clip: vision.Segment{Start: int64(i), End: vision.OpenEnd},
			Tags: []string{"t"},
		}
		if i%2 == 0 {
			rows[i].Frame = vision.NewImage([]byte{0x89, 'P', 'N', 'G', byte(i)})
		} else {
			rows[i].Frame = vision.ImageFromURI("https://example.com/" + rows[i].Name)
		}
	}
	return rows
}

func newFrame(t *testing.T, rows []clipRow) *frame.Frame {
	t.Helper()
	f, err := frame.FromRows("clips", rows)
	require.NoError(t, err)
	t.Cleanup(f.Release)
	return f
}

func readRows(t *testing.T, sess *Session, path string, format Format) []clipRow {
	t.Helper()
	f, err := sess.Read(context.Background(), path, format)
	require.NoError(t, err)
	defer f.Release()
	rows, err := frame.Rows[clipRow](f)
	require.NoError(t, err)
	return rows
}

func TestWriteReadFormats(t *testing.T) {
	ctx := context.Background()
	rows := clipRows(5)
	f := newFrame(t, rows)

	for _, format := range Formats() {
		t.Run(string(format), func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "clips")
			require.NoError(t, testSession.Write(ctx, f, dir, format, SaveOverwrite))

			_, err := os.Stat(filepath.Join(dir, SuccessMarker))
			require.NoError(t, err)

			back, err := testSession.Read(ctx, dir, format)
			require.NoError(t, err)
			defer back.Release()
			assert.Equal(t, "clips", back.Name())
			assert.Equal(t, int64(5), back.NumRows())

			got, err := frame.Rows[clipRow](back)
			require.NoError(t, err)
			assert.ElementsMatch(t, rows, got)
		})
	}
}

func TestWriteEmptyFrame(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "empty")
	f := newFrame(t, nil)
	require.NoError(t, testSession.Write(context.Background(), f, dir, FormatArrow, SaveOverwrite))
	assert.Empty(t, readRows(t, testSession, dir, FormatArrow))
}

func TestRowsPerPart(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RowsPerPart = 2
	sess, err := New(cfg)
	require.NoError(t, err)

	dir := t.TempDir()
	rows := clipRows(5)
	require.NoError(t, sess.Write(context.Background(), newFrame(t, rows), dir, FormatParquet, SaveOverwrite))

	names, err := storage.NewLocalStore(dir).List(context.Background(), "part-")
	require.NoError(t, err)
	require.Len(t, names, 3)
	assert.True(t, strings.HasPrefix(names[0], "part-00000-"))
	assert.True(t, strings.HasSuffix(names[2], ".parquet"))

	assert.Equal(t, rows, readRows(t, sess, dir, FormatParquet))
}

func TestSaveModes(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	first := clipRows(2)
	second := clipRows(3)[2:]

	require.NoError(t, testSession.Write(ctx, newFrame(t, first), dir, FormatArrowZstd, SaveErrorIfExists))

	err := testSession.Write(ctx, newFrame(t, second), dir, FormatArrowZstd, SaveErrorIfExists)
	assert.True(t, errors.Is(err, ErrPathExists), "got %v", err)

	require.NoError(t, testSession.Write(ctx, newFrame(t, second), dir, FormatArrowZstd, SaveIgnore))
	assert.ElementsMatch(t, first, readRows(t, testSession, dir, FormatArrowZstd))

	require.NoError(t, testSession.Write(ctx, newFrame(t, second), dir, FormatArrowZstd, SaveAppend))
	assert.ElementsMatch(t, append(append([]clipRow{}, first...), second...), readRows(t, testSession, dir, FormatArrowZstd))

	require.NoError(t, testSession.Write(ctx, newFrame(t, second), dir, FormatArrowZstd, SaveOverwrite))
	assert.Equal(t, second, readRows(t, testSession, dir, FormatArrowZstd))

	names, err := storage.NewLocalStore(dir).List(ctx, "part-")
	require.NoError(t, err)
	assert.Len(t, names, 1)
}

func TestWriteErrors(t *testing.T) {
	ctx := context.Background()
	f := newFrame(t, clipRows(1))

	err := testSession.Write(ctx, f, t.TempDir(), Format("csv"), SaveOverwrite)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat), "got %v", err)

	err = testSession.Write(ctx, f, "ftp://host/x", FormatArrow, SaveOverwrite)
	require.Error(t, err)

	err = testSession.Write(ctx, f, t.TempDir(), FormatArrow, SaveMode("merge"))
	require.Error(t, err)
}

func TestReadErrors(t *testing.T) {
	ctx := context.Background()

	_, err := testSession.Read(ctx, filepath.Join(t.TempDir(), "missing"), FormatParquet)
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)

	dir := t.TempDir()
	require.NoError(t, testSession.Write(ctx, newFrame(t, clipRows(1)), dir, FormatArrowLZ4, SaveOverwrite))
	_, err = testSession.Read(ctx, dir, FormatParquet)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat), "got %v", err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "part-00009-bad.arrow.lz4"), []byte("garbage"), 0o644))
	_, err = testSession.Read(ctx, dir, FormatArrowLZ4)
	require.Error(t, err)
	var serr *Error
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, OpRead, serr.Op)
	assert.Equal(t, dir, serr.Path)
}

func TestCustomStore(t *testing.T) {
	var mu sync.Mutex
	stores := map[string]*storage.MemoryStore{}
	sess, err := New(DefaultConfig(), WithStore("mem", func(_ context.Context, location string) (storage.Store, error) {
		mu.Lock()
		defer mu.Unlock()
		if s, ok := stores[location]; ok {
			return s, nil
		}
		s := storage.NewMemoryStore()
		stores[location] = s
		return s, nil
	}))
	require.NoError(t, err)

	rows := clipRows(3)
	require.NoError(t, sess.Write(context.Background(), newFrame(t, rows), "mem://clips", FormatParquet, SaveOverwrite))
	assert.Equal(t, rows, readRows(t, sess, "mem://clips", FormatParquet))

	names, err := stores["clips"].List(context.Background(), "")
	require.NoError(t, err)
	assert.Contains(t, names, SuccessMarker)
}

type recordingHook struct {
	mu     sync.Mutex
	starts []OperationInfo
	stats  []IOStatistics
	errs   []error
}

func (h *recordingHook) OnOperationStart(ctx context.Context, info OperationInfo) (context.Context, HookToken) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.starts = append(h.starts, info)
	return ctx, len(h.starts)
}

func (h *recordingHook) OnOperationEnd(_ context.Context, token HookToken, info OperationInfo, stats *IOStatistics, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stats = append(h.stats, *stats)
	h.errs = append(h.errs, err)
}

func TestHookStatistics(t *testing.T) {
	hook := &recordingHook{}
	sess, err := New(DefaultConfig(), WithHook(hook))
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, sess.Write(context.Background(), newFrame(t, clipRows(4)), dir, FormatArrow, SaveOverwrite))
	readRows(t, sess, dir, FormatArrow)

	require.Len(t, hook.starts, 2)
	assert.Equal(t, OpWrite, hook.starts[0].Op)
	assert.Equal(t, SaveOverwrite, hook.starts[0].Mode)
	assert.Equal(t, OpRead, hook.starts[1].Op)
	for i, st := range hook.stats {
		assert.Equal(t, int64(1), st.Parts, "op %d", i)
		assert.Equal(t, int64(4), st.Rows, "op %d", i)
		assert.Positive(t, st.Bytes, "op %d", i)
		assert.NoError(t, hook.errs[i])
	}
	assert.Equal(t, hook.stats[0].Bytes, hook.stats[1].Bytes)

	sess.SetHook(nil)
	readRows(t, sess, dir, FormatArrow)
	assert.Len(t, hook.starts, 2)
}

type panicHook struct{}

func (panicHook) OnOperationStart(ctx context.Context, _ OperationInfo) (context.Context, HookToken) {
	panic("start")
}

func (panicHook) OnOperationEnd(context.Context, HookToken, OperationInfo, *IOStatistics, error) {
	panic("end")
}

func TestPanickingHook(t *testing.T) {
	var logs bytes.Buffer
	sess, err := New(DefaultConfig(),
		WithHook(panicHook{}),
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, sess.Write(context.Background(), newFrame(t, clipRows(1)), dir, FormatArrow, SaveOverwrite))
	assert.Contains(t, logs.String(), "operation hook start panic")
}

func TestReadImage(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cat.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}))
	defer srv.Close()

	ctx := context.Background()
	img, err := testSession.ReadImage(ctx, srv.URL+"/cat.png")
	require.NoError(t, err)
	assert.Equal(t, png, img.Data)
	assert.Equal(t, "image/png", img.MimeType())

	_, err = testSession.ReadImage(ctx, srv.URL+"/missing.png")
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)

	path := filepath.Join(t.TempDir(), "cat.png")
	require.NoError(t, os.WriteFile(path, png, 0o644))
	img, err = testSession.ReadImage(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, png, img.Data)
	img, err = testSession.ReadImage(ctx, "file://"+path)
	require.NoError(t, err)
	assert.Equal(t, png, img.Data)

	_, err = testSession.ReadImage(ctx, filepath.Join(t.TempDir(), "nope.png"))
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)

	_, err = testSession.ReadImage(ctx, "gopher://x/y")
	assert.True(t, errors.Is(err, ErrUnsupportedFormat), "got %v", err)

	resolved, err := testSession.ResolveImage(ctx, vision.ImageFromURI(srv.URL+"/cat.png"))
	require.NoError(t, err)
	assert.True(t, resolved.IsEmbedded())
	embedded := vision.NewImage([]byte{1, 2, 3})
	same, err := testSession.ResolveImage(ctx, embedded)
	require.NoError(t, err)
	assert.Equal(t, embedded, same)
}

func TestParse(t *testing.T) {
	f, err := ParseFormat(" Arrow+ZSTD ")
	require.NoError(t, err)
	assert.Equal(t, FormatArrowZstd, f)
	_, err = ParseFormat("orc")
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))

	m, err := ParseSaveMode("ErrorIfExists")
	require.NoError(t, err)
	assert.Equal(t, SaveErrorIfExists, m)
	_, err = ParseSaveMode("merge")
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.Compression = "brotli9000"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Parallelism = 0
	_, err := New(cfg)
	assert.Error(t, err)

	for _, codec := range []string{"zstd", "gzip", "none"} {
		cfg := DefaultConfig()
		cfg.Compression = codec
		sess, err := New(cfg)
		require.NoError(t, err, codec)
		dir := t.TempDir()
		rows := clipRows(2)
		require.NoError(t, sess.Write(context.Background(), newFrame(t, rows), dir, FormatParquet, SaveOverwrite))
		assert.Equal(t, rows, readRows(t, sess, dir, FormatParquet), codec)
	}
}

func TestErrorString(t *testing.T) {
	err := newError(KindNotFound, OpRead, "/data/x", errors.New("boom"))
	assert.Equal(t, "read /data/x: not found: boom", err.Error())
	assert.Equal(t, "path exists", ErrPathExists.Error())
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrSchema))
}

func TestDefaultIsShared(t *testing.T) {
	assert.Same(t, Default(), Default())
}

var errDiskFull = errors.New("no space left on device")

// faultyStore is a MemoryStore whose part writes fail after writeLimit
// bytes, or whose Create fails for names starting with failCreate.
type faultyStore struct {
	*storage.MemoryStore
	writeLimit int
	failCreate string
}

func (s *faultyStore) Create(ctx context.Context, name string) (storage.Writer, error) {
	if s.failCreate != "" && strings.HasPrefix(name, s.failCreate) {
		return nil, errDiskFull
	}
	w, err := s.MemoryStore.Create(ctx, name)
	if err != nil || s.writeLimit == 0 || name == SuccessMarker {
		return w, err
	}
	return &limitedWriter{Writer: w, left: s.writeLimit}, nil
}

type limitedWriter struct {
	storage.Writer
	left int
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	if len(p) > w.left {
		n, _ := w.Writer.Write(p[:w.left])
		w.left = 0
		return n, errDiskFull
	}
	w.left -= len(p)
	return w.Writer.Write(p)
}

func newFaultySession(t *testing.T, cfg Config) (*Session, *faultyStore) {
	t.Helper()
	fs := &faultyStore{MemoryStore: storage.NewMemoryStore()}
	sess, err := New(cfg,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithStore("faulty", func(context.Context, string) (storage.Store, error) { return fs, nil }),
	)
	require.NoError(t, err)
	return sess, fs
}

func TestFailedPartWriteLeavesDatasetReadable(t *testing.T) {
	ctx := context.Background()
	sess, fs := newFaultySession(t, DefaultConfig())

	rows := clipRows(2)
	require.NoError(t, sess.Write(ctx, newFrame(t, rows), "faulty://clips", FormatArrow, SaveOverwrite))
	before, err := fs.List(ctx, "")
	require.NoError(t, err)

	fs.writeLimit = 12
	err = sess.Write(ctx, newFrame(t, clipRows(3)), "faulty://clips", FormatArrow, SaveAppend)
	require.Error(t, err)
	assert.Contains(t, err.Error(), errDiskFull.Error())

	after, err := fs.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, rows, readRows(t, sess, "faulty://clips", FormatArrow))
}

func TestFailedOverwriteRemovesItsParts(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.RowsPerPart = 1
	cfg.Parallelism = 1
	sess, fs := newFaultySession(t, cfg)

	rows := clipRows(2)
	require.NoError(t, sess.Write(ctx, newFrame(t, rows), "faulty://clips", FormatParquet, SaveOverwrite))
	before, err := fs.List(ctx, "")
	require.NoError(t, err)

	fs.failCreate = "part-00001"
	replacement := clipRows(4)[2:]
	err = sess.Write(ctx, newFrame(t, replacement), "faulty://clips", FormatParquet, SaveOverwrite)
	require.Error(t, err)

	after, err := fs.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.ElementsMatch(t, rows, readRows(t, sess, "faulty://clips", FormatParquet))
}
