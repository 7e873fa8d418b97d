// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Query-farm/ligavision-go/conformance"
	"github.com/Query-farm/ligavision-go/roundtrip"
	"github.com/Query-farm/ligavision-go/session"
	"github.com/Query-farm/ligavision-go/vision"
)

// execute runs the CLI with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestFlagKey(t *testing.T) {
	assert.Equal(t, "rows_per_part", flagKey("rows-per-part"))
	assert.Equal(t, "s3.access_key", flagKey("s3-access-key"))
	assert.Equal(t, "trace", flagKey("trace"))
}

func TestLoadConfigLayers(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "ligavision.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
compression: zstd
rows_per_part: 100
http_timeout: 5s
log_level: debug
s3:
  endpoint: minio.local:9000
  use_ssl: false
`), 0o644))
	t.Setenv("LIGAVISION_PARALLELISM", "3")
	t.Setenv("LIGAVISION_S3_ACCESS_KEY", "from-env")

	v, err := newViper(file)
	require.NoError(t, err)
	cfg, err := loadConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "zstd", cfg.Session.Compression)
	assert.Equal(t, 100, cfg.Session.RowsPerPart)
	assert.Equal(t, 3, cfg.Session.Parallelism)
	assert.Equal(t, 5*time.Second, cfg.Session.HTTPTimeout)
	assert.Equal(t, "minio.local:9000", cfg.Session.S3.Endpoint)
	assert.Equal(t, "from-env", cfg.Session.S3.AccessKey)
	assert.False(t, cfg.Session.S3.UseSSL)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, session.DefaultConfig().RowGroupLength, cfg.Session.RowGroupLength)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := newViper(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	t.Setenv("LIGAVISION_COMPRESSION", "lzma")
	v, err := newViper("")
	require.NoError(t, err)
	_, err = loadConfig(v)
	assert.Error(t, err)
}

func TestRoundtripCommand(t *testing.T) {
	out, err := execute(t, "roundtrip", "--format", "parquet,arrow+lz4", "--dir", t.TempDir(), "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "ok   bbox")
	assert.Contains(t, out, "arrow+lz4")
	assert.NotContains(t, out, "FAIL")
}

func TestRoundtripCommandRejectsFormat(t *testing.T) {
	_, err := execute(t, "roundtrip", "--format", "csv", "--log-level", "error")
	assert.ErrorIs(t, err, session.ErrUnsupportedFormat)
}

func TestShowCommand(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "youtube")
	sess, err := session.New(session.DefaultConfig())
	require.NoError(t, err)
	roundtrip.Require(t, sess, []conformance.YouTubeRow{
		{Video: vision.YouTubeVideo{VID: "video_id"}},
		{Video: vision.YouTubeVideo{VID: "other_video_id"}},
	}, dir, session.FormatArrow)

	out, err := execute(t, "show", dir, "--format", "arrow", "-n", "1", "--schema", "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "root\n |-- _1:")
	assert.Contains(t, out, "only showing top 1 rows")
}

func TestBenchCommand(t *testing.T) {
	out, err := execute(t, "bench", "--rows", "20", "--batch-size", "8", "--format", "arrow+zstd", "--verify", "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "arrow+zstd")
	assert.Contains(t, out, "rows=20")
}

func TestImageCommand(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	src := filepath.Join(t.TempDir(), "in.png")
	dst := filepath.Join(t.TempDir(), "out.png")
	require.NoError(t, os.WriteFile(src, png, 0o644))

	out, err := execute(t, "image", src, "-o", dst, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "image/png")
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, png, got)
}

func TestTraceFlag(t *testing.T) {
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{"roundtrip", "--format", "arrow", "--dir", t.TempDir(), "--trace", "--log-level", "error"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, errOut.String(), "ligavision/write")
	assert.Contains(t, errOut.String(), "ligavision.session.operations")
}
