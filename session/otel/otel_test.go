// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package sessionotel

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Query-farm/ligavision-go/frame"
	"github.com/Query-farm/ligavision-go/session"
	"github.com/Query-farm/ligavision-go/vision"
)

type pointRow struct {
	Point vision.Point `liga:"point"`
}

func attrValue(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestInstrument(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	sess, err := session.New(session.DefaultConfig())
	require.NoError(t, err)
	cfg := DefaultConfig()
	cfg.TracerProvider = tp
	cfg.MeterProvider = mp
	cfg.CustomAttributes = []attribute.KeyValue{attribute.String("suite", "otel")}
	Instrument(sess, cfg)

	f, err := frame.FromRows("points", []pointRow{{vision.Point{X: 1, Y: 2, Z: 3}}, {vision.Point{X: -1}}})
	require.NoError(t, err)
	defer f.Release()

	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "points")
	require.NoError(t, sess.Write(ctx, f, dir, session.FormatParquet, session.SaveOverwrite))
	back, err := sess.Read(ctx, dir, session.FormatParquet)
	require.NoError(t, err)
	back.Release()
	_, err = sess.Read(ctx, filepath.Join(t.TempDir(), "missing"), session.FormatParquet)
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 3)
	assert.Equal(t, "ligavision/write", spans[0].Name())
	assert.Equal(t, "ligavision/read", spans[1].Name())

	rows, ok := attrValue(spans[0].Attributes(), "ligavision.rows")
	require.True(t, ok)
	assert.Equal(t, int64(2), rows.AsInt64())
	mode, ok := attrValue(spans[0].Attributes(), "ligavision.save_mode")
	require.True(t, ok)
	assert.Equal(t, "overwrite", mode.AsString())
	suite, ok := attrValue(spans[1].Attributes(), "suite")
	require.True(t, ok)
	assert.Equal(t, "otel", suite.AsString())
	assert.Equal(t, codes.Ok, spans[1].Status().Code)

	assert.Equal(t, codes.Error, spans[2].Status().Code)
	errType, ok := attrValue(spans[2].Attributes(), "ligavision.error_type")
	require.True(t, ok)
	assert.Equal(t, "not found", errType.AsString())
	assert.NotEmpty(t, spans[2].Events())

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	names := map[string]bool{}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	assert.True(t, names["ligavision.session.operations"])
	assert.True(t, names["ligavision.session.duration"])
	assert.Equal(t, int64(3), total)
}

func TestTracingDisabled(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	sess, err := session.New(session.DefaultConfig())
	require.NoError(t, err)
	cfg := DefaultConfig()
	cfg.TracerProvider = tp
	cfg.EnableTracing = false
	cfg.EnableMetrics = false
	Instrument(sess, cfg)

	_, err = sess.Read(context.Background(), t.TempDir(), session.FormatArrow)
	require.Error(t, err)
	assert.Empty(t, recorder.Ended())
}
