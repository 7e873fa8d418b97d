// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package sessionotel provides OpenTelemetry instrumentation for ligavision
// sessions. It implements the [session.Hook] interface to add tracing and
// metrics to dataset writes, reads and image fetches.
//
// Usage:
//
//	sess := session.Default()
//	sessionotel.Instrument(sess, sessionotel.DefaultConfig())
package sessionotel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/Query-farm/ligavision-go/session"
)

const instrumentationName = "ligavision"

// Config configures OpenTelemetry instrumentation for a session.
type Config struct {
	// TracerProvider supplies the tracer. Defaults to otel.GetTracerProvider().
	TracerProvider trace.TracerProvider
	// MeterProvider supplies the meter. Defaults to otel.GetMeterProvider().
	MeterProvider metric.MeterProvider
	// EnableTracing enables span creation. Default true.
	EnableTracing bool
	// EnableMetrics enables counter and histogram recording. Default true.
	EnableMetrics bool
	// RecordExceptions calls RecordError on the span for failed operations.
	// Default true.
	RecordExceptions bool
	// CustomAttributes are added to every span.
	CustomAttributes []attribute.KeyValue
}

// DefaultConfig returns a Config with tracing, metrics and error recording
// enabled. Providers are resolved from the global OTel SDK at
// instrumentation time.
func DefaultConfig() Config {
	return Config{
		EnableTracing:    true,
		EnableMetrics:    true,
		RecordExceptions: true,
	}
}

// Instrument installs an OpenTelemetry hook on sess via [session.Session.SetHook].
func Instrument(sess *session.Session, cfg Config) {
	sess.SetHook(NewHook(cfg))
}

// NewHook builds the hook without installing it.
func NewHook(cfg Config) session.Hook {
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = otel.GetMeterProvider()
	}

	h := &hook{
		cfg:    cfg,
		tracer: cfg.TracerProvider.Tracer(instrumentationName),
	}
	if cfg.EnableMetrics {
		meter := cfg.MeterProvider.Meter(instrumentationName)
		h.opCounter, _ = meter.Int64Counter("ligavision.session.operations",
			metric.WithUnit("{operation}"),
			metric.WithDescription("Number of session operations"),
		)
		h.durationHistogram, _ = meter.Float64Histogram("ligavision.session.duration",
			metric.WithUnit("s"),
			metric.WithDescription("Duration of session operations"),
		)
	}
	return h
}

type hook struct {
	cfg               Config
	tracer            trace.Tracer
	opCounter         metric.Int64Counter
	durationHistogram metric.Float64Histogram
}

type spanToken struct {
	span      trace.Span
	startTime time.Time
}

func (h *hook) OnOperationStart(ctx context.Context, info session.OperationInfo) (context.Context, session.HookToken) {
	if !h.cfg.EnableTracing {
		return ctx, &spanToken{startTime: time.Now()}
	}

	attrs := []attribute.KeyValue{
		attribute.String("ligavision.op", info.Op),
		attribute.String("ligavision.path", info.Path),
	}
	if info.Format != "" {
		attrs = append(attrs, attribute.String("ligavision.format", string(info.Format)))
	}
	if info.Mode != "" {
		attrs = append(attrs, attribute.String("ligavision.save_mode", string(info.Mode)))
	}
	attrs = append(attrs, h.cfg.CustomAttributes...)

	ctx, span := h.tracer.Start(ctx, "ligavision/"+info.Op,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
	return ctx, &spanToken{span: span, startTime: time.Now()}
}

func (h *hook) OnOperationEnd(ctx context.Context, token session.HookToken, info session.OperationInfo, stats *session.IOStatistics, err error) {
	st, ok := token.(*spanToken)
	if !ok {
		return
	}
	duration := time.Since(st.startTime)

	status := "ok"
	if err != nil {
		status = "error"
	}

	if h.cfg.EnableMetrics {
		metricAttrs := metric.WithAttributes(
			attribute.String("ligavision.op", info.Op),
			attribute.String("ligavision.format", string(info.Format)),
			attribute.String("status", status),
		)
		if h.opCounter != nil {
			h.opCounter.Add(ctx, 1, metricAttrs)
		}
		if h.durationHistogram != nil {
			h.durationHistogram.Record(ctx, duration.Seconds(), metricAttrs)
		}
	}

	if st.span == nil {
		return
	}
	defer st.span.End()
	if !st.span.IsRecording() {
		return
	}

	if stats != nil {
		st.span.SetAttributes(
			attribute.Int64("ligavision.parts", stats.Parts),
			attribute.Int64("ligavision.batches", stats.Batches),
			attribute.Int64("ligavision.rows", stats.Rows),
			attribute.Int64("ligavision.bytes", stats.Bytes),
		)
	}
	if err != nil {
		st.span.SetStatus(codes.Error, err.Error())
		if h.cfg.RecordExceptions {
			st.span.RecordError(err)
		}
		errType := fmt.Sprintf("%T", err)
		var serr *session.Error
		if errors.As(err, &serr) {
			errType = serr.Kind.String()
		}
		st.span.SetAttributes(attribute.String("ligavision.error_type", errType))
	} else {
		st.span.SetStatus(codes.Ok, "")
	}
}
