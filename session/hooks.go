// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"io"
)

// Operation names passed in OperationInfo.Op.
const (
	OpWrite     = "write"
	OpRead      = "read"
	OpReadImage = "read_image"
)

// Hook provides observability callpoints around session operations.
// Implementations must be safe for concurrent use.
type Hook interface {
	OnOperationStart(ctx context.Context, info OperationInfo) (context.Context, HookToken)
	OnOperationEnd(ctx context.Context, token HookToken, info OperationInfo, stats *IOStatistics, err error)
}

// HookToken is an opaque value returned by OnOperationStart and passed back
// to OnOperationEnd. Only meaningful to the Hook that created it.
type HookToken interface{}

// OperationInfo describes one session operation.
type OperationInfo struct {
	Op     string // OpWrite, OpRead or OpReadImage
	Path   string // dataset path or image URI
	Format Format // empty for OpReadImage
	Mode   SaveMode
}

// IOStatistics holds per-operation I/O counters.
type IOStatistics struct {
	Parts   int64
	Batches int64
	Rows    int64
	Bytes   int64
}

// RecordBatch records one batch with the given row count.
func (s *IOStatistics) RecordBatch(numRows int64) {
	s.Batches++
	s.Rows += numRows
}

// startHook calls OnOperationStart, recovering from a panicking hook.
func (s *Session) startHook(ctx context.Context, info OperationInfo) (context.Context, HookToken, bool) {
	hook := s.Hook()
	if hook == nil {
		return ctx, nil, false
	}
	active := false
	var token HookToken
	func() {
		defer func() {
			if rv := recover(); rv != nil {
				s.logger.Error("operation hook start panic", "op", info.Op, "err", rv)
			}
		}()
		hookCtx, tok := hook.OnOperationStart(ctx, info)
		if hookCtx != nil {
			ctx = hookCtx
		}
		token = tok
		active = true
	}()
	return ctx, token, active
}

// endHook calls OnOperationEnd, recovering from a panicking hook.
func (s *Session) endHook(ctx context.Context, token HookToken, info OperationInfo, stats *IOStatistics, err error) {
	hook := s.Hook()
	if hook == nil {
		return
	}
	defer func() {
		if rv := recover(); rv != nil {
			s.logger.Error("operation hook end panic", "op", info.Op, "err", rv)
		}
	}()
	hook.OnOperationEnd(ctx, token, info, stats, err)
}

// countingWriter counts bytes on their way to a part file.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
