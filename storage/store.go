// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package storage provides the blob store abstraction that session datasets
// are written to and read from.
//
// A [Store] is scoped to one dataset location: blob names are relative to
// it and never contain path separators. Implementations must be safe for
// concurrent use.
//
// Built-in implementations:
//
//   - [LocalStore]: a directory on the local file system
//   - [MemoryStore]: an in-process map, for tests
//   - minio.Store: S3-compatible object storage
//   - gcs.Store: Google Cloud Storage
package storage

import (
	"context"
	"errors"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations return an error that satisfies errors.Is(err, ErrNotFound).
var ErrNotFound = os.ErrNotExist

// ErrAborted is returned by Writer.Close after the write was aborted.
var ErrAborted = errors.New("storage: write aborted")

// Store reads and writes the blobs of one dataset location.
type Store interface {
	// Create opens a blob for writing. The blob becomes visible to Open and
	// List only after Close returns nil.
	Create(ctx context.Context, name string) (Writer, error)
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// List returns the sorted names of all blobs starting with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
}

// Writer is a blob being written. Close commits it and Abort discards it.
// Whichever is called first wins: Close after Abort returns ErrAborted, and
// Abort after Close is a no-op. Both are idempotent.
type Writer interface {
	io.WriteCloser
	Abort() error
}

// Blob is a read-only handle to a stored blob.
type Blob interface {
	io.ReaderAt
	io.Closer
	// Size returns the size of the blob in bytes.
	Size() int64
}
