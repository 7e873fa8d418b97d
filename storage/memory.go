// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStore implements Store in memory.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// Put stores data under name.
func (s *MemoryStore) Put(name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[name] = bytes.Clone(data)
}

// Create buffers writes until Close.
func (s *MemoryStore) Create(_ context.Context, name string) (Writer, error) {
	return &memoryWritable{store: s, name: name}, nil
}

// Open returns a reader over a snapshot of the blob.
func (s *MemoryStore) Open(_ context.Context, name string) (Blob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[name]
	if !ok {
		return nil, fmt.Errorf("storage: %s: %w", name, ErrNotFound)
	}
	return memoryBlob{Reader: bytes.NewReader(data)}, nil
}

// List returns the names starting with prefix.
func (s *MemoryStore) List(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var names []string
	for name := range s.blobs {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes a blob.
func (s *MemoryStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, name)
	return nil
}

type memoryBlob struct {
	*bytes.Reader
}

func (memoryBlob) Close() error { return nil }

type memoryWritable struct {
	store   *MemoryStore
	name    string
	buf     bytes.Buffer
	closed  bool
	aborted bool
}

func (w *memoryWritable) Write(p []byte) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("storage: write to closed blob %s", w.name)
	}
	return w.buf.Write(p)
}

func (w *memoryWritable) Close() error {
	if w.aborted {
		return ErrAborted
	}
	if w.closed {
		return nil
	}
	w.closed = true
	w.store.Put(w.name, w.buf.Bytes())
	return nil
}

func (w *memoryWritable) Abort() error {
	if !w.closed {
		w.closed, w.aborted = true, true
		w.buf.Reset()
	}
	return nil
}
