// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// LocalStore implements Store on a local directory. The directory is created
// on the first write.
type LocalStore struct {
	root string
}

// NewLocalStore creates a LocalStore rooted at the given directory.
func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

// Root returns the directory the store is rooted at.
func (s *LocalStore) Root() string { return s.root }

func (s *LocalStore) path(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("storage: invalid blob name %q", name)
	}
	return filepath.Join(s.root, name), nil
}

// Create writes to a temporary file that is renamed into place on Close.
func (s *LocalStore) Create(_ context.Context, name string) (Writer, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return nil, err
	}
	f, err := os.CreateTemp(s.root, "."+name+".tmp-*")
	if err != nil {
		return nil, err
	}
	return &localWritable{f: f, path: path}, nil
}

// Open opens a blob for reading.
func (s *LocalStore) Open(_ context.Context, name string) (Blob, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &localBlob{File: f, size: fi.Size()}, nil
}

// List returns the regular files in the store directory. A missing directory
// lists as empty.
func (s *LocalStore) List(_ context.Context, prefix string) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes a blob.
func (s *LocalStore) Delete(_ context.Context, name string) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

type localBlob struct {
	*os.File
	size int64
}

func (b *localBlob) Size() int64 { return b.size }

type localWritable struct {
	f    *os.File
	path string
	once sync.Once
	err  error
}

// Abort removes the temporary file without renaming it into place.
func (w *localWritable) Abort() error {
	var err error
	w.once.Do(func() {
		w.err = ErrAborted
		w.f.Close()
		if rmErr := os.Remove(w.f.Name()); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			err = rmErr
		}
	})
	return err
}

func (w *localWritable) Write(p []byte) (int, error) {
	return w.f.Write(p)
}

func (w *localWritable) Close() error {
	w.once.Do(func() {
		tmp := w.f.Name()
		if err := w.f.Sync(); err != nil {
			w.f.Close()
			os.Remove(tmp)
			w.err = err
			return
		}
		if err := w.f.Close(); err != nil {
			os.Remove(tmp)
			w.err = err
			return
		}
		if err := os.Rename(tmp, w.path); err != nil {
			os.Remove(tmp)
			w.err = err
		}
	})
	return w.err
}
