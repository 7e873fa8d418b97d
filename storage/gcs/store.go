// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package gcs provides a storage.Store backed by Google Cloud Storage.
//
//	client, err := storage.NewClient(ctx) // cloud.google.com/go/storage
//	store := gcsstore.NewStore(client, "datasets", "detections/")
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"sort"
	"strings"

	gstorage "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/Query-farm/ligavision-go/storage"
)

// Store implements storage.Store for one bucket prefix.
type Store struct {
	bucket *gstorage.BucketHandle
	name   string
	prefix string
}

// NewStore creates a store for the objects under prefix in bucket.
func NewStore(client *gstorage.Client, bucket, prefix string) *Store {
	return &Store{
		bucket: client.Bucket(bucket),
		name:   bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

// ParseURI splits a gs://bucket/prefix URI.
func ParseURI(uri string) (bucket, prefix string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", err
	}
	if u.Scheme != "gs" || u.Host == "" {
		return "", "", fmt.Errorf("gcs: not a gs://bucket/prefix URI: %q", uri)
	}
	return u.Host, strings.Trim(u.Path, "/"), nil
}

func (s *Store) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// Create uploads on Close. Writes are buffered by the client in chunks.
// Abort cancels the upload context, which discards the object.
func (s *Store) Create(ctx context.Context, name string) (storage.Writer, error) {
	ctx, cancel := context.WithCancel(ctx)
	w := s.bucket.Object(s.key(name)).NewWriter(ctx)
	return &writer{w: w, cancel: cancel}, nil
}

// Open reads the object's attributes and returns a ranged reader.
func (s *Store) Open(ctx context.Context, name string) (storage.Blob, error) {
	obj := s.bucket.Object(s.key(name))
	attrs, err := obj.Attrs(ctx)
	if err != nil {
		if errors.Is(err, gstorage.ErrObjectNotExist) {
			return nil, fmt.Errorf("gcs: %s/%s: %w", s.name, s.key(name), storage.ErrNotFound)
		}
		return nil, err
	}
	return &blob{ctx: ctx, obj: obj, size: attrs.Size}, nil
}

// List returns the object names directly under the store prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	root := s.prefix
	if root != "" {
		root += "/"
	}
	it := s.bucket.Objects(ctx, &gstorage.Query{Prefix: root + prefix, Delimiter: "/"})

	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		if attrs.Name == "" {
			// synthetic directory entry
			continue
		}
		names = append(names, strings.TrimPrefix(attrs.Name, root))
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes an object. Missing objects are not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	err := s.bucket.Object(s.key(name)).Delete(ctx)
	if err != nil && !errors.Is(err, gstorage.ErrObjectNotExist) {
		return err
	}
	return nil
}

type blob struct {
	ctx  context.Context
	obj  *gstorage.ObjectHandle
	size int64
}

func (b *blob) Size() int64 { return b.size }

func (b *blob) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off >= b.size {
		return 0, io.EOF
	}
	length := min(int64(len(p)), b.size-off)
	r, err := b.obj.NewRangeReader(b.ctx, off, length)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	n, err := io.ReadFull(r, p[:length])
	if err == nil && n < len(p) {
		err = io.EOF
	}
	return n, err
}

func (b *blob) Close() error { return nil }

type writer struct {
	w      *gstorage.Writer
	cancel context.CancelFunc
	closed bool
	err    error
}

func (w *writer) Write(p []byte) (int, error) {
	return w.w.Write(p)
}

func (w *writer) Close() error {
	if !w.closed {
		w.closed = true
		w.err = w.w.Close()
		w.cancel()
	}
	return w.err
}

func (w *writer) Abort() error {
	if !w.closed {
		w.closed = true
		w.cancel()
		_ = w.w.Close()
		w.err = storage.ErrAborted
	}
	return nil
}
