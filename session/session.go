// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package session is the engine handle that persists frames of vision types
// to columnar datasets and reads them back.
//
// A dataset is a directory (or object prefix) of part files plus an empty
// _SUCCESS marker:
//
//	sess := session.Default()
//	err := sess.Write(ctx, f, "/tmp/detections", session.FormatParquet, session.SaveOverwrite)
//	back, err := sess.Read(ctx, "/tmp/detections", session.FormatParquet)
//	defer back.Release()
package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	gstorage "cloud.google.com/go/storage"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Query-farm/ligavision-go/storage"
	gcsstore "github.com/Query-farm/ligavision-go/storage/gcs"
	miniostore "github.com/Query-farm/ligavision-go/storage/minio"
)

// StoreFunc opens the store for one dataset location. The location is the
// path with its scheme removed.
type StoreFunc func(ctx context.Context, location string) (storage.Store, error)

// Session is safe for concurrent use.
type Session struct {
	cfg        Config
	logger     *slog.Logger
	mem        memory.Allocator
	httpClient *http.Client
	stores     map[string]StoreFunc

	mu   sync.RWMutex
	hook Hook

	s3Once sync.Once
	s3     *minio.Client
	s3Err  error

	gcsOnce sync.Once
	gcs     *gstorage.Client
	gcsErr  error
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithHook installs an operation hook.
func WithHook(hook Hook) Option {
	return func(s *Session) { s.hook = hook }
}

// WithAllocator sets the allocator used for reads.
func WithAllocator(mem memory.Allocator) Option {
	return func(s *Session) { s.mem = mem }
}

// WithHTTPClient sets the client used to fetch http(s) images.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Session) { s.httpClient = client }
}

// WithStore routes paths of the form scheme://location to fn.
func WithStore(scheme string, fn StoreFunc) Option {
	return func(s *Session) { s.stores[strings.ToLower(scheme)] = fn }
}

// WithS3Client sets the client used for s3:// paths instead of building one
// from Config.S3.
func WithS3Client(client *minio.Client) Option {
	return func(s *Session) {
		s.s3Once.Do(func() { s.s3 = client })
	}
}

// WithGCSClient sets the client used for gs:// paths instead of one built
// from application default credentials.
func WithGCSClient(client *gstorage.Client) Option {
	return func(s *Session) {
		s.gcsOnce.Do(func() { s.gcs = client })
	}
}

// New creates a session.
func New(cfg Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Session{
		cfg:        cfg,
		logger:     slog.Default(),
		mem:        memory.NewGoAllocator(),
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		stores:     make(map[string]StoreFunc),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

var (
	defaultOnce    sync.Once
	defaultSession *Session
)

// Default returns the process-wide session, creating it from DefaultConfig
// on first use.
func Default() *Session {
	defaultOnce.Do(func() {
		s, err := New(DefaultConfig())
		if err != nil {
			panic(fmt.Sprintf("session: default config: %v", err))
		}
		defaultSession = s
	})
	return defaultSession
}

// Config returns the session configuration.
func (s *Session) Config() Config { return s.cfg }

// Logger returns the session logger.
func (s *Session) Logger() *slog.Logger { return s.logger }

// Allocator returns the allocator used for reads.
func (s *Session) Allocator() memory.Allocator { return s.mem }

// SetHook replaces the operation hook. A nil hook disables it.
func (s *Session) SetHook(hook Hook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = hook
}

// Hook returns the current operation hook.
func (s *Session) Hook() Hook {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hook
}

// run wraps fn with the operation hook.
func (s *Session) run(ctx context.Context, info OperationInfo, fn func(context.Context, *IOStatistics) error) error {
	stats := &IOStatistics{}
	ctx, token, active := s.startHook(ctx, info)
	err := fn(ctx, stats)
	if active {
		s.endHook(ctx, token, info, stats, err)
	}
	return err
}

// s3Client returns the client for s3:// paths, connecting on first use.
func (s *Session) s3Client() (*minio.Client, error) {
	s.s3Once.Do(func() {
		c := s.cfg.S3
		if c.Endpoint == "" {
			s.s3Err = fmt.Errorf("session: no S3 endpoint configured")
			return
		}
		s.s3, s.s3Err = minio.New(c.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(c.AccessKey, c.SecretKey, ""),
			Secure: c.UseSSL,
			Region: c.Region,
		})
	})
	return s.s3, s.s3Err
}

// gcsClient returns the client for gs:// paths, connecting on first use with
// application default credentials.
func (s *Session) gcsClient(ctx context.Context) (*gstorage.Client, error) {
	s.gcsOnce.Do(func() {
		s.gcs, s.gcsErr = gstorage.NewClient(context.WithoutCancel(ctx))
	})
	return s.gcs, s.gcsErr
}

// resolve returns the store for a dataset path.
func (s *Session) resolve(ctx context.Context, path string) (storage.Store, error) {
	scheme, location, ok := strings.Cut(path, "://")
	if !ok {
		return storage.NewLocalStore(path), nil
	}
	scheme = strings.ToLower(scheme)
	if fn, ok := s.stores[scheme]; ok {
		return fn(ctx, location)
	}
	switch scheme {
	case "file":
		u, err := url.Parse(path)
		if err != nil {
			return nil, err
		}
		return storage.NewLocalStore(u.Path), nil
	case "s3":
		bucket, prefix, err := miniostore.ParseURI(path)
		if err != nil {
			return nil, err
		}
		client, err := s.s3Client()
		if err != nil {
			return nil, err
		}
		return miniostore.NewStore(client, bucket, prefix), nil
	case "gs":
		bucket, prefix, err := gcsstore.ParseURI(path)
		if err != nil {
			return nil, err
		}
		client, err := s.gcsClient(ctx)
		if err != nil {
			return nil, err
		}
		return gcsstore.NewStore(client, bucket, prefix), nil
	default:
		return nil, fmt.Errorf("session: no store for scheme %q", scheme)
	}
}
