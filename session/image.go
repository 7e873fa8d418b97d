// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	gstorage "cloud.google.com/go/storage"
	"github.com/minio/minio-go/v7"

	"github.com/Query-farm/ligavision-go/vision"
)

// ReadImage fetches the content at uri into an embedded image. It accepts
// http(s)://, s3://bucket/key, gs://bucket/key, file:// and plain filesystem
// paths.
func (s *Session) ReadImage(ctx context.Context, uri string) (vision.Image, error) {
	info := OperationInfo{Op: OpReadImage, Path: uri}
	var img vision.Image
	err := s.run(ctx, info, func(ctx context.Context, stats *IOStatistics) error {
		data, err := s.fetch(ctx, uri)
		if err != nil {
			return err
		}
		stats.Parts = 1
		stats.Bytes = int64(len(data))
		img = vision.NewImage(data)
		return nil
	})
	return img, err
}

// ResolveImage returns img unchanged when it is embedded and fetches its URI
// otherwise.
func (s *Session) ResolveImage(ctx context.Context, img vision.Image) (vision.Image, error) {
	if img.IsEmbedded() {
		return img, nil
	}
	if img.URI == "" {
		return img, newError(KindNotFound, OpReadImage, "", errors.New("image has neither data nor uri"))
	}
	return s.ReadImage(ctx, img.URI)
}

func (s *Session) fetch(ctx context.Context, uri string) ([]byte, error) {
	scheme, _, ok := strings.Cut(uri, "://")
	if !ok {
		return s.readFile(uri)
	}
	switch strings.ToLower(scheme) {
	case "http", "https":
		return s.fetchHTTP(ctx, uri)
	case "s3":
		return s.fetchS3(ctx, uri)
	case "gs":
		return s.fetchGCS(ctx, uri)
	case "file":
		u, err := url.Parse(uri)
		if err != nil {
			return nil, newError(KindIO, OpReadImage, uri, err)
		}
		return s.readFile(u.Path)
	default:
		return nil, newError(KindUnsupportedFormat, OpReadImage, uri, fmt.Errorf("scheme %q", scheme))
	}
}

func (s *Session) readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, newError(KindNotFound, OpReadImage, path, err)
		}
		return nil, newError(KindIO, OpReadImage, path, err)
	}
	return data, nil
}

func (s *Session) fetchHTTP(ctx context.Context, uri string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, newError(KindIO, OpReadImage, uri, err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, newError(KindIO, OpReadImage, uri, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, newError(KindNotFound, OpReadImage, uri, fmt.Errorf("http status %s", resp.Status))
	case resp.StatusCode != http.StatusOK:
		return nil, newError(KindIO, OpReadImage, uri, fmt.Errorf("http status %s", resp.Status))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(KindIO, OpReadImage, uri, err)
	}
	s.logger.Debug("read_image: fetched", "uri", uri, "bytes", len(data),
		"content_type", resp.Header.Get("Content-Type"))
	return data, nil
}

func (s *Session) fetchS3(ctx context.Context, uri string) ([]byte, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, newError(KindIO, OpReadImage, uri, err)
	}
	client, err := s.s3Client()
	if err != nil {
		return nil, newError(KindIO, OpReadImage, uri, err)
	}
	obj, err := client.GetObject(ctx, u.Host, strings.TrimPrefix(u.Path, "/"), minio.GetObjectOptions{})
	if err != nil {
		return nil, newError(KindIO, OpReadImage, uri, err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, newError(KindNotFound, OpReadImage, uri, err)
		}
		return nil, newError(KindIO, OpReadImage, uri, err)
	}
	return data, nil
}

func (s *Session) fetchGCS(ctx context.Context, uri string) ([]byte, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, newError(KindIO, OpReadImage, uri, err)
	}
	client, err := s.gcsClient(ctx)
	if err != nil {
		return nil, newError(KindIO, OpReadImage, uri, err)
	}
	r, err := client.Bucket(u.Host).Object(strings.TrimPrefix(u.Path, "/")).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gstorage.ErrObjectNotExist) {
			return nil, newError(KindNotFound, OpReadImage, uri, err)
		}
		return nil, newError(KindIO, OpReadImage, uri, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, newError(KindIO, OpReadImage, uri, err)
	}
	return data, nil
}
