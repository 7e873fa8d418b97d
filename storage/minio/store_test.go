// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package minio

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Query-farm/ligavision-go/storage"
)

func TestParseURI(t *testing.T) {
	bucket, prefix, err := ParseURI("s3://datasets/vision/bbox/")
	require.NoError(t, err)
	assert.Equal(t, "datasets", bucket)
	assert.Equal(t, "vision/bbox", prefix)

	_, _, err = ParseURI("/tmp/bbox")
	assert.Error(t, err)
	_, _, err = ParseURI("s3:///nobucket")
	assert.Error(t, err)
}

func TestKey(t *testing.T) {
	s := NewStore(nil, "b", "/vision/bbox/")
	assert.Equal(t, "vision/bbox/part-00000.parquet", s.key("part-00000.parquet"))
	assert.Equal(t, "x", NewStore(nil, "b", "").key("x"))
}

// TestStoreIntegration requires a running MinIO instance, addressed by
// LIGAVISION_S3_ENDPOINT (default localhost:9000). It skips otherwise.
func TestStoreIntegration(t *testing.T) {
	endpoint := os.Getenv("LIGAVISION_S3_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:9000"
	}
	bucket := "test-ligavision"

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx := context.Background()
	if _, err := client.ListBuckets(ctx); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}
	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	store := NewStore(client, bucket, "roundtrip/bbox")

	w, err := store.Create(ctx, "part-00000.bin")
	require.NoError(t, err)
	_, err = w.Write([]byte("hello minio world"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	blob, err := store.Open(ctx, "part-00000.bin")
	require.NoError(t, err)
	defer blob.Close()
	require.Equal(t, int64(17), blob.Size())

	buf := make([]byte, 5)
	n, err := blob.ReadAt(buf, 6)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "minio", string(buf))

	all, err := io.ReadAll(io.NewSectionReader(blob, 0, blob.Size()))
	require.NoError(t, err)
	assert.Equal(t, "hello minio world", string(all))

	names, err := store.List(ctx, "part-")
	require.NoError(t, err)
	assert.Equal(t, []string{"part-00000.bin"}, names)

	require.NoError(t, store.Delete(ctx, "part-00000.bin"))
	require.NoError(t, store.Delete(ctx, "part-00000.bin"))

	_, err = store.Open(ctx, "part-00000.bin")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}
