// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"fmt"
	"runtime"
	"time"
)

// Config configures a [Session].
type Config struct {
	// Compression is the Parquet codec: "snappy", "zstd", "gzip" or "none".
	Compression string
	// RowsPerPart caps the rows in one part file. Zero writes one part per
	// frame batch.
	RowsPerPart int
	// RowGroupLength caps the rows in one Parquet row group.
	RowGroupLength int64
	// Parallelism bounds concurrent part reads.
	Parallelism int
	// HTTPTimeout applies to image fetches over http(s).
	HTTPTimeout time.Duration
	// S3 addresses the object store used for s3:// paths.
	S3 S3Config
}

// S3Config holds the endpoint and credentials for an S3-compatible store.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Compression:    "snappy",
		RowGroupLength: 64 * 1024,
		Parallelism:    runtime.GOMAXPROCS(0),
		HTTPTimeout:    30 * time.Second,
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if _, err := parquetCodec(c.Compression); err != nil {
		return err
	}
	if c.RowsPerPart < 0 {
		return fmt.Errorf("session: negative rows per part %d", c.RowsPerPart)
	}
	if c.RowGroupLength <= 0 {
		return fmt.Errorf("session: row group length must be positive, got %d", c.RowGroupLength)
	}
	if c.Parallelism <= 0 {
		return fmt.Errorf("session: parallelism must be positive, got %d", c.Parallelism)
	}
	return nil
}
