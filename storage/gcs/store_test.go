// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package gcs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURI(t *testing.T) {
	bucket, prefix, err := ParseURI("gs://datasets/vision/masks")
	require.NoError(t, err)
	assert.Equal(t, "datasets", bucket)
	assert.Equal(t, "vision/masks", prefix)

	_, _, err = ParseURI("s3://datasets/vision")
	assert.Error(t, err)
}

func TestKey(t *testing.T) {
	s := &Store{prefix: "vision/masks"}
	assert.Equal(t, "vision/masks/_SUCCESS", s.key("_SUCCESS"))
	assert.Equal(t, "_SUCCESS", (&Store{}).key("_SUCCESS"))
}
