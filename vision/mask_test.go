// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskFromRLE(t *testing.T) {
	m, err := MaskFromRLE([]int32{1, 10, 10}, 3, 7)
	require.NoError(t, err)
	assert.Equal(t, MaskRLE, m.Type)

	arr, err := m.ToArray()
	require.NoError(t, err)
	require.Len(t, arr, 3)
	assert.Equal(t, []uint8{0, 1, 1, 1, 1, 1, 1}, arr[0])
	assert.Equal(t, []uint8{1, 1, 1, 1, 0, 0, 0}, arr[1])
	assert.Equal(t, []uint8{0, 0, 0, 0, 0, 0, 0}, arr[2])

	area, err := m.Area()
	require.NoError(t, err)
	assert.Equal(t, int64(10), area)
}

func TestMaskFromRLERejectsBadCounts(t *testing.T) {
	_, err := MaskFromRLE([]int32{1, 10}, 3, 7)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = MaskFromRLE([]int32{-1, 22}, 3, 7)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestMaskBitmapRejectsBadRuns(t *testing.T) {
	for _, m := range []Mask{
		{Type: MaskCocoRLE, Height: 2, Width: 2, Counts: []int32{0, -2, 6}},
		{Type: MaskRLE, Height: 2, Width: 2, Counts: []int32{5, -1}},
		{Type: MaskRLE, Height: 2, Width: 2, Counts: []int32{1, 2}},
		{Type: MaskCocoRLE, Height: 2, Width: 2, Counts: []int32{0, 1 << 30}},
		{Type: MaskRLE, Height: -2, Width: 2},
	} {
		_, err := m.Area()
		assert.ErrorIs(t, err, ErrInvalid, "%v", m)
		_, err = m.ToArray()
		assert.ErrorIs(t, err, ErrInvalid, "%v", m)
		_, err = m.IoU(m)
		assert.ErrorIs(t, err, ErrInvalid, "%v", m)
	}
}

func TestMaskFromRLECopiesCounts(t *testing.T) {
	counts := []int32{1, 10, 10}
	m, err := MaskFromRLE(counts, 3, 7)
	require.NoError(t, err)
	counts[0] = 5
	assert.Equal(t, []int32{1, 10, 10}, m.Counts)
}

func TestMaskArrayRoundTrip(t *testing.T) {
	pixels := [][]uint8{
		{1, 1, 0, 0},
		{0, 1, 1, 0},
		{0, 0, 0, 1},
	}
	m, err := MaskFromArray(pixels)
	require.NoError(t, err)
	assert.Equal(t, []int32{0, 2, 3, 2, 4, 1}, m.Counts)

	got, err := m.ToArray()
	require.NoError(t, err)
	assert.Equal(t, pixels, got)
}

func TestMaskCocoRLEIsColumnMajor(t *testing.T) {
	// 2x3 grid, column-major runs: one zero then two ones cover (1,0) and (0,1).
	m, err := MaskFromCocoRLE([]int32{1, 2, 3}, 2, 3)
	require.NoError(t, err)

	got, err := m.ToArray()
	require.NoError(t, err)
	assert.Equal(t, [][]uint8{
		{0, 1, 0},
		{1, 0, 0},
	}, got)
}

func TestMaskPolygon(t *testing.T) {
	m, err := MaskFromPolygon([][]float64{{1, 1, 3, 1, 3, 3, 1, 3}}, 4, 4)
	require.NoError(t, err)

	area, err := m.Area()
	require.NoError(t, err)
	assert.Equal(t, int64(4), area)

	box, err := m.BoundingBox()
	require.NoError(t, err)
	assert.Equal(t, NewBox2d(1, 1, 3, 3), box)

	_, err = MaskFromPolygon([][]float64{{1, 1, 3}}, 4, 4)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestMaskIoU(t *testing.T) {
	a, err := MaskFromArray([][]uint8{{1, 1}, {0, 0}})
	require.NoError(t, err)
	b, err := MaskFromArray([][]uint8{{0, 1}, {0, 1}})
	require.NoError(t, err)

	iou, err := a.IoU(b)
	require.NoError(t, err)
	assert.InDelta(t, 1.0/3.0, iou, 1e-9)

	c, err := MaskFromArray([][]uint8{{1}})
	require.NoError(t, err)
	_, err = a.IoU(c)
	assert.ErrorIs(t, err, ErrInvalid)
}
