// Copyright 2026 Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocal(t *testing.T) Driver {
	t.Helper()
	d, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func TestLocalWriteComputesDigest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := newLocal(t)

	md5hex, n, err := d.Write(ctx, "blob-1", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", md5hex)

	data, err := d.Read(ctx, "blob-1")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	size, err := d.Size(ctx, "blob-1")
	require.NoError(t, err)
	assert.EqualValues(t, 5, size)

	ok, err := d.Exists(ctx, "blob-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocalReadMissing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := newLocal(t)

	_, err := d.Read(ctx, "nope")
	assert.ErrorIs(t, err, ErrBlobNotFound)

	_, _, err = d.ReadStream(ctx, "nope")
	assert.ErrorIs(t, err, ErrBlobNotFound)

	ok, err := d.Exists(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalReadStream(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := newLocal(t)

	_, _, err := d.Write(ctx, "blob", strings.NewReader("streaming body"))
	require.NoError(t, err)

	rc, size, err := d.ReadStream(ctx, "blob")
	require.NoError(t, err)
	defer rc.Close()
	assert.EqualValues(t, 14, size)

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "streaming body", string(data))
}

func TestLocalReadRange(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := newLocal(t)

	_, _, err := d.Write(ctx, "blob", strings.NewReader("0123456789"))
	require.NoError(t, err)

	tests := []struct {
		name    string
		start   int64
		count   int64
		want    string
		wantErr error
	}{
		{name: "interior", start: 2, count: 3, want: "234"},
		{name: "full", start: 0, count: 10, want: "0123456789"},
		{name: "tail", start: 9, count: 1, want: "9"},
		{name: "zero length", start: 4, count: 0, want: ""},
		{name: "past end", start: 8, count: 5, wantErr: ErrInvalidRange},
		{name: "start beyond blob", start: 20, count: 1, wantErr: ErrInvalidRange},
		{name: "negative start", start: -1, count: 2, wantErr: ErrInvalidRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := d.ReadRange(ctx, "blob", tt.start, tt.count)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(data))
		})
	}
}

func TestLocalDeleteIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := newLocal(t)

	_, _, err := d.Write(ctx, "blob", strings.NewReader("x"))
	require.NoError(t, err)

	require.NoError(t, d.Delete(ctx, "blob"))
	ok, err := d.Exists(ctx, "blob")
	require.NoError(t, err)
	assert.False(t, ok)

	// Deleting an absent blob reports success.
	require.NoError(t, d.Delete(ctx, "blob"))
}

func TestLocalLargeWriteUsesPooledBuffers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := newLocal(t)

	body := strings.Repeat("q", 3*CopyBufferSize+17)
	md5hex, n, err := d.Write(ctx, "big", strings.NewReader(body))
	require.NoError(t, err)
	assert.EqualValues(t, len(body), n)
	assert.Len(t, md5hex, 32)

	data, err := d.Read(ctx, "big")
	require.NoError(t, err)
	assert.Equal(t, body, string(data))
}
