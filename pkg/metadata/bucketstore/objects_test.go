// Copyright 2026 Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package bucketstore

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrylabs/quarry/pkg/types"
)

func TestAddObjectVersionMonotonicity(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newTestClient(t)

	for i := 1; i <= 5; i++ {
		rec := addObject(t, client, "key", fmt.Sprintf("payload-%d", i))
		assert.EqualValues(t, i, rec.Version)

		latest, err := client.GetLatestVersion(ctx, "key")
		require.NoError(t, err)
		assert.EqualValues(t, i, latest)
	}

	rec, err := client.GetObjectLatest(ctx, "key")
	require.NoError(t, err)
	assert.EqualValues(t, 5, rec.Version)
}

func TestAddObjectRejectsOverwriteWithoutVersioning(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newTestClient(t)

	addObject(t, client, "key", "first")

	now := time.Now().UTC()
	rec := &types.ObjectRecord{
		GUID:         uuid.NewString(),
		Key:          "key",
		AuthorID:     "owner-1",
		OwnerID:      "owner-1",
		BlobFilename: uuid.NewString(),
		CreatedAt:    now,
		LastUpdate:   now,
		LastAccess:   now,
	}
	err := client.AddObject(ctx, rec, strings.NewReader("second"), false)
	require.ErrorIs(t, err, ErrKeyExists)

	// The original payload stays untouched.
	latest, err := client.GetObjectLatest(ctx, "key")
	require.NoError(t, err)
	data, err := client.Blobs().Read(ctx, latest.BlobFilename)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}

func TestAddObjectComputesETag(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newTestClient(t)

	rec := addObject(t, client, "key", "hello")
	// md5("hello")
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", rec.ETag)
	assert.EqualValues(t, 5, rec.ContentLength)

	stored, err := client.GetObjectLatest(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, rec.ETag, stored.ETag)
}

func TestGetObjectVersion(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newTestClient(t)

	first := addObject(t, client, "key", "v1")
	second := addObject(t, client, "key", "v2")

	rec, err := client.GetObjectVersion(ctx, "key", first.Version)
	require.NoError(t, err)
	assert.Equal(t, first.GUID, rec.GUID)

	rec, err = client.GetObjectVersion(ctx, "key", second.Version)
	require.NoError(t, err)
	assert.Equal(t, second.GUID, rec.GUID)

	_, err = client.GetObjectVersion(ctx, "key", 99)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestDeleteMarkerSemantics(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newTestClient(t)

	obj := addObject(t, client, "key", "hello")

	marker, err := client.InsertDeleteMarker(ctx, "key", "owner-1", "owner-1")
	require.NoError(t, err)
	assert.EqualValues(t, obj.Version+1, marker.Version)
	assert.True(t, marker.DeleteMarker)

	// Latest lookup reports not-found but surfaces the tombstone.
	rec, err := client.GetObjectLatest(ctx, "key")
	require.ErrorIs(t, err, ErrObjectNotFound)
	require.NotNil(t, rec)
	assert.True(t, rec.DeleteMarker)

	// The shadowed version stays retrievable by number.
	prev, err := client.GetObjectVersion(ctx, "key", obj.Version)
	require.NoError(t, err)
	assert.False(t, prev.DeleteMarker)

	// Version listings still enumerate the tombstone.
	page, err := client.Enumerate(ctx, EnumerateQuery{MaxResults: 10, IncludeVersions: true})
	require.NoError(t, err)
	require.Len(t, page.Objects, 2)
	assert.True(t, page.Objects[1].DeleteMarker)
	assert.True(t, page.Objects[1].IsLatest)
}

func TestInsertDeleteMarkerMissingKey(t *testing.T) {
	t.Parallel()
	client := newTestClient(t)

	_, err := client.InsertDeleteMarker(context.Background(), "missing", "owner-1", "owner-1")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestDeleteObjectVersion(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newTestClient(t)

	rec := addObject(t, client, "key", "hello")

	ok, err := client.DeleteObjectVersion(ctx, "key", rec.Version)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = client.GetObjectLatest(ctx, "key")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	// The blob went with the row.
	exists, err := client.Blobs().Exists(ctx, rec.BlobFilename)
	require.NoError(t, err)
	assert.False(t, exists)

	// Deleting an absent version reports false, not an error.
	ok, err = client.DeleteObjectVersion(ctx, "key", rec.Version)
	require.NoError(t, err)
	assert.False(t, ok)
}
