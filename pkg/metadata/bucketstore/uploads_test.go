// Copyright 2026 Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package bucketstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrylabs/quarry/pkg/types"
)

func TestUploadLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newTestClient(t)

	now := time.Now().UTC()
	require.NoError(t, client.AddUpload(ctx, &types.Upload{
		GUID:      "up-1",
		Key:       "videos/a.mp4",
		AuthorID:  "owner",
		OwnerID:   "owner",
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}))

	up, err := client.GetUpload(ctx, "up-1")
	require.NoError(t, err)
	assert.Equal(t, "videos/a.mp4", up.Key)

	require.NoError(t, client.DeleteUpload(ctx, "up-1"))
	_, err = client.GetUpload(ctx, "up-1")
	assert.ErrorIs(t, err, ErrUploadNotFound)
}

func TestGetUploadExpired(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newTestClient(t)

	now := time.Now().UTC()
	require.NoError(t, client.AddUpload(ctx, &types.Upload{
		GUID:      "stale",
		Key:       "k",
		AuthorID:  "owner",
		OwnerID:   "owner",
		CreatedAt: now.Add(-2 * time.Hour),
		ExpiresAt: now.Add(-time.Hour),
	}))

	_, err := client.GetUpload(ctx, "stale")
	assert.ErrorIs(t, err, ErrUploadNotFound)
}

func TestListUploadsPrefixAndExpiry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newTestClient(t)

	now := time.Now().UTC()
	add := func(guid, key string, expires time.Time) {
		require.NoError(t, client.AddUpload(ctx, &types.Upload{
			GUID: guid, Key: key, AuthorID: "owner", OwnerID: "owner",
			CreatedAt: now, ExpiresAt: expires,
		}))
	}
	add("a", "logs/2026/one", now.Add(time.Hour))
	add("b", "logs/2026/two", now.Add(time.Hour))
	add("c", "data/raw", now.Add(time.Hour))
	add("d", "logs/old", now.Add(-time.Minute))

	ups, err := client.ListUploads(ctx, "logs/", 100)
	require.NoError(t, err)
	require.Len(t, ups, 2)
	assert.Equal(t, "logs/2026/one", ups[0].Key)
	assert.Equal(t, "logs/2026/two", ups[1].Key)

	ups, err = client.ListUploads(ctx, "", 100)
	require.NoError(t, err)
	assert.Len(t, ups, 3)
}
