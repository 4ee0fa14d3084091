// Copyright 2026 Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package bucketstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrylabs/quarry/pkg/types"
)

func TestBucketTagsFullReplace(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newTestClient(t)

	require.NoError(t, client.SetBucketTags(ctx, []types.Tag{
		{Key: "env", Value: "prod"},
		{Key: "team", Value: "storage"},
	}))

	tags, err := client.GetBucketTags(ctx)
	require.NoError(t, err)
	assert.Len(t, tags, 2)

	// A second write replaces the whole set, it never merges.
	require.NoError(t, client.SetBucketTags(ctx, []types.Tag{{Key: "env", Value: "dev"}}))
	tags, err = client.GetBucketTags(ctx)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "dev", tags[0].Value)

	require.NoError(t, client.DeleteBucketTags(ctx))
	tags, err = client.GetBucketTags(ctx)
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestObjectTagsScopedByVersion(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newTestClient(t)

	v1 := addObject(t, client, "key", "v1")
	v2 := addObject(t, client, "key", "v2")

	require.NoError(t, client.SetObjectTags(ctx, v1.GUID, []types.Tag{{Key: "gen", Value: "1"}}))
	require.NoError(t, client.SetObjectTags(ctx, v2.GUID, []types.Tag{{Key: "gen", Value: "2"}}))

	tags, err := client.GetObjectTags(ctx, v1.GUID)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "1", tags[0].Value)

	tags, err = client.GetObjectTags(ctx, v2.GUID)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "2", tags[0].Value)

	require.NoError(t, client.DeleteObjectTags(ctx, v1.GUID))
	tags, err = client.GetObjectTags(ctx, v1.GUID)
	require.NoError(t, err)
	assert.Empty(t, tags)
}
