// Copyright 2026 Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package bucketstore

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnumeratePrefixFilter(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newTestClient(t)

	addObject(t, client, "docs/a", "x")
	addObject(t, client, "docs/b", "x")
	addObject(t, client, "img/c", "x")

	page, err := client.Enumerate(ctx, EnumerateQuery{Prefix: "docs/", MaxResults: 10})
	require.NoError(t, err)
	require.Len(t, page.Objects, 2)
	assert.Equal(t, "docs/a", page.Objects[0].Key)
	assert.Equal(t, "docs/b", page.Objects[1].Key)
	assert.False(t, page.IsTruncated)
}

func TestEnumerateLikeWildcardsAreLiteral(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newTestClient(t)

	addObject(t, client, "a_b", "x")
	addObject(t, client, "axb", "x")
	addObject(t, client, "50%", "x")

	page, err := client.Enumerate(ctx, EnumerateQuery{Prefix: "a_", MaxResults: 10})
	require.NoError(t, err)
	require.Len(t, page.Objects, 1)
	assert.Equal(t, "a_b", page.Objects[0].Key)

	page, err = client.Enumerate(ctx, EnumerateQuery{Prefix: "50%", MaxResults: 10})
	require.NoError(t, err)
	require.Len(t, page.Objects, 1)
}

func TestEnumerateDelimiterCollapse(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newTestClient(t)

	addObject(t, client, "photos/2025/a.jpg", "x")
	addObject(t, client, "photos/2026/b.jpg", "x")
	addObject(t, client, "photos/2026/c.jpg", "x")
	addObject(t, client, "readme.txt", "x")

	page, err := client.Enumerate(ctx, EnumerateQuery{Prefix: "photos/", Delimiter: "/", MaxResults: 10})
	require.NoError(t, err)
	assert.Empty(t, page.Objects)
	assert.Equal(t, []string{"photos/2025/", "photos/2026/"}, page.CommonPrefixes)

	// Without the prefix, the top level mixes prefixes and plain keys.
	page, err = client.Enumerate(ctx, EnumerateQuery{Delimiter: "/", MaxResults: 10})
	require.NoError(t, err)
	require.Len(t, page.Objects, 1)
	assert.Equal(t, "readme.txt", page.Objects[0].Key)
	assert.Equal(t, []string{"photos/"}, page.CommonPrefixes)
}

func TestEnumerateExactBoundaryNotTruncated(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newTestClient(t)

	for i := 0; i < 4; i++ {
		addObject(t, client, fmt.Sprintf("key-%d", i), "x")
	}

	// Page size equal to the total: the lookahead row proves there is no
	// more data, so the page must not claim truncation.
	page, err := client.Enumerate(ctx, EnumerateQuery{MaxResults: 4})
	require.NoError(t, err)
	assert.Len(t, page.Objects, 4)
	assert.False(t, page.IsTruncated)

	page, err = client.Enumerate(ctx, EnumerateQuery{MaxResults: 3})
	require.NoError(t, err)
	assert.Len(t, page.Objects, 3)
	assert.True(t, page.IsTruncated)
}

func TestEnumeratePaginationStability(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newTestClient(t)

	for i := 0; i < 10; i++ {
		addObject(t, client, fmt.Sprintf("key-%02d", i), "x")
	}

	seen := make(map[string]int)
	var cursor int64
	pages := 0
	for {
		page, err := client.Enumerate(ctx, EnumerateQuery{StartIndex: cursor, MaxResults: 3})
		require.NoError(t, err)
		for _, entry := range page.Objects {
			seen[entry.Key]++
		}

		// Insert new objects mid-pagination; they must neither appear in
		// already-issued pages nor shift the remaining ones.
		if pages == 1 {
			addObject(t, client, "zzz-late-0", "x")
			addObject(t, client, "zzz-late-1", "x")
		}

		if !page.IsTruncated {
			break
		}
		cursor = page.NextStartIndex
		pages++
	}

	for i := 0; i < 10; i++ {
		key := fmt.Sprintf("key-%02d", i)
		assert.Equal(t, 1, seen[key], "key %s listed wrong number of times", key)
	}
	// The late inserts got higher ids, so they show up exactly once too.
	assert.Equal(t, 1, seen["zzz-late-0"])
	assert.Equal(t, 1, seen["zzz-late-1"])
	assert.Len(t, seen, 12)
}

func TestEnumerateLatestOnlySkipsShadowedVersions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newTestClient(t)

	addObject(t, client, "key", "v1")
	latest := addObject(t, client, "key", "v2")

	page, err := client.Enumerate(ctx, EnumerateQuery{MaxResults: 10})
	require.NoError(t, err)
	require.Len(t, page.Objects, 1)
	assert.Equal(t, latest.GUID, page.Objects[0].GUID)
	assert.True(t, page.Objects[0].IsLatest)

	// A delete marker hides the key from current listings entirely.
	_, err = client.InsertDeleteMarker(ctx, "key", "owner-1", "owner-1")
	require.NoError(t, err)

	page, err = client.Enumerate(ctx, EnumerateQuery{MaxResults: 10})
	require.NoError(t, err)
	assert.Empty(t, page.Objects)
}
