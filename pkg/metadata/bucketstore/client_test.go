// Copyright 2026 Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package bucketstore

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrylabs/quarry/pkg/storage"
	"github.com/quarrylabs/quarry/pkg/types"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	cfg := &types.BucketConfig{
		GUID:             uuid.NewString(),
		Name:             "test-bucket",
		OwnerID:          "owner-1",
		StorageType:      types.StorageTypeMemory,
		EnableVersioning: true,
		CreatedAt:        time.Now().UTC(),
	}
	client, err := Open(cfg, filepath.Join(t.TempDir(), "metadata.db"), storage.NewMemory())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func addObject(t *testing.T, c *Client, key, payload string) *types.ObjectRecord {
	t.Helper()

	now := time.Now().UTC()
	rec := &types.ObjectRecord{
		GUID:         uuid.NewString(),
		Key:          key,
		AuthorID:     "owner-1",
		OwnerID:      "owner-1",
		ContentType:  "text/plain",
		BlobFilename: uuid.NewString(),
		CreatedAt:    now,
		LastUpdate:   now,
		LastAccess:   now,
	}
	require.NoError(t, c.AddObject(context.Background(), rec, strings.NewReader(payload), true))
	return rec
}

func TestStatistics(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newTestClient(t)

	count, bytes, err := client.Statistics(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, bytes)

	addObject(t, client, "a", "0123456789")
	addObject(t, client, "b", "0123456789")

	count, bytes, err = client.Statistics(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
	assert.EqualValues(t, 20, bytes)

	// Delete markers do not count as live objects.
	_, err = client.InsertDeleteMarker(ctx, "a", "owner-1", "owner-1")
	require.NoError(t, err)

	count, _, err = client.Statistics(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}
