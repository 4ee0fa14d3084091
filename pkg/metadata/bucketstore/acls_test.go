// Copyright 2026 Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package bucketstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrylabs/quarry/pkg/s3api/s3consts"
	"github.com/quarrylabs/quarry/pkg/types"
)

func TestBucketACLFullReplace(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newTestClient(t)

	require.NoError(t, client.SetBucketACL(ctx, []types.AccessRule{
		{UserID: "owner", IssuedBy: "owner", Permissions: types.PermFullControl},
		{GroupURI: s3consts.AllUsersGroup, IssuedBy: "owner", Permissions: types.PermRead},
	}))

	rules, err := client.GetBucketACL(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 2)

	require.NoError(t, client.SetBucketACL(ctx, []types.AccessRule{
		{UserID: "owner", IssuedBy: "owner", Permissions: types.PermFullControl},
	}))
	rules, err = client.GetBucketACL(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "owner", rules[0].UserID)
	assert.True(t, rules[0].Permissions.Has(types.PermWriteACP))
}

func TestObjectACLIsolatedFromBucketACL(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newTestClient(t)

	rec := addObject(t, client, "key", "body")

	require.NoError(t, client.SetBucketACL(ctx, []types.AccessRule{
		{UserID: "owner", IssuedBy: "owner", Permissions: types.PermFullControl},
	}))
	require.NoError(t, client.SetObjectACL(ctx, rec.GUID, []types.AccessRule{
		{UserID: "reader", IssuedBy: "owner", Permissions: types.PermRead},
	}))

	objRules, err := client.GetObjectACL(ctx, rec.GUID)
	require.NoError(t, err)
	require.Len(t, objRules, 1)
	assert.Equal(t, "reader", objRules[0].UserID)
	assert.Equal(t, rec.GUID, objRules[0].ObjectGUID)

	bucketRules, err := client.GetBucketACL(ctx)
	require.NoError(t, err)
	require.Len(t, bucketRules, 1)
	assert.Equal(t, "owner", bucketRules[0].UserID)
	assert.Empty(t, bucketRules[0].ObjectGUID)

	// Replacing the object ACL does not touch bucket rules.
	require.NoError(t, client.SetObjectACL(ctx, rec.GUID, nil))
	objRules, err = client.GetObjectACL(ctx, rec.GUID)
	require.NoError(t, err)
	assert.Empty(t, objRules)

	bucketRules, err = client.GetBucketACL(ctx)
	require.NoError(t, err)
	assert.Len(t, bucketRules, 1)
}
