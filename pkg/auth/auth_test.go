// Copyright 2026 Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrylabs/quarry/pkg/iam"
	"github.com/quarrylabs/quarry/pkg/metadata/registry"
	"github.com/quarrylabs/quarry/pkg/s3api/s3consts"
	"github.com/quarrylabs/quarry/pkg/types"
)

type fixture struct {
	engine *Engine
	reg    *registry.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	reg, err := registry.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })

	addUser := func(guid, email, accessKey string) {
		require.NoError(t, reg.CreateUser(ctx, &iam.User{
			GUID: guid, DisplayName: guid, Email: email, CreatedAt: time.Now().UTC(),
		}))
		require.NoError(t, reg.CreateCredential(ctx, &iam.Credential{
			AccessKey: accessKey, SecretKey: "secret", UserGUID: guid, CreatedAt: time.Now().UTC(),
		}))
	}
	addUser("owner", "owner@example.com", "AKOWNER")
	addUser("reader", "reader@example.com", "AKREADER")
	addUser("stranger", "stranger@example.com", "AKSTRANGER")
	addUser("partner", "partner@example.com", "AKPARTNER")

	require.NoError(t, reg.AddBucket(ctx, &types.BucketConfig{
		GUID:                uuid.NewString(),
		Name:                "photos",
		OwnerID:             "owner",
		StorageType:         types.StorageTypeMemory,
		Region:              "us-east-1",
		EnableVersioning:    true,
		PermittedAccessKeys: []string{"AKPARTNER"},
		CreatedAt:           time.Now().UTC(),
	}))

	engine, err := NewEngine(reg, reg)
	require.NoError(t, err)
	return &fixture{engine: engine, reg: reg}
}

func (f *fixture) put(t *testing.T, key, body string) *types.ObjectRecord {
	t.Helper()
	ctx := context.Background()
	client, err := f.reg.ClientForBucket(ctx, "photos")
	require.NoError(t, err)

	now := time.Now().UTC()
	rec := &types.ObjectRecord{
		GUID:         uuid.NewString(),
		Key:          key,
		AuthorID:     "owner",
		OwnerID:      "owner",
		ContentType:  "text/plain",
		BlobFilename: uuid.NewString(),
		CreatedAt:    now,
		LastUpdate:   now,
		LastAccess:   now,
	}
	require.NoError(t, client.AddObject(ctx, rec, strings.NewReader(body), true))
	return rec
}

func (f *fixture) setBucketACL(t *testing.T, rules []types.AccessRule) {
	t.Helper()
	client, err := f.reg.ClientForBucket(context.Background(), "photos")
	require.NoError(t, err)
	require.NoError(t, client.SetBucketACL(context.Background(), rules))
}

func (f *fixture) build(t *testing.T, req AccessRequest) *RequestMetadata {
	t.Helper()
	m, err := f.engine.Build(context.Background(), req)
	require.NoError(t, err)
	return m
}

func TestBuildResolvesIdentity(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	m := f.build(t, AccessRequest{AccessKey: "AKOWNER"})
	require.True(t, m.Authenticated())
	assert.Equal(t, "owner", m.User.GUID)
	assert.Equal(t, "AKOWNER", m.Credential.AccessKey)

	m = f.build(t, AccessRequest{AccessKey: "AKUNKNOWN"})
	assert.False(t, m.Authenticated())
	assert.Nil(t, m.User)

	m = f.build(t, AccessRequest{})
	assert.False(t, m.Authenticated())
}

func TestBuildResolvesBucketAndObject(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.put(t, "pic.jpg", "bytes")

	m := f.build(t, AccessRequest{AccessKey: "AKOWNER", Bucket: "photos", Key: "pic.jpg"})
	require.NotNil(t, m.Bucket)
	require.NotNil(t, m.Client)
	require.NotNil(t, m.Object)
	assert.Equal(t, "pic.jpg", m.Object.Key)

	// Unknown bucket and key leave the fields nil without erroring.
	m = f.build(t, AccessRequest{AccessKey: "AKOWNER", Bucket: "missing", Key: "pic.jpg"})
	assert.Nil(t, m.Bucket)
	assert.Nil(t, m.Object)

	m = f.build(t, AccessRequest{AccessKey: "AKOWNER", Bucket: "photos", Key: "missing.jpg"})
	require.NotNil(t, m.Bucket)
	assert.Nil(t, m.Object)
}

func TestAuthorizeService(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	m := f.build(t, AccessRequest{AccessKey: "AKOWNER"})
	assert.Equal(t, PermitService, f.engine.AuthorizeService(m))

	m = f.build(t, AccessRequest{})
	assert.Equal(t, NotAuthorized, f.engine.AuthorizeService(m))
}

func TestAuthorizeBucketOwner(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	m := f.build(t, AccessRequest{AccessKey: "AKOWNER", Bucket: "photos"})
	assert.Equal(t, PermitBucket, f.engine.AuthorizeBucket(context.Background(), m, types.PermWrite))

	m = f.build(t, AccessRequest{AccessKey: "AKSTRANGER", Bucket: "photos"})
	assert.Equal(t, NotAuthorized, f.engine.AuthorizeBucket(context.Background(), m, types.PermRead))
}

func TestAuthorizeBucketPermittedAccessKey(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	// The allow list grants access regardless of ACL rules.
	m := f.build(t, AccessRequest{AccessKey: "AKPARTNER", Bucket: "photos"})
	assert.Equal(t, PermitBucket, f.engine.AuthorizeBucket(context.Background(), m, types.PermWrite))
}

func TestAuthorizeBucketACLGrants(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.setBucketACL(t, []types.AccessRule{
		{UserID: "reader", IssuedBy: "owner", Permissions: types.PermRead},
		{GroupURI: s3consts.AuthenticatedUsersGroup, IssuedBy: "owner", Permissions: types.PermReadACP},
	})

	ctx := context.Background()

	m := f.build(t, AccessRequest{AccessKey: "AKREADER", Bucket: "photos"})
	assert.Equal(t, PermitBucket, f.engine.AuthorizeBucket(ctx, m, types.PermRead))
	assert.Equal(t, NotAuthorized, f.engine.AuthorizeBucket(ctx, m, types.PermWrite))

	// Any signed-in identity matches the AuthenticatedUsers group.
	m = f.build(t, AccessRequest{AccessKey: "AKSTRANGER", Bucket: "photos"})
	assert.Equal(t, PermitBucket, f.engine.AuthorizeBucket(ctx, m, types.PermReadACP))

	// Anonymous matches neither rule.
	m = f.build(t, AccessRequest{Bucket: "photos"})
	assert.Equal(t, NotAuthorized, f.engine.AuthorizeBucket(ctx, m, types.PermRead))
}

func TestAuthorizeBucketMissingBucket(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	m := f.build(t, AccessRequest{AccessKey: "AKOWNER", Bucket: "missing"})
	assert.Equal(t, NotAuthorized, f.engine.AuthorizeBucket(context.Background(), m, types.PermRead))
}

func TestAuthorizeObjectAnonymousPublicRead(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.put(t, "pub.txt", "hi")
	f.setBucketACL(t, []types.AccessRule{
		{GroupURI: s3consts.AllUsersGroup, IssuedBy: "owner", Permissions: types.PermRead},
	})

	ctx := context.Background()

	m := f.build(t, AccessRequest{Bucket: "photos", Key: "pub.txt"})
	assert.Equal(t, PermitObject, f.engine.AuthorizeObject(ctx, m, types.PermRead))

	// Read-only grant does not cover writes.
	m = f.build(t, AccessRequest{Bucket: "photos", Key: "pub.txt"})
	assert.Equal(t, NotAuthorized, f.engine.AuthorizeObject(ctx, m, types.PermWrite))
}

func TestAuthorizeObjectAnonymousWriteDenied(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.put(t, "board.txt", "hi")
	f.setBucketACL(t, []types.AccessRule{
		{GroupURI: s3consts.AllUsersGroup, IssuedBy: "owner", Permissions: types.PermRead | types.PermWrite},
	})

	ctx := context.Background()

	// An AllUsers write grant never yields a write verdict without an
	// identity to record as author.
	m := f.build(t, AccessRequest{Bucket: "photos", Key: "board.txt"})
	assert.Equal(t, NotAuthorized, f.engine.AuthorizeObject(ctx, m, types.PermWrite))
	m = f.build(t, AccessRequest{Bucket: "photos"})
	assert.Equal(t, NotAuthorized, f.engine.AuthorizeBucket(ctx, m, types.PermWrite))

	// Reads stay open, and authenticated strangers still get the write.
	m = f.build(t, AccessRequest{Bucket: "photos", Key: "board.txt"})
	assert.Equal(t, PermitObject, f.engine.AuthorizeObject(ctx, m, types.PermRead))
	m = f.build(t, AccessRequest{AccessKey: "AKSTRANGER", Bucket: "photos", Key: "new.txt"})
	assert.Equal(t, PermitObject, f.engine.AuthorizeObject(ctx, m, types.PermWrite))
}

func TestAuthorizeObjectAnonymousDeniedOnDeleteMarker(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.put(t, "gone.txt", "hi")
	f.setBucketACL(t, []types.AccessRule{
		{GroupURI: s3consts.AllUsersGroup, IssuedBy: "owner", Permissions: types.PermRead},
	})

	ctx := context.Background()
	client, err := f.reg.ClientForBucket(ctx, "photos")
	require.NoError(t, err)
	_, err = client.InsertDeleteMarker(ctx, "gone.txt", "owner", "owner")
	require.NoError(t, err)

	// Anonymous readers stop at the marker even though the bucket is public.
	m := f.build(t, AccessRequest{Bucket: "photos", Key: "gone.txt"})
	require.NotNil(t, m.Object)
	assert.True(t, m.Object.DeleteMarker)
	assert.Equal(t, NotAuthorized, f.engine.AuthorizeObject(ctx, m, types.PermRead))

	// The owner still gets through to see NoSuchKey downstream.
	m = f.build(t, AccessRequest{AccessKey: "AKOWNER", Bucket: "photos", Key: "gone.txt"})
	assert.Equal(t, PermitObject, f.engine.AuthorizeObject(ctx, m, types.PermRead))
}

func TestAuthorizeObjectACLRules(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	rec := f.put(t, "shared.txt", "hi")

	ctx := context.Background()
	client, err := f.reg.ClientForBucket(ctx, "photos")
	require.NoError(t, err)
	require.NoError(t, client.SetObjectACL(ctx, rec.GUID, []types.AccessRule{
		{UserID: "reader", IssuedBy: "owner", Permissions: types.PermRead},
	}))

	// Object-scoped grant admits the reader with no bucket grant at all.
	m := f.build(t, AccessRequest{AccessKey: "AKREADER", Bucket: "photos", Key: "shared.txt"})
	assert.Equal(t, PermitObject, f.engine.AuthorizeObject(ctx, m, types.PermRead))

	m = f.build(t, AccessRequest{AccessKey: "AKSTRANGER", Bucket: "photos", Key: "shared.txt"})
	assert.Equal(t, NotAuthorized, f.engine.AuthorizeObject(ctx, m, types.PermRead))
}

func TestAuthorizeObjectBucketReaderReachesMissingKey(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.setBucketACL(t, []types.AccessRule{
		{UserID: "reader", IssuedBy: "owner", Permissions: types.PermRead},
	})

	// Bucket-level grants still apply when the key does not exist, so the
	// handler can answer NoSuchKey instead of AccessDenied.
	m := f.build(t, AccessRequest{AccessKey: "AKREADER", Bucket: "photos", Key: "absent.txt"})
	assert.Nil(t, m.Object)
	assert.Equal(t, PermitObject, f.engine.AuthorizeObject(context.Background(), m, types.PermRead))
}

func TestNewEngineRequiresCollaborators(t *testing.T) {
	t.Parallel()
	reg, err := registry.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })

	_, err = NewEngine(nil, reg)
	assert.Error(t, err)
	_, err = NewEngine(reg, nil)
	assert.Error(t, err)
}
