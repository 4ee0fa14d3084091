// Copyright 2026 Quarry Authors
// SPDX-License-Identifier: Apache-2.0

// Package auth resolves request identity and evaluates ownership and ACL
// grants into an authorization verdict. It never turns "not found" into an
// error; handlers decide which S3 error fits, since error precedence
// differs per operation.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/quarrylabs/quarry/pkg/iam"
	"github.com/quarrylabs/quarry/pkg/logger"
	"github.com/quarrylabs/quarry/pkg/metadata/bucketstore"
	"github.com/quarrylabs/quarry/pkg/metadata/registry"
	"github.com/quarrylabs/quarry/pkg/s3api/s3consts"
	"github.com/quarrylabs/quarry/pkg/types"
)

// AuthenticationResult is the identity outcome for a request.
type AuthenticationResult int

const (
	NotAuthenticated AuthenticationResult = iota
	Authenticated
)

// AuthorizationResult is the access verdict for a request.
type AuthorizationResult int

const (
	NotAuthorized AuthorizationResult = iota
	PermitService
	PermitBucket
	PermitObject
)

// AccessRequest describes the target of an inbound request after the wire
// layer has parsed it. Version zero targets the latest version.
type AccessRequest struct {
	AccessKey string
	Bucket    string
	Key       string
	Version   int64
}

// RequestMetadata is the per-request bundle threaded through the handlers:
// resolved identity, bucket, store client, object and preloaded bucket
// state, plus the verdicts. Unresolved references stay nil.
type RequestMetadata struct {
	User       *iam.User
	Credential *iam.Credential

	Bucket *types.BucketConfig
	Client *bucketstore.Client
	Object *types.ObjectRecord

	BucketACLs []types.AccessRule

	Authentication AuthenticationResult
	Authorization  AuthorizationResult
}

// Authenticated reports whether the request carries a resolved identity.
func (m *RequestMetadata) Authenticated() bool {
	return m.Authentication == Authenticated
}

// Authorized reports whether any permit verdict was reached.
func (m *RequestMetadata) Authorized() bool {
	return m.Authorization != NotAuthorized
}

// Engine builds RequestMetadata and evaluates authorization. Safe for
// concurrent use.
type Engine struct {
	users    iam.Store
	registry *registry.Registry
}

// NewEngine wires the engine to its collaborators. Both are required.
func NewEngine(users iam.Store, reg *registry.Registry) (*Engine, error) {
	if users == nil {
		return nil, errors.New("auth: identity store is required")
	}
	if reg == nil {
		return nil, errors.New("auth: registry is required")
	}
	return &Engine{users: users, registry: reg}, nil
}

// Build resolves the request target into a metadata bundle. Missing
// credentials, buckets and objects leave their fields nil; only internal
// store failures return an error.
func (e *Engine) Build(ctx context.Context, req AccessRequest) (*RequestMetadata, error) {
	m := &RequestMetadata{}

	if req.AccessKey != "" {
		user, cred, err := e.users.GetUserByAccessKey(ctx, req.AccessKey)
		switch {
		case errors.Is(err, iam.ErrAccessKeyNotFound), errors.Is(err, iam.ErrUserNotFound):
			// Stays NotAuthenticated.
		case err != nil:
			return nil, fmt.Errorf("resolve access key: %w", err)
		default:
			m.User = user
			m.Credential = cred
			m.Authentication = Authenticated
		}
	}

	if req.Bucket == "" {
		return m, nil
	}

	bucket, err := e.registry.GetBucketByName(ctx, req.Bucket)
	if errors.Is(err, registry.ErrBucketNotFound) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve bucket: %w", err)
	}
	m.Bucket = bucket

	client, err := e.registry.ClientForBucket(ctx, req.Bucket)
	if err != nil {
		return nil, fmt.Errorf("open bucket store: %w", err)
	}
	m.Client = client

	if m.BucketACLs, err = client.GetBucketACL(ctx); err != nil {
		return nil, fmt.Errorf("load bucket acls: %w", err)
	}

	if req.Key != "" {
		var rec *types.ObjectRecord
		if req.Version > 0 {
			rec, err = client.GetObjectVersion(ctx, req.Key, req.Version)
		} else {
			rec, err = client.GetObjectLatest(ctx, req.Key)
		}
		if err != nil && !errors.Is(err, bucketstore.ErrObjectNotFound) {
			return nil, fmt.Errorf("resolve object: %w", err)
		}
		// A tombstone row comes back alongside ErrObjectNotFound so the
		// handler can emit the delete-marker header.
		m.Object = rec
	}
	return m, nil
}

// AuthorizeService permits list-buckets for any authenticated identity.
func (e *Engine) AuthorizeService(m *RequestMetadata) AuthorizationResult {
	if m.Authenticated() {
		m.Authorization = PermitService
	} else {
		m.Authorization = NotAuthorized
	}
	return m.Authorization
}

// AuthorizeBucket evaluates a bucket-level operation needing perm.
// Precedence: owner, explicit permitted access keys, bucket ACL grants.
func (e *Engine) AuthorizeBucket(ctx context.Context, m *RequestMetadata, perm types.PermissionSet) AuthorizationResult {
	m.Authorization = NotAuthorized
	if m.Bucket == nil {
		return NotAuthorized
	}
	if e.bucketPermits(m, perm) {
		m.Authorization = PermitBucket
	}
	return m.Authorization
}

// AuthorizeObject evaluates an object-level operation needing perm. Object
// ACL grants are consulted first when the object resolved, then the same
// bucket-level precedence applies, so bucket readers can reach NoSuchKey
// instead of AccessDenied on missing keys.
func (e *Engine) AuthorizeObject(ctx context.Context, m *RequestMetadata, perm types.PermissionSet) AuthorizationResult {
	m.Authorization = NotAuthorized
	if m.Bucket == nil || m.Client == nil {
		return NotAuthorized
	}

	if m.Object != nil {
		if m.Authenticated() && m.User.GUID == m.Object.OwnerID {
			m.Authorization = PermitObject
			return m.Authorization
		}
		rules, err := m.Client.GetObjectACL(ctx, m.Object.GUID)
		if err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("key", m.Object.Key).
				Msg("failed to load object acls")
		} else if e.rulesPermit(m, rules, perm, m.Object.DeleteMarker) {
			m.Authorization = PermitObject
			return m.Authorization
		}
	}

	if e.bucketPermits(m, perm) {
		// Anonymous reads through public buckets stop at delete markers.
		if !m.Authenticated() && m.Object != nil && m.Object.DeleteMarker {
			return NotAuthorized
		}
		m.Authorization = PermitObject
	}
	return m.Authorization
}

func (e *Engine) bucketPermits(m *RequestMetadata, perm types.PermissionSet) bool {
	if m.Authenticated() && m.User.GUID == m.Bucket.OwnerID {
		return true
	}
	if m.Credential != nil && m.Bucket.PermitsAccessKey(m.Credential.AccessKey) {
		return true
	}
	return e.rulesPermit(m, m.BucketACLs, perm, false)
}

// writeClass is the set of permissions that mutate state and therefore
// require an authenticated author.
const writeClass = types.PermWrite | types.PermWriteACP | types.PermFullControl

func (e *Engine) rulesPermit(m *RequestMetadata, rules []types.AccessRule, perm types.PermissionSet, deleteMarker bool) bool {
	for i := range rules {
		rule := &rules[i]
		if !rule.Permissions.Has(perm) {
			continue
		}
		switch {
		case m.Authenticated() && rule.AppliesToUser(m.User.GUID):
			return true
		case m.Authenticated() && rule.AppliesToGroup(s3consts.AuthenticatedUsersGroup):
			return true
		case rule.AppliesToGroup(s3consts.AllUsersGroup):
			// Anonymous callers get read-class access only, and never
			// through a delete marker. Write verdicts need an identity.
			if !m.Authenticated() && (deleteMarker || perm&writeClass != 0) {
				continue
			}
			return true
		}
	}
	return false
}
