// Copyright 2026 Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/quarrylabs/quarry/pkg/auth"
	"github.com/quarrylabs/quarry/pkg/iam"
	"github.com/quarrylabs/quarry/pkg/logger"
	"github.com/quarrylabs/quarry/pkg/metadata/bucketstore"
	"github.com/quarrylabs/quarry/pkg/metadata/registry"
	"github.com/quarrylabs/quarry/pkg/s3api/s3acl"
	"github.com/quarrylabs/quarry/pkg/s3api/s3consts"
	"github.com/quarrylabs/quarry/pkg/s3api/s3err"
	"github.com/quarrylabs/quarry/pkg/s3api/s3types"
	"github.com/quarrylabs/quarry/pkg/types"
)

// BucketHandler serves bucket-level operations.
type BucketHandler struct {
	engine   *auth.Engine
	registry *registry.Registry
	users    iam.Store
}

func NewBucketHandler(engine *auth.Engine, reg *registry.Registry, users iam.Store) *BucketHandler {
	return &BucketHandler{engine: engine, registry: reg, users: users}
}

// CreateBucketRequest carries the parsed CreateBucket inputs.
type CreateBucketRequest struct {
	Name        string
	Region      string
	StorageType types.StorageType
	CannedACL   string
	Headers     http.Header
}

// Create registers a new bucket owned by the requester and seeds its ACL.
func (h *BucketHandler) Create(ctx context.Context, m *auth.RequestMetadata, req CreateBucketRequest) (*types.BucketConfig, error) {
	if !m.Authenticated() {
		return nil, s3err.ErrAccessDenied
	}
	if !types.ValidBucketName(req.Name) || types.IsReservedBucketName(req.Name) {
		return nil, s3err.ErrInvalidBucketName
	}
	if m.Bucket != nil {
		if m.Bucket.OwnerID == m.User.GUID {
			return nil, s3err.ErrBucketAlreadyOwnedByYou
		}
		return nil, s3err.ErrBucketAlreadyExists
	}

	cfg := &types.BucketConfig{
		GUID:        uuid.NewString(),
		Name:        req.Name,
		OwnerID:     m.User.GUID,
		StorageType: req.StorageType,
		Region:      req.Region,
		CreatedAt:   time.Now().UTC(),
	}
	if cfg.StorageType == "" {
		cfg.StorageType = types.StorageTypeDisk
	}
	if cfg.Region == "" {
		cfg.Region = s3consts.DefaultRegion
	}

	if err := h.registry.AddBucket(ctx, cfg); err != nil {
		if errors.Is(err, registry.ErrBucketExists) {
			return nil, s3err.ErrBucketAlreadyExists
		}
		logger.Ctx(ctx).Error().Err(err).Str("bucket", req.Name).Msg("failed to register bucket")
		return nil, s3err.ErrInternalError
	}

	client, err := h.registry.ClientForBucket(ctx, cfg.Name)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("bucket", req.Name).Msg("failed to open new bucket store")
		return nil, s3err.ErrInternalError
	}

	canned := req.CannedACL
	if canned == "" {
		canned = s3types.ACLPrivate.String()
	}
	acl, err := s3types.ParseCannedACL(canned)
	if err != nil {
		return nil, s3err.ErrInvalidArgument
	}
	rules := s3acl.FromCanned(acl, cfg.OwnerID)
	if req.Headers != nil && s3acl.HasGrantHeaders(req.Headers) {
		parsed, err := s3acl.ParseGrantHeaders(ctx, req.Headers, m.User.GUID, h.users)
		if err != nil {
			return nil, s3err.ErrInvalidArgument
		}
		rules = append(rules, parsed...)
	}
	if err := client.SetBucketACL(ctx, rules); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("bucket", req.Name).Msg("failed to seed bucket acl")
		return nil, s3err.ErrInternalError
	}
	return cfg, nil
}

// Delete removes an empty bucket, its store and its blob directory.
func (h *BucketHandler) Delete(ctx context.Context, m *auth.RequestMetadata) error {
	if err := requireBucketAccess(ctx, h.engine, m, types.PermWrite); err != nil {
		return err
	}

	count, bytes, err := m.Client.Statistics(ctx)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("bucket", m.Bucket.Name).Msg("failed to gather bucket statistics")
		return s3err.ErrInternalError
	}
	if count > 0 || bytes > 0 {
		logger.Ctx(ctx).Debug().Str("bucket", m.Bucket.Name).
			Int64("objects", count).Str("size", humanize.Bytes(uint64(bytes))).
			Msg("bucket deletion blocked, not empty")
		return s3err.ErrBucketNotEmpty
	}

	if err := h.registry.RemoveBucket(ctx, m.Bucket.Name); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("bucket", m.Bucket.Name).Msg("failed to remove bucket")
		return s3err.ErrInternalError
	}
	return nil
}

// Head checks bucket existence and read access.
func (h *BucketHandler) Head(ctx context.Context, m *auth.RequestMetadata) error {
	return requireBucketAccess(ctx, h.engine, m, types.PermRead)
}

// GetLocation returns the bucket's region constraint.
func (h *BucketHandler) GetLocation(ctx context.Context, m *auth.RequestMetadata) (*s3types.LocationConstraint, error) {
	if err := requireBucketAccess(ctx, h.engine, m, types.PermRead); err != nil {
		return nil, err
	}
	return &s3types.LocationConstraint{
		Xmlns:    s3consts.XMLNamespace,
		Location: m.Bucket.Region,
	}, nil
}

// ListObjectsRequest carries the parsed ListObjects query.
type ListObjectsRequest struct {
	Prefix    string
	Delimiter string
	Marker    string
	MaxKeys   int
}

// ListObjects lists current object versions, v1 semantics. The marker is
// an opaque continuation token wrapping the next surrogate-id cursor.
func (h *BucketHandler) ListObjects(ctx context.Context, m *auth.RequestMetadata, req ListObjectsRequest) (*s3types.ListBucketResult, error) {
	if err := requireBucketAccess(ctx, h.engine, m, types.PermRead); err != nil {
		return nil, err
	}
	query, err := buildEnumerateQuery(req.Prefix, req.Delimiter, req.Marker, req.MaxKeys, false)
	if err != nil {
		return nil, err
	}

	page, err := m.Client.Enumerate(ctx, *query)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("bucket", m.Bucket.Name).Msg("failed to enumerate objects")
		return nil, s3err.ErrInternalError
	}

	result := &s3types.ListBucketResult{
		Xmlns:       s3consts.XMLNamespace,
		Name:        m.Bucket.Name,
		Prefix:      req.Prefix,
		Marker:      req.Marker,
		Delimiter:   req.Delimiter,
		MaxKeys:     query.MaxResults,
		IsTruncated: page.IsTruncated,
	}
	for _, entry := range page.Objects {
		result.Contents = append(result.Contents, s3types.ObjectContent{
			Key:          entry.Key,
			LastModified: formatTime(entry.LastUpdate),
			ETag:         quoteETag(entry.ETag),
			Size:         entry.ContentLength,
			StorageClass: s3consts.DefaultStorageClass,
			Owner:        &s3types.Owner{ID: entry.OwnerID},
		})
	}
	for _, p := range page.CommonPrefixes {
		result.CommonPrefixes = append(result.CommonPrefixes, s3types.CommonPrefix{Prefix: p})
	}
	if page.IsTruncated {
		result.NextMarker = bucketstore.BuildContinuationToken(page.NextStartIndex)
	}
	return result, nil
}

// ListVersions lists every version row, delete markers included.
func (h *BucketHandler) ListVersions(ctx context.Context, m *auth.RequestMetadata, req ListObjectsRequest) (*s3types.ListVersionsResult, error) {
	if err := requireBucketAccess(ctx, h.engine, m, types.PermRead); err != nil {
		return nil, err
	}
	query, err := buildEnumerateQuery(req.Prefix, req.Delimiter, req.Marker, req.MaxKeys, true)
	if err != nil {
		return nil, err
	}

	page, err := m.Client.Enumerate(ctx, *query)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("bucket", m.Bucket.Name).Msg("failed to enumerate versions")
		return nil, s3err.ErrInternalError
	}

	result := &s3types.ListVersionsResult{
		Xmlns:       s3consts.XMLNamespace,
		Name:        m.Bucket.Name,
		Prefix:      req.Prefix,
		KeyMarker:   req.Marker,
		Delimiter:   req.Delimiter,
		MaxKeys:     query.MaxResults,
		IsTruncated: page.IsTruncated,
	}
	for _, entry := range page.Objects {
		if entry.DeleteMarker {
			result.DeleteMarkers = append(result.DeleteMarkers, s3types.DeleteMarker{
				Key:          entry.Key,
				VersionID:    FormatVersionID(entry.Version),
				IsLatest:     entry.IsLatest,
				LastModified: formatTime(entry.LastUpdate),
				Owner:        &s3types.Owner{ID: entry.OwnerID},
			})
			continue
		}
		result.Versions = append(result.Versions, s3types.ObjectVersion{
			Key:          entry.Key,
			VersionID:    FormatVersionID(entry.Version),
			IsLatest:     entry.IsLatest,
			LastModified: formatTime(entry.LastUpdate),
			ETag:         quoteETag(entry.ETag),
			Size:         entry.ContentLength,
			StorageClass: s3consts.DefaultStorageClass,
			Owner:        &s3types.Owner{ID: entry.OwnerID},
		})
	}
	for _, p := range page.CommonPrefixes {
		result.CommonPrefixes = append(result.CommonPrefixes, s3types.CommonPrefix{Prefix: p})
	}
	if page.IsTruncated {
		result.NextKeyMarker = bucketstore.BuildContinuationToken(page.NextStartIndex)
	}
	return result, nil
}

func buildEnumerateQuery(prefix, delimiter, marker string, maxKeys int, versions bool) (*bucketstore.EnumerateQuery, error) {
	if maxKeys < 0 {
		return nil, s3err.ErrInvalidMaxKeys
	}
	if maxKeys == 0 || maxKeys > s3consts.MaxKeysLimit {
		maxKeys = s3consts.DefaultMaxKeys
	}

	var start int64
	if marker != "" {
		var err error
		if start, err = bucketstore.ParseContinuationToken(marker); err != nil {
			return nil, s3err.ErrInvalidContinuationToken
		}
	}
	return &bucketstore.EnumerateQuery{
		Prefix:          prefix,
		Delimiter:       delimiter,
		StartIndex:      start,
		MaxResults:      maxKeys,
		IncludeVersions: versions,
	}, nil
}

// GetVersioning reports the bucket versioning state.
func (h *BucketHandler) GetVersioning(ctx context.Context, m *auth.RequestMetadata) (*s3types.VersioningConfiguration, error) {
	if err := requireBucketAccess(ctx, h.engine, m, types.PermRead); err != nil {
		return nil, err
	}
	cfg := &s3types.VersioningConfiguration{Xmlns: s3consts.XMLNamespace}
	if m.Bucket.EnableVersioning {
		cfg.Status = s3types.VersioningEnabled
	}
	return cfg, nil
}

// SetVersioning enables or suspends versioning. The cached bucket config
// is updated in place so in-flight clients observe the new state.
func (h *BucketHandler) SetVersioning(ctx context.Context, m *auth.RequestMetadata, cfg *s3types.VersioningConfiguration) error {
	if err := requireBucketAccess(ctx, h.engine, m, types.PermWrite); err != nil {
		return err
	}

	var enabled bool
	switch cfg.Status {
	case s3types.VersioningEnabled:
		enabled = true
	case s3types.VersioningSuspended:
		enabled = false
	default:
		return s3err.ErrMalformedXML
	}

	if err := h.registry.SetBucketVersioning(ctx, m.Bucket.Name, enabled); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("bucket", m.Bucket.Name).Msg("failed to update versioning")
		return s3err.ErrInternalError
	}
	m.Bucket.EnableVersioning = enabled
	m.Client.Bucket().EnableVersioning = enabled
	return nil
}

// GetTags returns the bucket tag set, or NoSuchTagSet when empty.
func (h *BucketHandler) GetTags(ctx context.Context, m *auth.RequestMetadata) (*s3types.Tagging, error) {
	if err := requireBucketAccess(ctx, h.engine, m, types.PermRead); err != nil {
		return nil, err
	}
	rows, err := m.Client.GetBucketTags(ctx)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("bucket", m.Bucket.Name).Msg("failed to load bucket tags")
		return nil, s3err.ErrInternalError
	}
	if len(rows) == 0 {
		return nil, s3err.ErrNoSuchTagSet
	}
	return taggingFromRows(rows), nil
}

// SetTags replaces the bucket tag set.
func (h *BucketHandler) SetTags(ctx context.Context, m *auth.RequestMetadata, tagging *s3types.Tagging) error {
	if err := requireBucketAccess(ctx, h.engine, m, types.PermWrite); err != nil {
		return err
	}
	rows, err := rowsFromTagging(tagging)
	if err != nil {
		return err
	}
	if err := m.Client.SetBucketTags(ctx, rows); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("bucket", m.Bucket.Name).Msg("failed to set bucket tags")
		return s3err.ErrInternalError
	}
	return nil
}

// DeleteTags removes the whole bucket tag set.
func (h *BucketHandler) DeleteTags(ctx context.Context, m *auth.RequestMetadata) error {
	if err := requireBucketAccess(ctx, h.engine, m, types.PermWrite); err != nil {
		return err
	}
	if err := m.Client.DeleteBucketTags(ctx); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("bucket", m.Bucket.Name).Msg("failed to delete bucket tags")
		return s3err.ErrInternalError
	}
	return nil
}

// GetACL renders the stored bucket grants as an AccessControlPolicy.
func (h *BucketHandler) GetACL(ctx context.Context, m *auth.RequestMetadata) (*s3types.AccessControlPolicy, error) {
	if err := requireBucketAccess(ctx, h.engine, m, types.PermReadACP); err != nil {
		return nil, err
	}
	owner, err := h.users.GetUser(ctx, m.Bucket.OwnerID)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("bucket", m.Bucket.Name).Msg("failed to resolve bucket owner")
		return nil, s3err.ErrInternalError
	}
	return s3acl.ToPolicy(ctx, owner, m.BucketACLs, h.users), nil
}

// SetACLRequest carries the PutBucketAcl / PutObjectAcl inputs. Any of
// canned ACL, grant headers and policy body may be present; their grants
// are concatenated.
type SetACLRequest struct {
	CannedACL string
	Headers   http.Header
	Policy    *s3types.AccessControlPolicy
}

// SetACL replaces the bucket grant set.
func (h *BucketHandler) SetACL(ctx context.Context, m *auth.RequestMetadata, req SetACLRequest) error {
	if err := requireBucketAccess(ctx, h.engine, m, types.PermWriteACP); err != nil {
		return err
	}
	rules, err := collectACLRules(ctx, m, h.users, req.CannedACL, req.Headers, req.Policy)
	if err != nil {
		return err
	}
	if err := m.Client.SetBucketACL(ctx, rules); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("bucket", m.Bucket.Name).Msg("failed to set bucket acl")
		return s3err.ErrInternalError
	}
	return nil
}

func taggingFromRows(rows []types.Tag) *s3types.Tagging {
	tagging := &s3types.Tagging{Xmlns: s3consts.XMLNamespace}
	for _, t := range rows {
		tagging.TagSet.Tags = append(tagging.TagSet.Tags, s3types.Tag{Key: t.Key, Value: t.Value})
	}
	return tagging
}

func rowsFromTagging(tagging *s3types.Tagging) ([]types.Tag, error) {
	if tagging == nil {
		return nil, s3err.ErrMalformedXML
	}
	rows := make([]types.Tag, 0, len(tagging.TagSet.Tags))
	for _, t := range tagging.TagSet.Tags {
		if t.Key == "" {
			return nil, s3err.ErrInvalidArgument
		}
		rows = append(rows, types.Tag{Key: t.Key, Value: t.Value})
	}
	return rows, nil
}
