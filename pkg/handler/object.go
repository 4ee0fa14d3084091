// Copyright 2026 Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"time"

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
	"github.com/quarrylabs/quarry/pkg/storage"
	"github.com/quarrylabs/quarry/pkg/types"
)

// uploadTTL bounds how long a registered multipart upload stays valid.
const uploadTTL = 24 * time.Hour

// ObjectHandler serves object-level operations.
type ObjectHandler struct {
	engine   *auth.Engine
	registry *registry.Registry
	users    iam.Store
	tempDir  string
}

func NewObjectHandler(engine *auth.Engine, reg *registry.Registry, users iam.Store, tempDir string) *ObjectHandler {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &ObjectHandler{engine: engine, registry: reg, users: users, tempDir: tempDir}
}

// PutObjectRequest carries the parsed PutObject inputs.
type PutObjectRequest struct {
	Key         string
	ContentType string
	Body        io.Reader
	CannedACL   string
	Headers     http.Header
}

// Put stores a new object version. The body is fully staged to a temp
// file before anything is committed, so a mid-stream failure leaves no
// partial blob and no dangling row; the row insert is last, which makes
// the write atomic to concurrent readers.
func (h *ObjectHandler) Put(ctx context.Context, m *auth.RequestMetadata, req PutObjectRequest) (*types.ObjectRecord, error) {
	if err := requireObjectAccess(ctx, h.engine, m, types.PermWrite); err != nil {
		return nil, err
	}
	if req.Key == "" {
		return nil, s3err.ErrInvalidArgument
	}

	staged, size, err := h.stageBody(ctx, req.Body)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("key", req.Key).Msg("failed to stage upload body")
		return nil, s3err.ErrInternalError
	}
	defer func() {
		staged.Close()
		os.Remove(staged.Name())
	}()

	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	now := time.Now().UTC()
	rec := &types.ObjectRecord{
		GUID:          uuid.NewString(),
		Key:           req.Key,
		AuthorID:      m.User.GUID,
		OwnerID:       m.Bucket.OwnerID,
		ContentLength: size,
		ContentType:   contentType,
		BlobFilename:  uuid.NewString(),
		CreatedAt:     now,
		LastUpdate:    now,
		LastAccess:    now,
	}

	err = m.Client.AddObject(ctx, rec, staged, m.Bucket.EnableVersioning)
	if errors.Is(err, bucketstore.ErrKeyExists) {
		return nil, s3err.ErrInvalidBucketState
	}
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("key", req.Key).Msg("failed to commit object")
		return nil, s3err.ErrInternalError
	}

	if req.CannedACL != "" || (req.Headers != nil && s3acl.HasGrantHeaders(req.Headers)) {
		rules, err := collectACLRules(ctx, m, h.users, req.CannedACL, req.Headers, nil)
		if err != nil {
			return rec, err
		}
		if err := m.Client.SetObjectACL(ctx, rec.GUID, rules); err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("key", req.Key).Msg("failed to set object acl")
			return rec, s3err.ErrInternalError
		}
	}
	return rec, nil
}

// stageBody materializes the request body into a temp file and rewinds it.
// Cancellation during the copy aborts before anything reaches permanent
// storage.
func (h *ObjectHandler) stageBody(ctx context.Context, body io.Reader) (*os.File, int64, error) {
	f, err := os.CreateTemp(h.tempDir, "quarry-upload-*")
	if err != nil {
		return nil, 0, err
	}

	buf := storage.GetCopyBuffer()
	defer storage.PutCopyBuffer(buf)
	var size int64
	for {
		if err := ctx.Err(); err != nil {
			f.Close()
			os.Remove(f.Name())
			return nil, 0, err
		}
		n, rerr := body.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				f.Close()
				os.Remove(f.Name())
				return nil, 0, werr
			}
			size += int64(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			f.Close()
			os.Remove(f.Name())
			return nil, 0, rerr
		}
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, 0, err
	}
	return f, size, nil
}

// GetObjectRequest addresses one object, optionally a specific version.
type GetObjectRequest struct {
	Key     string
	Version int64
}

// GetObjectResult is the read-path output. Body is nil for Head.
type GetObjectResult struct {
	Record *types.ObjectRecord
	Body   io.ReadCloser
	// DeleteMarker is set when the lookup landed on a tombstone; the
	// response carries the x-amz-delete-marker header before NoSuchKey.
	DeleteMarker bool
}

// Get streams an object's bytes with its stored content type and ETag.
func (h *ObjectHandler) Get(ctx context.Context, m *auth.RequestMetadata, req GetObjectRequest) (*GetObjectResult, error) {
	rec, err := h.resolveLive(ctx, m, req, types.PermRead)
	if err != nil {
		return nil, err
	}

	body, _, err := m.Client.Blobs().ReadStream(ctx, rec.BlobFilename)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("key", rec.Key).Str("blob", rec.BlobFilename).
			Msg("failed to open blob")
		return nil, s3err.ErrInternalError
	}
	if err := m.Client.TouchLastAccess(ctx, rec.ID); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("key", rec.Key).Msg("failed to record object access")
	}
	return &GetObjectResult{Record: rec, Body: body}, nil
}

// Head resolves object metadata without opening the blob.
func (h *ObjectHandler) Head(ctx context.Context, m *auth.RequestMetadata, req GetObjectRequest) (*GetObjectResult, error) {
	rec, err := h.resolveLive(ctx, m, req, types.PermRead)
	if err != nil {
		return nil, err
	}
	return &GetObjectResult{Record: rec}, nil
}

// resolveLive applies the read-path precondition chain: authorized, object
// present, not a tombstone.
func (h *ObjectHandler) resolveLive(ctx context.Context, m *auth.RequestMetadata, req GetObjectRequest, perm types.PermissionSet) (*types.ObjectRecord, error) {
	if err := requireObjectAccess(ctx, h.engine, m, perm); err != nil {
		return nil, err
	}
	if m.Object == nil {
		if req.Version > 0 {
			return nil, s3err.ErrNoSuchVersion
		}
		return nil, s3err.ErrNoSuchKey
	}
	if m.Object.DeleteMarker {
		return nil, s3err.ErrNoSuchKey
	}
	return m.Object, nil
}

// RangeRequest is a parsed byte range. End is inclusive; HasEnd false
// means "to the end of the object".
type RangeRequest struct {
	Key     string
	Version int64
	Start   int64
	End     int64
	HasEnd  bool
}

// RangeResult carries the range bytes plus the bounds actually served,
// for the Content-Range header.
type RangeResult struct {
	Record *types.ObjectRecord
	Body   io.ReadCloser
	Start  int64
	End    int64
	Length int64
}

// GetRange streams part of an object. Out-of-bounds ranges fail with
// InvalidRange rather than clamping.
func (h *ObjectHandler) GetRange(ctx context.Context, m *auth.RequestMetadata, req RangeRequest) (*RangeResult, error) {
	rec, err := h.resolveLive(ctx, m, GetObjectRequest{Key: req.Key, Version: req.Version}, types.PermRead)
	if err != nil {
		return nil, err
	}

	end := req.End
	if !req.HasEnd {
		end = rec.ContentLength - 1
	}
	if req.Start < 0 || req.Start > end || end >= rec.ContentLength {
		return nil, s3err.ErrInvalidRange
	}
	count := end - req.Start + 1

	body, err := m.Client.Blobs().ReadRangeStream(ctx, rec.BlobFilename, req.Start, count)
	if errors.Is(err, storage.ErrInvalidRange) {
		return nil, s3err.ErrInvalidRange
	}
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("key", rec.Key).Msg("failed to open blob range")
		return nil, s3err.ErrInternalError
	}
	return &RangeResult{Record: rec, Body: body, Start: req.Start, End: end, Length: count}, nil
}

// DeleteResult reports what a delete produced: either a removed version or
// a freshly inserted delete marker.
type DeleteResult struct {
	VersionID    int64
	DeleteMarker bool
}

// Delete removes one version, or inserts a delete marker when no version
// is named on a versioning-enabled bucket.
func (h *ObjectHandler) Delete(ctx context.Context, m *auth.RequestMetadata, req GetObjectRequest) (*DeleteResult, error) {
	if err := requireObjectAccess(ctx, h.engine, m, types.PermWrite); err != nil {
		return nil, err
	}
	return h.deleteOne(ctx, m, req)
}

func (h *ObjectHandler) deleteOne(ctx context.Context, m *auth.RequestMetadata, req GetObjectRequest) (*DeleteResult, error) {
	if req.Version > 0 {
		ok, err := m.Client.DeleteObjectVersion(ctx, req.Key, req.Version)
		if err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("key", req.Key).Msg("failed to delete object version")
			return nil, s3err.ErrInternalError
		}
		if !ok {
			return nil, s3err.ErrNoSuchVersion
		}
		return &DeleteResult{VersionID: req.Version}, nil
	}

	if m.Bucket.EnableVersioning {
		marker, err := m.Client.InsertDeleteMarker(ctx, req.Key, m.User.GUID, m.Bucket.OwnerID)
		if errors.Is(err, bucketstore.ErrObjectNotFound) {
			return nil, s3err.ErrNoSuchKey
		}
		if err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("key", req.Key).Msg("failed to insert delete marker")
			return nil, s3err.ErrInternalError
		}
		return &DeleteResult{VersionID: marker.Version, DeleteMarker: true}, nil
	}

	rec, err := m.Client.GetObjectLatest(ctx, req.Key)
	if errors.Is(err, bucketstore.ErrObjectNotFound) {
		return nil, s3err.ErrNoSuchKey
	}
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("key", req.Key).Msg("failed to resolve object for delete")
		return nil, s3err.ErrInternalError
	}
	if _, err := m.Client.DeleteObjectVersion(ctx, req.Key, rec.Version); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("key", req.Key).Msg("failed to delete object")
		return nil, s3err.ErrInternalError
	}
	return &DeleteResult{VersionID: rec.Version}, nil
}

// DeleteMultiple deletes each named key/version independently. Failures
// never abort the batch; they land in the Error list.
func (h *ObjectHandler) DeleteMultiple(ctx context.Context, m *auth.RequestMetadata, req *s3types.DeleteObjectsRequest) (*s3types.DeleteObjectsResult, error) {
	if err := requireObjectAccess(ctx, h.engine, m, types.PermWrite); err != nil {
		return nil, err
	}
	if req == nil || len(req.Objects) == 0 {
		return nil, s3err.ErrMalformedXML
	}
	if len(req.Objects) > s3consts.MaxDeleteObjects {
		return nil, s3err.ErrInvalidMaxDeleteObjects
	}

	result := &s3types.DeleteObjectsResult{Xmlns: s3consts.XMLNamespace}
	for _, entry := range req.Objects {
		version, err := ParseVersionID(entry.VersionID)
		if err != nil {
			result.Error = append(result.Error, deleteErrorFor(entry, s3err.ErrInvalidVersionID))
			continue
		}

		outcome, err := h.deleteOne(ctx, m, GetObjectRequest{Key: entry.Key, Version: version})
		if err != nil {
			var code s3err.ErrorCode
			if !errors.As(err, &code) {
				code = s3err.ErrInternalError
			}
			result.Error = append(result.Error, deleteErrorFor(entry, code))
			continue
		}

		if !req.Quiet {
			deleted := s3types.DeletedObject{Key: entry.Key, VersionID: entry.VersionID}
			if outcome.DeleteMarker {
				deleted.DeleteMarker = true
				deleted.DeleteMarkerVersionID = FormatVersionID(outcome.VersionID)
			}
			result.Deleted = append(result.Deleted, deleted)
		}
	}
	return result, nil
}

func deleteErrorFor(entry s3types.DeleteObjectEntry, code s3err.ErrorCode) s3types.DeleteError {
	return s3types.DeleteError{
		Key:       entry.Key,
		VersionID: entry.VersionID,
		Code:      code.Code(),
		Message:   code.Description(),
	}
}

// GetTags returns the object's tag set, or NoSuchTagSet when empty.
func (h *ObjectHandler) GetTags(ctx context.Context, m *auth.RequestMetadata, req GetObjectRequest) (*s3types.Tagging, error) {
	rec, err := h.resolveLive(ctx, m, req, types.PermRead)
	if err != nil {
		return nil, err
	}
	rows, err := m.Client.GetObjectTags(ctx, rec.GUID)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("key", rec.Key).Msg("failed to load object tags")
		return nil, s3err.ErrInternalError
	}
	if len(rows) == 0 {
		return nil, s3err.ErrNoSuchTagSet
	}
	return taggingFromRows(rows), nil
}

// SetTags replaces the object's tag set.
func (h *ObjectHandler) SetTags(ctx context.Context, m *auth.RequestMetadata, req GetObjectRequest, tagging *s3types.Tagging) error {
	rec, err := h.resolveLive(ctx, m, req, types.PermWrite)
	if err != nil {
		return err
	}
	rows, err := rowsFromTagging(tagging)
	if err != nil {
		return err
	}
	if err := m.Client.SetObjectTags(ctx, rec.GUID, rows); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("key", rec.Key).Msg("failed to set object tags")
		return s3err.ErrInternalError
	}
	return nil
}

// DeleteTags removes the whole object tag set.
func (h *ObjectHandler) DeleteTags(ctx context.Context, m *auth.RequestMetadata, req GetObjectRequest) error {
	rec, err := h.resolveLive(ctx, m, req, types.PermWrite)
	if err != nil {
		return err
	}
	if err := m.Client.DeleteObjectTags(ctx, rec.GUID); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("key", rec.Key).Msg("failed to delete object tags")
		return s3err.ErrInternalError
	}
	return nil
}

// GetACL renders the object's stored grants. An object with no explicit
// grants reports a private owner-only policy.
func (h *ObjectHandler) GetACL(ctx context.Context, m *auth.RequestMetadata, req GetObjectRequest) (*s3types.AccessControlPolicy, error) {
	rec, err := h.resolveLive(ctx, m, req, types.PermReadACP)
	if err != nil {
		return nil, err
	}
	rules, err := m.Client.GetObjectACL(ctx, rec.GUID)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("key", rec.Key).Msg("failed to load object acls")
		return nil, s3err.ErrInternalError
	}
	if len(rules) == 0 {
		rules = []types.AccessRule{{
			UserID:      rec.OwnerID,
			IssuedBy:    rec.OwnerID,
			Permissions: types.PermFullControl,
		}}
	}
	owner, err := h.users.GetUser(ctx, rec.OwnerID)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("key", rec.Key).Msg("failed to resolve object owner")
		return nil, s3err.ErrInternalError
	}
	return s3acl.ToPolicy(ctx, owner, rules, h.users), nil
}

// SetACL replaces the object's grant set.
func (h *ObjectHandler) SetACL(ctx context.Context, m *auth.RequestMetadata, req GetObjectRequest, aclReq SetACLRequest) error {
	rec, err := h.resolveLive(ctx, m, req, types.PermWriteACP)
	if err != nil {
		return err
	}
	rules, err := collectACLRules(ctx, m, h.users, aclReq.CannedACL, aclReq.Headers, aclReq.Policy)
	if err != nil {
		return err
	}
	if err := m.Client.SetObjectACL(ctx, rec.GUID, rules); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("key", rec.Key).Msg("failed to set object acl")
		return s3err.ErrInternalError
	}
	return nil
}

// InitiateUpload registers a multipart upload for key and returns its ID.
func (h *ObjectHandler) InitiateUpload(ctx context.Context, m *auth.RequestMetadata, key string) (*types.Upload, error) {
	if err := requireObjectAccess(ctx, h.engine, m, types.PermWrite); err != nil {
		return nil, err
	}
	if key == "" {
		return nil, s3err.ErrInvalidArgument
	}

	now := time.Now().UTC()
	up := &types.Upload{
		GUID:      uuid.NewString(),
		Key:       key,
		AuthorID:  m.User.GUID,
		OwnerID:   m.Bucket.OwnerID,
		CreatedAt: now,
		ExpiresAt: now.Add(uploadTTL),
	}
	if err := m.Client.AddUpload(ctx, up); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("key", key).Msg("failed to register upload")
		return nil, s3err.ErrInternalError
	}
	return up, nil
}

// ValidateUpload resolves an upload ID, rejecting unknown or expired ones.
func (h *ObjectHandler) ValidateUpload(ctx context.Context, m *auth.RequestMetadata, uploadID string) (*types.Upload, error) {
	if err := requireObjectAccess(ctx, h.engine, m, types.PermWrite); err != nil {
		return nil, err
	}
	up, err := m.Client.GetUpload(ctx, uploadID)
	if errors.Is(err, bucketstore.ErrUploadNotFound) {
		return nil, s3err.ErrNoSuchUpload
	}
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("upload", uploadID).Msg("failed to resolve upload")
		return nil, s3err.ErrInternalError
	}
	return up, nil
}

// ListUploads lists in-progress multipart uploads under a prefix.
func (h *ObjectHandler) ListUploads(ctx context.Context, m *auth.RequestMetadata, prefix string, maxUploads int) (*s3types.ListMultipartUploadsResult, error) {
	if err := requireBucketAccess(ctx, h.engine, m, types.PermRead); err != nil {
		return nil, err
	}
	if maxUploads <= 0 || maxUploads > s3consts.MaxKeysLimit {
		maxUploads = s3consts.DefaultMaxKeys
	}

	uploads, err := m.Client.ListUploads(ctx, prefix, maxUploads)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("bucket", m.Bucket.Name).Msg("failed to list uploads")
		return nil, s3err.ErrInternalError
	}

	result := &s3types.ListMultipartUploadsResult{
		Xmlns:      s3consts.XMLNamespace,
		Bucket:     m.Bucket.Name,
		MaxUploads: maxUploads,
	}
	for _, up := range uploads {
		result.Uploads = append(result.Uploads, s3types.UploadEntry{
			Key:          up.Key,
			UploadID:     up.GUID,
			Initiator:    &s3types.Owner{ID: up.AuthorID},
			Owner:        &s3types.Owner{ID: up.OwnerID},
			StorageClass: s3consts.DefaultStorageClass,
			Initiated:    formatTime(up.CreatedAt),
		})
	}
	return result, nil
}
