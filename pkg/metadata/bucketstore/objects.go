// Copyright 2026 Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package bucketstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/quarrylabs/quarry/pkg/logger"
	"github.com/quarrylabs/quarry/pkg/types"
)

const objectColumns = `id, guid, key, version, author_id, owner_id, content_length,
	content_type, etag, blob_filename, delete_marker, created_at, last_update,
	last_access, expiration_at`

func scanObject(row interface{ Scan(...any) error }) (*types.ObjectRecord, error) {
	var rec types.ObjectRecord
	var marker int
	var expiration sql.NullTime
	err := row.Scan(&rec.ID, &rec.GUID, &rec.Key, &rec.Version, &rec.AuthorID,
		&rec.OwnerID, &rec.ContentLength, &rec.ContentType, &rec.ETag,
		&rec.BlobFilename, &marker, &rec.CreatedAt, &rec.LastUpdate,
		&rec.LastAccess, &expiration)
	if err != nil {
		return nil, err
	}
	rec.DeleteMarker = marker != 0
	if expiration.Valid {
		t := expiration.Time
		rec.ExpirationAt = &t
	}
	return &rec, nil
}

// AddObject streams r into the blob store under rec.BlobFilename and then
// inserts the version row. If rec.Version is zero the next version number
// for the key is assigned under the write lock; when the key already has a
// version and allowVersioning is false, ErrKeyExists is returned before
// any storage is touched. The blob is removed again if the row insert
// fails, so the write is atomic as seen by readers.
func (c *Client) AddObject(ctx context.Context, rec *types.ObjectRecord, r io.Reader, allowVersioning bool) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	latest, err := c.GetLatestVersion(ctx, rec.Key)
	if err != nil {
		return err
	}
	if latest > 0 && !allowVersioning {
		return ErrKeyExists
	}
	if rec.Version == 0 {
		rec.Version = latest + 1
	}

	md5hex, written, err := c.blobs.Write(ctx, rec.BlobFilename, r)
	if err != nil {
		return fmt.Errorf("write blob: %w", err)
	}
	if rec.ETag == "" {
		rec.ETag = md5hex
	}
	rec.ContentLength = written

	id, err := c.insertObjectRow(ctx, rec)
	if err != nil {
		// Roll the blob back so no orphan bytes remain.
		if derr := c.blobs.Delete(ctx, rec.BlobFilename); derr != nil {
			logger.Ctx(ctx).Error().Err(derr).
				Str("blob", rec.BlobFilename).
				Msg("failed to remove blob after insert failure")
		}
		return err
	}
	rec.ID = id
	return nil
}

// InsertDeleteMarker appends a tombstone row for key with the next version
// number. Used to emulate "delete without version id" on a versioned
// bucket.
func (c *Client) InsertDeleteMarker(ctx context.Context, key, authorID, ownerID string) (*types.ObjectRecord, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	latest, err := c.GetLatestVersion(ctx, key)
	if err != nil {
		return nil, err
	}
	if latest == 0 {
		return nil, ErrObjectNotFound
	}

	now := time.Now().UTC()
	rec := &types.ObjectRecord{
		GUID:         uuid.NewString(),
		Key:          key,
		Version:      latest + 1,
		AuthorID:     authorID,
		OwnerID:      ownerID,
		BlobFilename: uuid.NewString(),
		DeleteMarker: true,
		CreatedAt:    now,
		LastUpdate:   now,
		LastAccess:   now,
	}
	id, err := c.insertObjectRow(ctx, rec)
	if err != nil {
		return nil, err
	}
	rec.ID = id
	return rec, nil
}

func (c *Client) insertObjectRow(ctx context.Context, rec *types.ObjectRecord) (int64, error) {
	marker := 0
	if rec.DeleteMarker {
		marker = 1
	}
	var expiration any
	if rec.ExpirationAt != nil {
		expiration = *rec.ExpirationAt
	}
	res, err := c.db.ExecContext(ctx,
		`INSERT INTO objects (guid, key, version, author_id, owner_id, content_length,
			content_type, etag, blob_filename, delete_marker, created_at, last_update,
			last_access, expiration_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.GUID, rec.Key, rec.Version, rec.AuthorID, rec.OwnerID,
		rec.ContentLength, rec.ContentType, rec.ETag, rec.BlobFilename,
		marker, rec.CreatedAt, rec.LastUpdate, rec.LastAccess, expiration)
	if err != nil {
		return 0, fmt.Errorf("insert object row: %w", err)
	}
	return res.LastInsertId()
}

// GetObjectLatest returns the current version of key: the highest-id
// non-delete-marker row, and ErrObjectNotFound when the key is absent or
// its newest row is a delete marker.
func (c *Client) GetObjectLatest(ctx context.Context, key string) (*types.ObjectRecord, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT `+objectColumns+` FROM objects
		 WHERE key = ? ORDER BY id DESC LIMIT 1`, key)
	rec, err := scanObject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get latest object: %w", err)
	}
	if rec.DeleteMarker {
		// The tombstone is the newest row; surface it so callers can set
		// the delete-marker response header.
		return rec, ErrObjectNotFound
	}
	return rec, nil
}

// GetObjectVersion returns the exact version row for key, including delete
// markers.
func (c *Client) GetObjectVersion(ctx context.Context, key string, version int64) (*types.ObjectRecord, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT `+objectColumns+` FROM objects WHERE key = ? AND version = ?`,
		key, version)
	rec, err := scanObject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get object version: %w", err)
	}
	return rec, nil
}

// GetLatestVersion returns the highest version number in use for key, or
// zero when the key has no rows at all (delete markers count).
func (c *Client) GetLatestVersion(ctx context.Context, key string) (int64, error) {
	var version int64
	row := c.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM objects WHERE key = ?`, key)
	if err := row.Scan(&version); err != nil {
		return 0, fmt.Errorf("get latest version: %w", err)
	}
	return version, nil
}

// DeleteObjectVersion removes the specific version row and its blob.
// Returns false when the row does not exist. It never inserts a delete
// marker; callers do that explicitly.
func (c *Client) DeleteObjectVersion(ctx context.Context, key string, version int64) (bool, error) {
	rec, err := c.GetObjectVersion(ctx, key, version)
	if errors.Is(err, ErrObjectNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if _, err := c.db.ExecContext(ctx,
		`DELETE FROM objects WHERE key = ? AND version = ?`, key, version); err != nil {
		return false, fmt.Errorf("delete object row: %w", err)
	}
	if _, err := c.db.ExecContext(ctx,
		`DELETE FROM object_tags WHERE object_guid = ?`, rec.GUID); err != nil {
		return false, fmt.Errorf("delete object tags: %w", err)
	}
	if _, err := c.db.ExecContext(ctx,
		`DELETE FROM object_acls WHERE object_guid = ?`, rec.GUID); err != nil {
		return false, fmt.Errorf("delete object acls: %w", err)
	}

	// Row first, blob second: a reader can no longer resolve the blob
	// filename once the row is gone, so either order is safe, but this one
	// cannot leak metadata pointing at missing bytes.
	if !rec.DeleteMarker {
		if err := c.blobs.Delete(ctx, rec.BlobFilename); err != nil {
			logger.Ctx(ctx).Error().Err(err).
				Str("blob", rec.BlobFilename).
				Msg("failed to remove blob for deleted version")
		}
	}
	return true, nil
}

// TouchLastAccess records a read of the given object row.
func (c *Client) TouchLastAccess(ctx context.Context, id int64) error {
	_, err := c.db.ExecContext(ctx,
		`UPDATE objects SET last_access = ? WHERE id = ?`, time.Now().UTC(), id)
	return err
}
