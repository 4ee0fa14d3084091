// Copyright 2026 Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package types

import "time"

// ObjectRecord is one version row in a bucket's metadata store.
//
// ID is the surrogate key assigned by the store; it defines enumeration
// order and is the pagination cursor. BlobFilename is an opaque GUID
// decoupled from Key, so writing a new version or deleting one never
// touches another version's bytes.
type ObjectRecord struct {
	ID            int64      `json:"id"`
	GUID          string     `json:"guid"`
	Key           string     `json:"key"`
	Version       int64      `json:"version"`
	AuthorID      string     `json:"author_id"`
	OwnerID       string     `json:"owner_id"`
	ContentLength int64      `json:"content_length"`
	ContentType   string     `json:"content_type"`
	ETag          string     `json:"etag"`
	BlobFilename  string     `json:"blob_filename"`
	DeleteMarker  bool       `json:"delete_marker"`
	CreatedAt     time.Time  `json:"created_at"`
	LastUpdate    time.Time  `json:"last_update"`
	LastAccess    time.Time  `json:"last_access"`
	ExpirationAt  *time.Time `json:"expiration_at,omitempty"`
}

// Tag is a key-value pair attached to a bucket or an object version.
// Tag sets are always replaced whole, never merged.
type Tag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Upload tracks an in-progress multipart upload.
type Upload struct {
	GUID      string    `json:"guid"`
	Key       string    `json:"key"`
	AuthorID  string    `json:"author_id"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the upload's grace window has passed.
func (u *Upload) Expired(now time.Time) bool {
	return !u.ExpiresAt.IsZero() && now.After(u.ExpiresAt)
}
