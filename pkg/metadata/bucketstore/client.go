// Copyright 2026 Quarry Authors
// SPDX-License-Identifier: Apache-2.0

// Package bucketstore implements the per-bucket metadata engine. Each
// bucket owns one isolated sqlite database holding its object version
// rows, tags, ACL grants and multipart upload records, plus a blob driver
// for the object bytes. The Client hides both behind one API.
package bucketstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/quarrylabs/quarry/pkg/storage"
	"github.com/quarrylabs/quarry/pkg/types"
)

var (
	// ErrObjectNotFound is returned when no matching object row exists.
	ErrObjectNotFound = errors.New("object not found")
	// ErrKeyExists is returned by AddObject when the key already has a
	// live version and versioning is disabled.
	ErrKeyExists = errors.New("key already exists and versioning is disabled")
	// ErrUploadNotFound is returned when no matching upload record exists.
	ErrUploadNotFound = errors.New("upload not found")
)

// Client is the metadata engine for a single bucket. It is safe for
// concurrent use; writeMu serializes read-latest-then-insert version
// assignment so concurrent writers to one key cannot race on version
// numbers.
type Client struct {
	bucket  *types.BucketConfig
	db      *sql.DB
	blobs   storage.Driver
	writeMu sync.Mutex
}

var schema = []string{
	`PRAGMA foreign_keys = ON;`,
	`CREATE TABLE IF NOT EXISTS objects (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		guid           TEXT NOT NULL UNIQUE,
		key            TEXT NOT NULL,
		version        INTEGER NOT NULL,
		author_id      TEXT NOT NULL,
		owner_id       TEXT NOT NULL,
		content_length INTEGER NOT NULL,
		content_type   TEXT NOT NULL DEFAULT '',
		etag           TEXT NOT NULL DEFAULT '',
		blob_filename  TEXT NOT NULL,
		delete_marker  INTEGER NOT NULL DEFAULT 0,
		created_at     TIMESTAMP NOT NULL,
		last_update    TIMESTAMP NOT NULL,
		last_access    TIMESTAMP NOT NULL,
		expiration_at  TIMESTAMP,
		UNIQUE (key, version)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_objects_key ON objects(key);`,
	`CREATE TABLE IF NOT EXISTS bucket_tags (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS object_tags (
		object_guid TEXT NOT NULL,
		key         TEXT NOT NULL,
		value       TEXT NOT NULL,
		PRIMARY KEY (object_guid, key)
	);`,
	`CREATE TABLE IF NOT EXISTS bucket_acls (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id     TEXT NOT NULL DEFAULT '',
		group_uri   TEXT NOT NULL DEFAULT '',
		issued_by   TEXT NOT NULL DEFAULT '',
		permissions INTEGER NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS object_acls (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		object_guid TEXT NOT NULL,
		user_id     TEXT NOT NULL DEFAULT '',
		group_uri   TEXT NOT NULL DEFAULT '',
		issued_by   TEXT NOT NULL DEFAULT '',
		permissions INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_object_acls_guid ON object_acls(object_guid);`,
	`CREATE TABLE IF NOT EXISTS uploads (
		guid       TEXT PRIMARY KEY,
		key        TEXT NOT NULL,
		author_id  TEXT NOT NULL,
		owner_id   TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		expires_at TIMESTAMP NOT NULL
	);`,
}

// Open opens (creating if necessary) the metadata database at dbPath and
// binds it to the bucket's blob driver.
func Open(bucket *types.BucketConfig, dbPath string, blobs storage.Driver) (*Client, error) {
	if bucket == nil {
		return nil, errors.New("bucket config is required")
	}
	if blobs == nil {
		return nil, errors.New("blob driver is required")
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open bucket store: %w", err)
	}
	// sqlite serializes writers at the engine level; a single connection
	// avoids SQLITE_BUSY churn under concurrent requests.
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init bucket schema: %w", err)
		}
	}

	return &Client{bucket: bucket, db: db, blobs: blobs}, nil
}

// Bucket returns the configuration this client serves.
func (c *Client) Bucket() *types.BucketConfig {
	return c.bucket
}

// Blobs returns the bucket's blob driver.
func (c *Client) Blobs() storage.Driver {
	return c.blobs
}

// Close releases the database handle and blob driver.
func (c *Client) Close() error {
	err := c.db.Close()
	if berr := c.blobs.Close(); err == nil {
		err = berr
	}
	return err
}

// Statistics returns the live object count and total byte size. Delete
// markers do not count. Used to gate bucket deletion.
func (c *Client) Statistics(ctx context.Context) (count int64, bytes int64, err error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(content_length), 0) FROM objects WHERE delete_marker = 0`)
	if err := row.Scan(&count, &bytes); err != nil {
		return 0, 0, fmt.Errorf("bucket statistics: %w", err)
	}
	return count, bytes, nil
}
