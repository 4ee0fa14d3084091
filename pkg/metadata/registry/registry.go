// Copyright 2026 Quarry Authors
// SPDX-License-Identifier: Apache-2.0

// Package registry implements the global metadata store: the bucket
// registry plus the user/credential tables, and the cache of per-bucket
// store clients.
package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/sync/singleflight"

	"github.com/quarrylabs/quarry/pkg/logger"
	"github.com/quarrylabs/quarry/pkg/metadata/bucketstore"
	"github.com/quarrylabs/quarry/pkg/storage"
	"github.com/quarrylabs/quarry/pkg/types"
)

var (
	// ErrBucketNotFound is returned when no bucket row matches.
	ErrBucketNotFound = errors.New("bucket not found")
	// ErrBucketExists is returned when the bucket name is already taken.
	ErrBucketExists = errors.New("bucket already exists")
)

// Registry is the global metadata store. One instance is shared by every
// concurrent request; the client cache hands out one open per-bucket store
// per bucket name.
type Registry struct {
	root string
	db   *sql.DB

	mu      sync.Mutex
	clients map[string]*bucketstore.Client
	opening singleflight.Group
}

var globalSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		guid         TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		email        TEXT NOT NULL UNIQUE,
		created_at   TIMESTAMP NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS credentials (
		access_key TEXT PRIMARY KEY,
		secret_key TEXT NOT NULL,
		user_guid  TEXT NOT NULL REFERENCES users(guid),
		created_at TIMESTAMP NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS buckets (
		guid              TEXT NOT NULL UNIQUE,
		name              TEXT PRIMARY KEY,
		owner_id          TEXT NOT NULL,
		storage_type      TEXT NOT NULL,
		objects_directory TEXT NOT NULL,
		region            TEXT NOT NULL,
		enable_versioning INTEGER NOT NULL DEFAULT 0,
		permitted_keys    TEXT NOT NULL DEFAULT '',
		created_at        TIMESTAMP NOT NULL
	);`,
}

// Open creates or opens the global store rooted at dir. Bucket stores live
// under dir/buckets/<name>/.
func Open(dir string) (*Registry, error) {
	if dir == "" {
		return nil, errors.New("registry root directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create registry root: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dir, "global.db"))
	if err != nil {
		return nil, fmt.Errorf("open global store: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range globalSchema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init global schema: %w", err)
		}
	}

	return &Registry{
		root:    dir,
		db:      db,
		clients: make(map[string]*bucketstore.Client),
	}, nil
}

// Close closes the global store and every cached bucket client.
func (r *Registry) Close() error {
	r.mu.Lock()
	for name, client := range r.clients {
		if err := client.Close(); err != nil {
			logger.Error().Err(err).Str("bucket", name).Msg("failed to close bucket client")
		}
	}
	r.clients = make(map[string]*bucketstore.Client)
	r.mu.Unlock()
	return r.db.Close()
}

func (r *Registry) bucketDir(name string) string {
	return filepath.Join(r.root, "buckets", name)
}

// AddBucket registers a new bucket and prepares its on-disk layout.
// Returns ErrBucketExists when the name is already registered.
func (r *Registry) AddBucket(ctx context.Context, cfg *types.BucketConfig) error {
	if cfg.ObjectsDirectory == "" {
		cfg.ObjectsDirectory = filepath.Join(r.bucketDir(cfg.Name), "objects")
	}

	versioning := 0
	if cfg.EnableVersioning {
		versioning = 1
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO buckets (guid, name, owner_id, storage_type, objects_directory,
			region, enable_versioning, permitted_keys, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cfg.GUID, cfg.Name, cfg.OwnerID, string(cfg.StorageType),
		cfg.ObjectsDirectory, cfg.Region, versioning,
		strings.Join(cfg.PermittedAccessKeys, ","), cfg.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrBucketExists
		}
		return fmt.Errorf("insert bucket: %w", err)
	}
	return nil
}

// GetBucketByName returns the bucket configuration, or ErrBucketNotFound.
func (r *Registry) GetBucketByName(ctx context.Context, name string) (*types.BucketConfig, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT guid, name, owner_id, storage_type, objects_directory, region,
			enable_versioning, permitted_keys, created_at
		 FROM buckets WHERE name = ?`, name)
	return scanBucket(row)
}

// ListBucketsByOwner returns every bucket owned by ownerID, oldest first.
func (r *Registry) ListBucketsByOwner(ctx context.Context, ownerID string) ([]types.BucketConfig, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT guid, name, owner_id, storage_type, objects_directory, region,
			enable_versioning, permitted_keys, created_at
		 FROM buckets WHERE owner_id = ? ORDER BY created_at, name`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}
	defer rows.Close()

	var out []types.BucketConfig
	for rows.Next() {
		cfg, err := scanBucket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *cfg)
	}
	return out, rows.Err()
}

// SetBucketVersioning flips the versioning flag for a bucket.
func (r *Registry) SetBucketVersioning(ctx context.Context, name string, enabled bool) error {
	flag := 0
	if enabled {
		flag = 1
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE buckets SET enable_versioning = ? WHERE name = ?`, flag, name)
	if err != nil {
		return fmt.Errorf("update versioning: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrBucketNotFound
	}
	return nil
}

// RemoveBucket drops the bucket row, closes and evicts its cached client,
// and destroys the per-bucket store and blob directory. Destructive;
// callers enforce the bucket-empty gate first.
func (r *Registry) RemoveBucket(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM buckets WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete bucket row: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrBucketNotFound
	}

	r.mu.Lock()
	if client, ok := r.clients[name]; ok {
		delete(r.clients, name)
		if err := client.Close(); err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("bucket", name).Msg("failed to close bucket client on removal")
		}
	}
	r.mu.Unlock()

	if err := os.RemoveAll(r.bucketDir(name)); err != nil {
		return fmt.Errorf("remove bucket directory: %w", err)
	}
	return nil
}

// ClientForBucket returns the cached per-bucket store client, opening it
// lazily. Concurrent first requests for one bucket collapse into a single
// open via singleflight.
func (r *Registry) ClientForBucket(ctx context.Context, name string) (*bucketstore.Client, error) {
	r.mu.Lock()
	if client, ok := r.clients[name]; ok {
		r.mu.Unlock()
		return client, nil
	}
	r.mu.Unlock()

	v, err, _ := r.opening.Do(name, func() (any, error) {
		cfg, err := r.GetBucketByName(ctx, name)
		if err != nil {
			return nil, err
		}

		dir := r.bucketDir(name)
		if err := os.MkdirAll(cfg.ObjectsDirectory, 0o755); err != nil {
			return nil, fmt.Errorf("create objects directory: %w", err)
		}

		blobs, err := storage.New(cfg.StorageType, cfg.ObjectsDirectory)
		if err != nil {
			return nil, err
		}
		client, err := bucketstore.Open(cfg, filepath.Join(dir, "metadata.db"), blobs)
		if err != nil {
			blobs.Close()
			return nil, err
		}

		r.mu.Lock()
		// A concurrent RemoveBucket may have deleted the row after the
		// open started; re-verify it under the lock before caching.
		if _, err := r.GetBucketByName(ctx, name); err != nil {
			r.mu.Unlock()
			if cerr := client.Close(); cerr != nil {
				logger.Ctx(ctx).Error().Err(cerr).Str("bucket", name).Msg("failed to close bucket client after removal race")
			}
			return nil, err
		}
		r.clients[name] = client
		r.mu.Unlock()
		return client, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*bucketstore.Client), nil
}

func scanBucket(row interface{ Scan(...any) error }) (*types.BucketConfig, error) {
	var cfg types.BucketConfig
	var storageType, permittedKeys string
	var versioning int
	err := row.Scan(&cfg.GUID, &cfg.Name, &cfg.OwnerID, &storageType,
		&cfg.ObjectsDirectory, &cfg.Region, &versioning, &permittedKeys, &cfg.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBucketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan bucket: %w", err)
	}
	cfg.StorageType = types.StorageType(storageType)
	cfg.EnableVersioning = versioning != 0
	if permittedKeys != "" {
		cfg.PermittedAccessKeys = strings.Split(permittedKeys, ",")
	}
	return &cfg, nil
}
