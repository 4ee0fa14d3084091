package bucketstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/quarrylabs/quarry/pkg/types"
)

// AddUpload records a new multipart upload.
func (c *Client) AddUpload(ctx context.Context, up *types.Upload) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO uploads (guid, key, author_id, owner_id, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		up.GUID, up.Key, up.AuthorID, up.OwnerID, up.CreatedAt, up.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert upload: %w", err)
	}
	return nil
}

// GetUpload returns the upload record, or ErrUploadNotFound when absent or
// expired. Part operations validate their upload id through this lookup.
func (c *Client) GetUpload(ctx context.Context, guid string) (*types.Upload, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT guid, key, author_id, owner_id, created_at, expires_at
		 FROM uploads WHERE guid = ?`, guid)

	var up types.Upload
	err := row.Scan(&up.GUID, &up.Key, &up.AuthorID, &up.OwnerID, &up.CreatedAt, &up.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUploadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get upload: %w", err)
	}
	if up.Expired(time.Now().UTC()) {
		return nil, ErrUploadNotFound
	}
	return &up, nil
}

// DeleteUpload removes the upload record.
func (c *Client) DeleteUpload(ctx context.Context, guid string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM uploads WHERE guid = ?`, guid)
	return err
}

// ListUploads returns in-progress uploads with the given key prefix,
// filtering out expired records.
func (c *Client) ListUploads(ctx context.Context, prefix string, max int) ([]types.Upload, error) {
	if max <= 0 {
		max = 1000
	}
	rows, err := c.db.QueryContext(ctx,
		`SELECT guid, key, author_id, owner_id, created_at, expires_at
		 FROM uploads WHERE key LIKE ? ESCAPE '\' AND expires_at > ?
		 ORDER BY key, created_at LIMIT ?`,
		escapeLike(prefix)+"%", time.Now().UTC(), max)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	defer rows.Close()

	var out []types.Upload
	for rows.Next() {
		var up types.Upload
		if err := rows.Scan(&up.GUID, &up.Key, &up.AuthorID, &up.OwnerID,
			&up.CreatedAt, &up.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan upload: %w", err)
		}
		out = append(out, up)
	}
	return out, rows.Err()
}
