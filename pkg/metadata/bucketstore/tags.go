package bucketstore

import (
	"context"
	"fmt"

	"github.com/quarrylabs/quarry/pkg/types"
)

// Tag sets are replaced whole on every write: delete-then-insert inside
// one transaction, never merged.

// SetBucketTags replaces the bucket's tag set.
func (c *Client) SetBucketTags(ctx context.Context, tags []types.Tag) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tag tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM bucket_tags`); err != nil {
		return fmt.Errorf("clear bucket tags: %w", err)
	}
	for _, tag := range tags {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO bucket_tags (key, value) VALUES (?, ?)`, tag.Key, tag.Value); err != nil {
			return fmt.Errorf("insert bucket tag: %w", err)
		}
	}
	return tx.Commit()
}

// GetBucketTags returns the bucket's tag set.
func (c *Client) GetBucketTags(ctx context.Context) ([]types.Tag, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT key, value FROM bucket_tags ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("get bucket tags: %w", err)
	}
	defer rows.Close()
	return collectTags(rows)
}

// DeleteBucketTags removes every bucket tag.
func (c *Client) DeleteBucketTags(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM bucket_tags`)
	return err
}

// SetObjectTags replaces the tag set of one object version.
func (c *Client) SetObjectTags(ctx context.Context, objectGUID string, tags []types.Tag) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tag tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM object_tags WHERE object_guid = ?`, objectGUID); err != nil {
		return fmt.Errorf("clear object tags: %w", err)
	}
	for _, tag := range tags {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO object_tags (object_guid, key, value) VALUES (?, ?, ?)`,
			objectGUID, tag.Key, tag.Value); err != nil {
			return fmt.Errorf("insert object tag: %w", err)
		}
	}
	return tx.Commit()
}

// GetObjectTags returns the tag set of one object version.
func (c *Client) GetObjectTags(ctx context.Context, objectGUID string) ([]types.Tag, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT key, value FROM object_tags WHERE object_guid = ? ORDER BY key`, objectGUID)
	if err != nil {
		return nil, fmt.Errorf("get object tags: %w", err)
	}
	defer rows.Close()
	return collectTags(rows)
}

// DeleteObjectTags removes every tag of one object version.
func (c *Client) DeleteObjectTags(ctx context.Context, objectGUID string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM object_tags WHERE object_guid = ?`, objectGUID)
	return err
}

func collectTags(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]types.Tag, error) {
	var tags []types.Tag
	for rows.Next() {
		var t types.Tag
		if err := rows.Scan(&t.Key, &t.Value); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}
