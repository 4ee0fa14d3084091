package bucketstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/quarrylabs/quarry/pkg/types"
)

// ACL sets are replaced atomically: delete-all-then-insert in one
// transaction per write.

// SetBucketACL replaces the bucket's grant rows.
func (c *Client) SetBucketACL(ctx context.Context, rules []types.AccessRule) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin acl tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM bucket_acls`); err != nil {
		return fmt.Errorf("clear bucket acls: %w", err)
	}
	for _, rule := range rules {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO bucket_acls (user_id, group_uri, issued_by, permissions)
			 VALUES (?, ?, ?, ?)`,
			rule.UserID, rule.GroupURI, rule.IssuedBy, int(rule.Permissions)); err != nil {
			return fmt.Errorf("insert bucket acl: %w", err)
		}
	}
	return tx.Commit()
}

// GetBucketACL returns the bucket's grant rows.
func (c *Client) GetBucketACL(ctx context.Context) ([]types.AccessRule, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, user_id, group_uri, issued_by, permissions FROM bucket_acls ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("get bucket acls: %w", err)
	}
	defer rows.Close()
	return c.collectRules(rows, "")
}

// SetObjectACL replaces the grant rows of one object version.
func (c *Client) SetObjectACL(ctx context.Context, objectGUID string, rules []types.AccessRule) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin acl tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM object_acls WHERE object_guid = ?`, objectGUID); err != nil {
		return fmt.Errorf("clear object acls: %w", err)
	}
	for _, rule := range rules {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO object_acls (object_guid, user_id, group_uri, issued_by, permissions)
			 VALUES (?, ?, ?, ?, ?)`,
			objectGUID, rule.UserID, rule.GroupURI, rule.IssuedBy, int(rule.Permissions)); err != nil {
			return fmt.Errorf("insert object acl: %w", err)
		}
	}
	return tx.Commit()
}

// GetObjectACL returns the grant rows of one object version.
func (c *Client) GetObjectACL(ctx context.Context, objectGUID string) ([]types.AccessRule, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, user_id, group_uri, issued_by, permissions
		 FROM object_acls WHERE object_guid = ? ORDER BY id`, objectGUID)
	if err != nil {
		return nil, fmt.Errorf("get object acls: %w", err)
	}
	defer rows.Close()
	return c.collectRules(rows, objectGUID)
}

func (c *Client) collectRules(rows *sql.Rows, objectGUID string) ([]types.AccessRule, error) {
	var rules []types.AccessRule
	for rows.Next() {
		var r types.AccessRule
		var perms int
		if err := rows.Scan(&r.ID, &r.UserID, &r.GroupURI, &r.IssuedBy, &perms); err != nil {
			return nil, fmt.Errorf("scan acl: %w", err)
		}
		r.Permissions = types.PermissionSet(perms)
		r.BucketGUID = c.bucket.GUID
		r.ObjectGUID = objectGUID
		rules = append(rules, r)
	}
	return rules, rows.Err()
}
