// Copyright 2026 Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/quarrylabs/quarry/pkg/iam"
)

// Registry implements iam.Store on the global tables so the auth engine
// can resolve access keys without a separate identity backend.
var _ iam.Store = (*Registry)(nil)

func (r *Registry) GetUserByAccessKey(ctx context.Context, accessKey string) (*iam.User, *iam.Credential, error) {
	cred := &iam.Credential{}
	row := r.db.QueryRowContext(ctx,
		`SELECT access_key, secret_key, user_guid, created_at
		 FROM credentials WHERE access_key = ?`, accessKey)
	err := row.Scan(&cred.AccessKey, &cred.SecretKey, &cred.UserGUID, &cred.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, iam.ErrAccessKeyNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("scan credential: %w", err)
	}

	user, err := r.GetUser(ctx, cred.UserGUID)
	if err != nil {
		return nil, nil, err
	}
	return user, cred, nil
}

func (r *Registry) GetUser(ctx context.Context, guid string) (*iam.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT guid, display_name, email, created_at FROM users WHERE guid = ?`, guid)
	return scanUser(row)
}

func (r *Registry) GetUserByEmail(ctx context.Context, email string) (*iam.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT guid, display_name, email, created_at FROM users WHERE email = ?`, email)
	return scanUser(row)
}

func (r *Registry) CreateUser(ctx context.Context, user *iam.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (guid, display_name, email, created_at) VALUES (?, ?, ?, ?)`,
		user.GUID, user.DisplayName, user.Email, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return iam.ErrUserAlreadyExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *Registry) DeleteUser(ctx context.Context, guid string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete user: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM credentials WHERE user_guid = ?`, guid); err != nil {
		return fmt.Errorf("delete user credentials: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE guid = ?`, guid)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return iam.ErrUserNotFound
	}
	return tx.Commit()
}

func (r *Registry) ListUsers(ctx context.Context) ([]*iam.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT guid, display_name, email, created_at FROM users ORDER BY created_at, guid`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []*iam.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, user)
	}
	return out, rows.Err()
}

func (r *Registry) CreateCredential(ctx context.Context, cred *iam.Credential) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO credentials (access_key, secret_key, user_guid, created_at)
		 VALUES (?, ?, ?, ?)`,
		cred.AccessKey, cred.SecretKey, cred.UserGUID, cred.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return iam.ErrAccessKeyTaken
		}
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

func (r *Registry) DeleteCredential(ctx context.Context, accessKey string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM credentials WHERE access_key = ?`, accessKey)
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return iam.ErrCredentialNotFound
	}
	return nil
}

func scanUser(row interface{ Scan(...any) error }) (*iam.User, error) {
	user := &iam.User{}
	err := row.Scan(&user.GUID, &user.DisplayName, &user.Email, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, iam.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return user, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
