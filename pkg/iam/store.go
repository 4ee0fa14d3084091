package iam

import (
	"context"
	"errors"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrAccessKeyNotFound  = errors.New("access key not found")
	ErrAccessKeyTaken     = errors.New("access key already exists")
	ErrCredentialNotFound = errors.New("credential not found")
)

// Store resolves identities and credentials. Implementations must be safe
// for concurrent use.
type Store interface {
	// GetUserByAccessKey resolves an access key to its user and credential.
	GetUserByAccessKey(ctx context.Context, accessKey string) (*User, *Credential, error)

	GetUser(ctx context.Context, guid string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	CreateUser(ctx context.Context, user *User) error
	DeleteUser(ctx context.Context, guid string) error
	ListUsers(ctx context.Context) ([]*User, error)

	CreateCredential(ctx context.Context, cred *Credential) error
	DeleteCredential(ctx context.Context, accessKey string) error
}
