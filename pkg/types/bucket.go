// Copyright 2026 Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package types

import "time"

// StorageType selects the blob backend for a bucket.
type StorageType string

const (
	StorageTypeDisk   StorageType = "disk"
	StorageTypeMemory StorageType = "memory"
)

// BucketConfig is the registry row describing one bucket.
type BucketConfig struct {
	GUID             string      `json:"guid"`
	Name             string      `json:"name"`
	OwnerID          string      `json:"owner_id"`
	StorageType      StorageType `json:"storage_type"`
	ObjectsDirectory string      `json:"objects_directory"`
	Region           string      `json:"region"`
	EnableVersioning bool        `json:"enable_versioning"`

	// PermittedAccessKeys grants bucket access to specific access keys
	// outside the ACL system. Checked after ownership, before ACLs.
	PermittedAccessKeys []string `json:"permitted_access_keys,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// PermitsAccessKey reports whether key is on the explicit allow list.
func (b *BucketConfig) PermitsAccessKey(key string) bool {
	for _, k := range b.PermittedAccessKeys {
		if k == key {
			return true
		}
	}
	return false
}

// reservedBucketNames can never be created; they collide with API routes
// or on-disk layout.
var reservedBucketNames = map[string]struct{}{
	"admin":   {},
	"favicon": {},
	"metrics": {},
	"quarry":  {},
}

// IsReservedBucketName reports whether name is reserved by the server.
func IsReservedBucketName(name string) bool {
	_, ok := reservedBucketNames[name]
	return ok
}

// ValidBucketName applies the S3 bucket naming rules the server enforces:
// 3-63 characters, lowercase letters, digits, dots and hyphens, starting
// and ending with a letter or digit.
func ValidBucketName(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '.':
			if i == 0 || i == len(name)-1 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
