// Copyright 2026 Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package types

// PermissionSet is a bitflag set of S3 ACL permissions held by one grantee.
type PermissionSet uint8

const (
	PermRead PermissionSet = 1 << iota
	PermWrite
	PermReadACP
	PermWriteACP
	PermFullControl
)

// Has reports whether the set grants p, treating FullControl as granting
// every permission.
func (s PermissionSet) Has(p PermissionSet) bool {
	if s&PermFullControl != 0 {
		return true
	}
	return s&p != 0
}

// IsZero reports whether no permission bits are set.
func (s PermissionSet) IsZero() bool { return s == 0 }

// AccessRule is one ACL grant row. Exactly one of UserID or GroupURI is
// set; ObjectGUID is empty for bucket-scoped rules.
type AccessRule struct {
	ID          int64         `json:"id"`
	BucketGUID  string        `json:"bucket_guid"`
	ObjectGUID  string        `json:"object_guid,omitempty"`
	UserID      string        `json:"user_id,omitempty"`
	GroupURI    string        `json:"group_uri,omitempty"`
	IssuedBy    string        `json:"issued_by"`
	Permissions PermissionSet `json:"permissions"`
}

// AppliesToUser reports whether the rule names userID directly.
func (r *AccessRule) AppliesToUser(userID string) bool {
	return r.UserID != "" && r.UserID == userID
}

// AppliesToGroup reports whether the rule names the group URI.
func (r *AccessRule) AppliesToGroup(uri string) bool {
	return r.GroupURI != "" && r.GroupURI == uri
}
