// Copyright 2026 Quarry Authors
// SPDX-License-Identifier: Apache-2.0

// Package s3action enumerates the S3 operations the server dispatches on.
package s3action

// Action identifies one S3 operation after request classification.
type Action int

const (
	Unknown Action = iota

	// Service actions
	ListBuckets

	// Bucket actions
	CreateBucket
	DeleteBucket
	HeadBucket
	GetBucketLocation
	ListObjects
	ListObjectVersions
	GetBucketVersioning
	PutBucketVersioning
	GetBucketTagging
	PutBucketTagging
	DeleteBucketTagging
	GetBucketACL
	PutBucketACL
	ListMultipartUploads

	// Object actions
	PutObject
	GetObject
	HeadObject
	DeleteObject
	DeleteObjects
	GetObjectTagging
	PutObjectTagging
	DeleteObjectTagging
	GetObjectACL
	PutObjectACL
	CreateMultipartUpload
)

var actionNames = map[Action]string{
	Unknown:               "Unknown",
	ListBuckets:           "ListBuckets",
	CreateBucket:          "CreateBucket",
	DeleteBucket:          "DeleteBucket",
	HeadBucket:            "HeadBucket",
	GetBucketLocation:     "GetBucketLocation",
	ListObjects:           "ListObjects",
	ListObjectVersions:    "ListObjectVersions",
	GetBucketVersioning:   "GetBucketVersioning",
	PutBucketVersioning:   "PutBucketVersioning",
	GetBucketTagging:      "GetBucketTagging",
	PutBucketTagging:      "PutBucketTagging",
	DeleteBucketTagging:   "DeleteBucketTagging",
	GetBucketACL:          "GetBucketAcl",
	PutBucketACL:          "PutBucketAcl",
	ListMultipartUploads:  "ListMultipartUploads",
	PutObject:             "PutObject",
	GetObject:             "GetObject",
	HeadObject:            "HeadObject",
	DeleteObject:          "DeleteObject",
	DeleteObjects:         "DeleteObjects",
	GetObjectTagging:      "GetObjectTagging",
	PutObjectTagging:      "PutObjectTagging",
	DeleteObjectTagging:   "DeleteObjectTagging",
	GetObjectACL:          "GetObjectAcl",
	PutObjectACL:          "PutObjectAcl",
	CreateMultipartUpload: "CreateMultipartUpload",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "Unknown"
}

// IsObject reports whether the action targets an object key.
func (a Action) IsObject() bool {
	return a >= PutObject
}
