// Copyright 2026 Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quarrylabs/quarry/pkg/s3api/s3action"
)

func TestSplitPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path   string
		bucket string
		key    string
	}{
		{path: "/", bucket: "", key: ""},
		{path: "/photos", bucket: "photos", key: ""},
		{path: "/photos/", bucket: "photos", key: ""},
		{path: "/photos/cat.jpg", bucket: "photos", key: "cat.jpg"},
		{path: "/photos/2026/cat.jpg", bucket: "photos", key: "2026/cat.jpg"},
	}
	for _, tt := range tests {
		bucket, key := splitPath(tt.path)
		assert.Equal(t, tt.bucket, bucket, tt.path)
		assert.Equal(t, tt.key, key, tt.path)
	}
}

func TestExtractAccessKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header string
		query  string
		want   string
	}{
		{
			name:   "sigv4",
			header: "AWS4-HMAC-SHA256 Credential=AKEXAMPLE/20260830/us-east-1/s3/aws4_request, SignedHeaders=host;x-amz-date, Signature=abc123",
			want:   "AKEXAMPLE",
		},
		{
			name:   "sigv2",
			header: "AWS AKLEGACY:signature==",
			want:   "AKLEGACY",
		},
		{
			name:  "presigned query",
			query: "?X-Amz-Credential=AKQUERY%2F20260830%2Fus-east-1%2Fs3%2Faws4_request",
			want:  "AKQUERY",
		},
		{
			name: "anonymous",
			want: "",
		},
		{
			name:   "garbage header",
			header: "Bearer token",
			want:   "",
		},
		{
			name:   "sigv4 missing credential",
			header: "AWS4-HMAC-SHA256 SignedHeaders=host, Signature=abc",
			want:   "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/bucket/key"+tt.query, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.want, extractAccessKey(r))
		})
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		method string
		target string
		want   s3action.Action
	}{
		{"GET", "/", s3action.ListBuckets},
		{"PUT", "/", s3action.Unknown},

		{"GET", "/b", s3action.ListObjects},
		{"GET", "/b?location", s3action.GetBucketLocation},
		{"GET", "/b?versioning", s3action.GetBucketVersioning},
		{"GET", "/b?tagging", s3action.GetBucketTagging},
		{"GET", "/b?acl", s3action.GetBucketACL},
		{"GET", "/b?versions", s3action.ListObjectVersions},
		{"GET", "/b?uploads", s3action.ListMultipartUploads},
		{"PUT", "/b", s3action.CreateBucket},
		{"PUT", "/b?versioning", s3action.PutBucketVersioning},
		{"PUT", "/b?tagging", s3action.PutBucketTagging},
		{"PUT", "/b?acl", s3action.PutBucketACL},
		{"DELETE", "/b", s3action.DeleteBucket},
		{"DELETE", "/b?tagging", s3action.DeleteBucketTagging},
		{"HEAD", "/b", s3action.HeadBucket},
		{"POST", "/b?delete", s3action.DeleteObjects},
		{"POST", "/b", s3action.Unknown},

		{"GET", "/b/k", s3action.GetObject},
		{"GET", "/b/k?tagging", s3action.GetObjectTagging},
		{"GET", "/b/k?acl", s3action.GetObjectACL},
		{"PUT", "/b/k", s3action.PutObject},
		{"PUT", "/b/k?tagging", s3action.PutObjectTagging},
		{"PUT", "/b/k?acl", s3action.PutObjectACL},
		{"HEAD", "/b/k", s3action.HeadObject},
		{"DELETE", "/b/k", s3action.DeleteObject},
		{"DELETE", "/b/k?tagging", s3action.DeleteObjectTagging},
		{"POST", "/b/k?uploads", s3action.CreateMultipartUpload},
		{"POST", "/b/k", s3action.Unknown},
		{"PATCH", "/b/k", s3action.Unknown},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(tt.method, tt.target, nil)
		bucket, key := splitPath(r.URL.Path)
		got := classify(r, bucket, key)
		assert.Equal(t, tt.want, got, "%s %s", tt.method, tt.target)
	}
}

func TestActionScope(t *testing.T) {
	t.Parallel()

	assert.True(t, s3action.PutObject.IsObject())
	assert.True(t, s3action.CreateMultipartUpload.IsObject())
	assert.False(t, s3action.ListMultipartUploads.IsObject())
	assert.False(t, s3action.CreateBucket.IsObject())
	assert.False(t, s3action.ListBuckets.IsObject())
}
