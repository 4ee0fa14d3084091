// Copyright 2026 Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"net/http"
	"strings"

	"github.com/quarrylabs/quarry/pkg/s3api/s3action"
)

// RequestInfo is the parsed addressing of one inbound request.
type RequestInfo struct {
	RequestID string
	AccessKey string
	Bucket    string
	Key       string
	Action    s3action.Action
}

// splitPath extracts bucket and key from a path-style URL.
func splitPath(path string) (bucket, key string) {
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return "", ""
	}
	if idx := strings.IndexByte(path, '/'); idx >= 0 {
		return path[:idx], path[idx+1:]
	}
	return path, ""
}

// extractAccessKey pulls the access key out of a SigV4 or SigV2
// Authorization header, or a presigned X-Amz-Credential query parameter.
// Cryptographic verification of the signature is the wire collaborator's
// job; only the key identity is needed here.
func extractAccessKey(r *http.Request) string {
	if cred := r.URL.Query().Get("X-Amz-Credential"); cred != "" {
		return firstCredentialSegment(cred)
	}

	header := r.Header.Get("Authorization")
	switch {
	case strings.HasPrefix(header, "AWS4-HMAC-SHA256 "):
		for _, part := range strings.Split(strings.TrimPrefix(header, "AWS4-HMAC-SHA256 "), ",") {
			part = strings.TrimSpace(part)
			if cred, ok := strings.CutPrefix(part, "Credential="); ok {
				return firstCredentialSegment(cred)
			}
		}
	case strings.HasPrefix(header, "AWS "):
		// Legacy v2 form: "AWS AccessKey:Signature".
		rest := strings.TrimPrefix(header, "AWS ")
		if idx := strings.IndexByte(rest, ':'); idx > 0 {
			return rest[:idx]
		}
	}
	return ""
}

func firstCredentialSegment(cred string) string {
	if idx := strings.IndexByte(cred, '/'); idx >= 0 {
		return cred[:idx]
	}
	return cred
}

// classify maps method + path shape + query parameters to an action.
func classify(r *http.Request, bucket, key string) s3action.Action {
	query := r.URL.Query()
	has := func(name string) bool {
		_, ok := query[name]
		return ok
	}

	if bucket == "" {
		if r.Method == http.MethodGet {
			return s3action.ListBuckets
		}
		return s3action.Unknown
	}

	if key == "" {
		switch r.Method {
		case http.MethodGet:
			switch {
			case has("location"):
				return s3action.GetBucketLocation
			case has("versioning"):
				return s3action.GetBucketVersioning
			case has("tagging"):
				return s3action.GetBucketTagging
			case has("acl"):
				return s3action.GetBucketACL
			case has("versions"):
				return s3action.ListObjectVersions
			case has("uploads"):
				return s3action.ListMultipartUploads
			default:
				return s3action.ListObjects
			}
		case http.MethodPut:
			switch {
			case has("versioning"):
				return s3action.PutBucketVersioning
			case has("tagging"):
				return s3action.PutBucketTagging
			case has("acl"):
				return s3action.PutBucketACL
			default:
				return s3action.CreateBucket
			}
		case http.MethodDelete:
			if has("tagging") {
				return s3action.DeleteBucketTagging
			}
			return s3action.DeleteBucket
		case http.MethodHead:
			return s3action.HeadBucket
		case http.MethodPost:
			if has("delete") {
				return s3action.DeleteObjects
			}
		}
		return s3action.Unknown
	}

	switch r.Method {
	case http.MethodGet:
		switch {
		case has("tagging"):
			return s3action.GetObjectTagging
		case has("acl"):
			return s3action.GetObjectACL
		default:
			return s3action.GetObject
		}
	case http.MethodPut:
		switch {
		case has("tagging"):
			return s3action.PutObjectTagging
		case has("acl"):
			return s3action.PutObjectACL
		default:
			return s3action.PutObject
		}
	case http.MethodHead:
		return s3action.HeadObject
	case http.MethodDelete:
		if has("tagging") {
			return s3action.DeleteObjectTagging
		}
		return s3action.DeleteObject
	case http.MethodPost:
		if has("uploads") {
			return s3action.CreateMultipartUpload
		}
	}
	return s3action.Unknown
}
