// Copyright 2026 Quarry Authors
// SPDX-License-Identifier: Apache-2.0

// Package s3consts holds S3 protocol constants shared across the API surface.
package s3consts

// Common S3 request/response headers.
const (
	XAmzRequestID    = "x-amz-request-id"
	XAmzVersionID    = "x-amz-version-id"
	XAmzDeleteMarker = "x-amz-delete-marker"
	XAmzACL          = "x-amz-acl"

	XAmzGrantRead        = "x-amz-grant-read"
	XAmzGrantWrite       = "x-amz-grant-write"
	XAmzGrantReadACP     = "x-amz-grant-read-acp"
	XAmzGrantWriteACP    = "x-amz-grant-write-acp"
	XAmzGrantFullControl = "x-amz-grant-full-control"
)

// XMLNamespace is the namespace stamped on every S3 XML response body.
const XMLNamespace = "http://s3.amazonaws.com/doc/2006-03-01/"

// ISO8601TimeFormat is the timestamp layout used in S3 XML bodies.
const ISO8601TimeFormat = "2006-01-02T15:04:05.000Z"

// Listing defaults and limits.
const (
	DefaultMaxKeys      = 1000
	MaxKeysLimit        = 1000
	MaxDeleteObjects    = 1000
	DefaultRegion       = "us-west-1"
	DefaultStorageClass = "STANDARD"
)

// Predefined grantee group URIs.
const (
	AllUsersGroup           = "http://acs.amazonaws.com/groups/global/AllUsers"
	AuthenticatedUsersGroup = "http://acs.amazonaws.com/groups/global/AuthenticatedUsers"
	LogDeliveryGroup        = "http://acs.amazonaws.com/groups/s3/LogDelivery"
)
