// Package s3err defines the S3 error taxonomy used across the request
// pipeline. Handlers return ErrorCode values as errors; the dispatch layer
// maps them to HTTP status codes and XML error bodies.
// See https://docs.aws.amazon.com/AmazonS3/latest/API/ErrorResponses.html
package s3err

import (
	"encoding/xml"
	"net/http"
	"strings"
)

// APIError carries the wire representation of an S3 error kind.
type APIError struct {
	Code           string
	Description    string
	HTTPStatusCode int
}

// Error is the XML error body returned to S3 clients.
type Error struct {
	XMLName   xml.Name `xml:"Error"`
	Code      string   `xml:"Code"`
	Message   string   `xml:"Message"`
	Resource  string   `xml:"Resource"`
	RequestID string   `xml:"RequestId"`
	HTTPCode  int      `xml:"-"`
}

func (e Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Code)
	b.WriteString(": ")
	if e.Resource != "" {
		b.WriteString(e.Resource)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

// ErrorCode enumerates the S3 error kinds the server produces.
type ErrorCode int

const (
	ErrNone ErrorCode = iota

	// Access and authentication.
	ErrAccessDenied
	ErrInvalidAccessKeyID
	ErrSignatureDoesNotMatch

	// Bucket.
	ErrNoSuchBucket
	ErrBucketAlreadyExists
	ErrBucketAlreadyOwnedByYou
	ErrBucketNotEmpty
	ErrInvalidBucketName
	ErrInvalidBucketState
	ErrNoSuchTagSet

	// Object.
	ErrNoSuchKey
	ErrNoSuchVersion
	ErrInvalidVersionID

	// Multipart.
	ErrNoSuchUpload

	// Request validation.
	ErrInvalidRequest
	ErrInvalidArgument
	ErrInvalidRange
	ErrMalformedXML
	ErrMalformedACL
	ErrInvalidMaxKeys
	ErrInvalidContinuationToken
	ErrInvalidMaxDeleteObjects

	// Service.
	ErrInternalError
	ErrNotImplemented
)

var errorCodeResponse = map[ErrorCode]APIError{
	ErrAccessDenied: {
		Code:           "AccessDenied",
		Description:    "Access Denied.",
		HTTPStatusCode: http.StatusForbidden,
	},
	ErrInvalidAccessKeyID: {
		Code:           "InvalidAccessKeyId",
		Description:    "The access key ID you provided does not exist in our records.",
		HTTPStatusCode: http.StatusForbidden,
	},
	ErrSignatureDoesNotMatch: {
		Code:           "SignatureDoesNotMatch",
		Description:    "The request signature we calculated does not match the signature you provided.",
		HTTPStatusCode: http.StatusForbidden,
	},
	ErrNoSuchBucket: {
		Code:           "NoSuchBucket",
		Description:    "The specified bucket does not exist.",
		HTTPStatusCode: http.StatusNotFound,
	},
	ErrBucketAlreadyExists: {
		Code:           "BucketAlreadyExists",
		Description:    "The requested bucket name is not available. Please select a different name and try again.",
		HTTPStatusCode: http.StatusConflict,
	},
	ErrBucketAlreadyOwnedByYou: {
		Code:           "BucketAlreadyOwnedByYou",
		Description:    "Your previous request to create the named bucket succeeded and you already own it.",
		HTTPStatusCode: http.StatusConflict,
	},
	ErrBucketNotEmpty: {
		Code:           "BucketNotEmpty",
		Description:    "The bucket you tried to delete is not empty.",
		HTTPStatusCode: http.StatusConflict,
	},
	ErrInvalidBucketName: {
		Code:           "InvalidBucketName",
		Description:    "The specified bucket is not valid.",
		HTTPStatusCode: http.StatusBadRequest,
	},
	ErrInvalidBucketState: {
		Code:           "InvalidBucketState",
		Description:    "The request is not valid with the current state of the bucket.",
		HTTPStatusCode: http.StatusConflict,
	},
	ErrNoSuchTagSet: {
		Code:           "NoSuchTagSet",
		Description:    "The TagSet does not exist.",
		HTTPStatusCode: http.StatusNotFound,
	},
	ErrNoSuchKey: {
		Code:           "NoSuchKey",
		Description:    "The specified key does not exist.",
		HTTPStatusCode: http.StatusNotFound,
	},
	ErrNoSuchVersion: {
		Code:           "NoSuchVersion",
		Description:    "The specified version does not exist.",
		HTTPStatusCode: http.StatusNotFound,
	},
	ErrInvalidVersionID: {
		Code:           "InvalidArgument",
		Description:    "Invalid version id specified.",
		HTTPStatusCode: http.StatusBadRequest,
	},
	ErrNoSuchUpload: {
		Code:           "NoSuchUpload",
		Description:    "The specified multipart upload does not exist. The upload ID may be invalid, or the upload may have been aborted or completed.",
		HTTPStatusCode: http.StatusNotFound,
	},
	ErrInvalidRequest: {
		Code:           "InvalidRequest",
		Description:    "Invalid Request.",
		HTTPStatusCode: http.StatusBadRequest,
	},
	ErrInvalidArgument: {
		Code:           "InvalidArgument",
		Description:    "Invalid Argument.",
		HTTPStatusCode: http.StatusBadRequest,
	},
	ErrInvalidRange: {
		Code:           "InvalidRange",
		Description:    "The requested range is not satisfiable.",
		HTTPStatusCode: http.StatusRequestedRangeNotSatisfiable,
	},
	ErrMalformedXML: {
		Code:           "MalformedXML",
		Description:    "The XML you provided was not well-formed or did not validate against our published schema.",
		HTTPStatusCode: http.StatusBadRequest,
	},
	ErrMalformedACL: {
		Code:           "MalformedACLError",
		Description:    "The XML you provided was not well-formed or did not validate against our published schema.",
		HTTPStatusCode: http.StatusBadRequest,
	},
	ErrInvalidMaxKeys: {
		Code:           "InvalidArgument",
		Description:    "Argument maxKeys must be an integer between 0 and 2147483647.",
		HTTPStatusCode: http.StatusBadRequest,
	},
	ErrInvalidContinuationToken: {
		Code:           "InvalidArgument",
		Description:    "The continuation token provided is incorrect.",
		HTTPStatusCode: http.StatusBadRequest,
	},
	ErrInvalidMaxDeleteObjects: {
		Code:           "InvalidArgument",
		Description:    "The Objects argument can contain a list of up to 1000 keys.",
		HTTPStatusCode: http.StatusBadRequest,
	},
	ErrInternalError: {
		Code:           "InternalError",
		Description:    "We encountered an internal error. Please try again.",
		HTTPStatusCode: http.StatusInternalServerError,
	},
	ErrNotImplemented: {
		Code:           "NotImplemented",
		Description:    "A header you provided implies functionality that is not implemented.",
		HTTPStatusCode: http.StatusNotImplemented,
	},
}

// APIError returns the wire definition for this error code.
func (e ErrorCode) APIError() APIError {
	if err, ok := errorCodeResponse[e]; ok {
		return err
	}
	return APIError{
		Code:           "InternalError",
		Description:    "We encountered an internal error. Please try again.",
		HTTPStatusCode: http.StatusInternalServerError,
	}
}

// Code returns the S3 error code string.
func (e ErrorCode) Code() string {
	return e.APIError().Code
}

// Description returns the error description.
func (e ErrorCode) Description() string {
	return e.APIError().Description
}

// Error implements the error interface.
func (e ErrorCode) Error() string {
	return e.Description()
}

// HTTPStatusCode returns the HTTP status for this error code.
func (e ErrorCode) HTTPStatusCode() int {
	return e.APIError().HTTPStatusCode
}

// ToErrorResponse builds the XML error body for this code.
func (e ErrorCode) ToErrorResponse(resource string) Error {
	api := e.APIError()
	return Error{
		Code:     api.Code,
		Message:  api.Description,
		Resource: resource,
		HTTPCode: api.HTTPStatusCode,
	}
}
