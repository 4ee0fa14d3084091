// Copyright 2026 Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package s3types

import "encoding/xml"

// VersioningConfiguration is the XML request/response for bucket versioning.
type VersioningConfiguration struct {
	XMLName xml.Name `xml:"VersioningConfiguration"`
	Xmlns   string   `xml:"xmlns,attr,omitempty"`
	Status  string   `xml:"Status,omitempty"` // Enabled or Suspended
}

// Versioning status values.
const (
	VersioningEnabled   = "Enabled"
	VersioningSuspended = "Suspended"
)

// ListVersionsResult is the XML response for ListObjectVersions.
type ListVersionsResult struct {
	XMLName        xml.Name        `xml:"ListVersionsResult"`
	Xmlns          string          `xml:"xmlns,attr,omitempty"`
	Name           string          `xml:"Name"`
	Prefix         string          `xml:"Prefix,omitempty"`
	KeyMarker      string          `xml:"KeyMarker,omitempty"`
	NextKeyMarker  string          `xml:"NextKeyMarker,omitempty"`
	MaxKeys        int             `xml:"MaxKeys"`
	Delimiter      string          `xml:"Delimiter,omitempty"`
	IsTruncated    bool            `xml:"IsTruncated"`
	Versions       []ObjectVersion `xml:"Version"`
	DeleteMarkers  []DeleteMarker  `xml:"DeleteMarker,omitempty"`
	CommonPrefixes []CommonPrefix  `xml:"CommonPrefixes,omitempty"`
}

// ObjectVersion is one version entry in a ListVersionsResult.
type ObjectVersion struct {
	Key          string `xml:"Key"`
	VersionID    string `xml:"VersionId"`
	IsLatest     bool   `xml:"IsLatest"`
	LastModified string `xml:"LastModified"`
	ETag         string `xml:"ETag"`
	Size         int64  `xml:"Size"`
	StorageClass string `xml:"StorageClass"`
	Owner        *Owner `xml:"Owner,omitempty"`
}

// DeleteMarker is a tombstone entry in a ListVersionsResult.
type DeleteMarker struct {
	Key          string `xml:"Key"`
	VersionID    string `xml:"VersionId"`
	IsLatest     bool   `xml:"IsLatest"`
	LastModified string `xml:"LastModified"`
	Owner        *Owner `xml:"Owner,omitempty"`
}
