package s3types

import "encoding/xml"

// ListAllMyBucketsResult is the XML response for ListBuckets.
type ListAllMyBucketsResult struct {
	XMLName xml.Name   `xml:"ListAllMyBucketsResult"`
	Xmlns   string     `xml:"xmlns,attr"`
	Owner   Owner      `xml:"Owner"`
	Buckets BucketList `xml:"Buckets"`
}

// BucketList wraps the bucket entries.
type BucketList struct {
	Buckets []BucketInfo `xml:"Bucket"`
}

// BucketInfo is one bucket entry in a ListAllMyBucketsResult.
type BucketInfo struct {
	Name         string `xml:"Name"`
	CreationDate string `xml:"CreationDate"`
	Region       string `xml:"BucketRegion,omitempty"`
}

// LocationConstraint is the XML response for GetBucketLocation.
type LocationConstraint struct {
	XMLName  xml.Name `xml:"LocationConstraint"`
	Xmlns    string   `xml:"xmlns,attr,omitempty"`
	Location string   `xml:",chardata"`
}
