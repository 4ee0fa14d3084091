package s3types

import "encoding/xml"

// ListMultipartUploadsResult is the XML response for ListMultipartUploads.
type ListMultipartUploadsResult struct {
	XMLName        xml.Name       `xml:"ListMultipartUploadsResult"`
	Xmlns          string         `xml:"xmlns,attr"`
	Bucket         string         `xml:"Bucket"`
	KeyMarker      string         `xml:"KeyMarker,omitempty"`
	UploadIDMarker string         `xml:"UploadIdMarker,omitempty"`
	MaxUploads     int            `xml:"MaxUploads"`
	IsTruncated    bool           `xml:"IsTruncated"`
	Uploads        []UploadEntry  `xml:"Upload"`
	CommonPrefixes []CommonPrefix `xml:"CommonPrefixes,omitempty"`
}

// UploadEntry is one in-progress multipart upload.
type UploadEntry struct {
	Key          string `xml:"Key"`
	UploadID     string `xml:"UploadId"`
	Initiator    *Owner `xml:"Initiator,omitempty"`
	Owner        *Owner `xml:"Owner,omitempty"`
	StorageClass string `xml:"StorageClass"`
	Initiated    string `xml:"Initiated"`
}
