package s3types

import "encoding/xml"

// Tagging is the XML body for bucket and object tagging operations.
type Tagging struct {
	XMLName xml.Name `xml:"Tagging"`
	Xmlns   string   `xml:"xmlns,attr,omitempty"`
	TagSet  TagSet   `xml:"TagSet"`
}

// TagSet wraps the tag entries.
type TagSet struct {
	Tags []Tag `xml:"Tag"`
}

// Tag is a key-value pair.
type Tag struct {
	Key   string `xml:"Key"`
	Value string `xml:"Value"`
}
