package s3types

import (
	"encoding/xml"
	"fmt"
)

// CannedACL values accepted on x-amz-acl headers.
type CannedACL string

const (
	ACLPrivate           CannedACL = "private"
	ACLPublicRead        CannedACL = "public-read"
	ACLPublicReadWrite   CannedACL = "public-read-write"
	ACLAuthenticatedRead CannedACL = "authenticated-read"
)

func (ca CannedACL) String() string {
	return string(ca)
}

// ParseCannedACL validates a canned ACL header value.
func ParseCannedACL(input string) (CannedACL, error) {
	switch input {
	case ACLPrivate.String(),
		ACLPublicRead.String(),
		ACLPublicReadWrite.String(),
		ACLAuthenticatedRead.String():
		return CannedACL(input), nil
	default:
		return "", fmt.Errorf("invalid canned ACL: %s", input)
	}
}

// Permission names as they appear in ACL XML.
type Permission string

const (
	PermissionFullControl Permission = "FULL_CONTROL"
	PermissionRead        Permission = "READ"
	PermissionWrite       Permission = "WRITE"
	PermissionReadACP     Permission = "READ_ACP"
	PermissionWriteACP    Permission = "WRITE_ACP"
)

// GranteeType identifies how a grantee is specified.
type GranteeType string

const (
	GranteeTypeCanonicalUser GranteeType = "CanonicalUser"
	GranteeTypeGroup         GranteeType = "Group"
	GranteeTypeEmail         GranteeType = "AmazonCustomerByEmail"
)

// Owner identifies the owner of a bucket or object.
type Owner struct {
	ID          string `xml:"ID"`
	DisplayName string `xml:"DisplayName,omitempty"`
}

// AccessControlPolicy is the XML body of Get/PutBucketAcl and
// Get/PutObjectAcl.
type AccessControlPolicy struct {
	XMLName           xml.Name          `xml:"AccessControlPolicy"`
	Xmlns             string            `xml:"xmlns,attr,omitempty"`
	Owner             Owner             `xml:"Owner"`
	AccessControlList AccessControlList `xml:"AccessControlList"`
}

// AccessControlList wraps the grant list.
type AccessControlList struct {
	Grants []Grant `xml:"Grant"`
}

// Grant pairs a grantee with a single permission.
type Grant struct {
	Grantee    Grantee    `xml:"Grantee"`
	Permission Permission `xml:"Permission"`
}

// Grantee identifies who receives the permission. The xsi:type attribute
// selects which of the remaining fields is meaningful.
type Grantee struct {
	XMLName      xml.Name `xml:"Grantee"`
	XmlnsXsi     string   `xml:"xmlns:xsi,attr,omitempty"`
	XsiType      string   `xml:"xsi:type,attr,omitempty"`
	ID           string   `xml:"ID,omitempty"`
	DisplayName  string   `xml:"DisplayName,omitempty"`
	EmailAddress string   `xml:"EmailAddress,omitempty"`
	URI          string   `xml:"URI,omitempty"`
}

// Type resolves the grantee type from the xsi:type attribute, falling back
// to field presence for bodies that omit it.
func (g *Grantee) Type() GranteeType {
	switch g.XsiType {
	case string(GranteeTypeCanonicalUser):
		return GranteeTypeCanonicalUser
	case string(GranteeTypeGroup):
		return GranteeTypeGroup
	case string(GranteeTypeEmail):
		return GranteeTypeEmail
	}
	if g.URI != "" {
		return GranteeTypeGroup
	}
	if g.EmailAddress != "" {
		return GranteeTypeEmail
	}
	return GranteeTypeCanonicalUser
}
