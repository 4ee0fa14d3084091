// Package iam holds the identity and credential model used by the
// authentication engine. Users own buckets and objects; credentials bind
// access keys to users.
package iam

import "time"

// User is an identity for ownership and ACL grantee resolution.
// The GUID is immutable once any resource references it.
type User struct {
	GUID        string    `json:"guid"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	CreatedAt   time.Time `json:"created_at"`
}

// Credential is an access-key/secret-key pair bound to a user.
// One user may hold multiple credentials.
type Credential struct {
	AccessKey string    `json:"access_key"`
	SecretKey string    `json:"secret_key"`
	UserGUID  string    `json:"user_guid"`
	CreatedAt time.Time `json:"created_at"`
}

// AnonymousUser stands in for unauthenticated requesters when evaluating
// public-read grants.
var AnonymousUser = &User{
	GUID:        "anonymous",
	DisplayName: "anonymous",
}
