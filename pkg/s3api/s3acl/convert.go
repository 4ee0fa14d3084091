// Copyright 2026 Quarry Authors
// SPDX-License-Identifier: Apache-2.0

// Package s3acl converts between the stored access rule rows and the S3
// wire representations of ACLs: AccessControlPolicy XML bodies, canned
// ACL headers, and x-amz-grant-* headers.
package s3acl

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/quarrylabs/quarry/pkg/iam"
	"github.com/quarrylabs/quarry/pkg/s3api/s3consts"
	"github.com/quarrylabs/quarry/pkg/s3api/s3types"
	"github.com/quarrylabs/quarry/pkg/types"
)

// permissionOrder fixes grant ordering in generated policies: FULL_CONTROL
// first, then READ, WRITE, READ_ACP, WRITE_ACP.
var permissionOrder = []struct {
	bit  types.PermissionSet
	name s3types.Permission
}{
	{types.PermFullControl, s3types.PermissionFullControl},
	{types.PermRead, s3types.PermissionRead},
	{types.PermWrite, s3types.PermissionWrite},
	{types.PermReadACP, s3types.PermissionReadACP},
	{types.PermWriteACP, s3types.PermissionWriteACP},
}

// NameResolver maps user GUIDs to display names for policy output.
// A nil resolver leaves display names empty.
type NameResolver interface {
	GetUser(ctx context.Context, guid string) (*iam.User, error)
}

// ToPolicy renders stored rules as an AccessControlPolicy. Each rule
// expands to one grant per permission bit, so a full-control rule yields a
// single FULL_CONTROL grant while a read+write rule yields two grants.
func ToPolicy(ctx context.Context, owner *iam.User, rules []types.AccessRule, resolver NameResolver) *s3types.AccessControlPolicy {
	policy := &s3types.AccessControlPolicy{
		Xmlns: s3consts.XMLNamespace,
		Owner: s3types.Owner{ID: owner.GUID, DisplayName: owner.DisplayName},
	}

	for _, rule := range rules {
		grantee := s3types.Grantee{XmlnsXsi: "http://www.w3.org/2001/XMLSchema-instance"}
		switch {
		case rule.GroupURI != "":
			grantee.XsiType = string(s3types.GranteeTypeGroup)
			grantee.URI = rule.GroupURI
		default:
			grantee.XsiType = string(s3types.GranteeTypeCanonicalUser)
			grantee.ID = rule.UserID
			if resolver != nil {
				if user, err := resolver.GetUser(ctx, rule.UserID); err == nil {
					grantee.DisplayName = user.DisplayName
				}
			}
		}

		if rule.Permissions.IsZero() {
			continue
		}
		if rule.Permissions&types.PermFullControl != 0 {
			policy.AccessControlList.Grants = append(policy.AccessControlList.Grants,
				s3types.Grant{Grantee: grantee, Permission: s3types.PermissionFullControl})
			continue
		}
		for _, po := range permissionOrder {
			if rule.Permissions&po.bit != 0 {
				policy.AccessControlList.Grants = append(policy.AccessControlList.Grants,
					s3types.Grant{Grantee: grantee, Permission: po.name})
			}
		}
	}
	return policy
}

// FromPolicy converts a client-supplied AccessControlPolicy to rule rows.
// Each grant becomes one rule carrying a single permission bit; grants for
// the same grantee are not merged. Email grantees are resolved through the
// identity store.
func FromPolicy(ctx context.Context, policy *s3types.AccessControlPolicy, issuedBy string, users iam.Store) ([]types.AccessRule, error) {
	rules := make([]types.AccessRule, 0, len(policy.AccessControlList.Grants))
	for i := range policy.AccessControlList.Grants {
		grant := &policy.AccessControlList.Grants[i]
		perm, err := parsePermission(grant.Permission)
		if err != nil {
			return nil, err
		}

		rule := types.AccessRule{IssuedBy: issuedBy, Permissions: perm}
		switch grant.Grantee.Type() {
		case s3types.GranteeTypeGroup:
			if err := validateGroupURI(grant.Grantee.URI); err != nil {
				return nil, err
			}
			rule.GroupURI = grant.Grantee.URI
		case s3types.GranteeTypeEmail:
			user, err := users.GetUserByEmail(ctx, grant.Grantee.EmailAddress)
			if err != nil {
				return nil, fmt.Errorf("resolve grantee email %q: %w", grant.Grantee.EmailAddress, err)
			}
			rule.UserID = user.GUID
		default:
			if grant.Grantee.ID == "" {
				return nil, fmt.Errorf("grant %d: canonical grantee without ID", i)
			}
			rule.UserID = grant.Grantee.ID
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// FromCanned expands a canned ACL into rule rows. The owner always keeps
// full control; the public variants add group rules on top.
func FromCanned(acl s3types.CannedACL, ownerID string) []types.AccessRule {
	rules := []types.AccessRule{{
		UserID:      ownerID,
		IssuedBy:    ownerID,
		Permissions: types.PermFullControl,
	}}

	switch acl {
	case s3types.ACLPublicRead:
		rules = append(rules, types.AccessRule{
			GroupURI:    s3consts.AllUsersGroup,
			IssuedBy:    ownerID,
			Permissions: types.PermRead,
		})
	case s3types.ACLPublicReadWrite:
		rules = append(rules, types.AccessRule{
			GroupURI:    s3consts.AllUsersGroup,
			IssuedBy:    ownerID,
			Permissions: types.PermRead | types.PermWrite,
		})
	case s3types.ACLAuthenticatedRead:
		rules = append(rules, types.AccessRule{
			GroupURI:    s3consts.AuthenticatedUsersGroup,
			IssuedBy:    ownerID,
			Permissions: types.PermRead,
		})
	}
	return rules
}

var grantHeaders = []struct {
	name string
	bit  types.PermissionSet
}{
	{s3consts.XAmzGrantRead, types.PermRead},
	{s3consts.XAmzGrantWrite, types.PermWrite},
	{s3consts.XAmzGrantReadACP, types.PermReadACP},
	{s3consts.XAmzGrantWriteACP, types.PermWriteACP},
	{s3consts.XAmzGrantFullControl, types.PermFullControl},
}

// HasGrantHeaders reports whether any x-amz-grant-* header is present.
func HasGrantHeaders(h http.Header) bool {
	for _, gh := range grantHeaders {
		if h.Get(gh.name) != "" {
			return true
		}
	}
	return false
}

// ParseGrantHeaders parses the x-amz-grant-* headers into rule rows. Each
// header value is a comma-separated list of type=value pairs, e.g.
// `id="guid", uri="http://..."`. One rule is produced per grantee per
// header; duplicates are preserved as written.
func ParseGrantHeaders(ctx context.Context, h http.Header, issuedBy string, users iam.Store) ([]types.AccessRule, error) {
	var rules []types.AccessRule
	for _, gh := range grantHeaders {
		value := h.Get(gh.name)
		if value == "" {
			continue
		}
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			kind, target, err := splitGrantPair(part)
			if err != nil {
				return nil, fmt.Errorf("header %s: %w", gh.name, err)
			}

			rule := types.AccessRule{IssuedBy: issuedBy, Permissions: gh.bit}
			switch kind {
			case "id":
				rule.UserID = target
			case "uri":
				if err := validateGroupURI(target); err != nil {
					return nil, fmt.Errorf("header %s: %w", gh.name, err)
				}
				rule.GroupURI = target
			case "emailaddress":
				user, err := users.GetUserByEmail(ctx, target)
				if err != nil {
					return nil, fmt.Errorf("header %s: resolve email %q: %w", gh.name, target, err)
				}
				rule.UserID = user.GUID
			default:
				return nil, fmt.Errorf("header %s: unknown grantee type %q", gh.name, kind)
			}
			rules = append(rules, rule)
		}
	}
	return rules, nil
}

func splitGrantPair(pair string) (kind, target string, err error) {
	idx := strings.IndexByte(pair, '=')
	if idx <= 0 {
		return "", "", fmt.Errorf("malformed grantee %q", pair)
	}
	kind = strings.ToLower(strings.TrimSpace(pair[:idx]))
	target = strings.Trim(strings.TrimSpace(pair[idx+1:]), `"`)
	if target == "" {
		return "", "", fmt.Errorf("empty grantee value in %q", pair)
	}
	return kind, target, nil
}

func parsePermission(p s3types.Permission) (types.PermissionSet, error) {
	switch p {
	case s3types.PermissionFullControl:
		return types.PermFullControl, nil
	case s3types.PermissionRead:
		return types.PermRead, nil
	case s3types.PermissionWrite:
		return types.PermWrite, nil
	case s3types.PermissionReadACP:
		return types.PermReadACP, nil
	case s3types.PermissionWriteACP:
		return types.PermWriteACP, nil
	default:
		return 0, fmt.Errorf("unknown permission %q", p)
	}
}

func validateGroupURI(uri string) error {
	switch uri {
	case s3consts.AllUsersGroup, s3consts.AuthenticatedUsersGroup, s3consts.LogDeliveryGroup:
		return nil
	default:
		return fmt.Errorf("unknown grantee group %q", uri)
	}
}
