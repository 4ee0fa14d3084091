// Copyright 2026 Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package types

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidBucketName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		valid bool
	}{
		{"docs", true},
		{"my-bucket", true},
		{"my.bucket.v2", true},
		{"abc", true},
		{"123", true},
		{strings.Repeat("a", 63), true},

		{"ab", false},
		{strings.Repeat("a", 64), false},
		{"", false},
		{"MyBucket", false},
		{"my_bucket", false},
		{"-leading", false},
		{"trailing-", false},
		{".leading", false},
		{"trailing.", false},
		{"has space", false},
		{"emojié", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.valid, ValidBucketName(tt.name), "%q", tt.name)
	}
}

func TestIsReservedBucketName(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"admin", "metrics", "favicon", "quarry"} {
		assert.True(t, IsReservedBucketName(name), name)
	}
	assert.False(t, IsReservedBucketName("docs"))
	assert.False(t, IsReservedBucketName("admin2"))
}

func TestPermissionSetHas(t *testing.T) {
	t.Parallel()

	rw := PermRead | PermWrite
	assert.True(t, rw.Has(PermRead))
	assert.True(t, rw.Has(PermWrite))
	assert.False(t, rw.Has(PermReadACP))

	// Full control satisfies every permission check.
	full := PermFullControl
	for _, p := range []PermissionSet{PermRead, PermWrite, PermReadACP, PermWriteACP, PermFullControl} {
		assert.True(t, full.Has(p))
	}

	var none PermissionSet
	assert.True(t, none.IsZero())
	assert.False(t, none.Has(PermRead))
}

func TestPermitsAccessKey(t *testing.T) {
	t.Parallel()

	b := &BucketConfig{PermittedAccessKeys: []string{"AK1", "AK2"}}
	assert.True(t, b.PermitsAccessKey("AK1"))
	assert.False(t, b.PermitsAccessKey("AK3"))
	assert.False(t, (&BucketConfig{}).PermitsAccessKey("AK1"))
}
