// Copyright 2026 Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package bucketstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContinuationTokenRoundTrip(t *testing.T) {
	t.Parallel()

	for _, n := range []int64{0, 1, 1000000} {
		got, err := ParseContinuationToken(BuildContinuationToken(n))
		require.NoError(t, err)
		assert.Equal(t, n, got)
	}
}

func TestParseContinuationTokenRejectsGarbage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		token string
	}{
		{name: "not base64", token: "%%%"},
		{name: "not a number", token: "aGVsbG8="}, // "hello"
		{name: "negative", token: BuildContinuationToken(-5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseContinuationToken(tt.token)
			assert.Error(t, err)
		})
	}
}
