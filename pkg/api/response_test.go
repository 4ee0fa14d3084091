// Copyright 2026 Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRangeHeader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value  string
		ok     bool
		start  int64
		end    int64
		hasEnd bool
	}{
		{value: "bytes=0-499", ok: true, start: 0, end: 499, hasEnd: true},
		{value: "bytes=500-999", ok: true, start: 500, end: 999, hasEnd: true},
		{value: "bytes=500-", ok: true, start: 500},
		{value: "bytes=0-0", ok: true, start: 0, end: 0, hasEnd: true},

		// Suffix ranges, multiple ranges and malformed specs are refused.
		{value: "bytes=-500", ok: false},
		{value: "bytes=0-499,600-999", ok: false},
		{value: "bytes=9-5", ok: false},
		{value: "bytes=a-b", ok: false},
		{value: "bytes=", ok: false},
		{value: "0-499", ok: false},
		{value: "items=0-499", ok: false},
	}
	for _, tt := range tests {
		r, ok := parseRangeHeader(tt.value)
		assert.Equal(t, tt.ok, ok, tt.value)
		if tt.ok {
			assert.Equal(t, tt.start, r.Start, tt.value)
			assert.Equal(t, tt.hasEnd, r.HasEnd, tt.value)
			if tt.hasEnd {
				assert.Equal(t, tt.end, r.End, tt.value)
			}
		}
	}
}
