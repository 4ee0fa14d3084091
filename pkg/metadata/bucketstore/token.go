package bucketstore

import (
	"encoding/base64"
	"fmt"
	"strconv"
)

// BuildContinuationToken encodes an id cursor as an opaque token: the
// base64 of its decimal string.
func BuildContinuationToken(n int64) string {
	return base64.StdEncoding.EncodeToString([]byte(strconv.FormatInt(n, 10)))
}

// ParseContinuationToken decodes a token produced by
// BuildContinuationToken. Round-trips exactly for all non-negative cursors.
func ParseContinuationToken(token string) (int64, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return 0, fmt.Errorf("decode continuation token: %w", err)
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid continuation token %q", token)
	}
	return n, nil
}
