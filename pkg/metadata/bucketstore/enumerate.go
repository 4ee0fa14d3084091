// Copyright 2026 Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package bucketstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/quarrylabs/quarry/pkg/types"
)

// EnumerateQuery selects which object rows to list.
type EnumerateQuery struct {
	Prefix     string
	Delimiter  string
	StartIndex int64 // surrogate-id cursor; rows with id >= StartIndex match
	MaxResults int
	// IncludeVersions lists every row (delete markers included) instead of
	// only the current version per key.
	IncludeVersions bool
}

// Entry is one listed row plus its IsLatest flag.
type Entry struct {
	types.ObjectRecord
	IsLatest bool
}

// EnumerateResult is one page of listing output.
type EnumerateResult struct {
	Objects        []Entry
	CommonPrefixes []string
	// NextStartIndex is the id cursor for the next page: last returned
	// row's id + 1. New inserts always get higher ids, so already-issued
	// pages never shift.
	NextStartIndex int64
	IsTruncated    bool
}

// enumerateBatchSize bounds how many rows one SQL round trip fetches while
// assembling a page.
const enumerateBatchSize = 256

// Enumerate returns at most MaxResults entries (objects plus common
// prefixes combined) in ascending surrogate-id order. It reads one entry
// beyond MaxResults internally so IsTruncated is exact even when the page
// boundary falls on the final row.
func (c *Client) Enumerate(ctx context.Context, q EnumerateQuery) (*EnumerateResult, error) {
	if q.MaxResults <= 0 {
		q.MaxResults = 1000
	}

	res := &EnumerateResult{}
	seenPrefixes := make(map[string]struct{})
	cursor := q.StartIndex
	entries := 0

	for entries <= q.MaxResults {
		rows, err := c.enumerateBatch(ctx, q, cursor)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			break
		}

		for _, row := range rows {
			cursor = row.ID + 1

			if q.Delimiter != "" {
				rest := strings.TrimPrefix(row.Key, q.Prefix)
				if i := strings.Index(rest, q.Delimiter); i >= 0 {
					prefix := q.Prefix + rest[:i+len(q.Delimiter)]
					if _, dup := seenPrefixes[prefix]; dup {
						continue
					}
					seenPrefixes[prefix] = struct{}{}
					if entries == q.MaxResults {
						res.IsTruncated = true
						return res, nil
					}
					res.CommonPrefixes = append(res.CommonPrefixes, prefix)
					entries++
					res.NextStartIndex = row.ID + 1
					continue
				}
			}

			if entries == q.MaxResults {
				// Lookahead row exists beyond the page: more results remain.
				res.IsTruncated = true
				return res, nil
			}
			res.Objects = append(res.Objects, row)
			entries++
			res.NextStartIndex = row.ID + 1
		}
	}

	return res, nil
}

// enumerateBatch fetches up to enumerateBatchSize candidate rows starting
// at the id cursor.
func (c *Client) enumerateBatch(ctx context.Context, q EnumerateQuery, startID int64) ([]Entry, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + objectColumns + `,
		(id = (SELECT MAX(id) FROM objects o2 WHERE o2.key = objects.key)) AS is_latest
		FROM objects WHERE id >= ?`)
	args := []any{startID}

	if q.Prefix != "" {
		b.WriteString(` AND key LIKE ? ESCAPE '\'`)
		args = append(args, escapeLike(q.Prefix)+"%")
	}
	if !q.IncludeVersions {
		// Current objects only: the newest row per key, and only when that
		// row is not a tombstone.
		b.WriteString(` AND delete_marker = 0
			AND id = (SELECT MAX(id) FROM objects o3 WHERE o3.key = objects.key)`)
	}
	b.WriteString(` ORDER BY id ASC LIMIT ?`)
	args = append(args, enumerateBatchSize)

	rows, err := c.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("enumerate objects: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var marker, isLatest int
		var expiration sql.NullTime
		if err := rows.Scan(&e.ID, &e.GUID, &e.Key, &e.Version, &e.AuthorID,
			&e.OwnerID, &e.ContentLength, &e.ContentType, &e.ETag,
			&e.BlobFilename, &marker, &e.CreatedAt, &e.LastUpdate,
			&e.LastAccess, &expiration, &isLatest); err != nil {
			return nil, fmt.Errorf("scan object row: %w", err)
		}
		e.DeleteMarker = marker != 0
		e.IsLatest = isLatest != 0
		if expiration.Valid {
			t := expiration.Time
			e.ExpirationAt = &t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// escapeLike escapes LIKE metacharacters so a prefix matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
