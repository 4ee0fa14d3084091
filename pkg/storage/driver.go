// Copyright 2026 Quarry Authors
// SPDX-License-Identifier: Apache-2.0

// Package storage provides content-addressed blob storage. Blobs are keyed
// by an opaque filename generated per object version, never by the S3 key,
// so version writes and deletes never touch another version's bytes.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/quarrylabs/quarry/pkg/types"
)

var (
	// ErrBlobNotFound is returned by reads of absent blobs.
	ErrBlobNotFound = errors.New("blob not found")
	// ErrInvalidRange is returned when a range read exceeds the blob bounds.
	ErrInvalidRange = errors.New("requested range exceeds blob bounds")
)

// CopyBufferSize bounds the chunk size used for streaming copies.
const CopyBufferSize = 64 * 1024

// Driver is the pluggable blob backend. All methods take a context so
// blocking I/O is cancellable; a blob is immutable once written.
type Driver interface {
	// Write streams r into the blob named key and returns the md5 hex
	// digest and byte count of what was written.
	Write(ctx context.Context, key string, r io.Reader) (md5hex string, n int64, err error)

	// Read returns the whole blob.
	Read(ctx context.Context, key string) ([]byte, error)

	// ReadStream opens the blob for streaming and reports its length.
	ReadStream(ctx context.Context, key string) (io.ReadCloser, int64, error)

	// ReadRange returns count bytes starting at start. The range must lie
	// entirely within the blob or ErrInvalidRange is returned.
	ReadRange(ctx context.Context, key string, start, count int64) ([]byte, error)

	// ReadRangeStream is the streaming variant of ReadRange.
	ReadRangeStream(ctx context.Context, key string, start, count int64) (io.ReadCloser, error)

	// Delete removes the blob. Deleting an absent blob is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether the blob is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Size reports the blob length.
	Size(ctx context.Context, key string) (int64, error)

	Close() error
}

// Factory creates a Driver rooted at path.
type Factory func(path string) (Driver, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[types.StorageType]Factory)
)

// Register adds a factory for a storage type.
func Register(t types.StorageType, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[t] = f
}

// New creates a Driver of the given type rooted at path.
func New(t types.StorageType, path string) (Driver, error) {
	registryMu.RLock()
	f, ok := registry[t]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown storage type: %s", t)
	}
	return f(path)
}
