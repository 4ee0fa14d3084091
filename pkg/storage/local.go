// Copyright 2026 Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/quarrylabs/quarry/pkg/types"
)

func init() {
	Register(types.StorageTypeDisk, NewLocal)
}

// Local stores blobs as flat files under a base directory.
type Local struct {
	basePath string
}

// NewLocal creates a disk-backed driver rooted at basePath.
func NewLocal(basePath string) (Driver, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path required for disk storage")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create base path: %w", err)
	}
	return &Local{basePath: basePath}, nil
}

func (l *Local) blobPath(key string) string {
	return filepath.Join(l.basePath, key)
}

func (l *Local) Write(ctx context.Context, key string, r io.Reader) (string, int64, error) {
	path := l.blobPath(key)

	f, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("create blob: %w", err)
	}
	defer f.Close()

	hash := md5.New()
	buf := GetCopyBuffer()
	defer PutCopyBuffer(buf)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			os.Remove(path)
			return "", 0, err
		}
		n, rerr := r.Read(buf)
		if n > 0 {
			hash.Write(buf[:n])
			if _, werr := f.Write(buf[:n]); werr != nil {
				os.Remove(path)
				return "", 0, fmt.Errorf("write blob: %w", werr)
			}
			written += int64(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			os.Remove(path)
			return "", 0, fmt.Errorf("read body: %w", rerr)
		}
	}

	if err := f.Sync(); err != nil {
		os.Remove(path)
		return "", 0, fmt.Errorf("sync blob: %w", err)
	}
	return hex.EncodeToString(hash.Sum(nil)), written, nil
}

func (l *Local) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(l.blobPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBlobNotFound
		}
		return nil, err
	}
	return data, nil
}

func (l *Local) ReadStream(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	f, err := os.Open(l.blobPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, ErrBlobNotFound
		}
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}

func (l *Local) ReadRange(ctx context.Context, key string, start, count int64) ([]byte, error) {
	rc, err := l.ReadRangeStream(ctx, key, start, count)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	// Bounded buffer loop; the range may be arbitrarily large.
	out := make([]byte, 0, min64(count, CopyBufferSize))
	buf := GetCopyBuffer()
	defer PutCopyBuffer(buf)
	for {
		n, rerr := rc.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return nil, rerr
		}
	}
	return out, nil
}

func (l *Local) ReadRangeStream(ctx context.Context, key string, start, count int64) (io.ReadCloser, error) {
	if start < 0 || count < 0 {
		return nil, ErrInvalidRange
	}

	f, err := os.Open(l.blobPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBlobNotFound
		}
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if start+count > info.Size() {
		f.Close()
		return nil, ErrInvalidRange
	}

	if _, err := f.Seek(start, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("seek: %w", err)
	}
	return &limitedReadCloser{Reader: io.LimitReader(f, count), Closer: f}, nil
}

func (l *Local) Delete(ctx context.Context, key string) error {
	err := os.Remove(l.blobPath(key))
	if os.IsNotExist(err) {
		return nil // already gone
	}
	return err
}

func (l *Local) Exists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(l.blobPath(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (l *Local) Size(ctx context.Context, key string) (int64, error) {
	info, err := os.Stat(l.blobPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrBlobNotFound
		}
		return 0, err
	}
	return info.Size(), nil
}

func (l *Local) Close() error {
	return nil
}

type limitedReadCloser struct {
	io.Reader
	io.Closer
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
