package storage

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"sync"

	"github.com/quarrylabs/quarry/pkg/types"
)

func init() {
	Register(types.StorageTypeMemory, func(string) (Driver, error) {
		return NewMemory(), nil
	})
}

// Memory keeps blobs in a map. Used by tests and throwaway setups.
type Memory struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemory creates an empty in-memory driver.
func NewMemory() *Memory {
	return &Memory{blobs: make(map[string][]byte)}
}

func (m *Memory) Write(ctx context.Context, key string, r io.Reader) (string, int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", 0, err
	}

	m.mu.Lock()
	m.blobs[key] = data
	m.mu.Unlock()

	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:]), int64(len(data)), nil
}

func (m *Memory) Read(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.blobs[key]
	if !ok {
		return nil, ErrBlobNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *Memory) ReadStream(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	data, err := m.Read(ctx, key)
	if err != nil {
		return nil, 0, err
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

func (m *Memory) ReadRange(ctx context.Context, key string, start, count int64) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.blobs[key]
	if !ok {
		return nil, ErrBlobNotFound
	}
	if start < 0 || count < 0 || start+count > int64(len(data)) {
		return nil, ErrInvalidRange
	}
	out := make([]byte, count)
	copy(out, data[start:start+count])
	return out, nil
}

func (m *Memory) ReadRangeStream(ctx context.Context, key string, start, count int64) (io.ReadCloser, error) {
	data, err := m.ReadRange(ctx, key, start, count)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.blobs, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blobs[key]
	return ok, nil
}

func (m *Memory) Size(ctx context.Context, key string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.blobs[key]
	if !ok {
		return 0, ErrBlobNotFound
	}
	return int64(len(data)), nil
}

func (m *Memory) Close() error {
	return nil
}
