// Copyright 2026 Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package storage

import "sync"

// Copy buffers are a single size class; every streaming path in the
// server copies in CopyBufferSize chunks.
var copyBufferPool = sync.Pool{
	New: func() any {
		buf := make([]byte, CopyBufferSize)
		return &buf
	},
}

// GetCopyBuffer returns a CopyBufferSize scratch buffer.
// Return it with PutCopyBuffer when done; do not use it afterwards.
func GetCopyBuffer() []byte {
	return *copyBufferPool.Get().(*[]byte)
}

// PutCopyBuffer returns a buffer obtained from GetCopyBuffer to the pool.
// Foreign buffers are discarded so the pool stays uniform.
func PutCopyBuffer(buf []byte) {
	if cap(buf) != CopyBufferSize {
		return
	}
	buf = buf[:CopyBufferSize]
	copyBufferPool.Put(&buf)
}
