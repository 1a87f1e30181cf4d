// Package pool provides reusable copy buffers so that concurrent transfers
// do not allocate a fresh chunk buffer per task.
package pool

import "sync"

// BufferSize is the chunk size used when streaming object bytes.
const BufferSize = 256 * 1024

var buffers = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, BufferSize)
		return &buf
	},
}

// Get returns a copy buffer from the pool.
// The caller is responsible for calling Put to return it.
func Get() []byte {
	return *buffers.Get().(*[]byte)
}

// Put returns a buffer to the pool.
// The buffer must not be used after calling Put.
func Put(buf []byte) {
	if cap(buf) != BufferSize {
		return
	}
	buf = buf[:BufferSize]
	buffers.Put(&buf)
}
