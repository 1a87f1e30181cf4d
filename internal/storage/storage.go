// Package storage defines the uniform capability interface the copy engine
// uses to talk to heterogeneous storage systems. Each backend (local disk or
// a remote object store) implements Backend; the router selects one per URL
// scheme.
package storage

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// ObjectInfo describes one stored object or prefix.
type ObjectInfo struct {
	// URL locates the object on its backend
	URL URL

	// Size is the object size in bytes; zero for prefixes
	Size int64

	// IsPrefix marks a directory or key prefix rather than an object
	IsPrefix bool

	// ModTime is the last modification time, when the backend reports one
	ModTime time.Time
}

// Backend is the fixed capability interface every storage system exposes.
// Implementations must be safe for concurrent use: the scheduler calls into
// a single backend instance from many tasks at once.
type Backend interface {
	// Stat describes the object or prefix at u.
	Stat(ctx context.Context, u URL) (ObjectInfo, error)

	// List enumerates every object under the prefix u, recursively.
	// The returned entries are objects only, never nested prefixes.
	List(ctx context.Context, u URL) ([]ObjectInfo, error)

	// OpenRead opens a byte stream over [off, off+length) of the object at
	// u. A negative length reads to the end of the object.
	OpenRead(ctx context.Context, u URL, off, length int64) (io.ReadCloser, error)

	// Put writes a whole object of the given size from r to u, creating
	// missing parents where the backend has that notion.
	Put(ctx context.Context, u URL, r io.Reader, size int64) error

	// CreateMultipart starts a multi-part write of size bytes in parts
	// pieces of partSize each (the last carries the remainder). The object
	// becomes visible at u only after Complete.
	CreateMultipart(ctx context.Context, u URL, size, partSize int64, parts int) (MultipartWriter, error)

	// Close releases all resources held by the backend.
	Close() error
}

// MultipartWriter is a multi-part write in progress. WritePart may be called
// concurrently for distinct part indexes; Complete and Abort must be called
// at most once, after all WritePart calls have returned.
type MultipartWriter interface {
	// WritePart writes part index (zero-based) from r and returns the
	// number of bytes consumed.
	WritePart(ctx context.Context, index int, r io.Reader, length int64) (int64, error)

	// Complete commits the object from its parts.
	Complete(ctx context.Context) error

	// Abort discards all parts written so far.
	Abort(ctx context.Context) error
}

// sniffLen is how many leading bytes content-type detection may consume.
const sniffLen = 3072

// SniffContentType detects the MIME type of the stream and returns it along
// with a reader that replays the consumed prefix.
func SniffContentType(r io.Reader) (string, io.Reader, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", nil, err
	}
	head = head[:n]
	return mimetype.Detect(head).String(), io.MultiReader(bytes.NewReader(head), r), nil
}
