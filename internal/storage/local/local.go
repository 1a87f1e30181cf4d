// Package local implements the storage backend for the local filesystem.
//
// The backend is built on go-billy so that production code runs against the
// OS filesystem while tests run against an in-memory one.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	ferrors "github.com/ferrylabs/ferry/errors"
	"github.com/ferrylabs/ferry/internal/pool"
	"github.com/ferrylabs/ferry/internal/storage"
)

// Backend is the local filesystem storage backend.
type Backend struct {
	fs billy.Filesystem

	// resolveAbs makes relative transfer paths absolute against the process
	// working directory. Set only for the OS filesystem.
	resolveAbs bool
}

// NewOS creates a backend over the OS filesystem rooted at /.
func NewOS() *Backend {
	return &Backend{fs: osfs.New("/"), resolveAbs: true}
}

// NewWithFilesystem creates a backend over the given filesystem. Paths are
// used as-is, which suits in-memory filesystems in tests.
func NewWithFilesystem(bfs billy.Filesystem) *Backend {
	return &Backend{fs: bfs}
}

func (b *Backend) path(u storage.URL) string {
	p := u.Path
	if b.resolveAbs && !filepath.IsAbs(p) {
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
	}
	return p
}

// Stat describes the file or directory at u.
func (b *Backend) Stat(ctx context.Context, u storage.URL) (storage.ObjectInfo, error) {
	fi, err := b.fs.Stat(b.path(u))
	if err != nil {
		return storage.ObjectInfo{}, translateError(err)
	}
	return storage.ObjectInfo{
		URL:      u,
		Size:     fi.Size(),
		IsPrefix: fi.IsDir(),
		ModTime:  fi.ModTime(),
	}, nil
}

// List walks the directory at u and returns every contained file.
func (b *Backend) List(ctx context.Context, u storage.URL) ([]storage.ObjectInfo, error) {
	root := b.path(u)
	var entries []storage.ObjectInfo
	err := util.Walk(b.fs, root, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return nil
		}
		child := u
		child.Path = path.Join(u.Path, relativePath(root, p))
		entries = append(entries, storage.ObjectInfo{
			URL:     child,
			Size:    fi.Size(),
			ModTime: fi.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, translateError(err)
	}
	return entries, nil
}

// relativePath strips the walk root from a walked path. Billy filesystems
// always use forward slashes.
func relativePath(root, p string) string {
	if p == root {
		return "."
	}
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return p
	}
	return filepath.ToSlash(rel)
}

// OpenRead opens the byte range [off, off+length) of the file at u.
func (b *Backend) OpenRead(ctx context.Context, u storage.URL, off, length int64) (io.ReadCloser, error) {
	f, err := b.fs.Open(b.path(u))
	if err != nil {
		return nil, translateError(err)
	}
	if off > 0 {
		if _, err := f.Seek(off, io.SeekStart); err != nil {
			_ = f.Close()
			return nil, translateError(err)
		}
	}
	var r io.Reader = f
	if length >= 0 {
		r = io.LimitReader(f, length)
	}
	return &rangeReader{Reader: r, closer: f}, nil
}

type rangeReader struct {
	io.Reader
	closer io.Closer
}

func (r *rangeReader) Close() error {
	return r.closer.Close()
}

// Put writes a whole file at u, creating parent directories as needed.
func (b *Backend) Put(ctx context.Context, u storage.URL, r io.Reader, size int64) error {
	p := b.path(u)
	if err := b.fs.MkdirAll(path.Dir(p), 0o755); err != nil {
		return translateError(err)
	}
	f, err := b.fs.Create(p)
	if err != nil {
		return translateError(err)
	}
	buf := pool.Get()
	_, err = io.CopyBuffer(f, r, buf)
	pool.Put(buf)
	if err != nil {
		_ = f.Close()
		return translateError(err)
	}
	return translateError(f.Close())
}

// CreateMultipart pre-creates the file at u; parts are then written at their
// offsets by independent file handles.
func (b *Backend) CreateMultipart(ctx context.Context, u storage.URL, size, partSize int64, parts int) (storage.MultipartWriter, error) {
	p := b.path(u)
	if err := b.fs.MkdirAll(path.Dir(p), 0o755); err != nil {
		return nil, translateError(err)
	}
	f, err := b.fs.Create(p)
	if err != nil {
		return nil, translateError(err)
	}
	if err := f.Close(); err != nil {
		return nil, translateError(err)
	}
	return &multipartFile{fs: b.fs, path: p, size: size, partSize: partSize}, nil
}

// Close implements storage.Backend. The OS filesystem holds no resources.
func (b *Backend) Close() error {
	return nil
}

type multipartFile struct {
	fs       billy.Filesystem
	path     string
	size     int64
	partSize int64
}

func (m *multipartFile) WritePart(ctx context.Context, index int, r io.Reader, length int64) (int64, error) {
	f, err := m.fs.OpenFile(m.path, os.O_WRONLY, 0o644)
	if err != nil {
		return 0, translateError(err)
	}
	defer f.Close()

	if _, err := f.Seek(int64(index)*m.partSize, io.SeekStart); err != nil {
		return 0, translateError(err)
	}
	buf := pool.Get()
	n, err := io.CopyBuffer(f, r, buf)
	pool.Put(buf)
	if err != nil {
		return n, translateError(err)
	}
	return n, nil
}

// Complete verifies that the parts added up to the planned object size.
func (m *multipartFile) Complete(ctx context.Context) error {
	fi, err := m.fs.Stat(m.path)
	if err != nil {
		return translateError(err)
	}
	if fi.Size() != m.size {
		return fmt.Errorf("%w: wrote %d bytes, planned %d", ferrors.ErrPartSizeMismatch, fi.Size(), m.size)
	}
	return nil
}

// Abort removes the partially written file.
func (m *multipartFile) Abort(ctx context.Context) error {
	return translateError(m.fs.Remove(m.path))
}

// translateError maps filesystem errors into the shared taxonomy.
func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %v", ferrors.ErrNotFound, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %v", ferrors.ErrPermissionDenied, err)
	default:
		return err
	}
}
