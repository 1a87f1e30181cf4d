package ferry

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/ferrylabs/ferry/errors"
	"github.com/ferrylabs/ferry/internal/storage"
	"github.com/ferrylabs/ferry/progress"
	"github.com/ferrylabs/ferry/transfer"
)

// memStore is a minimal in-memory backend for end-to-end tests.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memStore) key(u storage.URL) string {
	return u.Bucket + "/" + u.Path
}

func (m *memStore) Stat(ctx context.Context, u storage.URL) (storage.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if data, ok := m.objects[m.key(u)]; ok {
		return storage.ObjectInfo{URL: u, Size: int64(len(data))}, nil
	}
	prefix := m.key(u) + "/"
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			return storage.ObjectInfo{URL: u, IsPrefix: true}, nil
		}
	}
	return storage.ObjectInfo{}, fmt.Errorf("%w: %s", ferrors.ErrNotFound, m.key(u))
}

func (m *memStore) List(ctx context.Context, u storage.URL) ([]storage.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := m.key(u) + "/"
	var entries []storage.ObjectInfo
	for k, data := range m.objects {
		if strings.HasPrefix(k, prefix) {
			child := u
			child.Path = strings.TrimPrefix(k, u.Bucket+"/")
			entries = append(entries, storage.ObjectInfo{URL: child, Size: int64(len(data))})
		}
	}
	return entries, nil
}

func (m *memStore) OpenRead(ctx context.Context, u storage.URL, off, length int64) (io.ReadCloser, error) {
	m.mu.Lock()
	data, ok := m.objects[m.key(u)]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ferrors.ErrNotFound, m.key(u))
	}
	end := int64(len(data))
	if length >= 0 && off+length < end {
		end = off + length
	}
	return io.NopCloser(bytes.NewReader(data[off:end])), nil
}

func (m *memStore) Put(ctx context.Context, u storage.URL, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.objects[m.key(u)] = data
	m.mu.Unlock()
	return nil
}

func (m *memStore) CreateMultipart(ctx context.Context, u storage.URL, size, partSize int64, parts int) (storage.MultipartWriter, error) {
	return &memStoreUpload{store: m, url: u, parts: make(map[int][]byte)}, nil
}

func (m *memStore) Close() error {
	return nil
}

type memStoreUpload struct {
	store *memStore
	url   storage.URL
	mu    sync.Mutex
	parts map[int][]byte
}

func (w *memStoreUpload) WritePart(ctx context.Context, index int, r io.Reader, length int64) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	w.mu.Lock()
	w.parts[index] = data
	w.mu.Unlock()
	return int64(len(data)), nil
}

func (w *memStoreUpload) Complete(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var buf bytes.Buffer
	for i := 0; i < len(w.parts); i++ {
		buf.Write(w.parts[i])
	}
	return w.store.Put(ctx, w.url, &buf, int64(buf.Len()))
}

func (w *memStoreUpload) Abort(ctx context.Context) error {
	return nil
}

func newMemCopier(t *testing.T, objects map[string][]byte, opts ...Option) (*Copier, *memStore) {
	t.Helper()
	store := &memStore{objects: objects}
	opts = append(opts, withBackend("mem", func(ctx context.Context) (storage.Backend, error) {
		return store, nil
	}))
	c, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, store
}

func TestCopier_Copy(t *testing.T) {
	c, store := newMemCopier(t, map[string][]byte{
		"src/hello.txt": []byte("hello too!"),
	})

	report := c.Copy(context.Background(), []transfer.Transfer{
		{Src: "mem://src/hello.txt", Dst: "mem://dst/hello.txt", DestIs: transfer.DestTarget},
	})

	require.Equal(t, transfer.StatusSuccess, report.Status())
	assert.Equal(t, int64(1), report.Files())
	assert.Equal(t, int64(10), report.Bytes())
	assert.Equal(t, []byte("hello too!"), store.objects["dst/hello.txt"])
}

func TestCopier_CopyPartialFailure(t *testing.T) {
	c, store := newMemCopier(t, map[string][]byte{
		"src/a.txt": []byte("a"),
	})

	report := c.Copy(context.Background(), []transfer.Transfer{
		{Src: "mem://src/missing.txt", Dst: "mem://dst/missing.txt", DestIs: transfer.DestTarget},
		{Src: "mem://src/a.txt", Dst: "mem://dst/a.txt", DestIs: transfer.DestTarget},
	})

	require.Equal(t, transfer.StatusPartialFailure, report.Status())
	assert.Equal(t, 1, report.Failures())
	assert.Contains(t, store.objects, "dst/a.txt")
	assert.Contains(t, report.Summarize(), "1 succeeded, 1 failed")
}

func TestCopier_CopyWithProgress(t *testing.T) {
	var totals progress.Totals
	c, _ := newMemCopier(t, map[string][]byte{
		"src/a.txt": []byte("aaaa"),
	}, WithProgress(&totals))

	report := c.Copy(context.Background(), []transfer.Transfer{
		{Src: "mem://src/a.txt", Dst: "mem://dst/a.txt", DestIs: transfer.DestTarget},
	})

	require.Equal(t, transfer.StatusSuccess, report.Status())
	snap := totals.Snapshot()
	assert.Equal(t, int64(1), snap.Files)
	assert.Equal(t, int64(4), snap.Bytes)
}

func TestCopier_UnsupportedScheme(t *testing.T) {
	c, _ := newMemCopier(t, map[string][]byte{})

	report := c.Copy(context.Background(), []transfer.Transfer{
		{Src: "gopher://host/a.txt", Dst: "mem://dst/a.txt", DestIs: transfer.DestTarget},
	})

	require.Equal(t, transfer.StatusPartialFailure, report.Status())
	assert.ErrorIs(t, report.Outcomes()[0].Err, ferrors.ErrUnsupportedScheme)
}

func TestCopier_LocalFiles(t *testing.T) {
	srcDir := t.TempDir()
	dstDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "a.txt"), []byte("local bytes"), 0o644))

	c, err := New()
	require.NoError(t, err)
	defer c.Close()

	report := c.Copy(context.Background(), []transfer.Transfer{
		{Src: filepath.Join(srcDir, "a.txt"), Dst: dstDir, DestIs: transfer.DestDir},
	})

	require.Equal(t, transfer.StatusSuccess, report.Status())
	data, err := os.ReadFile(filepath.Join(dstDir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "local bytes", string(data))
}

func TestNew_Options(t *testing.T) {
	c, err := New(
		WithMaxSimultaneousTransfers(8),
		WithPartSize(1<<20),
		WithBillingProject("proj"),
		WithProgress(nil),
	)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.NoError(t, c.Close())
}
