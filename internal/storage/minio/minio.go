// Package minio implements the storage backend for S3-compatible object
// stores reachable through an explicit endpoint, using minio-go.
package minio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	ferrors "github.com/ferrylabs/ferry/errors"
	"github.com/ferrylabs/ferry/internal/storage"
)

// API is the subset of the minio client the backend depends on. Tests
// provide mock implementations.
type API interface {
	StatObject(ctx context.Context, bucket, object string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	GetObject(ctx context.Context, bucket, object string, opts minio.GetObjectOptions) (*minio.Object, error)
	PutObject(ctx context.Context, bucket, object string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// CoreAPI is the subset of the low-level multipart client the backend
// depends on.
type CoreAPI interface {
	NewMultipartUpload(ctx context.Context, bucket, object string, opts minio.PutObjectOptions) (string, error)
	PutObjectPart(ctx context.Context, bucket, object, uploadID string, partID int, data io.Reader, size int64, opts minio.PutObjectPartOptions) (minio.ObjectPart, error)
	CompleteMultipartUpload(ctx context.Context, bucket, object, uploadID string, parts []minio.CompletePart, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	AbortMultipartUpload(ctx context.Context, bucket, object, uploadID string) error
}

// Settings configures the endpoint and credentials for the backend.
type Settings struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Backend is an S3-compatible object store backend.
type Backend struct {
	client API
	core   CoreAPI
}

// New creates a backend for the configured endpoint.
func New(settings Settings) (*Backend, error) {
	if settings.Endpoint == "" {
		return nil, fmt.Errorf("minio backend: endpoint is required")
	}
	client, err := minio.New(settings.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(settings.AccessKey, settings.SecretKey, ""),
		Secure: settings.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio backend: %w", err)
	}
	return NewWithClients(client, &minio.Core{Client: client}), nil
}

// NewWithClients creates a backend over existing clients. Used by tests.
func NewWithClients(client API, core CoreAPI) *Backend {
	return &Backend{client: client, core: core}
}

// Stat describes the object at u.
func (b *Backend) Stat(ctx context.Context, u storage.URL) (storage.ObjectInfo, error) {
	info, err := b.client.StatObject(ctx, u.Bucket, u.Path, minio.StatObjectOptions{})
	if err != nil {
		return storage.ObjectInfo{}, translateError(err)
	}
	return storage.ObjectInfo{
		URL:     u,
		Size:    info.Size,
		ModTime: info.LastModified,
	}, nil
}

// List enumerates every object under the prefix u.
func (b *Backend) List(ctx context.Context, u storage.URL) ([]storage.ObjectInfo, error) {
	prefix := u.Path
	if prefix != "" && prefix[len(prefix)-1] != '/' {
		prefix += "/"
	}
	var entries []storage.ObjectInfo
	for obj := range b.client.ListObjects(ctx, u.Bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, translateError(obj.Err)
		}
		if obj.Key == "" || obj.Key[len(obj.Key)-1] == '/' {
			continue
		}
		child := u
		child.Path = obj.Key
		entries = append(entries, storage.ObjectInfo{
			URL:     child,
			Size:    obj.Size,
			ModTime: obj.LastModified,
		})
	}
	return entries, nil
}

// OpenRead opens the byte range [off, off+length) of the object at u.
func (b *Backend) OpenRead(ctx context.Context, u storage.URL, off, length int64) (io.ReadCloser, error) {
	opts := minio.GetObjectOptions{}
	if off > 0 || length > 0 {
		end := int64(0)
		if length > 0 {
			end = off + length - 1
		}
		if err := opts.SetRange(off, end); err != nil {
			return nil, translateError(err)
		}
	}
	obj, err := b.client.GetObject(ctx, u.Bucket, u.Path, opts)
	if err != nil {
		return nil, translateError(err)
	}
	// GetObject is lazy; force the first request so missing objects fail here.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, translateError(err)
	}
	return obj, nil
}

// Put writes a whole object at u.
func (b *Backend) Put(ctx context.Context, u storage.URL, r io.Reader, size int64) error {
	contentType, body, err := storage.SniffContentType(r)
	if err != nil {
		return translateError(err)
	}
	_, err = b.client.PutObject(ctx, u.Bucket, u.Path, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	return translateError(err)
}

// CreateMultipart starts a multipart upload at u using the low-level Core API.
func (b *Backend) CreateMultipart(ctx context.Context, u storage.URL, size, partSize int64, parts int) (storage.MultipartWriter, error) {
	uploadID, err := b.core.NewMultipartUpload(ctx, u.Bucket, u.Path, minio.PutObjectOptions{})
	if err != nil {
		return nil, translateError(err)
	}
	return &multipartUpload{
		core:     b.core,
		url:      u,
		uploadID: uploadID,
		parts:    make([]minio.CompletePart, 0, parts),
	}, nil
}

// Close implements storage.Backend.
func (b *Backend) Close() error {
	return nil
}

type multipartUpload struct {
	core     CoreAPI
	url      storage.URL
	uploadID string

	mu    sync.Mutex
	parts []minio.CompletePart
}

func (m *multipartUpload) WritePart(ctx context.Context, index int, r io.Reader, length int64) (int64, error) {
	part, err := m.core.PutObjectPart(ctx, m.url.Bucket, m.url.Path, m.uploadID, index+1, r, length, minio.PutObjectPartOptions{})
	if err != nil {
		return 0, translateError(err)
	}
	m.mu.Lock()
	m.parts = append(m.parts, minio.CompletePart{PartNumber: part.PartNumber, ETag: part.ETag})
	m.mu.Unlock()
	return part.Size, nil
}

func (m *multipartUpload) Complete(ctx context.Context) error {
	m.mu.Lock()
	parts := make([]minio.CompletePart, len(m.parts))
	copy(parts, m.parts)
	m.mu.Unlock()
	sort.Slice(parts, func(i, j int) bool { return parts[i].PartNumber < parts[j].PartNumber })

	_, err := m.core.CompleteMultipartUpload(ctx, m.url.Bucket, m.url.Path, m.uploadID, parts, minio.PutObjectOptions{})
	return translateError(err)
}

func (m *multipartUpload) Abort(ctx context.Context) error {
	return translateError(m.core.AbortMultipartUpload(ctx, m.url.Bucket, m.url.Path, m.uploadID))
}

// translateError maps minio errors into the shared taxonomy.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" || resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %v", ferrors.ErrNotFound, err)
	case resp.Code == "AccessDenied" || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %v", ferrors.ErrPermissionDenied, err)
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %v", ferrors.ErrTransient, err)
	default:
		return err
	}
}
