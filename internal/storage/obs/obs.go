// Package obs implements the storage backend for Huawei OBS.
package obs

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"sync"

	"github.com/huaweicloud/huaweicloud-sdk-go-obs/obs"

	ferrors "github.com/ferrylabs/ferry/errors"
	"github.com/ferrylabs/ferry/internal/storage"
)

// API is the subset of the OBS client the backend depends on. The SDK
// client's methods take variadic unexported option types, so *obs.ObsClient
// is wrapped in an adapter rather than satisfying this directly. Tests
// provide mock implementations.
type API interface {
	GetObjectMetadata(input *obs.GetObjectMetadataInput) (*obs.GetObjectMetadataOutput, error)
	ListObjects(input *obs.ListObjectsInput) (*obs.ListObjectsOutput, error)
	GetObject(input *obs.GetObjectInput) (*obs.GetObjectOutput, error)
	PutObject(input *obs.PutObjectInput) (*obs.PutObjectOutput, error)
	InitiateMultipartUpload(input *obs.InitiateMultipartUploadInput) (*obs.InitiateMultipartUploadOutput, error)
	UploadPart(input *obs.UploadPartInput) (*obs.UploadPartOutput, error)
	CompleteMultipartUpload(input *obs.CompleteMultipartUploadInput) (*obs.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(input *obs.AbortMultipartUploadInput) (*obs.BaseModel, error)
	Close()
}

// Settings configures the endpoint and credentials for the backend.
type Settings struct {
	Endpoint  string
	AccessKey string
	SecretKey string
}

// Backend is the Huawei OBS storage backend.
type Backend struct {
	client API
}

// New creates a backend for the configured endpoint.
func New(settings Settings) (*Backend, error) {
	if settings.Endpoint == "" {
		return nil, fmt.Errorf("obs backend: endpoint is required")
	}
	client, err := obs.New(settings.AccessKey, settings.SecretKey, settings.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("obs backend: %w", err)
	}
	return NewWithClient(sdkClient{c: client}), nil
}

// NewWithClient creates a backend over an existing client. Used by tests.
func NewWithClient(client API) *Backend {
	return &Backend{client: client}
}

// sdkClient adapts *obs.ObsClient to API.
type sdkClient struct {
	c *obs.ObsClient
}

func (s sdkClient) GetObjectMetadata(input *obs.GetObjectMetadataInput) (*obs.GetObjectMetadataOutput, error) {
	return s.c.GetObjectMetadata(input)
}

func (s sdkClient) ListObjects(input *obs.ListObjectsInput) (*obs.ListObjectsOutput, error) {
	return s.c.ListObjects(input)
}

func (s sdkClient) GetObject(input *obs.GetObjectInput) (*obs.GetObjectOutput, error) {
	return s.c.GetObject(input)
}

func (s sdkClient) PutObject(input *obs.PutObjectInput) (*obs.PutObjectOutput, error) {
	return s.c.PutObject(input)
}

func (s sdkClient) InitiateMultipartUpload(input *obs.InitiateMultipartUploadInput) (*obs.InitiateMultipartUploadOutput, error) {
	return s.c.InitiateMultipartUpload(input)
}

func (s sdkClient) UploadPart(input *obs.UploadPartInput) (*obs.UploadPartOutput, error) {
	return s.c.UploadPart(input)
}

func (s sdkClient) CompleteMultipartUpload(input *obs.CompleteMultipartUploadInput) (*obs.CompleteMultipartUploadOutput, error) {
	return s.c.CompleteMultipartUpload(input)
}

func (s sdkClient) AbortMultipartUpload(input *obs.AbortMultipartUploadInput) (*obs.BaseModel, error) {
	return s.c.AbortMultipartUpload(input)
}

func (s sdkClient) Close() {
	s.c.Close()
}

// Stat describes the object at u. The OBS SDK does not take a context.
func (b *Backend) Stat(ctx context.Context, u storage.URL) (storage.ObjectInfo, error) {
	params := &obs.GetObjectMetadataInput{}
	params.Bucket = u.Bucket
	params.Key = u.Path
	out, err := b.client.GetObjectMetadata(params)
	if err != nil {
		return storage.ObjectInfo{}, translateError(err)
	}
	return storage.ObjectInfo{
		URL:     u,
		Size:    out.ContentLength,
		ModTime: out.LastModified,
	}, nil
}

// List enumerates every object under the prefix u.
func (b *Backend) List(ctx context.Context, u storage.URL) ([]storage.ObjectInfo, error) {
	prefix := u.Path
	if prefix != "" && prefix[len(prefix)-1] != '/' {
		prefix += "/"
	}
	params := &obs.ListObjectsInput{}
	params.Bucket = u.Bucket
	params.Prefix = prefix
	params.MaxKeys = 1000

	var entries []storage.ObjectInfo
	for {
		out, err := b.client.ListObjects(params)
		if err != nil {
			return nil, translateError(err)
		}
		for _, obj := range out.Contents {
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
		if !out.IsTruncated {
			break
		}
		params.Marker = out.NextMarker
	}
	return entries, nil
}

// OpenRead opens the byte range [off, off+length) of the object at u. A
// non-positive length reads from off to the end of the object.
func (b *Backend) OpenRead(ctx context.Context, u storage.URL, off, length int64) (io.ReadCloser, error) {
	params := &obs.GetObjectInput{}
	params.Bucket = u.Bucket
	params.Key = u.Path
	if off > 0 || length > 0 {
		params.RangeStart = off
		if length > 0 {
			params.RangeEnd = off + length - 1
		} else {
			// The SDK only emits a Range header when RangeEnd is past
			// RangeStart, so an open-ended tail read needs an explicit bound.
			params.RangeEnd = math.MaxInt64
		}
	}
	out, err := b.client.GetObject(params)
	if err != nil {
		return nil, translateError(err)
	}
	return out.Body, nil
}

// Put writes a whole object at u.
func (b *Backend) Put(ctx context.Context, u storage.URL, r io.Reader, size int64) error {
	contentType, body, err := storage.SniffContentType(r)
	if err != nil {
		return translateError(err)
	}
	params := &obs.PutObjectInput{}
	params.Bucket = u.Bucket
	params.Key = u.Path
	params.Body = body
	params.ContentType = contentType
	_, err = b.client.PutObject(params)
	return translateError(err)
}

// CreateMultipart starts a multipart upload at u.
func (b *Backend) CreateMultipart(ctx context.Context, u storage.URL, size, partSize int64, parts int) (storage.MultipartWriter, error) {
	params := &obs.InitiateMultipartUploadInput{}
	params.Bucket = u.Bucket
	params.Key = u.Path
	out, err := b.client.InitiateMultipartUpload(params)
	if err != nil {
		return nil, translateError(err)
	}
	return &multipartUpload{
		client:   b.client,
		url:      u,
		uploadID: out.UploadId,
		parts:    make([]obs.Part, 0, parts),
	}, nil
}

// Close releases the client's idle connections.
func (b *Backend) Close() error {
	b.client.Close()
	return nil
}

type multipartUpload struct {
	client   API
	url      storage.URL
	uploadID string

	mu    sync.Mutex
	parts []obs.Part
}

func (m *multipartUpload) WritePart(ctx context.Context, index int, r io.Reader, length int64) (int64, error) {
	params := &obs.UploadPartInput{}
	params.Bucket = m.url.Bucket
	params.Key = m.url.Path
	params.UploadId = m.uploadID
	params.PartNumber = index + 1
	params.Body = r
	params.PartSize = length
	out, err := m.client.UploadPart(params)
	if err != nil {
		return 0, translateError(err)
	}
	m.mu.Lock()
	m.parts = append(m.parts, obs.Part{PartNumber: index + 1, ETag: out.ETag})
	m.mu.Unlock()
	return length, nil
}

func (m *multipartUpload) Complete(ctx context.Context) error {
	m.mu.Lock()
	parts := make([]obs.Part, len(m.parts))
	copy(parts, m.parts)
	m.mu.Unlock()
	sort.Slice(parts, func(i, j int) bool { return parts[i].PartNumber < parts[j].PartNumber })

	params := &obs.CompleteMultipartUploadInput{}
	params.Bucket = m.url.Bucket
	params.Key = m.url.Path
	params.UploadId = m.uploadID
	params.Parts = parts
	_, err := m.client.CompleteMultipartUpload(params)
	return translateError(err)
}

func (m *multipartUpload) Abort(ctx context.Context) error {
	params := &obs.AbortMultipartUploadInput{}
	params.Bucket = m.url.Bucket
	params.Key = m.url.Path
	params.UploadId = m.uploadID
	_, err := m.client.AbortMultipartUpload(params)
	return translateError(err)
}

// translateError maps OBS errors into the shared taxonomy.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if obsErr, ok := err.(obs.ObsError); ok {
		switch {
		case obsErr.StatusCode == http.StatusNotFound:
			return fmt.Errorf("%w: %v", ferrors.ErrNotFound, err)
		case obsErr.StatusCode == http.StatusForbidden:
			return fmt.Errorf("%w: %v", ferrors.ErrPermissionDenied, err)
		case obsErr.StatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("%w: %v", ferrors.ErrTransient, err)
		}
	}
	return err
}
