// Package s3 implements the storage backend for Amazon S3 using the AWS SDK
// for Go v2.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	ferrors "github.com/ferrylabs/ferry/errors"
	"github.com/ferrylabs/ferry/internal/storage"
)

// API is the subset of the S3 client the backend depends on. Tests provide
// mock implementations.
type API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
}

// Settings configures the S3 backend. Zero values defer to the default AWS
// credential and region resolution chain.
type Settings struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string

	// BillingProject, when set, marks every request as requester-pays.
	BillingProject string
}

// Backend is the Amazon S3 storage backend.
type Backend struct {
	client   API
	settings Settings
}

// New creates a backend using the default AWS configuration chain, applying
// any overrides from settings.
func New(ctx context.Context, settings Settings) (*Backend, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if settings.Region != "" {
		opts = append(opts, awsconfig.WithRegion(settings.Region))
	}
	if settings.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(settings.AccessKey, settings.SecretKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if settings.Endpoint != "" {
			o.BaseEndpoint = aws.String(settings.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewWithClient(client, settings), nil
}

// NewWithClient creates a backend over an existing client. Used by tests.
func NewWithClient(client API, settings Settings) *Backend {
	return &Backend{client: client, settings: settings}
}

func (b *Backend) requestPayer() types.RequestPayer {
	if b.settings.BillingProject != "" {
		return types.RequestPayerRequester
	}
	return ""
}

// Stat describes the object at u. Prefixes have no object representation in
// S3, so a directory-like URL reports not found here and is discovered
// through List instead.
func (b *Backend) Stat(ctx context.Context, u storage.URL) (storage.ObjectInfo, error) {
	out, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket:       aws.String(u.Bucket),
		Key:          aws.String(u.Path),
		RequestPayer: b.requestPayer(),
	})
	if err != nil {
		return storage.ObjectInfo{}, translateError(err)
	}
	info := storage.ObjectInfo{URL: u, Size: aws.ToInt64(out.ContentLength)}
	if out.LastModified != nil {
		info.ModTime = *out.LastModified
	}
	return info, nil
}

// List enumerates every object under the prefix u.
func (b *Backend) List(ctx context.Context, u storage.URL) ([]storage.ObjectInfo, error) {
	prefix := u.Path
	if prefix != "" && prefix[len(prefix)-1] != '/' {
		prefix += "/"
	}
	var entries []storage.ObjectInfo
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket:       aws.String(u.Bucket),
		Prefix:       aws.String(prefix),
		RequestPayer: b.requestPayer(),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, translateError(err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == "" || key[len(key)-1] == '/' {
				continue
			}
			child := u
			child.Path = key
			entry := storage.ObjectInfo{URL: child, Size: aws.ToInt64(obj.Size)}
			if obj.LastModified != nil {
				entry.ModTime = *obj.LastModified
			}
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// OpenRead opens the byte range [off, off+length) of the object at u.
func (b *Backend) OpenRead(ctx context.Context, u storage.URL, off, length int64) (io.ReadCloser, error) {
	input := &s3.GetObjectInput{
		Bucket:       aws.String(u.Bucket),
		Key:          aws.String(u.Path),
		RequestPayer: b.requestPayer(),
	}
	if r := rangeSpec(off, length); r != "" {
		input.Range = aws.String(r)
	}
	out, err := b.client.GetObject(ctx, input)
	if err != nil {
		return nil, translateError(err)
	}
	return out.Body, nil
}

// rangeSpec renders an HTTP Range header value, or "" for a whole-object read.
func rangeSpec(off, length int64) string {
	if off == 0 && length <= 0 {
		return ""
	}
	if length <= 0 {
		return fmt.Sprintf("bytes=%d-", off)
	}
	return fmt.Sprintf("bytes=%d-%d", off, off+length-1)
}

// Put writes a whole object at u.
func (b *Backend) Put(ctx context.Context, u storage.URL, r io.Reader, size int64) error {
	contentType, body, err := storage.SniffContentType(r)
	if err != nil {
		return translateError(err)
	}
	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.Bucket),
		Key:           aws.String(u.Path),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
		RequestPayer:  b.requestPayer(),
	})
	return translateError(err)
}

// CreateMultipart starts a multipart upload at u.
func (b *Backend) CreateMultipart(ctx context.Context, u storage.URL, size, partSize int64, parts int) (storage.MultipartWriter, error) {
	out, err := b.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:       aws.String(u.Bucket),
		Key:          aws.String(u.Path),
		RequestPayer: b.requestPayer(),
	})
	if err != nil {
		return nil, translateError(err)
	}
	return &multipartUpload{
		backend:  b,
		url:      u,
		uploadID: aws.ToString(out.UploadId),
		parts:    make([]types.CompletedPart, 0, parts),
	}, nil
}

// Close implements storage.Backend. The SDK client holds no resources that
// need explicit release.
func (b *Backend) Close() error {
	return nil
}

type multipartUpload struct {
	backend  *Backend
	url      storage.URL
	uploadID string

	mu    sync.Mutex
	parts []types.CompletedPart
}

func (m *multipartUpload) WritePart(ctx context.Context, index int, r io.Reader, length int64) (int64, error) {
	out, err := m.backend.client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:        aws.String(m.url.Bucket),
		Key:           aws.String(m.url.Path),
		UploadId:      aws.String(m.uploadID),
		PartNumber:    aws.Int32(int32(index + 1)),
		Body:          r,
		ContentLength: aws.Int64(length),
		RequestPayer:  m.backend.requestPayer(),
	})
	if err != nil {
		return 0, translateError(err)
	}
	m.mu.Lock()
	m.parts = append(m.parts, types.CompletedPart{
		ETag:       out.ETag,
		PartNumber: aws.Int32(int32(index + 1)),
	})
	m.mu.Unlock()
	return length, nil
}

func (m *multipartUpload) Complete(ctx context.Context) error {
	m.mu.Lock()
	parts := make([]types.CompletedPart, len(m.parts))
	copy(parts, m.parts)
	m.mu.Unlock()
	sort.Slice(parts, func(i, j int) bool {
		return aws.ToInt32(parts[i].PartNumber) < aws.ToInt32(parts[j].PartNumber)
	})

	_, err := m.backend.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(m.url.Bucket),
		Key:             aws.String(m.url.Path),
		UploadId:        aws.String(m.uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: parts},
		RequestPayer:    m.backend.requestPayer(),
	})
	return translateError(err)
}

func (m *multipartUpload) Abort(ctx context.Context) error {
	_, err := m.backend.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:       aws.String(m.url.Bucket),
		Key:          aws.String(m.url.Path),
		UploadId:     aws.String(m.uploadID),
		RequestPayer: m.backend.requestPayer(),
	})
	return translateError(err)
}

// translateError maps AWS SDK errors into the shared taxonomy.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return fmt.Errorf("%w: %v", ferrors.ErrNotFound, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return fmt.Errorf("%w: %v", ferrors.ErrNotFound, err)
		case "AccessDenied":
			return fmt.Errorf("%w: %v", ferrors.ErrPermissionDenied, err)
		case "SlowDown", "RequestTimeout", "InternalError", "ServiceUnavailable":
			return fmt.Errorf("%w: %v", ferrors.ErrTransient, err)
		}
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		switch {
		case respErr.HTTPStatusCode() == http.StatusNotFound:
			return fmt.Errorf("%w: %v", ferrors.ErrNotFound, err)
		case respErr.HTTPStatusCode() == http.StatusForbidden:
			return fmt.Errorf("%w: %v", ferrors.ErrPermissionDenied, err)
		case respErr.HTTPStatusCode() >= http.StatusInternalServerError:
			return fmt.Errorf("%w: %v", ferrors.ErrTransient, err)
		}
	}

	return err
}
