package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/ferrylabs/ferry/errors"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected URL
	}{
		{"plain path", "/data/a.txt", URL{Scheme: "file", Path: "/data/a.txt"}},
		{"relative path", "data/a.txt", URL{Scheme: "file", Path: "data/a.txt"}},
		{"file scheme", "file:///data/a.txt", URL{Scheme: "file", Path: "/data/a.txt"}},
		{"s3 object", "s3://bucket/dir/a.txt", URL{Scheme: "s3", Bucket: "bucket", Path: "dir/a.txt"}},
		{"s3 bucket root", "s3://bucket", URL{Scheme: "s3", Bucket: "bucket"}},
		{"minio object", "minio://bucket/key", URL{Scheme: "minio", Bucket: "bucket", Path: "key"}},
		{"obs object", "obs://bucket/key", URL{Scheme: "obs", Bucket: "bucket", Path: "key"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := ParseURL(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, u)
		})
	}
}

func TestParseURL_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"no bucket", "s3:///key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseURL(tt.raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, ferrors.ErrInvalidTransfer)
		})
	}
}

func TestURL_String(t *testing.T) {
	assert.Equal(t, "/data/a.txt", URL{Scheme: "file", Path: "/data/a.txt"}.String())
	assert.Equal(t, "s3://bucket/dir/a.txt", URL{Scheme: "s3", Bucket: "bucket", Path: "dir/a.txt"}.String())
}

func TestURL_Join(t *testing.T) {
	u := URL{Scheme: "s3", Bucket: "bucket", Path: "dir"}
	assert.Equal(t, "dir/sub/a.txt", u.Join("sub/a.txt").Path)
	assert.Equal(t, "bucket", u.Join("a.txt").Bucket)
}

func TestURL_Base(t *testing.T) {
	assert.Equal(t, "a.txt", URL{Scheme: "file", Path: "/data/a.txt"}.Base())
	assert.Equal(t, "dir", URL{Scheme: "s3", Bucket: "b", Path: "x/dir/"}.Base())
}

func TestURL_RelativeTo(t *testing.T) {
	prefix := URL{Scheme: "s3", Bucket: "bucket", Path: "dir"}

	rel, ok := URL{Scheme: "s3", Bucket: "bucket", Path: "dir/sub/a.txt"}.RelativeTo(prefix)
	require.True(t, ok)
	assert.Equal(t, "sub/a.txt", rel)

	rel, ok = URL{Scheme: "s3", Bucket: "bucket", Path: "dir"}.RelativeTo(prefix)
	require.True(t, ok)
	assert.Equal(t, ".", rel)

	_, ok = URL{Scheme: "s3", Bucket: "bucket", Path: "dirother/a.txt"}.RelativeTo(prefix)
	assert.False(t, ok)

	_, ok = URL{Scheme: "s3", Bucket: "other", Path: "dir/a.txt"}.RelativeTo(prefix)
	assert.False(t, ok)
}
