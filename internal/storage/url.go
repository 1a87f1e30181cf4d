package storage

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	ferrors "github.com/ferrylabs/ferry/errors"
)

// SchemeLocal is the scheme assumed for URLs without an explicit scheme.
const SchemeLocal = "file"

// URL identifies one object or prefix on one backend. For object stores
// Bucket is the container and Path the object key without a leading slash;
// for the local filesystem Bucket is empty and Path is the file path.
type URL struct {
	Scheme string
	Bucket string
	Path   string
}

// ParseURL parses a path or URL string. A string without a scheme is treated
// as a local filesystem path.
func ParseURL(raw string) (URL, error) {
	if raw == "" {
		return URL{}, fmt.Errorf("%w: empty URL", ferrors.ErrInvalidTransfer)
	}
	if !strings.Contains(raw, "://") {
		return URL{Scheme: SchemeLocal, Path: raw}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return URL{}, fmt.Errorf("%w: %v", ferrors.ErrInvalidTransfer, err)
	}
	if u.Scheme == SchemeLocal {
		return URL{Scheme: SchemeLocal, Path: u.Path}, nil
	}
	if u.Host == "" {
		return URL{}, fmt.Errorf("%w: %s URL %q has no bucket", ferrors.ErrInvalidTransfer, u.Scheme, raw)
	}
	return URL{
		Scheme: u.Scheme,
		Bucket: u.Host,
		Path:   strings.TrimPrefix(u.Path, "/"),
	}, nil
}

// String renders the URL in its canonical form. Local URLs render as plain
// paths, matching how they are written in transfer lists.
func (u URL) String() string {
	if u.Scheme == SchemeLocal || u.Scheme == "" {
		return u.Path
	}
	return fmt.Sprintf("%s://%s/%s", u.Scheme, u.Bucket, u.Path)
}

// Join returns a URL for elem placed under u.
func (u URL) Join(elem string) URL {
	joined := u
	joined.Path = path.Join(u.Path, elem)
	return joined
}

// Base returns the last element of the URL path.
func (u URL) Base() string {
	return path.Base(strings.TrimSuffix(u.Path, "/"))
}

// RelativeTo returns u's path relative to the prefix URL. The second return
// is false when u is not under prefix.
func (u URL) RelativeTo(prefix URL) (string, bool) {
	if u.Scheme != prefix.Scheme || u.Bucket != prefix.Bucket {
		return "", false
	}
	root := strings.TrimSuffix(prefix.Path, "/")
	if u.Path == root {
		return ".", true
	}
	if !strings.HasPrefix(u.Path, root+"/") {
		return "", false
	}
	return strings.TrimPrefix(u.Path, root+"/"), true
}
