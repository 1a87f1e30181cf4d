// Package router maps URL schemes to storage backends and exposes a single
// uniform read/write/stat/list surface over all of them.
package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	ferrors "github.com/ferrylabs/ferry/errors"
	"github.com/ferrylabs/ferry/internal/storage"
)

// Factory constructs the backend for one scheme. Factories run at most once
// per scheme per Router; the instance is cached for the lifetime of the batch.
type Factory func(ctx context.Context) (storage.Backend, error)

// Router resolves URLs to backends. Resolution is a pure function of the
// URL scheme; backend instances are constructed lazily and shared by every
// task in the batch.
type Router struct {
	mu        sync.Mutex
	factories map[string]Factory
	backends  map[string]storage.Backend
}

// New creates an empty router. Schemes are added with Register.
func New() *Router {
	return &Router{
		factories: make(map[string]Factory),
		backends:  make(map[string]storage.Backend),
	}
}

// Register installs the factory for a scheme, replacing any previous one.
func (r *Router) Register(scheme string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[scheme] = f
}

// Resolve returns the backend for the URL's scheme, constructing it on first
// use.
func (r *Router) Resolve(ctx context.Context, u storage.URL) (storage.Backend, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.backends[u.Scheme]; ok {
		return b, nil
	}
	f, ok := r.factories[u.Scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ferrors.ErrUnsupportedScheme, u.Scheme)
	}
	b, err := f(ctx)
	if err != nil {
		return nil, fmt.Errorf("construct %s backend: %w", u.Scheme, err)
	}
	r.backends[u.Scheme] = b
	return b, nil
}

// Stat delegates to the URL's backend.
func (r *Router) Stat(ctx context.Context, u storage.URL) (storage.ObjectInfo, error) {
	b, err := r.Resolve(ctx, u)
	if err != nil {
		return storage.ObjectInfo{}, ferrors.New("stat", err).WithURL(u.String())
	}
	info, err := b.Stat(ctx, u)
	if err != nil {
		return storage.ObjectInfo{}, ferrors.New("stat", err).WithURL(u.String())
	}
	return info, nil
}

// List delegates to the URL's backend.
func (r *Router) List(ctx context.Context, u storage.URL) ([]storage.ObjectInfo, error) {
	b, err := r.Resolve(ctx, u)
	if err != nil {
		return nil, ferrors.New("list", err).WithURL(u.String())
	}
	entries, err := b.List(ctx, u)
	if err != nil {
		return nil, ferrors.New("list", err).WithURL(u.String())
	}
	return entries, nil
}

// OpenRead delegates to the URL's backend.
func (r *Router) OpenRead(ctx context.Context, u storage.URL, off, length int64) (io.ReadCloser, error) {
	b, err := r.Resolve(ctx, u)
	if err != nil {
		return nil, ferrors.New("openRead", err).WithURL(u.String())
	}
	rc, err := b.OpenRead(ctx, u, off, length)
	if err != nil {
		return nil, ferrors.New("openRead", err).WithURL(u.String())
	}
	return rc, nil
}

// Put delegates to the URL's backend.
func (r *Router) Put(ctx context.Context, u storage.URL, body io.Reader, size int64) error {
	b, err := r.Resolve(ctx, u)
	if err != nil {
		return ferrors.New("put", err).WithURL(u.String())
	}
	if err := b.Put(ctx, u, body, size); err != nil {
		return ferrors.New("put", err).WithURL(u.String())
	}
	return nil
}

// CreateMultipart delegates to the URL's backend.
func (r *Router) CreateMultipart(ctx context.Context, u storage.URL, size, partSize int64, parts int) (storage.MultipartWriter, error) {
	b, err := r.Resolve(ctx, u)
	if err != nil {
		return nil, ferrors.New("createMultipart", err).WithURL(u.String())
	}
	mw, err := b.CreateMultipart(ctx, u, size, partSize, parts)
	if err != nil {
		return nil, ferrors.New("createMultipart", err).WithURL(u.String())
	}
	return mw, nil
}

// Close releases every backend constructed during the batch. The router must
// not be used afterwards.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for scheme, b := range r.backends {
		if err := b.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s backend: %w", scheme, err))
		}
		delete(r.backends, scheme)
	}
	return errors.Join(errs...)
}
