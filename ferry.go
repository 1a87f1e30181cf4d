// Package ferry copies batches of files between heterogeneous storage
// systems: local disk and remote object stores addressed by URI scheme.
//
// A batch is an ordered list of transfers, each copying one source onto an
// exact destination path or into a destination directory. The engine bounds
// how many transfers move bytes concurrently, splits large objects into
// parallel parts, streams progress deltas to an attached tracker, and
// settles one outcome per transfer in a final report.
//
// Example:
//
//	c, err := ferry.New(ferry.WithMaxSimultaneousTransfers(16))
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	report := c.Copy(ctx, []transfer.Transfer{
//	    {Src: "a.txt", Dst: "s3://bucket/a.txt", DestIs: transfer.DestTarget},
//	})
//	fmt.Print(report.Summarize())
package ferry

import (
	"context"

	"github.com/ferrylabs/ferry/internal/copier"
	"github.com/ferrylabs/ferry/internal/router"
	"github.com/ferrylabs/ferry/internal/storage"
	"github.com/ferrylabs/ferry/internal/storage/local"
	minioback "github.com/ferrylabs/ferry/internal/storage/minio"
	obsback "github.com/ferrylabs/ferry/internal/storage/obs"
	s3back "github.com/ferrylabs/ferry/internal/storage/s3"
	"github.com/ferrylabs/ferry/transfer"
)

// Copier runs copy batches. It owns the backend router and releases every
// backend on Close.
type Copier struct {
	router *router.Router
	engine *copier.Copier
}

// New creates a Copier with the default backends (file, s3, minio, obs)
// wired in, then applies the given options.
func New(opts ...Option) (*Copier, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	rt := router.New()
	rt.Register("file", func(ctx context.Context) (storage.Backend, error) {
		return local.NewOS(), nil
	})
	rt.Register("s3", func(ctx context.Context) (storage.Backend, error) {
		s := cfg.backends.S3
		return s3back.New(ctx, s3back.Settings{
			Region:         s.Region,
			Endpoint:       s.Endpoint,
			AccessKey:      s.AccessKey,
			SecretKey:      s.SecretKey,
			BillingProject: cfg.billingProject,
		})
	})
	rt.Register("minio", func(ctx context.Context) (storage.Backend, error) {
		m := cfg.backends.Minio
		return minioback.New(minioback.Settings{
			Endpoint:  m.Endpoint,
			AccessKey: m.AccessKey,
			SecretKey: m.SecretKey,
			UseSSL:    m.UseSSL,
		})
	})
	rt.Register("obs", func(ctx context.Context) (storage.Backend, error) {
		o := cfg.backends.OBS
		return obsback.New(obsback.Settings{
			Endpoint:  o.Endpoint,
			AccessKey: o.AccessKey,
			SecretKey: o.SecretKey,
		})
	})
	for scheme, factory := range cfg.extraBackends {
		rt.Register(scheme, factory)
	}

	return &Copier{
		router: rt,
		engine: copier.New(rt, copier.Config{
			MaxTransfers: cfg.maxTransfers,
			PartSize:     cfg.partSize,
			Tracker:      cfg.tracker,
			Logger:       cfg.logger,
		}),
	}, nil
}

// Copy runs the batch and returns once every transfer has settled. The
// report carries one outcome per input transfer in input order; inspect
// Report.Status to decide whether any failure is fatal.
func (c *Copier) Copy(ctx context.Context, transfers []transfer.Transfer) *transfer.Report {
	return c.engine.Run(ctx, transfers)
}

// Close releases every backend constructed during Copy calls.
func (c *Copier) Close() error {
	return c.router.Close()
}
