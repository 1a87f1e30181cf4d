// Package copier executes planned copy work under a global concurrency
// limit and settles one outcome per input transfer.
package copier

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	ferrors "github.com/ferrylabs/ferry/errors"
	"github.com/ferrylabs/ferry/internal/planner"
	"github.com/ferrylabs/ferry/internal/router"
	"github.com/ferrylabs/ferry/progress"
	"github.com/ferrylabs/ferry/transfer"
)

// DefaultMaxTransfers bounds how many copy tasks may be actively moving
// bytes at once. It limits open file descriptors and connections on both
// sides of a transfer, not throughput.
const DefaultMaxTransfers = 75

// Config configures a Copier.
type Config struct {
	// MaxTransfers is the global cap on concurrently active copy tasks.
	// Non-positive values fall back to DefaultMaxTransfers.
	MaxTransfers int

	// PartSize is the split threshold forwarded to the planner.
	PartSize int64

	// Tracker receives progress deltas; nil disables progress reporting.
	Tracker progress.Tracker

	// Logger receives per-transfer events.
	Logger zerolog.Logger
}

// Copier schedules copy tasks. Task queuing is unbounded; only active byte
// transfer is gated by the semaphore.
type Copier struct {
	router  *router.Router
	planner *planner.Planner
	sem     chan struct{}
	tracker progress.Tracker
	log     zerolog.Logger
}

// New creates a copier over the given router.
func New(rt *router.Router, cfg Config) *Copier {
	limit := cfg.MaxTransfers
	if limit <= 0 {
		limit = DefaultMaxTransfers
	}
	tracker := cfg.Tracker
	if tracker == nil {
		tracker = progress.Nop()
	}
	return &Copier{
		router:  rt,
		planner: planner.New(rt, cfg.PartSize),
		sem:     make(chan struct{}, limit),
		tracker: tracker,
		log:     cfg.Logger,
	}
}

// Run executes every transfer and returns after all of them have settled.
// Individual failures are recorded in the report, never propagated as an
// abort of the batch; cancellation of ctx stops tasks at their next chunk or
// acquire boundary.
func (c *Copier) Run(ctx context.Context, transfers []transfer.Transfer) *transfer.Report {
	report := transfer.NewReport(transfers)

	var wg sync.WaitGroup
	for i := range transfers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			report.Record(i, c.runTransfer(ctx, transfers[i]))
		}(i)
	}
	wg.Wait()
	return report
}

// runTransfer expands one transfer and copies its objects. The first failing
// object cancels the group context, which stops siblings of this transfer at
// their next boundary; other transfers are unaffected.
func (c *Copier) runTransfer(ctx context.Context, t transfer.Transfer) transfer.Outcome {
	objects, err := c.planner.Expand(ctx, t)
	if err != nil {
		c.log.Error().Str("src", t.Src).Str("dst", t.Dst).Err(err).Msg("plan failed")
		return transfer.Outcome{Transfer: t, Err: err}
	}

	var files, bytes atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for _, obj := range objects {
		obj := obj
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			if err := c.copyObject(gctx, obj); err != nil {
				return err
			}
			files.Add(1)
			bytes.Add(obj.Size)
			return nil
		})
	}
	err = g.Wait()
	if err != nil {
		c.log.Error().Str("src", t.Src).Str("dst", t.Dst).Err(err).Msg("transfer failed")
	} else {
		c.log.Debug().Str("src", t.Src).Str("dst", t.Dst).
			Int64("files", files.Load()).Int64("bytes", bytes.Load()).Msg("transfer complete")
	}
	return transfer.Outcome{Transfer: t, Files: files.Load(), Bytes: bytes.Load(), Err: err}
}

func (c *Copier) copyObject(ctx context.Context, obj planner.ObjectCopy) error {
	if len(obj.Parts) == 1 {
		return c.copyWhole(ctx, obj)
	}
	return c.copyParts(ctx, obj)
}

// copyWhole streams a small object end to end while holding one semaphore
// slot.
func (c *Copier) copyWhole(ctx context.Context, obj planner.ObjectCopy) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()

	rc, err := c.router.OpenRead(ctx, obj.Src, 0, obj.Size)
	if err != nil {
		return err
	}
	defer rc.Close()

	if err := c.router.Put(ctx, obj.Dst, progress.NewReader(rc, c.tracker), obj.Size); err != nil {
		return err
	}
	c.tracker.Advance(progress.Delta{Files: 1})
	return nil
}

// copyParts copies a large object as parallel ranged parts. Each part holds
// a semaphore slot only while moving bytes; the commit runs afterwards
// without holding one, and only when every part succeeded.
func (c *Copier) copyParts(ctx context.Context, obj planner.ObjectCopy) error {
	mw, err := c.router.CreateMultipart(ctx, obj.Dst, obj.Size, c.planner.PartSize(), len(obj.Parts))
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, part := range obj.Parts {
		part := part
		g.Go(func() error {
			if err := c.acquire(gctx); err != nil {
				return err
			}
			defer c.release()

			rc, err := c.router.OpenRead(gctx, obj.Src, part.Offset, part.Length)
			if err != nil {
				return err
			}
			defer rc.Close()

			n, err := mw.WritePart(gctx, part.Index, progress.NewReader(rc, c.tracker), part.Length)
			if err != nil {
				return err
			}
			if n != part.Length {
				return ferrors.New("writePart",
					fmt.Errorf("%w: part %d wrote %d bytes, planned %d",
						ferrors.ErrPartSizeMismatch, part.Index, n, part.Length)).
					WithURL(obj.Dst.String())
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// Abort must run even when the failure was a cancellation.
		if aerr := mw.Abort(context.WithoutCancel(ctx)); aerr != nil {
			c.log.Warn().Str("dst", obj.Dst.String()).Err(aerr).Msg("abort failed")
		}
		return err
	}

	if err := mw.Complete(ctx); err != nil {
		return err
	}
	c.tracker.Advance(progress.Delta{Files: 1})
	return nil
}

func (c *Copier) acquire(ctx context.Context) error {
	select {
	case c.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Copier) release() {
	<-c.sem
}
