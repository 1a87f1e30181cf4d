// Package progress provides thread-safe accumulation of transfer progress.
//
// CopyTasks report (files, bytes) deltas as they move data; a Tracker
// aggregates them without ever blocking the task that reported. Rendering is
// left to the caller, which can poll Totals for a snapshot at any time.
package progress

import (
	"io"
	"sync/atomic"
)

// Delta is a single progress report: how many files completed and how many
// bytes moved since the previous report. Both values are non-negative.
type Delta struct {
	Files int64
	Bytes int64
}

// Tracker receives progress deltas from in-flight copy tasks.
// Implementations must be safe for concurrent use and must not block.
type Tracker interface {
	Advance(d Delta)
}

// Totals accumulates deltas into monotonically increasing running totals.
// The zero value is ready to use.
type Totals struct {
	files atomic.Int64
	bytes atomic.Int64
}

// Advance adds the delta to the running totals.
func (t *Totals) Advance(d Delta) {
	if d.Files > 0 {
		t.files.Add(d.Files)
	}
	if d.Bytes > 0 {
		t.bytes.Add(d.Bytes)
	}
}

// Snapshot returns the current totals.
func (t *Totals) Snapshot() Delta {
	return Delta{
		Files: t.files.Load(),
		Bytes: t.bytes.Load(),
	}
}

// Nop returns a tracker that discards all deltas.
func Nop() Tracker {
	return nopTracker{}
}

type nopTracker struct{}

func (nopTracker) Advance(Delta) {}

// Multi returns a tracker that fans every delta out to all of the given
// trackers, in order.
func Multi(trackers ...Tracker) Tracker {
	return multiTracker(trackers)
}

type multiTracker []Tracker

func (m multiTracker) Advance(d Delta) {
	for _, t := range m {
		t.Advance(d)
	}
}

// NewReader wraps r so that every successful read advances the tracker by the
// number of bytes read.
func NewReader(r io.Reader, tracker Tracker) io.Reader {
	return &reader{r: r, tracker: tracker}
}

type reader struct {
	r       io.Reader
	tracker Tracker
}

func (pr *reader) Read(p []byte) (int, error) {
	n, err := pr.r.Read(p)
	if n > 0 {
		pr.tracker.Advance(Delta{Bytes: int64(n)})
	}
	return n, err
}
