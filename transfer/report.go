package transfer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
)

// Status is the overall outcome of a batch.
type Status int

const (
	// StatusSuccess means every transfer in the batch succeeded.
	StatusSuccess Status = iota

	// StatusPartialFailure means at least one transfer failed.
	StatusPartialFailure
)

// String returns a human-readable name for the status.
func (s Status) String() string {
	if s == StatusSuccess {
		return "success"
	}
	return "partial failure"
}

// Outcome is the settled result of one transfer: either success with the
// number of files and bytes it moved, or failure with the first cause.
type Outcome struct {
	// Transfer is the request this outcome belongs to
	Transfer Transfer

	// Files is the number of objects copied for this transfer
	Files int64

	// Bytes is the number of bytes moved for this transfer
	Bytes int64

	// Err is the first failure encountered, or nil on success
	Err error
}

// Failed reports whether the transfer failed.
func (o Outcome) Failed() bool {
	return o.Err != nil
}

// Report accumulates one outcome per input transfer, in input order.
// It is mutated by the scheduler while the batch runs and is read-only
// afterwards.
type Report struct {
	mu       sync.Mutex
	outcomes []Outcome
	settled  []bool
}

// NewReport creates a report with one pending slot per input transfer.
func NewReport(transfers []Transfer) *Report {
	outcomes := make([]Outcome, len(transfers))
	for i, t := range transfers {
		outcomes[i].Transfer = t
	}
	return &Report{
		outcomes: outcomes,
		settled:  make([]bool, len(transfers)),
	}
}

// Record settles the outcome for the transfer at input position i.
// Recording the same position twice panics: each transfer settles exactly once.
func (r *Report) Record(i int, o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.settled[i] {
		panic(fmt.Sprintf("transfer %d settled twice", i))
	}
	o.Transfer = r.outcomes[i].Transfer
	r.outcomes[i] = o
	r.settled[i] = true
}

// Outcomes returns a copy of the per-transfer outcomes in input order.
func (r *Report) Outcomes() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Outcome, len(r.outcomes))
	copy(out, r.outcomes)
	return out
}

// Files returns the total number of objects copied across all transfers.
func (r *Report) Files() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, o := range r.outcomes {
		n += o.Files
	}
	return n
}

// Bytes returns the total number of bytes moved across all transfers.
func (r *Report) Bytes() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, o := range r.outcomes {
		n += o.Bytes
	}
	return n
}

// Failures returns the number of failed transfers.
func (r *Report) Failures() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int
	for _, o := range r.outcomes {
		if o.Failed() {
			n++
		}
	}
	return n
}

// Status returns StatusPartialFailure if and only if at least one transfer
// failed.
func (r *Report) Status() Status {
	if r.Failures() > 0 {
		return StatusPartialFailure
	}
	return StatusSuccess
}

// Summarize renders the user-visible result: every failed transfer with its
// cause, followed by the final counts.
func (r *Report) Summarize() string {
	outcomes := r.Outcomes()

	var b strings.Builder
	succeeded := 0
	failed := 0
	var bytes int64
	for _, o := range outcomes {
		if o.Failed() {
			failed++
			fmt.Fprintf(&b, "failed: %s: %v\n", o.Transfer, o.Err)
			continue
		}
		succeeded++
		bytes += o.Bytes
	}
	fmt.Fprintf(&b, "%d succeeded, %d failed, %s moved\n",
		succeeded, failed, humanize.IBytes(uint64(bytes)))
	return b.String()
}
