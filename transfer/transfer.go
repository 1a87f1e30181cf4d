// Package transfer provides the shared transfer specification and report
// types for the ferry copy engine.
package transfer

import (
	"encoding/json"
	"fmt"

	ferrors "github.com/ferrylabs/ferry/errors"
)

// Disposition describes how the destination of a transfer is interpreted.
type Disposition int

const (
	// DestTarget means the destination names the exact final object,
	// regardless of the source name.
	DestTarget Disposition = iota

	// DestDir means the destination is a container and the final path is
	// destination/basename(source).
	DestDir
)

// String returns a human-readable name for the disposition.
func (d Disposition) String() string {
	switch d {
	case DestTarget:
		return "target"
	case DestDir:
		return "dir"
	default:
		return fmt.Sprintf("disposition(%d)", int(d))
	}
}

// Transfer is one requested copy: a source URL, a destination URL, and how
// the destination is to be interpreted. A Transfer is immutable after
// construction.
type Transfer struct {
	// Src is the source path or URL
	Src string

	// Dst is the destination path or URL
	Dst string

	// DestIs controls whether Dst names the final object or a directory
	DestIs Disposition
}

// String returns a compact representation for logs and summaries.
func (t Transfer) String() string {
	return fmt.Sprintf("%s -> %s", t.Src, t.Dst)
}

// request is the JSON wire form of one transfer. Exactly one of To and Into
// must be present.
type request struct {
	From string `json:"from"`
	To   string `json:"to,omitempty"`
	Into string `json:"into,omitempty"`
}

// ParseList decodes a JSON array of transfer requests of the form
// {"from": ..., "to": ...} or {"from": ..., "into": ...}.
//
// A request that carries both "to" and "into", or neither, is rejected as
// invalid rather than silently preferring one field.
func ParseList(data []byte) ([]Transfer, error) {
	var requests []request
	if err := json.Unmarshal(data, &requests); err != nil {
		return nil, fmt.Errorf("%w: %v", ferrors.ErrInvalidTransfer, err)
	}

	transfers := make([]Transfer, 0, len(requests))
	for i, req := range requests {
		if req.From == "" {
			return nil, fmt.Errorf("%w: request %d is missing \"from\"", ferrors.ErrInvalidTransfer, i)
		}
		switch {
		case req.To != "" && req.Into != "":
			return nil, fmt.Errorf("%w: request %d has both \"to\" and \"into\"", ferrors.ErrInvalidTransfer, i)
		case req.To != "":
			transfers = append(transfers, Transfer{Src: req.From, Dst: req.To, DestIs: DestTarget})
		case req.Into != "":
			transfers = append(transfers, Transfer{Src: req.From, Dst: req.Into, DestIs: DestDir})
		default:
			return nil, fmt.Errorf("%w: request %d has neither \"to\" nor \"into\"", ferrors.ErrInvalidTransfer, i)
		}
	}
	return transfers, nil
}
