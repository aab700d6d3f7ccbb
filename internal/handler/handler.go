// Package handler defines the per-format capability contract the core
// engine dispatches to, plus the priority-tiered registry of handlers and
// a handful of concrete format handlers wrapping real extractor binaries.
package handler

import (
	"context"
	"io"

	"github.com/nicholas-fedor/blobextract/internal/chunk"
)

// Handler adapts one container format: a YARA detection rule plus
// validation and extraction operations. Handlers are stateless after
// construction and safe for concurrent use.
type Handler interface {
	// Name is the stable identifier used in carved filenames and logs.
	Name() string

	// Rule is the body of a YARA rule (the "strings:"/"condition:" block,
	// without the surrounding "rule NAME { ... }" wrapper).
	Rule() string

	// MatchOffset adjusts a YARA match offset to the chunk's start offset:
	// start = matchOffset + MatchOffset(). Usually <= 0 when the pattern
	// sits inside the header rather than at byte 0.
	MatchOffset() int64

	// Validate parses the header at start_offset within r and returns a
	// ValidChunk describing the container's extent, or (nil, nil) if the
	// magic matched but the bytes that follow are not a real instance of
	// the format. A non-nil error means the candidate is dropped and
	// reported; it must never be raised for "not a match".
	Validate(r io.ReadSeeker, start int64) (*chunk.ValidChunk, error)

	// Extract runs the format's external extractor against inPath,
	// writing output under outDir. outDir is created by the caller.
	Extract(ctx context.Context, inPath, outDir string) error
}
