package handler

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nicholas-fedor/blobextract/internal/chunk"
	"github.com/nicholas-fedor/blobextract/internal/execrunner"
)

// tarMagicOffset is where POSIX tar's "ustar" magic sits within the 512
// byte header, matching unblob's TarHandler.YARA_MATCH_OFFSET (-257).
const tarMagicOffset = 257

// TarHandler recognizes POSIX tar archives and extracts them with the
// system tar binary.
type TarHandler struct {
	runner execrunner.Runner
}

// NewTarHandler builds a TarHandler that shells out to the system tar.
func NewTarHandler() *TarHandler {
	return &TarHandler{runner: execrunner.OSRunner{}}
}

func (h *TarHandler) Name() string { return "tar" }

func (h *TarHandler) Rule() string {
	return `
		strings:
			$tar_magic = { 75 73 74 61 72 }
		condition:
			$tar_magic
	`
}

func (h *TarHandler) MatchOffset() int64 { return -tarMagicOffset }

// Validate walks the tar member chain with archive/tar, relying on its
// member-to-member skip to advance r past each member's data and padding.
// Once Next reports io.EOF, r sits right after the two zero-filled blocks
// that terminate a tar archive, which is exactly the end offset unblob's
// _get_tar_end_offset computes by hand.
func (h *TarHandler) Validate(r io.ReadSeeker, start int64) (*chunk.ValidChunk, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek to candidate start: %w", err)
	}

	tr := tar.NewReader(r)

	members := 0

	for {
		_, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			if members == 0 {
				return nil, nil
			}

			break
		}

		members++
	}

	if members == 0 {
		return nil, nil
	}

	end, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("seek to tar end: %w", err)
	}

	return &chunk.ValidChunk{
		Chunk:   chunk.Chunk{Start: start, End: start + end},
		Handler: h.Name(),
	}, nil
}

func (h *TarHandler) Extract(ctx context.Context, inPath, outDir string) error {
	return h.runner.Run(ctx, "tar", "xf", inPath, "--directory", outDir)
}
