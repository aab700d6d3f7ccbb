package handler

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/nicholas-fedor/blobextract/internal/chunk"
	"github.com/nicholas-fedor/blobextract/internal/execrunner"
)

var zipEOCDSignature = []byte{0x50, 0x4b, 0x05, 0x06}

// zipMaxCommentScan bounds the backward scan for the end-of-central-
// directory record to the largest comment a zip file can carry (a
// uint16 length) plus the fixed 22-byte record itself.
const zipMaxCommentScan = 65535 + 22

// ZipHandler recognizes zip archives by locating their end-of-central-
// directory record and extracts them with unzip.
type ZipHandler struct {
	runner execrunner.Runner
}

// NewZipHandler builds a ZipHandler that shells out to unzip.
func NewZipHandler() *ZipHandler {
	return &ZipHandler{runner: execrunner.OSRunner{}}
}

func (h *ZipHandler) Name() string { return "zip" }

func (h *ZipHandler) Rule() string {
	return `
		strings:
			$zip_local_header = { 50 4B 03 04 }

		condition:
			$zip_local_header
	`
}

func (h *ZipHandler) MatchOffset() int64 { return 0 }

// Validate locates the end-of-central-directory record by scanning
// backward from the end of the candidate region, the same technique real
// unzip implementations use to tolerate trailing garbage or truncated
// comment fields, then confirms the result actually parses as a zip
// before reporting a chunk.
func (h *ZipHandler) Validate(r io.ReadSeeker, start int64) (*chunk.ValidChunk, error) {
	ra, ok := r.(io.ReaderAt)
	if !ok {
		return nil, fmt.Errorf("zip handler requires a ReaderAt-capable reader")
	}

	regionEnd, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("seek to region end: %w", err)
	}

	if regionEnd < 22 {
		return nil, nil
	}

	scanLen := regionEnd
	if scanLen > zipMaxCommentScan {
		scanLen = zipMaxCommentScan
	}

	buf := make([]byte, scanLen)

	if _, err := ra.ReadAt(buf, regionEnd-scanLen); err != nil && err != io.EOF {
		return nil, fmt.Errorf("read end-of-central-directory window: %w", err)
	}

	idx := bytes.LastIndex(buf, zipEOCDSignature)
	if idx < 0 || idx+22 > len(buf) {
		return nil, nil
	}

	commentLen := binary.LittleEndian.Uint16(buf[idx+20 : idx+22])
	eocdOffset := regionEnd - scanLen + int64(idx)
	zipEnd := eocdOffset + 22 + int64(commentLen)

	if zipEnd > regionEnd {
		zipEnd = regionEnd
	}

	if _, err := zip.NewReader(io.NewSectionReader(ra, 0, zipEnd), zipEnd); err != nil {
		return nil, nil
	}

	return &chunk.ValidChunk{
		Chunk:   chunk.Chunk{Start: start, End: start + zipEnd},
		Handler: h.Name(),
	}, nil
}

func (h *ZipHandler) Extract(ctx context.Context, inPath, outDir string) error {
	return h.runner.Run(ctx, "unzip", "-o", inPath, "-d", outDir)
}
