package handler

import (
	"bytes"
	"context"
	"io"

	"github.com/nicholas-fedor/blobextract/internal/chunk"
	"github.com/nicholas-fedor/blobextract/internal/execrunner"
)

var (
	rarMagicV4 = []byte{0x52, 0x61, 0x72, 0x21, 0x1A, 0x07, 0x00}
	rarMagicV5 = []byte{0x52, 0x61, 0x72, 0x21, 0x1A, 0x07, 0x01, 0x00}
)

// rarLongBlockFlag marks a RAR4 block header as carrying a trailing
// 4-byte ADD_SIZE field, per https://codedread.github.io/bitjs/docs/unrar.html.
const rarLongBlockFlag = 0x8000

// rarEndArchiveType is RAR4's end-of-archive marker block type.
const rarEndArchiveType = 0x7B

// maxRarBlocks bounds the header walk so a corrupted or adversarial
// candidate can't spin the validator forever.
const maxRarBlocks = 1 << 20

// RarHandler recognizes RAR archives (v4 and v5 signatures) and extracts
// them with unar. There is no pure-Go RAR parser in the dependency set, so
// end-offset detection walks RAR4-style block headers directly; this is
// best-effort and, like unblob's own handler, defers real parsing to the
// extractor binary.
type RarHandler struct {
	runner execrunner.Runner
}

// NewRarHandler builds a RarHandler that shells out to unar.
func NewRarHandler() *RarHandler {
	return &RarHandler{runner: execrunner.OSRunner{}}
}

func (h *RarHandler) Name() string { return "rar" }

func (h *RarHandler) Rule() string {
	return `
		strings:
			$rar_magic_v4 = { 52 61 72 21 1A 07 00 }
			$rar_magic_v5 = { 52 61 72 21 1A 07 01 00 }
		condition:
			$rar_magic_v4 or $rar_magic_v5
	`
}

func (h *RarHandler) MatchOffset() int64 { return 0 }

func (h *RarHandler) Validate(r io.ReadSeeker, start int64) (*chunk.ValidChunk, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, nil //nolint:nilerr // not a match, not a validation failure
	}

	magic := make([]byte, 8)

	n, _ := io.ReadFull(r, magic)
	magic = magic[:n]

	var pos int64

	switch {
	case bytes.HasPrefix(magic, rarMagicV5):
		pos = int64(len(rarMagicV5))
	case bytes.HasPrefix(magic, rarMagicV4):
		pos = int64(len(rarMagicV4))
	default:
		return nil, nil
	}

	if _, err := r.Seek(pos, io.SeekStart); err != nil {
		return nil, nil
	}

	for i := 0; i < maxRarBlocks; i++ {
		hdr := make([]byte, 7)

		n, err := io.ReadFull(r, hdr)
		if err != nil || n < len(hdr) {
			break
		}

		pos += int64(len(hdr))

		blockType := hdr[2]
		flags := uint16(hdr[3]) | uint16(hdr[4])<<8
		headSize := int64(uint16(hdr[5]) | uint16(hdr[6])<<8)

		remaining := headSize - int64(len(hdr))

		var addSize int64

		if flags&rarLongBlockFlag != 0 {
			add := make([]byte, 4)
			if n, err := io.ReadFull(r, add); err != nil || n < len(add) {
				break
			}

			pos += int64(len(add))
			remaining -= int64(len(add))
			addSize = int64(add[0]) | int64(add[1])<<8 | int64(add[2])<<16 | int64(add[3])<<24
		}

		if remaining < 0 {
			break
		}

		skip := remaining + addSize
		if skip > 0 {
			if _, err := r.Seek(skip, io.SeekCurrent); err != nil {
				break
			}

			pos += skip
		}

		if blockType == rarEndArchiveType {
			break
		}
	}

	if pos <= int64(len(rarMagicV4)) {
		return nil, nil
	}

	return &chunk.ValidChunk{
		Chunk:   chunk.Chunk{Start: start, End: start + pos},
		Handler: h.Name(),
	}, nil
}

func (h *RarHandler) Extract(ctx context.Context, inPath, outDir string) error {
	return h.runner.Run(ctx, "unar", "-p", "", inPath, "-o", outDir)
}
