// Package carver copies a byte range of a source file out to its own
// file on disk, the step that turns a discovered Chunk into something a
// format handler's external extractor can operate on.
package carver

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nicholas-fedor/blobextract/internal/chunk"
)

// blockSize is the copy buffer size - large enough to amortize syscalls,
// small enough to keep memory flat regardless of chunk size.
const blockSize = 64 * 1024

// ValidName returns the filename a validated chunk is carved to:
// <start>-<end>.<handler>, mirroring unblob's carved-file naming so
// output trees stay recognizable to anyone who has used it.
func ValidName(c chunk.ValidChunk) string {
	return fmt.Sprintf("%d-%d.%s", c.Start, c.End, c.Handler)
}

// UnknownName returns the filename an unclassified gap is carved to:
// <start>-<end>.unknown.
func UnknownName(c chunk.UnknownChunk) string {
	return fmt.Sprintf("%d-%d.unknown", c.Start, c.End)
}

// Carve streams [start, end) of src to dstDir/name, creating dstDir if
// needed. It never reads the whole range into memory at once, so
// multi-gigabyte chunks carve in bounded memory.
func Carve(src *os.File, start, end int64, dstDir, name string) (string, error) {
	if end < start {
		return "", fmt.Errorf("carve %s: end %d before start %d", name, end, start)
	}

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dstDir, err)
	}

	dstPath := filepath.Join(dstDir, name)

	dst, err := os.OpenFile(dstPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", dstPath, err)
	}

	defer dst.Close()

	if _, err := src.Seek(start, io.SeekStart); err != nil {
		return "", fmt.Errorf("seek %s to %d: %w", name, start, err)
	}

	buf := make([]byte, blockSize)

	written, err := io.CopyBuffer(dst, io.LimitReader(src, end-start), buf)
	if err != nil {
		return "", fmt.Errorf("carve %s: %w", name, err)
	}

	if written != end-start {
		return "", fmt.Errorf("carve %s: wrote %d of %d bytes (source truncated)", name, written, end-start)
	}

	return dstPath, nil
}
