package handler

import (
	"fmt"
	"io"
	"os"
)

// LimitedStartReader wraps an *os.File so that no absolute seek can land
// before a fixed start offset - it prevents a buggy handler from reading
// the bytes of the preceding chunk. Offsets passed to Seek are relative to
// start, matching how a handler expects to see "byte 0 of its chunk".
type LimitedStartReader struct {
	file  *os.File
	start int64
}

// NewLimitedStartReader seeks file to start and returns a reader whose
// zero offset is start.
func NewLimitedStartReader(file *os.File, start int64) (*LimitedStartReader, error) {
	if _, err := file.Seek(start, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek to chunk start: %w", err)
	}

	return &LimitedStartReader{file: file, start: start}, nil
}

func (r *LimitedStartReader) Read(p []byte) (int, error) {
	return r.file.Read(p)
}

// ReadAt reads at an offset relative to start without disturbing the
// reader's current seek position, letting handlers that need random
// access (zip's trailing end-of-central-directory scan) share the same
// start-clamped view as sequential handlers.
func (r *LimitedStartReader) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("read before chunk start: relative offset %d < 0", off)
	}

	return r.file.ReadAt(p, r.start+off)
}

func (r *LimitedStartReader) Seek(offset int64, whence int) (int64, error) {
	var target int64

	switch whence {
	case io.SeekStart:
		target = r.start + offset
	case io.SeekCurrent:
		cur, err := r.file.Seek(0, io.SeekCurrent)
		if err != nil {
			return 0, fmt.Errorf("seek current: %w", err)
		}

		target = cur + offset
	case io.SeekEnd:
		abs, err := r.file.Seek(offset, io.SeekEnd)
		if err != nil {
			return 0, fmt.Errorf("seek end: %w", err)
		}

		if abs < r.start {
			return 0, fmt.Errorf("seek before chunk start: absolute %d < %d", abs, r.start)
		}

		return abs - r.start, nil
	default:
		return 0, fmt.Errorf("unsupported whence %d", whence)
	}

	if target < r.start {
		return 0, fmt.Errorf("seek before chunk start: absolute %d < %d", target, r.start)
	}

	abs, err := r.file.Seek(target, io.SeekStart)
	if err != nil {
		return 0, fmt.Errorf("seek: %w", err)
	}

	return abs - r.start, nil
}
