package handler

import (
	"compress/gzip"
	"context"
	"io"

	"github.com/nicholas-fedor/blobextract/internal/chunk"
	"github.com/nicholas-fedor/blobextract/internal/execrunner"
)

// countingReader tracks how many bytes its wrapped Reader has yielded,
// letting Validate measure exactly how far the gzip decoder advanced.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)

	return n, err
}

// oneByteReader caps every Read at a single byte. compress/flate only
// calls fill() when it is genuinely short on bits and accepts whatever
// byte count Read returns, so forcing one byte per call stops it from
// buffering ahead into whatever the gzip member's trailer or the next
// embedded container holds - the only way to recover a precise member
// boundary from a format with no declared compressed-length field.
type oneByteReader struct{ r io.Reader }

func (o oneByteReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	return o.r.Read(p[:1])
}

// GzipHandler recognizes gzip members and extracts them with gzip -d.
type GzipHandler struct {
	runner execrunner.Runner
}

// NewGzipHandler builds a GzipHandler that shells out to gzip.
func NewGzipHandler() *GzipHandler {
	return &GzipHandler{runner: execrunner.OSRunner{}}
}

func (h *GzipHandler) Name() string { return "gzip" }

func (h *GzipHandler) Rule() string {
	return `
		strings:
			$gzip_magic = { 1F 8B }

		condition:
			$gzip_magic
	`
}

func (h *GzipHandler) MatchOffset() int64 { return 0 }

func (h *GzipHandler) Validate(r io.ReadSeeker, start int64) (*chunk.ValidChunk, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, nil //nolint:nilerr // not a match, not a validation failure
	}

	cr := &countingReader{r: oneByteReader{r}}

	gz, err := gzip.NewReader(cr)
	if err != nil {
		return nil, nil
	}

	gz.Multistream(false)

	if _, err := io.Copy(io.Discard, gz); err != nil {
		return nil, nil
	}

	if err := gz.Close(); err != nil {
		return nil, nil
	}

	if cr.n <= 0 {
		return nil, nil
	}

	return &chunk.ValidChunk{
		Chunk:   chunk.Chunk{Start: start, End: start + cr.n},
		Handler: h.Name(),
	}, nil
}

func (h *GzipHandler) Extract(ctx context.Context, inPath, outDir string) error {
	return h.runner.RunToFile(ctx, outDir+"/decompressed", "gzip", "-d", "-c", inPath)
}
