package driver

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicholas-fedor/blobextract/internal/chunk"
	"github.com/nicholas-fedor/blobextract/internal/handler"
	"github.com/nicholas-fedor/blobextract/internal/report"
	"github.com/nicholas-fedor/blobextract/internal/scanner"
	"github.com/nicholas-fedor/blobextract/internal/task"
)

// fixedSizeHandler recognizes a literal marker and always reports a
// fixed-length chunk starting at the match, writing a sentinel file to
// outDir on Extract - enough to exercise carve/extract/sanitize/re-enqueue
// without depending on tar/zip/rar/gzip fixtures or a real YARA binding.
type fixedSizeHandler struct {
	literal string
	size    int64
}

func (h *fixedSizeHandler) Name() string { return "fixed" }

func (h *fixedSizeHandler) Rule() string {
	return "strings:\n\t$m = \"" + h.literal + "\"\ncondition:\n\t$m"
}

func (h *fixedSizeHandler) MatchOffset() int64 { return 0 }

func (h *fixedSizeHandler) Validate(_ io.ReadSeeker, start int64) (*chunk.ValidChunk, error) {
	return &chunk.ValidChunk{Chunk: chunk.Chunk{Start: start, End: start + h.size}, Handler: h.Name()}, nil
}

func (h *fixedSizeHandler) Extract(_ context.Context, inPath, outDir string) error {
	return os.WriteFile(filepath.Join(outDir, "extracted.txt"), []byte("from "+inPath), 0o644)
}

func newTestDriver(t *testing.T, reg *handler.Registry, cfg Config) *Driver {
	t.Helper()

	scn, err := scanner.New(reg)
	require.NoError(t, err)

	t.Cleanup(scn.Close)

	log := logrus.New()
	log.SetOutput(io.Discard)

	return New(reg, scn, cfg, log)
}

func TestDriverExtractsChunkAndEnqueuesNextDepth(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "blob.bin")
	content := []byte("junk-" + "MARKERDATA" + "-trailing-bytes")
	require.NoError(t, os.WriteFile(srcPath, content, 0o644))

	reg := handler.NewRegistry([]handler.Handler{&fixedSizeHandler{literal: "MARKERDATA", size: 10}})
	d := newTestDriver(t, reg, Config{MaxDepth: 5, Suffix: "_extract"})

	result := d.Process(t.Context(), task.Task{Path: srcPath, Depth: 0})
	require.Empty(t, result.Reports)
	require.Len(t, result.NewTasks, 1)

	extractDir := srcPath + "_extract"
	assert.Equal(t, filepath.Join(extractDir, "5-15.fixed_extract"), result.NewTasks[0].Path)
	assert.Equal(t, 1, result.NewTasks[0].Depth)

	chunkDir := filepath.Join(extractDir, "5-15.fixed_extract")
	extracted, err := os.ReadFile(filepath.Join(chunkDir, "extracted.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(extracted), "5-15.fixed")

	_, err = os.Stat(filepath.Join(extractDir, "5-15.fixed"))
	assert.True(t, os.IsNotExist(err), "carved chunk should be removed once extracted")

	assert.FileExists(t, filepath.Join(extractDir, "0-5.unknown"))
	assert.FileExists(t, filepath.Join(extractDir, "15-30.unknown"))
}

func TestDriverExtractsWholeFileChunkInPlace(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "blob.bin")
	require.NoError(t, os.WriteFile(srcPath, []byte("MARKERDATA"), 0o644))

	reg := handler.NewRegistry([]handler.Handler{&fixedSizeHandler{literal: "MARKERDATA", size: 10}})
	d := newTestDriver(t, reg, Config{MaxDepth: 5, Suffix: "_extract", KeepChunks: true})

	result := d.Process(t.Context(), task.Task{Path: srcPath, Depth: 0})
	require.Empty(t, result.Reports)

	extractDir := srcPath + "_extract"
	assert.FileExists(t, filepath.Join(extractDir, "extracted.txt"), "whole-file chunk extracts in place")
}

func TestDriverStopsAtDepthLimit(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "blob.bin")
	require.NoError(t, os.WriteFile(srcPath, []byte("MARKERDATA"), 0o644))

	reg := handler.NewRegistry([]handler.Handler{&fixedSizeHandler{literal: "MARKERDATA", size: 10}})
	d := newTestDriver(t, reg, Config{MaxDepth: 1, Suffix: "_extract"})

	result := d.Process(t.Context(), task.Task{Path: srcPath, Depth: 1})
	assert.Empty(t, result.NewTasks)
	assert.Empty(t, result.Reports)
}

func TestDriverReportsInvalidPathForControlCharacters(t *testing.T) {
	reg := handler.NewRegistry([]handler.Handler{&fixedSizeHandler{literal: "MARKERDATA", size: 10}})
	d := newTestDriver(t, reg, Config{MaxDepth: 5, Suffix: "_extract"})

	result := d.Process(t.Context(), task.Task{Path: "bad\x00path", Depth: 0})
	require.Len(t, result.Reports, 1)
	assert.Equal(t, report.InvalidPath, result.Reports[0].Kind)
	assert.Empty(t, result.NewTasks)
}

func TestDriverReportsUnknownErrorForMissingPath(t *testing.T) {
	dir := t.TempDir()

	reg := handler.NewRegistry([]handler.Handler{&fixedSizeHandler{literal: "MARKERDATA", size: 10}})
	d := newTestDriver(t, reg, Config{MaxDepth: 5, Suffix: "_extract"})

	result := d.Process(t.Context(), task.Task{Path: filepath.Join(dir, "does-not-exist"), Depth: 0})
	require.Len(t, result.Reports, 1)
	assert.Equal(t, report.UnknownError, result.Reports[0].Kind)
}

func TestDriverEnumeratesDirectoryChildrenAtSameDepth(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b"), []byte("b"), 0o644))

	reg := handler.NewRegistry([]handler.Handler{&fixedSizeHandler{literal: "MARKERDATA", size: 10}})
	d := newTestDriver(t, reg, Config{MaxDepth: 5, Suffix: "_extract"})

	result := d.Process(t.Context(), task.Task{Path: dir, Depth: 3})
	require.Len(t, result.NewTasks, 2)

	for _, nt := range result.NewTasks {
		assert.Equal(t, 3, nt.Depth)
	}
}
