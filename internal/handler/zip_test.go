package handler

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZipFixture(t *testing.T, prefix []byte, entries map[string]string) (string, int64) {
	t.Helper()

	var buf bytes.Buffer

	buf.Write(prefix)

	zw := zip.NewWriter(&buf)
	for name, body := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}

	require.NoError(t, zw.Close())

	path := filepath.Join(t.TempDir(), "fixture.zip")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	return path, int64(buf.Len()) - int64(len(prefix))
}

func TestZipHandlerValidate(t *testing.T) {
	path, zipLen := writeZipFixture(t, nil, map[string]string{"a.txt": "hello"})

	f, err := os.Open(path)
	require.NoError(t, err)

	defer f.Close()

	r, err := NewLimitedStartReader(f, 0)
	require.NoError(t, err)

	h := NewZipHandler()

	got, err := h.Validate(r, 0)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(0), got.Start)
	assert.Equal(t, zipLen, got.End)
}

func TestZipHandlerValidateEmbedded(t *testing.T) {
	prefix := bytes.Repeat([]byte{0x11}, 64)
	path, zipLen := writeZipFixture(t, prefix, map[string]string{"only.txt": "payload"})

	f, err := os.Open(path)
	require.NoError(t, err)

	defer f.Close()

	r, err := NewLimitedStartReader(f, int64(len(prefix)))
	require.NoError(t, err)

	h := NewZipHandler()

	got, err := h.Validate(r, int64(len(prefix)))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(len(prefix)), got.Start)
	assert.Equal(t, int64(len(prefix))+zipLen, got.End)
}

func TestZipHandlerValidateRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage")
	require.NoError(t, os.WriteFile(path, []byte("not a zip at all"), 0o644))

	f, err := os.Open(path)
	require.NoError(t, err)

	defer f.Close()

	r, err := NewLimitedStartReader(f, 0)
	require.NoError(t, err)

	h := NewZipHandler()

	got, err := h.Validate(r, 0)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestZipHandlerExtract(t *testing.T) {
	fr := &fakeRunner{}
	h := &ZipHandler{runner: fr}

	require.NoError(t, h.Extract(t.Context(), "/in/archive.zip", "/out/dir"))
	require.Len(t, fr.runCalls, 1)
	assert.Equal(t, []string{"unzip", "-o", "/in/archive.zip", "-d", "/out/dir"}, fr.runCalls[0])
}
