package storage

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOS_ReadSource_RoundTripsFileContents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.luck")
	require.NoError(t, os.WriteFile(path, []byte("public function f() return 1 end"), 0o644))

	s := NewOS()
	text, err := s.ReadSource(path)
	require.NoError(t, err)
	require.Equal(t, "public function f() return 1 end", text)
}

func TestOS_ReadSource_MissingFileErrors(t *testing.T) {
	s := NewOS()
	_, err := s.ReadSource(filepath.Join(t.TempDir(), "missing.luck"))
	require.Error(t, err)
}

func TestOS_OpenBinaryWriter_CreatesParentDirectories(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.lucky")

	s := NewOS()
	w, err := s.OpenBinaryWriter(path)
	require.NoError(t, err)
	_, err = w.Write([]byte("hi"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := s.OpenBinaryReader(path)
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.Equal(t, "hi", string(data))
}
