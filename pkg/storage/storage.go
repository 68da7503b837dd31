// Package storage defines the Storage abstraction the compiler and binary
// loader use to reach the filesystem: reading source text by path, and
// opening readers/writers for compiled .lucky files. spec.md §1 keeps "the
// file-reading side of source loading" out of the core's scope — this
// package is the concrete, out-of-core implementation the CLI wires in.
package storage

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Storage reads source files by path and opens binary program readers and
// writers. Implementations decide how "path" maps to bytes — OS carries a
// plain os.Open/os.Create mapping; a host embedding Clover in, say, a
// virtual filesystem or an in-memory test fixture can swap in another one.
type Storage interface {
	ReadSource(path string) (string, error)
	OpenBinaryReader(path string) (io.ReadCloser, error)
	OpenBinaryWriter(path string) (io.WriteCloser, error)
}

// OS is the default Storage backed directly by the local filesystem.
type OS struct{}

// NewOS creates an OS-backed Storage.
func NewOS() OS { return OS{} }

func (OS) ReadSource(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "storage: read source %q", path)
	}
	return string(data), nil
}

func (OS) OpenBinaryReader(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "storage: open binary %q for read", path)
	}
	return f, nil
}

func (OS) OpenBinaryWriter(path string) (io.WriteCloser, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "storage: create directory for %q", path)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "storage: open binary %q for write", path)
	}
	return f, nil
}
