// Package mmap maps read-only input files into memory so the CTF cursor
// can read them without copying through the kernel.
package mmap

import (
	"bytes"
	"io"
	"os"

	"github.com/ajitpratap0/ctfkit/pkg/errors"
)

// File is a read-only memory mapping of a whole file.
type File struct {
	file *os.File
	data []byte
	size int64
}

// Open maps path into memory. Empty files are valid and map to no data.
func Open(path string) (*File, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path is supplied by the caller
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "failed to open file").
			WithDetail("path", path)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "failed to stat file").
			WithDetail("path", path)
	}
	if !info.Mode().IsRegular() {
		_ = f.Close()
		return nil, errors.New(errors.ErrorTypeIO, "not a regular file").
			WithDetail("path", path)
	}

	m := &File{file: f, size: info.Size()}
	if m.size == 0 {
		return m, nil
	}

	data, err := mapFile(int(f.Fd()), int(m.size))
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "failed to mmap file").
			WithDetail("path", path)
	}
	// Advice only tunes readahead.
	_ = adviseSequential(data)
	m.data = data
	return m, nil
}

// Bytes returns the mapped contents. The slice is invalid after Close.
func (m *File) Bytes() []byte {
	return m.data
}

// Size returns the file size at open time.
func (m *File) Size() int64 {
	return m.size
}

// Reader returns a fresh reader over the mapped contents.
func (m *File) Reader() io.Reader {
	return bytes.NewReader(m.data)
}

// Close unmaps the file and closes it. Close is idempotent.
func (m *File) Close() error {
	var firstErr error
	if m.data != nil {
		firstErr = unmap(m.data)
		m.data = nil
	}
	if m.file != nil {
		if err := m.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		m.file = nil
	}
	return firstErr
}
