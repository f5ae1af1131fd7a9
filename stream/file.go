package stream

import (
	"errors"
	"io"
	"os"
)

// File is a stream backed by an operating system file. Reads use pread and
// may be issued concurrently.
type File struct {
	f *os.File
}

var _ InputOutputStream = (*File)(nil)

// OpenFile opens an existing file read-only.
func OpenFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	return &File{f: f}, nil
}

// CreateFile creates or truncates a file for writing. If overwrite is false
// and the file exists, an error is returned.
func CreateFile(path string, overwrite bool) (*File, error) {
	flags := os.O_RDWR | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}

	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, err
	}

	return &File{f: f}, nil
}

// OpenFileReadWrite opens an existing file, or creates an empty one, for
// reading and writing.
func OpenFileReadWrite(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}

	return &File{f: f}, nil
}

// Read implements InputStream.
func (s *File) Read(offset int64, p []byte) (int, error) {
	if err := checkOffset(offset); err != nil {
		return 0, err
	}

	n, err := s.f.ReadAt(p, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, err
	}
	clear(p[n:])

	return n, nil
}

// Write implements OutputStream.
func (s *File) Write(offset int64, p []byte) (int, error) {
	if err := checkOffset(offset); err != nil {
		return 0, err
	}

	return s.f.WriteAt(p, offset)
}

// Sync flushes the file to stable storage.
func (s *File) Sync() error {
	return s.f.Sync()
}

// Close closes the underlying file.
func (s *File) Close() error {
	return s.f.Close()
}
