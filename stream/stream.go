// Package stream provides the byte-addressable streams a CZI document is read
// from and written to.
//
// A stream is accessed with positioned reads and writes only. Reading past the
// end of the data is not an error: the bytes that exist are copied, the rest
// of the buffer is zero-filled and the number of bytes actually available is
// returned. Writing past the end grows the stream.
//
// Two back-ends are built in (Memory and File). External back-ends report
// failures through ErrorInfo and are adapted with FromExternalInput /
// FromExternalOutput. CreateInputStream builds a stream from a class name, a
// JSON property bag and a URI.
package stream

import (
	"fmt"

	"github.com/arloliu/czi/errs"
)

// InputStream is a random-access byte source.
//
// Read copies data starting at offset into p. It returns the number of bytes
// that were available; if that is less than len(p) the remainder of p is
// zero-filled and no error is returned. Implementations advertised as
// thread-safe must allow concurrent Read calls.
type InputStream interface {
	Read(offset int64, p []byte) (int, error)
}

// OutputStream is a random-access byte sink. Write stores p at offset,
// growing the stream if needed, and returns the number of bytes written.
type OutputStream interface {
	Write(offset int64, p []byte) (int, error)
}

// InputOutputStream is both readable and writable.
type InputOutputStream interface {
	InputStream
	OutputStream
}

// ReadFull reads exactly len(p) bytes at offset.
//
// Returns:
//   - error: *errs.IOError if the stream fails, a ParseError (NotEnoughData)
//     if fewer than len(p) bytes are available
func ReadFull(s InputStream, offset int64, p []byte) error {
	n, err := s.Read(offset, p)
	if err != nil {
		return errs.NewIOError("read", offset, int64(len(p)), err)
	}
	if n < len(p) {
		return errs.NewParseError(errs.ParseNotEnoughData, "expected %d bytes at offset %d, got %d", len(p), offset, n)
	}

	return nil
}

// readChunkSize is the step by which ReadSized grows its buffer when the
// stream cannot report its size.
const readChunkSize = 16 << 20

// ReadSized reads size bytes at offset for a length taken from untrusted
// input, such as a segment header. Streams exposing Size() int64 are checked
// up front. Other streams are read in chunks, so a bogus size fails on the
// first short chunk instead of allocating the whole amount.
//
// Returns:
//   - []byte: The size bytes read
//   - error: A ParseError (NotEnoughData) if the stream ends early, *errs.IOError on failure
func ReadSized(s InputStream, offset, size int64) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("%w: negative size %d", errs.ErrInvalidArgument, size)
	}
	if sz, ok := s.(interface{ Size() int64 }); ok && size > sz.Size()-offset {
		return nil, errs.NewParseError(errs.ParseNotEnoughData,
			"expected %d bytes at offset %d, stream holds %d", size, offset, sz.Size())
	}
	if size <= readChunkSize {
		p := make([]byte, size)
		return p, ReadFull(s, offset, p)
	}

	var out []byte
	for read := int64(0); read < size; {
		n := min(size-read, readChunkSize)
		out = append(out, make([]byte, n)...)
		if err := ReadFull(s, offset+read, out[read:read+n]); err != nil {
			return nil, err
		}
		read += n
	}

	return out, nil
}

// WriteFull writes all of p at offset.
//
// Returns:
//   - error: *errs.IOError if the stream fails, ErrNotEnoughDataWritten on a short write
func WriteFull(s OutputStream, offset int64, p []byte) error {
	n, err := s.Write(offset, p)
	if err != nil {
		return errs.NewIOError("write", offset, int64(len(p)), err)
	}
	if n != len(p) {
		return fmt.Errorf("%w: %d of %d bytes at offset %d", errs.ErrNotEnoughDataWritten, n, len(p), offset)
	}

	return nil
}

func checkOffset(offset int64) error {
	if offset < 0 {
		return fmt.Errorf("%w: negative offset %d", errs.ErrInvalidArgument, offset)
	}

	return nil
}
