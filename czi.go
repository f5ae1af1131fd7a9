// Package czi reads, writes and edits CZI documents, the tiled multi-dimensional
// microscopy image format.
//
// A CZI document is a sequence of segments: a file header, sub-blocks holding
// the pixels of one tile, attachments, an XML metadata segment and two
// directories indexing the sub-blocks and attachments. Every sub-block is
// addressed by a coordinate over the dimensions Z, C, T, R, S, I, H, V and B,
// an optional M-index (the mosaic tile index) and a logical rectangle on the
// pixel plane.
//
// # Core Features
//
//   - Streaming writer with directory and metadata reservations
//   - Reader with sub-block, attachment and metadata access
//   - In-place editing (add, replace, remove) with segment reuse
//   - Uncompressed, Zstd0 and Zstd1 (with hi-lo packing) pixel codecs
//   - Plane composition at any zoom, pyramid layer selection and masks
//   - Optional sub-block cache compressed with Zstd, S2 or LZ4
//
// # Basic Usage
//
// Writing a document:
//
//	w, _ := czi.CreateFile("out.czi")
//	bm := bitmap.MustNew(format.PixelTypeGray8, 256, 256)
//	coord, _ := czi.ParseCoordinate("C0")
//	w.AddSubBlockBitmap(document.AddSubBlockInfo{
//	    Coordinate:  coord,
//	    MIndex:      0,
//	    MIndexValid: true,
//	    Compression: format.CompressionZstd1,
//	}, bm, compress.Parameters{})
//	w.Close()
//
// Reading a region of interest:
//
//	r, _ := czi.OpenFile("out.czi")
//	defer r.Close()
//	acc, _ := accessor.NewScalingAccessor(r)
//	img, _ := acc.Get(geom.IntRect{W: 256, H: 256}, coord, 0.5, accessor.DefaultOptions())
//
// # Package Structure
//
// This package provides convenient top-level wrappers around the document
// package and file streams. For advanced usage, use the document, accessor
// and stream packages directly.
package czi

import (
	"errors"

	"github.com/arloliu/czi/dims"
	"github.com/arloliu/czi/document"
	"github.com/arloliu/czi/stream"
)

// NewWriter creates a writer for a new document on out.
//
// Available options:
//   - document.WithBounds(bounds) / document.WithMIndexRange(min, max)
//   - document.WithReserveSubBlockDirectory(n), WithReserveAttachmentDirectory(n), WithReserveMetadata(size)
//   - document.WithAllowDuplicateSubBlocks(true|false)
//   - document.WithFileGUID(guid)
//   - document.WithLogger(logger), document.WithMetrics(m)
func NewWriter(out stream.OutputStream, opts ...document.WriterOption) (*document.Writer, error) {
	return document.NewWriter(out, opts...)
}

// NewReader opens the document stored in in.
//
// Parameters:
//   - in: Stream holding a complete document
//   - opts: Logger, metrics, codec registry, default frame of reference
//
// Returns:
//   - *document.Reader: The reader
//   - error: ErrParse variants for malformed headers or directories, I/O errors
func NewReader(in stream.InputStream, opts ...document.ReaderOption) (*document.Reader, error) {
	return document.Open(in, opts...)
}

// NewReaderWriter opens the document stored in rw for editing. An empty
// stream starts a new document.
func NewReaderWriter(rw stream.InputOutputStream, opts ...document.ReaderWriterOption) (*document.ReaderWriter, error) {
	return document.OpenReaderWriter(rw, opts...)
}

// FileWriter is a Writer on a file it owns.
type FileWriter struct {
	*document.Writer
	file *stream.File
}

// Close finalizes the document and closes the file.
func (w *FileWriter) Close() error {
	err := w.Writer.Close()
	return errors.Join(err, w.file.Close())
}

// FileReader is a Reader on a file it owns.
type FileReader struct {
	*document.Reader
	file *stream.File
}

// Close closes the reader and the file.
func (r *FileReader) Close() error {
	err := r.Reader.Close()
	return errors.Join(err, r.file.Close())
}

// FileReaderWriter is a ReaderWriter on a file it owns.
type FileReaderWriter struct {
	*document.ReaderWriter
	file *stream.File
}

// Close writes the pending directory and header updates and closes the file.
func (d *FileReaderWriter) Close() error {
	err := d.ReaderWriter.Close()
	return errors.Join(err, d.file.Close())
}

// CreateFile creates a new document at path. An existing file is not
// replaced.
//
// Returns:
//   - *FileWriter: The writer, whose Close also closes the file
//   - error: File creation errors or option errors
func CreateFile(path string, opts ...document.WriterOption) (*FileWriter, error) {
	f, err := stream.CreateFile(path, false)
	if err != nil {
		return nil, err
	}

	w, err := document.NewWriter(f, opts...)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	return &FileWriter{Writer: w, file: f}, nil
}

// OpenFile opens the document at path for reading.
func OpenFile(path string, opts ...document.ReaderOption) (*FileReader, error) {
	f, err := stream.OpenFile(path)
	if err != nil {
		return nil, err
	}

	r, err := document.Open(f, opts...)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	return &FileReader{Reader: r, file: f}, nil
}

// EditFile opens the document at path for editing. A missing or empty file
// starts a new document.
func EditFile(path string, opts ...document.ReaderWriterOption) (*FileReaderWriter, error) {
	f, err := stream.OpenFileReadWrite(path)
	if err != nil {
		return nil, err
	}

	d, err := document.OpenReaderWriter(f, opts...)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	return &FileReaderWriter{ReaderWriter: d, file: f}, nil
}

// ParseCoordinate parses a coordinate string like "C0Z3" or "C1 T-2".
func ParseCoordinate(s string) (dims.Coordinate, error) {
	return dims.Parse(s)
}
