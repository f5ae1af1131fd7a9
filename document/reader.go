package document

import (
	"fmt"
	"sync"

	"github.com/arloliu/czi/dims"
	"github.com/arloliu/czi/directory"
	"github.com/arloliu/czi/errs"
	"github.com/arloliu/czi/format"
	"github.com/arloliu/czi/geom"
	"github.com/arloliu/czi/section"
	"github.com/arloliu/czi/stream"
)

// Reader gives read access to a document through its directories.
//
// All methods are safe for concurrent use. Reads racing with Close either
// complete or fail with ErrNotOperational.
type Reader struct {
	mu     sync.RWMutex
	cat    catalog
	closed bool
}

// Open reads the file header and both directories of the document in in.
//
// Returns:
//   - *Reader: The reader
//   - error: I/O errors or a ParseError if the header or a directory is malformed
func Open(in stream.InputStream, opts ...ReaderOption) (*Reader, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: nil stream", errs.ErrInvalidArgument)
	}

	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	subBlocks, err := directory.NewSubBlockDirectory()
	if err != nil {
		return nil, err
	}

	r := &Reader{cat: catalog{
		in:          in,
		cfg:         cfg,
		subBlocks:   subBlocks,
		attachments: directory.NewAttachmentDirectory(false),
	}}
	if err := r.cat.readFileHeader(); err != nil {
		return nil, err
	}
	if _, _, err := r.cat.loadDirectories(); err != nil {
		return nil, err
	}
	r.cat.warmStatistics()

	return r, nil
}

// begin takes the read lock and fails if the reader is closed. The caller
// must call r.mu.RUnlock when begin succeeds.
func (r *Reader) begin() error {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return fmt.Errorf("%w: reader is closed", errs.ErrNotOperational)
	}

	return nil
}

// FileHeader returns the parsed file header.
func (r *Reader) FileHeader() section.FileHeader {
	return r.cat.header
}

// SubBlockCount returns the number of sub-blocks.
func (r *Reader) SubBlockCount() int {
	return r.cat.subBlocks.Count()
}

// SubBlockInfo returns the directory entry of a sub-block.
func (r *Reader) SubBlockInfo(index int) (directory.SubBlockEntry, bool) {
	return r.cat.subBlocks.Get(index)
}

// EnumerateSubBlocks calls fn for every sub-block in directory order until fn
// returns false.
func (r *Reader) EnumerateSubBlocks(fn func(index int, e *directory.SubBlockEntry) bool) error {
	if err := r.begin(); err != nil {
		return err
	}
	defer r.mu.RUnlock()

	r.cat.subBlocks.EnumerateAll(fn)

	return nil
}

// EnumerateSubBlockSubset calls fn for the sub-blocks in plane whose logical
// rectangle intersects roi. A nil roi matches every rectangle.
func (r *Reader) EnumerateSubBlockSubset(plane dims.Coordinate, roi *geom.IntRect, onlyLayer0 bool, fn func(index int, e *directory.SubBlockEntry) bool) error {
	if err := r.begin(); err != nil {
		return err
	}
	defer r.mu.RUnlock()

	r.cat.subBlocks.EnumerateSubset(plane, roi, onlyLayer0, fn)

	return nil
}

// Statistics returns the sub-block statistics. Callers must not modify the
// returned maps.
func (r *Reader) Statistics() directory.Statistics {
	return r.cat.subBlocks.Statistics()
}

// PyramidStatistics returns the pyramid layers present per scene.
func (r *Reader) PyramidStatistics() directory.PyramidStatistics {
	return r.cat.subBlocks.PyramidStatistics()
}

// ReadSubBlock reads a sub-block segment.
//
// Returns:
//   - *SubBlock: The sub-block with its metadata, data and attachment
//   - error: ErrNotOperational, ErrInvalidSubBlockID, I/O or parse errors
func (r *Reader) ReadSubBlock(index int) (*SubBlock, error) {
	if err := r.begin(); err != nil {
		return nil, err
	}
	defer r.mu.RUnlock()

	return r.cat.readSubBlock(index)
}

// AttachmentCount returns the number of attachments.
func (r *Reader) AttachmentCount() int {
	return r.cat.attachments.Count()
}

// AttachmentInfo returns the directory entry of an attachment.
func (r *Reader) AttachmentInfo(index int) (directory.AttachmentEntry, bool) {
	return r.cat.attachments.Get(index)
}

// EnumerateAttachments calls fn for every attachment until fn returns false.
func (r *Reader) EnumerateAttachments(fn func(index int, e *directory.AttachmentEntry) bool) error {
	if err := r.begin(); err != nil {
		return err
	}
	defer r.mu.RUnlock()

	r.cat.attachments.EnumerateAll(fn)

	return nil
}

// EnumerateAttachmentSubset calls fn for the attachments with the given
// content file type and name; an empty filter matches anything.
func (r *Reader) EnumerateAttachmentSubset(contentFileType, name string, fn func(index int, e *directory.AttachmentEntry) bool) error {
	if err := r.begin(); err != nil {
		return err
	}
	defer r.mu.RUnlock()

	r.cat.attachments.EnumerateSubset(contentFileType, name, fn)

	return nil
}

// ReadAttachment reads an attachment segment.
func (r *Reader) ReadAttachment(index int) (*Attachment, error) {
	if err := r.begin(); err != nil {
		return nil, err
	}
	defer r.mu.RUnlock()

	return r.cat.readAttachment(index)
}

// ReadMetadataSegment reads the document metadata.
//
// Returns:
//   - *MetadataSegment: XML and attachment
//   - error: ErrSegmentNotPresent if the document has no metadata
func (r *Reader) ReadMetadataSegment() (*MetadataSegment, error) {
	if err := r.begin(); err != nil {
		return nil, err
	}
	defer r.mu.RUnlock()

	return r.cat.readMetadataSegment()
}

// TransformPoint converts p into the target frame of reference.
func (r *Reader) TransformPoint(p geom.PointAndFrame, target format.FrameOfReference) (geom.PointAndFrame, error) {
	return r.cat.transformPoint(p, target)
}

// TransformRect converts rect into the target frame of reference.
func (r *Reader) TransformRect(rect geom.RectAndFrame, target format.FrameOfReference) (geom.RectAndFrame, error) {
	return r.cat.transformRect(rect, target)
}

// Close releases the reader. The stream is not closed. A second call fails
// with ErrNotOperational.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("%w: reader is closed", errs.ErrNotOperational)
	}
	r.closed = true

	return nil
}
