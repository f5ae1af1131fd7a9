package document

import (
	"fmt"

	"github.com/arloliu/czi/bitmap"
	"github.com/arloliu/czi/compress"
	"github.com/arloliu/czi/dims"
	"github.com/arloliu/czi/directory"
	"github.com/arloliu/czi/errs"
	"github.com/arloliu/czi/format"
	"github.com/arloliu/czi/geom"
	"github.com/arloliu/czi/layout"
	"github.com/arloliu/czi/section"
	"github.com/arloliu/czi/stream"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReaderWriter edits a document in place.
//
// A changed sub-block, attachment or metadata segment is overwritten when the
// new payload fits into the allocated size of the old segment. Otherwise the
// old segment becomes a DELETED tombstone and the new one is appended.
// Removed segments are tombstoned. Close tombstones the previous directory
// segments and appends fresh ones; tombstoned space is not reused.
//
// ReaderWriter is not safe for concurrent use.
type ReaderWriter struct {
	rw     stream.InputOutputStream
	cat    catalog
	engine *layout.Engine

	subBlockDir   *layout.Placement
	attachmentDir *layout.Placement
	metadata      *layout.Placement

	subBlocksModified   bool
	attachmentsModified bool
	headerModified      bool
	closed              bool
}

// OpenReaderWriter opens the document in rw. An empty stream gets a new file
// header and becomes an empty document.
//
// Returns:
//   - *ReaderWriter: The reader-writer
//   - error: I/O errors or a ParseError if the existing content is malformed
func OpenReaderWriter(rw stream.InputOutputStream, opts ...ReaderWriterOption) (*ReaderWriter, error) {
	if rw == nil {
		return nil, fmt.Errorf("%w: nil stream", errs.ErrInvalidArgument)
	}

	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	subBlocks, err := cfg.newSubBlockDirectory()
	if err != nil {
		return nil, err
	}

	d := &ReaderWriter{
		rw: rw,
		cat: catalog{
			in:          rw,
			cfg:         cfg,
			subBlocks:   subBlocks,
			attachments: directory.NewAttachmentDirectory(!cfg.allowDuplicateAttachments),
		},
	}

	empty, err := d.isEmpty()
	if err != nil {
		return nil, err
	}

	next := int64(fileHeaderSegmentSize)
	if empty {
		if err := d.create(); err != nil {
			return nil, err
		}
	} else {
		next, err = d.load()
		if err != nil {
			return nil, err
		}
	}

	d.engine, err = layout.New(rw, next, layout.WithLogger(cfg.logger), layout.WithMetrics(cfg.metrics))
	if err != nil {
		return nil, err
	}

	cfg.logger.Debug("reader-writer opened",
		zap.Bool("created", empty), zap.Int64("nextSegment", next), zap.Int("subBlocks", subBlocks.Count()))

	return d, nil
}

func (d *ReaderWriter) isEmpty() (bool, error) {
	var b [section.SegmentHeaderSize]byte
	n, err := d.rw.Read(0, b[:])
	if err != nil {
		return false, errs.NewIOError("read", 0, int64(len(b)), err)
	}

	return n == 0, nil
}

func (d *ReaderWriter) create() error {
	guid := d.cat.cfg.fileGUID
	if guid == uuid.Nil {
		guid = uuid.New()
	}
	d.cat.header = *section.NewFileHeader(guid)
	if err := writeFileHeader(d.rw, &d.cat.header); err != nil {
		return err
	}

	d.subBlocksModified = true
	d.headerModified = true

	return nil
}

// load reads the header and directories and determines the next free
// segment position: the end of the segment that starts last.
func (d *ReaderWriter) load() (int64, error) {
	if err := d.cat.readFileHeader(); err != nil {
		return 0, err
	}

	subPl, attPl, err := d.cat.loadDirectories()
	if err != nil {
		return 0, err
	}
	d.subBlockDir, d.attachmentDir = subPl, attPl
	if subPl == nil {
		d.subBlocksModified = true
	}

	if pos := d.cat.header.MetadataPosition; pos != 0 {
		p, err := d.cat.placement(pos, section.IDMetadata)
		if err != nil {
			return 0, err
		}
		d.metadata = &p
	}

	last := layout.Placement{Offset: 0, AllocatedSize: section.FileHeaderDataSize}
	lastID := ""
	consider := func(pos int64, id string) {
		if pos > last.Offset {
			last.Offset, lastID = pos, id
		}
	}
	d.cat.subBlocks.EnumerateAll(func(_ int, e *directory.SubBlockEntry) bool {
		consider(e.FilePosition, section.IDSubBlock)
		return true
	})
	d.cat.attachments.EnumerateAll(func(_ int, e *directory.AttachmentEntry) bool {
		consider(e.FilePosition, section.IDAttachment)
		return true
	})
	for _, p := range []*layout.Placement{d.subBlockDir, d.attachmentDir, d.metadata} {
		if p != nil && p.Offset > last.Offset {
			last, lastID = *p, ""
		}
	}

	if lastID != "" {
		last, err = d.cat.placement(last.Offset, lastID)
		if err != nil {
			return 0, err
		}
	}

	return section.AlignSegmentSize(last.End()), nil
}

func (d *ReaderWriter) checkOperational() error {
	if d.closed {
		return fmt.Errorf("%w: reader-writer is closed", errs.ErrNotOperational)
	}

	return nil
}

// FileHeader returns the current file header.
func (d *ReaderWriter) FileHeader() section.FileHeader {
	return d.cat.header
}

// AddSubBlock validates the sub-block and appends its segment. Nothing is
// written when validation fails.
func (d *ReaderWriter) AddSubBlock(info AddSubBlockInfo) (int, error) {
	if err := d.checkOperational(); err != nil {
		return -1, err
	}

	e := info.entry()
	if err := checkGeometry(&e); err != nil {
		return -1, err
	}
	idx, err := d.cat.subBlocks.Add(e)
	if err != nil {
		return -1, err
	}

	var p layout.Placement
	err = withSubBlockPayload(&e, &info, func(payload []byte) error {
		var err error
		p, err = d.engine.Append(section.IDSubBlock, payload)

		return err
	})
	if err != nil {
		_ = d.cat.subBlocks.Remove(idx)
		return -1, err
	}

	_ = d.cat.subBlocks.Update(idx, func(e *directory.SubBlockEntry) { e.FilePosition = p.Offset })
	d.subBlocksModified = true
	d.cat.cfg.metrics.SubBlocksWritten.Inc()

	return idx, nil
}

// AddSubBlockBitmap adds a sub-block whose pixels come from bm, see
// Writer.AddSubBlockBitmap.
func (d *ReaderWriter) AddSubBlockBitmap(info AddSubBlockInfo, bm *bitmap.Bitmap, params compress.Parameters) (int, error) {
	if err := d.checkOperational(); err != nil {
		return -1, err
	}

	var idx int
	err := withBitmapData(d.cat.cfg, &info, bm, params, func(info *AddSubBlockInfo) error {
		var err error
		idx, err = d.AddSubBlock(*info)

		return err
	})
	if err != nil {
		return -1, err
	}

	return idx, nil
}

// ReplaceSubBlock replaces the sub-block at index. The index stays valid.
//
// Returns:
//   - error: ErrInvalidSubBlockID, coordinate validation errors, I/O errors
func (d *ReaderWriter) ReplaceSubBlock(index int, info AddSubBlockInfo) error {
	if err := d.checkOperational(); err != nil {
		return err
	}

	old, ok := d.cat.subBlocks.Get(index)
	if !ok {
		return fmt.Errorf("%w: %d", errs.ErrInvalidSubBlockID, index)
	}

	e := info.entry()
	if err := checkGeometry(&e); err != nil {
		return err
	}
	oldPl, err := d.cat.placement(old.FilePosition, section.IDSubBlock)
	if err != nil {
		return err
	}
	if err := d.cat.subBlocks.Replace(index, e); err != nil {
		return err
	}

	var p layout.Placement
	err = withSubBlockPayload(&e, &info, func(payload []byte) error {
		var err error
		p, _, err = d.engine.Replace(oldPl, section.IDSubBlock, payload)

		return err
	})
	if err != nil {
		_ = d.cat.subBlocks.Replace(index, old)
		return err
	}

	_ = d.cat.subBlocks.Update(index, func(e *directory.SubBlockEntry) { e.FilePosition = p.Offset })
	d.subBlocksModified = true
	d.cat.cfg.metrics.SubBlocksWritten.Inc()

	return nil
}

// RemoveSubBlock tombstones the sub-block segment and removes the entry.
func (d *ReaderWriter) RemoveSubBlock(index int) error {
	if err := d.checkOperational(); err != nil {
		return err
	}

	e, ok := d.cat.subBlocks.Get(index)
	if !ok {
		return fmt.Errorf("%w: %d", errs.ErrInvalidSubBlockID, index)
	}
	p, err := d.cat.placement(e.FilePosition, section.IDSubBlock)
	if err != nil {
		return err
	}
	if err := d.engine.Tombstone(p); err != nil {
		return err
	}

	_ = d.cat.subBlocks.Remove(index)
	d.subBlocksModified = true

	return nil
}

// AddAttachment appends an attachment segment.
func (d *ReaderWriter) AddAttachment(info AddAttachmentInfo) (int, error) {
	if err := d.checkOperational(); err != nil {
		return -1, err
	}

	idx, err := d.cat.attachments.Add(info.entry())
	if err != nil {
		return -1, err
	}
	e, _ := d.cat.attachments.Get(idx)

	var p layout.Placement
	err = withAttachmentPayload(&e, info.Data, func(payload []byte) error {
		var err error
		p, err = d.engine.Append(section.IDAttachment, payload)

		return err
	})
	if err != nil {
		_ = d.cat.attachments.Remove(idx)
		return -1, err
	}

	_ = d.cat.attachments.Update(idx, func(e *directory.AttachmentEntry) { e.FilePosition = p.Offset })
	d.attachmentsModified = true

	return idx, nil
}

// ReplaceAttachment replaces the attachment at index.
func (d *ReaderWriter) ReplaceAttachment(index int, info AddAttachmentInfo) error {
	if err := d.checkOperational(); err != nil {
		return err
	}

	old, ok := d.cat.attachments.Get(index)
	if !ok {
		return fmt.Errorf("%w: %d", errs.ErrInvalidAttachmentID, index)
	}
	oldPl, err := d.cat.placement(old.FilePosition, section.IDAttachment)
	if err != nil {
		return err
	}
	if err := d.cat.attachments.Replace(index, info.entry()); err != nil {
		return err
	}
	e, _ := d.cat.attachments.Get(index)

	var p layout.Placement
	err = withAttachmentPayload(&e, info.Data, func(payload []byte) error {
		var err error
		p, _, err = d.engine.Replace(oldPl, section.IDAttachment, payload)

		return err
	})
	if err != nil {
		_ = d.cat.attachments.Replace(index, old)
		return err
	}

	_ = d.cat.attachments.Update(index, func(e *directory.AttachmentEntry) { e.FilePosition = p.Offset })
	d.attachmentsModified = true

	return nil
}

// RemoveAttachment tombstones the attachment segment and removes the entry.
func (d *ReaderWriter) RemoveAttachment(index int) error {
	if err := d.checkOperational(); err != nil {
		return err
	}

	e, ok := d.cat.attachments.Get(index)
	if !ok {
		return fmt.Errorf("%w: %d", errs.ErrInvalidAttachmentID, index)
	}
	p, err := d.cat.placement(e.FilePosition, section.IDAttachment)
	if err != nil {
		return err
	}
	if err := d.engine.Tombstone(p); err != nil {
		return err
	}

	_ = d.cat.attachments.Remove(index)
	d.attachmentsModified = true

	return nil
}

// WriteMetadata writes the metadata segment, reusing the space of the
// existing one when the new content fits.
func (d *ReaderWriter) WriteMetadata(info WriteMetadataInfo) error {
	if err := d.checkOperational(); err != nil {
		return err
	}

	payload, err := metadataPayload(&info)
	if err != nil {
		return err
	}

	var p layout.Placement
	if d.metadata != nil {
		p, _, err = d.engine.Replace(*d.metadata, section.IDMetadata, payload)
	} else {
		p, err = d.engine.Append(section.IDMetadata, payload)
	}
	if err != nil {
		return err
	}

	d.metadata = &p
	if d.cat.header.MetadataPosition != p.Offset {
		d.cat.header.MetadataPosition = p.Offset
		d.headerModified = true
	}

	return nil
}

// SubBlockCount returns the number of sub-blocks.
func (d *ReaderWriter) SubBlockCount() int {
	return d.cat.subBlocks.Count()
}

// SubBlockInfo returns the directory entry of a sub-block.
func (d *ReaderWriter) SubBlockInfo(index int) (directory.SubBlockEntry, bool) {
	return d.cat.subBlocks.Get(index)
}

// EnumerateSubBlocks calls fn for every sub-block until fn returns false.
func (d *ReaderWriter) EnumerateSubBlocks(fn func(index int, e *directory.SubBlockEntry) bool) error {
	if err := d.checkOperational(); err != nil {
		return err
	}
	d.cat.subBlocks.EnumerateAll(fn)

	return nil
}

// EnumerateSubBlockSubset calls fn for the sub-blocks in plane whose logical
// rectangle intersects roi.
func (d *ReaderWriter) EnumerateSubBlockSubset(plane dims.Coordinate, roi *geom.IntRect, onlyLayer0 bool, fn func(index int, e *directory.SubBlockEntry) bool) error {
	if err := d.checkOperational(); err != nil {
		return err
	}
	d.cat.subBlocks.EnumerateSubset(plane, roi, onlyLayer0, fn)

	return nil
}

// Statistics returns the statistics of the current sub-blocks.
func (d *ReaderWriter) Statistics() directory.Statistics {
	return d.cat.subBlocks.Statistics()
}

// PyramidStatistics returns the pyramid layers of the current sub-blocks.
func (d *ReaderWriter) PyramidStatistics() directory.PyramidStatistics {
	return d.cat.subBlocks.PyramidStatistics()
}

// ReadSubBlock reads a sub-block segment.
func (d *ReaderWriter) ReadSubBlock(index int) (*SubBlock, error) {
	if err := d.checkOperational(); err != nil {
		return nil, err
	}

	return d.cat.readSubBlock(index)
}

// AttachmentCount returns the number of attachments.
func (d *ReaderWriter) AttachmentCount() int {
	return d.cat.attachments.Count()
}

// EnumerateAttachments calls fn for every attachment until fn returns false.
func (d *ReaderWriter) EnumerateAttachments(fn func(index int, e *directory.AttachmentEntry) bool) error {
	if err := d.checkOperational(); err != nil {
		return err
	}
	d.cat.attachments.EnumerateAll(fn)

	return nil
}

// ReadAttachment reads an attachment segment.
func (d *ReaderWriter) ReadAttachment(index int) (*Attachment, error) {
	if err := d.checkOperational(); err != nil {
		return nil, err
	}

	return d.cat.readAttachment(index)
}

// ReadMetadataSegment reads the document metadata.
func (d *ReaderWriter) ReadMetadataSegment() (*MetadataSegment, error) {
	if err := d.checkOperational(); err != nil {
		return nil, err
	}

	return d.cat.readMetadataSegment()
}

// TransformPoint converts p into the target frame, using the bounding box of
// the current sub-blocks.
func (d *ReaderWriter) TransformPoint(p geom.PointAndFrame, target format.FrameOfReference) (geom.PointAndFrame, error) {
	return d.cat.transformPoint(p, target)
}

// TransformRect converts rect into the target frame, using the bounding box
// of the current sub-blocks.
func (d *ReaderWriter) TransformRect(rect geom.RectAndFrame, target format.FrameOfReference) (geom.RectAndFrame, error) {
	return d.cat.transformRect(rect, target)
}

// Close writes fresh directories for what changed and updates the file
// header. A second call fails with ErrNotOperational.
func (d *ReaderWriter) Close() error {
	if err := d.checkOperational(); err != nil {
		return err
	}
	d.closed = true

	if d.subBlocksModified {
		p, err := d.rewriteDirectory(d.subBlockDir, section.IDSubBlockDirectory, func(place func([]byte) (layout.Placement, error)) (layout.Placement, error) {
			return writeSubBlockDirectory(d.cat.subBlocks, place)
		})
		if err != nil {
			return err
		}
		d.cat.header.SubBlockDirectoryPosition = p.Offset
		d.headerModified = true
	}

	if d.attachmentsModified {
		p, err := d.rewriteDirectory(d.attachmentDir, section.IDAttachmentDirectory, func(place func([]byte) (layout.Placement, error)) (layout.Placement, error) {
			return writeAttachmentDirectory(d.cat.attachments, place)
		})
		if err != nil {
			return err
		}
		d.cat.header.AttachmentDirectoryPosition = p.Offset
		d.headerModified = true
	}

	if d.headerModified {
		if err := writeFileHeader(d.rw, &d.cat.header); err != nil {
			return err
		}
	}

	return syncStream(d.rw)
}

func (d *ReaderWriter) rewriteDirectory(old *layout.Placement, id string, write func(place func([]byte) (layout.Placement, error)) (layout.Placement, error)) (layout.Placement, error) {
	if old != nil {
		if err := d.engine.Tombstone(*old); err != nil {
			return layout.Placement{}, err
		}
	}

	p, err := write(func(payload []byte) (layout.Placement, error) {
		return d.engine.Append(id, payload)
	})
	if err != nil {
		return layout.Placement{}, err
	}
	d.cat.cfg.logger.Debug("directory written", zap.String("id", id), zap.Int64("offset", p.Offset))

	return p, nil
}
