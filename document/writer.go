package document

import (
	"errors"
	"fmt"

	"github.com/arloliu/czi/bitmap"
	"github.com/arloliu/czi/compress"
	"github.com/arloliu/czi/directory"
	"github.com/arloliu/czi/errs"
	"github.com/arloliu/czi/format"
	"github.com/arloliu/czi/layout"
	"github.com/arloliu/czi/section"
	"github.com/arloliu/czi/stream"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Writer creates a new document. Sub-blocks and attachments are appended as
// they are added; the directories and the final file header are written by
// Close. A document whose Writer was never closed has no directories.
type Writer struct {
	out         stream.OutputStream
	cfg         *config
	engine      *layout.Engine
	header      *section.FileHeader
	subBlocks   *directory.SubBlockDirectory
	attachments *directory.AttachmentDirectory
	metadata    *layout.Placement
	closed      bool
}

// NewWriter writes the file header and the requested reservations to out.
//
// Parameters:
//   - out: Stream to write to, expected to be empty
//   - opts: Bounds, duplicate handling, reservations, file GUID, logger, metrics
//
// Returns:
//   - *Writer: The writer
//   - error: Option errors or I/O errors
func NewWriter(out stream.OutputStream, opts ...WriterOption) (*Writer, error) {
	if out == nil {
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

	guid := cfg.fileGUID
	if guid == uuid.Nil {
		guid = uuid.New()
	}

	w := &Writer{
		out:         out,
		cfg:         cfg,
		header:      section.NewFileHeader(guid),
		subBlocks:   subBlocks,
		attachments: directory.NewAttachmentDirectory(!cfg.allowDuplicateAttachments),
	}
	if err := writeFileHeader(out, w.header); err != nil {
		return nil, err
	}

	w.engine, err = layout.New(out, fileHeaderSegmentSize, layout.WithLogger(cfg.logger), layout.WithMetrics(cfg.metrics))
	if err != nil {
		return nil, err
	}
	if err := w.reserve(); err != nil {
		return nil, err
	}

	cfg.logger.Debug("writer created", zap.Stringer("fileGUID", guid))

	return w, nil
}

func (w *Writer) reserve() error {
	if w.cfg.reserveAttachmentDir >= 0 {
		if _, err := w.engine.Reserve(section.IDAttachmentDirectory, w.cfg.attachmentDirectoryReservation()); err != nil {
			return err
		}
	}
	if w.cfg.reserveSubBlockDir >= 0 {
		if _, err := w.engine.Reserve(section.IDSubBlockDirectory, w.cfg.subBlockDirectoryReservation()); err != nil {
			return err
		}
	}
	if w.cfg.reserveMetadata >= 0 {
		if _, err := w.engine.Reserve(section.IDMetadata, w.cfg.metadataReservation()); err != nil {
			return err
		}
	}

	return nil
}

func (w *Writer) checkOperational() error {
	if w.closed {
		return fmt.Errorf("%w: writer is closed", errs.ErrNotOperational)
	}

	return nil
}

// FileGUID returns the GUID written into the file header.
func (w *Writer) FileGUID() uuid.UUID {
	return w.header.FileGUID
}

// AddSubBlock validates the sub-block against the bounds and the existing
// sub-blocks and appends its segment. Nothing is written when validation
// fails.
//
// Returns:
//   - int: Index of the sub-block in the directory
//   - error: ErrNotOperational, coordinate validation errors,
//     ErrAddCoordinateAlreadyExisting, ErrGetDataCall or I/O errors
func (w *Writer) AddSubBlock(info AddSubBlockInfo) (int, error) {
	if err := w.checkOperational(); err != nil {
		return -1, err
	}

	e := info.entry()
	if err := checkGeometry(&e); err != nil {
		return -1, err
	}
	idx, err := w.subBlocks.Add(e)
	if err != nil {
		return -1, err
	}

	var p layout.Placement
	err = withSubBlockPayload(&e, &info, func(payload []byte) error {
		var err error
		p, err = w.engine.Append(section.IDSubBlock, payload)

		return err
	})
	if err != nil {
		_ = w.subBlocks.Remove(idx)
		return -1, err
	}

	_ = w.subBlocks.Update(idx, func(e *directory.SubBlockEntry) { e.FilePosition = p.Offset })
	w.cfg.metrics.SubBlocksWritten.Inc()

	return idx, nil
}

// AddSubBlockBitmap adds a sub-block whose pixels come from bm. Pixel type
// and physical size are taken from the bitmap; an empty logical rectangle
// size is set to the physical size. The pixels are encoded with the codec for
// info.Compression and stored uncompressed if that codec cannot make them
// smaller.
func (w *Writer) AddSubBlockBitmap(info AddSubBlockInfo, bm *bitmap.Bitmap, params compress.Parameters) (int, error) {
	if err := w.checkOperational(); err != nil {
		return -1, err
	}

	var idx int
	err := withBitmapData(w.cfg, &info, bm, params, func(info *AddSubBlockInfo) error {
		var err error
		idx, err = w.AddSubBlock(*info)

		return err
	})
	if err != nil {
		return -1, err
	}

	return idx, nil
}

// AddAttachment appends an attachment segment.
//
// Returns:
//   - int: Index of the attachment in the directory
//   - error: ErrNotOperational, ErrAddAttachmentAlreadyExisting or I/O errors
func (w *Writer) AddAttachment(info AddAttachmentInfo) (int, error) {
	if err := w.checkOperational(); err != nil {
		return -1, err
	}

	idx, err := w.attachments.Add(info.entry())
	if err != nil {
		return -1, err
	}
	e, _ := w.attachments.Get(idx)

	var p layout.Placement
	err = withAttachmentPayload(&e, info.Data, func(payload []byte) error {
		var err error
		p, err = w.engine.Append(section.IDAttachment, payload)

		return err
	})
	if err != nil {
		_ = w.attachments.Remove(idx)
		return -1, err
	}

	_ = w.attachments.Update(idx, func(e *directory.AttachmentEntry) { e.FilePosition = p.Offset })

	return idx, nil
}

// WriteMetadata writes the metadata segment. It goes into the reserved slot
// if there is one and it fits. Writing it again overwrites the previous
// segment in place when the new content fits and relocates it otherwise.
func (w *Writer) WriteMetadata(info WriteMetadataInfo) error {
	if err := w.checkOperational(); err != nil {
		return err
	}

	payload, err := metadataPayload(&info)
	if err != nil {
		return err
	}

	var p layout.Placement
	if w.metadata != nil {
		p, _, err = w.engine.Replace(*w.metadata, section.IDMetadata, payload)
	} else {
		p, err = w.engine.Add(section.IDMetadata, payload)
	}
	if err != nil {
		return err
	}

	w.metadata = &p
	w.header.MetadataPosition = p.Offset

	return nil
}

// Close writes the sub-block directory, the attachment directory if there are
// attachments or a reserved slot for it, and the final file header. A second
// call fails with ErrNotOperational.
func (w *Writer) Close() error {
	if err := w.checkOperational(); err != nil {
		return err
	}
	w.closed = true

	p, err := writeSubBlockDirectory(w.subBlocks, func(payload []byte) (layout.Placement, error) {
		return w.engine.Add(section.IDSubBlockDirectory, payload)
	})
	if err != nil {
		return err
	}
	w.header.SubBlockDirectoryPosition = p.Offset
	w.cfg.logger.Debug("sub-block directory written", zap.Int64("offset", p.Offset), zap.Int("entries", w.subBlocks.Count()))

	_, reserved := w.engine.Reservation(section.IDAttachmentDirectory)
	if w.attachments.Count() > 0 || reserved {
		p, err := writeAttachmentDirectory(w.attachments, func(payload []byte) (layout.Placement, error) {
			return w.engine.Add(section.IDAttachmentDirectory, payload)
		})
		if err != nil {
			return err
		}
		w.header.AttachmentDirectoryPosition = p.Offset
		w.cfg.logger.Debug("attachment directory written", zap.Int64("offset", p.Offset), zap.Int("entries", w.attachments.Count()))
	}

	if err := writeFileHeader(w.out, w.header); err != nil {
		return err
	}

	return syncStream(w.out)
}

// withBitmapData fills info from bm and calls fn while the bitmap is locked.
func withBitmapData(cfg *config, info *AddSubBlockInfo, bm *bitmap.Bitmap, params compress.Parameters, fn func(info *AddSubBlockInfo) error) error {
	if bm == nil {
		return fmt.Errorf("%w: nil bitmap", errs.ErrInvalidArgument)
	}

	info.PixelType = bm.PixelType()
	info.PhysicalSize = bm.Size()
	if info.LogicalRect.W == 0 && info.LogicalRect.H == 0 {
		info.LogicalRect.W, info.LogicalRect.H = bm.Width(), bm.Height()
	}

	lck := bm.Lock()
	defer lck.Unlock() //nolint:errcheck

	lineSize := bm.Width() * bm.PixelType().BytesPerPixel()
	if info.Compression == format.CompressionUnCompressed {
		info.Data = StridedPayload(lck.Data, lck.Stride, lineSize, bm.Height())
		return fn(info)
	}

	encoded, err := cfg.registry.Compress(info.Compression, bm.PixelType(), bm.Width(), bm.Height(), lck.Stride, lck.Data, params)
	switch {
	case err == nil:
		info.Data = BytesPayload(encoded)
	case errors.Is(err, errs.ErrCodec):
		cfg.logger.Debug("storing sub-block uncompressed",
			zap.Stringer("compression", info.Compression), zap.Error(err))
		info.Compression = format.CompressionUnCompressed
		info.Data = StridedPayload(lck.Data, lck.Stride, lineSize, bm.Height())
	default:
		return err
	}

	return fn(info)
}
