package document

import (
	"fmt"
	"math"

	"github.com/arloliu/czi/directory"
	"github.com/arloliu/czi/errs"
	"github.com/arloliu/czi/format"
	"github.com/arloliu/czi/geom"
	"github.com/arloliu/czi/internal/pool"
	"github.com/arloliu/czi/layout"
	"github.com/arloliu/czi/section"
	"github.com/arloliu/czi/stream"
	"go.uber.org/zap"
)

// fileHeaderSegmentSize is the size of the file header segment and the
// position of the first segment after it.
const fileHeaderSegmentSize = section.SegmentHeaderSize + section.FileHeaderDataSize

func writeFileHeader(out stream.OutputStream, h *section.FileHeader) error {
	hdr := section.NewSegmentHeader(section.IDFile, section.FileHeaderDataSize)
	b := make([]byte, 0, fileHeaderSegmentSize)
	b = append(b, hdr.Bytes()...)
	b = append(b, h.Bytes()...)

	return stream.WriteFull(out, 0, b)
}

type syncer interface {
	Sync() error
}

func syncStream(s any) error {
	if f, ok := s.(syncer); ok {
		return f.Sync()
	}

	return nil
}

func checkGeometry(e *directory.SubBlockEntry) error {
	if e.LogicalRect.W < 0 || e.LogicalRect.H < 0 || e.PhysicalSize.W <= 0 || e.PhysicalSize.H <= 0 {
		return fmt.Errorf("%w: logical rect %v, physical size %v", errs.ErrInvalidArgument, e.LogicalRect, e.PhysicalSize)
	}
	if e.PixelType.BytesPerPixel() <= 0 {
		return fmt.Errorf("%w: pixel type %s", errs.ErrInvalidArgument, e.PixelType)
	}

	return nil
}

// withSubBlockPayload assembles the payload of a ZISRAWSUBBLOCK segment for e
// and passes it to fn. The payload is only valid during fn.
func withSubBlockPayload(e *directory.SubBlockEntry, info *AddSubBlockInfo, fn func(payload []byte) error) error {
	for _, p := range []Payload{info.Metadata, info.Data, info.Attachment} {
		if err := p.validate(); err != nil {
			return err
		}
	}
	if info.Metadata.Size() > math.MaxInt32 || info.Attachment.Size() > math.MaxInt32 {
		return fmt.Errorf("%w: metadata or attachment larger than 2 GiB", errs.ErrInvalidArgument)
	}

	dv := e.ToDV()
	dv.FilePosition = 0
	sd := section.SubBlockData{
		MetadataSize:   int32(info.Metadata.Size()),   //nolint:gosec
		AttachmentSize: int32(info.Attachment.Size()), //nolint:gosec
		DataSize:       info.Data.Size(),
		Entry:          dv,
	}

	buf := pool.GetSegmentBuffer()
	defer pool.PutSegmentBuffer(buf)

	buf.MustWrite(sd.Bytes())
	for _, p := range []Payload{info.Metadata, info.Data, info.Attachment} {
		if err := p.writeTo(buf); err != nil {
			return err
		}
	}

	return fn(buf.Bytes())
}

// withAttachmentPayload assembles the payload of a ZISRAWATTACH segment.
func withAttachmentPayload(e *directory.AttachmentEntry, data Payload, fn func(payload []byte) error) error {
	if err := data.validate(); err != nil {
		return err
	}

	a1 := e.ToA1()
	a1.FilePosition = 0
	ad := section.AttachmentData{DataSize: data.Size(), Entry: a1}

	buf := pool.GetSegmentBuffer()
	defer pool.PutSegmentBuffer(buf)

	buf.MustWrite(ad.Bytes())
	if err := data.writeTo(buf); err != nil {
		return err
	}

	return fn(buf.Bytes())
}

func metadataPayload(info *WriteMetadataInfo) ([]byte, error) {
	if len(info.XML) > math.MaxInt32 || len(info.Attachment) > math.MaxInt32 {
		return nil, fmt.Errorf("%w: metadata larger than 2 GiB", errs.ErrInvalidArgument)
	}

	md := section.MetadataData{
		XMLSize:        int32(len(info.XML)),        //nolint:gosec
		AttachmentSize: int32(len(info.Attachment)), //nolint:gosec
	}
	b := make([]byte, 0, md.UsedSize())
	b = append(b, md.Bytes()...)
	b = append(b, info.XML...)

	return append(b, info.Attachment...), nil
}

// writeSubBlockDirectory serializes d and places it with place.
func writeSubBlockDirectory(d *directory.SubBlockDirectory, place func(payload []byte) (layout.Placement, error)) (layout.Placement, error) {
	buf := pool.GetDirectoryBuffer()
	defer pool.PutDirectoryBuffer(buf)

	hdr := section.DirectoryHeader{EntryCount: int32(d.Count())} //nolint:gosec
	buf.MustWrite(hdr.Bytes(section.SubBlockDirectoryDataFixedSize))
	d.EnumerateAll(func(_ int, e *directory.SubBlockEntry) bool {
		dv := e.ToDV()
		dv.PutBytes(buf.Reserve(dv.Size()))

		return true
	})

	return place(buf.Bytes())
}

func writeAttachmentDirectory(d *directory.AttachmentDirectory, place func(payload []byte) (layout.Placement, error)) (layout.Placement, error) {
	buf := pool.GetDirectoryBuffer()
	defer pool.PutDirectoryBuffer(buf)

	hdr := section.DirectoryHeader{EntryCount: int32(d.Count())} //nolint:gosec
	buf.MustWrite(hdr.Bytes(section.AttachmentDirectoryDataFixedSize))
	d.EnumerateAll(func(_ int, e *directory.AttachmentEntry) bool {
		a1 := e.ToA1()
		a1.PutBytes(buf.Reserve(section.AttachmentEntrySize))

		return true
	})

	return place(buf.Bytes())
}

// catalog is the read side shared by Reader and ReaderWriter: the file header,
// both directories and the segment readers.
type catalog struct {
	in          stream.InputStream
	cfg         *config
	header      section.FileHeader
	subBlocks   *directory.SubBlockDirectory
	attachments *directory.AttachmentDirectory
}

func (c *catalog) readAt(offset int64, p []byte) error {
	if err := stream.ReadFull(c.in, offset, p); err != nil {
		return err
	}
	c.cfg.metrics.BytesRead.Add(float64(len(p)))

	return nil
}

func (c *catalog) readFileHeader() error {
	b := make([]byte, fileHeaderSegmentSize)
	if err := c.readAt(0, b); err != nil {
		return err
	}

	hdr, err := section.ParseSegmentHeader(b)
	if err != nil {
		return err
	}
	if err := hdr.Validate(section.IDFile); err != nil {
		return err
	}

	h, err := section.ParseFileHeader(b[section.SegmentHeaderSize:])
	if err != nil {
		return err
	}
	c.header = h

	return nil
}

// placement reads the segment header at pos and checks its id.
func (c *catalog) placement(pos int64, id string) (layout.Placement, error) {
	var b [section.SegmentHeaderSize]byte
	if err := c.readAt(pos, b[:]); err != nil {
		return layout.Placement{}, err
	}

	hdr, err := section.ParseSegmentHeader(b[:])
	if err != nil {
		return layout.Placement{}, err
	}
	if err := hdr.Validate(id); err != nil {
		return layout.Placement{}, err
	}

	return layout.Placement{Offset: pos, AllocatedSize: hdr.AllocatedSize, UsedSize: hdr.UsedSize}, nil
}

// segment reads the segment at pos. A used size of zero is taken as the
// allocated size.
func (c *catalog) segment(pos int64, id string) (layout.Placement, []byte, error) {
	p, err := c.placement(pos, id)
	if err != nil {
		return layout.Placement{}, nil, err
	}

	size := p.UsedSize
	if size == 0 {
		size = p.AllocatedSize
	}
	payload, err := stream.ReadSized(c.in, pos+section.SegmentHeaderSize, size)
	if err != nil {
		return layout.Placement{}, nil, err
	}
	c.cfg.metrics.BytesRead.Add(float64(len(payload)))

	return p, payload, nil
}

// fitsIn reports whether parts of the given sizes, laid out back to back from
// off, all lie within a payload of length n. It does not overflow on corrupt
// sizes.
func fitsIn(n, off int64, sizes ...int64) bool {
	if off < 0 || off > n {
		return false
	}
	for _, size := range sizes {
		if size < 0 || size > n-off {
			return false
		}
		off += size
	}

	return true
}

// loadDirectories reads both directories referenced by the file header.
//
// Returns:
//   - *layout.Placement: The sub-block directory segment, nil if absent
//   - *layout.Placement: The attachment directory segment, nil if absent
//   - error: I/O or parse errors
func (c *catalog) loadDirectories() (*layout.Placement, *layout.Placement, error) {
	var subPl, attPl *layout.Placement

	if pos := c.header.SubBlockDirectoryPosition; pos != 0 {
		p, err := c.loadSubBlockDirectory(pos)
		if err != nil {
			return nil, nil, err
		}
		subPl = &p
	}

	if pos := c.header.AttachmentDirectoryPosition; pos != 0 {
		p, err := c.loadAttachmentDirectory(pos)
		if err != nil {
			return nil, nil, err
		}
		attPl = &p
	}

	c.cfg.logger.Debug("directories loaded",
		zap.Int("subBlocks", c.subBlocks.Count()), zap.Int("attachments", c.attachments.Count()))

	return subPl, attPl, nil
}

func (c *catalog) loadSubBlockDirectory(pos int64) (layout.Placement, error) {
	p, payload, err := c.segment(pos, section.IDSubBlockDirectory)
	if err != nil {
		return layout.Placement{}, err
	}

	var hdr section.DirectoryHeader
	if err := hdr.Parse(payload); err != nil {
		return layout.Placement{}, err
	}
	if len(payload) < section.SubBlockDirectoryDataFixedSize {
		return layout.Placement{}, errs.NewParseError(errs.ParseNotEnoughData, "sub-block directory of %d bytes", len(payload))
	}

	off := section.SubBlockDirectoryDataFixedSize
	for i := range int(hdr.EntryCount) {
		dv, err := section.ParseSubBlockEntryDV(payload[off:])
		if err != nil {
			return layout.Placement{}, fmt.Errorf("sub-block directory entry %d: %w", i, err)
		}
		e, err := directory.EntryFromDV(&dv)
		if err != nil {
			return layout.Placement{}, fmt.Errorf("sub-block directory entry %d: %w", i, err)
		}
		c.subBlocks.Append(e)
		off += dv.Size()
	}

	return p, nil
}

func (c *catalog) loadAttachmentDirectory(pos int64) (layout.Placement, error) {
	p, payload, err := c.segment(pos, section.IDAttachmentDirectory)
	if err != nil {
		return layout.Placement{}, err
	}

	var hdr section.DirectoryHeader
	if err := hdr.Parse(payload); err != nil {
		return layout.Placement{}, err
	}

	need := section.AttachmentDirectoryDataFixedSize + int(hdr.EntryCount)*section.AttachmentEntrySize
	if len(payload) < need {
		return layout.Placement{}, errs.NewParseError(errs.ParseNotEnoughData,
			"attachment directory with %d entries needs %d bytes, got %d", hdr.EntryCount, need, len(payload))
	}

	for i := range int(hdr.EntryCount) {
		off := section.AttachmentDirectoryDataFixedSize + i*section.AttachmentEntrySize
		a1, err := section.ParseAttachmentEntryA1(payload[off:])
		if err != nil {
			return layout.Placement{}, fmt.Errorf("attachment directory entry %d: %w", i, err)
		}
		c.attachments.Append(directory.AttachmentEntryFromA1(&a1))
	}

	return p, nil
}

// warmStatistics computes the cached statistics so that concurrent readers
// only read them.
func (c *catalog) warmStatistics() {
	c.subBlocks.Statistics()
	c.subBlocks.PyramidStatistics()
}

func (c *catalog) readSubBlock(index int) (*SubBlock, error) {
	entry, ok := c.subBlocks.Get(index)
	if !ok {
		return nil, fmt.Errorf("%w: %d", errs.ErrInvalidSubBlockID, index)
	}

	_, payload, err := c.segment(entry.FilePosition, section.IDSubBlock)
	if err != nil {
		return nil, err
	}

	var sd section.SubBlockData
	if err := sd.Parse(payload); err != nil {
		return nil, err
	}
	if !fitsIn(int64(len(payload)), int64(sd.FixedSize()), int64(sd.MetadataSize), sd.DataSize, int64(sd.AttachmentSize)) {
		return nil, errs.NewParseError(errs.ParseCorruptedData,
			"sub-block at %d declares metadata %d, data %d and attachment %d bytes in a segment of %d",
			entry.FilePosition, sd.MetadataSize, sd.DataSize, sd.AttachmentSize, len(payload))
	}

	e, err := directory.EntryFromDV(&sd.Entry)
	if err != nil {
		return nil, err
	}
	e.FilePosition = entry.FilePosition
	e.FilePart = entry.FilePart

	off := int64(sd.FixedSize())
	sb := &SubBlock{Entry: e}
	sb.Metadata = payload[off : off+int64(sd.MetadataSize)]
	off += int64(sd.MetadataSize)
	sb.Data = payload[off : off+sd.DataSize]
	off += sd.DataSize
	sb.Attachment = payload[off : off+int64(sd.AttachmentSize)]

	c.cfg.metrics.SubBlocksRead.Inc()

	return sb, nil
}

func (c *catalog) readAttachment(index int) (*Attachment, error) {
	entry, ok := c.attachments.Get(index)
	if !ok {
		return nil, fmt.Errorf("%w: %d", errs.ErrInvalidAttachmentID, index)
	}

	_, payload, err := c.segment(entry.FilePosition, section.IDAttachment)
	if err != nil {
		return nil, err
	}

	var ad section.AttachmentData
	if err := ad.Parse(payload); err != nil {
		return nil, err
	}
	if !fitsIn(int64(len(payload)), section.AttachmentDataFixedSize, ad.DataSize) {
		return nil, errs.NewParseError(errs.ParseCorruptedData,
			"attachment at %d declares %d bytes in a segment of %d", entry.FilePosition, ad.DataSize, len(payload))
	}

	return &Attachment{
		Entry: entry,
		Data:  payload[section.AttachmentDataFixedSize : section.AttachmentDataFixedSize+ad.DataSize],
	}, nil
}

func (c *catalog) readMetadataSegment() (*MetadataSegment, error) {
	if c.header.MetadataPosition == 0 {
		return nil, fmt.Errorf("%w: metadata", errs.ErrSegmentNotPresent)
	}

	_, payload, err := c.segment(c.header.MetadataPosition, section.IDMetadata)
	if err != nil {
		return nil, err
	}

	var md section.MetadataData
	if err := md.Parse(payload); err != nil {
		return nil, err
	}
	if !fitsIn(int64(len(payload)), section.MetadataDataFixedSize, int64(md.XMLSize), int64(md.AttachmentSize)) {
		return nil, errs.NewParseError(errs.ParseCorruptedData,
			"metadata declares %d XML and %d attachment bytes in a segment of %d", md.XMLSize, md.AttachmentSize, len(payload))
	}

	off := int64(section.MetadataDataFixedSize)
	xmlEnd := off + int64(md.XMLSize)

	return &MetadataSegment{
		XML:        payload[off:xmlEnd],
		Attachment: payload[xmlEnd : xmlEnd+int64(md.AttachmentSize)],
	}, nil
}

// boundingBox returns the current bounding box, which anchors the pixel
// coordinate system. An empty document anchors it at the origin.
func (c *catalog) boundingBox() geom.IntRect {
	bbox := c.subBlocks.Statistics().BoundingBox
	if !bbox.IsValid() {
		return geom.IntRect{}
	}

	return bbox
}

func (c *catalog) transformPoint(p geom.PointAndFrame, target format.FrameOfReference) (geom.PointAndFrame, error) {
	return geom.TransformPoint(p, target, c.cfg.defaultFrame, c.boundingBox())
}

func (c *catalog) transformRect(r geom.RectAndFrame, target format.FrameOfReference) (geom.RectAndFrame, error) {
	return geom.TransformRect(r, target, c.cfg.defaultFrame, c.boundingBox())
}
