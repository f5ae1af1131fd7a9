package section

import (
	"github.com/arloliu/czi/endian"
	"github.com/arloliu/czi/errs"
)

// SubBlockData is the fixed part of a ZISRAWSUBBLOCK payload. It is followed
// by MetadataSize bytes of metadata, DataSize bytes of pixel data and
// AttachmentSize bytes of attachment.
type SubBlockData struct {
	MetadataSize   int32           // byte offset 0-3
	AttachmentSize int32           // byte offset 4-7
	DataSize       int64           // byte offset 8-15
	Entry          SubBlockEntryDV // byte offset 16-...
}

// FixedSize returns the size of the fixed part: the DV entry plus 16 bytes,
// but at least 256 bytes.
func (d *SubBlockData) FixedSize() int {
	return max(SubBlockDataMinFixedSize, SubBlockDataEntryOffset+d.Entry.Size())
}

// UsedSize returns the total payload size.
func (d *SubBlockData) UsedSize() int64 {
	return int64(d.FixedSize()) + int64(d.MetadataSize) + d.DataSize + int64(d.AttachmentSize)
}

// Parse parses the fixed part from data, which must hold at least the fixed part.
func (d *SubBlockData) Parse(data []byte) error {
	if len(data) < SubBlockDataEntryOffset+SubBlockEntryDVFixed {
		return errs.NewParseError(errs.ParseNotEnoughData, "sub-block segment too short (%d bytes)", len(data))
	}

	engine := endian.GetLittleEndianEngine()
	d.MetadataSize = endian.Int32(engine, data[0:4])
	d.AttachmentSize = endian.Int32(engine, data[4:8])
	d.DataSize = endian.Int64(engine, data[8:16])
	if d.MetadataSize < 0 || d.AttachmentSize < 0 || d.DataSize < 0 {
		return errs.NewParseError(errs.ParseCorruptedData, "sub-block segment has negative sizes")
	}

	return d.Entry.Parse(data[SubBlockDataEntryOffset:])
}

// Bytes serializes the fixed part (FixedSize bytes).
func (d *SubBlockData) Bytes() []byte {
	b := make([]byte, d.FixedSize())
	engine := endian.GetLittleEndianEngine()
	endian.PutInt32(engine, b[0:4], d.MetadataSize)
	endian.PutInt32(engine, b[4:8], d.AttachmentSize)
	endian.PutInt64(engine, b[8:16], d.DataSize)
	d.Entry.PutBytes(b[SubBlockDataEntryOffset:])

	return b
}

// AttachmentData is the fixed part of a ZISRAWATTACH payload (256 bytes),
// followed by DataSize bytes of attachment content.
type AttachmentData struct {
	DataSize int64             // byte offset 0-7
	Entry    AttachmentEntryA1 // byte offset 16-143
}

// UsedSize returns the total payload size.
func (d *AttachmentData) UsedSize() int64 {
	return AttachmentDataFixedSize + d.DataSize
}

// Parse parses the fixed part from a slice of at least 256 bytes.
func (d *AttachmentData) Parse(data []byte) error {
	if len(data) < AttachmentDataFixedSize {
		return errs.NewParseError(errs.ParseNotEnoughData, "attachment segment too short (%d bytes)", len(data))
	}

	engine := endian.GetLittleEndianEngine()
	d.DataSize = endian.Int64(engine, data[0:8])
	if d.DataSize < 0 {
		return errs.NewParseError(errs.ParseCorruptedData, "attachment segment has negative size")
	}

	return d.Entry.Parse(data[16 : 16+AttachmentEntrySize])
}

// Bytes serializes the fixed part.
func (d *AttachmentData) Bytes() []byte {
	b := make([]byte, AttachmentDataFixedSize)
	endian.PutInt64(endian.GetLittleEndianEngine(), b[0:8], d.DataSize)
	d.Entry.PutBytes(b[16:])

	return b
}

// MetadataData is the fixed part of a ZISRAWMETADATA payload (256 bytes),
// followed by XMLSize bytes of UTF-8 XML and AttachmentSize bytes of attachment.
type MetadataData struct {
	XMLSize        int32 // byte offset 0-3
	AttachmentSize int32 // byte offset 4-7
}

// UsedSize returns the total payload size.
func (d *MetadataData) UsedSize() int64 {
	return MetadataDataFixedSize + int64(d.XMLSize) + int64(d.AttachmentSize)
}

// Parse parses the fixed part from a slice of at least 256 bytes.
func (d *MetadataData) Parse(data []byte) error {
	if len(data) < MetadataDataFixedSize {
		return errs.NewParseError(errs.ParseNotEnoughData, "metadata segment too short (%d bytes)", len(data))
	}

	engine := endian.GetLittleEndianEngine()
	d.XMLSize = endian.Int32(engine, data[0:4])
	d.AttachmentSize = endian.Int32(engine, data[4:8])
	if d.XMLSize < 0 || d.AttachmentSize < 0 {
		return errs.NewParseError(errs.ParseCorruptedData, "metadata segment has negative sizes")
	}

	return nil
}

// Bytes serializes the fixed part.
func (d *MetadataData) Bytes() []byte {
	b := make([]byte, MetadataDataFixedSize)
	engine := endian.GetLittleEndianEngine()
	endian.PutInt32(engine, b[0:4], d.XMLSize)
	endian.PutInt32(engine, b[4:8], d.AttachmentSize)

	return b
}

// DirectoryHeader is the fixed part of both directory payloads: an entry
// count followed by padding. The padding differs per directory kind.
type DirectoryHeader struct {
	EntryCount int32
}

// Parse parses the entry count from data.
func (d *DirectoryHeader) Parse(data []byte) error {
	if len(data) < 4 {
		return errs.NewParseError(errs.ParseNotEnoughData, "directory segment too short (%d bytes)", len(data))
	}

	d.EntryCount = endian.Int32(endian.GetLittleEndianEngine(), data[0:4])
	if d.EntryCount < 0 {
		return errs.NewParseError(errs.ParseCorruptedData, "directory has negative entry count %d", d.EntryCount)
	}

	return nil
}

// Bytes serializes the header padded to fixedSize bytes.
func (d *DirectoryHeader) Bytes(fixedSize int) []byte {
	b := make([]byte, fixedSize)
	endian.PutInt32(endian.GetLittleEndianEngine(), b[0:4], d.EntryCount)

	return b
}
