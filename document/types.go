package document

import (
	"github.com/arloliu/czi/bitmap"
	"github.com/arloliu/czi/compress"
	"github.com/arloliu/czi/dims"
	"github.com/arloliu/czi/directory"
	"github.com/arloliu/czi/format"
	"github.com/arloliu/czi/geom"
	"github.com/arloliu/czi/metadata"
	"github.com/google/uuid"
)

// SubBlock is a sub-block read from a document.
type SubBlock struct {
	Entry directory.SubBlockEntry
	// Metadata is the UTF-8 XML of the sub-block, possibly empty.
	Metadata []byte
	// Data is the stored pixel payload, compressed according to Entry.Compression.
	Data []byte
	// Attachment is the optional attachment, usually a chunk container.
	Attachment []byte
}

// Bitmap decodes the pixel payload with the codec registered for the
// sub-block's compression mode. The bitmap has the physical size.
func (s *SubBlock) Bitmap(reg *compress.Registry) (*bitmap.Bitmap, error) {
	return reg.Decode(s.Entry.Compression, s.Data, s.Entry.PixelType, s.Entry.PhysicalSize.W, s.Entry.PhysicalSize.H)
}

// ParsedMetadata parses the sub-block metadata.
func (s *SubBlock) ParsedMetadata() (*metadata.SubBlockMetadata, error) {
	return metadata.ParseSubBlockMetadata(s.Metadata)
}

// ValidPixelMask returns the valid-pixel mask of the sub-block.
//
// Returns:
//   - *bitmap.Bitonal: The mask, nil if the sub-block has none
//   - error: metadata parse errors or ErrChunkContainer for a malformed container
func (s *SubBlock) ValidPixelMask() (*bitmap.Bitonal, error) {
	if len(s.Attachment) == 0 || len(s.Metadata) == 0 {
		return nil, nil
	}

	md, err := s.ParsedMetadata()
	if err != nil {
		return nil, err
	}
	if !md.HasChunkContainer() {
		return nil, nil
	}

	return metadata.ValidPixelMask(s.Attachment)
}

// Attachment is an attachment read from a document.
type Attachment struct {
	Entry directory.AttachmentEntry
	Data  []byte
}

// MetadataSegment is the content of the document metadata segment.
type MetadataSegment struct {
	XML        []byte
	Attachment []byte
}

// AddSubBlockInfo describes a sub-block to write.
type AddSubBlockInfo struct {
	Coordinate dims.Coordinate
	// MIndex is only stored when MIndexValid is set.
	MIndex       int
	MIndexValid  bool
	LogicalRect  geom.IntRect
	PhysicalSize geom.IntSize
	PixelType    format.PixelType
	Compression  format.CompressionMode
	PyramidType  format.PyramidType

	Data       Payload
	Metadata   Payload
	Attachment Payload
}

func (info *AddSubBlockInfo) entry() directory.SubBlockEntry {
	e := directory.SubBlockEntry{
		Coordinate:   info.Coordinate,
		MIndex:       directory.InvalidMIndex,
		LogicalRect:  info.LogicalRect,
		PhysicalSize: info.PhysicalSize,
		PixelType:    info.PixelType,
		Compression:  info.Compression,
		PyramidType:  info.PyramidType,
	}
	if info.MIndexValid {
		e.MIndex = info.MIndex
	}

	return e
}

// AddAttachmentInfo describes an attachment to write. ContentFileType is
// truncated to 8 bytes and Name to 80 bytes.
type AddAttachmentInfo struct {
	ContentGUID     uuid.UUID
	ContentFileType string
	Name            string
	Data            Payload
}

func (info *AddAttachmentInfo) entry() directory.AttachmentEntry {
	return directory.AttachmentEntry{
		ContentGUID:     info.ContentGUID,
		ContentFileType: info.ContentFileType,
		Name:            info.Name,
	}
}

// WriteMetadataInfo is the content of the document metadata segment.
type WriteMetadataInfo struct {
	XML        string
	Attachment []byte
}
