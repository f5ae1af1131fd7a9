package section

// Segment ids. On disk each id is zero-padded to SegmentIDSize bytes.
const (
	IDFile                = "ZISRAWFILE"
	IDSubBlockDirectory   = "ZISRAWDIRECTORY"
	IDSubBlock            = "ZISRAWSUBBLOCK"
	IDMetadata            = "ZISRAWMETADATA"
	IDAttachmentDirectory = "ZISRAWATTDIR"
	IDAttachment          = "ZISRAWATTACH"
	IDDeleted             = "DELETED"
)

// Fixed sizes of the on-disk structures, in bytes.
const (
	SegmentIDSize        = 16
	SegmentHeaderSize    = 32
	SegmentAlignment     = 32
	FileHeaderDataSize   = 512
	DimensionEntrySize   = 20
	SubBlockEntryDVFixed = 32

	SubBlockDirectoryDataFixedSize   = 128
	AttachmentDirectoryDataFixedSize = 256
	AttachmentEntrySize              = 128
	AttachmentDataFixedSize          = 256
	MetadataDataFixedSize            = 256
	SubBlockDataMinFixedSize         = 256
	SubBlockDataEntryOffset          = 16

	ContentFileTypeSize = 8
	AttachmentNameSize  = 80

	// MaxDimensionEntries is the upper bound accepted when parsing a DV entry.
	MaxDimensionEntries = 40
)

// File format version written by this package.
const (
	FileVersionMajor = 1
	FileVersionMinor = 0
)

// Dimension characters in a DV entry that are not part of the sub-block coordinate.
const (
	DimCharX = 'X'
	DimCharY = 'Y'
	DimCharM = 'M'
)

// AlignSegmentSize rounds size up to the segment alignment.
func AlignSegmentSize(size int64) int64 {
	return (size + SegmentAlignment - 1) / SegmentAlignment * SegmentAlignment
}
