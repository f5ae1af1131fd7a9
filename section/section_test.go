package section

import (
	"testing"

	"github.com/arloliu/czi/errs"
	"github.com/arloliu/czi/format"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestAlignSegmentSize(t *testing.T) {
	require.Equal(t, int64(0), AlignSegmentSize(0))
	require.Equal(t, int64(32), AlignSegmentSize(1))
	require.Equal(t, int64(32), AlignSegmentSize(32))
	require.Equal(t, int64(544), AlignSegmentSize(513))
}

func TestGUIDLayout(t *testing.T) {
	u := uuid.MustParse("CBE3EA67-5BFC-492B-A16A-ECE378031448")
	b := make([]byte, GUIDSize)
	PutGUID(b, u)

	require.Equal(t, []byte{0x67, 0xEA, 0xE3, 0xCB, 0xFC, 0x5B, 0x2B, 0x49}, b[:8])
	require.Equal(t, []byte{0xA1, 0x6A, 0xEC, 0xE3, 0x78, 0x03, 0x14, 0x48}, b[8:])
	require.Equal(t, u, ReadGUID(b))
}

func TestSegmentHeader(t *testing.T) {
	t.Run("Round trip", func(t *testing.T) {
		h := NewSegmentHeader(IDSubBlock, 300)
		require.Equal(t, int64(320), h.AllocatedSize)

		parsed, err := ParseSegmentHeader(h.Bytes())
		require.NoError(t, err)
		require.Equal(t, h, parsed)
		require.NoError(t, parsed.Validate(IDSubBlock))
		require.False(t, parsed.IsDeleted())
	})

	t.Run("Invalid size", func(t *testing.T) {
		_, err := ParseSegmentHeader([]byte{1, 2, 3})
		require.ErrorIs(t, err, errs.ErrInvalidHeaderSize)
	})

	t.Run("Id mismatch", func(t *testing.T) {
		h := NewSegmentHeader(IDMetadata, 10)
		err := h.Validate(IDSubBlock)
		require.ErrorIs(t, err, errs.ErrParse)
		require.ErrorIs(t, err, errs.ErrCorruptedData)
	})

	t.Run("Used exceeds allocated", func(t *testing.T) {
		h := SegmentHeader{ID: IDSubBlock, AllocatedSize: 32, UsedSize: 64}
		require.ErrorIs(t, h.Validate(""), errs.ErrCorruptedData)
	})

	t.Run("Tombstone", func(t *testing.T) {
		b := NewSegmentHeader(IDAttachment, 64).Bytes()
		copy(b[:SegmentIDSize], DeletedID())

		parsed, err := ParseSegmentHeader(b)
		require.NoError(t, err)
		require.True(t, parsed.IsDeleted())
		require.Equal(t, int64(64), parsed.AllocatedSize)
	})
}

func TestFileHeader(t *testing.T) {
	guid := uuid.New()
	h := NewFileHeader(guid)
	h.SubBlockDirectoryPosition = 1024
	h.MetadataPosition = 2048
	h.AttachmentDirectoryPosition = 4096
	h.UpdatePending = true

	data := h.Bytes()
	require.Len(t, data, FileHeaderDataSize)

	parsed, err := ParseFileHeader(data)
	require.NoError(t, err)
	require.Equal(t, *h, parsed)
	require.Equal(t, int32(FileVersionMajor), parsed.Major)

	_, err = ParseFileHeader(data[:100])
	require.ErrorIs(t, err, errs.ErrInvalidHeaderSize)
}

func sampleDV() SubBlockEntryDV {
	return SubBlockEntryDV{
		PixelType:    format.PixelTypeGray16,
		FilePosition: 123456,
		Compression:  format.CompressionZstd1,
		PyramidType:  format.PyramidTypeSingleSubBlock,
		Dimensions: []DimensionEntry{
			{Dimension: DimCharX, Start: -10, Size: 512, StoredSize: 256},
			{Dimension: DimCharY, Start: 20, Size: 256, StoredSize: 128},
			{Dimension: 'C', Start: 1, Size: 1, StoredSize: 1},
			{Dimension: DimCharM, Start: 3, Size: 1, StoredSize: 1},
		},
	}
}

func TestSubBlockEntryDV(t *testing.T) {
	t.Run("Round trip", func(t *testing.T) {
		e := sampleDV()
		data := e.Bytes()
		require.Len(t, data, SubBlockEntryDVFixed+4*DimensionEntrySize)

		parsed, err := ParseSubBlockEntryDV(data)
		require.NoError(t, err)
		require.Equal(t, e, parsed)
	})

	t.Run("Truncated dimension list", func(t *testing.T) {
		e := sampleDV()
		data := e.Bytes()
		_, err := ParseSubBlockEntryDV(data[:len(data)-1])
		require.ErrorIs(t, err, errs.ErrNotEnoughData)
	})

	t.Run("Wrong schema", func(t *testing.T) {
		e := sampleDV()
		data := e.Bytes()
		data[0] = 'X'
		_, err := ParseSubBlockEntryDV(data)
		require.ErrorIs(t, err, errs.ErrCorruptedData)
	})

	t.Run("Too short", func(t *testing.T) {
		_, err := ParseSubBlockEntryDV(make([]byte, 10))
		require.ErrorIs(t, err, errs.ErrNotEnoughData)
	})
}

func TestAttachmentEntryA1(t *testing.T) {
	e := AttachmentEntryA1{
		FilePosition:    987654,
		ContentGUID:     uuid.New(),
		ContentFileType: "JPG",
		Name:            "Thumbnail",
	}

	parsed, err := ParseAttachmentEntryA1(e.Bytes())
	require.NoError(t, err)
	require.Equal(t, e, parsed)

	t.Run("Long strings are truncated", func(t *testing.T) {
		long := AttachmentEntryA1{ContentFileType: "ABCDEFGHIJ", Name: string(make([]byte, 100))}
		long.Name = "N" + long.Name[1:]
		parsed, err := ParseAttachmentEntryA1(long.Bytes())
		require.NoError(t, err)
		require.Equal(t, "ABCDEFGH", parsed.ContentFileType)
		require.Equal(t, "N", parsed.Name)
		require.Equal(t, "ABCDEFGH", FixedString(long.ContentFileType, ContentFileTypeSize))
	})

	t.Run("Too short", func(t *testing.T) {
		_, err := ParseAttachmentEntryA1(make([]byte, 50))
		require.ErrorIs(t, err, errs.ErrNotEnoughData)
	})
}

func TestSubBlockData(t *testing.T) {
	d := SubBlockData{MetadataSize: 40, AttachmentSize: 8, DataSize: 1000, Entry: sampleDV()}
	require.Equal(t, SubBlockDataMinFixedSize, d.FixedSize())
	require.Equal(t, int64(256+40+1000+8), d.UsedSize())

	parsed := SubBlockData{}
	require.NoError(t, parsed.Parse(d.Bytes()))
	require.Equal(t, d, parsed)

	t.Run("Large DV entry grows the fixed part", func(t *testing.T) {
		big := SubBlockData{Entry: SubBlockEntryDV{Dimensions: make([]DimensionEntry, 12)}}
		require.Equal(t, 16+32+12*20, big.FixedSize())
	})
}

func TestAttachmentAndMetadataData(t *testing.T) {
	a := AttachmentData{DataSize: 77, Entry: AttachmentEntryA1{Name: "Label", ContentFileType: "CZI"}}
	pa := AttachmentData{}
	require.NoError(t, pa.Parse(a.Bytes()))
	require.Equal(t, a, pa)
	require.Equal(t, int64(256+77), pa.UsedSize())

	m := MetadataData{XMLSize: 5, AttachmentSize: 3}
	pm := MetadataData{}
	require.NoError(t, pm.Parse(m.Bytes()))
	require.Equal(t, m, pm)
	require.Equal(t, int64(264), pm.UsedSize())

	require.ErrorIs(t, pm.Parse(make([]byte, 10)), errs.ErrNotEnoughData)
}

func TestDirectoryHeader(t *testing.T) {
	h := DirectoryHeader{EntryCount: 7}
	data := h.Bytes(SubBlockDirectoryDataFixedSize)
	require.Len(t, data, SubBlockDirectoryDataFixedSize)

	parsed := DirectoryHeader{}
	require.NoError(t, parsed.Parse(data))
	require.Equal(t, int32(7), parsed.EntryCount)

	data[3] = 0x80
	require.ErrorIs(t, parsed.Parse(data), errs.ErrCorruptedData)
}
