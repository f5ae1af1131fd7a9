package section

import (
	"github.com/arloliu/czi/endian"
	"github.com/arloliu/czi/errs"
	"github.com/arloliu/czi/format"
)

// DimensionEntry describes one dimension of a DV entry (20 bytes).
type DimensionEntry struct {
	Dimension       byte    // byte offset 0-3, single character followed by zeros
	Start           int32   // byte offset 4-7
	Size            int32   // byte offset 8-11
	StartCoordinate float32 // byte offset 12-15
	StoredSize      int32   // byte offset 16-19
}

// Parse parses the entry from a 20-byte slice.
func (e *DimensionEntry) Parse(data []byte) error {
	if len(data) != DimensionEntrySize {
		return errs.ErrInvalidHeaderSize
	}

	engine := endian.GetLittleEndianEngine()
	e.Dimension = data[0]
	e.Start = endian.Int32(engine, data[4:8])
	e.Size = endian.Int32(engine, data[8:12])
	e.StartCoordinate = endian.Float32(engine, data[12:16])
	e.StoredSize = endian.Int32(engine, data[16:20])

	return nil
}

// PutBytes serializes the entry into b, which must hold at least 20 bytes.
func (e *DimensionEntry) PutBytes(b []byte) {
	engine := endian.GetLittleEndianEngine()
	clear(b[:4])
	b[0] = e.Dimension
	endian.PutInt32(engine, b[4:8], e.Start)
	endian.PutInt32(engine, b[8:12], e.Size)
	endian.PutFloat32(engine, b[12:16], e.StartCoordinate)
	endian.PutInt32(engine, b[16:20], e.StoredSize)
}

// SubBlockEntryDV is the "DV" directory entry of a sub-block. The same bytes
// are stored in the sub-block directory and inside the sub-block segment.
type SubBlockEntryDV struct {
	PixelType    format.PixelType       // byte offset 2-5
	FilePosition int64                  // byte offset 6-13
	FilePart     int32                  // byte offset 14-17
	Compression  format.CompressionMode // byte offset 18-21
	PyramidType  format.PyramidType     // byte offset 22
	Dimensions   []DimensionEntry       // byte offset 32-...
}

// Size returns the serialized size of the entry.
func (e *SubBlockEntryDV) Size() int {
	return SubBlockEntryDVFixed + DimensionEntrySize*len(e.Dimensions)
}

// Parse parses an entry from data, which must start with the entry. Trailing
// bytes are ignored.
//
// Returns:
//   - error: ParseError (NotEnoughData or CorruptedData)
func (e *SubBlockEntryDV) Parse(data []byte) error {
	if len(data) < SubBlockEntryDVFixed {
		return errs.NewParseError(errs.ParseNotEnoughData, "DV entry needs %d bytes, got %d", SubBlockEntryDVFixed, len(data))
	}
	if data[0] != 'D' || data[1] != 'V' {
		return errs.NewParseError(errs.ParseCorruptedData, "unknown directory entry schema %q", data[0:2])
	}

	engine := endian.GetLittleEndianEngine()
	e.PixelType = format.PixelType(endian.Int32(engine, data[2:6]))
	e.FilePosition = endian.Int64(engine, data[6:14])
	e.FilePart = endian.Int32(engine, data[14:18])
	e.Compression = format.CompressionMode(endian.Int32(engine, data[18:22]))
	e.PyramidType = format.PyramidType(data[22])

	count := endian.Int32(engine, data[28:32])
	if count < 0 || count > MaxDimensionEntries {
		return errs.NewParseError(errs.ParseCorruptedData, "DV entry has %d dimension entries", count)
	}

	need := SubBlockEntryDVFixed + DimensionEntrySize*int(count)
	if len(data) < need {
		return errs.NewParseError(errs.ParseNotEnoughData, "DV entry needs %d bytes, got %d", need, len(data))
	}

	e.Dimensions = make([]DimensionEntry, count)
	for i := range e.Dimensions {
		off := SubBlockEntryDVFixed + DimensionEntrySize*i
		if err := e.Dimensions[i].Parse(data[off : off+DimensionEntrySize]); err != nil {
			return err
		}
	}

	return nil
}

// Bytes serializes the entry.
func (e *SubBlockEntryDV) Bytes() []byte {
	b := make([]byte, e.Size())
	e.PutBytes(b)

	return b
}

// PutBytes serializes the entry into b, which must hold at least Size() bytes.
func (e *SubBlockEntryDV) PutBytes(b []byte) {
	engine := endian.GetLittleEndianEngine()
	clear(b[:SubBlockEntryDVFixed])
	b[0], b[1] = 'D', 'V'
	endian.PutInt32(engine, b[2:6], int32(e.PixelType))
	endian.PutInt64(engine, b[6:14], e.FilePosition)
	endian.PutInt32(engine, b[14:18], e.FilePart)
	endian.PutInt32(engine, b[18:22], int32(e.Compression))
	b[22] = byte(e.PyramidType)
	endian.PutInt32(engine, b[28:32], int32(len(e.Dimensions))) //nolint:gosec

	for i := range e.Dimensions {
		off := SubBlockEntryDVFixed + DimensionEntrySize*i
		e.Dimensions[i].PutBytes(b[off : off+DimensionEntrySize])
	}
}

// ParseSubBlockEntryDV parses a DV entry from the start of data.
func ParseSubBlockEntryDV(data []byte) (SubBlockEntryDV, error) {
	e := SubBlockEntryDV{}
	if err := e.Parse(data); err != nil {
		return SubBlockEntryDV{}, err
	}

	return e, nil
}
