package section

import (
	"bytes"
	"fmt"

	"github.com/arloliu/czi/endian"
	"github.com/arloliu/czi/errs"
)

// SegmentHeader precedes every segment.
type SegmentHeader struct {
	// ID is the segment id without zero padding, e.g. "ZISRAWSUBBLOCK".
	ID string // byte offset 0-15
	// AllocatedSize is the number of payload bytes reserved after the header.
	AllocatedSize int64 // byte offset 16-23
	// UsedSize is the number of payload bytes in use.
	UsedSize int64 // byte offset 24-31
}

// NewSegmentHeader creates a header whose allocated size is usedSize rounded up to the segment alignment.
func NewSegmentHeader(id string, usedSize int64) SegmentHeader {
	return SegmentHeader{ID: id, AllocatedSize: AlignSegmentSize(usedSize), UsedSize: usedSize}
}

// Parse parses the header from a byte slice.
//
// Parameters:
//   - data: Byte slice containing the header (must be exactly 32 bytes)
//
// Returns:
//   - error: ErrInvalidHeaderSize if data is not 32 bytes
func (h *SegmentHeader) Parse(data []byte) error {
	if len(data) != SegmentHeaderSize {
		return errs.ErrInvalidHeaderSize
	}

	engine := endian.GetLittleEndianEngine()
	id := data[:SegmentIDSize]
	if i := bytes.IndexByte(id, 0); i >= 0 {
		id = id[:i]
	}
	h.ID = string(id)
	h.AllocatedSize = endian.Int64(engine, data[16:24])
	h.UsedSize = endian.Int64(engine, data[24:32])

	return nil
}

// Bytes serializes the header into a 32-byte slice.
func (h SegmentHeader) Bytes() []byte {
	b := make([]byte, SegmentHeaderSize)
	h.PutBytes(b)

	return b
}

// PutBytes serializes the header into b, which must hold at least 32 bytes.
func (h *SegmentHeader) PutBytes(b []byte) {
	engine := endian.GetLittleEndianEngine()
	clear(b[:SegmentIDSize])
	copy(b[:SegmentIDSize], h.ID)
	endian.PutInt64(engine, b[16:24], h.AllocatedSize)
	endian.PutInt64(engine, b[24:32], h.UsedSize)
}

// Validate checks the sizes for plausibility and, if expectedID is not empty,
// that the id matches.
//
// Returns:
//   - error: a ParseError with code CorruptedData on mismatch
func (h *SegmentHeader) Validate(expectedID string) error {
	if expectedID != "" && h.ID != expectedID {
		return errs.NewParseError(errs.ParseCorruptedData, "segment id %q, expected %q", h.ID, expectedID)
	}
	if h.AllocatedSize < 0 || h.UsedSize < 0 || h.UsedSize > h.AllocatedSize {
		return errs.NewParseError(errs.ParseCorruptedData, "segment %q has invalid sizes (allocated %d, used %d)", h.ID, h.AllocatedSize, h.UsedSize)
	}

	return nil
}

// IsDeleted reports whether the segment is a tombstone.
func (h SegmentHeader) IsDeleted() bool {
	return h.ID == IDDeleted
}

func (h SegmentHeader) String() string {
	return fmt.Sprintf("%s(allocated=%d,used=%d)", h.ID, h.AllocatedSize, h.UsedSize)
}

// ParseSegmentHeader parses a SegmentHeader from a byte slice.
//
// Returns:
//   - SegmentHeader: Parsed header struct
//   - error: ErrInvalidHeaderSize if data holds fewer than 32 bytes
func ParseSegmentHeader(data []byte) (SegmentHeader, error) {
	if len(data) < SegmentHeaderSize {
		return SegmentHeader{}, errs.ErrInvalidHeaderSize
	}

	h := SegmentHeader{}
	if err := h.Parse(data[:SegmentHeaderSize]); err != nil {
		return SegmentHeader{}, err
	}

	return h, nil
}

// DeletedID returns the 16-byte on-disk id of a tombstone.
func DeletedID() []byte {
	b := make([]byte, SegmentIDSize)
	copy(b, IDDeleted)

	return b
}
