package section

import (
	"bytes"
	"strings"

	"github.com/arloliu/czi/endian"
	"github.com/arloliu/czi/errs"
	"github.com/google/uuid"
)

// AttachmentEntryA1 is the "A1" attachment directory entry (128 bytes).
type AttachmentEntryA1 struct {
	FilePosition    int64     // byte offset 12-19
	FilePart        int32     // byte offset 20-23
	ContentGUID     uuid.UUID // byte offset 24-39
	ContentFileType string    // byte offset 40-47, zero padded
	Name            string    // byte offset 48-127, zero padded
}

// Parse parses the entry from a 128-byte slice.
func (e *AttachmentEntryA1) Parse(data []byte) error {
	if len(data) != AttachmentEntrySize {
		return errs.ErrInvalidHeaderSize
	}
	if data[0] != 'A' || data[1] != '1' {
		return errs.NewParseError(errs.ParseCorruptedData, "unknown attachment entry schema %q", data[0:2])
	}

	engine := endian.GetLittleEndianEngine()
	e.FilePosition = endian.Int64(engine, data[12:20])
	e.FilePart = endian.Int32(engine, data[20:24])
	e.ContentGUID = ReadGUID(data[24:40])
	e.ContentFileType = trimZero(data[40:48])
	e.Name = trimZero(data[48:128])

	return nil
}

// Bytes serializes the entry into a 128-byte slice.
func (e *AttachmentEntryA1) Bytes() []byte {
	b := make([]byte, AttachmentEntrySize)
	e.PutBytes(b)

	return b
}

// PutBytes serializes the entry into b, which must hold at least 128 bytes.
// ContentFileType and Name are truncated to their fixed field sizes.
func (e *AttachmentEntryA1) PutBytes(b []byte) {
	engine := endian.GetLittleEndianEngine()
	clear(b[:AttachmentEntrySize])
	b[0], b[1] = 'A', '1'
	endian.PutInt64(engine, b[12:20], e.FilePosition)
	endian.PutInt32(engine, b[20:24], e.FilePart)
	PutGUID(b[24:40], e.ContentGUID)
	copy(b[40:48], e.ContentFileType)
	copy(b[48:128], e.Name)
}

// ParseAttachmentEntryA1 parses an A1 entry from the start of data.
func ParseAttachmentEntryA1(data []byte) (AttachmentEntryA1, error) {
	if len(data) < AttachmentEntrySize {
		return AttachmentEntryA1{}, errs.NewParseError(errs.ParseNotEnoughData, "A1 entry needs %d bytes, got %d", AttachmentEntrySize, len(data))
	}

	e := AttachmentEntryA1{}
	if err := e.Parse(data[:AttachmentEntrySize]); err != nil {
		return AttachmentEntryA1{}, err
	}

	return e, nil
}

// FixedString truncates s to n bytes the way it is stored in a fixed-size field.
func FixedString(s string, n int) string {
	if len(s) > n {
		s = s[:n]
	}
	if i := strings.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}

	return s
}

func trimZero(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}

	return string(b)
}
