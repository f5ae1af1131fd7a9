package section

import (
	"github.com/arloliu/czi/endian"
	"github.com/arloliu/czi/errs"
	"github.com/google/uuid"
)

// FileHeader is the payload of the ZISRAWFILE segment at offset 0.
type FileHeader struct {
	Major                       int32     // byte offset 0-3
	Minor                       int32     // byte offset 4-7
	PrimaryFileGUID             uuid.UUID // byte offset 16-31
	FileGUID                    uuid.UUID // byte offset 32-47
	FilePart                    int32     // byte offset 48-51
	SubBlockDirectoryPosition   int64     // byte offset 52-59
	MetadataPosition            int64     // byte offset 60-67
	UpdatePending               bool      // byte offset 68-71
	AttachmentDirectoryPosition int64     // byte offset 72-79
}

// NewFileHeader creates a header for a new file with the given GUID used as
// both primary and file GUID.
func NewFileHeader(guid uuid.UUID) *FileHeader {
	return &FileHeader{
		Major:           FileVersionMajor,
		Minor:           FileVersionMinor,
		PrimaryFileGUID: guid,
		FileGUID:        guid,
	}
}

// Parse parses the header from the 512-byte segment payload.
func (h *FileHeader) Parse(data []byte) error {
	if len(data) != FileHeaderDataSize {
		return errs.ErrInvalidHeaderSize
	}

	engine := endian.GetLittleEndianEngine()
	h.Major = endian.Int32(engine, data[0:4])
	h.Minor = endian.Int32(engine, data[4:8])
	h.PrimaryFileGUID = ReadGUID(data[16:32])
	h.FileGUID = ReadGUID(data[32:48])
	h.FilePart = endian.Int32(engine, data[48:52])
	h.SubBlockDirectoryPosition = endian.Int64(engine, data[52:60])
	h.MetadataPosition = endian.Int64(engine, data[60:68])
	h.UpdatePending = engine.Uint32(data[68:72]) != 0
	h.AttachmentDirectoryPosition = endian.Int64(engine, data[72:80])

	return nil
}

// Bytes serializes the header into a 512-byte payload.
func (h *FileHeader) Bytes() []byte {
	b := make([]byte, FileHeaderDataSize)
	engine := endian.GetLittleEndianEngine()

	endian.PutInt32(engine, b[0:4], h.Major)
	endian.PutInt32(engine, b[4:8], h.Minor)
	PutGUID(b[16:32], h.PrimaryFileGUID)
	PutGUID(b[32:48], h.FileGUID)
	endian.PutInt32(engine, b[48:52], h.FilePart)
	endian.PutInt64(engine, b[52:60], h.SubBlockDirectoryPosition)
	endian.PutInt64(engine, b[60:68], h.MetadataPosition)
	if h.UpdatePending {
		engine.PutUint32(b[68:72], 1)
	}
	endian.PutInt64(engine, b[72:80], h.AttachmentDirectoryPosition)

	return b
}

// ParseFileHeader parses a FileHeader from a byte slice.
//
// Returns:
//   - FileHeader: Parsed header struct
//   - error: ErrInvalidHeaderSize if data holds fewer than 512 bytes
func ParseFileHeader(data []byte) (FileHeader, error) {
	if len(data) < FileHeaderDataSize {
		return FileHeader{}, errs.ErrInvalidHeaderSize
	}

	h := FileHeader{}
	if err := h.Parse(data[:FileHeaderDataSize]); err != nil {
		return FileHeader{}, err
	}

	return h, nil
}
