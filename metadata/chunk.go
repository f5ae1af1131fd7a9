package metadata

import (
	"fmt"

	"github.com/arloliu/czi/bitmap"
	"github.com/arloliu/czi/endian"
	"github.com/arloliu/czi/errs"
	"github.com/arloliu/czi/section"
	"github.com/google/uuid"
)

const (
	chunkHeaderSize = section.GUIDSize + 4
	// minChunkSize is a chunk header plus one payload byte.
	minChunkSize   = chunkHeaderSize + 1
	maskHeaderSize = 16

	// MaskRepresentationUncompressed is the only supported mask encoding:
	// rows of MSB-first packed bits.
	MaskRepresentationUncompressed = 0
)

// MaskChunkGUID identifies the valid-pixel mask chunk.
var MaskChunkGUID = uuid.MustParse("CBE3EA67-5BFC-492B-A16A-ECE378031448")

// Chunk locates one chunk inside a chunk container.
type Chunk struct {
	GUID uuid.UUID
	// Offset is the position of the payload in the container.
	Offset int
	Size   int
}

// EnumerateChunks walks a chunk container: a sequence of GUID (16 bytes),
// size (uint32) and payload. Enumeration stops when fn returns false or fewer
// than 21 bytes remain.
//
// Returns:
//   - error: ErrChunkContainer if the container is shorter than one chunk or a
//     chunk extends beyond the data
func EnumerateChunks(data []byte, fn func(index int, c Chunk) bool) error {
	if len(data) < minChunkSize {
		return fmt.Errorf("%w: %d bytes", errs.ErrChunkContainer, len(data))
	}

	engine := endian.GetLittleEndianEngine()
	offset := 0
	for index := 0; len(data)-offset >= minChunkSize; index++ {
		guid := section.ReadGUID(data[offset : offset+section.GUIDSize])
		size := int(engine.Uint32(data[offset+section.GUIDSize : offset+chunkHeaderSize]))
		if len(data)-offset-chunkHeaderSize < size {
			return fmt.Errorf("%w: chunk %d of size %d exceeds the data", errs.ErrChunkContainer, index, size)
		}

		if !fn(index, Chunk{GUID: guid, Offset: offset + chunkHeaderSize, Size: size}) {
			return nil
		}
		offset += chunkHeaderSize + size
	}

	return nil
}

// AppendChunk appends one chunk to a container.
func AppendChunk(dst []byte, guid uuid.UUID, payload []byte) []byte {
	var hdr [chunkHeaderSize]byte
	section.PutGUID(hdr[:section.GUIDSize], guid)
	endian.GetLittleEndianEngine().PutUint32(hdr[section.GUIDSize:], uint32(len(payload)))

	dst = append(dst, hdr[:]...)

	return append(dst, payload...)
}

// EncodeMask creates the payload of a mask chunk.
func EncodeMask(mask *bitmap.Bitonal) []byte {
	engine := endian.GetLittleEndianEngine()
	b := make([]byte, maskHeaderSize, maskHeaderSize+mask.Stride*mask.Height)
	engine.PutUint32(b[0:4], uint32(mask.Width))
	engine.PutUint32(b[4:8], uint32(mask.Height))
	engine.PutUint32(b[8:12], MaskRepresentationUncompressed)
	engine.PutUint32(b[12:16], uint32(mask.Stride))

	return append(b, mask.Data[:mask.Stride*mask.Height]...)
}

// DecodeMask parses the payload of a mask chunk.
//
// Returns:
//   - *bitmap.Bitonal: The mask; it references payload
//   - error: ErrChunkContainer for an unknown representation or short data
func DecodeMask(payload []byte) (*bitmap.Bitonal, error) {
	if len(payload) < maskHeaderSize {
		return nil, fmt.Errorf("%w: mask chunk of %d bytes", errs.ErrChunkContainer, len(payload))
	}

	engine := endian.GetLittleEndianEngine()
	width := int(engine.Uint32(payload[0:4]))
	height := int(engine.Uint32(payload[4:8]))
	representation := engine.Uint32(payload[8:12])
	stride := int(engine.Uint32(payload[12:16]))
	if representation != MaskRepresentationUncompressed {
		return nil, fmt.Errorf("%w: unknown mask representation %d", errs.ErrChunkContainer, representation)
	}

	mask, err := bitmap.BitonalFromData(width, height, stride, payload[maskHeaderSize:])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrChunkContainer, err)
	}

	return mask, nil
}

// ValidPixelMask searches a chunk container for the mask chunk.
//
// Returns:
//   - *bitmap.Bitonal: The mask, nil if there is no mask chunk
//   - error: ErrChunkContainer if the container or the mask is malformed
func ValidPixelMask(container []byte) (*bitmap.Bitonal, error) {
	var found *Chunk
	err := EnumerateChunks(container, func(_ int, c Chunk) bool {
		if c.GUID == MaskChunkGUID {
			found = &c
			return false
		}

		return true
	})
	if err != nil || found == nil {
		return nil, err
	}

	return DecodeMask(container[found.Offset : found.Offset+found.Size])
}
