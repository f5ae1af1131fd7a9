package section

import "github.com/google/uuid"

// GUIDSize is the on-disk size of a GUID.
const GUIDSize = 16

// ReadGUID decodes a GUID stored in the mixed-endian layout
// (Data1 uint32, Data2 uint16, Data3 uint16 little-endian, Data4 as bytes).
func ReadGUID(b []byte) uuid.UUID {
	var u uuid.UUID
	u[0], u[1], u[2], u[3] = b[3], b[2], b[1], b[0]
	u[4], u[5] = b[5], b[4]
	u[6], u[7] = b[7], b[6]
	copy(u[8:], b[8:16])

	return u
}

// PutGUID encodes u into b using the mixed-endian layout, see ReadGUID.
func PutGUID(b []byte, u uuid.UUID) {
	b[0], b[1], b[2], b[3] = u[3], u[2], u[1], u[0]
	b[4], b[5] = u[5], u[4]
	b[6], b[7] = u[7], u[6]
	copy(b[8:16], u[8:])
}
