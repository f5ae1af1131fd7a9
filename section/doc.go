// Package section defines the low-level binary structures and constants of the CZI file format.
//
// This package handles the byte-level layout of every segment kind. Each type
// offers Parse(data []byte) error and Bytes() []byte, and a ParseXxx helper
// returning a value. All multi-byte fields are little-endian and the structures
// are packed (no alignment padding between fields).
//
// # File Structure
//
// A CZI file is a sequence of segments, each starting on a 32-byte boundary:
//
//	┌─────────────────────────────────────────────────────────┐
//	│ Segment header (32 bytes)                               │
//	│  - Id (16 bytes): "ZISRAWFILE", "ZISRAWSUBBLOCK", ...   │
//	│  - AllocatedSize (8 bytes): payload bytes reserved      │
//	│  - UsedSize (8 bytes): payload bytes in use             │
//	├─────────────────────────────────────────────────────────┤
//	│ Payload (AllocatedSize bytes, UsedSize meaningful)      │
//	└─────────────────────────────────────────────────────────┘
//
// The first segment is always the file header (ZISRAWFILE) at offset 0. It
// points at the sub-block directory, the metadata segment and the attachment
// directory.
//
// # Segment Payloads
//
//	Segment          | Fixed part | Variable part
//	-----------------|------------|-----------------------------------------
//	ZISRAWFILE       | 512 bytes  | none
//	ZISRAWDIRECTORY  | 128 bytes  | DV entries (32 + 20*dimensions each)
//	ZISRAWSUBBLOCK   | >=256      | metadata, pixel data, attachment
//	ZISRAWMETADATA   | 256 bytes  | xml, attachment
//	ZISRAWATTDIR     | 256 bytes  | A1 entries (128 bytes each)
//	ZISRAWATTACH     | 256 bytes  | attachment data
//	DELETED          | unchanged  | tombstone of any of the above
//
// # Sub-block Directory Entry (DV)
//
//	Bytes  | Field           | Type
//	-------|-----------------|---------
//	0-1    | SchemaType      | "DV"
//	2-5    | PixelType       | int32
//	6-13   | FilePosition    | int64
//	14-17  | FilePart        | int32
//	18-21  | Compression     | int32
//	22-27  | spare (byte 22 = pyramid type)
//	28-31  | DimensionCount  | int32
//	32-... | DimensionEntry  | 20 bytes each
package section
