package format

import "fmt"

type (
	// PixelType identifies the pixel layout of a sub-block or bitmap.
	PixelType int32
	// CompressionMode is the raw compression tag stored in a sub-block directory entry.
	// Values other than the well-known ones pass through opaquely.
	CompressionMode int32
	// DimensionIndex identifies one of the coordinate dimensions of a sub-block.
	DimensionIndex uint8
	// PyramidType is stored in the first spare byte of a DV directory entry.
	PyramidType uint8
	// FrameOfReference selects the coordinate system a point or rectangle is expressed in.
	FrameOfReference uint8
	// CompressionType selects a generic payload codec (used by the sub-block cache).
	CompressionType uint8
)

const (
	PixelTypeInvalid            PixelType = 0xff
	PixelTypeGray8              PixelType = 0
	PixelTypeGray16             PixelType = 1
	PixelTypeGray32Float        PixelType = 2
	PixelTypeBgr24              PixelType = 3
	PixelTypeBgr48              PixelType = 4
	PixelTypeBgr96Float         PixelType = 8
	PixelTypeBgra32             PixelType = 9
	PixelTypeGray64ComplexFloat PixelType = 10
	PixelTypeBgr192ComplexFloat PixelType = 11
	PixelTypeGray32             PixelType = 12
	PixelTypeGray64Float        PixelType = 13
)

const (
	CompressionInvalid      CompressionMode = 0xff
	CompressionUnCompressed CompressionMode = 0
	CompressionJpg          CompressionMode = 1
	CompressionJpgXr        CompressionMode = 4
	CompressionZstd0        CompressionMode = 5
	CompressionZstd1        CompressionMode = 6
)

const (
	DimensionInvalid DimensionIndex = 0
	DimensionZ       DimensionIndex = 1 // focal plane
	DimensionC       DimensionIndex = 2 // channel
	DimensionT       DimensionIndex = 3 // time
	DimensionR       DimensionIndex = 4 // rotation
	DimensionI       DimensionIndex = 5 // illumination
	DimensionH       DimensionIndex = 6 // phase
	DimensionV       DimensionIndex = 7 // view
	DimensionB       DimensionIndex = 8 // block (deprecated)
	DimensionS       DimensionIndex = 9 // scene

	// DimensionCount is the number of valid coordinate dimensions.
	DimensionCount = 9
)

const (
	PyramidTypeNone           PyramidType = 0
	PyramidTypeSingleSubBlock PyramidType = 1
	PyramidTypeMultiSubBlock  PyramidType = 2
)

const (
	FrameOfReferenceInvalid               FrameOfReference = 0
	FrameOfReferenceDefault               FrameOfReference = 1
	FrameOfReferenceRawSubBlockCoordinate FrameOfReference = 2
	FrameOfReferencePixelCoordinate       FrameOfReference = 3
)

const (
	CompressionNone CompressionType = 0x1 // CompressionNone represents no compression.
	CompressionZstd CompressionType = 0x2 // CompressionZstd represents Zstandard compression.
	CompressionS2   CompressionType = 0x3 // CompressionS2 represents S2 compression.
	CompressionLZ4  CompressionType = 0x4 // CompressionLZ4 represents LZ4 compression.
)

// AllDimensions lists the coordinate dimensions in their canonical order.
var AllDimensions = [DimensionCount]DimensionIndex{
	DimensionZ, DimensionC, DimensionT, DimensionR, DimensionI,
	DimensionH, DimensionV, DimensionB, DimensionS,
}

// BytesPerPixel returns the number of bytes one pixel of the given type occupies.
// It returns 0 for an unknown pixel type.
func (p PixelType) BytesPerPixel() int {
	switch p {
	case PixelTypeGray8:
		return 1
	case PixelTypeGray16:
		return 2
	case PixelTypeBgr24:
		return 3
	case PixelTypeBgr48:
		return 6
	case PixelTypeGray32Float, PixelTypeBgra32, PixelTypeGray32:
		return 4
	case PixelTypeGray64Float:
		return 8
	case PixelTypeBgr96Float:
		return 12
	case PixelTypeGray64ComplexFloat:
		return 16
	case PixelTypeBgr192ComplexFloat:
		return 48
	default:
		return 0
	}
}

// IsValid reports whether p is one of the known pixel types.
func (p PixelType) IsValid() bool {
	return p.BytesPerPixel() > 0
}

func (p PixelType) String() string {
	switch p {
	case PixelTypeGray8:
		return "Gray8"
	case PixelTypeGray16:
		return "Gray16"
	case PixelTypeGray32Float:
		return "Gray32Float"
	case PixelTypeBgr24:
		return "Bgr24"
	case PixelTypeBgr48:
		return "Bgr48"
	case PixelTypeBgr96Float:
		return "Bgr96Float"
	case PixelTypeBgra32:
		return "Bgra32"
	case PixelTypeGray64ComplexFloat:
		return "Gray64ComplexFloat"
	case PixelTypeBgr192ComplexFloat:
		return "Bgr192ComplexFloat"
	case PixelTypeGray32:
		return "Gray32"
	case PixelTypeGray64Float:
		return "Gray64Float"
	default:
		return "Invalid"
	}
}

func (c CompressionMode) String() string {
	switch c {
	case CompressionUnCompressed:
		return "UnCompressed"
	case CompressionJpg:
		return "Jpg"
	case CompressionJpgXr:
		return "JpgXr"
	case CompressionZstd0:
		return "Zstd0"
	case CompressionZstd1:
		return "Zstd1"
	case CompressionInvalid:
		return "Invalid"
	default:
		return fmt.Sprintf("Unknown(%d)", int32(c))
	}
}

// Char returns the single-character tag of the dimension, or 0 for an invalid dimension.
func (d DimensionIndex) Char() byte {
	switch d {
	case DimensionZ:
		return 'Z'
	case DimensionC:
		return 'C'
	case DimensionT:
		return 'T'
	case DimensionR:
		return 'R'
	case DimensionI:
		return 'I'
	case DimensionH:
		return 'H'
	case DimensionV:
		return 'V'
	case DimensionB:
		return 'B'
	case DimensionS:
		return 'S'
	default:
		return 0
	}
}

// IsValid reports whether d is one of the nine coordinate dimensions.
func (d DimensionIndex) IsValid() bool {
	return d >= DimensionZ && d <= DimensionS
}

func (d DimensionIndex) String() string {
	if c := d.Char(); c != 0 {
		return string(c)
	}

	return "Invalid"
}

// DimensionFromChar maps a dimension tag (case-insensitive) to its index.
// It returns DimensionInvalid for an unknown character.
func DimensionFromChar(c byte) DimensionIndex {
	switch c {
	case 'Z', 'z':
		return DimensionZ
	case 'C', 'c':
		return DimensionC
	case 'T', 't':
		return DimensionT
	case 'R', 'r':
		return DimensionR
	case 'I', 'i':
		return DimensionI
	case 'H', 'h':
		return DimensionH
	case 'V', 'v':
		return DimensionV
	case 'B', 'b':
		return DimensionB
	case 'S', 's':
		return DimensionS
	default:
		return DimensionInvalid
	}
}

func (p PyramidType) String() string {
	switch p {
	case PyramidTypeNone:
		return "None"
	case PyramidTypeSingleSubBlock:
		return "SingleSubBlock"
	case PyramidTypeMultiSubBlock:
		return "MultiSubBlock"
	default:
		return "Unknown"
	}
}

func (f FrameOfReference) String() string {
	switch f {
	case FrameOfReferenceDefault:
		return "Default"
	case FrameOfReferenceRawSubBlockCoordinate:
		return "RawSubBlockCoordinateSystem"
	case FrameOfReferencePixelCoordinate:
		return "PixelCoordinateSystem"
	default:
		return "Invalid"
	}
}

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "None"
	case CompressionZstd:
		return "Zstd"
	case CompressionS2:
		return "S2"
	case CompressionLZ4:
		return "LZ4"
	default:
		return "Unknown"
	}
}
