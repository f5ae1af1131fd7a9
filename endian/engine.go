// Package endian provides the byte order used by every binary structure of a CZI file.
//
// CZI is a little-endian format. All section parsers and serializers take an
// EndianEngine so that field access is written once, in terms of the engine:
//
//	engine := endian.GetLittleEndianEngine()
//	size := endian.Int64(engine, data[16:24])
//
// The signed and floating point helpers exist because encoding/binary only
// exposes unsigned accessors.
//
// # Thread Safety
//
// All functions in this package are safe for concurrent use.
// The returned EndianEngine instances are immutable and stateless.
package endian

import (
	"encoding/binary"
	"math"
)

// EndianEngine combines ByteOrder and AppendByteOrder interfaces from encoding/binary
// into a single interface for convenient byte order operations.
type EndianEngine interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// GetLittleEndianEngine returns the little-endian engine used by CZI.
func GetLittleEndianEngine() EndianEngine {
	return binary.LittleEndian
}

// Int32 decodes a signed 32-bit integer from b.
func Int32(engine EndianEngine, b []byte) int32 {
	return int32(engine.Uint32(b)) //nolint:gosec
}

// PutInt32 encodes a signed 32-bit integer into b.
func PutInt32(engine EndianEngine, b []byte, v int32) {
	engine.PutUint32(b, uint32(v)) //nolint:gosec
}

// Int64 decodes a signed 64-bit integer from b.
func Int64(engine EndianEngine, b []byte) int64 {
	return int64(engine.Uint64(b)) //nolint:gosec
}

// PutInt64 encodes a signed 64-bit integer into b.
func PutInt64(engine EndianEngine, b []byte, v int64) {
	engine.PutUint64(b, uint64(v)) //nolint:gosec
}

// Float32 decodes an IEEE-754 single precision value from b.
func Float32(engine EndianEngine, b []byte) float32 {
	return math.Float32frombits(engine.Uint32(b))
}

// PutFloat32 encodes an IEEE-754 single precision value into b.
func PutFloat32(engine EndianEngine, b []byte, v float32) {
	engine.PutUint32(b, math.Float32bits(v))
}
