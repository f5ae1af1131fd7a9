// Package errs defines the error values returned by the czi packages.
//
// Callers branch on the sentinel values with errors.Is. Errors carrying extra
// diagnostics (file offsets, parse codes, stream codes) are structured types
// that still match their sentinel via errors.Is.
package errs

import (
	"errors"
	"fmt"
)

// Invalid-argument and bounds errors. These are detected before any mutation.
var (
	ErrInvalidArgument                          = errors.New("invalid argument")
	ErrSubBlockCoordinateOutOfBounds            = errors.New("sub-block coordinate out of bounds")
	ErrSubBlockCoordinateInsufficient           = errors.New("sub-block coordinate insufficient")
	ErrAddCoordinateContainsUnexpectedDimension = errors.New("coordinate contains unexpected dimension")
	ErrAddCoordinateAlreadyExisting             = errors.New("sub-block with same coordinate and M-index already exists")
	ErrAddAttachmentAlreadyExisting             = errors.New("attachment with same key already exists")
	ErrInvalidSubBlockID                        = errors.New("invalid sub-block id")
	ErrInvalidAttachmentID                      = errors.New("invalid attachment id")
	ErrInvalidFrameOfReference                  = errors.New("invalid frame of reference")
	ErrGetDataCall                              = errors.New("data callback returned an invalid result")
)

// Plane coordinate validation errors. ErrInvalidPlaneCoordinate is always
// wrapped together with one of the more specific values.
var (
	ErrInvalidPlaneCoordinate = errors.New("invalid plane coordinate")
	ErrSurplusDimension       = errors.New("dimension not present in document")
	ErrMissingDimension       = errors.New("required dimension missing")
	ErrInvalidDimension       = errors.New("dimension not allowed in plane coordinate")
	ErrCoordinateOutOfRange   = errors.New("coordinate out of range")
)

// Coordinate string parsing errors.
var (
	ErrCoordinateSyntax   = errors.New("invalid coordinate syntax")
	ErrDuplicateDimension = errors.New("duplicate dimension in coordinate")
)

// State (logic) errors.
var (
	ErrNotOperational     = errors.New("object is not operational")
	ErrAlreadyOperational = errors.New("object is already operational")
	ErrLockImbalance      = errors.New("bitmap lock/unlock imbalance")
)

// I/O, format and codec errors.
var (
	ErrIO                     = errors.New("i/o error")
	ErrNotEnoughDataWritten   = errors.New("not enough data written")
	ErrParse                  = errors.New("czi parse error")
	ErrNotEnoughData          = errors.New("not enough data")
	ErrCorruptedData          = errors.New("corrupted data")
	ErrInternal               = errors.New("internal error")
	ErrInvalidHeaderSize      = errors.New("invalid header size")
	ErrSegmentNotPresent      = errors.New("segment not present")
	ErrCodec                  = errors.New("codec error")
	ErrUnsupportedCompression = errors.New("unsupported compression mode")
	ErrStream                 = errors.New("stream error")
	ErrMetadataPath           = errors.New("invalid metadata path")
	ErrChunkContainer         = errors.New("invalid chunk container")
)

// IOError reports a failure of the underlying stream at a specific position.
// It matches ErrIO and unwraps to the original cause.
type IOError struct {
	Op     string
	Offset int64
	Size   int64
	Err    error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s at offset %d (size %d): %v", e.Op, e.Offset, e.Size, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func (e *IOError) Is(target error) bool { return target == ErrIO }

// NewIOError wraps err as an IOError.
func NewIOError(op string, offset, size int64, err error) error {
	return &IOError{Op: op, Offset: offset, Size: size, Err: err}
}

// ParseErrorCode classifies format corruption.
type ParseErrorCode uint8

const (
	ParseNotEnoughData ParseErrorCode = iota
	ParseCorruptedData
	ParseInternalError
)

func (c ParseErrorCode) String() string {
	switch c {
	case ParseNotEnoughData:
		return "NotEnoughData"
	case ParseCorruptedData:
		return "CorruptedData"
	default:
		return "InternalError"
	}
}

// ParseError is returned when bytes read from a stream do not form a valid
// CZI structure. It matches ErrParse and the sentinel of its code.
type ParseError struct {
	Code ParseErrorCode
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("czi parse error (%s): %s", e.Code, e.Msg)
}

func (e *ParseError) Is(target error) bool {
	switch target {
	case ErrParse:
		return true
	case ErrNotEnoughData:
		return e.Code == ParseNotEnoughData
	case ErrCorruptedData:
		return e.Code == ParseCorruptedData
	case ErrInternal:
		return e.Code == ParseInternalError
	}

	return false
}

// NewParseError creates a ParseError with a formatted message.
func NewParseError(code ParseErrorCode, format string, args ...any) error {
	return &ParseError{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// StreamError carries the error code and message reported by an external
// stream back-end. It matches ErrStream.
type StreamError struct {
	Code    int
	Message string
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream error %d: %s", e.Code, e.Message)
}

func (e *StreamError) Is(target error) bool { return target == ErrStream }
