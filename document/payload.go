package document

import (
	"fmt"

	"github.com/arloliu/czi/errs"
	"github.com/arloliu/czi/internal/pool"
)

type payloadKind uint8

const (
	payloadEmpty payloadKind = iota
	payloadBytes
	payloadStrided
	payloadLines
	payloadPull
)

// PullFunc delivers the next chunk of a pulled payload. call counts the
// invocations from zero and offset is the number of bytes received so far.
// Returning false ends the payload; the rest of the declared size is
// zero-filled.
type PullFunc func(call int, offset int64) ([]byte, bool)

// Payload is the source of the pixel data, metadata or attachment bytes of a
// segment. The zero value is an empty payload.
type Payload struct {
	kind     payloadKind
	data     []byte
	stride   int
	lineSize int
	lines    int
	line     func(y int) []byte
	size     int64
	pull     PullFunc
}

// BytesPayload uses data as is.
func BytesPayload(data []byte) Payload {
	if len(data) == 0 {
		return Payload{}
	}

	return Payload{kind: payloadBytes, data: data, size: int64(len(data))}
}

// StridedPayload takes lines rows of lineSize bytes from data, where
// consecutive rows start stride bytes apart.
func StridedPayload(data []byte, stride, lineSize, lines int) Payload {
	return Payload{
		kind:     payloadStrided,
		data:     data,
		stride:   stride,
		lineSize: lineSize,
		lines:    lines,
		size:     int64(lineSize) * int64(lines),
	}
}

// LinePayload asks fn for each of lines rows of lineSize bytes. Short rows are
// zero-filled and long rows truncated.
func LinePayload(lineSize, lines int, fn func(y int) []byte) Payload {
	return Payload{
		kind:     payloadLines,
		lineSize: lineSize,
		lines:    lines,
		line:     fn,
		size:     int64(lineSize) * int64(lines),
	}
}

// PullPayload declares size bytes delivered in chunks by fn.
func PullPayload(size int64, fn PullFunc) Payload {
	return Payload{kind: payloadPull, size: size, pull: fn}
}

// Size returns the declared payload size.
func (p Payload) Size() int64 {
	return p.size
}

func (p Payload) validate() error {
	switch p.kind {
	case payloadEmpty, payloadBytes:
		return nil
	case payloadStrided:
		if p.lineSize < 0 || p.lines < 0 || p.stride < p.lineSize {
			return fmt.Errorf("%w: stride %d, line size %d, lines %d", errs.ErrInvalidArgument, p.stride, p.lineSize, p.lines)
		}
		if p.lines > 0 && len(p.data) < p.stride*(p.lines-1)+p.lineSize {
			return fmt.Errorf("%w: %d bytes for %d lines of stride %d", errs.ErrInvalidArgument, len(p.data), p.lines, p.stride)
		}
	case payloadLines:
		if p.lineSize < 0 || p.lines < 0 || p.line == nil {
			return fmt.Errorf("%w: line payload without callback", errs.ErrInvalidArgument)
		}
	case payloadPull:
		if p.size < 0 || (p.size > 0 && p.pull == nil) {
			return fmt.Errorf("%w: pull payload of size %d", errs.ErrInvalidArgument, p.size)
		}
	}

	return nil
}

// writeTo appends exactly Size bytes to buf.
func (p Payload) writeTo(buf *pool.ByteBuffer) error {
	switch p.kind {
	case payloadEmpty:
		return nil
	case payloadBytes:
		buf.MustWrite(p.data)
	case payloadStrided:
		for y := range p.lines {
			off := y * p.stride
			buf.MustWrite(p.data[off : off+p.lineSize])
		}
	case payloadLines:
		for y := range p.lines {
			appendFixed(buf, p.line(y), p.lineSize)
		}
	case payloadPull:
		return p.writePulled(buf)
	}

	return nil
}

func (p Payload) writePulled(buf *pool.ByteBuffer) error {
	var received int64
	for call := 0; received < p.size; call++ {
		chunk, ok := p.pull(call, received)
		if !ok {
			break
		}
		if len(chunk) == 0 {
			return fmt.Errorf("%w: call %d returned no data", errs.ErrGetDataCall, call)
		}

		n := min(int64(len(chunk)), p.size-received)
		buf.MustWrite(chunk[:n])
		received += n
	}
	buf.AppendZeros(int(p.size - received))

	return nil
}

func appendFixed(buf *pool.ByteBuffer, data []byte, size int) {
	n := min(len(data), size)
	buf.MustWrite(data[:n])
	buf.AppendZeros(size - n)
}
