// Package pool recycles the scratch memory of the writer and the accessors:
// segment and directory assembly buffers and float32 accumulation slices.
package pool

import "sync"

// Default capacities and retention limits of the package-level pools.
//
// A segment buffer holds one header plus its data part, so it is sized for a
// typical tile. Directory buffers hold every entry of a directory segment.
const (
	SegmentBufferDefaultSize    = 64 << 10
	SegmentBufferMaxThreshold   = 4 << 20
	DirectoryBufferDefaultSize  = 256 << 10
	DirectoryBufferMaxThreshold = 16 << 20
	largeBufferBoundary         = 4 * SegmentBufferDefaultSize
)

// ByteBuffer accumulates the bytes of a segment before it is placed on a
// stream in a single write.
type ByteBuffer struct {
	B []byte
}

// NewByteBuffer returns an empty buffer with the given capacity.
func NewByteBuffer(capacity int) *ByteBuffer {
	return &ByteBuffer{B: make([]byte, 0, capacity)}
}

// Bytes returns the assembled bytes. The slice is only valid until the next
// call that modifies the buffer.
func (bb *ByteBuffer) Bytes() []byte { return bb.B }

// Len returns the number of assembled bytes.
func (bb *ByteBuffer) Len() int { return len(bb.B) }

// Cap returns the current capacity.
func (bb *ByteBuffer) Cap() int { return cap(bb.B) }

// Reset drops the content and keeps the capacity.
func (bb *ByteBuffer) Reset() { bb.B = bb.B[:0] }

// MustWrite appends data.
func (bb *ByteBuffer) MustWrite(data []byte) {
	bb.B = append(bb.B, data...)
}

// Write implements io.Writer and never fails.
func (bb *ByteBuffer) Write(data []byte) (int, error) {
	bb.MustWrite(data)
	return len(data), nil
}

// Reserve appends n bytes and returns them for in-place encoding of a fixed
// size record such as a directory entry. The reserved bytes are not cleared.
func (bb *ByteBuffer) Reserve(n int) []byte {
	start := len(bb.B)
	bb.Grow(n)
	bb.B = bb.B[:start+n]

	return bb.B[start:]
}

// AppendZeros appends n zero bytes. Non-positive n is a no-op.
func (bb *ByteBuffer) AppendZeros(n int) {
	if n <= 0 {
		return
	}
	clear(bb.Reserve(n))
}

// Grow makes room for at least n more bytes without changing the length.
//
// Small buffers grow by SegmentBufferDefaultSize and large ones by a quarter of
// their capacity, so a run of sub-block writes does not reallocate per tile.
func (bb *ByteBuffer) Grow(n int) {
	if cap(bb.B)-len(bb.B) >= n {
		return
	}

	step := SegmentBufferDefaultSize
	if cap(bb.B) > largeBufferBoundary {
		step = cap(bb.B) / 4
	}

	grown := make([]byte, len(bb.B), len(bb.B)+max(step, n))
	copy(grown, bb.B)
	bb.B = grown
}

// ByteBufferPool recycles ByteBuffers. Buffers that grew past maxThreshold
// are released to the garbage collector on Put, so a single huge sub-block
// does not pin its memory for the life of the process.
type ByteBufferPool struct {
	pool         sync.Pool
	maxThreshold int
}

// NewByteBufferPool creates a pool handing out buffers of defaultSize
// capacity. A maxThreshold of zero retains every buffer.
func NewByteBufferPool(defaultSize int, maxThreshold int) *ByteBufferPool {
	return &ByteBufferPool{
		pool: sync.Pool{
			New: func() any { return NewByteBuffer(defaultSize) },
		},
		maxThreshold: maxThreshold,
	}
}

// Get returns an empty buffer.
func (p *ByteBufferPool) Get() *ByteBuffer {
	bb, _ := p.pool.Get().(*ByteBuffer)
	return bb
}

// Put resets bb and returns it to the pool. Nil is ignored.
func (p *ByteBufferPool) Put(bb *ByteBuffer) {
	if bb == nil || (p.maxThreshold > 0 && cap(bb.B) > p.maxThreshold) {
		return
	}
	bb.Reset()
	p.pool.Put(bb)
}

var (
	segmentPool   = NewByteBufferPool(SegmentBufferDefaultSize, SegmentBufferMaxThreshold)
	directoryPool = NewByteBufferPool(DirectoryBufferDefaultSize, DirectoryBufferMaxThreshold)
)

// GetSegmentBuffer returns a buffer for one sub-block, attachment or
// metadata segment.
func GetSegmentBuffer() *ByteBuffer { return segmentPool.Get() }

// PutSegmentBuffer releases a buffer obtained from GetSegmentBuffer.
func PutSegmentBuffer(bb *ByteBuffer) { segmentPool.Put(bb) }

// GetDirectoryBuffer returns a buffer for a sub-block or attachment
// directory segment.
func GetDirectoryBuffer() *ByteBuffer { return directoryPool.Get() }

// PutDirectoryBuffer releases a buffer obtained from GetDirectoryBuffer.
func PutDirectoryBuffer(bb *ByteBuffer) { directoryPool.Put(bb) }
