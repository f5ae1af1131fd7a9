// Package bitmap holds decoded pixel data and the pixel operations used when
// composing sub-blocks: fill, copy with offset, copy through a bitonal mask,
// nearest-neighbor resize and pixel type conversion.
//
// Pixel memory is accessed through a lock guard:
//
//	lck := bm.Lock()
//	defer lck.Unlock()
//	row := lck.Row(0)
//
// Locks are counted. Release reports ErrLockImbalance while any guard is still
// held, and unlocking a guard twice reports the same error.
package bitmap

import (
	"fmt"
	"sync/atomic"

	"github.com/arloliu/czi/errs"
	"github.com/arloliu/czi/format"
	"github.com/arloliu/czi/geom"
)

// Bitmap is a rectangular block of pixels of one pixel type. Rows are stored
// top to bottom, Stride bytes apart.
type Bitmap struct {
	pixelType format.PixelType
	width     int
	height    int
	stride    int
	data      []byte
	locks     atomic.Int32
}

// New allocates a zeroed bitmap with the minimal stride.
func New(pixelType format.PixelType, width, height int) (*Bitmap, error) {
	if err := checkDimensions(pixelType, width, height); err != nil {
		return nil, err
	}

	stride := width * pixelType.BytesPerPixel()

	return &Bitmap{
		pixelType: pixelType,
		width:     width,
		height:    height,
		stride:    stride,
		data:      make([]byte, stride*height),
	}, nil
}

// MustNew is like New but panics on invalid arguments. It is meant for tests
// and for sizes that were already validated.
func MustNew(pixelType format.PixelType, width, height int) *Bitmap {
	bm, err := New(pixelType, width, height)
	if err != nil {
		panic(err)
	}

	return bm
}

// FromData wraps existing pixel memory without copying it.
//
// Parameters:
//   - pixelType: Pixel type of data
//   - width, height: Bitmap size in pixels
//   - stride: Distance between rows in bytes, at least width*bytesPerPixel
//   - data: Pixel memory, at least stride*(height-1)+width*bytesPerPixel bytes
//
// Returns:
//   - *Bitmap: Bitmap sharing data
//   - error: ErrInvalidArgument if the arguments are inconsistent
func FromData(pixelType format.PixelType, width, height, stride int, data []byte) (*Bitmap, error) {
	if err := checkDimensions(pixelType, width, height); err != nil {
		return nil, err
	}

	lineBytes := width * pixelType.BytesPerPixel()
	if stride < lineBytes {
		return nil, fmt.Errorf("%w: stride %d is smaller than %d", errs.ErrInvalidArgument, stride, lineBytes)
	}
	if height > 0 && len(data) < stride*(height-1)+lineBytes {
		return nil, fmt.Errorf("%w: %d bytes of pixel data, need %d", errs.ErrInvalidArgument, len(data), stride*(height-1)+lineBytes)
	}

	return &Bitmap{pixelType: pixelType, width: width, height: height, stride: stride, data: data}, nil
}

func checkDimensions(pixelType format.PixelType, width, height int) error {
	if pixelType.BytesPerPixel() <= 0 {
		return fmt.Errorf("%w: pixel type %s", errs.ErrInvalidArgument, pixelType)
	}
	if width < 0 || height < 0 {
		return fmt.Errorf("%w: bitmap size %dx%d", errs.ErrInvalidArgument, width, height)
	}

	return nil
}

// PixelType returns the pixel type.
func (b *Bitmap) PixelType() format.PixelType { return b.pixelType }

// Width returns the width in pixels.
func (b *Bitmap) Width() int { return b.width }

// Height returns the height in pixels.
func (b *Bitmap) Height() int { return b.height }

// Size returns width and height.
func (b *Bitmap) Size() geom.IntSize { return geom.IntSize{W: b.width, H: b.height} }

// Stride returns the row distance in bytes.
func (b *Bitmap) Stride() int { return b.stride }

// LockCount returns the number of guards currently held.
func (b *Bitmap) LockCount() int { return int(b.locks.Load()) }

// Lock acquires access to the pixel memory. Every guard must be unlocked exactly once.
func (b *Bitmap) Lock() *Locked {
	b.locks.Add(1)

	return &Locked{bm: b, Data: b.data, Stride: b.stride}
}

// Release checks that the bitmap can be discarded.
//
// Returns:
//   - error: ErrLockImbalance if guards are still held
func (b *Bitmap) Release() error {
	if n := b.locks.Load(); n != 0 {
		return fmt.Errorf("%w: bitmap released with lock count %d", errs.ErrLockImbalance, n)
	}

	return nil
}

// Clone returns a deep copy with minimal stride.
func (b *Bitmap) Clone() *Bitmap {
	c := MustNew(b.pixelType, b.width, b.height)
	src := b.Lock()
	defer src.Unlock() //nolint:errcheck

	line := b.width * b.pixelType.BytesPerPixel()
	for y := range b.height {
		copy(c.data[y*c.stride:y*c.stride+line], src.Row(y))
	}

	return c
}

// SizeInBytes returns the amount of pixel memory held.
func (b *Bitmap) SizeInBytes() int64 {
	return int64(len(b.data))
}

// Locked is a guard giving access to the pixel memory of a bitmap.
type Locked struct {
	bm       *Bitmap
	Data     []byte
	Stride   int
	released bool
}

// Row returns the bytes of row y, without padding.
func (l *Locked) Row(y int) []byte {
	off := y * l.Stride
	return l.Data[off : off+l.bm.width*l.bm.pixelType.BytesPerPixel()]
}

// Unlock releases the guard.
//
// Returns:
//   - error: ErrLockImbalance if the guard was already unlocked
func (l *Locked) Unlock() error {
	if l.released {
		return fmt.Errorf("%w: unlock without matching lock", errs.ErrLockImbalance)
	}
	l.released = true
	l.bm.locks.Add(-1)

	return nil
}
