package bitmap

import (
	"fmt"

	"github.com/arloliu/czi/errs"
)

// Bitonal is a one bit per pixel bitmap. Bits are packed MSB first; each row
// starts on a byte boundary, Stride bytes apart.
type Bitonal struct {
	Width  int
	Height int
	Stride int
	Data   []byte
}

// NewBitonal allocates a cleared bitonal bitmap with minimal stride.
func NewBitonal(width, height int) *Bitonal {
	stride := (width + 7) / 8

	return &Bitonal{Width: width, Height: height, Stride: stride, Data: make([]byte, stride*height)}
}

// BitonalFromData wraps packed bits.
//
// Returns:
//   - error: ErrInvalidArgument if stride or data are too small
func BitonalFromData(width, height, stride int, data []byte) (*Bitonal, error) {
	if width < 0 || height < 0 {
		return nil, fmt.Errorf("%w: bitonal size %dx%d", errs.ErrInvalidArgument, width, height)
	}
	if stride < (width+7)/8 {
		return nil, fmt.Errorf("%w: bitonal stride %d too small for width %d", errs.ErrInvalidArgument, stride, width)
	}
	if len(data) < stride*height {
		return nil, fmt.Errorf("%w: bitonal data has %d bytes, need %d", errs.ErrInvalidArgument, len(data), stride*height)
	}

	return &Bitonal{Width: width, Height: height, Stride: stride, Data: data}, nil
}

// Get returns the bit at (x, y). Positions outside the bitmap read as false.
func (b *Bitonal) Get(x, y int) bool {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return false
	}

	return b.Data[y*b.Stride+x/8]&(0x80>>(x%8)) != 0
}

// Set sets the bit at (x, y). Positions outside the bitmap are ignored.
func (b *Bitonal) Set(x, y int, v bool) {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return
	}

	idx := y*b.Stride + x/8
	if v {
		b.Data[idx] |= 0x80 >> (x % 8)
	} else {
		b.Data[idx] &^= 0x80 >> (x % 8)
	}
}

// Fill sets all bits to v.
func (b *Bitonal) Fill(v bool) {
	fill := byte(0)
	if v {
		fill = 0xff
	}
	for i := range b.Data {
		b.Data[i] = fill
	}
}
