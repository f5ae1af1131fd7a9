package geom

import (
	"fmt"

	"github.com/arloliu/czi/errs"
	"github.com/arloliu/czi/format"
)

// PointAndFrame is a point tagged with the coordinate system it is expressed in.
type PointAndFrame struct {
	Frame format.FrameOfReference
	Point IntPoint
}

// RectAndFrame is a rectangle tagged with the coordinate system it is expressed in.
type RectAndFrame struct {
	Frame format.FrameOfReference
	Rect  IntRect
}

// ResolveFrame maps FrameOfReferenceDefault to def, and def itself to the raw
// sub-block coordinate system when it is also Default.
//
// Returns:
//   - format.FrameOfReference: Raw or Pixel
//   - error: ErrInvalidFrameOfReference for an invalid or unknown tag
func ResolveFrame(frame, def format.FrameOfReference) (format.FrameOfReference, error) {
	if frame == format.FrameOfReferenceDefault {
		frame = def
		if frame == format.FrameOfReferenceDefault {
			frame = format.FrameOfReferenceRawSubBlockCoordinate
		}
	}

	switch frame {
	case format.FrameOfReferenceRawSubBlockCoordinate, format.FrameOfReferencePixelCoordinate:
		return frame, nil
	default:
		return format.FrameOfReferenceInvalid, fmt.Errorf("%w: %d", errs.ErrInvalidFrameOfReference, frame)
	}
}

// TransformPoint converts p into the target frame. The pixel coordinate system
// is the raw system shifted so that the top-left of boundingBox is the origin.
//
// Parameters:
//   - p: source point with its frame
//   - target: requested frame (Default resolves through def)
//   - def: document-wide default frame
//   - boundingBox: current bounding box of all sub-blocks (raw coordinates)
func TransformPoint(p PointAndFrame, target, def format.FrameOfReference, boundingBox IntRect) (PointAndFrame, error) {
	from, err := ResolveFrame(p.Frame, def)
	if err != nil {
		return PointAndFrame{}, err
	}
	to, err := ResolveFrame(target, def)
	if err != nil {
		return PointAndFrame{}, err
	}

	out := PointAndFrame{Frame: to, Point: p.Point}
	if from == to {
		return out, nil
	}

	if from == format.FrameOfReferencePixelCoordinate {
		out.Point.X += boundingBox.X
		out.Point.Y += boundingBox.Y
	} else {
		out.Point.X -= boundingBox.X
		out.Point.Y -= boundingBox.Y
	}

	return out, nil
}

// TransformRect converts r into the target frame, see TransformPoint.
func TransformRect(r RectAndFrame, target, def format.FrameOfReference, boundingBox IntRect) (RectAndFrame, error) {
	p, err := TransformPoint(PointAndFrame{Frame: r.Frame, Point: IntPoint{X: r.Rect.X, Y: r.Rect.Y}}, target, def, boundingBox)
	if err != nil {
		return RectAndFrame{}, err
	}

	return RectAndFrame{Frame: p.Frame, Rect: IntRect{X: p.Point.X, Y: p.Point.Y, W: r.Rect.W, H: r.Rect.H}}, nil
}
