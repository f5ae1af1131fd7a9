// Package accessor composes regions of interest from the sub-blocks of a
// document.
//
// Three accessors share one compositing core:
//
//   - TileAccessor paints the layer-0 sub-blocks of a plane into a bitmap at
//     full resolution.
//   - ScalingAccessor paints a region at an arbitrary zoom, choosing for each
//     scene the pyramid layer that is closest to the requested zoom without
//     upsampling a coarser layer.
//   - PyramidLayerAccessor paints exactly one pyramid layer at that layer's
//     resolution.
//
// Paint order is defined: with Options.SortByM the sub-blocks are painted by
// ascending M-index so that the sub-block with the highest M-index ends up
// on top. With Options.VisibilityOptimization, sub-blocks that are completely
// covered by sub-blocks painted after them are neither read nor decoded; the
// result is the same pixel for pixel.
//
// Sub-blocks are read and decoded in parallel and painted sequentially in
// paint order. A Source that is not safe for concurrent reads, such as a
// document.ReaderWriter, must be used with WithConcurrency(1).
//
// ComposeMultiChannel blends already composed channel bitmaps into one Bgr24
// or Bgra32 bitmap.
//
// Example:
//
//	r, _ := document.Open(in)
//	acc, _ := accessor.NewTileAccessor(r)
//	plane, _ := dims.Parse("C0")
//	bm, err := acc.Get(geom.IntRect{W: 1024, H: 1024}, plane, accessor.DefaultOptions())
package accessor
