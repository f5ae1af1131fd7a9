package directory

import (
	"maps"
	"math"
	"slices"

	"github.com/arloliu/czi/dims"
	"github.com/arloliu/czi/format"
	"github.com/arloliu/czi/geom"
)

// NoSceneIndex is the scene key of entries without S dimension.
const NoSceneIndex = math.MaxInt32

// BoundingBoxes holds the bounding box of a set of entries and the bounding
// box of its layer-0 subset. Either may be invalid.
type BoundingBoxes struct {
	BoundingBox       geom.IntRect
	BoundingBoxLayer0 geom.IntRect
}

func invalidBoxes() BoundingBoxes {
	return BoundingBoxes{BoundingBox: geom.InvalidRect(), BoundingBoxLayer0: geom.InvalidRect()}
}

func (b *BoundingBoxes) add(e *SubBlockEntry) {
	b.BoundingBox = b.BoundingBox.Union(e.LogicalRect)
	if e.IsLayer0() {
		b.BoundingBoxLayer0 = b.BoundingBoxLayer0.Union(e.LogicalRect)
	}
}

// Statistics summarizes the sub-blocks of a directory.
type Statistics struct {
	SubBlockCount int
	// MinMIndex and MaxMIndex are InvalidMIndex unless every entry has an M-index.
	MinMIndex int
	MaxMIndex int
	BoundingBoxes
	DimBounds dims.Bounds
	// SceneBoundingBoxes is keyed by S index, or NoSceneIndex for entries without S.
	SceneBoundingBoxes map[int]BoundingBoxes
}

// IsMIndexValid reports whether MinMIndex and MaxMIndex are meaningful.
func (s Statistics) IsMIndexValid() bool {
	return s.MinMIndex != InvalidMIndex && s.MaxMIndex != InvalidMIndex
}

func newStatistics() Statistics {
	return Statistics{
		MinMIndex:          InvalidMIndex,
		MaxMIndex:          InvalidMIndex,
		BoundingBoxes:      invalidBoxes(),
		SceneBoundingBoxes: make(map[int]BoundingBoxes),
	}
}

func sceneOf(e *SubBlockEntry) int {
	if s, ok := e.Coordinate.TryGet(format.DimensionS); ok {
		return s
	}

	return NoSceneIndex
}

func computeStatistics(d *SubBlockDirectory) Statistics {
	s := newStatistics()
	allHaveM := true
	minM, maxM := math.MaxInt, math.MinInt

	d.EnumerateAll(func(_ int, e *SubBlockEntry) bool {
		s.SubBlockCount++
		s.add(e)

		for _, dim := range e.Coordinate.Dimensions() {
			v, _ := e.Coordinate.TryGet(dim)
			s.DimBounds.Extend(dim, v)
		}

		if e.IsMIndexValid() {
			minM = min(minM, e.MIndex)
			maxM = max(maxM, e.MIndex)
		} else {
			allHaveM = false
		}

		scene := sceneOf(e)
		boxes, ok := s.SceneBoundingBoxes[scene]
		if !ok {
			boxes = invalidBoxes()
		}
		boxes.add(e)
		s.SceneBoundingBoxes[scene] = boxes

		return true
	})

	if allHaveM && s.SubBlockCount > 0 {
		s.MinMIndex, s.MaxMIndex = minM, maxM
	}

	return s
}

// Statistics returns the statistics of the current entries. The result is
// cached until the next mutation; the returned scene map is a copy.
func (d *SubBlockDirectory) Statistics() Statistics {
	if d.stats == nil {
		s := computeStatistics(d)
		d.stats = &s
	}

	out := *d.stats
	out.SceneBoundingBoxes = maps.Clone(d.stats.SceneBoundingBoxes)

	return out
}

// PyramidLayerInfo identifies a pyramid layer. Layer 0 has factor 0 and
// number 0; a tile whose minification matches no layer has both set to 0xff.
type PyramidLayerInfo struct {
	MinificationFactor uint8
	PyramidLayerNo     uint8
}

// IsLayer0 reports whether the info describes the base layer.
func (p PyramidLayerInfo) IsLayer0() bool {
	return p.MinificationFactor == 0 || p.PyramidLayerNo == 0
}

// IsNotIdentified reports whether the tile matched no pyramid layer.
func (p PyramidLayerInfo) IsNotIdentified() bool {
	return p.MinificationFactor == 0xff && p.PyramidLayerNo == 0xff
}

// TotalMinification returns factor^layerNo, or 1 for layer 0.
func (p PyramidLayerInfo) TotalMinification() int {
	if p.IsLayer0() {
		return 1
	}

	total := 1
	for range p.PyramidLayerNo {
		total *= int(p.MinificationFactor)
	}

	return total
}

// PyramidLayerStatistics counts the sub-blocks of one pyramid layer.
type PyramidLayerStatistics struct {
	Layer PyramidLayerInfo
	Count int
}

// PyramidStatistics groups the sub-blocks by scene and pyramid layer. Each
// scene list is sorted by ascending total minification, unidentified last.
type PyramidStatistics struct {
	ScenePyramidStatistics map[int][]PyramidLayerStatistics
}

type minificationRange struct {
	value, delta float64
	layer        uint8
}

var factor2Layers = []minificationRange{
	{2, .1, 1}, {4, .2, 2}, {8, .4, 3}, {16, .8, 4}, {32, 1, 5},
	{64, 1, 6}, {128, 1, 7}, {256, 2, 8}, {512, 4, 9}, {1024, 10, 10},
}

var factor3Layers = []minificationRange{
	{3, .1, 1}, {9, .2, 2}, {27, .8, 3}, {81, 1.5, 4}, {243, 2, 5}, {729, 5, 6}, {2187, 15, 7},
}

// DeterminePyramidLayer derives the pyramid layer of an entry from the ratio
// of logical to stored size on the larger stored axis. Ratios that are neither
// a power of two nor a power of three are not identified, and neither are
// entries whose other axis is off by more than one pixel from the size that
// layer implies.
func DeterminePyramidLayer(e *SubBlockEntry) (PyramidLayerInfo, bool) {
	info, ok := layerOfMinification(e)
	if !ok || info.IsLayer0() || axesAgree(e, info) {
		return info, ok
	}

	return PyramidLayerInfo{MinificationFactor: 0xff, PyramidLayerNo: 0xff}, false
}

// axesAgree checks the axis Zoom does not look at against layer info derived
// from the other. The axis agrees if its own ratio falls in the same layer
// range or if it is within one pixel of the size the layer implies.
func axesAgree(e *SubBlockEntry, info PyramidLayerInfo) bool {
	logical, stored := e.LogicalRect.H, e.PhysicalSize.H
	if e.PhysicalSize.W < e.PhysicalSize.H {
		logical, stored = e.LogicalRect.W, e.PhysicalSize.W
	}

	if math.Abs(float64(stored)-float64(logical)/float64(info.TotalMinification())) <= 1 {
		return true
	}
	if stored <= 0 {
		return false
	}

	ranges := factor2Layers
	if info.MinificationFactor == 3 {
		ranges = factor3Layers
	}
	r := ranges[info.PyramidLayerNo-1]
	minification := float64(logical) / float64(stored)

	return minification >= r.value-r.delta && minification <= r.value+r.delta
}

func layerOfMinification(e *SubBlockEntry) (PyramidLayerInfo, bool) {
	if e.IsLayer0() {
		return PyramidLayerInfo{}, true
	}

	zoom := e.Zoom()
	if zoom <= 0 {
		return PyramidLayerInfo{MinificationFactor: 0xff, PyramidLayerNo: 0xff}, false
	}
	minification := 1 / zoom

	for _, tbl := range []struct {
		factor uint8
		ranges []minificationRange
	}{{2, factor2Layers}, {3, factor3Layers}} {
		for _, r := range tbl.ranges {
			if minification >= r.value-r.delta && minification <= r.value+r.delta {
				return PyramidLayerInfo{MinificationFactor: tbl.factor, PyramidLayerNo: r.layer}, true
			}
		}
	}

	return PyramidLayerInfo{MinificationFactor: 0xff, PyramidLayerNo: 0xff}, false
}

func computePyramidStatistics(d *SubBlockDirectory) PyramidStatistics {
	ps := PyramidStatistics{ScenePyramidStatistics: make(map[int][]PyramidLayerStatistics)}

	d.EnumerateAll(func(_ int, e *SubBlockEntry) bool {
		layer, _ := DeterminePyramidLayer(e)
		scene := sceneOf(e)
		list := ps.ScenePyramidStatistics[scene]

		i := slices.IndexFunc(list, func(s PyramidLayerStatistics) bool { return s.Layer == layer })
		if i >= 0 {
			list[i].Count++
		} else {
			list = append(list, PyramidLayerStatistics{Layer: layer, Count: 1})
		}
		ps.ScenePyramidStatistics[scene] = list

		return true
	})

	for _, list := range ps.ScenePyramidStatistics {
		slices.SortStableFunc(list, func(a, b PyramidLayerStatistics) int {
			return layerRank(a.Layer) - layerRank(b.Layer)
		})
	}

	return ps
}

func layerRank(p PyramidLayerInfo) int {
	if p.IsNotIdentified() {
		return math.MaxInt32
	}

	return p.TotalMinification()
}

// PyramidStatistics returns the pyramid statistics of the current entries.
// The statistics are cached until the next mutation; the caller gets its own
// copy.
func (d *SubBlockDirectory) PyramidStatistics() PyramidStatistics {
	if d.pyramidStats == nil {
		ps := computePyramidStatistics(d)
		d.pyramidStats = &ps
	}

	return d.pyramidStats.Clone()
}

// Clone returns a deep copy of p.
func (p PyramidStatistics) Clone() PyramidStatistics {
	out := PyramidStatistics{ScenePyramidStatistics: make(map[int][]PyramidLayerStatistics, len(p.ScenePyramidStatistics))}
	for scene, list := range p.ScenePyramidStatistics {
		out.ScenePyramidStatistics[scene] = slices.Clone(list)
	}

	return out
}
