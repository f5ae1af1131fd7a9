// Package cache keeps decoded sub-block bitmaps keyed by sub-block index so
// that repeated compositions do not read and decode the same sub-block again.
//
// The cache never evicts on its own; call Prune to bring it back under a
// memory and element budget. Eviction is least recently used, where both Add
// and a successful Get count as a use.
//
// With WithCompression the pixels are stored compressed with one of the byte
// codecs of package compress and decompressed into a new bitmap on Get.
// Without it the bitmap passed to Add is stored and returned as is, so callers
// must not modify bitmaps after adding them.
//
// All methods are safe for concurrent use.
package cache

import (
	"container/list"
	"sync"

	"github.com/arloliu/czi/bitmap"
	"github.com/arloliu/czi/compress"
	"github.com/arloliu/czi/format"
	"github.com/arloliu/czi/internal/metrics"
	"github.com/arloliu/czi/internal/options"
)

// Option configures a Cache.
type Option = options.Option[*Cache]

// WithCompression stores cached pixels compressed with the given codec.
func WithCompression(t format.CompressionType) Option {
	return options.New(func(c *Cache) error {
		codec, err := compress.GetCodec(t)
		if err != nil {
			return err
		}
		if t != format.CompressionNone {
			c.codec = codec
		}

		return nil
	})
}

// WithMetrics sets the collectors for hits, misses and memory usage.
func WithMetrics(m *metrics.Metrics) Option {
	return options.NoError(func(c *Cache) {
		if m != nil {
			c.metrics = m
		}
	})
}

// Statistics is a consistent snapshot of the cache state.
type Statistics struct {
	// MemoryUsage is the number of bytes held by the cached elements.
	MemoryUsage int64
	// ElementsCount is the number of cached elements.
	ElementsCount int
}

// PruneOptions are the limits Prune enforces. A negative value disables the
// respective limit.
type PruneOptions struct {
	MaxMemoryUsage   int64
	MaxSubBlockCount int
}

type entry struct {
	index int
	size  int64

	bm   *bitmap.Bitmap
	mask *bitmap.Bitonal

	packed    []byte
	pixelType format.PixelType
	width     int
	height    int
}

// Cache is an LRU cache of sub-block bitmaps.
type Cache struct {
	mu      sync.Mutex
	items   map[int]*list.Element
	lru     *list.List
	memory  int64
	codec   compress.Codec
	metrics *metrics.Metrics
}

// New creates an empty cache.
func New(opts ...Option) (*Cache, error) {
	c := &Cache{
		items:   make(map[int]*list.Element),
		lru:     list.New(),
		metrics: metrics.Discard(),
	}
	if err := options.Apply(c, opts...); err != nil {
		return nil, err
	}

	return c, nil
}

// Get returns the bitmap cached for the sub-block index.
//
// Returns:
//   - *bitmap.Bitmap: The cached bitmap, nil on a miss
//   - error: codec errors when the cache is compressed
func (c *Cache) Get(index int) (*bitmap.Bitmap, error) {
	bm, _, err := c.GetWithMask(index)
	return bm, err
}

// GetWithMask is like Get and also returns the valid-pixel mask stored with
// the bitmap, which may be nil. Masks are never compressed.
func (c *Cache) GetWithMask(index int) (*bitmap.Bitmap, *bitmap.Bitonal, error) {
	c.mu.Lock()
	elem, ok := c.items[index]
	if !ok {
		c.mu.Unlock()
		c.metrics.CacheMisses.Inc()

		return nil, nil, nil
	}
	c.lru.MoveToFront(elem)
	e, _ := elem.Value.(*entry)
	c.mu.Unlock()

	c.metrics.CacheHits.Inc()
	if e.bm != nil {
		return e.bm, e.mask, nil
	}

	raw, err := c.codec.Decompress(e.packed)
	if err != nil {
		return nil, nil, err
	}
	bm, err := bitmap.FromData(e.pixelType, e.width, e.height, e.width*e.pixelType.BytesPerPixel(), raw)
	if err != nil {
		return nil, nil, err
	}

	return bm, e.mask, nil
}

// Add caches bm for the sub-block index, replacing a previous element.
func (c *Cache) Add(index int, bm *bitmap.Bitmap) error {
	return c.AddWithMask(index, bm, nil)
}

// AddWithMask caches bm together with its valid-pixel mask.
func (c *Cache) AddWithMask(index int, bm *bitmap.Bitmap, mask *bitmap.Bitonal) error {
	e := &entry{index: index, mask: mask}
	if mask != nil {
		e.size = int64(len(mask.Data))
	}
	if c.codec == nil {
		e.bm = bm
		e.size += bm.SizeInBytes()
	} else {
		packed, err := c.codec.Compress(packPixels(bm))
		if err != nil {
			return err
		}
		e.packed = packed
		e.size += int64(len(packed))
		e.pixelType, e.width, e.height = bm.PixelType(), bm.Width(), bm.Height()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[index]; ok {
		old, _ := elem.Value.(*entry)
		c.memory -= old.size
		elem.Value = e
		c.lru.MoveToFront(elem)
	} else {
		c.items[index] = c.lru.PushFront(e)
	}
	c.memory += e.size
	c.metrics.CacheMemoryBytes.Set(float64(c.memory))

	return nil
}

// Prune evicts least recently used elements until both limits hold.
func (c *Cache) Prune(opts PruneOptions) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for c.lru.Len() > 0 {
		memOK := opts.MaxMemoryUsage < 0 || c.memory <= opts.MaxMemoryUsage
		countOK := opts.MaxSubBlockCount < 0 || c.lru.Len() <= opts.MaxSubBlockCount
		if memOK && countOK {
			break
		}

		elem := c.lru.Back()
		e, _ := elem.Value.(*entry)
		c.lru.Remove(elem)
		delete(c.items, e.index)
		c.memory -= e.size
	}
	c.metrics.CacheMemoryBytes.Set(float64(c.memory))
}

// Statistics returns the current memory usage and element count.
func (c *Cache) Statistics() Statistics {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Statistics{MemoryUsage: c.memory, ElementsCount: c.lru.Len()}
}

func packPixels(bm *bitmap.Bitmap) []byte {
	line := bm.Width() * bm.PixelType().BytesPerPixel()
	out := make([]byte, 0, line*bm.Height())

	lck := bm.Lock()
	defer lck.Unlock() //nolint:errcheck
	for y := range bm.Height() {
		out = append(out, lck.Row(y)...)
	}

	return out
}
