package document

import (
	"fmt"

	"github.com/arloliu/czi/compress"
	"github.com/arloliu/czi/dims"
	"github.com/arloliu/czi/directory"
	"github.com/arloliu/czi/errs"
	"github.com/arloliu/czi/format"
	"github.com/arloliu/czi/internal/metrics"
	"github.com/arloliu/czi/internal/options"
	"github.com/arloliu/czi/section"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Default reservation sizes used when a reservation is requested without an
// explicit size.
const (
	DefaultMetadataReservation            = 10 * 1024
	DefaultSubBlockDirectoryReservation   = 10
	DefaultAttachmentDirectoryReservation = 10

	// reservedEntrySize is the size of a DV entry with the maximum number of
	// dimensions.
	reservedEntrySize = section.SubBlockEntryDVFixed + section.MaxDimensionEntries*section.DimensionEntrySize
)

// config holds the settings of Writer, Reader and ReaderWriter. Options that
// do not apply to a type are ignored by it.
type config struct {
	logger  *zap.Logger
	metrics *metrics.Metrics

	fileGUID     uuid.UUID
	defaultFrame format.FrameOfReference
	registry     *compress.Registry

	dirOpts                   []directory.Option
	bounds                    dims.Bounds
	hasBounds                 bool
	mRange                    [2]int
	hasMRange                 bool
	allowDuplicateAttachments bool

	reserveSubBlockDir   int // -1: no reservation, 0: default size
	reserveAttachmentDir int
	reserveMetadata      int
}

func newConfig(opts []Option) (*config, error) {
	cfg := &config{
		logger:               zap.NewNop(),
		metrics:              metrics.Discard(),
		defaultFrame:         format.FrameOfReferenceRawSubBlockCoordinate,
		reserveSubBlockDir:   -1,
		reserveAttachmentDir: -1,
		reserveMetadata:      -1,
	}
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	if cfg.registry == nil {
		reg, err := compress.NewRegistry()
		if err != nil {
			return nil, err
		}
		cfg.registry = reg
	}

	return cfg, nil
}

// Option configures a Writer, Reader or ReaderWriter.
type Option = options.Option[*config]

// WriterOption, ReaderOption and ReaderWriterOption name the options in the
// signatures of the respective constructors.
type (
	WriterOption       = Option
	ReaderOption       = Option
	ReaderWriterOption = Option
)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return options.NoError(func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	})
}

// WithMetrics sets the collectors updated by the document.
func WithMetrics(m *metrics.Metrics) Option {
	return options.NoError(func(c *config) {
		if m != nil {
			c.metrics = m
		}
	})
}

// WithFileGUID sets the GUID written into a new file header. A random GUID is
// used otherwise.
func WithFileGUID(guid uuid.UUID) Option {
	return options.NoError(func(c *config) {
		c.fileGUID = guid
	})
}

// WithDefaultFrameOfReference sets the frame FrameOfReferenceDefault resolves
// to in TransformPoint and TransformRect.
func WithDefaultFrameOfReference(frame format.FrameOfReference) Option {
	return options.New(func(c *config) error {
		switch frame {
		case format.FrameOfReferenceRawSubBlockCoordinate, format.FrameOfReferencePixelCoordinate:
			c.defaultFrame = frame
			return nil
		case format.FrameOfReferenceDefault:
			c.defaultFrame = format.FrameOfReferenceRawSubBlockCoordinate
			return nil
		default:
			return fmt.Errorf("%w: %d", errs.ErrInvalidFrameOfReference, frame)
		}
	})
}

// WithCodecRegistry sets the pixel codecs used by AddSubBlockBitmap.
func WithCodecRegistry(reg *compress.Registry) Option {
	return options.NoError(func(c *config) {
		if reg != nil {
			c.registry = reg
		}
	})
}

// WithBounds restricts the coordinates of added sub-blocks.
func WithBounds(bounds dims.Bounds) Option {
	return options.NoError(func(c *config) {
		c.bounds = bounds
		c.hasBounds = true
		c.dirOpts = append(c.dirOpts, directory.WithBounds(bounds))
	})
}

// WithMIndexRange requires added sub-blocks to carry an M-index in
// [minIndex, maxIndex].
func WithMIndexRange(minIndex, maxIndex int) Option {
	return options.New(func(c *config) error {
		if minIndex > maxIndex {
			return fmt.Errorf("%w: M-index range [%d, %d]", errs.ErrInvalidArgument, minIndex, maxIndex)
		}
		c.mRange = [2]int{minIndex, maxIndex}
		c.hasMRange = true
		c.dirOpts = append(c.dirOpts, directory.WithMIndexRange(minIndex, maxIndex))

		return nil
	})
}

// WithAllowDuplicateSubBlocks accepts sub-blocks with a coordinate and
// M-index already present.
func WithAllowDuplicateSubBlocks(allow bool) Option {
	return options.NoError(func(c *config) {
		c.dirOpts = append(c.dirOpts, directory.WithAllowDuplicates(allow))
	})
}

// WithAllowDuplicateAttachments accepts attachments with a content file type
// and name already present.
func WithAllowDuplicateAttachments(allow bool) Option {
	return options.NoError(func(c *config) {
		c.allowDuplicateAttachments = allow
	})
}

// WithReserveSubBlockDirectory reserves room for entries sub-block directory
// entries right after the file header of a new document. With entries <= 0
// the size is derived from the bounds: the product of the bounded sizes and
// the M-index range, or DefaultSubBlockDirectoryReservation without bounds.
func WithReserveSubBlockDirectory(entries int) Option {
	return options.NoError(func(c *config) {
		c.reserveSubBlockDir = max(entries, 0)
	})
}

// WithReserveAttachmentDirectory reserves room for entries attachment
// directory entries. With entries <= 0 DefaultAttachmentDirectoryReservation
// is used.
func WithReserveAttachmentDirectory(entries int) Option {
	return options.NoError(func(c *config) {
		c.reserveAttachmentDir = max(entries, 0)
	})
}

// WithReserveMetadata reserves room for xmlSize bytes of metadata XML. With
// xmlSize <= 0 DefaultMetadataReservation is used.
func WithReserveMetadata(xmlSize int) Option {
	return options.NoError(func(c *config) {
		c.reserveMetadata = max(xmlSize, 0)
	})
}

func (c *config) newSubBlockDirectory() (*directory.SubBlockDirectory, error) {
	return directory.NewSubBlockDirectory(c.dirOpts...)
}

func (c *config) subBlockDirectoryReservation() int64 {
	entries := c.reserveSubBlockDir
	if entries == 0 {
		entries = DefaultSubBlockDirectoryReservation
		if c.hasBounds && !c.bounds.IsEmpty() {
			entries = 1
			for _, d := range c.bounds.Dimensions() {
				iv, _ := c.bounds.TryGet(d)
				entries *= max(iv.Size, 1)
			}
			if c.hasMRange {
				entries *= c.mRange[1] - c.mRange[0] + 1
			}
		}
	}

	return section.SubBlockDirectoryDataFixedSize + int64(entries)*reservedEntrySize
}

func (c *config) attachmentDirectoryReservation() int64 {
	entries := c.reserveAttachmentDir
	if entries == 0 {
		entries = DefaultAttachmentDirectoryReservation
	}

	return section.AttachmentDirectoryDataFixedSize + int64(entries)*section.AttachmentEntrySize
}

func (c *config) metadataReservation() int64 {
	size := c.reserveMetadata
	if size == 0 {
		size = DefaultMetadataReservation
	}

	return section.MetadataDataFixedSize + int64(size)
}
