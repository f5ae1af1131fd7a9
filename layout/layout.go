// Package layout places segments in a CZI stream.
//
// Segments are appended at the end of the file. Space for the directories
// and the metadata can be reserved right after the file header when a
// document is created; a reserved slot is written as a DELETED segment and
// turned into the real segment later if the payload fits.
//
// Updating a segment reuses its space when the new payload fits into the
// allocated size and relocates it otherwise: the old segment becomes a
// DELETED tombstone and the new one is appended. Tombstoned space is never
// reused within a session.
package layout

import (
	"fmt"

	"github.com/arloliu/czi/errs"
	"github.com/arloliu/czi/internal/metrics"
	"github.com/arloliu/czi/internal/options"
	"github.com/arloliu/czi/internal/pool"
	"github.com/arloliu/czi/section"
	"github.com/arloliu/czi/stream"
	"go.uber.org/zap"
)

// Placement locates a segment in the stream.
type Placement struct {
	// Offset is the position of the segment header.
	Offset int64
	// AllocatedSize is the payload space after the header.
	AllocatedSize int64
	// UsedSize is the payload size in use.
	UsedSize int64
}

// End returns the position right after the segment.
func (p Placement) End() int64 {
	return p.Offset + section.SegmentHeaderSize + p.AllocatedSize
}

type reservation struct {
	Placement
	used bool
}

// Option configures an Engine.
type Option = options.Option[*Engine]

// WithLogger sets the logger for segment placement events.
func WithLogger(logger *zap.Logger) Option {
	return options.NoError(func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	})
}

// WithMetrics sets the collectors updated by the engine.
func WithMetrics(m *metrics.Metrics) Option {
	return options.NoError(func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	})
}

// Engine allocates segment space in an output stream. It is not safe for
// concurrent use.
type Engine struct {
	out          stream.OutputStream
	next         int64
	reservations map[string]*reservation
	logger       *zap.Logger
	metrics      *metrics.Metrics
}

// New creates an engine that appends at nextFree, which must be aligned.
func New(out stream.OutputStream, nextFree int64, opts ...Option) (*Engine, error) {
	if nextFree < 0 || nextFree%section.SegmentAlignment != 0 {
		return nil, fmt.Errorf("%w: next free position %d is not aligned", errs.ErrInvalidArgument, nextFree)
	}

	e := &Engine{
		out:          out,
		next:         nextFree,
		reservations: make(map[string]*reservation),
		logger:       zap.NewNop(),
		metrics:      metrics.Discard(),
	}
	if err := options.Apply(e, opts...); err != nil {
		return nil, err
	}

	return e, nil
}

// NextFree returns the position where the next appended segment goes.
func (e *Engine) NextFree() int64 {
	return e.next
}

// Reserve writes a DELETED segment of payloadSize bytes at the end and
// remembers it as the slot for segments with the given id.
func (e *Engine) Reserve(id string, payloadSize int64) (Placement, error) {
	if payloadSize <= 0 {
		return Placement{}, fmt.Errorf("%w: reservation size %d", errs.ErrInvalidArgument, payloadSize)
	}
	if _, ok := e.reservations[id]; ok {
		return Placement{}, fmt.Errorf("%w: %s already has a reservation", errs.ErrInvalidArgument, id)
	}

	hdr := section.NewSegmentHeader(section.IDDeleted, payloadSize)
	p := Placement{Offset: e.next, AllocatedSize: hdr.AllocatedSize, UsedSize: 0}
	if err := e.writeAt(p.Offset, hdr.Bytes()); err != nil {
		return Placement{}, err
	}
	// make the file cover the whole slot
	if err := e.writeAt(p.End()-1, []byte{0}); err != nil {
		return Placement{}, err
	}

	e.reservations[id] = &reservation{Placement: p}
	e.next = p.End()
	e.logger.Debug("segment space reserved",
		zap.String("id", id), zap.Int64("offset", p.Offset), zap.Int64("allocated", p.AllocatedSize))

	return p, nil
}

// Reservation returns the unused reserved slot for id, if any.
func (e *Engine) Reservation(id string) (Placement, bool) {
	r, ok := e.reservations[id]
	if !ok || r.used {
		return Placement{}, false
	}

	return r.Placement, true
}

// Add writes a segment with the given id and payload. The reserved slot for
// id is used when it is still free and large enough; otherwise the segment is
// appended.
func (e *Engine) Add(id string, payload []byte) (Placement, error) {
	if r, ok := e.reservations[id]; ok && !r.used {
		if int64(len(payload)) <= r.AllocatedSize {
			p := Placement{Offset: r.Offset, AllocatedSize: r.AllocatedSize, UsedSize: int64(len(payload))}
			if err := e.writeSegment(id, p, payload); err != nil {
				return Placement{}, err
			}
			r.used = true
			e.logger.Debug("reservation used", zap.String("id", id), zap.Int64("offset", p.Offset))

			return p, nil
		}
		e.logger.Debug("reservation too small",
			zap.String("id", id), zap.Int64("reserved", r.AllocatedSize), zap.Int("needed", len(payload)))
	}

	return e.Append(id, payload)
}

// Append writes a segment at the end of the stream.
func (e *Engine) Append(id string, payload []byte) (Placement, error) {
	hdr := section.NewSegmentHeader(id, int64(len(payload)))
	p := Placement{Offset: e.next, AllocatedSize: hdr.AllocatedSize, UsedSize: hdr.UsedSize}
	if err := e.writeSegment(id, p, payload); err != nil {
		return Placement{}, err
	}

	e.next = p.End()
	e.logger.Debug("segment appended",
		zap.String("id", id), zap.Int64("offset", p.Offset), zap.Int64("allocated", p.AllocatedSize))

	return p, nil
}

// Replace writes payload over the segment at old if it fits, keeping the
// allocated size. Otherwise the old segment is tombstoned and the payload
// appended.
//
// Returns:
//   - Placement: Where the segment now lives
//   - bool: true if the segment was relocated
//   - error: I/O errors
func (e *Engine) Replace(old Placement, id string, payload []byte) (Placement, bool, error) {
	if int64(len(payload)) <= old.AllocatedSize {
		p := Placement{Offset: old.Offset, AllocatedSize: old.AllocatedSize, UsedSize: int64(len(payload))}
		if err := e.writeSegment(id, p, payload); err != nil {
			return Placement{}, false, err
		}
		e.metrics.SegmentsReused.Inc()
		e.logger.Debug("segment reused in place", zap.String("id", id), zap.Int64("offset", p.Offset))

		return p, false, nil
	}

	if err := e.Tombstone(old); err != nil {
		return Placement{}, false, err
	}
	p, err := e.Append(id, payload)
	if err != nil {
		return Placement{}, false, err
	}
	e.metrics.SegmentsRelocated.Inc()
	e.logger.Debug("segment relocated",
		zap.String("id", id), zap.Int64("from", old.Offset), zap.Int64("to", p.Offset))

	return p, true, nil
}

// Tombstone marks the segment at p as DELETED. The allocated size is kept
// and the used size set to zero.
func (e *Engine) Tombstone(p Placement) error {
	hdr := section.SegmentHeader{ID: section.IDDeleted, AllocatedSize: p.AllocatedSize}
	if err := e.writeAt(p.Offset, hdr.Bytes()); err != nil {
		return err
	}

	e.metrics.SegmentsTombstoned.Inc()
	e.logger.Debug("segment tombstoned", zap.Int64("offset", p.Offset), zap.Int64("allocated", p.AllocatedSize))

	return nil
}

func (e *Engine) writeSegment(id string, p Placement, payload []byte) error {
	buf := pool.GetSegmentBuffer()
	defer pool.PutSegmentBuffer(buf)

	hdr := section.SegmentHeader{ID: id, AllocatedSize: p.AllocatedSize, UsedSize: p.UsedSize}
	hdr.PutBytes(buf.Reserve(section.SegmentHeaderSize))
	buf.MustWrite(payload)

	// pad the tail of a freshly appended segment so the stream covers it
	if p.Offset+section.SegmentHeaderSize+p.AllocatedSize > e.next {
		buf.AppendZeros(int(p.AllocatedSize - p.UsedSize))
	}

	return e.writeAt(p.Offset, buf.Bytes())
}

func (e *Engine) writeAt(offset int64, data []byte) error {
	if err := stream.WriteFull(e.out, offset, data); err != nil {
		return err
	}
	e.metrics.BytesWritten.Add(float64(len(data)))

	return nil
}
