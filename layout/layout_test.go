package layout

import (
	"bytes"
	"testing"

	"github.com/arloliu/czi/errs"
	"github.com/arloliu/czi/internal/metrics"
	"github.com/arloliu/czi/section"
	"github.com/arloliu/czi/stream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const start = int64(section.SegmentHeaderSize + section.FileHeaderDataSize)

func newEngine(t *testing.T) (*Engine, *stream.Memory, *metrics.Metrics) {
	t.Helper()

	mem := stream.NewMemory()
	m := metrics.New(prometheus.NewRegistry())
	e, err := New(mem, start, WithLogger(zaptest.NewLogger(t)), WithMetrics(m))
	require.NoError(t, err)

	return e, mem, m
}

func readHeader(t *testing.T, mem *stream.Memory, p Placement) section.SegmentHeader {
	t.Helper()

	buf := make([]byte, section.SegmentHeaderSize)
	require.NoError(t, stream.ReadFull(mem, p.Offset, buf))
	hdr, err := section.ParseSegmentHeader(buf)
	require.NoError(t, err)

	return hdr
}

func countSegments(t *testing.T, mem *stream.Memory, from int64) (live, deleted int) {
	t.Helper()

	for off := from; off < mem.Size(); {
		hdr := readHeader(t, mem, Placement{Offset: off})
		if hdr.IsDeleted() {
			deleted++
		} else {
			live++
		}
		off += section.SegmentHeaderSize + hdr.AllocatedSize
	}

	return live, deleted
}

func TestNew(t *testing.T) {
	_, err := New(stream.NewMemory(), 33)
	require.ErrorIs(t, err, errs.ErrInvalidArgument)

	e, err := New(stream.NewMemory(), 64)
	require.NoError(t, err)
	require.Equal(t, int64(64), e.NextFree())
}

func TestAppend(t *testing.T) {
	e, mem, _ := newEngine(t)

	p1, err := e.Append(section.IDSubBlock, []byte("abc"))
	require.NoError(t, err)
	require.Equal(t, start, p1.Offset)
	require.Equal(t, int64(32), p1.AllocatedSize)
	require.Equal(t, int64(3), p1.UsedSize)

	p2, err := e.Append(section.IDAttachment, make([]byte, 40))
	require.NoError(t, err)
	require.Equal(t, p1.End(), p2.Offset)
	require.Equal(t, int64(64), p2.AllocatedSize)
	require.Equal(t, p2.End(), e.NextFree())
	require.Equal(t, p2.End(), mem.Size(), "stream must cover the padded segment")

	hdr := readHeader(t, mem, p1)
	require.Equal(t, section.IDSubBlock, hdr.ID)
	require.Equal(t, int64(3), hdr.UsedSize)

	payload := make([]byte, 3)
	require.NoError(t, stream.ReadFull(mem, p1.Offset+section.SegmentHeaderSize, payload))
	require.Equal(t, []byte("abc"), payload)
}

func TestReplace(t *testing.T) {
	t.Run("fits reuses in place", func(t *testing.T) {
		e, mem, m := newEngine(t)
		old, err := e.Append(section.IDMetadata, bytes.Repeat([]byte{1}, 60))
		require.NoError(t, err)
		end := e.NextFree()

		p, relocated, err := e.Replace(old, section.IDMetadata, bytes.Repeat([]byte{2}, 10))
		require.NoError(t, err)
		require.False(t, relocated)
		require.Equal(t, old.Offset, p.Offset)
		require.Equal(t, old.AllocatedSize, p.AllocatedSize)
		require.Equal(t, int64(10), p.UsedSize)
		require.Equal(t, end, e.NextFree())

		live, deleted := countSegments(t, mem, start)
		require.Equal(t, 1, live)
		require.Equal(t, 0, deleted)
		require.InDelta(t, 1, testutil.ToFloat64(m.SegmentsReused), 0)
	})

	t.Run("larger relocates and tombstones", func(t *testing.T) {
		e, mem, m := newEngine(t)
		old, err := e.Append(section.IDMetadata, make([]byte, 10))
		require.NoError(t, err)

		p, relocated, err := e.Replace(old, section.IDMetadata, make([]byte, 100))
		require.NoError(t, err)
		require.True(t, relocated)
		require.Equal(t, old.End(), p.Offset)

		hdr := readHeader(t, mem, old)
		require.True(t, hdr.IsDeleted())
		require.Equal(t, old.AllocatedSize, hdr.AllocatedSize)
		require.Equal(t, int64(0), hdr.UsedSize)

		live, deleted := countSegments(t, mem, start)
		require.Equal(t, 1, live)
		require.Equal(t, 1, deleted)
		require.InDelta(t, 1, testutil.ToFloat64(m.SegmentsRelocated), 0)
		require.InDelta(t, 1, testutil.ToFloat64(m.SegmentsTombstoned), 0)
	})
}

func TestReservation(t *testing.T) {
	e, mem, _ := newEngine(t)

	r, err := e.Reserve(section.IDSubBlockDirectory, 100)
	require.NoError(t, err)
	require.Equal(t, start, r.Offset)
	require.Equal(t, int64(128), r.AllocatedSize)
	require.Equal(t, r.End(), mem.Size())
	require.True(t, readHeader(t, mem, r).IsDeleted())

	_, err = e.Reserve(section.IDSubBlockDirectory, 10)
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
	_, err = e.Reserve(section.IDMetadata, 0)
	require.ErrorIs(t, err, errs.ErrInvalidArgument)

	got, ok := e.Reservation(section.IDSubBlockDirectory)
	require.True(t, ok)
	require.Equal(t, r, got)

	t.Run("payload that fits uses the slot", func(t *testing.T) {
		p, err := e.Add(section.IDSubBlockDirectory, make([]byte, 90))
		require.NoError(t, err)
		require.Equal(t, r.Offset, p.Offset)
		require.Equal(t, r.AllocatedSize, p.AllocatedSize)
		require.Equal(t, section.IDSubBlockDirectory, readHeader(t, mem, p).ID)

		_, ok := e.Reservation(section.IDSubBlockDirectory)
		require.False(t, ok, "a used reservation is gone")
	})

	t.Run("oversized payload is appended", func(t *testing.T) {
		r, err := e.Reserve(section.IDAttachmentDirectory, 32)
		require.NoError(t, err)

		p, err := e.Add(section.IDAttachmentDirectory, make([]byte, 33))
		require.NoError(t, err)
		require.Equal(t, r.End(), p.Offset)
		require.True(t, readHeader(t, mem, r).IsDeleted(), "unused reservation stays DELETED")
	})

	t.Run("no reservation appends", func(t *testing.T) {
		before := e.NextFree()
		p, err := e.Add(section.IDSubBlock, []byte{1})
		require.NoError(t, err)
		require.Equal(t, before, p.Offset)
	})
}

func TestTombstone(t *testing.T) {
	e, mem, _ := newEngine(t)
	p, err := e.Append(section.IDAttachment, make([]byte, 64))
	require.NoError(t, err)

	require.NoError(t, e.Tombstone(p))
	hdr := readHeader(t, mem, p)
	require.Equal(t, section.IDDeleted, hdr.ID)
	require.Equal(t, p.AllocatedSize, hdr.AllocatedSize)
	require.Zero(t, hdr.UsedSize)
	require.Equal(t, p.End(), e.NextFree(), "tombstoned space is not reused")
}
