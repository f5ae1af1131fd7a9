package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SegmentsRelocated.Inc()
	m.BytesWritten.Add(512)
	m.CacheMemoryBytes.Set(1024)

	require.InDelta(t, 1, testutil.ToFloat64(m.SegmentsRelocated), 0)
	require.InDelta(t, 512, testutil.ToFloat64(m.BytesWritten), 0)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)

	// a second set on another registry does not clash
	require.NotPanics(t, func() { New(prometheus.NewRegistry()) })
}

func TestDiscard(t *testing.T) {
	a := Discard()
	b := Discard()
	a.CacheHits.Inc()
	require.InDelta(t, 1, testutil.ToFloat64(a.CacheHits), 0)
	require.InDelta(t, 0, testutil.ToFloat64(b.CacheHits), 0)
}
