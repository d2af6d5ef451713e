package metrics

import (
	"bytes"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sergev/fluxclock/pll"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := NewRecorder(reg)
	require.NoError(t, err)

	r.TrackDecoded("classic", pll.Stats{TotalBits: 100, GoodBits: 90, Transitions: 40, RMSJitterNs: 12.5})
	r.TrackDecoded("classic", pll.Stats{TotalBits: 50, GoodBits: 50, Transitions: 20, RMSJitterNs: 8})
	r.TrackDecoded("kalman", pll.Stats{TotalBits: 10, Transitions: 4})
	r.SyncLost("classic")
	r.WeakCells(7)
	r.WeakCells(0)

	assert.Equal(t, 150.0, testutil.ToFloat64(r.bitsTotal.WithLabelValues("classic")))
	assert.Equal(t, 140.0, testutil.ToFloat64(r.goodBitsTotal.WithLabelValues("classic")))
	assert.Equal(t, 60.0, testutil.ToFloat64(r.transitionsTotal.WithLabelValues("classic")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.tracksTotal.WithLabelValues("classic")))
	assert.Equal(t, 8.0, testutil.ToFloat64(r.rmsJitterGauge.WithLabelValues("classic")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.syncLossesTotal.WithLabelValues("classic")))
	assert.Equal(t, 7.0, testutil.ToFloat64(r.weakCellsTotal))
	assert.Equal(t, 2, testutil.CollectAndCount(r.bitsTotal))
}

func TestRecorder_RegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewRecorder(reg)
	require.NoError(t, err)
	_, err = NewRecorder(reg)
	assert.Error(t, err)
}

func TestWriteText(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "other_total", Help: "x"}))
	r, err := NewRecorder(reg)
	require.NoError(t, err)
	r.TrackDecoded("kalman", pll.Stats{TotalBits: 3})

	var out bytes.Buffer
	require.NoError(t, WriteText(&out, reg))
	text := out.String()
	assert.Contains(t, text, `fluxclock_bits_total{strategy="kalman"} 3`)
	assert.Contains(t, text, "# TYPE fluxclock_weak_cells_total counter")
	assert.False(t, strings.Contains(text, "other_total"))
}
