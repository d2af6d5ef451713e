// Package metrics exposes decoding statistics as Prometheus collectors.
package metrics

import (
	"fmt"
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/sergev/fluxclock/pll"
)

const namespace = "fluxclock"

// Recorder counts decoding events. It implements decode.Observer.
type Recorder struct {
	bitsTotal        *prometheus.CounterVec
	goodBitsTotal    *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
	syncLossesTotal  *prometheus.CounterVec
	weakCellsTotal   prometheus.Counter
	rmsJitterGauge   *prometheus.GaugeVec
	tracksTotal      *prometheus.CounterVec
}

// NewRecorder creates the collectors and registers them on reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		bitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bits_total",
				Help:      "Bitcells emitted by clock recovery",
			},
			[]string{"strategy"},
		),
		goodBitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "good_bits_total",
				Help:      "Bitcells emitted while in sync",
			},
			[]string{"strategy"},
		),
		transitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transitions_total",
				Help:      "Flux transitions consumed by clock recovery",
			},
			[]string{"strategy"},
		),
		syncLossesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_losses_total",
				Help:      "Reported losses of synchronisation",
			},
			[]string{"strategy"},
		),
		weakCellsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "weak_cells_total",
				Help:      "Cells classified as weak across revolutions",
			},
		),
		rmsJitterGauge: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "rms_jitter_ns",
				Help:      "RMS phase jitter of the last decoded track",
			},
			[]string{"strategy"},
		),
		tracksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tracks_total",
				Help:      "Decoded tracks or revolutions",
			},
			[]string{"strategy"},
		),
	}

	for _, c := range []prometheus.Collector{
		r.bitsTotal, r.goodBitsTotal, r.transitionsTotal, r.syncLossesTotal,
		r.weakCellsTotal, r.rmsJitterGauge, r.tracksTotal,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return r, nil
}

// TrackDecoded records the statistics of one decoded track.
func (r *Recorder) TrackDecoded(strategy string, st pll.Stats) {
	r.tracksTotal.WithLabelValues(strategy).Inc()
	r.bitsTotal.WithLabelValues(strategy).Add(float64(st.TotalBits))
	r.goodBitsTotal.WithLabelValues(strategy).Add(float64(st.GoodBits))
	r.transitionsTotal.WithLabelValues(strategy).Add(float64(st.Transitions))
	r.rmsJitterGauge.WithLabelValues(strategy).Set(st.RMSJitterNs)
}

// SyncLost records one loss of synchronisation.
func (r *Recorder) SyncLost(strategy string) {
	r.syncLossesTotal.WithLabelValues(strategy).Inc()
}

// WeakCells records cells classified as weak.
func (r *Recorder) WeakCells(n int) {
	if n > 0 {
		r.weakCellsTotal.Add(float64(n))
	}
}

// WriteText gathers the fluxclock metrics and writes them in the
// Prometheus text exposition format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if !ours(mf) {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

func ours(mf *dto.MetricFamily) bool {
	return strings.HasPrefix(mf.GetName(), namespace+"_")
}
