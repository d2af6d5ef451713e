// Package decode runs flux captures through clock recovery.
//
// A Decoder owns one strategy and decodes tracks one at a time:
// optional drift compensation, then every transition is fed to the
// strategy and the resulting bits are collected.
package decode

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sergev/fluxclock/flux"
	"github.com/sergev/fluxclock/pll"
)

// ErrNoFlux is returned for a nil or empty capture.
var ErrNoFlux = errors.New("no flux data")

// Observer receives decoding events, for instrumentation.
type Observer interface {
	TrackDecoded(strategy string, st pll.Stats)
	SyncLost(strategy string)
	WeakCells(n int)
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithLogger sets the logger. The standard logrus logger is used by default.
func WithLogger(log logrus.FieldLogger) Option {
	return func(d *Decoder) { d.log = log }
}

// WithObserver sets the event observer.
func WithObserver(o Observer) Option {
	return func(d *Decoder) { d.observer = o }
}

// WithExpectedRotation enables drift compensation against a nominal
// rotation time in nanoseconds.
func WithExpectedRotation(ns float64) Option {
	return func(d *Decoder) { d.rotationNs = ns }
}

// Decoder turns flux buffers into bit streams.
// It is not safe for concurrent use; create one per goroutine.
type Decoder struct {
	strategy   pll.Strategy
	log        logrus.FieldLogger
	observer   Observer
	rotationNs float64
}

// New creates a decoder with the clock recovery strategy selected by cfg.
func New(cfg pll.Config, opts ...Option) (*Decoder, error) {
	s, err := pll.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("clock recovery: %w", err)
	}
	d := &Decoder{
		strategy: s,
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Strategy returns the clock recovery strategy of the decoder.
func (d *Decoder) Strategy() pll.Strategy { return d.strategy }

// Result is one decoded track.
type Result struct {
	Bits       []uint8   // One entry per bitcell, 0 or 1
	IndexBits  []int     // Bit offsets at which index pulses were seen
	SyncLosses []int     // Bit offsets at which sync was lost
	Locked     bool      // Lock state at the end of the track
	Drift      float64   // Measured drift, 1.0 when not compensated
	Stats      pll.Stats // Strategy statistics for this track
}

// Bytes packs the bits MSB-first. A partial last byte is padded with zeros.
func (r *Result) Bytes() []byte {
	out := make([]byte, (len(r.Bits)+7)/8)
	for i, bit := range r.Bits {
		if bit != 0 {
			out[i/8] |= 1 << (7 - i%8)
		}
	}
	return out
}

// Track decodes one track. The strategy starts from its initial state,
// so tracks are independent of each other. The buffer is not modified.
func (d *Decoder) Track(buf *flux.Buffer) (*Result, error) {
	if buf == nil || buf.Len() == 0 {
		return nil, ErrNoFlux
	}
	s := d.strategy
	s.Reset()
	log := d.log.WithField("strategy", s.Name())

	res := &Result{Drift: 1.0}
	if d.rotationNs > 0 {
		res.Drift = flux.EstimateDrift(buf, d.rotationNs)
		if res.Drift != 1.0 {
			buf = buf.Clone()
			flux.CompensateDrift(buf, res.Drift)
			log.WithField("drift", res.Drift).Debug("Compensated rotation drift")
		}
	}

	res.Bits = make([]uint8, 0, buf.Len()*2)
	prev := 0.0
	for i := 0; i < buf.Len(); i++ {
		sample := buf.At(i)
		if sample.IsIndex() {
			s.MarkIndex()
			if s.Index() {
				res.IndexBits = append(res.IndexBits, len(res.Bits))
			}
			continue
		}

		t := sample.Time()
		res.Bits = pll.Decode(s, t-prev, res.Bits)
		prev = t

		if s.SyncLost() {
			res.SyncLosses = append(res.SyncLosses, len(res.Bits))
			log.WithFields(logrus.Fields{
				"bit":    len(res.Bits),
				"sample": i,
			}).Warn("Lost sync")
			if d.observer != nil {
				d.observer.SyncLost(s.Name())
			}
		}
	}

	res.Locked = s.Locked()
	res.Stats = s.Stats()
	log.WithFields(logrus.Fields{
		"bits":    res.Stats.TotalBits,
		"success": res.Stats.SuccessRate(),
		"jitter":  res.Stats.RMSJitterNs,
	}).Debug("Decoded track")
	if d.observer != nil {
		d.observer.TrackDecoded(s.Name(), res.Stats)
	}
	return res, nil
}
