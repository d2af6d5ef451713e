package decode

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sergev/fluxclock/flux"
	"github.com/sergev/fluxclock/track"
	"github.com/sergev/fluxclock/weakbit"
)

// MultiResult is the analysis of several revolutions of one track.
type MultiResult struct {
	Revolutions []*Result
	Best        int            // Index of the revolution decoded with the best timing
	Track       *track.Buffer  // Cells classified across revolutions
	Regions     []track.Region // Runs of weak cells
}

// BestResult returns the result of the best revolution.
func (m *MultiResult) BestResult() *Result {
	return m.Revolutions[m.Best]
}

// Revolutions decodes every revolution and classifies the cells
// of the track by comparing the revolutions with each other.
func (d *Decoder) Revolutions(revs []*flux.Buffer, cfg weakbit.Config) (*MultiResult, error) {
	det, err := weakbit.NewDetector(cfg)
	if err != nil {
		return nil, fmt.Errorf("weak bit detector: %w", err)
	}
	if len(revs) < cfg.MinRevolutions {
		return nil, fmt.Errorf("%d revolutions, need %d: %w", len(revs), cfg.MinRevolutions, weakbit.ErrTooFewRevolutions)
	}

	m := &MultiResult{Revolutions: make([]*Result, 0, len(revs))}
	for r, buf := range revs {
		res, err := d.Track(buf)
		if err != nil {
			return nil, fmt.Errorf("revolution %d: %w", r, err)
		}
		m.Revolutions = append(m.Revolutions, res)
	}
	m.Best = bestRevolution(m.Revolutions)

	m.Track, err = det.Analyze(revs)
	if err != nil {
		return nil, err
	}
	m.Regions = m.Track.FindWeakRegions(0)

	d.log.WithFields(logrus.Fields{
		"revolutions": len(revs),
		"best":        m.Best,
		"weak":        m.Track.WeakCount(),
		"regions":     len(m.Regions),
	}).Debug("Analyzed revolutions")
	if d.observer != nil {
		d.observer.WeakCells(m.Track.WeakCount())
	}
	return m, nil
}

// bestRevolution picks the revolution with the highest success rate,
// then the fewest sync losses, then the earliest.
func bestRevolution(results []*Result) int {
	best := 0
	for i, r := range results {
		b := results[best]
		rate, bestRate := r.Stats.SuccessRate(), b.Stats.SuccessRate()
		if rate > bestRate || (rate == bestRate && len(r.SyncLosses) < len(b.SyncLosses)) {
			best = i
		}
	}
	return best
}
