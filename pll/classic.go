package pll

import (
	"math"
)

// maxFluxNs bounds a single flux interval to one second.
// Longer gaps in a corrupted capture are treated as this long.
const maxFluxNs = 1e9

// Classic is the SCP-style Phase-Locked Loop with integer arithmetic.
//
// The clock follows the observed phase while in sync (at most IN_SYNC_ZEROS
// clocked zeros before a transition), and is pulled back towards the centre
// otherwise. Part of the phase error is retained between bits.
type Classic struct {
	clock       int64 // Current clock period in nanoseconds
	clockCentre int64 // Nominal clock period
	clockMin    int64 // Minimum allowed clock period
	clockMax    int64 // Maximum allowed clock period
	flux        int64 // Accumulated flux time in nanoseconds
	residue     float64

	clockedZeros int // Count of consecutive clocked zeros
	goodBits     int // Bits since the last out of sync transition

	adjustPct    int64
	phasePct     int64
	fluxScalePct float64

	lockThreshold int
	inSyncRun     int
	syncLost      bool
	index         bool

	totalBits   int
	badBits     int
	transitions int
	syncLosses  int
	indexPulses int
	ones        int
	sumSqPhase  float64
}

// NewClassic creates a classic PLL from a validated configuration.
func NewClassic(cfg Config) (*Classic, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	centre := int64(math.Round(cfg.BitcellNs))
	if centre < 1 {
		centre = 1
	}
	p := &Classic{
		clockCentre:   centre,
		clockMin:      int64(math.Round(cfg.BitcellNs * (100 - cfg.TolerancePct) / 100)),
		clockMax:      int64(math.Round(cfg.BitcellNs * (100 + cfg.TolerancePct) / 100)),
		adjustPct:     int64(cfg.AdjustPct),
		phasePct:      int64(cfg.PhasePct),
		fluxScalePct:  float64(cfg.FluxScalePct),
		lockThreshold: cfg.LockThreshold,
	}
	if p.clockMin < 1 {
		p.clockMin = 1
	}
	if p.clockMax < p.clockCentre {
		p.clockMax = p.clockCentre
	}
	p.Reset()
	return p, nil
}

// Name returns "classic".
func (p *Classic) Name() string { return AlgorithmClassic.String() }

// Reset restores the initial state.
func (p *Classic) Reset() {
	p.clock = p.clockCentre
	p.flux = 0
	p.residue = 0
	p.clockedZeros = 0
	p.goodBits = 0
	p.inSyncRun = 0
	p.syncLost = false
	p.index = false
	p.totalBits = 0
	p.badBits = 0
	p.transitions = 0
	p.syncLosses = 0
	p.indexPulses = 0
	p.ones = 0
	p.sumSqPhase = 0
}

// AddFlux accumulates the next flux interval.
// Fractions of a nanosecond are carried over to the following interval.
func (p *Classic) AddFlux(deltaNs float64) {
	if math.IsNaN(deltaNs) || deltaNs < 0 {
		deltaNs = 0
	}
	delta := deltaNs*p.fluxScalePct/100 + p.residue
	if delta > maxFluxNs {
		delta = maxFluxNs
	}
	whole := math.Floor(delta)
	p.residue = delta - whole
	p.flux += int64(whole)
	p.clockedZeros = 0
	p.transitions++
}

// NextBit decodes and returns next bit from the accumulated flux.
func (p *Classic) NextBit() Outcome {
	if p.flux < p.clock/2 {
		return NeedMoreData
	}

	// Advance time by one clock period
	p.flux -= p.clock

	// Clocked zero: the remainder still covers half a period
	if p.flux >= p.clock/2 {
		p.clockedZeros++
		p.goodBits++
		p.totalBits++
		return Zero
	}

	// Transition detected - adjust PLL parameters
	if p.clockedZeros <= IN_SYNC_ZEROS {
		// In sync: adjust base clock by a fraction of phase mismatch
		p.clock += p.flux * p.adjustPct / 100
		p.inSyncRun++
	} else {
		// Out of sync: adjust base clock towards centre
		p.clock += (p.clockCentre - p.clock) * p.adjustPct / 100
		if p.goodBits >= SYNC_LOSS_BITS {
			p.syncLost = true
			p.syncLosses++
		}
		p.goodBits = 0
		p.inSyncRun = 0
		p.badBits += p.clockedZeros + 1
	}

	// Clamp the clock adjustment range
	if p.clock < p.clockMin {
		p.clock = p.clockMin
	}
	if p.clock > p.clockMax {
		p.clock = p.clockMax
	}

	p.ones++
	p.sumSqPhase += float64(p.flux) * float64(p.flux)

	// Adjust clock phase according to mismatch, keeping part of it
	p.flux = p.flux * (100 - p.phasePct) / 100

	p.goodBits++
	p.totalBits++
	return One
}

// MarkIndex records an index pulse.
func (p *Classic) MarkIndex() {
	p.index = true
	p.indexPulses++
}

// Index reports and clears a pending index pulse.
func (p *Classic) Index() bool {
	seen := p.index
	p.index = false
	return seen
}

// SyncLost reports and clears a pending loss of sync.
func (p *Classic) SyncLost() bool {
	lost := p.syncLost
	p.syncLost = false
	return lost
}

// Locked reports whether the last LockThreshold transitions were in sync.
func (p *Classic) Locked() bool {
	return p.inSyncRun >= p.lockThreshold
}

// ClockedZeros returns the number of zeros clocked since the last transition.
func (p *Classic) ClockedZeros() int { return p.clockedZeros }

// Clock returns the current clock period in nanoseconds.
func (p *Classic) Clock() int64 { return p.clock }

// ClockRange returns the clamping bounds of the clock period.
func (p *Classic) ClockRange() (lo, hi int64) { return p.clockMin, p.clockMax }

// Stats returns the decoding statistics.
// Bits of an interval that ended out of sync are not counted as good.
func (p *Classic) Stats() Stats {
	st := Stats{
		TotalBits:   p.totalBits,
		GoodBits:    p.totalBits - p.badBits,
		Transitions: p.transitions,
		SyncLosses:  p.syncLosses,
		IndexPulses: p.indexPulses,
		ClockNs:     float64(p.clock),
	}
	if st.GoodBits < 0 {
		st.GoodBits = 0
	}
	if p.ones > 0 {
		st.RMSJitterNs = math.Sqrt(p.sumSqPhase / float64(p.ones))
	}
	return st
}
