package pll

import (
	"math"

	"github.com/sergev/fluxclock/bitcell"
)

const (
	historySize      = 32   // Phase error history for bandwidth adaptation
	historyMinimum   = 5    // History entries required before adapting
	jitterGain       = 0.1  // Bandwidth increase per bitcell of average error
	goodErrorRatio   = 0.25 // Largest good error, fraction of bitcell
	minGainDenom     = 1e-10
	initialErrorCov  = 1.0
	maxGapCells      = 1 << 20
	quantizeMaxCells = 255
)

// Kalman is a clock recovery loop with a one-dimensional Kalman filter
// over the per-cell phase error and an adaptive loop bandwidth.
type Kalman struct {
	cfg Config

	stateEstimate float64 // Filtered phase error per cell
	errorCov      float64
	bandwidth     float64

	history    [historySize]float64
	historyLen int
	historyPos int

	clockNs  float64
	clockMin float64
	clockMax float64
	phaseNs  float64 // Time of the last transition
	now      float64 // Absolute time of the input stream

	lockCount int
	locked    bool
	syncLost  bool
	index     bool

	pending []Outcome
	head    int

	totalBits   int
	goodBits    int
	transitions int
	syncLosses  int
	indexPulses int
	sumSqError  float64
}

// NewKalman creates an adaptive PLL from a validated configuration.
func NewKalman(cfg Config) (*Kalman, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	k := &Kalman{
		cfg:      cfg,
		clockMin: cfg.BitcellNs * (100 - cfg.TolerancePct) / 100,
		clockMax: cfg.BitcellNs * (100 + cfg.TolerancePct) / 100,
	}
	k.Reset()
	return k, nil
}

// Name returns "kalman".
func (k *Kalman) Name() string { return AlgorithmKalman.String() }

// Reset restores the initial state.
func (k *Kalman) Reset() {
	k.stateEstimate = 0
	k.errorCov = initialErrorCov
	k.bandwidth = k.cfg.Bandwidth
	k.history = [historySize]float64{}
	k.historyLen = 0
	k.historyPos = 0
	k.clockNs = k.cfg.BitcellNs
	k.phaseNs = 0
	k.now = 0
	k.lockCount = 0
	k.locked = false
	k.syncLost = false
	k.index = false
	k.pending = k.pending[:0]
	k.head = 0
	k.totalBits = 0
	k.goodBits = 0
	k.transitions = 0
	k.syncLosses = 0
	k.indexPulses = 0
	k.sumSqError = 0
}

// AddFlux advances the absolute time by one flux interval and
// queues the bits of that interval. An empty interval merges its
// transition into the previous one and queues nothing.
func (k *Kalman) AddFlux(deltaNs float64) {
	if !(deltaNs > 0) {
		k.transitions++
		return
	}
	if deltaNs > maxFluxNs {
		deltaNs = maxFluxNs
	}
	k.now += deltaNs
	n, _ := k.ProcessTransition(k.now)

	if k.head == len(k.pending) {
		k.pending = k.pending[:0]
		k.head = 0
	}
	for i := 1; i < n; i++ {
		k.pending = append(k.pending, Zero)
	}
	k.pending = append(k.pending, One)
}

// NextBit returns the next queued bit.
func (k *Kalman) NextBit() Outcome {
	if k.head >= len(k.pending) {
		return NeedMoreData
	}
	o := k.pending[k.head]
	k.head++
	return o
}

// quantize rounds an interval to whole clock periods, at least one.
func quantize(interval, clock float64) int {
	if !(interval > 0) || !(clock > 0) {
		return 1
	}
	if interval < math.MaxUint32 && clock < math.MaxUint32 {
		n := bitcell.CellsForDeltaRange(uint32(math.Round(interval)), uint32(math.Round(clock)), 1, quantizeMaxCells)
		if n < quantizeMaxCells {
			return int(n)
		}
	}
	n := math.Round(interval / clock)
	if n > maxGapCells {
		return maxGapCells
	}
	if n < 1 {
		return 1
	}
	return int(n)
}

// ProcessTransition updates the filter with a transition at absolute time
// fluxNs. It returns the number of bitcells since the previous transition
// and whether the transition was within a quarter bitcell of its expected time.
//
// Intervals longer than MaxCells carry no usable phase information:
// they are counted, but the filter is left untouched.
func (k *Kalman) ProcessTransition(fluxNs float64) (cells int, good bool) {
	n := quantize(fluxNs-k.phaseNs, k.clockNs)
	expected := k.phaseNs + float64(n)*k.clockNs
	errNs := fluxNs - expected
	k.phaseNs = fluxNs
	k.transitions++
	k.totalBits += n
	k.sumSqError += errNs * errNs

	good = n <= k.cfg.MaxCells && math.Abs(errNs) < goodErrorRatio*k.cfg.BitcellNs
	if n <= k.cfg.MaxCells {
		k.update(errNs / float64(n))
	}

	wasLocked := k.locked
	if good {
		k.goodBits += n
		k.lockCount++
	} else {
		k.lockCount = 0
	}
	k.locked = k.lockCount >= k.cfg.LockThreshold
	if wasLocked && !k.locked {
		k.syncLost = true
		k.syncLosses++
	}
	return n, good
}

// update runs one predict/update step and retunes the clock.
func (k *Kalman) update(perCell float64) {
	// Predict
	predictedCov := k.errorCov + k.cfg.ProcessNoise

	// Update
	denom := predictedCov + k.cfg.MeasureNoise
	if denom < minGainDenom {
		denom = minGainDenom
	}
	gain := predictedCov / denom
	k.stateEstimate += gain * (perCell - k.stateEstimate)
	k.errorCov = (1 - gain) * predictedCov

	// Adaptive bandwidth
	k.history[k.historyPos] = math.Abs(perCell)
	k.historyPos = (k.historyPos + 1) % historySize
	if k.historyLen < historySize {
		k.historyLen++
	}
	if k.historyLen >= historyMinimum {
		sum := 0.0
		for i := 0; i < k.historyLen; i++ {
			sum += k.history[i]
		}
		avg := sum / float64(k.historyLen)
		k.bandwidth = k.cfg.Bandwidth + jitterGain*(avg/k.cfg.BitcellNs)
		k.bandwidth = math.Min(math.Max(k.bandwidth, k.cfg.AdaptiveMin), k.cfg.AdaptiveMax)
	}

	k.clockNs += k.bandwidth * k.stateEstimate
	k.clockNs = math.Min(math.Max(k.clockNs, k.clockMin), k.clockMax)
}

// MarkIndex records an index pulse.
func (k *Kalman) MarkIndex() {
	k.index = true
	k.indexPulses++
}

// Index reports and clears a pending index pulse.
func (k *Kalman) Index() bool {
	seen := k.index
	k.index = false
	return seen
}

// SyncLost reports and clears a pending loss of lock.
func (k *Kalman) SyncLost() bool {
	lost := k.syncLost
	k.syncLost = false
	return lost
}

// Locked reports whether at least LockThreshold consecutive transitions were good.
func (k *Kalman) Locked() bool { return k.locked }

// LockCount returns the number of consecutive good transitions.
func (k *Kalman) LockCount() int { return k.lockCount }

// Bandwidth returns the current loop bandwidth.
func (k *Kalman) Bandwidth() float64 { return k.bandwidth }

// Clock returns the current clock period in nanoseconds.
func (k *Kalman) Clock() float64 { return k.clockNs }

// ClockRange returns the clamping bounds of the clock period.
func (k *Kalman) ClockRange() (lo, hi float64) { return k.clockMin, k.clockMax }

// Stats returns the decoding statistics.
func (k *Kalman) Stats() Stats {
	st := Stats{
		TotalBits:   k.totalBits,
		GoodBits:    k.goodBits,
		Transitions: k.transitions,
		SyncLosses:  k.syncLosses,
		IndexPulses: k.indexPulses,
		ClockNs:     k.clockNs,
	}
	if k.transitions > 0 {
		st.RMSJitterNs = math.Sqrt(k.sumSqError / float64(k.transitions))
	}
	return st
}
