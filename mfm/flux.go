package mfm

import (
	"fmt"

	"github.com/sergev/fluxclock/flux"
)

// Synthesize converts MFM bitcells (MSB-first) into a flux buffer of one revolution.
// The buffer starts with an index pulse at time zero, and every 1 bitcell ends
// with a transition.
func Synthesize(mfmBits []byte, bitcellNs float64) (*flux.Buffer, error) {
	if len(mfmBits) == 0 {
		return nil, fmt.Errorf("empty MFM data")
	}
	if !(bitcellNs > 0) {
		return nil, fmt.Errorf("bitcell period %v ns: %w", bitcellNs, flux.ErrInvalidConfig)
	}

	buf := flux.NewBuffer(len(mfmBits)*4+1, 0)
	if err := buf.Add(0, 0, flux.FlagIndex|flux.FlagSynthetic); err != nil {
		return nil, err
	}
	for i := 0; i < len(mfmBits)*8; i++ {
		if mfmBits[i/8]&(1<<(7-i%8)) == 0 {
			continue
		}
		if err := buf.AddTime(float64(i+1)*bitcellNs, flux.FlagSynthetic); err != nil {
			return nil, fmt.Errorf("bitcell %d: %w", i, err)
		}
	}
	return buf, nil
}
