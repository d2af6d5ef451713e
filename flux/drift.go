package flux

// EstimateDrift measures the rotation speed error of a capture from its index markers.
// The result is the ratio of the measured rotation time to the expected one:
// above 1.0 the drive ran slow, below 1.0 it ran fast.
// With fewer than two index markers the drift cannot be measured and 1.0 is returned.
func EstimateDrift(b *Buffer, expectedRotationNs float64) float64 {
	if b.indexCount < 2 || expectedRotationNs <= 0 {
		return 1.0
	}

	first, last := -1, -1
	for i, s := range b.samples {
		if !s.IsIndex() {
			continue
		}
		if first < 0 {
			first = i
		}
		last = i
	}

	rotations := b.indexCount - 1
	if rotations < 1 {
		rotations = 1
	}
	actualPerRotation := b.Delta(first, last) / float64(rotations)
	if actualPerRotation <= 0 {
		return 1.0
	}
	return actualPerRotation / expectedRotationNs
}

// CompensateDrift rescales every sample time by 1/driftRate, in place.
// A rate of exactly 1.0 or a non-positive rate leaves the buffer unchanged.
// Scaled times saturate at MaxTimeNs.
func CompensateDrift(b *Buffer, driftRate float64) {
	if driftRate == 1.0 || !(driftRate > 0) {
		return
	}
	scale := 1 / driftRate
	for i := range b.samples {
		s := &b.samples[i]
		t := s.Time()
		if t == 0 {
			continue
		}
		s.NS, s.Frac = splitTime(t * scale)
	}
}

// Standard floppy drive speeds
const (
	RPM300 = 300
	RPM360 = 360
)

// RotationNs returns the duration of one revolution at the given speed.
func RotationNs(rpm int) float64 {
	if rpm <= 0 {
		return 0
	}
	return 60e9 / float64(rpm)
}

// DetectRates calculates the rotation speed and bit rate of a capture
// from its first two index pulses.
// Return the calculated RPM: 300 or 360.
// Return the calculated bit rate: 250, 500 or 1000 bits/msec.
func DetectRates(b *Buffer) (rpm int, kbps int) {
	positions := b.IndexPositions()

	// Need at least 2 index pulses to calculate rotation period
	if len(positions) < 2 {
		return RPM300, 250 // Default RPM and bit rate
	}

	// Count transitions in the first revolution only
	countTransitions := 0
	for i := positions[0] + 1; i < positions[1]; i++ {
		if !b.samples[i].IsIndex() {
			countTransitions++
		}
	}

	trackDurationNs := b.Delta(positions[0], positions[1])
	if trackDurationNs <= 0 {
		return RPM300, 250
	}

	// Round to either 300 or 360 RPM (standard floppy drive speeds)
	// Use 330 RPM as the threshold (midpoint between 300 and 360)
	if 60e9/trackDurationNs < 330 {
		rpm = RPM300
	} else {
		rpm = RPM360
	}

	// Round to standard floppy drive bitrates: 250, 500, or 1000 kbps
	// Use thresholds: < 375 -> 250, < 750 -> 500, >= 750 -> 1000
	bitsPerMsec := float64(countTransitions) * 1e6 / trackDurationNs
	switch {
	case bitsPerMsec < 375:
		kbps = 250
	case bitsPerMsec < 750:
		kbps = 500
	default:
		kbps = 1000
	}
	return rpm, kbps
}

// BitcellNs returns the MFM bitcell period for a data rate in kbps.
func BitcellNs(kbps int) float64 {
	if kbps <= 0 {
		return 0
	}
	return 1e6 / float64(kbps) / 2
}
