package mfm

// FindSync returns the offsets of every sync word in a bitcell stream
// holding one cell per entry. The missing clock bit keeps the sync word
// out of regular MFM data at any alignment.
func FindSync(cells []uint8) []int {
	var offsets []int
	var window uint16
	for i, c := range cells {
		window = window<<1 | uint16(c&1)
		if i >= 15 && window == SyncWord {
			offsets = append(offsets, i-15)
		}
	}
	return offsets
}
