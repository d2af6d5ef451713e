package track

// Region is a run of consecutive weak cells.
type Region struct {
	StartNs int64 // Time of the first weak cell
	EndNs   int64 // Time of the last weak cell
	Bits    int   // Number of cells in the run
}

// FindWeakRegions collapses runs of consecutive weak cells into regions,
// in track order. At most max regions are returned; max <= 0 means no limit.
// A run still open at the end of the track is closed there.
func (b *Buffer) FindWeakRegions(max int) []Region {
	var regions []Region
	inRegion := false
	var cur Region

	for _, c := range b.cells {
		if max > 0 && len(regions) >= max {
			return regions
		}
		weak := c.State() == Weak
		switch {
		case !inRegion && weak:
			cur = Region{StartNs: c.Time(), EndNs: c.Time(), Bits: 1}
			inRegion = true
		case inRegion && weak:
			cur.EndNs = c.Time()
			cur.Bits++
		case inRegion && !weak:
			regions = append(regions, cur)
			inRegion = false
		}
	}
	if inRegion && (max <= 0 || len(regions) < max) {
		regions = append(regions, cur)
	}
	return regions
}
