package domain

const (
	nearDuplicateLow  = 0.9
	nearDuplicateHigh = 1.1
)

// NearDuplicate reports whether two raster images are within 10% of each
// other in both width and height. Dimension proximity is only a proxy: two
// distinct logos served at the same size collide, and the same logo served at
// different resolutions does not.
func NearDuplicate(a, b *CandidateImage) bool {
	aw, ah := a.Width(), a.Height()
	bw, bh := b.Width(), b.Height()
	if aw <= 0 || ah <= 0 || bw <= 0 || bh <= 0 {
		return false
	}
	return withinBand(ratio(aw, bw)) && withinBand(ratio(ah, bh))
}

// ratio returns larger/smaller.
func ratio(x, y int) float64 {
	if x < y {
		x, y = y, x
	}
	return float64(x) / float64(y)
}

func withinBand(r float64) bool {
	return r >= nearDuplicateLow && r <= nearDuplicateHigh
}
