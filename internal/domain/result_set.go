package domain

// ResultSet is an insertion-ordered, capacity-bounded mapping from source
// label to CandidateImage. No two entries are near-duplicates.
type ResultSet struct {
	max     int
	entries []*CandidateImage
	byLabel map[string]*CandidateImage
}

// NewResultSet returns an empty set holding at most max entries.
func NewResultSet(max int) *ResultSet {
	if max < 0 {
		max = 0
	}
	return &ResultSet{
		max:     max,
		entries: make([]*CandidateImage, 0, max),
		byLabel: make(map[string]*CandidateImage, max),
	}
}

// Full reports whether the set reached its capacity.
func (r *ResultSet) Full() bool {
	return len(r.entries) >= r.max
}

// Len returns the number of accepted entries.
func (r *ResultSet) Len() int { return len(r.entries) }

// Max returns the capacity.
func (r *ResultSet) Max() int { return r.max }

// HasNearDuplicate reports whether img is a near-duplicate of any accepted entry.
func (r *ResultSet) HasNearDuplicate(img *CandidateImage) bool {
	for _, e := range r.entries {
		if NearDuplicate(e, img) {
			return true
		}
	}
	return false
}

// Add accepts img under its SourceLabel. It returns false when the set is
// full, the label is taken, the image is empty or a near-duplicate of an
// accepted entry.
func (r *ResultSet) Add(img *CandidateImage) bool {
	if img == nil || img.Image == nil || r.Full() {
		return false
	}
	if _, taken := r.byLabel[img.SourceLabel]; taken {
		return false
	}
	if r.HasNearDuplicate(img) {
		return false
	}
	r.entries = append(r.entries, img)
	r.byLabel[img.SourceLabel] = img
	return true
}

// Get returns the entry stored under label.
func (r *ResultSet) Get(label string) (*CandidateImage, bool) {
	img, ok := r.byLabel[label]
	return img, ok
}

// Entries returns the accepted entries in insertion order.
func (r *ResultSet) Entries() []*CandidateImage {
	out := make([]*CandidateImage, len(r.entries))
	copy(out, r.entries)
	return out
}

// Labels returns the accepted labels in insertion order.
func (r *ResultSet) Labels() []string {
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.SourceLabel)
	}
	return out
}
