package thresholds

// band is one (lower bound, label) pair of a tagged-range classifier.
type band struct {
	lower float64
	label string
}

// classify walks bands top-down and returns the label of the first band
// whose lower bound the value meets (>=). Bands must be ordered from
// highest lower bound to lowest. Every band classifier in this package
// goes through here so first-match-wins semantics stay consistent.
func classify(value float64, bands []band, fallback string) string {
	for _, b := range bands {
		if value >= b.lower {
			return b.label
		}
	}
	return fallback
}
