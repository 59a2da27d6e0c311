package scan

import "github.com/Abhishekkr206/WebBaseline/baseline"

// Span marks one occurrence of a recognized web feature in scanned text.
// Offsets are byte positions into the exact string given to Scan.
type Span struct {
	Key    string `json:"key"`
	Start  int    `json:"start"`
	Length int    `json:"length"`
}

// End returns the offset one past the last byte of the span.
func (s Span) End() int {
	return s.Start + s.Length
}

// Result groups emitted spans by adoption tier. Inside a bucket spans keep
// discovery order, and every occurrence stays its own span even when the
// same feature repeats.
type Result struct {
	Limited []Span `json:"limited"`
	Newly   []Span `json:"newly"`
	Widely  []Span `json:"widely"`
}

func (r *Result) add(tier baseline.Tier, span Span) {
	switch tier {
	case baseline.TierNewly:
		r.Newly = append(r.Newly, span)
	case baseline.TierWidely:
		r.Widely = append(r.Widely, span)
	default:
		r.Limited = append(r.Limited, span)
	}
}

// Bucket returns the spans of one tier.
func (r Result) Bucket(tier baseline.Tier) []Span {
	switch tier {
	case baseline.TierNewly:
		return r.Newly
	case baseline.TierWidely:
		return r.Widely
	default:
		return r.Limited
	}
}

// Count reports how many spans landed in one tier.
func (r Result) Count(tier baseline.Tier) int {
	return len(r.Bucket(tier))
}

// Total reports the number of spans across all tiers.
func (r Result) Total() int {
	return len(r.Limited) + len(r.Newly) + len(r.Widely)
}

// Empty reports whether the scan produced no spans at all.
func (r Result) Empty() bool {
	return r.Total() == 0
}

// Merge appends the spans of other, moving every offset by shift. It maps
// spans found in an embedded fragment back into the coordinates of the
// document the fragment was cut from.
func (r *Result) Merge(other Result, shift int) {
	for _, tier := range baseline.Tiers() {
		for _, span := range other.Bucket(tier) {
			span.Start += shift
			r.add(tier, span)
		}
	}
}
