// Package region provides contig-addressed half-open genomic intervals
// and the sorted-interval overlap test used to prune per-file region
// coverage.
package region

import (
	"fmt"
	"sort"
)

// Region is a half-open [Start, End) window on one contig.
type Region struct {
	Contig string
	Start  int
	End    int
}

func (r Region) String() string {
	return fmt.Sprintf("%s:%d-%d", r.Contig, r.Start, r.End)
}

// Span returns End - Start.
func (r Region) Span() int { return r.End - r.Start }

// Overlaps reports whether r and s share a contig and at least one
// position.
func (r Region) Overlaps(s Region) bool {
	return r.Contig == s.Contig && r.Start < s.End && s.Start < r.End
}

// Interval is a half-open [Start, End) coordinate range with no contig.
type Interval struct {
	Start int
	End   int
}

// Overlaps reports whether i and j share at least one position.
func (i Interval) Overlaps(j Interval) bool {
	return i.Start < j.End && j.Start < i.End
}

// Sort orders intervals ascending by start, then by end.
func Sort(ivs []Interval) {
	sort.Slice(ivs, func(a, b int) bool {
		if ivs[a].Start != ivs[b].Start {
			return ivs[a].Start < ivs[b].Start
		}
		return ivs[a].End < ivs[b].End
	})
}

// AnyOverlap reports whether any interval in ivs overlaps [start, end).
// ivs must be sorted ascending by start. The test may only err on the
// side of true for malformed input, never on the side of false for
// sorted input.
func AnyOverlap(ivs []Interval, start, end int) bool {
	// First interval starting at or past end; everything before it is a
	// candidate by start, and only the candidates' ends remain to check.
	// Ends are not ordered, so an interval wholly before start does not
	// rule out an earlier, longer one spanning it; the scan must reach
	// index 0 to conclude no overlap. Coverage lists are near-disjoint
	// in practice, so a miss is cheap anyway.
	hi := sort.Search(len(ivs), func(i int) bool { return ivs[i].Start >= end })
	for i := hi - 1; i >= 0; i-- {
		if ivs[i].End > start {
			return true
		}
	}
	return false
}
