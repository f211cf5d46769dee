package region_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/variantlab/realign/region"
)

func TestRegionOverlaps(t *testing.T) {
	a := region.Region{Contig: "chr1", Start: 100, End: 200}
	assert.True(t, a.Overlaps(region.Region{Contig: "chr1", Start: 150, End: 250}))
	assert.True(t, a.Overlaps(region.Region{Contig: "chr1", Start: 199, End: 300}))
	assert.False(t, a.Overlaps(region.Region{Contig: "chr1", Start: 200, End: 300}))
	assert.False(t, a.Overlaps(region.Region{Contig: "chr2", Start: 150, End: 250}))
	assert.Equal(t, 100, a.Span())
	assert.Equal(t, "chr1:100-200", a.String())
}

func TestSort(t *testing.T) {
	ivs := []region.Interval{{30, 40}, {10, 50}, {10, 20}}
	region.Sort(ivs)
	assert.Equal(t, []region.Interval{{10, 20}, {10, 50}, {30, 40}}, ivs)
}

func TestAnyOverlap(t *testing.T) {
	ivs := []region.Interval{{10, 20}, {30, 40}, {50, 60}}
	tests := []struct {
		start, end int
		want       bool
	}{
		{0, 10, false},
		{0, 11, true},
		{20, 30, false},
		{25, 35, true},
		{60, 70, false},
		{15, 55, true},
		{45, 50, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, region.AnyOverlap(ivs, tt.start, tt.end),
			"window=[%d,%d)", tt.start, tt.end)
	}
	assert.False(t, region.AnyOverlap(nil, 0, 100))

	// A long early interval spanning later short ones must still be
	// found; ends are not sorted.
	spanning := []region.Interval{{0, 100}, {5, 6}, {90, 95}}
	assert.True(t, region.AnyOverlap(spanning, 50, 60))
}
