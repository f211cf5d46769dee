// Package readpool provides bounded, multiplexed access to aligned-read
// data spread across many source files. A Pool keeps at most a fixed
// number of file handles live at once, and indexes every file by the
// samples it contains and the genomic regions it could cover, so most
// queries never need to open a file.
package readpool

import (
	"github.com/biogo/hts/sam"
	"github.com/variantlab/realign/region"
)

// Source is one alignment source file's read capability. Concrete
// backends are selected at pool construction via an Opener; they share
// no state with one another.
type Source interface {
	// Samples returns the sample identifiers present in the file.
	Samples() []string

	// PossibleRegions returns, per contig, the start-sorted coordinate
	// ranges the file could hold reads for. False positives are
	// tolerated ("could contain"); false negatives are not.
	PossibleRegions() map[string][]region.Interval

	// FetchReads returns the reads overlapping r, grouped by sample.
	FetchReads(r region.Region) (map[string][]*sam.Record, error)

	// Close releases the underlying file handle.
	Close() error
}

// Opener opens the source backing one path. The default is OpenBAM.
type Opener func(path string) (Source, error)
