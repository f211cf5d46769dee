package realigner

import (
	"fmt"
	"strings"

	"github.com/variantlab/realign/region"
)

// Haplotype is one hypothesized sequence over a genomic window.
// Reference marks the unaltered reference haplotype.
type Haplotype struct {
	Contig    string
	Start     int
	End       int
	Seq       string
	Reference bool
}

// Region returns the haplotype's genomic window.
func (h Haplotype) Region() region.Region {
	return region.Region{Contig: h.Contig, Start: h.Start, End: h.End}
}

// Genotype is an ordered tuple of haplotypes: one sample's hypothesized
// makeup at a locus.
type Genotype []Haplotype

// Ploidy returns the number of haplotypes in the tuple.
func (g Genotype) Ploidy() int { return len(g) }

// IsHomRef reports whether the genotype is homozygous reference: a
// non-empty tuple of reference haplotypes only.
func (g Genotype) IsHomRef() bool {
	if len(g) == 0 {
		return false
	}
	for _, h := range g {
		if !h.Reference {
			return false
		}
	}
	return true
}

// Region returns the window enclosing every haplotype in the tuple.
func (g Genotype) Region() region.Region {
	if len(g) == 0 {
		return region.Region{}
	}
	r := g[0].Region()
	for _, h := range g[1:] {
		if h.Start < r.Start {
			r.Start = h.Start
		}
		if h.End > r.End {
			r.End = h.End
		}
	}
	return r
}

// key is a canonical encoding used to deduplicate genotypes within a
// call block. The haplotype order is significant: genotypes are ordered
// tuples.
func (g Genotype) key() string {
	var b strings.Builder
	for i, h := range g {
		if i > 0 {
			b.WriteByte('|')
		}
		fmt.Fprintf(&b, "%s:%d-%d:%s:%t", h.Contig, h.Start, h.End, h.Seq, h.Reference)
	}
	return b.String()
}

// Call is one variant-call record: a genomic window plus the genotype
// called for each sample at that window.
type Call struct {
	Region    region.Region
	Genotypes map[string]Genotype
}

// CallSource is a serial stream of variant calls in coordinate order.
// Next returns io.EOF after the last call. The cursor is not safe for
// concurrent advancement.
type CallSource interface {
	Next() (*Call, error)
}
