package main

import (
	"strings"

	"github.com/biogo/hts/sam"
	"github.com/variantlab/realign/cigar"
	"github.com/variantlab/realign/realigner"
)

// exactMatchAssigner is a deliberately simple scoring collaborator: a
// read supports a haplotype iff its full sequence occurs verbatim in
// the haplotype's sequence, and the first such placement wins. Reads
// matching no alternate haplotype are left unassigned and pass through
// unmodified. Statistical scorers plug in through realigner.Assigner.
type exactMatchAssigner struct{}

func (exactMatchAssigner) Assign(rec *sam.Record, genotypes []realigner.Genotype) (realigner.Assignment, bool) {
	seq := string(rec.Seq.Expand())
	if seq == "" {
		return realigner.Assignment{}, false
	}
	for _, g := range genotypes {
		for _, h := range g {
			if h.Reference || h.Seq == "" {
				continue
			}
			idx := strings.Index(h.Seq, seq)
			if idx < 0 {
				continue
			}
			return realigner.Assignment{
				Pos:   h.Start + idx,
				Cigar: cigar.Cigar{{Len: uint32(len(seq)), Kind: cigar.AlignmentMatch}},
			}, true
		}
	}
	return realigner.Assignment{}, false
}
