package cigar

import (
	"fmt"

	"github.com/biogo/hts/sam"
	"github.com/grailbio/base/errors"
)

var fromSAMType = map[sam.CigarOpType]Kind{
	sam.CigarMatch:       AlignmentMatch,
	sam.CigarEqual:       SequenceMatch,
	sam.CigarMismatch:    Substitution,
	sam.CigarInsertion:   Insertion,
	sam.CigarDeletion:    Deletion,
	sam.CigarSoftClipped: SoftClip,
	sam.CigarHardClipped: HardClip,
	sam.CigarPadded:      Padding,
	sam.CigarSkipped:     Skip,
}

var toSAMType = map[Kind]sam.CigarOpType{
	AlignmentMatch: sam.CigarMatch,
	SequenceMatch:  sam.CigarEqual,
	Substitution:   sam.CigarMismatch,
	Insertion:      sam.CigarInsertion,
	Deletion:       sam.CigarDeletion,
	SoftClip:       sam.CigarSoftClipped,
	HardClip:       sam.CigarHardClipped,
	Padding:        sam.CigarPadded,
	Skip:           sam.CigarSkipped,
}

// FromSAM converts a biogo/hts cigar into the algebra's representation.
// Operation types with no SAM text opcode (CigarBack) are rejected.
func FromSAM(co sam.Cigar) (Cigar, error) {
	c := make(Cigar, 0, len(co))
	for _, op := range co {
		kind, ok := fromSAMType[op.Type()]
		if !ok {
			return nil, errors.E(fmt.Sprintf("cigar %v: unsupported operation type %v", co, op.Type()))
		}
		c = append(c, Op{Len: uint32(op.Len()), Kind: kind})
	}
	return c, nil
}

// ToSAM converts the string back to the biogo/hts representation.
func (c Cigar) ToSAM() sam.Cigar {
	co := make(sam.Cigar, 0, len(c))
	for _, op := range c {
		co = append(co, sam.NewCigarOp(toSAMType[op.Kind], int(op.Len)))
	}
	return co
}
