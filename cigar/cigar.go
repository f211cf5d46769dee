// Package cigar implements the alignment-operation algebra used to
// describe how a read's sequence maps onto a reference: parsing and
// formatting of CIGAR text, validity and minimality checks, coordinate
// folds, and coordinate-space slicing.
//
// A Cigar is a value type; none of the operations below mutate their
// receiver.
package cigar

import (
	"encoding/binary"
	"fmt"
	"strings"

	"blainsmith.com/go/seahash"
	"github.com/grailbio/base/errors"
)

// Kind identifies one alignment operation type. The values are the
// single-letter SAM opcodes.
type Kind byte

const (
	// AlignmentMatch is an aligned position, matching or not ('M').
	AlignmentMatch Kind = 'M'
	// SequenceMatch is an aligned, base-identical position ('=').
	SequenceMatch Kind = '='
	// Substitution is an aligned, mismatching position ('X').
	Substitution Kind = 'X'
	// Insertion is read sequence absent from the reference ('I').
	Insertion Kind = 'I'
	// Deletion is reference sequence absent from the read ('D').
	Deletion Kind = 'D'
	// SoftClip marks read bases excluded from the alignment but
	// retained in the stored sequence ('S').
	SoftClip Kind = 'S'
	// HardClip marks read bases removed from the stored sequence ('H').
	HardClip Kind = 'H'
	// Padding is a silent deletion from padded reference ('P').
	Padding Kind = 'P'
	// Skip is a skipped reference region, e.g. an intron ('N').
	Skip Kind = 'N'
)

// IsValid reports whether k is one of the nine recognized opcodes.
func (k Kind) IsValid() bool {
	switch k {
	case AlignmentMatch, SequenceMatch, Substitution, Insertion, Deletion,
		SoftClip, HardClip, Padding, Skip:
		return true
	}
	return false
}

func (k Kind) String() string { return string([]byte{byte(k)}) }

// Op is a single run-length alignment operation. Immutable value type.
type Op struct {
	Len  uint32
	Kind Kind
}

// AdvancesReference reports whether the operation consumes reference
// coordinates. False only for Insertion, HardClip and Padding.
func (o Op) AdvancesReference() bool {
	return !(o.Kind == Insertion || o.Kind == HardClip || o.Kind == Padding)
}

// AdvancesSequence reports whether the operation consumes read-sequence
// coordinates. False only for Deletion and HardClip.
func (o Op) AdvancesSequence() bool {
	return !(o.Kind == Deletion || o.Kind == HardClip)
}

// IsMatch reports whether o is an aligned (M, = or X) operation.
func IsMatch(o Op) bool {
	return o.Kind == AlignmentMatch || o.Kind == SequenceMatch || o.Kind == Substitution
}

// IsIndel reports whether o is an insertion or a deletion.
func IsIndel(o Op) bool {
	return o.Kind == Insertion || o.Kind == Deletion
}

// IsClipping reports whether o is a soft or hard clip.
func IsClipping(o Op) bool {
	return o.Kind == SoftClip || o.Kind == HardClip
}

func (o Op) String() string {
	return fmt.Sprintf("%d%c", o.Len, byte(o.Kind))
}

// Compare orders operations by kind, then by length. The ordering is
// arbitrary but total and stable, so alignments can be sorted and
// grouped by shape.
func (o Op) Compare(p Op) int {
	if o.Kind != p.Kind {
		if o.Kind < p.Kind {
			return -1
		}
		return 1
	}
	if o.Len != p.Len {
		if o.Len < p.Len {
			return -1
		}
		return 1
	}
	return 0
}

func (o Op) appendHashBytes(buf []byte) []byte {
	var enc [5]byte
	enc[0] = byte(o.Kind)
	binary.LittleEndian.PutUint32(enc[1:], o.Len)
	return append(buf, enc[:]...)
}

// Hash returns a 64-bit hash of the operation, stable across processes
// (kind first, then length).
func (o Op) Hash() uint64 {
	return seahash.Sum64(o.appendHashBytes(nil))
}

// Cigar is an ordered sequence of operations: the transform from
// read-sequence coordinates to reference coordinates.
type Cigar []Op

// Parse scans decimal-digit runs each followed by a single opcode
// character. It fails on an unrecognized opcode, on a length that
// overflows uint32, and on trailing digits with no opcode.
func Parse(text string) (Cigar, error) {
	c := make(Cigar, 0, len(text)/2)
	var (
		n      uint64
		digits int
	)
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if ch >= '0' && ch <= '9' {
			n = n*10 + uint64(ch-'0')
			if n > 1<<32-1 {
				return nil, errors.E(fmt.Sprintf("cigar %q: operation length overflow", text))
			}
			digits++
			continue
		}
		if !Kind(ch).IsValid() {
			return nil, errors.E(fmt.Sprintf("cigar %q: unrecognized opcode %q", text, ch))
		}
		if digits == 0 {
			return nil, errors.E(fmt.Sprintf("cigar %q: opcode %q with no length", text, ch))
		}
		c = append(c, Op{Len: uint32(n), Kind: Kind(ch)})
		n = 0
		digits = 0
	}
	if digits > 0 {
		return nil, errors.E(fmt.Sprintf("cigar %q: trailing digits with no opcode", text))
	}
	return c, nil
}

func (c Cigar) String() string {
	var b strings.Builder
	for _, op := range c {
		fmt.Fprintf(&b, "%d%c", op.Len, byte(op.Kind))
	}
	return b.String()
}

// IsValid reports whether c is non-empty and every operation has a
// positive length and a recognized kind.
func (c Cigar) IsValid() bool {
	if len(c) == 0 {
		return false
	}
	for _, op := range c {
		if op.Len == 0 || !op.Kind.IsValid() {
			return false
		}
	}
	return true
}

// IsMinimal reports whether no two adjacent operations share a kind.
func (c Cigar) IsMinimal() bool {
	for i := 1; i < len(c); i++ {
		if c[i].Kind == c[i-1].Kind {
			return false
		}
	}
	return true
}

// IsFrontSoftClipped reports whether the first operation is a soft clip.
func (c Cigar) IsFrontSoftClipped() bool {
	return len(c) > 0 && c[0].Kind == SoftClip
}

// IsBackSoftClipped reports whether the last operation is a soft clip.
func (c Cigar) IsBackSoftClipped() bool {
	return len(c) > 0 && c[len(c)-1].Kind == SoftClip
}

// IsSoftClipped reports whether either end is soft clipped.
func (c Cigar) IsSoftClipped() bool {
	return c.IsFrontSoftClipped() || c.IsBackSoftClipped()
}

// SoftClippedSizes returns the front and back soft-clip lengths, each 0
// if absent.
func (c Cigar) SoftClippedSizes() (front, back uint32) {
	if c.IsFrontSoftClipped() {
		front = c[0].Len
	}
	if c.IsBackSoftClipped() {
		back = c[len(c)-1].Len
	}
	return front, back
}

// ClippedBegin returns the alignment start adjusted backwards over a
// leading soft clip, given the unclipped start position.
func (c Cigar) ClippedBegin(unclippedBegin int) int {
	if c.IsFrontSoftClipped() {
		return unclippedBegin - int(c[0].Len)
	}
	return unclippedBegin
}

// TotalLen sums every operation's length.
func (c Cigar) TotalLen() int {
	n := 0
	for _, op := range c {
		n += int(op.Len)
	}
	return n
}

// ReferenceLen sums the lengths of reference-advancing operations.
func (c Cigar) ReferenceLen() int {
	n := 0
	for _, op := range c {
		if op.AdvancesReference() {
			n += int(op.Len)
		}
	}
	return n
}

// SequenceLen sums the lengths of sequence-advancing operations.
func (c Cigar) SequenceLen() int {
	n := 0
	for _, op := range c {
		if op.AdvancesSequence() {
			n += int(op.Len)
		}
	}
	return n
}

// OperationAtSequencePosition returns the operation covering the given
// 0-based sequence position. Positions at or past the end of the string
// are an error, never an overrun.
func (c Cigar) OperationAtSequencePosition(pos int) (Op, error) {
	if pos < 0 {
		return Op{}, errors.E(fmt.Sprintf("cigar %v: negative sequence position %d", c, pos))
	}
	rem := pos
	for _, op := range c {
		if rem < int(op.Len) {
			return op, nil
		}
		rem -= int(op.Len)
	}
	return Op{}, errors.E(fmt.Sprintf("cigar %v: sequence position %d out of range", c, pos))
}

// Space selects which operations are charged against a slicing window's
// offset and size.
type Space int

const (
	// AllOps charges every operation.
	AllOps Space = iota
	// ReferenceOnly charges only reference-advancing operations.
	ReferenceOnly
	// SequenceOnly charges only sequence-advancing operations.
	SequenceOnly
)

func (s Space) selects(op Op) bool {
	switch s {
	case ReferenceOnly:
		return op.AdvancesReference()
	case SequenceOnly:
		return op.AdvancesSequence()
	default:
		return true
	}
}

// Splice extracts the sub-cigar covering a window of size units
// starting at offset units, counting units only over operations
// selected by space. Unselected operations inside the window are
// emitted in full without being charged. A window running past the end
// yields only what exists; size 0 or an offset at or past the total
// selected length yields an empty result.
func (c Cigar) Splice(offset, size uint32, space Space) Cigar {
	result := make(Cigar, 0, len(c))
	if size == 0 {
		return result
	}
	i := 0
	for i < len(c) && (offset >= c[i].Len || !space.selects(c[i])) {
		if space.selects(c[i]) {
			offset -= c[i].Len
		}
		i++
	}
	if i < len(c) {
		remainder := c[i].Len - offset
		if remainder >= size {
			return append(result, Op{Len: size, Kind: c[i].Kind})
		}
		result = append(result, Op{Len: remainder, Kind: c[i].Kind})
		size -= remainder
		i++
	}
	for i < len(c) && size > 0 && (size >= c[i].Len || !space.selects(c[i])) {
		result = append(result, c[i])
		if space.selects(c[i]) {
			size -= c[i].Len
		}
		i++
	}
	if i < len(c) && size > 0 {
		result = append(result, Op{Len: size, Kind: c[i].Kind})
	}
	return result
}

// SpliceReference slices by reference-advancing units.
func (c Cigar) SpliceReference(offset, size uint32) Cigar {
	return c.Splice(offset, size, ReferenceOnly)
}

// SpliceSequence slices by sequence-advancing units.
func (c Cigar) SpliceSequence(offset, size uint32) Cigar {
	return c.Splice(offset, size, SequenceOnly)
}

// Prefix slices the leading window of the given size.
func (c Cigar) Prefix(size uint32, space Space) Cigar {
	return c.Splice(0, size, space)
}

// Decompose expands the string to one kind per covered unit.
func (c Cigar) Decompose() []Kind {
	kinds := make([]Kind, 0, c.TotalLen())
	for _, op := range c {
		for i := uint32(0); i < op.Len; i++ {
			kinds = append(kinds, op.Kind)
		}
	}
	return kinds
}

// Simplify merges adjacent equal-kind runs and drops zero-length
// operations. The result is minimal if it is non-empty.
func (c Cigar) Simplify() Cigar {
	result := make(Cigar, 0, len(c))
	for _, op := range c {
		if op.Len == 0 {
			continue
		}
		if n := len(result); n > 0 && result[n-1].Kind == op.Kind {
			result[n-1].Len += op.Len
			continue
		}
		result = append(result, op)
	}
	return result
}

// CollapseMatches rewrites sequence-match and substitution runs as
// alignment matches and merges the resulting adjacent runs.
func (c Cigar) CollapseMatches() Cigar {
	result := make(Cigar, 0, len(c))
	for _, op := range c {
		if IsMatch(op) {
			op.Kind = AlignmentMatch
		}
		if n := len(result); n > 0 && result[n-1].Kind == op.Kind {
			result[n-1].Len += op.Len
			continue
		}
		result = append(result, op)
	}
	return result
}

// Equal reports value equality.
func (c Cigar) Equal(d Cigar) bool {
	if len(c) != len(d) {
		return false
	}
	for i := range c {
		if c[i] != d[i] {
			return false
		}
	}
	return true
}

// Compare orders strings lexicographically by operation.
func (c Cigar) Compare(d Cigar) int {
	for i := 0; i < len(c) && i < len(d); i++ {
		if r := c[i].Compare(d[i]); r != 0 {
			return r
		}
	}
	switch {
	case len(c) < len(d):
		return -1
	case len(c) > len(d):
		return 1
	}
	return 0
}

// Hash returns a 64-bit hash of the string, stable across processes.
// Equal strings hash equal; the combination order is operation order.
func (c Cigar) Hash() uint64 {
	buf := make([]byte, 0, 5*len(c))
	for _, op := range c {
		buf = op.appendHashBytes(buf)
	}
	return seahash.Sum64(buf)
}
