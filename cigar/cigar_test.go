package cigar_test

import (
	"testing"

	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/variantlab/realign/cigar"
)

func mustParse(t *testing.T, text string) cigar.Cigar {
	c, err := cigar.Parse(text)
	require.NoError(t, err)
	return c
}

func TestParse(t *testing.T) {
	c := mustParse(t, "4M1I3D2M")
	assert.Equal(t, cigar.Cigar{
		{Len: 4, Kind: cigar.AlignmentMatch},
		{Len: 1, Kind: cigar.Insertion},
		{Len: 3, Kind: cigar.Deletion},
		{Len: 2, Kind: cigar.AlignmentMatch},
	}, c)
	assert.True(t, c.IsValid())
	assert.True(t, c.IsMinimal())
	assert.Equal(t, 9, c.ReferenceLen())
	assert.Equal(t, 7, c.SequenceLen())
	assert.Equal(t, 10, c.TotalLen())
}

func TestParseAllKinds(t *testing.T) {
	c := mustParse(t, "1M2=3X4I5D6S7H8P9N")
	require.Equal(t, 9, len(c))
	kinds := []cigar.Kind{
		cigar.AlignmentMatch, cigar.SequenceMatch, cigar.Substitution,
		cigar.Insertion, cigar.Deletion, cigar.SoftClip, cigar.HardClip,
		cigar.Padding, cigar.Skip,
	}
	for i, k := range kinds {
		expect.EQ(t, c[i].Kind, k)
		expect.EQ(t, c[i].Len, uint32(i+1))
	}
}

func TestParseErrors(t *testing.T) {
	for _, text := range []string{
		"4Z",          // unknown opcode
		"12",          // trailing digits
		"4M3",         // trailing digits after a valid op
		"M",           // opcode with no length
		"4294967296M", // uint32 overflow
		"4M-1I",       // '-' is not an opcode
	} {
		_, err := cigar.Parse(text)
		assert.Error(t, err, "text=%q", text)
	}
}

func TestParseEmpty(t *testing.T) {
	c, err := cigar.Parse("")
	require.NoError(t, err)
	assert.Equal(t, 0, len(c))
	assert.False(t, c.IsValid())
}

func TestStringRoundTrip(t *testing.T) {
	for _, text := range []string{"4M1I3D2M", "10S90M", "5H10M5S", "1M", "100M20N30M"} {
		c := mustParse(t, text)
		expect.EQ(t, c.String(), text)
		back, err := cigar.Parse(c.String())
		require.NoError(t, err)
		expect.True(t, back.Equal(c))
	}
}

func TestValidity(t *testing.T) {
	assert.False(t, cigar.Cigar{}.IsValid())
	assert.False(t, cigar.Cigar{{Len: 0, Kind: cigar.AlignmentMatch}}.IsValid())
	assert.False(t, cigar.Cigar{{Len: 3, Kind: cigar.Kind('Q')}}.IsValid())
	assert.True(t, mustParse(t, "3M").IsValid())
}

func TestMinimality(t *testing.T) {
	assert.True(t, mustParse(t, "4M1I2M").IsMinimal())
	assert.False(t, mustParse(t, "4M2M").IsMinimal())
	assert.True(t, cigar.Cigar{}.IsMinimal())
}

func TestAdvances(t *testing.T) {
	tests := []struct {
		kind     cigar.Kind
		ref, seq bool
	}{
		{cigar.AlignmentMatch, true, true},
		{cigar.SequenceMatch, true, true},
		{cigar.Substitution, true, true},
		{cigar.Insertion, false, true},
		{cigar.Deletion, true, false},
		{cigar.SoftClip, true, true},
		{cigar.HardClip, false, false},
		{cigar.Padding, false, true},
		{cigar.Skip, true, true},
	}
	for _, tt := range tests {
		op := cigar.Op{Len: 1, Kind: tt.kind}
		assert.Equal(t, tt.ref, op.AdvancesReference(), "kind=%v", tt.kind)
		assert.Equal(t, tt.seq, op.AdvancesSequence(), "kind=%v", tt.kind)
	}
}

func TestSoftClips(t *testing.T) {
	c := mustParse(t, "5S90M3S")
	assert.True(t, c.IsFrontSoftClipped())
	assert.True(t, c.IsBackSoftClipped())
	assert.True(t, c.IsSoftClipped())
	front, back := c.SoftClippedSizes()
	assert.Equal(t, uint32(5), front)
	assert.Equal(t, uint32(3), back)

	c = mustParse(t, "90M3S")
	assert.False(t, c.IsFrontSoftClipped())
	assert.True(t, c.IsBackSoftClipped())
	front, back = c.SoftClippedSizes()
	assert.Equal(t, uint32(0), front)
	assert.Equal(t, uint32(3), back)

	assert.False(t, mustParse(t, "90M").IsSoftClipped())
	assert.Equal(t, 95, mustParse(t, "5S90M").ClippedBegin(100))
	assert.Equal(t, 100, mustParse(t, "90M").ClippedBegin(100))
}

func TestOperationAtSequencePosition(t *testing.T) {
	c := mustParse(t, "4M1I3D2M")
	tests := []struct {
		pos  int
		want cigar.Kind
	}{
		{0, cigar.AlignmentMatch},
		{3, cigar.AlignmentMatch},
		{4, cigar.Insertion},
		{5, cigar.Deletion},
		{7, cigar.Deletion},
		{8, cigar.AlignmentMatch},
		{9, cigar.AlignmentMatch},
	}
	for _, tt := range tests {
		op, err := c.OperationAtSequencePosition(tt.pos)
		require.NoError(t, err, "pos=%d", tt.pos)
		assert.Equal(t, tt.want, op.Kind, "pos=%d", tt.pos)
	}
	_, err := c.OperationAtSequencePosition(10)
	assert.Error(t, err)
	_, err = c.OperationAtSequencePosition(-1)
	assert.Error(t, err)
	_, err = cigar.Cigar{}.OperationAtSequencePosition(0)
	assert.Error(t, err)
}

func TestSpliceIdentity(t *testing.T) {
	for _, text := range []string{"4M1I3D2M", "5S10M", "3M2I3M", "7D"} {
		c := mustParse(t, text)
		assert.True(t, c.Splice(0, uint32(c.TotalLen()), cigar.AllOps).Equal(c), "text=%q", text)
	}
}

func TestSpliceReference(t *testing.T) {
	c := mustParse(t, "4M1I3D2M")
	got := c.SpliceReference(2, 4)
	assert.Equal(t, "2M1I2D", got.String())

	// The window size bounds the reference span of the result, with
	// equality unless the window runs off the end.
	for offset := uint32(0); offset <= 9; offset++ {
		for size := uint32(1); size <= 10; size++ {
			got := c.SpliceReference(offset, size)
			want := int(size)
			if rem := 9 - int(offset); rem < want {
				want = rem
			}
			assert.Equal(t, want, got.ReferenceLen(), "offset=%d size=%d", offset, size)
		}
	}
}

func TestSpliceSequence(t *testing.T) {
	c := mustParse(t, "4M1I3D2M")
	// Sequence space skips the deletion: it is emitted in full inside
	// the window without being charged.
	got := c.SpliceSequence(3, 3)
	assert.Equal(t, "1M1I3D1M", got.String())
}

func TestSpliceEdges(t *testing.T) {
	c := mustParse(t, "4M1I3D2M")
	assert.Equal(t, 0, len(c.Splice(0, 0, cigar.AllOps)))
	assert.Equal(t, 0, len(c.Splice(10, 5, cigar.AllOps)))
	assert.Equal(t, 0, len(c.SpliceReference(9, 1)))
	// Window past the end: emit what exists, shorter than requested.
	assert.Equal(t, "1M", c.Splice(9, 100, cigar.AllOps).String())
	// Stops immediately when the first operation covers the window.
	assert.Equal(t, "2M", c.Prefix(2, cigar.AllOps).String())
}

func TestSimplify(t *testing.T) {
	assert.Equal(t, "6M1I2M", mustParse(t, "4M2M1I2M").Simplify().String())
	assert.Equal(t, "4M", cigar.Cigar{
		{Len: 4, Kind: cigar.AlignmentMatch},
		{Len: 0, Kind: cigar.Insertion},
	}.Simplify().String())
	got := mustParse(t, "2M3M4M").Simplify()
	assert.True(t, got.IsMinimal())
	assert.Equal(t, "9M", got.String())
}

func TestCollapseMatches(t *testing.T) {
	assert.Equal(t, "7M1I3M", mustParse(t, "4M2=1X1I3M").CollapseMatches().String())
	assert.Equal(t, "2S5M", mustParse(t, "2S3=2X").CollapseMatches().String())
}

func TestDecompose(t *testing.T) {
	kinds := mustParse(t, "2M1I").Decompose()
	assert.Equal(t, []cigar.Kind{cigar.AlignmentMatch, cigar.AlignmentMatch, cigar.Insertion}, kinds)
}

func TestCompare(t *testing.T) {
	a := mustParse(t, "4M1I")
	b := mustParse(t, "4M2I")
	c := mustParse(t, "4M1I3D")
	assert.Equal(t, 0, a.Compare(a))
	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, b.Compare(a))
	assert.Equal(t, -1, a.Compare(c)) // prefix orders first
	assert.Equal(t, -1, cigar.Op{Len: 5, Kind: cigar.Deletion}.Compare(cigar.Op{Len: 1, Kind: cigar.Insertion}))
}

func TestHash(t *testing.T) {
	a := mustParse(t, "4M1I3D2M")
	b := mustParse(t, "4M1I3D2M")
	assert.Equal(t, a.Hash(), b.Hash())
	assert.NotEqual(t, a.Hash(), mustParse(t, "4M1I3D3M").Hash())
	// Kind and length both feed the hash.
	assert.NotEqual(t, cigar.Op{Len: 4, Kind: cigar.AlignmentMatch}.Hash(),
		cigar.Op{Len: 4, Kind: cigar.Deletion}.Hash())
	assert.NotEqual(t, cigar.Op{Len: 4, Kind: cigar.AlignmentMatch}.Hash(),
		cigar.Op{Len: 5, Kind: cigar.AlignmentMatch}.Hash())
}
