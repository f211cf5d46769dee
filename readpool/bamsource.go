package readpool

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/bgzf/index"
	"github.com/biogo/hts/sam"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/variantlab/realign/region"
	"v.io/x/lib/vlog"
)

var rgTag = sam.Tag{'R', 'G'}

// bamSource is the BAM-backed Source. The path may be local or any
// scheme base/file understands; the index is expected at path + ".bai".
type bamSource struct {
	path     string
	in       file.File
	reader   *bam.Reader
	index    *bam.Index
	samples  []string
	rgSample map[string]string // read group ID -> sample
	coverage map[string][]region.Interval
}

// OpenBAM opens a BAM file and its .bai index, harvesting the sample
// set from the header's @RG SM tags and per-contig coverage from the
// index. It is the default pool Opener.
func OpenBAM(path string) (Source, error) {
	ctx := vcontext.Background()
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	reader, err := bam.NewReader(in.Reader(ctx), 1)
	if err != nil {
		_ = in.Close(ctx)
		return nil, err
	}
	s := &bamSource{path: path, in: in, reader: reader}

	indexIn, err := file.Open(ctx, path+".bai")
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	defer indexIn.Close(ctx) // nolint: errcheck
	if s.index, err = bam.ReadIndex(indexIn.Reader(ctx)); err != nil {
		_ = s.Close()
		return nil, err
	}
	if err := s.harvestSamples(); err != nil {
		_ = s.Close()
		return nil, err
	}
	if err := s.harvestCoverage(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// harvestSamples parses the header's @RG lines for ID and SM tags.
func (s *bamSource) harvestSamples() error {
	text, err := s.reader.Header().MarshalText()
	if err != nil {
		return errors.E(err, fmt.Sprintf("%s: reading header", s.path))
	}
	s.rgSample = make(map[string]string)
	seen := make(map[string]bool)
	for _, line := range strings.Split(string(text), "\n") {
		if !strings.HasPrefix(line, "@RG") {
			continue
		}
		var id, sample string
		for _, field := range strings.Split(line, "\t")[1:] {
			switch {
			case strings.HasPrefix(field, "ID:"):
				id = field[len("ID:"):]
			case strings.HasPrefix(field, "SM:"):
				sample = field[len("SM:"):]
			}
		}
		if id == "" || sample == "" {
			continue
		}
		s.rgSample[id] = sample
		if !seen[sample] {
			seen[sample] = true
			s.samples = append(s.samples, sample)
		}
	}
	sort.Strings(s.samples)
	return nil
}

// harvestCoverage records, per contig with any indexed reads, the full
// reference extent. This deliberately over-approximates: the contract
// tolerates false positives but not false negatives.
func (s *bamSource) harvestCoverage() error {
	s.coverage = make(map[string][]region.Interval)
	for _, ref := range s.reader.Header().Refs() {
		chunks, err := s.index.Chunks(ref, 0, ref.Len())
		if err == index.ErrInvalid {
			// No reads on this reference.
			continue
		}
		if err != nil {
			return errors.E(err, fmt.Sprintf("%s: reading index for %s", s.path, ref.Name()))
		}
		if len(chunks) == 0 {
			continue
		}
		s.coverage[ref.Name()] = []region.Interval{{Start: 0, End: ref.Len()}}
	}
	return nil
}

// Samples implements Source.
func (s *bamSource) Samples() []string {
	return append([]string(nil), s.samples...)
}

// PossibleRegions implements Source.
func (s *bamSource) PossibleRegions() map[string][]region.Interval {
	cov := make(map[string][]region.Interval, len(s.coverage))
	for contig, ivs := range s.coverage {
		cov[contig] = append([]region.Interval(nil), ivs...)
	}
	return cov
}

func (s *bamSource) findRef(contig string) *sam.Reference {
	for _, ref := range s.reader.Header().Refs() {
		if ref.Name() == contig {
			return ref
		}
	}
	return nil
}

// sampleOf maps a record to its sample through the read-group index.
// Records with no RG tag, or an RG absent from the header, land under
// the empty sample and are dropped by the pool's sample filter.
func (s *bamSource) sampleOf(rec *sam.Record) string {
	aux := rec.AuxFields.Get(rgTag)
	if aux == nil {
		return ""
	}
	rg, _ := aux.Value().(string)
	return s.rgSample[rg]
}

// FetchReads implements Source. An unknown contig yields an empty map.
func (s *bamSource) FetchReads(r region.Region) (map[string][]*sam.Record, error) {
	result := make(map[string][]*sam.Record)
	ref := s.findRef(r.Contig)
	if ref == nil {
		return result, nil
	}
	chunks, err := s.index.Chunks(ref, r.Start, r.End)
	if err == index.ErrInvalid || len(chunks) == 0 {
		return result, nil
	}
	if err != nil {
		return nil, errors.E(err, fmt.Sprintf("%s: reading index for %v", s.path, r))
	}
	if err := s.reader.Seek(chunks[0].Begin); err != nil {
		return nil, errors.E(err, fmt.Sprintf("%s: seeking to %v", s.path, r))
	}
	for {
		rec, err := s.reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.E(err, fmt.Sprintf("%s: reading %v", s.path, r))
		}
		if rec.Ref == nil || rec.Ref.ID() != ref.ID() || rec.Start() >= r.End {
			break
		}
		if rec.End() <= r.Start {
			continue
		}
		sample := s.sampleOf(rec)
		result[sample] = append(result[sample], rec)
	}
	return result, nil
}

// Close implements Source.
func (s *bamSource) Close() error {
	vlog.VI(1).Infof("%s: closing", s.path)
	var firstErr error
	if s.reader != nil {
		if err := s.reader.Close(); err != nil {
			firstErr = err
		}
		s.reader = nil
	}
	if s.in != nil {
		if err := s.in.Close(vcontext.Background()); err != nil && firstErr == nil {
			firstErr = err
		}
		s.in = nil
	}
	return firstErr
}
