package main

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	"github.com/variantlab/realign/realigner"
	"github.com/variantlab/realign/region"
)

// The call manifest is a TSV stand-in for the external variant-call
// collaborator. One line per (call window, sample):
//
//	contig <TAB> start <TAB> end <TAB> sample <TAB> genotype
//
// where genotype is a comma-separated haplotype tuple; "." denotes the
// reference haplotype and anything else is an alternate sequence over
// the call window. Consecutive lines sharing a window form one call.
// Files ending in .gz are decompressed on the fly.

type manifestCallSource struct {
	calls []*realigner.Call
	next  int
}

func (m *manifestCallSource) Next() (*realigner.Call, error) {
	if m.next >= len(m.calls) {
		return nil, io.EOF
	}
	c := m.calls[m.next]
	m.next++
	return c, nil
}

func openCallManifest(path string) (realigner.CallSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() // nolint: errcheck
	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: decompressing", path)
		}
		defer gz.Close() // nolint: errcheck
		r = gz
	}
	return parseCallManifest(r, path)
}

func parseCallManifest(r io.Reader, path string) (realigner.CallSource, error) {
	src := &manifestCallSource{}
	var cur *realigner.Call
	scanner := bufio.NewScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 5 {
			return nil, errors.Errorf("%s:%d: expected 5 fields, got %d", path, lineno, len(fields))
		}
		start, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, errors.Wrapf(err, "%s:%d: start", path, lineno)
		}
		end, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, errors.Wrapf(err, "%s:%d: end", path, lineno)
		}
		if end <= start {
			return nil, errors.Errorf("%s:%d: empty window %d-%d", path, lineno, start, end)
		}
		window := region.Region{Contig: fields[0], Start: start, End: end}
		sample := fields[3]
		genotype := parseGenotype(window, fields[4])
		if cur == nil || cur.Region != window {
			cur = &realigner.Call{Region: window, Genotypes: make(map[string]realigner.Genotype)}
			src.calls = append(src.calls, cur)
		}
		cur.Genotypes[sample] = genotype
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "%s: reading", path)
	}
	return src, nil
}

func parseGenotype(window region.Region, spec string) realigner.Genotype {
	var g realigner.Genotype
	for _, hap := range strings.Split(spec, ",") {
		h := realigner.Haplotype{Contig: window.Contig, Start: window.Start, End: window.End}
		if hap == "." {
			h.Reference = true
		} else {
			h.Seq = hap
		}
		g = append(g, h)
	}
	return g
}
