package readpool

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/biogo/hts/sam"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/variantlab/realign/region"
)

// MissingFilesError reports every supplied path that does not exist.
// Construction fails with it before any file is opened.
type MissingFilesError struct {
	Paths []string
}

func (e *MissingFilesError) Error() string {
	var b strings.Builder
	b.WriteString("bad read files:")
	for _, p := range e.Paths {
		fmt.Fprintf(&b, "\n\t* %s: does not exist", p)
	}
	return b.String()
}

// UnknownSampleError reports a fetch for a sample absent from the
// pool's sample index.
type UnknownSampleError struct {
	Sample string
}

func (e *UnknownSampleError) Error() string {
	return fmt.Sprintf("unknown sample %q", e.Sample)
}

// Opt configures a Pool.
type Opt func(*Pool)

// WithOpener overrides the backend used to open each source path.
func WithOpener(o Opener) Opt {
	return func(p *Pool) { p.opener = o }
}

// Pool multiplexes many alignment source files behind a bounded set of
// open handles. It is a single-owner resource: callers must serialize
// access to one instance.
type Pool struct {
	maxOpen int
	opener  Opener

	// Disjoint reader sets; |open| <= maxOpen holds at all times.
	open   map[string]Source
	closed map[string]bool

	// Immutable after New.
	paths       []string            // insertion order, breaks eviction ties
	pathRank    map[string]int
	sizes       map[string]int64    // file size, drives warm-up and eviction
	samplePaths map[string][]string // sample index
	// coverage holds, per path and contig, start-sorted intervals the
	// file could have reads in.
	coverage map[string]map[string][]region.Interval
	samples  []string
}

// New validates every path, harvests each file's samples and region
// coverage in one transient pass, and warms up by opening the maxOpen
// smallest files. Any missing path fails the whole construction with a
// *MissingFilesError listing every missing path.
func New(paths []string, maxOpen int, opts ...Opt) (*Pool, error) {
	if maxOpen <= 0 {
		return nil, errors.E(fmt.Sprintf("max open files must be positive, got %d", maxOpen))
	}
	p := &Pool{
		maxOpen:     maxOpen,
		opener:      OpenBAM,
		open:        make(map[string]Source),
		closed:      make(map[string]bool),
		pathRank:    make(map[string]int),
		sizes:       make(map[string]int64),
		samplePaths: make(map[string][]string),
		coverage:    make(map[string]map[string][]region.Interval),
	}
	for _, opt := range opts {
		opt(p)
	}

	var missing []string
	for _, path := range paths {
		if _, ok := p.pathRank[path]; ok {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			missing = append(missing, path)
			continue
		}
		p.pathRank[path] = len(p.paths)
		p.paths = append(p.paths, path)
		p.sizes[path] = info.Size()
		p.closed[path] = true
	}
	if len(missing) > 0 {
		return nil, &MissingFilesError{Paths: missing}
	}

	if err := p.harvest(); err != nil {
		return nil, err
	}
	if err := p.warmUp(); err != nil {
		return nil, err
	}
	return p, nil
}

// harvest opens every file once, transiently, to build the sample and
// region-coverage indices.
func (p *Pool) harvest() error {
	sampleSet := make(map[string]bool)
	for _, path := range p.paths {
		src, err := p.opener(path)
		if err != nil {
			return errors.E(err, fmt.Sprintf("indexing read file %s", path))
		}
		for _, sample := range src.Samples() {
			p.samplePaths[sample] = append(p.samplePaths[sample], path)
			sampleSet[sample] = true
		}
		cov := make(map[string][]region.Interval)
		for contig, ivs := range src.PossibleRegions() {
			sorted := append([]region.Interval(nil), ivs...)
			region.Sort(sorted)
			cov[contig] = sorted
		}
		p.coverage[path] = cov
		if err := src.Close(); err != nil {
			return errors.E(err, fmt.Sprintf("indexing read file %s", path))
		}
	}
	for sample := range sampleSet {
		p.samples = append(p.samples, sample)
	}
	sort.Strings(p.samples)
	log.Debug.Printf("readpool: indexed %d files, %d samples", len(p.paths), len(p.samples))
	return nil
}

// warmUp opens the smallest files up to the handle ceiling. Smallest
// files are the cheapest to reopen, so they are the ones worth cycling.
func (p *Pool) warmUp() error {
	n := len(p.paths)
	if n > p.maxOpen {
		n = p.maxOpen
	}
	ordered := p.bySize(p.paths)
	return p.openSources(ordered[:n])
}

// bySize returns paths ordered ascending by file size, ties broken by
// insertion order.
func (p *Pool) bySize(paths []string) []string {
	ordered := append([]string(nil), paths...)
	sort.Slice(ordered, func(i, j int) bool {
		si, sj := p.sizes[ordered[i]], p.sizes[ordered[j]]
		if si != sj {
			return si < sj
		}
		return p.pathRank[ordered[i]] < p.pathRank[ordered[j]]
	})
	return ordered
}

// MaxOpenFiles returns the open-handle ceiling.
func (p *Pool) MaxOpenFiles() int { return p.maxOpen }

// NumOpen returns the number of currently open sources.
func (p *Pool) NumOpen() int { return len(p.open) }

// NumFiles returns the number of files the pool multiplexes.
func (p *Pool) NumFiles() int { return len(p.paths) }

// Samples returns the known sample identifiers, sorted.
func (p *Pool) Samples() []string {
	return append([]string(nil), p.samples...)
}

// NumSamples returns the number of known samples.
func (p *Pool) NumSamples() int { return len(p.samples) }

// IsOpen reports whether the source for path currently holds a handle.
func (p *Pool) IsOpen(path string) bool {
	_, ok := p.open[path]
	return ok
}

func (p *Pool) couldContain(path string, r region.Region) bool {
	cov, ok := p.coverage[path][r.Contig]
	if !ok {
		return false
	}
	return region.AnyOverlap(cov, r.Start, r.End)
}

// openSources opens the given closed sources, first evicting enough
// currently open ones to keep |open| within the ceiling. Victims are
// chosen smallest-file-first.
func (p *Pool) openSources(paths []string) error {
	free := p.maxOpen - len(p.open)
	if evict := len(paths) - free; evict > 0 {
		openPaths := make([]string, 0, len(p.open))
		for path := range p.open {
			openPaths = append(openPaths, path)
		}
		for _, victim := range p.bySize(openPaths)[:evict] {
			if err := p.closeSource(victim); err != nil {
				return err
			}
		}
	}
	for _, path := range paths {
		src, err := p.opener(path)
		if err != nil {
			return errors.E(err, fmt.Sprintf("opening read file %s", path))
		}
		p.open[path] = src
		delete(p.closed, path)
	}
	return nil
}

func (p *Pool) closeSource(path string) error {
	src := p.open[path]
	delete(p.open, path)
	p.closed[path] = true
	if err := src.Close(); err != nil {
		return errors.E(err, fmt.Sprintf("closing read file %s", path))
	}
	return nil
}

// partition splits candidate paths for r into already-open and
// still-closed, dropping paths whose coverage cannot overlap r. Order
// within each half follows the pool's insertion order.
func (p *Pool) partition(paths []string, r region.Region) (openNow, closedNow []string) {
	for _, path := range paths {
		if !p.couldContain(path, r) {
			continue
		}
		if p.IsOpen(path) {
			openNow = append(openNow, path)
		} else {
			closedNow = append(closedNow, path)
		}
	}
	return openNow, closedNow
}

// FetchSampleReads returns the reads for one sample overlapping r.
// Results from already-open sources precede results from sources opened
// for this call; no other cross-file order is guaranteed. An unknown
// sample is an *UnknownSampleError; an unknown contig is an empty,
// error-free result.
func (p *Pool) FetchSampleReads(sample string, r region.Region) ([]*sam.Record, error) {
	paths, ok := p.samplePaths[sample]
	if !ok {
		return nil, &UnknownSampleError{Sample: sample}
	}
	var result []*sam.Record
	appendFrom := func(paths []string) error {
		for _, path := range paths {
			reads, err := p.open[path].FetchReads(r)
			if err != nil {
				return errors.E(err, fmt.Sprintf("fetching %v from %s", r, path))
			}
			result = append(result, reads[sample]...)
		}
		return nil
	}
	openNow, closedNow := p.partition(paths, r)
	if err := appendFrom(openNow); err != nil {
		return nil, err
	}
	if err := p.eachOpened(closedNow, appendFrom); err != nil {
		return nil, err
	}
	return result, nil
}

// eachOpened opens the given closed paths and runs visit over them, in
// waves of at most maxOpen so the handle ceiling holds even when one
// fetch spans more files than the pool may keep open.
func (p *Pool) eachOpened(paths []string, visit func([]string) error) error {
	for len(paths) > 0 {
		wave := paths
		if len(wave) > p.maxOpen {
			wave = wave[:p.maxOpen]
		}
		if err := p.openSources(wave); err != nil {
			return err
		}
		if err := visit(wave); err != nil {
			return err
		}
		paths = paths[len(wave):]
	}
	return nil
}

// FetchReads returns the reads overlapping r for every listed sample,
// grouped by sample. Each needed file is queried once even when it
// holds several of the samples.
func (p *Pool) FetchReads(samples []string, r region.Region) (map[string][]*sam.Record, error) {
	wanted := make(map[string]bool, len(samples))
	pathSet := make(map[string]bool)
	var paths []string
	for _, sample := range samples {
		samplePaths, ok := p.samplePaths[sample]
		if !ok {
			return nil, &UnknownSampleError{Sample: sample}
		}
		wanted[sample] = true
		for _, path := range samplePaths {
			if !pathSet[path] {
				pathSet[path] = true
				paths = append(paths, path)
			}
		}
	}
	sort.Slice(paths, func(i, j int) bool { return p.pathRank[paths[i]] < p.pathRank[paths[j]] })

	result := make(map[string][]*sam.Record, len(samples))
	mergeFrom := func(paths []string) error {
		for _, path := range paths {
			reads, err := p.open[path].FetchReads(r)
			if err != nil {
				return errors.E(err, fmt.Sprintf("fetching %v from %s", r, path))
			}
			for sample, recs := range reads {
				if wanted[sample] {
					result[sample] = append(result[sample], recs...)
				}
			}
		}
		return nil
	}
	openNow, closedNow := p.partition(paths, r)
	if err := mergeFrom(openNow); err != nil {
		return nil, err
	}
	if err := p.eachOpened(closedNow, mergeFrom); err != nil {
		return nil, err
	}
	return result, nil
}

// FetchAllReads returns the reads overlapping r for every known sample.
func (p *Pool) FetchAllReads(r region.Region) (map[string][]*sam.Record, error) {
	return p.FetchReads(p.samples, r)
}

// Close closes every open source. The pool must not be used afterwards.
func (p *Pool) Close() error {
	var firstErr error
	for _, path := range p.paths {
		if p.IsOpen(path) {
			if err := p.closeSource(path); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
