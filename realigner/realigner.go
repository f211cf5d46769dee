// Package realigner consumes a variant-call stream and a read source,
// reassigns each read's alignment to its best-supported sample
// genotype, and emits the corrected reads plus a summary report.
//
// Call-block production is strictly serial; realignment of the
// resulting batches fans out over a bounded worker pool. A batch shares
// no mutable state with any other; workers accumulate private partial
// reports that are merged by field-wise addition after completion.
package realigner

import (
	"io"

	"github.com/biogo/hts/sam"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/variantlab/realign/cigar"
	"github.com/variantlab/realign/region"
)

// Config controls realignment behavior.
type Config struct {
	// CopyHomRefReads passes reads of homozygous-reference samples
	// through unmodified instead of rewriting them.
	CopyHomRefReads bool
	// SimplifyCigars collapses adjacent equal-kind runs in rewritten
	// cigars.
	SimplifyCigars bool
	// MaxThreads bounds the worker pool; values below 1 mean sequential
	// execution.
	MaxThreads int
}

// Report accumulates realignment statistics. Partial reports combine
// by field-wise addition.
type Report struct {
	TotalReads      int64
	AssignedReads   int64
	UnassignedReads int64
	HomRefReads     int64
}

func (r *Report) add(o Report) {
	r.TotalReads += o.TotalReads
	r.AssignedReads += o.AssignedReads
	r.UnassignedReads += o.UnassignedReads
	r.HomRefReads += o.HomRefReads
}

// Assignment is the outcome of scoring one read against a genotype set:
// the rewritten alignment position and cigar.
type Assignment struct {
	Pos   int
	Cigar cigar.Cigar
}

// Assigner scores a read against candidate genotypes and returns the
// best-supported alignment. ok is false when no confident assignment
// exists; such reads are passed through unmodified, never dropped.
// Implementations must be safe for concurrent use.
type Assigner interface {
	Assign(rec *sam.Record, genotypes []Genotype) (a Assignment, ok bool)
}

// ReadSource is what the pipeline needs from a read pool. It is queried
// only from the serial production step, so a single-owner pool
// satisfies it without external locking.
type ReadSource interface {
	Samples() []string
	FetchReads(samples []string, r region.Region) (map[string][]*sam.Record, error)
}

// Sink receives rewritten and passed-through reads, in per-block
// emission order. It is written only from the serial step.
type Sink interface {
	Write(rec *sam.Record) error
}

// batch is one sample's realignment unit for one call block. Batches
// are independent; nothing in a batch is shared.
type batch struct {
	sample    string
	genotypes []Genotype
	homRef    bool
	reads     []*sam.Record
}

type batchResult struct {
	out    []*sam.Record
	report Report
}

// Realigner reassigns read alignments per sample genotype.
type Realigner struct {
	config   Config
	assigner Assigner
}

// New returns a Realigner using the given scoring collaborator.
func New(assigner Assigner, config Config) *Realigner {
	return &Realigner{config: config, assigner: assigner}
}

// Realign drains the call stream, realigns every overlapping read and
// writes the results to sink. Setup and stream errors abort the run;
// a read that cannot be assigned is a counted soft failure.
func (ra *Realigner) Realign(calls CallSource, reads ReadSource, sink Sink) (Report, error) {
	samples := reads.Samples()
	blocks := &blockReader{calls: calls}
	var report Report
	nBlocks := 0
	for {
		block, err := blocks.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return report, err
		}
		nBlocks++
		batches, err := ra.makeBatches(block, reads, samples)
		if err != nil {
			return report, err
		}
		results, err := ra.processBatches(batches)
		if err != nil {
			return report, err
		}
		for _, res := range results {
			for _, rec := range res.out {
				if err := sink.Write(rec); err != nil {
					return report, err
				}
			}
			report.add(res.report)
		}
	}
	log.Debug.Printf("realigner: %d blocks, %d reads (%d assigned, %d unassigned, %d hom ref)",
		nBlocks, report.TotalReads, report.AssignedReads, report.UnassignedReads, report.HomRefReads)
	return report, nil
}

// blockReader groups the serial call stream into contiguous blocks of
// calls with overlapping windows. The final partial block is always
// returned before io.EOF.
type blockReader struct {
	calls   CallSource
	pending *Call
	done    bool
}

func (b *blockReader) next() ([]*Call, error) {
	if b.pending == nil {
		if b.done {
			return nil, io.EOF
		}
		c, err := b.calls.Next()
		if err == io.EOF {
			b.done = true
			return nil, io.EOF
		}
		if err != nil {
			return nil, err
		}
		b.pending = c
	}
	block := []*Call{b.pending}
	window := b.pending.Region
	b.pending = nil
	for {
		c, err := b.calls.Next()
		if err == io.EOF {
			b.done = true
			return block, nil
		}
		if err != nil {
			return nil, err
		}
		if !c.Region.Overlaps(window) {
			b.pending = c
			return block, nil
		}
		block = append(block, c)
		if c.Region.Start < window.Start {
			window.Start = c.Region.Start
		}
		if c.Region.End > window.End {
			window.End = c.Region.End
		}
	}
}

func blockWindow(block []*Call) region.Region {
	window := block[0].Region
	for _, c := range block[1:] {
		if c.Region.Start < window.Start {
			window.Start = c.Region.Start
		}
		if c.Region.End > window.End {
			window.End = c.Region.End
		}
	}
	return window
}

// makeBatches derives, per sample with any call in the block, the
// deduplicated genotype set and the overlapping reads. All involved
// samples are fetched in one query so each source file is visited once.
func (ra *Realigner) makeBatches(block []*Call, reads ReadSource, samples []string) ([]batch, error) {
	window := blockWindow(block)
	var involved []string
	genotypes := make(map[string][]Genotype)
	homRef := make(map[string]bool)
	for _, sample := range samples {
		seen := make(map[string]bool)
		allHomRef := true
		for _, c := range block {
			g, ok := c.Genotypes[sample]
			if !ok {
				continue
			}
			if key := g.key(); !seen[key] {
				seen[key] = true
				genotypes[sample] = append(genotypes[sample], g)
			}
			if !g.IsHomRef() {
				allHomRef = false
			}
		}
		if len(genotypes[sample]) > 0 {
			involved = append(involved, sample)
			homRef[sample] = allHomRef
		}
	}
	if len(involved) == 0 {
		return nil, nil
	}
	sampleReads, err := reads.FetchReads(involved, window)
	if err != nil {
		return nil, err
	}
	batches := make([]batch, 0, len(involved))
	for _, sample := range involved {
		batches = append(batches, batch{
			sample:    sample,
			genotypes: genotypes[sample],
			homRef:    homRef[sample],
			reads:     sampleReads[sample],
		})
	}
	return batches, nil
}

// processBatches fans the block's batches out over at most MaxThreads
// workers pulling from a shared queue. Results land in per-batch slots,
// so emission order is batch order regardless of scheduling.
func (ra *Realigner) processBatches(batches []batch) ([]batchResult, error) {
	results := make([]batchResult, len(batches))
	nWorkers := ra.config.MaxThreads
	if nWorkers < 1 {
		nWorkers = 1
	}
	if nWorkers > len(batches) {
		nWorkers = len(batches)
	}
	if nWorkers <= 1 {
		for i := range batches {
			results[i] = ra.processBatch(batches[i])
		}
		return results, nil
	}
	queue := make(chan int, len(batches))
	for i := range batches {
		queue <- i
	}
	close(queue)
	err := traverse.Each(nWorkers, func(_ int) error {
		for i := range queue {
			results[i] = ra.processBatch(batches[i])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// processBatch realigns one batch. It never fails: reads that cannot be
// assigned are passed through and counted.
func (ra *Realigner) processBatch(b batch) batchResult {
	res := batchResult{out: make([]*sam.Record, 0, len(b.reads))}
	for _, rec := range b.reads {
		res.report.TotalReads++
		if b.homRef && ra.config.CopyHomRefReads {
			res.report.HomRefReads++
			res.out = append(res.out, rec)
			continue
		}
		a, ok := ra.assigner.Assign(rec, b.genotypes)
		if !ok {
			res.report.UnassignedReads++
			res.out = append(res.out, rec)
			continue
		}
		c := a.Cigar
		if ra.config.SimplifyCigars {
			c = c.Simplify()
		}
		rec.Pos = a.Pos
		rec.Cigar = c.ToSAM()
		res.report.AssignedReads++
		res.out = append(res.out, rec)
	}
	return res
}
