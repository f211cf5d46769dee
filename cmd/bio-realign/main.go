package main

// bio-realign re-derives corrected alignments per sample genotype.
//
// It consumes a set of indexed BAM files and a variant-call manifest,
// reassigns each overlapping read to its best-supported genotype, and
// writes the rewritten reads to an output BAM plus a summary report.
//
// Usage:
//   bio-realign -bam a.bam,b.bam -calls calls.tsv[.gz] -out realigned.bam

import (
	"flag"
	"strings"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/variantlab/realign/readpool"
	"github.com/variantlab/realign/realigner"
)

var (
	bamFlag          = flag.String("bam", "", "Comma-separated list of indexed BAM files")
	callsFlag        = flag.String("calls", "", "Variant-call manifest (TSV, optionally gzipped)")
	outFlag          = flag.String("out", "", "Output BAM path")
	maxOpenFilesFlag = flag.Int("max-open-files", 16, "Maximum number of simultaneously open read files")
	threadsFlag      = flag.Int("threads", 1, "Worker pool size for batch realignment")
	copyHomRefFlag   = flag.Bool("copy-hom-ref", false, "Pass homozygous-reference samples' reads through unmodified")
	simplifyFlag     = flag.Bool("simplify-cigars", false, "Collapse adjacent equal-kind runs in rewritten cigars")
)

func main() {
	shutdown := grail.Init()
	defer shutdown()

	if *bamFlag == "" || *callsFlag == "" || *outFlag == "" {
		log.Fatalf("-bam, -calls and -out are all required")
	}
	paths := strings.Split(*bamFlag, ",")

	pool, err := readpool.New(paths, *maxOpenFilesFlag)
	if err != nil {
		log.Fatalf("opening read pool: %v", err)
	}
	defer pool.Close() // nolint: errcheck

	calls, err := openCallManifest(*callsFlag)
	if err != nil {
		log.Fatalf("reading calls %v: %v", *callsFlag, err)
	}

	ctx := vcontext.Background()
	header, err := readHeader(paths[0])
	if err != nil {
		log.Fatalf("reading header of %v: %v", paths[0], err)
	}
	out, err := file.Create(ctx, *outFlag)
	if err != nil {
		log.Fatalf("creating %v: %v", *outFlag, err)
	}
	w, err := bam.NewWriter(out.Writer(ctx), header, 1)
	if err != nil {
		log.Fatalf("creating BAM writer for %v: %v", *outFlag, err)
	}

	ra := realigner.New(&exactMatchAssigner{}, realigner.Config{
		CopyHomRefReads: *copyHomRefFlag,
		SimplifyCigars:  *simplifyFlag,
		MaxThreads:      *threadsFlag,
	})
	report, err := ra.Realign(calls, pool, w)
	if err != nil {
		log.Fatalf("realigning: %v", err)
	}
	if err := w.Close(); err != nil {
		log.Fatalf("closing %v: %v", *outFlag, err)
	}
	if err := out.Close(ctx); err != nil {
		log.Fatalf("closing %v: %v", *outFlag, err)
	}
	log.Printf("realigned %d reads: %d assigned, %d unassigned, %d hom ref",
		report.TotalReads, report.AssignedReads, report.UnassignedReads, report.HomRefReads)
}

func readHeader(path string) (*sam.Header, error) {
	ctx := vcontext.Background()
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer in.Close(ctx) // nolint: errcheck
	r, err := bam.NewReader(in.Reader(ctx), 1)
	if err != nil {
		return nil, err
	}
	defer r.Close() // nolint: errcheck
	return r.Header(), nil
}
