package main

/*
  tiecov computes coverage tracks from raw or collapsed alignment files: a
  bedGraph of read depth, a BED of splice junctions with their support, and
  optionally a bedGraph of the number of samples covering each base.

  Sample usage:

    tiecov -c depth.bedgraph -j junctions.bed -s samples.bedgraph merged.bam
    tiecov -c depth.bedgraph.gz -N 1 -Q 10 sample1.bam sample2.bam
    tiecov merged.bam > depth.bedgraph
*/

import (
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/file/s3file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/tiebrush/coverage"
	"github.com/grailbio/tiebrush/encoding/bamprovider"
)

var (
	depthOutput    = flag.String("c", "", "Output bedGraph path for read depth; - writes to stdout, which is the default when no track is requested")
	junctionOutput = flag.String("j", "", "Output BED path for splice junctions")
	heatmapOutput  = flag.String("s", "", "Output bedGraph path for the number of samples covering each base")
	maxNH          = flag.Int("N", 0, "Skip alignments whose NH tag exceeds this; 0 means no limit")
	minMapQ        = flag.Int("Q", 0, "Skip alignments with a lower mapping quality")
	normalizeTo    = flag.Int("normalize", 0, "Rescale sample counts to [0, this]; 0 disables")
	maxSamples     = flag.Int("max-samples", 0, "Sample count mapped to -normalize; defaults to the number of inputs")
	bestEffort     = flag.Bool("best-effort", false, "Accept inputs whose header declares no sort order")
	parallelism    = flag.Int("parallelism", runtime.NumCPU(), "Number of BGZF compression goroutines for .gz outputs")
)

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-c depth.bedgraph] [-j junctions.bed] [-s samples.bedgraph] [flags] in.bam ...\n", os.Args[0])
		flag.PrintDefaults()
	}
	file.RegisterImplementation("s3", func() file.Implementation {
		return s3file.NewImplementation(s3file.NewDefaultProvider(session.Options{}), s3file.Options{})
	})
}

func main() {
	shutdown := grail.Init()
	defer shutdown()

	if flag.NArg() == 0 {
		flag.Usage()
		log.Fatalf("no input files")
	}
	ctx := vcontext.Background()
	inputs, err := bamprovider.ExpandInputs(ctx, flag.Args())
	if err != nil {
		log.Fatalf("%v", err)
	}
	opts := coverage.RunOpts{
		Opts:           coverage.DefaultOpts,
		Inputs:         inputs,
		DepthOutput:    *depthOutput,
		JunctionOutput: *junctionOutput,
		HeatmapOutput:  *heatmapOutput,
		BestEffort:     *bestEffort,
		Parallelism:    *parallelism,
	}
	opts.MaxNH = *maxNH
	opts.MinMapQ = *minMapQ
	opts.NormalizeTo = *normalizeTo
	opts.MaxSamples = *maxSamples
	if err := coverage.Run(ctx, opts); err != nil {
		log.Fatalf("%v", err)
	}
	log.Debug.Printf("exiting")
}
