package main

/*
  tiebrush collapses coordinate-sorted alignment files into one file in which
  duplicate alignments are represented once.  For more information, see
  github.com/grailbio/tiebrush/collapse/doc.go

  Sample usage:

    tiebrush -o merged.bam sample1.bam sample2.bam sample3.bam
    tiebrush -o merged.bam -cigar samples.txt
    tiebrush sample1.bam sample2.bam > merged.sam
*/

import (
	"flag"
	"fmt"
	"math"
	"os"
	"runtime"
	"strings"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/file/s3file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/tiebrush/collapse"
	"github.com/grailbio/tiebrush/encoding/bamprovider"
)

var (
	output            = flag.String("o", "", "Output BAM path; a .sam suffix writes SAM, and - or no path writes SAM to stdout")
	strategy          = flag.String("strategy", "full", "Duplicate criterion: full, cigar, clip or exon")
	cigarOnly         = flag.Bool("cigar", false, "Shorthand for -strategy=cigar: ignore MD differences")
	clip              = flag.Bool("clip", false, "Shorthand for -strategy=clip: also ignore soft clips")
	exon              = flag.Bool("exon", false, "Shorthand for -strategy=exon: compare exon boundaries only")
	flagMask          = flag.Int("flag-mask", 0, "SAM flag bits that must agree between duplicates")
	maxYC             = flag.Int("max-yc", math.MaxInt32, "Saturation value of the YC tag")
	minMapQ           = flag.Int("min-mapq", 0, "Drop alignments with a lower mapping quality")
	maxMapQ           = flag.Int("max-mapq", 0, "Drop alignments with a higher mapping quality; 0 means no limit")
	maxNH             = flag.Int("max-nh", 0, "Drop alignments whose NH tag exceeds this; 0 means no limit")
	keepUnmapped      = flag.Bool("keep-unmapped", false, "Pass unmapped records through to the output")
	dropSecondary     = flag.Bool("drop-secondary", false, "Drop secondary alignments")
	dropSupplementary = flag.Bool("drop-supplementary", false, "Drop supplementary alignments")
	bedPath           = flag.String("bed", "", "Only keep alignments intersecting the regions of this BED file")
	metricsFile       = flag.String("metrics", "", "Output metrics TSV path")
	bestEffort        = flag.Bool("best-effort", false, "Accept inputs whose header declares no sort order")
	parallelism       = flag.Int("parallelism", runtime.NumCPU(), "Number of BGZF compression goroutines")
)

func init() {
	flag.BoolVar(cigarOnly, "C", false, "Same as -cigar")
	flag.BoolVar(clip, "P", false, "Same as -clip")
	flag.BoolVar(exon, "E", false, "Same as -exon")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-o out.bam] [flags] in1.bam in2.bam ...\n       %s [-o out.bam] [flags] inputs.txt\n", os.Args[0], os.Args[0])
		flag.PrintDefaults()
	}
	file.RegisterImplementation("s3", func() file.Implementation {
		return s3file.NewImplementation(s3file.NewDefaultProvider(session.Options{}), s3file.Options{})
	})
}

// strategyFromFlags combines -strategy with the shorthand switches.  explicit
// reports whether -strategy was given on the command line; it may not be
// combined with a shorthand, nor may two shorthands be combined.
func strategyFromFlags(name string, explicit, cigar, clip, exon bool) (collapse.Strategy, error) {
	strategy, err := collapse.ParseStrategy(name)
	if err != nil {
		return strategy, err
	}
	var set []string
	for _, s := range []struct {
		flag     string
		on       bool
		strategy collapse.Strategy
	}{{"-cigar", cigar, collapse.Cigar}, {"-clip", clip, collapse.Clip}, {"-exon", exon, collapse.Exon}} {
		if s.on {
			strategy = s.strategy
			set = append(set, s.flag)
		}
	}
	switch {
	case len(set) > 1:
		return strategy, fmt.Errorf("at most one of -cigar, -clip and -exon may be given, got %s", strings.Join(set, " "))
	case len(set) == 1 && explicit:
		return strategy, fmt.Errorf("-strategy=%s conflicts with %s", name, set[0])
	}
	return strategy, nil
}

func main() {
	shutdown := grail.Init()
	defer shutdown()

	if flag.NArg() == 0 {
		flag.Usage()
		log.Fatalf("no input files")
	}
	opts := collapse.DefaultOpts
	explicit := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "strategy" {
			explicit = true
		}
	})
	var err error
	if opts.Strategy, err = strategyFromFlags(*strategy, explicit, *cigarOnly, *clip, *exon); err != nil {
		flag.Usage()
		log.Fatalf("%v", err)
	}

	ctx := vcontext.Background()
	if opts.Inputs, err = bamprovider.ExpandInputs(ctx, flag.Args()); err != nil {
		log.Fatalf("%v", err)
	}
	opts.Output = *output
	opts.MetricsFile = *metricsFile
	opts.RegionsBED = *bedPath
	opts.FlagMask = sam.Flags(*flagMask)
	opts.MaxYC = *maxYC
	opts.BestEffort = *bestEffort
	opts.Parallelism = *parallelism
	opts.CommandLine = strings.Join(os.Args, " ")
	opts.MinMapQ = *minMapQ
	opts.MaxMapQ = *maxMapQ
	opts.MaxNH = *maxNH
	opts.KeepUnmapped = *keepUnmapped
	opts.DropSecondary = *dropSecondary
	opts.DropSupplementary = *dropSupplementary

	if _, err := collapse.Run(ctx, opts); err != nil {
		log.Fatalf("%v", err)
	}
	log.Debug.Printf("exiting")
}
