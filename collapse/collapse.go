package collapse

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"runtime"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	gbam "github.com/grailbio/tiebrush/encoding/bam"
	"github.com/grailbio/tiebrush/encoding/bamprovider"
	"github.com/grailbio/tiebrush/interval"
)

// Opts configures Run.
type Opts struct {
	// Inputs are the coordinate-sorted BAM or SAM files to collapse.
	Inputs []string
	// Output is the output path.  A ".sam" suffix selects SAM, anything else
	// BAM.  "" or StdoutPath writes SAM to standard output.
	Output string
	// MetricsFile, if set, receives per-input statistics.
	MetricsFile string
	// RegionsBED, if set, restricts the output to records intersecting the
	// regions of the BED file.
	RegionsBED string

	Strategy Strategy
	// FlagMask selects the flags that must agree between duplicates.
	FlagMask sam.Flags
	// MaxYC caps the YC tag.
	MaxYC int
	// BestEffort accepts inputs that declare no sort order.
	BestEffort bool
	// Parallelism is the number of BGZF compression goroutines.
	Parallelism int
	// CommandLine is recorded in the output @PG line.
	CommandLine string

	MergeOpts
}

// StdoutPath is the Output that selects standard output.
const StdoutPath = "-"

// DefaultOpts are the default options for Run.
var DefaultOpts = Opts{
	Strategy:    Full,
	MaxYC:       math.MaxInt32,
	Parallelism: runtime.NumCPU(),
}

func validate(opts *Opts) error {
	if len(opts.Inputs) == 0 {
		return fmt.Errorf("no input files")
	}
	if opts.Output == "" {
		opts.Output = StdoutPath
	}
	if opts.Strategy < Full || opts.Strategy > Exon {
		return fmt.Errorf("invalid strategy %v", opts.Strategy)
	}
	if opts.MaxYC <= 1 {
		return fmt.Errorf("max-yc must be greater than 1")
	}
	if opts.MinMapQ < 0 || opts.MinMapQ > 255 {
		return fmt.Errorf("min-mapq must be in [0, 255]")
	}
	if opts.MaxMapQ > 0 && opts.MaxMapQ < opts.MinMapQ {
		return fmt.Errorf("max-mapq must not be less than min-mapq")
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 1
	}
	return nil
}

// recordWriter is implemented by *bam.Writer and *sam.Writer.
type recordWriter interface {
	Write(r *sam.Record) error
}

// session is the state of one collapsing run.
type session struct {
	opts    *Opts
	hs      *HeaderSet
	grouper *grouper
	tracker *BundleTracker
	out     recordWriter
	metrics *Metrics

	// Position of the open groups.
	refID, pos int
}

func newSession(opts *Opts, hs *HeaderSet, out recordWriter) *session {
	return &session{
		opts:    opts,
		hs:      hs,
		grouper: newGrouper(opts.Strategy, opts.FlagMask, hs.PreMerged),
		tracker: NewBundleTracker(hs.NumInputs()),
		out:     out,
		metrics: newMetrics(hs),
		refID:   -1,
		pos:     -1,
	}
}

// add processes the next record of the merged stream.
func (s *session) add(r *sam.Record, input int) error {
	ref := refID(r)
	if ref != s.refID || r.Pos != s.pos {
		if err := s.flush(); err != nil {
			return err
		}
		if ref != s.refID {
			s.tracker.Reset()
			s.refID = ref
		}
		s.pos = r.Pos
	}
	if gbam.IsUnmapped(r) || r.Ref == nil {
		s.metrics.Unmapped++
		return s.write(r)
	}
	return s.grouper.add(r, input)
}

func (s *session) write(r *sam.Record) error {
	s.metrics.Output++
	return s.out.Write(r)
}

// flush emits the groups at the current position.
func (s *session) flush() error {
	if s.grouper.len() == 0 {
		return nil
	}
	return s.grouper.flush(func(gr *group) error {
		r := gr.aln.Rec
		yd := gr.maxYD
		err := gr.forEachContributor(func(input int) error {
			d, err := s.tracker.Process(input, gr.aln.Strand, gr.aln.Start, gr.aln.Exons)
			if d > yd {
				yd = d
			}
			return err
		})
		if err != nil {
			return err
		}
		yc, yx := gr.yc(s.opts.MaxYC), gr.yx()
		if err := setCount(r, tagYC, yc, 1); err != nil {
			return err
		}
		if err := setCount(r, tagYX, yx, 1); err != nil {
			return err
		}
		if err := setCount(r, tagYD, yd, 0); err != nil {
			return err
		}
		s.metrics.addGroup(yc)
		return s.write(r)
	})
}

// setCount sets tag to v if v > min, and removes it otherwise.
func setCount(r *sam.Record, tag sam.Tag, v, min int) error {
	if v <= min {
		gbam.ClearTag(r, tag)
		return nil
	}
	return gbam.SetIntTag(r, tag, v)
}

// Run collapses opts.Inputs into opts.Output and returns the run statistics.
func Run(ctx context.Context, opts Opts) (m *Metrics, err error) {
	if err = validate(&opts); err != nil {
		return nil, err
	}
	providers := make([]bamprovider.Provider, len(opts.Inputs))
	headers := make([]*sam.Header, len(opts.Inputs))
	defer func() {
		for i, p := range providers {
			if p == nil {
				continue
			}
			if cerr := p.Close(); cerr != nil {
				log.Error.Printf("close %s: %v", opts.Inputs[i], cerr)
				if err == nil {
					err = cerr
				}
			}
		}
	}()
	for i, path := range opts.Inputs {
		providers[i] = bamprovider.NewProvider(path)
		if headers[i], err = providers[i].GetHeader(); err != nil {
			return nil, errors.E(err, "reading header", path)
		}
	}
	hs, err := ReconcileHeaders(opts.Inputs, headers, ReconcileOpts{
		BestEffort:  opts.BestEffort,
		CommandLine: opts.CommandLine,
	})
	if err != nil {
		return nil, err
	}
	if opts.RegionsBED != "" {
		regions, err := interval.NewBEDUnionFromPath(opts.RegionsBED, interval.NewBEDOpts{SAMHeader: hs.Header})
		if err != nil {
			return nil, err
		}
		opts.Regions = &regions
	}

	var dst io.Writer = os.Stdout
	if opts.Output != StdoutPath {
		out, cerr := file.Create(ctx, opts.Output)
		if cerr != nil {
			return nil, errors.E(cerr, "creating", opts.Output)
		}
		defer file.CloseAndReport(ctx, out, &err)
		dst = out.Writer(ctx)
	}
	var (
		w      recordWriter
		closer func() error
	)
	if opts.Output == StdoutPath || strings.HasSuffix(opts.Output, ".sam") {
		samw, err := sam.NewWriter(dst, hs.Header, sam.FlagDecimal)
		if err != nil {
			return nil, errors.E(err, "writing header", opts.Output)
		}
		w, closer = samw, func() error { return nil }
	} else {
		bamw, err := bam.NewWriter(dst, hs.Header, opts.Parallelism)
		if err != nil {
			return nil, errors.E(err, "writing header", opts.Output)
		}
		w, closer = bamw, bamw.Close
	}

	iters := make([]bamprovider.Iterator, len(providers))
	for i, p := range providers {
		iters[i] = p.NewIterator()
	}
	defer func() {
		for i, iter := range iters {
			if cerr := iter.Close(); cerr != nil && err == nil {
				err = errors.E(cerr, opts.Inputs[i])
			}
		}
	}()

	s := newSession(&opts, hs, w)
	merger := NewMerger(hs, iters, opts.MergeOpts)
	for merger.Scan() {
		if err = s.add(merger.Record(), merger.Input()); err != nil {
			_ = closer()
			return nil, err
		}
	}
	if err = merger.Err(); err != nil {
		_ = closer()
		return nil, err
	}
	if err = s.flush(); err != nil {
		_ = closer()
		return nil, err
	}
	if err = closer(); err != nil {
		return nil, errors.E(err, "closing", opts.Output)
	}
	s.metrics.setInputStats(merger.Stats())
	log.Printf("%s", s.metrics.summary())
	if opts.MetricsFile != "" {
		if err = writeMetrics(ctx, opts.MetricsFile, s.metrics); err != nil {
			return nil, err
		}
	}
	return s.metrics, nil
}
