package coverage

import (
	"context"
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/tiebrush/collapse"
	"github.com/grailbio/tiebrush/encoding/bamprovider"
)

// RunOpts configures Run.
type RunOpts struct {
	Opts
	// Inputs are coordinate-sorted BAM or SAM files, raw or collapsed.
	Inputs []string
	// DepthOutput, JunctionOutput and HeatmapOutput are the track paths.  An
	// empty path disables the track.  A ".gz" suffix selects BGZF, and
	// collapse.StdoutPath standard output.  With no path at all, the depth
	// track goes to standard output.
	DepthOutput    string
	JunctionOutput string
	HeatmapOutput  string
	// BestEffort accepts inputs that declare no sort order.
	BestEffort bool
	// Parallelism is the number of BGZF compression goroutines.
	Parallelism int
}

type discard struct{}

func (discard) WriteInterval(Interval) error { return nil }

// Run aggregates opts.Inputs into the requested tracks.
func Run(ctx context.Context, opts RunOpts) (err error) {
	if len(opts.Inputs) == 0 {
		return fmt.Errorf("no input files")
	}
	if opts.DepthOutput == "" && opts.JunctionOutput == "" && opts.HeatmapOutput == "" {
		opts.DepthOutput = collapse.StdoutPath
	}
	nStdout := 0
	for _, path := range []string{opts.DepthOutput, opts.JunctionOutput, opts.HeatmapOutput} {
		if path == collapse.StdoutPath {
			nStdout++
		}
	}
	if nStdout > 1 {
		return fmt.Errorf("at most one track may be written to %s", collapse.StdoutPath)
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 1
	}
	opts.NumSamples = len(opts.Inputs)

	providers := make([]bamprovider.Provider, len(opts.Inputs))
	headers := make([]*sam.Header, len(opts.Inputs))
	defer func() {
		for _, p := range providers {
			if p == nil {
				continue
			}
			if cerr := p.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
	}()
	for i, path := range opts.Inputs {
		providers[i] = bamprovider.NewProvider(path)
		if headers[i], err = providers[i].GetHeader(); err != nil {
			return errors.E(err, "reading header", path)
		}
	}
	hs, err := collapse.ReconcileHeaders(opts.Inputs, headers, collapse.ReconcileOpts{BestEffort: opts.BestEffort})
	if err != nil {
		return err
	}

	var (
		depth     IntervalSink = discard{}
		junctions JunctionSink
		heatmap   IntervalSink
		closers   []func(context.Context) error
	)
	defer func() {
		for _, c := range closers {
			if cerr := c(ctx); cerr != nil && err == nil {
				err = cerr
			}
		}
	}()
	if opts.DepthOutput != "" {
		w, err := NewBedGraphWriter(ctx, opts.DepthOutput, opts.Parallelism)
		if err != nil {
			return err
		}
		depth, closers = w, append(closers, w.Close)
	}
	if opts.JunctionOutput != "" {
		w, err := NewJunctionBEDWriter(ctx, opts.JunctionOutput, opts.Parallelism)
		if err != nil {
			return err
		}
		junctions, closers = w, append(closers, w.Close)
	}
	if opts.HeatmapOutput != "" {
		w, err := NewBedGraphWriter(ctx, opts.HeatmapOutput, opts.Parallelism)
		if err != nil {
			return err
		}
		heatmap, closers = w, append(closers, w.Close)
	}
	agg, err := NewAggregator(opts.Opts, depth, junctions, heatmap)
	if err != nil {
		return err
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
	merger := collapse.NewMerger(hs, iters, collapse.MergeOpts{
		MinMapQ: opts.MinMapQ,
		MaxNH:   opts.MaxNH,
	})
	var n int64
	for merger.Scan() {
		if err = agg.Add(merger.Record(), merger.Input()); err != nil {
			return err
		}
		n++
	}
	if err = merger.Err(); err != nil {
		return err
	}
	if err = agg.Close(); err != nil {
		return err
	}
	log.Printf("coverage: %d records from %d inputs aggregated", n, len(opts.Inputs))
	return nil
}
