package coverage

import (
	"fmt"
	"math"

	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/tiebrush/circular"
	"github.com/grailbio/tiebrush/collapse"
	gbam "github.com/grailbio/tiebrush/encoding/bam"
	bi "github.com/grailbio/tiebrush/interval"
)

var (
	tagYC = sam.NewTag("YC")
	tagYX = sam.NewTag("YX")
	tagNH = sam.NewTag("NH")
)

// Opts configures an Aggregator.
type Opts struct {
	// MaxNH skips records whose NH tag exceeds it.  <= 0 means no limit.
	MaxNH int
	// MinMapQ skips records with a lower mapping quality.
	MinMapQ int
	// NumSamples is the number of inputs.  With one input, the heatmap reports
	// the mean YX tag of the records covering each base.  With more, each input
	// covering a base counts once for its records without YX, plus the mean YX
	// of its records with one.
	NumSamples int
	// NormalizeTo, if positive, rescales heatmap values from [0, MaxSamples]
	// to [0, NormalizeTo].
	NormalizeTo int
	// MaxSamples is the value mapped to NormalizeTo.  Defaults to NumSamples.
	MaxSamples int
}

// DefaultOpts are the default options.
var DefaultOpts = Opts{NumSamples: 1}

func validate(opts *Opts) error {
	if opts.NumSamples <= 0 {
		return fmt.Errorf("coverage: NumSamples must be positive, got %d", opts.NumSamples)
	}
	if opts.MaxSamples <= 0 {
		opts.MaxSamples = opts.NumSamples
	}
	if opts.NormalizeTo < 0 {
		return fmt.Errorf("coverage: NormalizeTo must not be negative, got %d", opts.NormalizeTo)
	}
	if opts.MinMapQ < 0 || opts.MinMapQ > 255 {
		return fmt.Errorf("coverage: MinMapQ must be in [0, 255]")
	}
	return nil
}

const (
	initialWindow = 1024
	// Lanes of the heatmap window in mean-YX mode.
	laneYXSum   = 0
	laneYXCount = 1
)

// Aggregator turns a coordinate-sorted record stream into a depth track, a
// junction track and an optional sample heatmap.  Memory is proportional to
// the longest span of the records overlapping any one base, plus the
// junctions of the current reference.
type Aggregator struct {
	opts      Opts
	junctions JunctionSink

	depth   *circular.Window
	depthRL rle

	heat bool
	// yx holds the YX sum and record count per base with a single input.
	yx *circular.Window
	// With several inputs, samples has a bit per input covering a base with
	// untagged records, and tagged[i] the YX sum and count of input i's tagged
	// records.  taggedInputs lists the non-nil entries of tagged.
	samples      circular.Bitmap
	tagged       []*circular.Window
	taggedInputs []int
	// Every heatmap base before heatFrom has been written; heatEnd is one past
	// the last base added.
	heatFrom, heatEnd int
	heatBuf           []int64
	heatRL            rle

	juncs    junctionTable
	nextJunc int

	refName   string
	refID     int
	lastStart int
	exons     []gbam.Exon
}

// NewAggregator creates an Aggregator.  junctions and heatmap may be nil.
func NewAggregator(opts Opts, depth IntervalSink, junctions JunctionSink, heatmap IntervalSink) (*Aggregator, error) {
	if err := validate(&opts); err != nil {
		return nil, err
	}
	a := &Aggregator{
		opts:      opts,
		junctions: junctions,
		depth:     circular.NewWindow(1, initialWindow),
		depthRL:   rle{sink: depth},
		heat:      heatmap != nil,
		heatRL:    rle{sink: heatmap},
		nextJunc:  1,
		refID:     -1,
	}
	if a.heat {
		if opts.NumSamples > 1 {
			if circular.RowWidthForColumns(opts.NumSamples) > 255 {
				return nil, fmt.Errorf("coverage: at most %d samples are supported in a heatmap", 255*circular.BitsPerWord)
			}
			a.samples = circular.NewBitmap(initialWindow, circular.RowWidthForColumns(opts.NumSamples))
			a.tagged = make([]*circular.Window, opts.NumSamples)
		} else {
			a.yx = circular.NewWindow(2, initialWindow)
		}
	}
	return a, nil
}

// keep reports whether r passes the filters.
func (a *Aggregator) keep(r *sam.Record) bool {
	if gbam.IsUnmapped(r) || r.Ref == nil {
		return false
	}
	if int(r.MapQ) < a.opts.MinMapQ {
		return false
	}
	if a.opts.MaxNH > 0 {
		if nh, ok := gbam.IntTag(r, tagNH); ok && nh > a.opts.MaxNH {
			return false
		}
	}
	return true
}

// Add adds one record from the given input.  Records must be sorted by
// (reference, position).
func (a *Aggregator) Add(r *sam.Record, input int) error {
	if !a.keep(r) {
		return nil
	}
	if input < 0 || input >= a.opts.NumSamples {
		return fmt.Errorf("coverage: input %d out of range [0, %d)", input, a.opts.NumSamples)
	}
	if err := gbam.CheckCigar(r); err != nil {
		return err
	}
	start := r.Pos
	if r.Ref.ID() != a.refID {
		if err := a.flushRef(); err != nil {
			return err
		}
		a.refID, a.refName = r.Ref.ID(), r.Ref.Name()
		a.lastStart = start
		a.depth.Reset(start)
		if a.yx != nil {
			a.yx.Reset(start)
		}
		a.heatFrom, a.heatEnd = start, start
	} else if start < a.lastStart {
		return &collapse.UnsortedInputError{
			Path: fmt.Sprintf("input %d", input), Name: r.Name,
			PrevRef: a.refID, PrevPos: a.lastStart, Ref: a.refID, Pos: start,
		}
	}
	if start > a.lastStart {
		if err := a.flushBefore(start); err != nil {
			return err
		}
		a.lastStart = start
	}

	weight := int64(1)
	if yc, ok := gbam.IntTag(r, tagYC); ok && yc > 0 {
		weight = int64(yc)
	}
	yx, hasYX := int64(1), false
	if v, ok := gbam.IntTag(r, tagYX); ok && v > 0 {
		yx, hasYX = int64(v), true
	}

	pos := start
	for _, co := range r.Cigar {
		n := co.Len()
		switch co.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			a.depth.Add(0, pos, pos+n, weight)
			switch {
			case a.yx != nil:
				a.yx.Add(laneYXSum, pos, pos+n, yx)
				a.yx.Add(laneYXCount, pos, pos+n, 1)
			case !a.heat:
			case hasYX:
				w := a.taggedWindow(input)
				w.Add(laneYXSum, pos, pos+n, yx)
				w.Add(laneYXCount, pos, pos+n, 1)
			default:
				for p := pos; p < pos+n; p++ {
					a.samples.Set(bi.PosType(p), uint32(input))
				}
			}
			pos += n
			if pos > a.heatEnd {
				a.heatEnd = pos
			}
		case sam.CigarDeletion, sam.CigarSkipped:
			pos += n
		}
	}
	return a.addJunctions(r, weight)
}

// taggedWindow returns the YX window of input, creating it on first use.
func (a *Aggregator) taggedWindow(input int) *circular.Window {
	w := a.tagged[input]
	if w == nil {
		w = circular.NewWindow(2, initialWindow)
		a.tagged[input] = w
		a.taggedInputs = append(a.taggedInputs, input)
	}
	return w
}

// meanYX rounds half up.
func meanYX(vals []int64) int64 {
	return (2*vals[laneYXSum] + vals[laneYXCount]) / (2 * vals[laneYXCount])
}

// addJunctions registers the introns between consecutive exons of r.
func (a *Aggregator) addJunctions(r *sam.Record, weight int64) error {
	if a.junctions == nil {
		return nil
	}
	strand := gbam.SpliceStrand(r)
	if strand == '.' {
		return nil
	}
	var err error
	if a.exons, err = gbam.Exons(r, a.exons[:0]); err != nil {
		return err
	}
	for i := 1; i < len(a.exons); i++ {
		// The intron is [prev.End, next.Start) 0-based, so
		// [prev.End+1, next.Start] 1-based.
		a.juncs.add(a.exons[i-1].End+1, a.exons[i].Start, strand, weight)
	}
	return nil
}

// flushBefore writes every base before limit.
func (a *Aggregator) flushBefore(limit int) error {
	var err error
	a.depth.Flush(limit, func(pos int, vals []int64) {
		if err == nil {
			err = a.depthRL.add(a.refName, pos, pos+1, vals[0])
		}
	})
	if err != nil {
		return err
	}
	if !a.heat {
		return nil
	}
	if a.yx != nil {
		a.yx.Flush(limit, func(pos int, vals []int64) {
			if err == nil && vals[laneYXCount] > 0 {
				err = a.heatRL.add(a.refName, pos, pos+1, a.normalize(meanYX(vals)))
			}
		})
		return err
	}
	return a.flushSamples(limit)
}

// flushSamples writes the multi-input heatmap before limit.  The untagged
// sample counts and the per-input YX means are summed per base in heatBuf,
// which spans [heatFrom, min(limit, heatEnd)).
func (a *Aggregator) flushSamples(limit int) error {
	var err error
	from, stop := a.heatFrom, limit
	if stop > a.heatEnd {
		stop = a.heatEnd
	}
	if stop > from {
		if n := stop - from; cap(a.heatBuf) < n {
			a.heatBuf = make([]int64, n)
		}
		buf := a.heatBuf[:stop-from]
		a.samples.FlushBefore(bi.PosType(stop), func(pos bi.PosType, count int) {
			buf[int(pos)-from] += int64(count)
		})
		for _, i := range a.taggedInputs {
			a.tagged[i].Flush(stop, func(pos int, vals []int64) {
				if vals[laneYXCount] > 0 {
					buf[pos-from] += meanYX(vals)
				}
			})
		}
		for j, v := range buf {
			if v != 0 && err == nil {
				err = a.heatRL.add(a.refName, from+j, from+j+1, a.normalize(v))
			}
			buf[j] = 0
		}
		a.heatFrom = stop
	}
	if limit >= a.heatEnd {
		// Nothing is pending, so skip the gap up to limit.
		a.heatFrom, a.heatEnd = limit, limit
	}
	return err
}

// normalize rescales a heatmap value when NormalizeTo is set.
func (a *Aggregator) normalize(v int64) int64 {
	if a.opts.NormalizeTo <= 0 {
		return v
	}
	return int64(math.Round(float64(v) * float64(a.opts.NormalizeTo) / float64(a.opts.MaxSamples)))
}

// flushRef writes everything buffered for the current reference.
func (a *Aggregator) flushRef() error {
	if a.refID < 0 {
		return nil
	}
	if err := a.flushBefore(math.MaxInt32); err != nil {
		return err
	}
	if err := a.depthRL.flush(); err != nil {
		return err
	}
	if a.heat {
		if err := a.heatRL.flush(); err != nil {
			return err
		}
	}
	n := a.juncs.len()
	err := a.juncs.flush(func(k *junctionKey) error {
		j := Junction{Ref: a.refName, Start: k.start, End: k.end, Strand: k.strand, ID: a.nextJunc, Support: k.support}
		a.nextJunc++
		return a.junctions.WriteJunction(j)
	})
	if n > 0 {
		log.Debug.Printf("coverage: %s: %d junctions", a.refName, n)
	}
	a.refID = -1
	return err
}

// Close writes everything still buffered.  The Aggregator must not be used
// afterwards.
func (a *Aggregator) Close() error {
	return a.flushRef()
}
