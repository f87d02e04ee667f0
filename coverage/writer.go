package coverage

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/hts/bgzf"
	"github.com/grailbio/tiebrush/collapse"
)

// Interval is one run of a bedGraph track, in 0-based half-open coordinates.
type Interval struct {
	Ref        string
	Start, End int
	Value      int64
}

// IntervalSink consumes the runs of a depth or heatmap track.
type IntervalSink interface {
	WriteInterval(iv Interval) error
}

// JunctionSink consumes junctions.
type JunctionSink interface {
	WriteJunction(j Junction) error
}

// rle coalesces abutting runs of equal value before handing them to a sink.
// Zero-valued positions are gaps and are never written.
type rle struct {
	sink IntervalSink
	cur  Interval
	open bool
}

func (r *rle) add(ref string, start, end int, v int64) error {
	if r.open && r.cur.Ref == ref && r.cur.End == start && r.cur.Value == v {
		r.cur.End = end
		return nil
	}
	if err := r.flush(); err != nil {
		return err
	}
	if v == 0 {
		return nil
	}
	r.cur = Interval{Ref: ref, Start: start, End: end, Value: v}
	r.open = true
	return nil
}

func (r *rle) flush() error {
	if !r.open {
		return nil
	}
	r.open = false
	return r.sink.WriteInterval(r.cur)
}

// trackWriter writes a track to a file, BGZF-compressed if the path ends in
// ".gz", or to standard output if the path is "-".
type trackWriter struct {
	path string
	// out is nil for standard output.
	out  file.File
	bgzf *bgzf.Writer
	w    *tsv.Writer
}

func newTrackWriter(ctx context.Context, path string, parallelism int) (*trackWriter, error) {
	if path == collapse.StdoutPath {
		return &trackWriter{path: "stdout", w: tsv.NewWriter(os.Stdout)}, nil
	}
	out, err := file.Create(ctx, path)
	if err != nil {
		return nil, errors.E(err, "creating", path)
	}
	tw := &trackWriter{path: path, out: out}
	var dst io.Writer = out.Writer(ctx)
	if strings.HasSuffix(path, ".gz") {
		tw.bgzf = bgzf.NewWriter(dst, parallelism)
		dst = tw.bgzf
	}
	tw.w = tsv.NewWriter(dst)
	return tw, nil
}

func (tw *trackWriter) endLine() error {
	if err := tw.w.EndLine(); err != nil {
		return errors.E(err, "writing", tw.path)
	}
	return nil
}

// Close flushes and closes the file.
func (tw *trackWriter) Close(ctx context.Context) (err error) {
	if tw.out != nil {
		defer file.CloseAndReport(ctx, tw.out, &err)
	}
	if err = tw.w.Flush(); err != nil {
		return errors.E(err, "flushing", tw.path)
	}
	if tw.bgzf != nil {
		if err = tw.bgzf.Close(); err != nil {
			return errors.E(err, "closing", tw.path)
		}
	}
	return nil
}

// BedGraphWriter writes an IntervalSink as a bedGraph file.
type BedGraphWriter struct {
	*trackWriter
}

// NewBedGraphWriter creates path.  parallelism is the number of compression
// goroutines for ".gz" output.
func NewBedGraphWriter(ctx context.Context, path string, parallelism int) (*BedGraphWriter, error) {
	tw, err := newTrackWriter(ctx, path, parallelism)
	if err != nil {
		return nil, err
	}
	return &BedGraphWriter{tw}, nil
}

// WriteInterval implements IntervalSink.
func (w *BedGraphWriter) WriteInterval(iv Interval) error {
	w.w.WriteString(iv.Ref)
	w.w.WriteInt64(int64(iv.Start))
	w.w.WriteInt64(int64(iv.End))
	w.w.WriteInt64(iv.Value)
	return w.endLine()
}

// JunctionBEDWriter writes junctions as BED-6 lines: the 0-based start of the
// intron, its end, the junction id, its support and its strand.
type JunctionBEDWriter struct {
	*trackWriter
}

// NewJunctionBEDWriter creates path.
func NewJunctionBEDWriter(ctx context.Context, path string, parallelism int) (*JunctionBEDWriter, error) {
	tw, err := newTrackWriter(ctx, path, parallelism)
	if err != nil {
		return nil, err
	}
	tw.w.WriteString("track name=junctions")
	if err := tw.endLine(); err != nil {
		return nil, err
	}
	return &JunctionBEDWriter{tw}, nil
}

// JunctionName formats the BED name of the junction with the given id.
func JunctionName(id int) string {
	return fmt.Sprintf("JUNC%08d", id)
}

// WriteJunction implements JunctionSink.
func (w *JunctionBEDWriter) WriteJunction(j Junction) error {
	w.w.WriteString(j.Ref)
	w.w.WriteInt64(int64(j.Start - 1))
	w.w.WriteInt64(int64(j.End))
	w.w.WriteString(JunctionName(j.ID))
	w.w.WriteInt64(j.Support)
	w.w.WriteByte(j.Strand)
	return w.endLine()
}
