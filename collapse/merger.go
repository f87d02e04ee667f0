package collapse

import (
	"math"
	"strings"

	"github.com/biogo/store/llrb"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/sam"
	gbam "github.com/grailbio/tiebrush/encoding/bam"
	"github.com/grailbio/tiebrush/encoding/bamprovider"
	"github.com/grailbio/tiebrush/interval"
)

// MergeOpts selects the records that the Merger yields.  The zero value keeps
// every mapped record.
type MergeOpts struct {
	// MinMapQ and MaxMapQ bound the mapping quality of mapped records.
	// MaxMapQ <= 0 means no upper bound.
	MinMapQ, MaxMapQ int
	// MaxNH drops records whose NH tag exceeds it.  <= 0 means no limit.
	MaxNH int
	// KeepUnmapped yields unmapped records.  They sort after all mapped records.
	KeepUnmapped bool
	// DropSecondary and DropSupplementary drop the corresponding alignments.
	DropSecondary, DropSupplementary bool
	// Regions, if set, drops mapped records that do not intersect it.  It must
	// be built against the unified header.
	Regions *interval.BEDUnion
}

// InputStats counts the records read from one input.
type InputStats struct {
	Records  int64
	Filtered int64
}

// mergeLeaf is the pending record of one input.
type mergeLeaf struct {
	input      int
	rec        *sam.Record
	refID      int
	start, end int
}

// Compare implements llrb.Comparable.  Leaves are ordered by (reference,
// start, end, input, name), with unmapped records last.
func (l *mergeLeaf) Compare(c llrb.Comparable) int {
	o := c.(*mergeLeaf)
	if v := compareInts(l.refID, o.refID); v != 0 {
		return v
	}
	if v := compareInts(l.start, o.start); v != 0 {
		return v
	}
	if v := compareInts(l.end, o.end); v != 0 {
		return v
	}
	if v := compareInts(l.input, o.input); v != 0 {
		return v
	}
	return strings.Compare(l.rec.Name, o.rec.Name)
}

// Merger merges coordinate-sorted inputs into one stream.  Records are
// rewritten to refer to the unified references of the HeaderSet.  It holds one
// pending record per input in an llrb tree, so each record costs O(log N) for N
// open inputs.
type Merger struct {
	hs    *HeaderSet
	opts  MergeOpts
	iters []bamprovider.Iterator
	stats []InputStats
	// Last (reference, position) read from each input.
	lastRef, lastPos []int

	leaves  llrb.Tree
	top     *mergeLeaf
	started bool
	err     error
}

// NewMerger creates a merger over iters.  iters[i] must yield the records of
// the input described by hs.Paths[i].
func NewMerger(hs *HeaderSet, iters []bamprovider.Iterator, opts MergeOpts) *Merger {
	m := &Merger{
		hs:      hs,
		opts:    opts,
		iters:   iters,
		stats:   make([]InputStats, len(iters)),
		lastRef: make([]int, len(iters)),
		lastPos: make([]int, len(iters)),
	}
	for i := range m.lastRef {
		m.lastRef[i] = -1
		m.lastPos[i] = math.MinInt32
	}
	return m
}

// keep reports whether r passes the filters.
func (m *Merger) keep(r *sam.Record) bool {
	if gbam.IsUnmapped(r) || r.Ref == nil {
		return m.opts.KeepUnmapped
	}
	if m.opts.DropSecondary && gbam.IsSecondary(r) {
		return false
	}
	if m.opts.DropSupplementary && gbam.IsSupplementary(r) {
		return false
	}
	if int(r.MapQ) < m.opts.MinMapQ {
		return false
	}
	if m.opts.MaxMapQ > 0 && int(r.MapQ) > m.opts.MaxMapQ {
		return false
	}
	if m.opts.MaxNH > 0 {
		if nh, ok := gbam.IntTag(r, tagNH); ok && nh > m.opts.MaxNH {
			return false
		}
	}
	if m.opts.Regions != nil {
		end := r.End()
		if end <= r.Start() {
			end = r.Start() + 1
		}
		if !m.opts.Regions.Intersects(r.Ref.ID(), interval.PosType(r.Start()), interval.PosType(end)) {
			return false
		}
	}
	return true
}

// pull reads the next record of input i that passes the filters into leaf.
// It returns false when the input is exhausted or fails.
func (m *Merger) pull(leaf *mergeLeaf) bool {
	i := leaf.input
	iter := m.iters[i]
	for iter.Scan() {
		r := iter.Record()
		m.stats[i].Records++
		if r.Ref != nil {
			r.Ref = m.hs.Ref(i, r.Ref.ID())
		}
		if r.MateRef != nil {
			r.MateRef = m.hs.Ref(i, r.MateRef.ID())
		}
		ref := refID(r)
		if ref < m.lastRef[i] || (ref == m.lastRef[i] && r.Pos < m.lastPos[i]) {
			m.err = &UnsortedInputError{
				Path: m.hs.Paths[i], Name: r.Name,
				PrevRef: m.lastRef[i], PrevPos: m.lastPos[i], Ref: ref, Pos: r.Pos,
			}
			return false
		}
		m.lastRef[i], m.lastPos[i] = ref, r.Pos
		if !m.keep(r) {
			m.stats[i].Filtered++
			continue
		}
		// Unknown operations would give a wrong End and a wrong grouping key.
		if err := gbam.CheckCigar(r); err != nil {
			m.err = err
			return false
		}
		leaf.rec = r
		leaf.refID = ref
		leaf.start = r.Start()
		leaf.end = r.End()
		return true
	}
	if err := iter.Err(); err != nil {
		m.err = err
	}
	log.Debug.Printf("%s: %d records read, %d filtered", m.hs.Paths[i], m.stats[i].Records, m.stats[i].Filtered)
	return false
}

// Scan advances to the next record in merge order.  It returns false at the
// end of all inputs or on error.
func (m *Merger) Scan() bool {
	if m.err != nil {
		return false
	}
	if !m.started {
		m.started = true
		for i := range m.iters {
			leaf := &mergeLeaf{input: i}
			if m.pull(leaf) {
				m.leaves.Insert(leaf)
			} else if m.err != nil {
				return false
			}
		}
	} else if m.top != nil {
		if m.pull(m.top) {
			m.leaves.Insert(m.top)
		} else if m.err != nil {
			m.top = nil
			return false
		}
	}
	m.top = nil
	if m.leaves.Len() == 0 {
		return false
	}
	m.top = m.leaves.Min().(*mergeLeaf)
	m.leaves.DeleteMin()
	return true
}

// Record returns the current record.  Valid after Scan returns true.
func (m *Merger) Record() *sam.Record { return m.top.rec }

// Input returns the index of the input that produced the current record.
func (m *Merger) Input() int { return m.top.input }

// Err returns the first error encountered.
func (m *Merger) Err() error { return m.err }

// Stats returns per-input record counts.
func (m *Merger) Stats() []InputStats { return m.stats }
