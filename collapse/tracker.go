package collapse

import (
	"fmt"

	gbam "github.com/grailbio/tiebrush/encoding/bam"
	"github.com/grailbio/tiebrush/interval"
)

// strandList is the interval union of one (sample, strand) pair, plus the
// distance cached for the most recent start.
type strandList struct {
	union     interval.Union
	lastStart int
	lastDist  int
	used      bool
}

func (l *strandList) reset() {
	l.union.Reset()
	l.used = false
}

func (l *strandList) process(start int, exons []gbam.Exon) (int, error) {
	if l.used && start < l.lastStart {
		return 0, &InvariantViolation{Msg: fmt.Sprintf("bundle distance queried at %d after %d", start, l.lastStart)}
	}
	if !l.used || start != l.lastStart {
		pos := interval.PosType(start)
		l.union.DiscardBefore(pos)
		l.lastDist = 0
		if s, _, ok := l.union.First(); ok && s <= pos {
			l.lastDist = int(pos - s)
		}
		l.lastStart = start
		l.used = true
	}
	for _, e := range exons {
		l.union.Insert(interval.PosType(e.Start), interval.PosType(e.End))
	}
	return l.lastDist, nil
}

// BundleTracker computes bundle distances: for a record of a given sample and
// strand, the distance from the record start back to the start of the run of
// contiguous coverage, formed by that sample's earlier records, that the
// record extends.  Records must be presented in nondecreasing start order
// within a reference; call Reset when the reference changes.
type BundleTracker struct {
	// lists[2*sample] is the forward strand, lists[2*sample+1] the reverse.
	lists []strandList
}

// NewBundleTracker creates a tracker for nSamples samples.
func NewBundleTracker(nSamples int) *BundleTracker {
	return &BundleTracker{lists: make([]strandList, 2*nSamples)}
}

// Reset clears every interval list.
func (t *BundleTracker) Reset() {
	for i := range t.lists {
		t.lists[i].reset()
	}
}

// Process returns the bundle distance of a record with the given sample,
// strand ('+', '-' or '.'), start and exons, and then adds the exons to the
// sample's coverage.  An unstranded record belongs to both strands and gets
// the larger of the two distances.
func (t *BundleTracker) Process(sample int, strand byte, start int, exons []gbam.Exon) (int, error) {
	switch strand {
	case '+':
		return t.lists[2*sample].process(start, exons)
	case '-':
		return t.lists[2*sample+1].process(start, exons)
	}
	fwd, err := t.lists[2*sample].process(start, exons)
	if err != nil {
		return 0, err
	}
	rev, err := t.lists[2*sample+1].process(start, exons)
	if err != nil {
		return 0, err
	}
	if rev > fwd {
		return rev, nil
	}
	return fwd, nil
}
