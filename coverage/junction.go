package coverage

import (
	"github.com/biogo/store/llrb"
)

// Junction is a splice junction: the intron between two consecutive exons of
// spliced alignments, in 1-based inclusive coordinates.
type Junction struct {
	Ref        string
	Start, End int
	Strand     byte
	// ID is the sequence number of the junction in the run, starting at 1.
	ID      int
	Support int64
}

// junctionKey is the llrb element of a junctionTable.
type junctionKey struct {
	start, end int
	strand     byte
	support    int64
}

// Compare implements llrb.Comparable.
func (k *junctionKey) Compare(c llrb.Comparable) int {
	o := c.(*junctionKey)
	switch {
	case k.start != o.start:
		return k.start - o.start
	case k.end != o.end:
		return k.end - o.end
	}
	return int(k.strand) - int(o.strand)
}

// junctionTable accumulates the support of the junctions of one reference.
type junctionTable struct {
	tree  llrb.Tree
	probe junctionKey
}

// add adds weight to the support of (start, end, strand).
func (t *junctionTable) add(start, end int, strand byte, weight int64) {
	t.probe = junctionKey{start: start, end: end, strand: strand}
	if e := t.tree.Get(&t.probe); e != nil {
		e.(*junctionKey).support += weight
		return
	}
	t.tree.Insert(&junctionKey{start: start, end: end, strand: strand, support: weight})
}

func (t *junctionTable) len() int { return t.tree.Len() }

// flush calls fn on every junction in (start, end, strand) order and empties
// the table.
func (t *junctionTable) flush(fn func(k *junctionKey) error) error {
	var err error
	t.tree.Do(func(c llrb.Comparable) bool {
		err = fn(c.(*junctionKey))
		return err != nil
	})
	t.tree = llrb.Tree{}
	return err
}
