package collapse

import (
	"fmt"
	"math/bits"
	"sort"

	"blainsmith.com/go/seahash"
	"github.com/grailbio/base/bitset"
	gunsafe "github.com/grailbio/base/unsafe"
	"github.com/grailbio/hts/sam"
	gbam "github.com/grailbio/tiebrush/encoding/bam"
)

var (
	tagYC = sam.NewTag("YC")
	tagYX = sam.NewTag("YX")
	tagYD = sam.NewTag("YD")
	tagNH = sam.NewTag("NH")
)

// mateKey identifies a raw read within a group.  The name is hashed; two
// different names colliding within one group only cost one multiplicity
// count.
type mateKey struct {
	input int
	order gbam.PairOrder
	name  uint64
}

// group accumulates the duplicates of one alignment at one position.  The
// representative is the first record added.
type group struct {
	aln     Alignment
	settled bool

	// Totals absorbed from pre-merged inputs.
	accYC, accYX, maxYD int
	// Number of raw records folded in.
	dupCount int
	// raw has a bit set for each raw input that contributed a record.
	raw []uintptr
	// contrib has a bit set for every contributing input, raw or pre-merged.
	contrib []uintptr
	mates   map[mateKey]struct{}
}

func (gr *group) reset(nWords int) {
	gr.settled = false
	gr.accYC, gr.accYX, gr.maxYD, gr.dupCount = 0, 0, 0, 0
	if cap(gr.raw) < nWords {
		gr.raw = make([]uintptr, nWords)
		gr.contrib = make([]uintptr, nWords)
	} else {
		gr.raw = gr.raw[:nWords]
		gr.contrib = gr.contrib[:nWords]
		for i := range gr.raw {
			gr.raw[i] = 0
			gr.contrib[i] = 0
		}
	}
	for k := range gr.mates {
		delete(gr.mates, k)
	}
}

// settle makes r the representative and folds in its contribution.
func (gr *group) settle(r *sam.Record, input int, preMerged bool) {
	gr.settled = true
	gr.absorb(r, input, preMerged)
}

// merge folds a duplicate of the representative into the group.
func (gr *group) merge(r *sam.Record, input int, preMerged bool) error {
	if !gr.settled {
		return &InvariantViolation{Msg: fmt.Sprintf("record %s merged into a group that has no representative", r.Name)}
	}
	gr.absorb(r, input, preMerged)
	return nil
}

func (gr *group) absorb(r *sam.Record, input int, preMerged bool) {
	bitset.Set(gr.contrib, input)
	if preMerged {
		yc, ok := gbam.IntTag(r, tagYC)
		if !ok {
			yc = 1
		}
		yx, ok := gbam.IntTag(r, tagYX)
		if !ok {
			yx = 1
		}
		gr.accYC += yc
		gr.accYX += yx
		if yd, ok := gbam.IntTag(r, tagYD); ok && yd > gr.maxYD {
			gr.maxYD = yd
		}
		return
	}
	key := mateKey{input: input, order: gbam.GetPairOrder(r), name: seahash.Sum64(gunsafe.StringToBytes(r.Name))}
	if bitset.Test(gr.raw, input) {
		if _, dup := gr.mates[key]; dup {
			return
		}
	}
	if gr.mates == nil {
		gr.mates = make(map[mateKey]struct{})
	}
	gr.mates[key] = struct{}{}
	gr.dupCount++
	bitset.Set(gr.raw, input)
}

// yc returns the multiplicity of the group, saturated at max.
func (gr *group) yc(max int) int {
	n := gr.accYC + gr.dupCount
	if n > max || n < 0 {
		return max
	}
	return n
}

// yx returns the number of samples in the group.
func (gr *group) yx() int {
	n := gr.accYX
	for _, w := range gr.raw {
		n += bits.OnesCount64(uint64(w))
	}
	return n
}

// forEachContributor calls fn for each input that contributed to the group, in
// increasing order.
func (gr *group) forEachContributor(fn func(input int) error) error {
	for wi, w := range gr.contrib {
		for w != 0 {
			b := bits.TrailingZeros64(uint64(w))
			if err := fn(wi*bitset.BitsPerWord + b); err != nil {
				return err
			}
			w &= w - 1
		}
	}
	return nil
}

// grouper holds the groups formed at the current position, sorted by the
// strategy's order.
type grouper struct {
	strategy  Strategy
	flagMask  sam.Flags
	preMerged []bool
	nWords    int

	groups []*group
	free   []*group
	probe  Alignment
}

func newGrouper(strategy Strategy, flagMask sam.Flags, preMerged []bool) *grouper {
	return &grouper{
		strategy:  strategy,
		flagMask:  flagMask,
		preMerged: preMerged,
		nWords:    (len(preMerged) + bitset.BitsPerWord - 1) / bitset.BitsPerWord,
	}
}

// add classifies r against the groups at the current position.  The caller
// must flush before adding a record at a different position.
func (g *grouper) add(r *sam.Record, input int) error {
	if err := g.probe.Reset(r); err != nil {
		return err
	}
	i := sort.Search(len(g.groups), func(i int) bool {
		return g.strategy.Compare(&g.groups[i].aln, &g.probe, g.flagMask) >= 0
	})
	if i < len(g.groups) && g.strategy.Compare(&g.groups[i].aln, &g.probe, g.flagMask) == 0 {
		return g.groups[i].merge(r, input, g.preMerged[input])
	}
	gr := g.alloc()
	// Swap so the group keeps the filled Alignment and the probe reuses the
	// group's old exon buffer.
	gr.aln, g.probe = g.probe, gr.aln
	gr.settle(r, input, g.preMerged[input])
	g.groups = append(g.groups, nil)
	copy(g.groups[i+1:], g.groups[i:])
	g.groups[i] = gr
	return nil
}

func (g *grouper) alloc() *group {
	var gr *group
	if n := len(g.free); n > 0 {
		gr = g.free[n-1]
		g.free = g.free[:n-1]
	} else {
		gr = &group{}
	}
	gr.reset(g.nWords)
	return gr
}

// len returns the number of open groups.
func (g *grouper) len() int { return len(g.groups) }

// flush calls emit on every open group in order and then recycles them.
func (g *grouper) flush(emit func(gr *group) error) error {
	for _, gr := range g.groups {
		if err := emit(gr); err != nil {
			return err
		}
	}
	for i, gr := range g.groups {
		gr.aln.Rec = nil
		g.free = append(g.free, gr)
		g.groups[i] = nil
	}
	g.groups = g.groups[:0]
	return nil
}
