package collapse

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil/expect"
	gbam "github.com/grailbio/tiebrush/encoding/bam"
	"github.com/grailbio/tiebrush/encoding/bamprovider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mergeInput struct {
	header *sam.Header
	recs   []*sam.Record
}

func newMerger(t *testing.T, inputs []mergeInput, opts MergeOpts) (*Merger, *HeaderSet) {
	paths := make([]string, len(inputs))
	headers := make([]*sam.Header, len(inputs))
	iters := make([]bamprovider.Iterator, len(inputs))
	for i, in := range inputs {
		paths[i] = fmt.Sprintf("input%d", i)
		headers[i] = in.header
		iters[i] = bamprovider.NewFakeProvider(in.header, in.recs).NewIterator()
	}
	hs, err := ReconcileHeaders(paths, headers, ReconcileOpts{})
	require.NoError(t, err)
	return NewMerger(hs, iters, opts), hs
}

// randomInput returns n sorted records over chr1 and chr2.
func randomInput(t *testing.T, rnd *rand.Rand, input, n int) mergeInput {
	h := newHeader(t, chr1, chr2)
	recs := make([]*sam.Record, n)
	for i := range recs {
		ref := h.Refs()[rnd.Intn(2)]
		recs[i] = newRecord(fmt.Sprintf("in%d.r%d", input, i), ref, rnd.Intn(1000), 0, cigar(t, fmt.Sprintf("%dM", 1+rnd.Intn(100))))
	}
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Ref.ID() != recs[j].Ref.ID() {
			return recs[i].Ref.ID() < recs[j].Ref.ID()
		}
		return recs[i].Pos < recs[j].Pos
	})
	return mergeInput{header: h, recs: recs}
}

func TestMergerOrder(t *testing.T) {
	for _, nInputs := range []int{1, 2, 8} {
		rnd := rand.New(rand.NewSource(int64(nInputs)))
		inputs := make([]mergeInput, nInputs)
		total := 0
		for i := range inputs {
			inputs[i] = randomInput(t, rnd, i, 50+rnd.Intn(200))
			total += len(inputs[i].recs)
		}
		m, hs := newMerger(t, inputs, MergeOpts{})
		var (
			n                int
			lastRef, lastPos = -1, -1
			next             = make([]int, nInputs)
		)
		for m.Scan() {
			r := m.Record()
			in := m.Input()
			ref := r.Ref.ID()
			require.True(t, ref > lastRef || (ref == lastRef && r.Pos >= lastPos),
				"%d inputs: %s at %d:%d after %d:%d", nInputs, r.Name, ref, r.Pos, lastRef, lastPos)
			lastRef, lastPos = ref, r.Pos
			// Records of one input come out in input order.
			require.Equal(t, inputs[in].recs[next[in]].Name, r.Name)
			expect.True(t, r.Ref == hs.Header.Refs()[ref])
			next[in]++
			n++
		}
		require.NoError(t, m.Err())
		expect.EQ(t, n, total)
		for i, s := range m.Stats() {
			expect.EQ(t, s.Records, int64(len(inputs[i].recs)))
			expect.EQ(t, s.Filtered, int64(0))
			expect.EQ(t, next[i], len(inputs[i].recs))
		}
	}
}

func mergedNames(t *testing.T, m *Merger) []string {
	var names []string
	for m.Scan() {
		names = append(names, m.Record().Name)
	}
	require.NoError(t, m.Err())
	return names
}

func TestMergerTieBreak(t *testing.T) {
	h := newHeader(t, chr1)
	ref := h.Refs()[0]
	// rec returns a record covering [start, end) of chr1.
	rec := func(name string, start, end int) *sam.Record {
		return newRecord(name, ref, start, 0, cigar(t, fmt.Sprintf("%dM", end-start)))
	}
	for _, test := range []struct {
		inputs [][]*sam.Record
		want   []string
	}{
		{
			[][]*sam.Record{{rec("z", 10, 30), rec("y", 10, 15)}, {rec("a", 10, 20)}, {rec("b", 10, 30)}},
			[]string{"a", "z", "y", "b"},
		},
		{
			[][]*sam.Record{{rec("p", 5, 50)}, {rec("q", 5, 10), rec("r", 7, 9)}, {rec("s", 5, 10)}},
			[]string{"q", "s", "p", "r"},
		},
		// Equal (start, end) comes out in input order, whatever the names.
		{
			[][]*sam.Record{{rec("c", 10, 20)}, {rec("b", 10, 20)}, {rec("a", 10, 20)}},
			[]string{"c", "b", "a"},
		},
		{
			[][]*sam.Record{{rec("x", 10, 20), rec("w", 10, 20)}, {rec("v", 10, 20)}},
			[]string{"x", "w", "v"},
		},
	} {
		inputs := make([]mergeInput, len(test.inputs))
		for i, recs := range test.inputs {
			inputs[i] = mergeInput{header: h, recs: recs}
		}
		m, _ := newMerger(t, inputs, MergeOpts{})
		assert.Equal(t, test.want, mergedNames(t, m))
	}

	// Records with distinct (start, end) come out in (start, end) order however
	// they are spread over the inputs.
	all := []*sam.Record{
		rec("s0", 10, 11), rec("s1", 10, 13), rec("s2", 10, 20), rec("s3", 10, 60),
		rec("s4", 12, 14), rec("s5", 12, 50), rec("s6", 15, 16), rec("s7", 15, 30),
		rec("s8", 15, 31), rec("s9", 40, 41),
	}
	var want []string
	for _, r := range all {
		want = append(want, r.Name)
	}
	for _, nInputs := range []int{1, 2, 8} {
		inputs := make([]mergeInput, nInputs)
		for i := range inputs {
			inputs[i].header = h
		}
		for j, r := range all {
			inputs[j%nInputs].recs = append(inputs[j%nInputs].recs, r)
		}
		m, _ := newMerger(t, inputs, MergeOpts{})
		assert.Equal(t, want, mergedNames(t, m), "%d inputs", nInputs)
	}
}

func TestMergerUnknownCigarOp(t *testing.T) {
	h := newHeader(t, chr1)
	ref := h.Refs()[0]
	bad := newRecord("bad", ref, 20, 0, cigar(t, "10M"))
	bad.Cigar = append(bad.Cigar, sam.NewCigarOp(sam.CigarBack, 2))
	m, _ := newMerger(t, []mergeInput{{h, []*sam.Record{
		newRecord("ok", ref, 10, 0, cigar(t, "10M")),
		bad,
		newRecord("after", ref, 30, 0, cigar(t, "10M")),
	}}}, MergeOpts{})
	var got []string
	for m.Scan() {
		got = append(got, m.Record().Name)
	}
	assert.Equal(t, []string{"ok"}, got)
	e, ok := m.Err().(*gbam.UnknownOperationError)
	require.True(t, ok, "got %v", m.Err())
	expect.EQ(t, e.Name, "bad")
}

func TestMergerTranslatesReferences(t *testing.T) {
	a := newHeader(t, chr2)
	b := newHeader(t, chr1, chr2)
	m, hs := newMerger(t, []mergeInput{
		{a, []*sam.Record{newRecord("a0", a.Refs()[0], 10, 0, cigar(t, "10M"))}},
		{b, []*sam.Record{
			newRecord("b0", b.Refs()[0], 50, 0, cigar(t, "10M")),
			newRecord("b1", b.Refs()[1], 5, 0, cigar(t, "10M")),
		}},
	}, MergeOpts{})
	assert.Equal(t, []string{"chr1", "chr2"}, refNames(hs.Header))
	var got []string
	for m.Scan() {
		got = append(got, fmt.Sprintf("%s:%s:%d", m.Record().Name, m.Record().Ref.Name(), m.Record().Ref.ID()))
	}
	require.NoError(t, m.Err())
	assert.Equal(t, []string{"b0:chr1:0", "b1:chr2:1", "a0:chr2:1"}, got)
}

func TestMergerUnsorted(t *testing.T) {
	h := newHeader(t, chr1)
	m, _ := newMerger(t, []mergeInput{{h, []*sam.Record{
		newRecord("r0", h.Refs()[0], 200, 0, cigar(t, "10M")),
		newRecord("r1", h.Refs()[0], 100, 0, cigar(t, "10M")),
	}}}, MergeOpts{})
	for m.Scan() {
	}
	e, ok := m.Err().(*UnsortedInputError)
	require.True(t, ok, "got %v", m.Err())
	expect.EQ(t, e.Name, "r1")
	expect.EQ(t, e.PrevPos, 200)
	expect.EQ(t, e.Pos, 100)
}

func TestMergerFilters(t *testing.T) {
	h := newHeader(t, chr1)
	ref := h.Refs()[0]
	lowQ := newRecord("lowq", ref, 10, 0, cigar(t, "10M"))
	lowQ.MapQ = 3
	recs := []*sam.Record{
		newRecord("keep", ref, 5, 0, cigar(t, "10M")),
		lowQ,
		newRecord("multi", ref, 20, 0, cigar(t, "10M"), newAux("NH", 12)),
		newRecord("nh-ok", ref, 30, 0, cigar(t, "10M"), newAux("NH", 2)),
		newRecord("secondary", ref, 40, sam.Secondary, cigar(t, "10M")),
		newRecord("supplementary", ref, 50, sam.Supplementary, cigar(t, "10M")),
		unmapped("unmapped"),
	}
	tests := []struct {
		opts MergeOpts
		want []string
	}{
		{MergeOpts{}, []string{"keep", "lowq", "multi", "nh-ok", "secondary", "supplementary"}},
		{MergeOpts{KeepUnmapped: true}, []string{"keep", "lowq", "multi", "nh-ok", "secondary", "supplementary", "unmapped"}},
		{MergeOpts{MinMapQ: 10, MaxNH: 10}, []string{"keep", "nh-ok", "secondary", "supplementary"}},
		{MergeOpts{MaxMapQ: 5}, []string{"lowq"}},
		{MergeOpts{DropSecondary: true, DropSupplementary: true}, []string{"keep", "lowq", "multi", "nh-ok"}},
	}
	for _, test := range tests {
		m, _ := newMerger(t, []mergeInput{{h, recs}}, test.opts)
		var got []string
		for m.Scan() {
			got = append(got, m.Record().Name)
		}
		require.NoError(t, m.Err())
		assert.Equal(t, test.want, got, "opts %+v", test.opts)
		expect.EQ(t, m.Stats()[0].Records, int64(len(recs)))
		expect.EQ(t, m.Stats()[0].Filtered, int64(len(recs)-len(test.want)))
	}
}
