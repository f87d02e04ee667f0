package bam

import (
	"testing"

	"github.com/grailbio/hts/sam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagPredicates(t *testing.T) {
	predicates := []struct {
		name string
		fn   func(*sam.Record) bool
		flag sam.Flags
	}{
		{"IsPaired", IsPaired, sam.Paired},
		{"IsProperPair", IsProperPair, sam.ProperPair},
		{"IsUnmapped", IsUnmapped, sam.Unmapped},
		{"IsMateUnmapped", IsMateUnmapped, sam.MateUnmapped},
		{"IsReverse", IsReverse, sam.Reverse},
		{"IsMateReverse", IsMateReverse, sam.MateReverse},
		{"IsRead1", IsRead1, sam.Read1},
		{"IsRead2", IsRead2, sam.Read2},
		{"IsSecondary", IsSecondary, sam.Secondary},
		{"IsQCFail", IsQCFail, sam.QCFail},
		{"IsDuplicate", IsDuplicate, sam.Duplicate},
		{"IsSupplementary", IsSupplementary, sam.Supplementary},
	}
	r := &sam.Record{Name: "a", Pos: 0, MatePos: -1}
	// Each predicate is true for its own bit and false for all the others.
	for _, p := range predicates {
		for _, q := range predicates {
			r.Flags = q.flag
			assert.Equal(t, p.flag == q.flag, p.fn(r), "%s with flags %v", p.name, q.flag)
		}
	}
}

func TestPairOrder(t *testing.T) {
	r := &sam.Record{Name: "a"}
	assert.Equal(t, Unpaired, GetPairOrder(r))
	r.Flags = sam.Paired | sam.Read1
	assert.Equal(t, FirstOfPair, GetPairOrder(r))
	r.Flags = sam.Paired | sam.Read2 | sam.Reverse
	assert.Equal(t, SecondOfPair, GetPairOrder(r))
}

func TestIntTags(t *testing.T) {
	tagYC := sam.NewTag("YC")
	r := &sam.Record{Name: "a"}
	_, ok := IntTag(r, tagYC)
	assert.False(t, ok)

	for _, v := range []int{1, 200, 40000, 1 << 30} {
		require.NoError(t, SetIntTag(r, tagYC, v))
		got, ok := IntTag(r, tagYC)
		assert.True(t, ok)
		assert.Equal(t, v, got)
		assert.Len(t, r.AuxFields, 1)
	}
	ClearTag(r, tagYC)
	assert.Len(t, r.AuxFields, 0)

	md, err := sam.NewAux(sam.NewTag("MD"), "10A5")
	require.NoError(t, err)
	r.AuxFields = append(r.AuxFields, md)
	s, ok := StringTag(r, sam.NewTag("MD"))
	assert.True(t, ok)
	assert.Equal(t, "10A5", s)
	_, ok = IntTag(r, sam.NewTag("MD"))
	assert.False(t, ok)
}
