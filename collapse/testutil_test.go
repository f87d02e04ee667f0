package collapse

import (
	"fmt"
	"io"
	"os"
	"testing"

	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	gbam "github.com/grailbio/tiebrush/encoding/bam"
	"github.com/stretchr/testify/require"
)

var (
	chr1, _ = sam.NewReference("chr1", "", "", 100000, nil, nil)
	chr2, _ = sam.NewReference("chr2", "", "", 50000, nil, nil)
)

// newHeader returns a coordinate-sorted header over fresh copies of refs.
func newHeader(t *testing.T, refs ...*sam.Reference) *sam.Header {
	var copies []*sam.Reference
	for _, r := range refs {
		c, err := sam.NewReference(r.Name(), "", "", r.Len(), nil, nil)
		require.NoError(t, err)
		copies = append(copies, c)
	}
	h, err := sam.NewHeader(nil, copies)
	require.NoError(t, err)
	h.Version = "1.6"
	h.SortOrder = sam.Coordinate
	return h
}

func cigar(t *testing.T, s string) sam.Cigar {
	c, err := sam.ParseCigar([]byte(s))
	require.NoError(t, err)
	return c
}

func newAux(name string, val interface{}) sam.Aux {
	aux, err := sam.NewAux(sam.NewTag(name), val)
	if err != nil {
		panic(fmt.Sprintf("error creating %s %v tag: %v", name, val, err))
	}
	return aux
}

func newRecord(name string, ref *sam.Reference, pos int, flags sam.Flags, c sam.Cigar, aux ...sam.Aux) *sam.Record {
	r := sam.GetFromFreePool()
	r.Name = name
	r.Ref = ref
	r.Pos = pos
	r.MapQ = 60
	r.MateRef = nil
	r.MatePos = -1
	r.Flags = flags
	r.Cigar = c
	r.Seq = sam.Seq{}
	r.Qual = nil
	r.AuxFields = append(sam.AuxFields(nil), aux...)
	return r
}

// unmapped returns an unplaced unmapped record.
func unmapped(name string) *sam.Record {
	r := newRecord(name, nil, -1, sam.Unmapped, nil)
	r.MapQ = 0
	return r
}

func writeBAM(t *testing.T, path string, h *sam.Header, recs []*sam.Record) {
	out, err := os.Create(path)
	require.NoError(t, err)
	w, err := bam.NewWriter(out, h, 1)
	require.NoError(t, err)
	for _, r := range recs {
		require.NoError(t, w.Write(r))
	}
	require.NoError(t, w.Close())
	require.NoError(t, out.Close())
}

func readBAM(t *testing.T, path string) (*sam.Header, []*sam.Record) {
	in, err := os.Open(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, in.Close()) }()
	r, err := bam.NewReader(in, 1)
	require.NoError(t, err)
	var recs []*sam.Record
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		recs = append(recs, rec)
	}
	require.NoError(t, r.Close())
	return r.Header(), recs
}

// tagValue returns the integer value of tag, or 0 when absent.
func tagValue(r *sam.Record, tag string) int {
	v, _ := gbam.IntTag(r, sam.NewTag(tag))
	return v
}

func hasTag(r *sam.Record, tag string) bool {
	return r.AuxFields.Get(sam.NewTag(tag)) != nil
}
