package interval

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hts/bgzf"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

const testBED = `# regions
track name=test
chr1	100	200
chr1	150	250
chr1	250	260
chr1	400	500
chr3	0	10
`

func TestLoadBEDUnion(t *testing.T) {
	u, err := NewBEDUnion(strings.NewReader(testBED), NewBEDOpts{})
	assert.NoError(t, err)
	expect.EQ(t, u.nameMap["chr1"], []PosType{100, 260, 400, 500})
	expect.EQ(t, u.nameMap["chr3"], []PosType{0, 10})
	expect.EQ(t, len(u.nameMap), 2)
	// Without a header no reference ID resolves.
	expect.False(t, u.Intersects(0, 150, 151))
}

func TestBEDUnionUnsorted(t *testing.T) {
	_, err := NewBEDUnion(strings.NewReader("chr1\t100\t200\nchr1\t50\t60\n"), NewBEDOpts{})
	expect.NotNil(t, err)
	_, err = NewBEDUnion(strings.NewReader("chr1\t100\t200\nchr2\t50\t60\nchr1\t300\t400\n"), NewBEDOpts{})
	expect.NotNil(t, err)
}

func TestBEDUnionByID(t *testing.T) {
	chr1, _ := sam.NewReference("chr1", "", "", 1000, nil, nil)
	chr2, _ := sam.NewReference("chr2", "", "", 1000, nil, nil)
	chr3, _ := sam.NewReference("chr3", "", "", 1000, nil, nil)
	header, err := sam.NewHeader(nil, []*sam.Reference{chr1, chr2, chr3})
	assert.NoError(t, err)

	u, err := NewBEDUnion(strings.NewReader(testBED), NewBEDOpts{SAMHeader: header})
	assert.NoError(t, err)
	// Single-base queries in the order the merger issues them, then out of
	// order, which restarts the search.
	for _, test := range []struct {
		refID int
		pos   PosType
		want  bool
	}{
		{0, 99, false}, {0, 100, true}, {0, 120, true}, {0, 259, true}, {0, 260, false},
		{0, 450, true}, {0, 500, false}, {0, 120, true}, {0, 99, false},
		{1, 5, false}, {2, 5, true}, {2, 10, false}, {-1, 0, false},
	} {
		expect.EQ(t, u.Intersects(test.refID, test.pos, test.pos+1), test.want, "%+v", test)
	}
	expect.True(t, u.Intersects(0, 50, 101))
	expect.False(t, u.Intersects(0, 50, 100))
	expect.True(t, u.Intersects(0, 259, 300))
	expect.False(t, u.Intersects(0, 260, 400))
	expect.True(t, u.Intersects(0, 260, 401))
	expect.False(t, u.Intersects(1, 0, 1000))
}

func TestExpsearchPosType(t *testing.T) {
	a := []PosType{100, 260, 400, 500, 700, 900}
	for x := PosType(0); x < 1000; x += 7 {
		want := SearchPosTypes(a, x)
		for idx := 0; idx <= want; idx++ {
			expect.EQ(t, ExpsearchPosType(a, x, idx), want, "x=%d idx=%d", x, idx)
		}
	}
}

func TestBEDUnionFromGzipPath(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := vcontext.Background()
	path := filepath.Join(tempDir, "regions.bed.gz")
	f, err := file.Create(ctx, path)
	assert.NoError(t, err)
	w := bgzf.NewWriter(f.Writer(ctx), 1)
	_, err = w.Write([]byte(testBED))
	assert.NoError(t, err)
	assert.NoError(t, w.Close())
	assert.NoError(t, f.Close(ctx))

	u, err := NewBEDUnionFromPath(path, NewBEDOpts{})
	assert.NoError(t, err)
	expect.EQ(t, u.nameMap["chr1"], []PosType{100, 260, 400, 500})
}
