package coverage

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/expect"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

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

func readLines(t *testing.T, path string) []string {
	in, err := os.Open(path)
	require.NoError(t, err)
	defer in.Close() // nolint: errcheck
	var data []byte
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(in)
		require.NoError(t, err)
		data, err = ioutil.ReadAll(gz)
		require.NoError(t, err)
	} else {
		data, err = ioutil.ReadAll(in)
		require.NoError(t, err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestRun(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	ha := newHeader(t)
	a := filepath.Join(dir, "a.bam")
	writeBAM(t, a, ha, []*sam.Record{
		newRecord(t, ha.Refs()[0], 99, "51M49N51M", newAux("XS", sam.ASCII('+')), newAux("YC", 4)),
		newRecord(t, ha.Refs()[1], 10, "20M"),
	})
	hb := newHeader(t)
	b := filepath.Join(dir, "b.bam")
	writeBAM(t, b, hb, []*sam.Record{
		newRecord(t, hb.Refs()[0], 99, "51M49N51M", newAux("XS", sam.ASCII('+'))),
	})

	opts := RunOpts{
		Inputs:         []string{a, b},
		DepthOutput:    filepath.Join(dir, "depth.bedgraph"),
		JunctionOutput: filepath.Join(dir, "junctions.bed.gz"),
		HeatmapOutput:  filepath.Join(dir, "heat.bedgraph"),
	}
	require.NoError(t, Run(context.Background(), opts))

	assert.Equal(t, []string{
		"chr1\t99\t150\t5",
		"chr1\t199\t250\t5",
		"chr2\t10\t30\t1",
	}, readLines(t, opts.DepthOutput))
	assert.Equal(t, []string{
		"track name=junctions",
		"chr1\t150\t199\tJUNC00000001\t5\t+",
	}, readLines(t, opts.JunctionOutput))
	assert.Equal(t, []string{
		"chr1\t99\t150\t2",
		"chr1\t199\t250\t2",
		"chr2\t10\t30\t1",
	}, readLines(t, opts.HeatmapOutput))
}

func TestRunStdout(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	h := newHeader(t)
	in := filepath.Join(dir, "a.bam")
	writeBAM(t, in, h, []*sam.Record{
		newRecord(t, h.Refs()[0], 99, "51M49N51M", newAux("XS", sam.ASCII('+'))),
	})

	stdoutPath := filepath.Join(dir, "stdout.bedgraph")
	f, err := os.Create(stdoutPath)
	require.NoError(t, err)
	saved := os.Stdout
	os.Stdout = f
	defer func() { os.Stdout = saved }()

	ctx := context.Background()
	junctions := filepath.Join(dir, "junctions.bed")
	for _, opts := range []RunOpts{
		// No track named: depth goes to stdout.
		{Inputs: []string{in}},
		{Inputs: []string{in}, DepthOutput: "-", JunctionOutput: junctions},
	} {
		require.NoError(t, f.Truncate(0))
		_, err = f.Seek(0, 0)
		require.NoError(t, err)
		require.NoError(t, Run(ctx, opts), "%+v", opts)
		assert.Equal(t, []string{
			"chr1\t99\t150\t1",
			"chr1\t199\t250\t1",
		}, readLines(t, stdoutPath), "%+v", opts)
	}
	assert.Equal(t, []string{
		"track name=junctions",
		"chr1\t150\t199\tJUNC00000001\t1\t+",
	}, readLines(t, junctions))
	require.NoError(t, f.Close())

	err = Run(ctx, RunOpts{Inputs: []string{in}, DepthOutput: "-", HeatmapOutput: "-"})
	expect.NotNil(t, err)
}

func TestRunErrors(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()
	expect.NotNil(t, Run(ctx, RunOpts{DepthOutput: filepath.Join(dir, "d.bedgraph")}))
	expect.NotNil(t, Run(ctx, RunOpts{Inputs: []string{filepath.Join(dir, "x.bam")}}))
	expect.NotNil(t, Run(ctx, RunOpts{Inputs: []string{filepath.Join(dir, "missing.bam")}, DepthOutput: filepath.Join(dir, "d.bedgraph")}))
}
