package collapse

import (
	"context"
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
)

// Metrics summarizes a collapsing run.
type Metrics struct {
	Paths []string
	// Inputs holds the record counts of each input.
	Inputs []InputStats
	// Output is the number of records written.
	Output int64
	// Unmapped is the number of unmapped records passed through.
	Unmapped int64
	// Groups is the number of collapsed records written, and MultiGroups the
	// number of those that stand for more than one read.
	Groups, MultiGroups int64
	// MaxYC is the largest multiplicity written.
	MaxYC int
}

func newMetrics(hs *HeaderSet) *Metrics {
	return &Metrics{
		Paths:  hs.Paths,
		Inputs: make([]InputStats, hs.NumInputs()),
	}
}

func (m *Metrics) addGroup(yc int) {
	m.Groups++
	if yc > 1 {
		m.MultiGroups++
	}
	if yc > m.MaxYC {
		m.MaxYC = yc
	}
}

func (m *Metrics) setInputStats(stats []InputStats) {
	copy(m.Inputs, stats)
}

// Kept returns the number of input records that passed the filters.
func (m *Metrics) Kept() int64 {
	var n int64
	for _, s := range m.Inputs {
		n += s.Records - s.Filtered
	}
	return n
}

func (m *Metrics) summary() string {
	ratio := 0.0
	if m.Output > 0 {
		ratio = float64(m.Kept()) / float64(m.Output)
	}
	return fmt.Sprintf("collapse: %d inputs, %d records kept, %d written (%.2fx reduction), %d groups of which %d multi-read, max YC %d, %d unmapped",
		len(m.Inputs), m.Kept(), m.Output, ratio, m.Groups, m.MultiGroups, m.MaxYC, m.Unmapped)
}

// writeMetrics writes one TSV line per input, followed by a total line.
func writeMetrics(ctx context.Context, path string, m *Metrics) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "creating metrics file", path)
	}
	defer file.CloseAndReport(ctx, out, &err)
	w := tsv.NewWriter(out.Writer(ctx))
	w.WriteString("#PATH\tRECORDS\tFILTERED\tKEPT")
	if err = w.EndLine(); err != nil {
		return errors.E(err, path)
	}
	for i, s := range m.Inputs {
		w.WriteString(m.Paths[i])
		w.WriteInt64(s.Records)
		w.WriteInt64(s.Filtered)
		w.WriteInt64(s.Records - s.Filtered)
		if err = w.EndLine(); err != nil {
			return errors.E(err, path)
		}
	}
	var total InputStats
	for _, s := range m.Inputs {
		total.Records += s.Records
		total.Filtered += s.Filtered
	}
	w.WriteString("TOTAL")
	w.WriteInt64(total.Records)
	w.WriteInt64(total.Filtered)
	w.WriteInt64(m.Kept())
	if err = w.EndLine(); err != nil {
		return errors.E(err, path)
	}
	w.WriteString("#OUTPUT\tGROUPS\tMULTI_GROUPS\tMAX_YC")
	if err = w.EndLine(); err != nil {
		return errors.E(err, path)
	}
	w.WriteInt64(m.Output)
	w.WriteInt64(m.Groups)
	w.WriteInt64(m.MultiGroups)
	w.WriteInt64(int64(m.MaxYC))
	if err = w.EndLine(); err != nil {
		return errors.E(err, path)
	}
	if err = w.Flush(); err != nil {
		return errors.E(err, path)
	}
	return nil
}
