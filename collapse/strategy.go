package collapse

import (
	"fmt"
	"math"
	"strings"

	"github.com/grailbio/hts/sam"
	gbam "github.com/grailbio/tiebrush/encoding/bam"
)

// Strategy selects when two alignments at the same position are duplicates.
type Strategy int

const (
	// Full requires equal end, strand, cigar and MD string.
	Full Strategy = iota
	// Cigar requires equal end, strand and cigar.
	Cigar
	// Clip requires equal end, strand, and cigar after stripping the soft clips
	// at both ends.
	Clip
	// Exon requires equal end, strand and exon boundaries.
	Exon
)

var strategyNames = []string{"full", "cigar", "clip", "exon"}

func (s Strategy) String() string {
	if s < 0 || int(s) >= len(strategyNames) {
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
	return strategyNames[s]
}

// ParseStrategy parses a strategy name, case insensitively.
func ParseStrategy(name string) (Strategy, error) {
	for i, n := range strategyNames {
		if strings.EqualFold(name, n) {
			return Strategy(i), nil
		}
	}
	return Full, fmt.Errorf("unknown strategy %q, must be one of %s", name, strings.Join(strategyNames, ", "))
}

// Alignment caches the parts of a record that the strategies compare.
type Alignment struct {
	Rec    *sam.Record
	RefID  int
	Start  int
	End    int
	Strand byte
	Exons  []gbam.Exon

	md      string
	hasMD   bool
	clipped sam.Cigar
}

var tagMD = sam.NewTag("MD")

// Reset fills a from r.  The exon slice is reused.
func (a *Alignment) Reset(r *sam.Record) error {
	var err error
	a.Rec = r
	a.RefID = refID(r)
	a.Start = r.Start()
	a.End = r.End()
	a.Strand = gbam.SpliceStrand(r)
	if a.Exons, err = gbam.Exons(r, a.Exons[:0]); err != nil {
		return err
	}
	a.md, a.hasMD = gbam.StringTag(r, tagMD)
	a.clipped = gbam.StripSoftClips(r.Cigar)
	return nil
}

// refID returns the reference id of r, with unmapped records sorting last.
func refID(r *sam.Record) int {
	if r.Ref == nil {
		return math.MaxInt32
	}
	return r.Ref.ID()
}

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareCigars(a, b sam.Cigar) int {
	if c := compareInts(len(a), len(b)); c != 0 {
		return c
	}
	for i := range a {
		if a[i] != b[i] {
			if uint32(a[i]) < uint32(b[i]) {
				return -1
			}
			return 1
		}
	}
	return 0
}

func compareExons(a, b []gbam.Exon) int {
	if c := compareInts(len(a), len(b)); c != 0 {
		return c
	}
	for i := range a {
		if c := compareInts(a[i].Start, b[i].Start); c != 0 {
			return c
		}
		if c := compareInts(a[i].End, b[i].End); c != 0 {
			return c
		}
	}
	return 0
}

// compareMD orders a missing MD before any present one.
func compareMD(a, b *Alignment) int {
	if a.hasMD != b.hasMD {
		if !a.hasMD {
			return -1
		}
		return 1
	}
	return strings.Compare(a.md, b.md)
}

// Compare orders two alignments by reference, start, strand, end, the flags
// selected by mask, and then the strategy-specific shape.  It returns 0 iff
// the alignments are duplicates under s.
func (s Strategy) Compare(a, b *Alignment, mask sam.Flags) int {
	if c := compareInts(a.RefID, b.RefID); c != 0 {
		return c
	}
	if c := compareInts(a.Start, b.Start); c != 0 {
		return c
	}
	if c := compareInts(int(a.Strand), int(b.Strand)); c != 0 {
		return c
	}
	if c := compareInts(a.End, b.End); c != 0 {
		return c
	}
	if c := compareInts(int(a.Rec.Flags&mask), int(b.Rec.Flags&mask)); c != 0 {
		return c
	}
	switch s {
	case Full:
		if c := compareCigars(a.Rec.Cigar, b.Rec.Cigar); c != 0 {
			return c
		}
		return compareMD(a, b)
	case Cigar:
		return compareCigars(a.Rec.Cigar, b.Rec.Cigar)
	case Clip:
		return compareCigars(a.clipped, b.clipped)
	case Exon:
		return compareExons(a.Exons, b.Exons)
	}
	panic(fmt.Sprintf("collapse: unknown strategy %d", int(s)))
}
