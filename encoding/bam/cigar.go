package bam

import (
	"fmt"

	"github.com/grailbio/hts/sam"
)

// Exon is a maximal run of reference-consuming, non-skipping CIGAR
// operations, in 0-based half-open reference coordinates.
type Exon struct {
	Start, End int
}

// UnknownOperationError reports a CIGAR operation that cannot be mapped onto
// reference coordinates.
type UnknownOperationError struct {
	Name string
	Op   sam.CigarOp
}

func (e *UnknownOperationError) Error() string {
	return fmt.Sprintf("read %s: unknown cigar operation %v", e.Name, e.Op.Type())
}

// knownOp returns true for the operation types defined by the SAM spec, from
// M through X.
func knownOp(t sam.CigarOpType) bool {
	return t <= sam.CigarMismatch
}

// CheckCigar returns an UnknownOperationError for the first operation in the
// record's cigar that is not a SAM operation.
func CheckCigar(r *sam.Record) error {
	for _, op := range r.Cigar {
		if !knownOp(op.Type()) {
			return &UnknownOperationError{Name: r.Name, Op: op}
		}
	}
	return nil
}

// Exons appends the exons of r to dst and returns the result. Deletions stay
// inside an exon; reference skips (N) separate exons.
func Exons(r *sam.Record, dst []Exon) ([]Exon, error) {
	pos := r.Pos
	start := -1
	for _, op := range r.Cigar {
		t := op.Type()
		if !knownOp(t) {
			return dst, &UnknownOperationError{Name: r.Name, Op: op}
		}
		n := op.Len()
		switch t {
		case sam.CigarMatch, sam.CigarDeletion, sam.CigarEqual, sam.CigarMismatch:
			if start < 0 {
				start = pos
			}
			pos += n
		case sam.CigarSkipped:
			if start >= 0 {
				dst = append(dst, Exon{start, pos})
				start = -1
			}
			pos += n
		}
	}
	if start >= 0 {
		dst = append(dst, Exon{start, pos})
	}
	return dst, nil
}

// StripSoftClips returns the cigar with leading and trailing soft clips
// removed. Hard clips outside the soft clips are kept. The result shares
// storage with c.
func StripSoftClips(c sam.Cigar) sam.Cigar {
	lo, hi := 0, len(c)
	for lo < hi && c[lo].Type() == sam.CigarHardClipped {
		lo++
	}
	first := lo
	for lo < hi && c[lo].Type() == sam.CigarSoftClipped {
		lo++
	}
	for hi > lo && c[hi-1].Type() == sam.CigarHardClipped {
		hi--
	}
	last := hi
	for hi > lo && c[hi-1].Type() == sam.CigarSoftClipped {
		hi--
	}
	if first == lo && last == hi {
		return c
	}
	out := make(sam.Cigar, 0, len(c)-(lo-first)-(last-hi))
	out = append(out, c[:first]...)
	out = append(out, c[lo:hi]...)
	out = append(out, c[last:]...)
	return out
}

var (
	tagXS = sam.NewTag("XS")
	tagTS = sam.NewTag("ts")
)

// SpliceStrand returns the transcription strand of r: '+', '-' or '.'.
// The XS tag wins. Otherwise a minimap2 ts tag is used, flipped when the read
// itself is reverse complemented.
func SpliceStrand(r *sam.Record) byte {
	if s, ok := CharTag(r, tagXS); ok && (s == '+' || s == '-') {
		return s
	}
	if s, ok := CharTag(r, tagTS); ok && (s == '+' || s == '-') {
		if IsReverse(r) {
			if s == '+' {
				return '-'
			}
			return '+'
		}
		return s
	}
	return '.'
}
