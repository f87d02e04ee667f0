package collapse

import (
	"fmt"

	"github.com/grailbio/hts/sam"
)

// SortOrderError reports an input whose header does not declare coordinate
// order.
type SortOrderError struct {
	Path  string
	Order sam.SortOrder
}

func (e *SortOrderError) Error() string {
	return fmt.Sprintf("%s: input must be coordinate sorted, header declares SO:%v", e.Path, e.Order)
}

// ReferenceMismatchError reports reference sequences that cannot be reconciled
// across inputs.
type ReferenceMismatchError struct {
	Path string
	Ref  string
	// Len and PrevLen are set for length conflicts.
	Len, PrevLen int
	// Order is set when the input lists shared references in a different
	// relative order, or places a new reference before a shared one.
	Order bool
}

func (e *ReferenceMismatchError) Error() string {
	if e.Order {
		return fmt.Sprintf("%s: reference %s breaks the reference order of earlier inputs; "+
			"references missing from earlier inputs are appended after theirs, so every input "+
			"must list the shared references in the same order, with new ones only after the last shared one",
			e.Path, e.Ref)
	}
	return fmt.Sprintf("%s: reference %s has length %d, but %d in earlier inputs", e.Path, e.Ref, e.Len, e.PrevLen)
}

// UnsortedInputError reports a record whose position precedes the previous
// record read from the same input.
type UnsortedInputError struct {
	Path string
	Name string
	// Positions as (unified reference id, 0-based position).
	PrevRef, PrevPos int
	Ref, Pos         int
}

func (e *UnsortedInputError) Error() string {
	return fmt.Sprintf("%s: record %s at %d:%d follows %d:%d; input is not sorted",
		e.Path, e.Name, e.Ref, e.Pos, e.PrevRef, e.PrevPos)
}

// InvariantViolation reports misuse of the grouping or bundle-tracking state
// machines.  It indicates a bug in the caller, not bad input.
type InvariantViolation struct {
	Msg string
}

func (e *InvariantViolation) Error() string {
	return "collapse: invariant violation: " + e.Msg
}
