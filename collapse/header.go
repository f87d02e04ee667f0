package collapse

import (
	"fmt"
	"strings"

	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/sam"
)

// ProgramID is the @PG ID written to collapsed output.  Inputs whose history
// carries it are treated as pre-merged.
const ProgramID = "tiebrush"

// Version is recorded in the @PG VN field.
const Version = "1.0"

// ReconcileOpts controls ReconcileHeaders.
type ReconcileOpts struct {
	// BestEffort accepts inputs whose header does not declare a sort order.
	BestEffort bool
	// CommandLine is recorded in the @PG CL field of the output header.
	CommandLine string
}

// HeaderSet is the reconciled view of N input headers.  Input i's local
// reference j maps to unified reference translate[i][j].
type HeaderSet struct {
	// Header is the output header.  Its references form the unified
	// reference space.
	Header *sam.Header
	// Paths of the inputs, for error messages.
	Paths []string
	// PreMerged[i] is true if input i is itself collapsed output.
	PreMerged []bool

	translate [][]int
}

// NumInputs returns the number of reconciled inputs.
func (hs *HeaderSet) NumInputs() int { return len(hs.translate) }

// Ref returns the unified reference for the local reference id of the given
// input.  It returns nil for unmapped (id -1).
func (hs *HeaderSet) Ref(input, localID int) *sam.Reference {
	if localID < 0 {
		return nil
	}
	t := hs.translate[input]
	if localID >= len(t) {
		return nil
	}
	return hs.Header.Refs()[t[localID]]
}

// isPreMerged reports whether the header's program history includes a
// collapsing run.
func isPreMerged(h *sam.Header) bool {
	for _, p := range h.Progs() {
		if p.UID() == ProgramID || strings.HasPrefix(p.UID(), ProgramID+".") || p.Name() == ProgramID {
			return true
		}
	}
	return false
}

// ReconcileHeaders validates the sort order of every input and merges their
// reference lists.  The input with the most references seeds the unified list;
// references missing from it are appended in input order.  A reference must
// have one length across inputs, and every input must list the references it
// shares with the unified list in the same relative order.
func ReconcileHeaders(paths []string, headers []*sam.Header, opts ReconcileOpts) (*HeaderSet, error) {
	if len(paths) != len(headers) {
		panic(fmt.Sprintf("ReconcileHeaders: %d paths, %d headers", len(paths), len(headers)))
	}
	if len(headers) == 0 {
		return nil, fmt.Errorf("collapse: no inputs")
	}
	for i, h := range headers {
		switch h.SortOrder {
		case sam.Coordinate:
		case sam.UnknownOrder:
			if !opts.BestEffort {
				return nil, &SortOrderError{Path: paths[i], Order: h.SortOrder}
			}
			log.Printf("%s: no sort order declared, assuming coordinate order", paths[i])
		default:
			return nil, &SortOrderError{Path: paths[i], Order: h.SortOrder}
		}
	}

	seed := 0
	for i, h := range headers {
		if len(h.Refs()) > len(headers[seed].Refs()) {
			seed = i
		}
	}
	type unifiedRef struct {
		name   string
		length int
	}
	var unified []unifiedRef
	ids := map[string]int{}
	for _, ref := range headers[seed].Refs() {
		ids[ref.Name()] = len(unified)
		unified = append(unified, unifiedRef{ref.Name(), ref.Len()})
	}

	hs := &HeaderSet{
		Paths:     paths,
		PreMerged: make([]bool, len(headers)),
		translate: make([][]int, len(headers)),
	}
	for i, h := range headers {
		refs := h.Refs()
		t := make([]int, len(refs))
		for j, ref := range refs {
			id, ok := ids[ref.Name()]
			if !ok {
				id = len(unified)
				ids[ref.Name()] = id
				unified = append(unified, unifiedRef{ref.Name(), ref.Len()})
				log.Debug.Printf("%s: reference %s added to the unified header", paths[i], ref.Name())
			} else if unified[id].length != ref.Len() {
				return nil, &ReferenceMismatchError{Path: paths[i], Ref: ref.Name(), Len: ref.Len(), PrevLen: unified[id].length}
			}
			if j > 0 && id <= t[j-1] {
				return nil, &ReferenceMismatchError{Path: paths[i], Ref: ref.Name(), Order: true}
			}
			t[j] = id
		}
		hs.translate[i] = t
		hs.PreMerged[i] = isPreMerged(h)
		if hs.PreMerged[i] {
			log.Debug.Printf("%s: input is collapsed output, absorbing its YC/YX/YD tags", paths[i])
		}
	}

	refs := make([]*sam.Reference, len(unified))
	for i, u := range unified {
		ref, err := sam.NewReference(u.name, "", "", u.length, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("collapse: reference %s: %v", u.name, err)
		}
		refs[i] = ref
	}
	out, err := sam.NewHeader(nil, refs)
	if err != nil {
		return nil, err
	}
	out.Version = "1.6"
	out.SortOrder = sam.Coordinate
	if err := copyHistory(out, headers, opts.CommandLine); err != nil {
		return nil, err
	}
	hs.Header = out
	return hs, nil
}

// copyHistory adds the read groups of every input, the program history of the
// first input, and a @PG line for this run to out.
func copyHistory(out *sam.Header, headers []*sam.Header, commandLine string) error {
	seenRG := map[string]bool{}
	for _, h := range headers {
		for _, rg := range h.RGs() {
			if seenRG[rg.Name()] {
				continue
			}
			seenRG[rg.Name()] = true
			if err := out.AddReadGroup(rg.Clone()); err != nil {
				return fmt.Errorf("collapse: read group %s: %v", rg.Name(), err)
			}
		}
	}
	seenPG := map[string]bool{}
	prev := ""
	for _, p := range headers[0].Progs() {
		if err := out.AddProgram(p.Clone()); err != nil {
			return fmt.Errorf("collapse: program %s: %v", p.UID(), err)
		}
		seenPG[p.UID()] = true
		prev = p.UID()
	}
	uid := ProgramID
	for n := 1; seenPG[uid]; n++ {
		uid = fmt.Sprintf("%s.%d", ProgramID, n)
	}
	return out.AddProgram(sam.NewProgram(uid, ProgramID, commandLine, prev, Version))
}
