package interval

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	gunsafe "github.com/grailbio/base/unsafe"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hts/sam"
	"github.com/klauspost/compress/gzip"
)

// getTokens identifies up to the first len(tokens) tokens from curLine,
// returning the number of tokens saved.  Any (group of) characters <= ' ' is
// treated as a delimiter.
func getTokens(tokens [][]byte, curLine []byte) int {
	posEnd := 0
	lineLen := len(curLine)
	for tokenIdx := range tokens {
		pos := posEnd
		for ; pos != lineLen; pos++ {
			if curLine[pos] > ' ' {
				break
			}
		}
		if pos == lineLen {
			return tokenIdx
		}
		posEnd = pos
		for ; posEnd != lineLen; posEnd++ {
			if curLine[posEnd] <= ' ' {
				break
			}
		}
		tokens[tokenIdx] = curLine[pos:posEnd]
	}
	return len(tokens)
}

// NewBEDOpts defines behavior of this package's BED-loading function(s).
type NewBEDOpts struct {
	// SAMHeader enables ID-based lookup.
	SAMHeader *sam.Header
}

// BEDUnion is a static set of genomic regions loaded from a BED file.  Each
// contig maps to a sorted endpoint slice: the start of interval #k is in
// element [2k] and the end in element [2k+1].
type BEDUnion struct {
	// nameMap is a chromosome-keyed map with disjoint-interval-set values.
	nameMap map[string][]PosType
	// idMap is indexed by sam.Header reference ID.  It is only initialized if
	// NewBEDOpts.SAMHeader was set.
	idMap [][]PosType

	lastRefID     int
	lastIntervals []PosType
	lastPosPlus1  PosType
	lastIdx       int
}

// Intersects checks whether [start, limit) on the given reference intersects
// the interval set.  It panics unless start < limit.  Queries whose start is
// nondecreasing within a reference are answered by forward search from the
// previous one.
func (u *BEDUnion) Intersects(refID int, start, limit PosType) bool {
	if limit <= start {
		panic(fmt.Sprintf("BEDUnion.Intersects: empty range [%d, %d)", start, limit))
	}
	posPlus1 := start + 1
	if refID != u.lastRefID || posPlus1 < u.lastPosPlus1 {
		u.lastRefID = refID
		u.lastIntervals = nil
		if refID >= 0 && refID < len(u.idMap) {
			u.lastIntervals = u.idMap[refID]
		}
		u.lastIdx = SearchPosTypes(u.lastIntervals, posPlus1)
	} else {
		u.lastIdx = ExpsearchPosType(u.lastIntervals, posPlus1, u.lastIdx)
	}
	u.lastPosPlus1 = posPlus1
	idx := u.lastIdx
	if idx&1 == 1 {
		return true
	}
	return idx != len(u.lastIntervals) && limit > u.lastIntervals[idx]
}

func (u *BEDUnion) nameToIDData(header *sam.Header) {
	refs := header.Refs()
	u.idMap = make([][]PosType, len(refs))
	for refID, ref := range refs {
		u.idMap[refID] = u.nameMap[ref.Name()]
	}
}

func scanBEDUnion(scanner *bufio.Scanner) (bedUnion BEDUnion, err error) {
	bedUnion.nameMap = make(map[string][]PosType)
	bedUnion.lastRefID = -1

	var tokens [3][]byte

	lineIdx := 0
	prevChr := ""
	totBases := 0
	var chrIntervals []PosType
	saveChr := func() {
		if prevChr != "" {
			bedUnion.nameMap[prevChr] = chrIntervals
		}
	}
	for scanner.Scan() {
		lineIdx++
		curLine := scanner.Bytes()
		if len(curLine) > 0 && curLine[0] == '#' {
			continue
		}
		nToken := getTokens(tokens[:], curLine)
		if nToken == 0 {
			continue
		}
		if tok := gunsafe.BytesToString(tokens[0]); tok == "track" || tok == "browser" {
			continue
		}
		if nToken != 3 {
			err = fmt.Errorf("interval.scanBEDUnion: line %d has fewer tokens than expected", lineIdx)
			return
		}
		var parsedStart, parsedEnd int
		if parsedStart, err = strconv.Atoi(gunsafe.BytesToString(tokens[1])); err != nil {
			return
		}
		if parsedStart < 0 {
			err = fmt.Errorf("interval.scanBEDUnion: negative start coordinate %s on line %d", tokens[1], lineIdx)
			return
		}
		if parsedEnd, err = strconv.Atoi(gunsafe.BytesToString(tokens[2])); err != nil {
			return
		}
		if parsedEnd < parsedStart || parsedEnd >= PosTypeMax {
			err = fmt.Errorf("interval.scanBEDUnion: invalid coordinate pair on line %d", lineIdx)
			return
		}
		start, end := PosType(parsedStart), PosType(parsedEnd)
		if prevChr != gunsafe.BytesToString(tokens[0]) {
			saveChr()
			// Copy: tokens[0] aliases the scanner buffer.
			prevChr = string(tokens[0])
			if _, found := bedUnion.nameMap[prevChr]; found {
				err = fmt.Errorf("interval.scanBEDUnion: unsorted input (split chromosome %s)", prevChr)
				return
			}
			chrIntervals = []PosType{}
		}
		if end == start {
			continue
		}
		n := len(chrIntervals)
		switch {
		case n == 0 || start > chrIntervals[n-1]:
			chrIntervals = append(chrIntervals, start, end)
			totBases += int(end - start)
		case start < chrIntervals[n-2]:
			err = fmt.Errorf("interval.scanBEDUnion: unsorted input on line %d", lineIdx)
			return
		case end > chrIntervals[n-1]:
			totBases += int(end - chrIntervals[n-1])
			chrIntervals[n-1] = end
		}
	}
	if err = scanner.Err(); err != nil {
		return
	}
	saveChr()
	log.Debug.Printf("BED loaded, %d base(s) covered", totBases)
	return
}

// NewBEDUnion loads the intervals from a sorted (by chromosome, then start)
// BED, merging touching or overlapping intervals and dropping empty ones.
func NewBEDUnion(reader io.Reader, opts NewBEDOpts) (bedUnion BEDUnion, err error) {
	scanner := bufio.NewScanner(reader)
	if bedUnion, err = scanBEDUnion(scanner); err != nil {
		return
	}
	if opts.SAMHeader != nil {
		bedUnion.nameToIDData(opts.SAMHeader)
	}
	return
}

// NewBEDUnionFromPath is a wrapper for NewBEDUnion that takes a path instead
// of an io.Reader.  Gzipped files are decompressed.
func NewBEDUnionFromPath(path string, opts NewBEDOpts) (bedUnion BEDUnion, err error) {
	ctx := vcontext.Background()
	var infile file.File
	if infile, err = file.Open(ctx, path); err != nil {
		return
	}
	defer file.CloseAndReport(ctx, infile, &err)
	reader := io.Reader(infile.Reader(ctx))
	if fileio.DetermineType(path) == fileio.Gzip {
		if reader, err = gzip.NewReader(reader); err != nil {
			err = errors.E(err, "reading", path)
			return
		}
	}
	if bedUnion, err = NewBEDUnion(reader, opts); err != nil {
		err = errors.E(err, path)
	}
	return
}
