package interval

import (
	"math"
	"sort"
)

// Interval unions in this package are stored as a sorted []PosType of
// endpoints. Given the intervals
//   [5, 15)
//   [7, 17)
//   [20, 25)
// the union is
//   [5, 17) U [20, 25)
// and the endpoint sequence is
//   {5, 17, 20, 25}.
// SearchPosTypes(endpoints, pos+1) is odd iff pos is inside an interval.

// PosType is the type used to represent interval coordinates.  int32 is wide
// enough since that's what BAM is limited to.
type PosType int32

// PosTypeMax is the maximum value that can be represented by a PosType.
const PosTypeMax = math.MaxInt32

// SearchPosTypes returns the index of x in a[], or the position where x would
// be inserted if x isn't in a (this could be len(a)).  It's exactly the same
// as sort.SearchInts(), except for PosType.
func SearchPosTypes(a []PosType, x PosType) int {
	return sort.Search(len(a), func(i int) bool { return a[i] >= x })
}

// ExpsearchPosType performs exponential search starting at idx: it checks
// a[idx], then a[idx + 1], then a[idx + 3], etc., and finishes with binary
// search.  It is usually faster than SearchPosTypes when the queried positions
// are increasing.
func ExpsearchPosType(a []PosType, x PosType, idx int) int {
	nextIncr := 1
	startIdx := idx
	endIdx := len(a)
	for idx < endIdx {
		if a[idx] >= x {
			endIdx = idx
			break
		}
		startIdx = idx + 1
		idx += nextIncr
		nextIncr *= 2
	}
	for startIdx < endIdx {
		midIdx := int(uint(startIdx+endIdx) >> 1)
		if a[midIdx] >= x {
			endIdx = midIdx
		} else {
			startIdx = midIdx + 1
		}
	}
	return startIdx
}
