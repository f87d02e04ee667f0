package interval

// Union is a mutable interval-union over one contig.  Intervals are half-open,
// kept sorted, and maximally merged: no two intervals overlap or abut.
//
// The intervals live in a flat endpoint slice.  Intervals discarded from the
// front are dropped by advancing head, and the slice is compacted once the dead
// prefix dominates, so a Union that is swept left to right uses memory
// proportional to its live span.
type Union struct {
	endpoints []PosType
	head      int
}

// Len returns the number of intervals in the union.
func (u *Union) Len() int {
	return (len(u.endpoints) - u.head) / 2
}

// Reset removes every interval.
func (u *Union) Reset() {
	u.endpoints = u.endpoints[:0]
	u.head = 0
}

// Endpoints returns the live endpoints, {start0, end0, start1, end1, ...}.  The
// result is valid until the next mutation.
func (u *Union) Endpoints() []PosType {
	return u.endpoints[u.head:]
}

// First returns the first interval.  ok is false if the union is empty.
func (u *Union) First() (start, end PosType, ok bool) {
	if u.head == len(u.endpoints) {
		return 0, 0, false
	}
	return u.endpoints[u.head], u.endpoints[u.head+1], true
}

// DiscardBefore drops every interval whose end is < pos.  An interval ending
// exactly at pos is kept, since it abuts pos.
func (u *Union) DiscardBefore(pos PosType) {
	live := u.endpoints[u.head:]
	// Odd indices hold ends; find the first interval with end >= pos.
	n := len(live) / 2
	lo, hi := 0, n
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if live[2*mid+1] >= pos {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	u.head += 2 * lo
	if u.head == len(u.endpoints) {
		u.Reset()
	}
}

// Insert adds [start, end) to the union, merging it with every interval it
// touches or overlaps.  Empty intervals are ignored.
func (u *Union) Insert(start, end PosType) {
	if end <= start {
		return
	}
	live := u.endpoints[u.head:]
	n := len(live) / 2
	// i: first interval whose end >= start (touching counts as overlap).
	lo, hi := 0, n
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if live[2*mid+1] >= start {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	i := lo
	// j: first interval whose start > end.
	lo, hi = i, n
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if live[2*mid] > end {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	j := lo
	if i == j {
		u.insertAt(u.head+2*i, start, end)
		return
	}
	if live[2*i] < start {
		start = live[2*i]
	}
	if live[2*j-1] > end {
		end = live[2*j-1]
	}
	live[2*i] = start
	live[2*i+1] = end
	if j > i+1 {
		// Intervals i+1..j-1 were absorbed.
		removed := 2 * (j - i - 1)
		tail := u.head + 2*(i+1)
		copy(u.endpoints[tail:], u.endpoints[tail+removed:])
		u.endpoints = u.endpoints[:len(u.endpoints)-removed]
	}
}

func (u *Union) insertAt(idx int, start, end PosType) {
	if u.head >= 2 && idx == u.head {
		// Reuse the dead prefix.
		u.head -= 2
		u.endpoints[u.head] = start
		u.endpoints[u.head+1] = end
		return
	}
	if u.head > 0 && u.head >= len(u.endpoints)-u.head {
		n := copy(u.endpoints, u.endpoints[u.head:])
		idx -= u.head
		u.endpoints = u.endpoints[:n]
		u.head = 0
	}
	u.endpoints = append(u.endpoints, 0, 0)
	copy(u.endpoints[idx+2:], u.endpoints[idx:])
	u.endpoints[idx] = start
	u.endpoints[idx+1] = end
}
