package circular

import (
	"math/bits"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/simd"
	bi "github.com/grailbio/tiebrush/interval"
)

// BitsPerWord is the number of columns held by one row word.
const BitsPerWord = simd.BitsPerWord

// FirstPosEmpty is returned by FirstPos for an empty Bitmap.  It is larger than
// any position.
const FirstPosEmpty = bi.PosTypeMax

// Bitmap maps positions to fixed-width rows of bits; typically bit j of the row
// at pos means "input j covers pos".  Rows live in a power-of-two ring indexed
// by pos&(NCirc()-1), which doubles whenever the span between the first and
// last nonempty rows would not fit.
type Bitmap struct {
	// words holds ring slot i in words[i*width:(i+1)*width].
	words []uintptr
	// nonzero[i] is the number of nonzero words in ring slot i.  A nonempty
	// row is then a nonzero byte, which simd can search for.
	nonzero []byte
	// lo and hi are the first and last nonempty positions, or FirstPosEmpty
	// and -1.
	lo, hi bi.PosType
	width  bi.PosType
}

// RowWidthForColumns returns the number of words needed for nCol columns.
func RowWidthForColumns(nCol int) bi.PosType {
	return bi.PosType((nCol + BitsPerWord - 1) / BitsPerWord)
}

// NewBitmap creates an empty Bitmap with nCirc ring slots of rowWidth words.
// nCirc must be a power of two and rowWidth at most 255.
func NewBitmap(nCirc, rowWidth bi.PosType) (b Bitmap) {
	if rowWidth > 255 {
		log.Panicf("circular.NewBitmap: rowWidth %d > 255", rowWidth)
	}
	if nCirc <= 0 || nCirc&(nCirc-1) != 0 {
		log.Panicf("circular.NewBitmap: nCirc %d is not a power of two", nCirc)
	}
	b.words, b.nonzero = allocRing(nCirc, rowWidth)
	b.lo, b.hi = FirstPosEmpty, -1
	b.width = rowWidth
	return
}

func allocRing(nCirc, rowWidth bi.PosType) ([]uintptr, []byte) {
	// simd.FirstGreater8Unsafe may read a full vector past the slice end.
	c := nCirc
	if v := bi.PosType(simd.BytesPerVec()); c < v {
		c = v
	}
	return make([]uintptr, nCirc*rowWidth), make([]byte, nCirc, c)
}

// NCirc returns the number of ring slots.
func (b *Bitmap) NCirc() bi.PosType { return bi.PosType(len(b.nonzero)) }

// FirstPos returns the first nonempty position, or FirstPosEmpty.
func (b *Bitmap) FirstPos() bi.PosType { return b.lo }

// Row returns the words of ring slot circPos.
func (b *Bitmap) Row(circPos bi.PosType) []uintptr {
	off := circPos * b.width
	return b.words[off : off+b.width]
}

func (b *Bitmap) grow(span bi.PosType) {
	nCirc := bi.PosType(NextExp2(int(span) - 1))
	words, nonzero := allocRing(nCirc, b.width)
	oldMask, newMask := b.NCirc()-1, nCirc-1
	for pos := b.lo; pos <= b.hi; pos++ {
		from, to := pos&oldMask, pos&newMask
		nonzero[to] = b.nonzero[from]
		copy(words[to*b.width:(to+1)*b.width], b.Row(from))
	}
	log.Debug.Printf("circular.Bitmap: %d -> %d slots", b.NCirc(), nCirc)
	b.words, b.nonzero = words, nonzero
}

// Set sets column col of the row at pos.  Setting a set bit is a no-op.
func (b *Bitmap) Set(pos bi.PosType, col uint32) {
	if b.lo != FirstPosEmpty {
		lo, hi := b.lo, b.hi
		if pos < lo {
			lo = pos
		} else if pos > hi {
			hi = pos
		}
		if span := hi - lo + 1; span > b.NCirc() {
			b.grow(span)
		}
	}
	slot := pos & (b.NCirc() - 1)
	row := b.Row(slot)
	w := col / BitsPerWord
	if row[w] == 0 {
		b.nonzero[slot]++
	}
	row[w] |= uintptr(1) << (col % BitsPerWord)
	if pos < b.lo {
		b.lo = pos
	}
	if pos > b.hi {
		b.hi = pos
	}
}

// nextNonempty returns the first nonempty position in [pos, stop), or stop.
// stop-pos must not exceed NCirc().
func (b *Bitmap) nextNonempty(pos, stop bi.PosType) bi.PosType {
	n := len(b.nonzero)
	mask := n - 1
	base := int(pos) &^ mask
	from, to := int(pos)&mask, int(stop)&mask
	if to < from {
		// The range wraps: search to the end of the ring first.
		if i := simd.FirstGreater8Unsafe(b.nonzero, 0, from); i != n {
			return bi.PosType(base + i)
		}
		from = 0
		base += n
	}
	return bi.PosType(base + simd.FirstGreater8Unsafe(b.nonzero[:to], 0, from))
}

// PopFirstRow clears the first nonempty row and returns its position and
// number of set bits.  It panics if the bitmap is empty.
func (b *Bitmap) PopFirstRow() (bi.PosType, int) {
	pos := b.lo
	if pos == FirstPosEmpty {
		log.Panicf("circular.Bitmap.PopFirstRow: empty bitmap")
	}
	slot := pos & (b.NCirc() - 1)
	if pos < b.hi {
		b.lo = b.nextNonempty(pos+1, b.hi)
	} else {
		b.lo, b.hi = FirstPosEmpty, -1
	}
	b.nonzero[slot] = 0
	count := 0
	row := b.Row(slot)
	for i, w := range row {
		count += bits.OnesCount64(uint64(w))
		row[i] = 0
	}
	return pos, count
}

// FlushBefore pops the nonempty rows before limit in position order, passing
// each to fn.
func (b *Bitmap) FlushBefore(limit bi.PosType, fn func(pos bi.PosType, count int)) {
	for b.lo < limit {
		fn(b.PopFirstRow())
	}
}

// CheckPanic panics, mentioning tag, if the bookkeeping of b is inconsistent:
// lo and hi must be both empty or bound a nonempty span that fits the ring,
// and every nonzero count must match its row.
func (b *Bitmap) CheckPanic(tag string) {
	mask := b.NCirc() - 1
	switch {
	case b.hi == -1 && b.lo != FirstPosEmpty:
		log.Panicf("%s: lo=%d with empty hi", tag, b.lo)
	case b.hi != -1 && (b.lo > b.hi || b.hi-b.lo > mask):
		log.Panicf("%s: lo=%d hi=%d span exceeds %d slots", tag, b.lo, b.hi, mask+1)
	case b.hi != -1 && (b.nonzero[b.lo&mask] == 0 || b.nonzero[b.hi&mask] == 0):
		log.Panicf("%s: lo=%d or hi=%d row is empty", tag, b.lo, b.hi)
	}
	for slot := bi.PosType(0); slot <= mask; slot++ {
		n := 0
		for _, w := range b.Row(slot) {
			if w != 0 {
				n++
			}
		}
		if byte(n) != b.nonzero[slot] {
			log.Panicf("%s: slot %d has %d nonzero words, count says %d", tag, slot, n, b.nonzero[slot])
		}
	}
}
