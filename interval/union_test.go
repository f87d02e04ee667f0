package interval

import (
	"testing"

	"github.com/grailbio/testutil/expect"
)

func TestUnionInsert(t *testing.T) {
	var u Union
	u.Insert(100, 150)
	u.Insert(140, 200)
	u.Insert(300, 350)
	expect.EQ(t, u.Endpoints(), []PosType{100, 200, 300, 350})
	expect.EQ(t, u.Len(), 2)

	// Abutting intervals coalesce.
	u.Insert(200, 210)
	expect.EQ(t, u.Endpoints(), []PosType{100, 210, 300, 350})

	// Bridging two intervals merges them transitively.
	u.Insert(400, 450)
	u.Insert(205, 310)
	expect.EQ(t, u.Endpoints(), []PosType{100, 350, 400, 450})

	// Inserting in front and in the middle.
	u.Insert(10, 20)
	u.Insert(360, 370)
	expect.EQ(t, u.Endpoints(), []PosType{10, 20, 100, 350, 360, 370, 400, 450})

	// Contained interval is a no-op; empty interval is ignored.
	u.Insert(120, 130)
	u.Insert(500, 500)
	expect.EQ(t, u.Len(), 4)
}

func TestUnionDiscard(t *testing.T) {
	var u Union
	u.Insert(100, 200)
	u.Insert(300, 350)
	u.DiscardBefore(250)
	start, end, ok := u.First()
	expect.True(t, ok)
	expect.EQ(t, start, PosType(300))
	expect.EQ(t, end, PosType(350))

	// An interval ending at pos abuts it and is kept.
	u.DiscardBefore(350)
	expect.EQ(t, u.Len(), 1)
	u.DiscardBefore(351)
	expect.EQ(t, u.Len(), 0)
	_, _, ok = u.First()
	expect.False(t, ok)

	// Front insertions reuse the discarded prefix.
	u.Insert(1000, 1100)
	u.Insert(1200, 1300)
	u.DiscardBefore(1150)
	u.Insert(1150, 1160)
	expect.EQ(t, u.Endpoints(), []PosType{1150, 1160, 1200, 1300})
	u.Reset()
	expect.EQ(t, u.Len(), 0)
}

func TestUnionSweep(t *testing.T) {
	var u Union
	for i := PosType(0); i < 10000; i++ {
		u.DiscardBefore(i * 10)
		u.Insert(i*10, i*10+5)
		expect.EQ(t, u.Len(), 1)
	}
	expect.True(t, cap(u.endpoints) < 64)
}
