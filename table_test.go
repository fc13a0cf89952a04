// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package dd

import "testing"

func TestUniqueTableInsertFind(t *testing.T) {
	tb := newUniqueTable(0)
	idx, err := tb.insert(1, FalseArc, TrueArc)
	if err != nil {
		t.Fatal(err)
	}
	if got, ok := tb.find(1, FalseArc, TrueArc); !ok || got != idx {
		t.Errorf("find after insert: got (%d,%v), want (%d,true)", got, ok, idx)
	}
	if _, ok := tb.find(2, FalseArc, TrueArc); ok {
		t.Error("find should miss for a key never inserted")
	}
}

func TestUniqueTableFindResolvesInsertedKey(t *testing.T) {
	tb := newUniqueTable(0)
	idx, err := tb.insert(3, FalseArc, TrueArc)
	if err != nil {
		t.Fatal(err)
	}
	// The table does not reject a second insert of the same key at this
	// layer (callers are expected to find-before-insert); this checks that
	// find resolves the key to the slot insert chose for it.
	got, ok := tb.find(3, FalseArc, TrueArc)
	if !ok || got != idx {
		t.Errorf("find: got (%d,%v), want (%d,true)", got, ok, idx)
	}
}

func TestUniqueTableTombstoneReuse(t *testing.T) {
	tb := newUniqueTable(0)
	idx, err := tb.insert(5, FalseArc, TrueArc)
	if err != nil {
		t.Fatal(err)
	}
	liveBefore := tb.live
	usedBefore := tb.used

	tb.tombstone(idx)
	if tb.live != liveBefore-1 {
		t.Errorf("tombstone: live went from %d to %d, want %d", liveBefore, tb.live, liveBefore-1)
	}
	if tb.used != usedBefore {
		t.Errorf("tombstone: used should be unchanged, got %d want %d", tb.used, usedBefore)
	}
	if _, ok := tb.find(5, FalseArc, TrueArc); ok {
		t.Error("find should miss a tombstoned key")
	}

	// Reinsert under a different key; the tombstoned slot is a valid
	// candidate and used must not grow past usedBefore.
	newIdx, err := tb.insert(6, TrueArc, FalseArc)
	if err != nil {
		t.Fatal(err)
	}
	if tb.used > usedBefore {
		t.Errorf("reinsert after tombstone: used grew to %d, want <= %d", tb.used, usedBefore)
	}
	if got, ok := tb.find(6, TrueArc, FalseArc); !ok || got != newIdx {
		t.Errorf("find after reinsert: got (%d,%v), want (%d,true)", got, ok, newIdx)
	}
}

func TestUniqueTableResizePreservesLiveNodes(t *testing.T) {
	tb := newUniqueTable(0)
	type key struct {
		v      uint32
		a0, a1 Arc
	}
	keys := []key{
		{10, FalseArc, TrueArc},
		{11, TrueArc, FalseArc},
		{12, NodeArc(2, false), NodeArc(3, false)},
	}
	for _, k := range keys {
		if _, err := tb.insert(k.v, k.a0, k.a1); err != nil {
			t.Fatal(err)
		}
	}

	tb.resize(tb.size() * 2)

	for _, k := range keys {
		if _, ok := tb.find(k.v, k.a0, k.a1); !ok {
			t.Errorf("resize lost key %+v", k)
		}
	}
	if tb.live != 2+len(keys) {
		t.Errorf("resize: live = %d, want %d", tb.live, 2+len(keys))
	}
}

func TestUniqueTableLoadFactor(t *testing.T) {
	tb := newUniqueTable(0)
	want := float64(tb.used) / float64(tb.size())
	if got := tb.loadFactor(); got != want {
		t.Errorf("loadFactor: got %v, want %v", got, want)
	}
	if _, err := tb.insert(7, FalseArc, TrueArc); err != nil {
		t.Fatal(err)
	}
	want = float64(tb.used) / float64(tb.size())
	if got := tb.loadFactor(); got != want {
		t.Errorf("loadFactor after insert: got %v, want %v", got, want)
	}
}

func TestNodeRefcountSaturatesAndPins(t *testing.T) {
	var n node
	n.setVariable(4)
	for i := 0; i < int(_MAXREFCOUNT)+5; i++ {
		n.incRef()
	}
	if n.refcount() != _MAXREFCOUNT {
		t.Errorf("refcount should saturate at %d, got %d", _MAXREFCOUNT, n.refcount())
	}
	n.decRef()
	if n.refcount() != _MAXREFCOUNT {
		t.Error("decRef must be a no-op once saturated, matching a pinned node")
	}

	var m node
	m.pin()
	if m.refcount() != _MAXREFCOUNT {
		t.Errorf("pin: refcount = %d, want %d", m.refcount(), _MAXREFCOUNT)
	}
}

func TestNodeTombstoneAndMarkFlags(t *testing.T) {
	var n node
	n.setVariable(9)
	n.setTombstone(true)
	if !n.isTombstone() || n.variable() != 9 {
		t.Error("setTombstone must not disturb the variable field")
	}
	n.setMarked(true)
	if !n.marked() {
		t.Error("setMarked(true) should be observable via marked()")
	}
	n.setMarked(false)
	if n.marked() {
		t.Error("setMarked(false) should clear the mark bit")
	}
	n.setTombstone(false)
	if n.isTombstone() {
		t.Error("setTombstone(false) should clear the tombstone bit")
	}
}
