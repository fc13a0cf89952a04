// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package dd

// uniqueTable is the open-addressed, quadratic-probed hash table that
// enforces invariant I1 (spec.md §4.2): at most one non-tombstone node for a
// given (variable, arc0, arc1). It is adapted from the contract of rudd's
// makenode/gbc/noderesize trio (bkernel.go, hkernel.go) but, per spec.md
// §4.2, uses real open addressing with tombstones rather than rudd's hash
// chaining or Go-map unique table.
//
// Slot 0 and slot 1 are reserved and never written: find and insert skip
// both indices, and they count toward live/used from construction on, so
// no node ever gets index 0 or 1.
type uniqueTable struct {
	slots []node
	mask  uint64 // len(slots)-1, len(slots) is always a power of two
	live  int    // non-tombstone, non-empty slots
	used  int    // live + tombstone slots (what load factor is measured against)
}

const uniqueTableMinSize = 1 << 10

func newUniqueTable(sizeHint int) *uniqueTable {
	size := uniqueTableMinSize
	for size < sizeHint {
		size <<= 1
	}
	t := &uniqueTable{
		slots: make([]node, size),
		mask:  uint64(size - 1),
	}
	// reserve slots 0 and 1
	t.slots[0].setTombstone(false)
	t.slots[1].setTombstone(false)
	t.live = 2
	t.used = 2
	return t
}

func (t *uniqueTable) size() int { return len(t.slots) }

// isEmptySlot reports whether a slot has never been occupied: a slot that is
// not a tombstone and whose arc0/arc1/meta are all zero. Reserved slots 0/1
// stay all-zero and would pass this test; find/insert below never ask,
// because they skip every probe index < 2 explicitly.
func (t *uniqueTable) isEmptySlot(idx uint64) bool {
	n := &t.slots[idx]
	return !n.isTombstone() && n.arc0 == 0 && n.arc1 == 0 && n.meta == 0
}

// find walks the quadratic probe sequence h+i^2 (mod size) for (v, a0, a1).
// It returns the index of a live matching node (hit), or (0, false) once it
// hits an empty slot or has scanned the whole table (miss), per the "Unique
// Table" contract in spec.md §4.2.
func (t *uniqueTable) find(v uint32, a0, a1 Arc) (uint64, bool) {
	size := uint64(len(t.slots))
	h := nodeHash(v, a0, a1) & t.mask
	for i := uint64(0); i < size; i++ {
		idx := (h + i*i) & t.mask
		if idx < 2 {
			continue
		}
		n := &t.slots[idx]
		if n.isTombstone() {
			continue
		}
		if t.isEmptySlot(idx) {
			return 0, false
		}
		if n.variable() == v && n.arc0 == a0 && n.arc1 == a1 {
			return idx, true
		}
	}
	return 0, false
}

// insert must only be called right after a miss on the same key (the
// contract table.go promises in spec.md §4.2). It re-walks the probe
// sequence, reusing the first tombstone seen, or otherwise the first empty
// slot, and materializes the node there.
func (t *uniqueTable) insert(v uint32, a0, a1 Arc) (uint64, error) {
	size := uint64(len(t.slots))
	h := nodeHash(v, a0, a1) & t.mask
	firstTombstone := uint64(size) // sentinel meaning "none seen"
	for i := uint64(0); i < size; i++ {
		idx := (h + i*i) & t.mask
		if idx < 2 {
			continue
		}
		n := &t.slots[idx]
		if n.isTombstone() {
			if firstTombstone == size {
				firstTombstone = idx
			}
			continue
		}
		if t.isEmptySlot(idx) {
			target := idx
			if firstTombstone != size {
				target = firstTombstone
				t.used-- // tombstone slot is being reused, not newly used
			}
			t.setSlot(target, v, a0, a1)
			return target, nil
		}
	}
	return 0, ErrOutOfMemory
}

// setSlot materializes a fresh node at idx with refcount 0: internal apply
// recursion protects it transiently via the Manager's refstack (gc.go), and
// only an explicit Manager.Ref call (mirroring rudd's AddRef) bumps the
// refcount that keeps a node alive across GC passes once the caller is done
// building and wants to hold onto the result.
func (t *uniqueTable) setSlot(idx uint64, v uint32, a0, a1 Arc) {
	n := &t.slots[idx]
	*n = node{arc0: a0, arc1: a1}
	n.setVariable(v)
	t.live++
	t.used++
}

func (t *uniqueTable) loadFactor() float64 {
	return float64(t.used) / float64(len(t.slots))
}

// tombstone marks slot idx dead: it stays occupied (skipped on future finds
// via isTombstone, continued-past on probes) but contributes nothing further
// to live/I6. Only resize or a fresh insert ever reclaims it.
func (t *uniqueTable) tombstone(idx uint64) {
	n := &t.slots[idx]
	if n.isTombstone() {
		return
	}
	*n = node{}
	n.setTombstone(true)
	t.live--
}

// resize rehashes every live node into a fresh table of the given size and
// drops the old backing array, per spec.md §4.2's "Resize" paragraph.
// Refcounts are copied verbatim; the caller is responsible for flushing the
// operation cache afterwards since indices change.
func (t *uniqueTable) resize(newSize int) {
	old := t.slots
	t.slots = make([]node, newSize)
	t.mask = uint64(newSize - 1)
	t.live = 2
	t.used = 2
	for i := 2; i < len(old); i++ {
		n := &old[i]
		if n.isTombstone() || (n.arc0 == 0 && n.arc1 == 0 && n.meta == 0) {
			continue
		}
		idx, err := t.insert(n.variable(), n.arc0, n.arc1)
		if err != nil {
			// a fresh, larger table failing to host what the old one held
			// would mean our resize math is wrong; this is a programmer
			// error, not a runtime condition callers can recover from.
			panic("dd: resize failed to re-insert live node")
		}
		*(&t.slots[idx]) = node{arc0: n.arc0, arc1: n.arc1, meta: n.meta}
	}
}
