// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package dd

import "log"

// Mark-sweep collection, adapted from rudd/gc.go's gbc/markrec/unmarkall
// and refstack push/pop protection. Roots are every node with a nonzero
// refcount, the two projection-diagram arcs of every known variable, and
// whatever is currently pushed on the refstack to protect the partial
// results of an in-flight recursive apply/ite (spec.md §4.4's "garbage
// collection must not reclaim a node reachable from a protected root").

// pushRef protects arc for the duration of a recursive operation; callers
// must pair every push with a matching popRef on every return path.
func (m *Manager) pushRef(a Arc) {
	m.refstack = append(m.refstack, a)
}

func (m *Manager) popRef() {
	m.refstack = m.refstack[:len(m.refstack)-1]
}

// gcLocked runs mark-sweep under the assumption the caller already holds
// tableMu. It marks everything reachable from a refcounted root, a
// protected refstack entry, or a variable projection diagram, tombstones
// everything else, flushes the operation cache (stale indices would
// otherwise alias new nodes once the slot is reused), and updates gcstat.
func (m *Manager) gcLocked() {
	if _LOGLEVEL > 0 {
		log.Println("starting GC")
	}
	t := m.table
	for i := range t.slots {
		t.slots[i].setMarked(false)
	}
	for i := 2; i < len(t.slots); i++ {
		n := &t.slots[i]
		if n.isTombstone() {
			continue
		}
		if n.refcount() > 0 {
			m.markrec(NodeArc(uint32(i), false))
		}
	}
	for _, a := range m.refstack {
		m.markrec(a)
	}
	for _, a := range m.varProjBDD {
		m.markrec(a)
	}
	for _, a := range m.varProjZDD {
		m.markrec(a)
	}

	freed := 0
	for i := 2; i < len(t.slots); i++ {
		n := &t.slots[i]
		empty := n.arc0 == 0 && n.arc1 == 0 && n.meta == 0
		if n.isTombstone() || empty {
			continue
		}
		if !n.marked() {
			t.tombstone(uint64(i))
			freed++
		}
	}
	m.gcstat.collections++
	m.gcstat.freed += freed
	if _LOGLEVEL > 0 {
		log.Printf("GC reclaimed %d nodes, %d live\n", freed, t.live)
	}

	m.cacheMu.Lock()
	m.cache.clear()
	m.cacheMu.Unlock()
}

// markrec marks a's node and recurses into both children. The mark bit
// lives on the node rather than the arc, so a negated and non-negated arc
// to the same node mark the same slot exactly once.
func (m *Manager) markrec(a Arc) {
	if a.IsConstant() || a.IsPlaceholder() {
		return
	}
	n := &m.table.slots[a.Index()]
	if n.marked() {
		return
	}
	n.setMarked(true)
	m.markrec(n.arc0)
	m.markrec(n.arc1)
}
