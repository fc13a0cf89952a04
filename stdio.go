// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package dd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// stdio.go implements the diagnostic dump/export surface of spec.md's
// ambient stack: a textual node listing and a Graphviz DOT export, plus the
// enumeration helper (Allnodes) both are built on. Adapted from
// rudd/stdio.go's PrintSet/PrintDot/Stats, re-expressed over Arc and this
// package's Manager instead of rudd's buddy/Set receiver pair.

// Allnodes visits every node reachable from roots exactly once, calling
// visit with (id, level, low, high) -- low/high are themselves node ids (0
// and 1 reserved for the False/Empty and True/Base terminals), following
// rudd/kernel.go's Allnodes contract. Visiting stops early if visit returns
// an error.
func (m *Manager) Allnodes(visit func(id, level, low, high int) error, roots ...Arc) error {
	seen := make(map[uint32]bool)
	var walk func(a Arc) error
	walk = func(a Arc) error {
		if a.IsConstant() || a.IsPlaceholder() || seen[a.Index()] {
			return nil
		}
		seen[a.Index()] = true
		n := &m.table.slots[a.Index()]
		if err := walk(n.arc0); err != nil {
			return err
		}
		if err := walk(n.arc1); err != nil {
			return err
		}
		return visit(nodeID(a), int(m.levelOfVar[n.variable()]), nodeID(n.arc0), nodeID(n.arc1))
	}
	for _, r := range roots {
		if err := walk(r); err != nil {
			return err
		}
	}
	return nil
}

// nodeID maps an Arc to the small integer id the Dump/PrintDot textual
// formats use: 0 for False/Empty, 1 for True/Base, and the real unique-table
// index for everything else (table slots 0/1 are reserved, so the two
// numberings never collide).
func nodeID(a Arc) int {
	if a.IsConstant() {
		if a.Value() {
			return 1
		}
		return 0
	}
	return int(a.Index())
}

// Dump returns a textual listing of every node reachable from roots (or
// every live node in the table if roots is empty), one line per node,
// sorted by node id.
func (m *Manager) Dump(roots ...Arc) string {
	var w strings.Builder
	m.dump(&w, roots...)
	return w.String()
}

func (m *Manager) dump(w io.Writer, roots ...Arc) {
	if m.Errored() {
		fmt.Fprintf(w, "Error: %s\n", m.Error())
		return
	}
	if len(roots) == 1 {
		switch roots[0] {
		case FalseArc:
			fmt.Fprintln(w, "False")
			return
		case TrueArc:
			fmt.Fprintln(w, "True")
			return
		}
	}
	if len(roots) == 0 {
		for i := 2; i < len(m.table.slots); i++ {
			if !m.table.isEmptySlot(uint64(i)) && !m.table.slots[i].isTombstone() {
				roots = append(roots, NodeArc(uint32(i), false))
			}
		}
	}
	type row struct{ id, level, low, high int }
	var rows []row
	err := m.Allnodes(func(id, level, low, high int) error {
		i := sort.Search(len(rows), func(i int) bool { return rows[i].id >= id })
		rows = append(rows, row{})
		copy(rows[i+1:], rows[i:])
		rows[i] = row{id, level, low, high}
		return nil
	}, roots...)
	if err != nil {
		fmt.Fprintln(w, err.Error())
		return
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%d\t[%d\t] ? \t%d\t : %d\n", r.id, r.level, r.low, r.high)
	}
}

// PrintDot writes a Graphviz DOT description of every node reachable from
// roots to filename ("-" meaning standard output).
func (m *Manager) PrintDot(filename string, roots ...Arc) error {
	var out *os.File
	var err error
	if filename == "-" {
		out = os.Stdout
	} else {
		out, err = os.Create(filename)
		if err != nil {
			return err
		}
		defer out.Close()
	}
	w := bufio.NewWriter(out)
	if m.Errored() {
		fmt.Fprintf(w, "Error: %s\n", m.Error())
		w.Flush()
		return fmt.Errorf(m.Error())
	}
	fmt.Fprintln(w, "digraph G {")
	fmt.Fprintln(w, "1 [shape=box, label=\"1\", style=filled, shape=box, height=0.3, width=0.3];")
	_ = m.Allnodes(func(id, level, low, high int) error {
		if id > 1 {
			fmt.Fprintf(w, "%d %s\n", id, dotlabel(id, level))
			if low != 0 {
				fmt.Fprintf(w, "%d -> %d [style=dotted];\n", id, low)
			}
			if high != 0 {
				fmt.Fprintf(w, "%d -> %d [style=filled];\n", id, high)
			}
		}
		return nil
	}, roots...)
	fmt.Fprintln(w, "}")
	return w.Flush()
}

func dotlabel(a int, b int) string {
	return fmt.Sprintf(`[label=<
	<FONT POINT-SIZE="20">%d</FONT>
	<FONT POINT-SIZE="10">[%d]</FONT>
>];`, b, a)
}

// Stats returns a human-readable summary of table occupancy and collection
// history, following rudd/stdio.go's Stats layout.
func (m *Manager) Stats() string {
	collections, freed, live := m.statsCounters()
	res := fmt.Sprintf("Varnum:     %d\n", m.nvars)
	res += fmt.Sprintf("Allocated:  %d\n", m.table.size())
	res += fmt.Sprintf("Live:       %d\n", live)
	r := (float64(live) / float64(m.table.size())) * 100
	res += fmt.Sprintf("Used:       %.3g %%\n", r)
	res += "==============\n"
	res += fmt.Sprintf("# of GC:    %d\n", collections)
	res += fmt.Sprintf("Reclaimed:  %d\n", freed)
	if _DEBUG {
		res += "==============\n"
		m.cacheMu.Lock()
		res += m.cache.String()
		m.cacheMu.Unlock()
	}
	return res
}
