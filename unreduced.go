// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package dd

// unreduced.go implements the unreduced intermediate form of spec.md §4.7:
// a plain tree (or arbitrarily-shared DAG, for callers that already dedup)
// of UnreducedNode values that has not yet been folded into a Manager's
// unique table. BuildUnreduced (combinators.go) constructs one level at a
// time from a Spec without touching the unique table; ReduceBDD/ReduceZDD
// then canonicalize the whole thing in one bottom-up pass. Grounded on original_source's
// unreduced_bdd.cpp/unreduced_zdd.cpp, re-expressed as a plain Go struct
// tree instead of the original's node-pool classes.

// UnreducedNode is one node of an unreduced diagram. A terminal node has
// Lo == Hi == nil and Value set; an internal node has Var set and non-nil
// Lo/Hi. The same *UnreducedNode may appear as the Lo or Hi of more than
// one parent: ReduceBDD/ReduceZDD treat the input as a DAG and memoize on pointer
// identity, so sharing in the input is preserved rather than re-expanded.
type UnreducedNode struct {
	Var      uint32
	Lo, Hi   *UnreducedNode
	Terminal bool
	Value    bool
}

// UnreducedTerminal returns a terminal leaf carrying value.
func UnreducedTerminal(value bool) *UnreducedNode {
	return &UnreducedNode{Terminal: true, Value: value}
}

// UnreducedBranch returns an internal node branching on v.
func UnreducedBranch(v uint32, lo, hi *UnreducedNode) *UnreducedNode {
	return &UnreducedNode{Var: v, Lo: lo, Hi: hi}
}

// ReduceBDD folds an unreduced tree into m's unique table under the BDD
// reduction + negation-normalization rule (I2-I4), memoizing on node
// identity so shared substructure in the input is only reduced once.
func (m *Manager) ReduceBDD(root *UnreducedNode) (Arc, error) {
	memo := make(map[*UnreducedNode]Arc)
	return m.reduceBDD(root, memo)
}

func (m *Manager) reduceBDD(n *UnreducedNode, memo map[*UnreducedNode]Arc) (Arc, error) {
	if n.Terminal {
		if n.Value {
			return TrueArc, nil
		}
		return FalseArc, nil
	}
	if a, ok := memo[n]; ok {
		return a, nil
	}
	lo, err := m.reduceBDD(n.Lo, memo)
	if err != nil {
		return 0, err
	}
	m.pushRef(lo)
	hi, err := m.reduceBDD(n.Hi, memo)
	m.popRef()
	if err != nil {
		return 0, err
	}
	res, err := m.getOrCreateNodeBDD(n.Var, lo, hi)
	if err != nil {
		return 0, err
	}
	memo[n] = res
	return res, nil
}

// ReduceZDD folds an unreduced tree into m's unique table under the ZDD
// reduction rule (eliding nodes whose 1-child is the empty family).
func (m *Manager) ReduceZDD(root *UnreducedNode) (Arc, error) {
	memo := make(map[*UnreducedNode]Arc)
	return m.reduceZDD(root, memo)
}

func (m *Manager) reduceZDD(n *UnreducedNode, memo map[*UnreducedNode]Arc) (Arc, error) {
	if n.Terminal {
		if n.Value {
			return ZDDBase, nil
		}
		return ZDDEmpty, nil
	}
	if a, ok := memo[n]; ok {
		return a, nil
	}
	lo, err := m.reduceZDD(n.Lo, memo)
	if err != nil {
		return 0, err
	}
	m.pushRef(lo)
	hi, err := m.reduceZDD(n.Hi, memo)
	m.popRef()
	if err != nil {
		return 0, err
	}
	res, err := m.getOrCreateNodeZDD(n.Var, lo, hi)
	if err != nil {
		return 0, err
	}
	memo[n] = res
	return res, nil
}

// ToQDD expands a reduced BDD arc back into a quasi-reduced tree: every
// level from 1 down to the manager's bottom level is made explicit, so no
// level is ever skipped, and (arc, level) pairs are shared. This is the
// inverse transform of ReduceBDD, grounded on original_source's qdd.cpp.
func (m *Manager) ToQDD(f Arc) *UnreducedNode {
	memo := make(map[[2]uint64]*UnreducedNode)
	return m.toQDD(f, 1, memo)
}

func (m *Manager) toQDD(f Arc, level uint32, memo map[[2]uint64]*UnreducedNode) *UnreducedNode {
	if level > m.nvars {
		if f.IsConstant() {
			return UnreducedTerminal(f.Value())
		}
		// Should not happen for a well-formed BDD, but fail closed rather
		// than panic on malformed input.
		return UnreducedTerminal(false)
	}
	key := [2]uint64{uint64(f), uint64(level)}
	if n, ok := memo[key]; ok {
		return n
	}
	v := m.varOfLevel[level]
	var lo, hi Arc
	if f.IsConstant() || m.levelOfVar[m.variableOf(f)] > level {
		lo, hi = f, f
	} else {
		lo, hi = m.branch(f, v)
	}
	node := UnreducedBranch(v, m.toQDD(lo, level+1, memo), m.toQDD(hi, level+1, memo))
	memo[key] = node
	return node
}
