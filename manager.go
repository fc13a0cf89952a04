// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package dd

import (
	"log"
	"sync"
)

// Manager owns a unique table, an operation cache, and the variable/level
// bijection that every Arc it hands out is relative to. It is the single
// point of mutable shared state in this package, following rudd/hudd.go's
// embedding of a sync.RWMutex around its node tables. spec.md §5 asks for
// two locks rather than one: a table mutex guarding the unique table and
// the var/level bijection, and a separate cache mutex guarding the
// operation cache, so a cache flush never has to wait behind a resize and
// vice versa.
type Manager struct {
	tableMu sync.Mutex
	table   *uniqueTable

	cacheMu sync.Mutex
	cache   *opCache

	configs
	errState

	// levelOfVar[v] is the level of variable v; varOfLevel[L] is the
	// inverse. Both are 1-indexed (index 0 unused) so the zero value of a
	// bare uint32 slot never aliases a real variable or level. Nodes store
	// the variable they branch on, never the level, so inserting a
	// variable at an interior level (NewVarOfLevel) only has to rewrite
	// this bijection: every existing node's relative order is untouched
	// because no two pre-existing variables change position relative to
	// each other.
	levelOfVar []uint32
	varOfLevel []uint32
	nvars      uint32

	// varProjBDD/varProjZDD cache the single-variable projection diagrams
	// (Ithvar in rudd/kernel.go's vocabulary) so repeated lookups of the
	// same variable's BDD/ZDD don't re-enter the unique table.
	varProjBDD []Arc
	varProjZDD []Arc

	// refstack holds arcs that must survive a GC pass even though they are
	// not yet reachable from any ref-counted root: intermediate results of
	// an in-flight recursive apply/ite. Adapted from rudd/gc.go's
	// push/pop-protected recursion stack.
	refstack []Arc

	termMu         sync.Mutex
	terminalTables map[string]interface{}

	// quantset/quantsetVersion implement Exist/Forall's per-call "is this
	// level being quantified out" marker without clearing an array on every
	// call: a level is in the current quantified set iff quantset[level] ==
	// quantsetVersion, and bumping the version invalidates all stale marks
	// in O(1), the same trick rudd/kernel.go's quantsetID plays.
	quantset        []uint32
	quantsetVersion uint32

	gcstat gcStats
}

// gcStats tracks collection activity, surfaced read-only via Manager.Stats
// for diagnostics, following rudd/kernel.go's bddstat fields.
type gcStats struct {
	collections int
	freed       int
}

// NewManager creates a Manager with nvars pre-allocated variables at levels
// 1..nvars (the natural reading order), applying any ManagerOptions on top
// of the defaults from config.go. Further variables can be added later with
// NewVar / NewVarOfLevel.
func NewManager(nvars int, opts ...ManagerOption) (*Manager, error) {
	if nvars < 0 {
		return nil, ErrInvalidArgument
	}
	c := makeconfigs(nvars)
	for _, opt := range opts {
		opt(c)
	}
	m := &Manager{
		configs:        *c,
		table:          newUniqueTable(c.nodesize),
		cache:          newOpCache(c.cachesize),
		terminalTables: make(map[string]interface{}),
	}
	m.levelOfVar = make([]uint32, 1, nvars+1)
	m.varOfLevel = make([]uint32, 1, nvars+1)
	m.varProjBDD = make([]Arc, 1, nvars+1)
	m.varProjZDD = make([]Arc, 1, nvars+1)
	for i := 0; i < nvars; i++ {
		if err := m.addVarAtBottom(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// addVarAtBottom allocates a fresh variable number and places it at the
// current bottom level (nvars+1), then materializes its BDD and ZDD
// projection nodes and pins them so GC never reclaims them (matching
// rudd/varnum.go's treatment of the per-variable Ithvar/NIthvar nodes).
func (m *Manager) addVarAtBottom() error {
	if m.nvars >= _MAXVAR {
		return m.fail(ErrInvalidArgument)
	}
	m.nvars++
	v := m.nvars
	level := m.nvars
	m.levelOfVar = append(m.levelOfVar, level)
	m.varOfLevel = append(m.varOfLevel, v)

	bddArc, err := m.getOrCreateNodeBDD(v, FalseArc, TrueArc)
	if err != nil {
		return err
	}
	zddArc, err := m.getOrCreateNodeZDD(v, FalseArc, TrueArc)
	if err != nil {
		return err
	}
	m.pinArc(bddArc)
	m.pinArc(zddArc)
	m.varProjBDD = append(m.varProjBDD, bddArc)
	m.varProjZDD = append(m.varProjZDD, zddArc)
	return nil
}

func (m *Manager) pinArc(a Arc) {
	if a.IsConstant() || a.IsPlaceholder() {
		return
	}
	m.table.slots[a.Index()].pin()
}

// NewVar allocates a fresh variable at the current bottom level and returns
// its number.
func (m *Manager) NewVar() (uint32, error) {
	// tableMu is not held here: uniquify takes it for each node it creates.
	if err := m.addVarAtBottom(); err != nil {
		return 0, err
	}
	return m.nvars, nil
}

// NewVarOfLevel allocates a fresh variable and inserts it at level L,
// shifting every variable currently at level >= L down by one. Existing
// nodes are untouched: they reference variables, not levels, so the shift
// is purely a bijection update (see the levelOfVar field comment).
func (m *Manager) NewVarOfLevel(level uint32) (uint32, error) {
	// tableMu is not held here: uniquify takes it for each node it creates.
	if level < 1 || level > m.nvars+1 {
		return 0, m.fail(ErrInvalidArgument)
	}
	if m.nvars >= _MAXVAR {
		return 0, m.fail(ErrInvalidArgument)
	}
	m.nvars++
	v := m.nvars
	m.levelOfVar = append(m.levelOfVar, 0)
	m.varOfLevel = append(m.varOfLevel, 0)
	for l := m.nvars; l > level; l-- {
		shifted := m.varOfLevel[l-1]
		m.varOfLevel[l] = shifted
		m.levelOfVar[shifted] = l
	}
	m.varOfLevel[level] = v
	m.levelOfVar[v] = level

	bddArc, err := m.getOrCreateNodeBDD(v, FalseArc, TrueArc)
	if err != nil {
		return 0, err
	}
	zddArc, err := m.getOrCreateNodeZDD(v, FalseArc, TrueArc)
	if err != nil {
		return 0, err
	}
	m.pinArc(bddArc)
	m.pinArc(zddArc)
	m.varProjBDD = append(m.varProjBDD, bddArc)
	m.varProjZDD = append(m.varProjZDD, zddArc)
	return v, nil
}

// LevelOf returns the level of variable v (1 is the top level).
func (m *Manager) LevelOf(v uint32) uint32 { return m.levelOfVar[v] }

// VarOfLevel returns the variable sitting at level L.
func (m *Manager) VarOfLevel(level uint32) uint32 { return m.varOfLevel[level] }

// TopLevel returns the bottom-most occupied level, i.e. the number of
// variables currently known to m.
func (m *Manager) TopLevel() uint32 { return m.nvars }

// aboveOrEqual reports whether variable a's level is above (numerically
// less than or equal to) variable b's level, the ordering bdd.go compares
// operands' top variables against.
func (m *Manager) aboveOrEqual(a, b uint32) bool {
	return m.levelOfVar[a] <= m.levelOfVar[b]
}

// VarBDD returns the BDD projection diagram for variable v (the diagram
// that is true exactly when v is true).
func (m *Manager) VarBDD(v uint32) Arc { return m.varProjBDD[v] }

// VarZDD returns the ZDD projection diagram for variable v (the family
// containing exactly the singleton set {v}).
func (m *Manager) VarZDD(v uint32) Arc { return m.varProjZDD[v] }

// variableOf returns the branching variable of a, or 0 for a constant arc
// (0 is never a real variable number, since variables are 1-indexed).
func (m *Manager) variableOf(a Arc) uint32 {
	if a.IsConstant() {
		return 0
	}
	return m.table.slots[a.Index()].variable()
}

func (m *Manager) childrenOf(a Arc) (lo, hi Arc) {
	n := &m.table.slots[a.Index()]
	lo, hi = n.arc0, n.arc1
	if a.IsNegated() {
		lo, hi = lo.Negated(), hi.Negated()
	}
	return
}

// fail records err in the sticky error slot and returns it, matching the
// errState pattern errors.go exposes via Error()/Errored().
func (m *Manager) fail(err error) error {
	m.errState.seterror(err)
	return err
}

// getOrCreateNodeBDD implements the I2-I4 reduction+negation-normalization
// contract of spec.md §4.4: a node whose two children are identical is
// elided, and every stored node is canonicalized so its low (0-) child is
// never negated (TrueArc, the complement of FalseArc, counts as negated) —
// if it would be, both children are complemented and the resulting arc is
// negated back on the way out.
func (m *Manager) getOrCreateNodeBDD(v uint32, a0, a1 Arc) (Arc, error) {
	if a0 == a1 {
		return a0, nil
	}
	negate := a0.IsNegated() || a0 == TrueArc
	if negate {
		a0, a1 = a0.Negated(), a1.Negated()
	}
	idx, err := m.uniquify(v, a0, a1)
	if err != nil {
		return 0, err
	}
	arc := NodeArc(uint32(idx), false)
	if negate {
		arc = arc.Negated()
	}
	return arc, nil
}

// getOrCreateNodeZDD implements the ZDD reduction rule of spec.md §4.4: a
// node whose 1-child is the FALSE terminal is elided (its 0-child is
// returned directly). ZDD arcs never use the negation bit: callers that
// need negation-edge sharing go through the BDD path instead.
func (m *Manager) getOrCreateNodeZDD(v uint32, a0, a1 Arc) (Arc, error) {
	if a1 == FalseArc {
		return a0, nil
	}
	idx, err := m.uniquify(v, a0, a1)
	if err != nil {
		return 0, err
	}
	return NodeArc(uint32(idx), false), nil
}

// uniquify is the shared table.find/table.insert dance used by both
// reduction rules above: look up (v, a0, a1); proactively GC if the table
// has crossed its load threshold (spec.md §4.4's gc_if_needed policy); on a
// miss, GC reactively if that wasn't enough, resize if GC still didn't free
// enough, then insert.
func (m *Manager) uniquify(v uint32, a0, a1 Arc) (uint64, error) {
	m.tableMu.Lock()
	defer m.tableMu.Unlock()
	// The children being linked are not yet reachable from any root.
	m.pushRef(a0)
	m.pushRef(a1)
	defer func() { m.popRef(); m.popRef() }()
	m.gcIfNeededLocked()
	if idx, ok := m.table.find(v, a0, a1); ok {
		return idx, nil
	}
	idx, err := m.table.insert(v, a0, a1)
	if err == nil {
		return idx, nil
	}
	m.gcLocked()
	idx, err = m.table.insert(v, a0, a1)
	if err == nil {
		return idx, nil
	}
	m.growTableLocked()
	idx, err = m.table.insert(v, a0, a1)
	if err != nil {
		return 0, m.fail(ErrOutOfMemory)
	}
	return idx, nil
}

func (m *Manager) growTableLocked() {
	newSize := len(m.table.slots) * 2
	if m.configs.maxnodeincrease > 0 && newSize-len(m.table.slots) > m.configs.maxnodeincrease {
		newSize = len(m.table.slots) + m.configs.maxnodeincrease
	}
	if m.configs.maxnodesize > 0 && newSize > m.configs.maxnodesize {
		newSize = m.configs.maxnodesize
	}
	if newSize <= len(m.table.slots) {
		return
	}
	if _LOGLEVEL > 0 {
		log.Printf("resizing table from %d to %d\n", len(m.table.slots), newSize)
	}
	m.table.resize(newSize)
	m.cacheMu.Lock()
	if m.configs.cacheratio > 0 {
		m.cache.resize(newSize * m.configs.cacheratio / 100)
	} else {
		m.cache.clear()
	}
	m.cacheMu.Unlock()
}

// GC forces an immediate mark-sweep collection.
func (m *Manager) GC() {
	m.tableMu.Lock()
	m.gcLocked()
	m.tableMu.Unlock()
}

// GCIfNeeded runs a collection only when the unique table's load factor has
// crossed configs.gcThreshold and the table holds at least configs.minAlive
// live nodes, per spec.md §4.4's gc_if_needed(). uniquify already calls
// this policy automatically before every node insertion; this exported
// form lets a caller apply the same policy explicitly, e.g. between
// batches of work, without forcing an unconditional GC the way GC() does.
func (m *Manager) GCIfNeeded() {
	m.tableMu.Lock()
	defer m.tableMu.Unlock()
	m.gcIfNeededLocked()
}

// gcIfNeededLocked is GCIfNeeded's body, called with tableMu already held
// (uniquify calls this directly rather than re-entering the mutex).
func (m *Manager) gcIfNeededLocked() {
	if m.table.live >= m.configs.minAlive && m.table.loadFactor() >= m.configs.gcThreshold {
		m.gcLocked()
	}
}

// Ref increments the reference count of a, protecting it from future GC
// passes, and returns a unchanged so calls can be chained the way
// rudd/gc.go's AddRef does. Constant and placeholder arcs are no-ops.
func (m *Manager) Ref(a Arc) Arc {
	if a.IsConstant() || a.IsPlaceholder() {
		return a
	}
	m.tableMu.Lock()
	m.table.slots[a.Index()].incRef()
	m.tableMu.Unlock()
	return a
}

// Deref decrements the reference count of a, mirroring rudd/gc.go's DelRef.
// A node whose refcount reaches zero is not reclaimed immediately; it
// becomes eligible for the next mark-sweep pass.
func (m *Manager) Deref(a Arc) Arc {
	if a.IsConstant() || a.IsPlaceholder() {
		return a
	}
	m.tableMu.Lock()
	m.table.slots[a.Index()].decRef()
	m.tableMu.Unlock()
	return a
}

// statsCounters reports raw collection counters, mirroring
// rudd/kernel.go's bddstat; stdio.go's Stats wraps this into the
// human-readable report rudd/stdio.go's Stats returns.
func (m *Manager) statsCounters() (collections, freed, liveNodes int) {
	return m.gcstat.collections, m.gcstat.freed, m.table.live
}
