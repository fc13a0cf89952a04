// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package dd

import "math/big"

// bdd.go implements the BDD algebra of spec.md §4.6 over negation-edge
// Arcs, adapted from rudd/operations.go's apply/ite/quant/satcount/allsat
// family. The one real semantic change from rudd's own version is that
// every binary connective other than And and Xor is expressed through De
// Morgan's law using the negation bit rather than its own recursive
// traversal: Or, Nand, Nor and Imp all bottom out in applyAnd, which means
// their recursive calls land in exactly the same cache entries And already
// populated, and Equiv (Biimp) bottoms out in applyXor the same way.

// branch returns the (low, high) pair of a as if a depended on variable v:
// the real children if a's node branches on v, or (a, a) twice over if a
// does not depend on v (it is below v in the order, or a constant).
func (m *Manager) branch(a Arc, v uint32) (lo, hi Arc) {
	if a.IsConstant() {
		return a, a
	}
	n := &m.table.slots[a.Index()]
	if n.variable() != v {
		return a, a
	}
	lo, hi = n.arc0, n.arc1
	if a.IsNegated() {
		lo, hi = lo.Negated(), hi.Negated()
	}
	return
}

// topVariable returns the variable to branch the pair (f, g) on: whichever
// of f's and g's variables sits at the higher (numerically smaller) level,
// or 0 if both are constants.
func (m *Manager) topVariable(f, g Arc) uint32 {
	vf, vg := m.variableOf(f), m.variableOf(g)
	switch {
	case vf == 0:
		return vg
	case vg == 0:
		return vf
	case m.aboveOrEqual(vf, vg):
		return vf
	default:
		return vg
	}
}

// And returns the conjunction of a sequence of BDD arcs.
func (m *Manager) And(fs ...Arc) (Arc, error) {
	switch len(fs) {
	case 0:
		return TrueArc, nil
	case 1:
		return fs[0], nil
	}
	res := fs[0]
	for _, f := range fs[1:] {
		var err error
		res, err = m.applyAnd(res, f)
		if err != nil {
			return 0, err
		}
	}
	return res, nil
}

// Or returns the disjunction of a sequence of BDD arcs, via De Morgan.
func (m *Manager) Or(fs ...Arc) (Arc, error) {
	neg := make([]Arc, len(fs))
	for i, f := range fs {
		neg[i] = f.Negated()
	}
	res, err := m.And(neg...)
	if err != nil {
		return 0, err
	}
	return res.Negated(), nil
}

// Xor returns the exclusive-or of f and g.
func (m *Manager) Xor(f, g Arc) (Arc, error) {
	return m.applyXor(f, g)
}

// Diff returns f & !g (set difference when f, g are characteristic
// functions).
func (m *Manager) Diff(f, g Arc) (Arc, error) {
	return m.applyAnd(f, g.Negated())
}

// Imp returns f => g.
func (m *Manager) Imp(f, g Arc) (Arc, error) {
	res, err := m.applyAnd(f, g.Negated())
	if err != nil {
		return 0, err
	}
	return res.Negated(), nil
}

// Equiv returns the bi-implication (f <=> g), i.e. the negation of Xor.
func (m *Manager) Equiv(f, g Arc) (Arc, error) {
	res, err := m.applyXor(f, g)
	if err != nil {
		return 0, err
	}
	return res.Negated(), nil
}

// Not returns the logical complement of f. Thanks to the negation edge
// this is an O(1) operation, unlike rudd's recursive not/matchnot.
func (m *Manager) Not(f Arc) Arc {
	return f.Negated()
}

func (m *Manager) applyAnd(f, g Arc) (Arc, error) {
	if f == g {
		return f, nil
	}
	if f == FalseArc || g == FalseArc {
		return FalseArc, nil
	}
	if f == TrueArc {
		return g, nil
	}
	if g == TrueArc {
		return f, nil
	}
	if f > g { // And is commutative; canonicalize to grow the cache hit rate
		f, g = g, f
	}
	m.cacheMu.Lock()
	cached, ok := m.cache.lookup2(OpAnd, f, g)
	m.cacheMu.Unlock()
	if ok {
		return cached, nil
	}
	v := m.topVariable(f, g)
	f0, f1 := m.branch(f, v)
	g0, g1 := m.branch(g, v)
	m.pushRef(f)
	m.pushRef(g)
	lo, err := m.applyAnd(f0, g0)
	if err != nil {
		m.popRef()
		m.popRef()
		return 0, err
	}
	m.pushRef(lo)
	hi, err := m.applyAnd(f1, g1)
	m.popRef() // lo
	if err != nil {
		m.popRef()
		m.popRef()
		return 0, err
	}
	res, err := m.getOrCreateNodeBDD(v, lo, hi)
	m.popRef() // g
	m.popRef() // f
	if err != nil {
		return 0, err
	}
	m.cacheMu.Lock()
	m.cache.insert2(OpAnd, f, g, res)
	m.cacheMu.Unlock()
	return res, nil
}

func (m *Manager) applyXor(f, g Arc) (Arc, error) {
	if f == g {
		return FalseArc, nil
	}
	if f == FalseArc {
		return g, nil
	}
	if g == FalseArc {
		return f, nil
	}
	if f == TrueArc {
		return g.Negated(), nil
	}
	if g == TrueArc {
		return f.Negated(), nil
	}
	// Xor(f,g) == Xor(!f,!g): canonicalize away the negation bit on f so the
	// cache only ever sees one representative per unordered, sign-equivalent
	// pair, then fix the result's sign back up.
	flip := f.IsNegated()
	if flip {
		f, g = f.Negated(), g.Negated()
	}
	if f > g {
		f, g = g, f
	}
	m.cacheMu.Lock()
	cached, ok := m.cache.lookup2(OpXor, f, g)
	m.cacheMu.Unlock()
	if ok {
		if flip {
			return cached.Negated(), nil
		}
		return cached, nil
	}
	v := m.topVariable(f, g)
	f0, f1 := m.branch(f, v)
	g0, g1 := m.branch(g, v)
	m.pushRef(f)
	m.pushRef(g)
	lo, err := m.applyXor(f0, g0)
	if err != nil {
		m.popRef()
		m.popRef()
		return 0, err
	}
	m.pushRef(lo)
	hi, err := m.applyXor(f1, g1)
	m.popRef()
	if err != nil {
		m.popRef()
		m.popRef()
		return 0, err
	}
	res, err := m.getOrCreateNodeBDD(v, lo, hi)
	m.popRef()
	m.popRef()
	if err != nil {
		return 0, err
	}
	m.cacheMu.Lock()
	m.cache.insert2(OpXor, f, g, res)
	m.cacheMu.Unlock()
	if flip {
		return res.Negated(), nil
	}
	return res, nil
}

// Ite computes if-then-else: (f & g) | (!f & h), in one traversal.
func (m *Manager) Ite(f, g, h Arc) (Arc, error) {
	switch {
	case f == TrueArc:
		return g, nil
	case f == FalseArc:
		return h, nil
	case g == h:
		return g, nil
	case g == TrueArc && h == FalseArc:
		return f, nil
	case g == FalseArc && h == TrueArc:
		return f.Negated(), nil
	}
	m.cacheMu.Lock()
	cached, ok := m.cache.lookup3(OpIte, f, g, h)
	m.cacheMu.Unlock()
	if ok {
		return cached, nil
	}
	v := m.topVariable3(f, g, h)
	f0, f1 := m.branch(f, v)
	g0, g1 := m.branch(g, v)
	h0, h1 := m.branch(h, v)
	m.pushRef(f)
	m.pushRef(g)
	m.pushRef(h)
	lo, err := m.Ite(f0, g0, h0)
	if err != nil {
		m.popRef()
		m.popRef()
		m.popRef()
		return 0, err
	}
	m.pushRef(lo)
	hi, err := m.Ite(f1, g1, h1)
	m.popRef()
	if err != nil {
		m.popRef()
		m.popRef()
		m.popRef()
		return 0, err
	}
	res, err := m.getOrCreateNodeBDD(v, lo, hi)
	m.popRef()
	m.popRef()
	m.popRef()
	if err != nil {
		return 0, err
	}
	m.cacheMu.Lock()
	m.cache.insert3(OpIte, f, g, h, res)
	m.cacheMu.Unlock()
	return res, nil
}

func (m *Manager) topVariable3(f, g, h Arc) uint32 {
	v := m.topVariable(f, g)
	vh := m.variableOf(h)
	if vh == 0 {
		return v
	}
	if v == 0 {
		return vh
	}
	if m.aboveOrEqual(vh, v) {
		return vh
	}
	return v
}

// Restrict (also called cofactor) sets variable v to value in f.
func (m *Manager) Restrict(f Arc, v uint32, value bool) (Arc, error) {
	m.cacheMu.Lock()
	op := OpAt1
	if !value {
		op = OpAt0
	}
	k1 := key1Of(f, op)
	k2 := uint64(v)
	idx := pairHash(k1, k2) & m.cache.mask
	e := &m.cache.slots[idx]
	if e.valid && e.key1 == k1 && e.key2 == k2 {
		cached := e.result
		m.cacheMu.Unlock()
		return cached, nil
	}
	m.cacheMu.Unlock()
	res, err := m.restrict(f, v, value)
	if err != nil {
		return 0, err
	}
	m.cacheMu.Lock()
	m.cache.slots[idx] = cacheEntry{key1: k1, key2: k2, result: res, valid: true}
	m.cacheMu.Unlock()
	return res, nil
}

func (m *Manager) restrict(f Arc, v uint32, value bool) (Arc, error) {
	if f.IsConstant() {
		return f, nil
	}
	fv := m.variableOf(f)
	if fv != v && m.aboveOrEqual(v, fv) {
		// v is above f's top variable in the order: f cannot depend on it.
		return f, nil
	}
	if fv == v {
		lo, hi := m.branch(f, v)
		if value {
			return hi, nil
		}
		return lo, nil
	}
	lo, hi := m.branch(f, fv)
	m.pushRef(f)
	newLo, err := m.restrict(lo, v, value)
	if err != nil {
		m.popRef()
		return 0, err
	}
	m.pushRef(newLo)
	newHi, err := m.restrict(hi, v, value)
	m.popRef()
	if err != nil {
		m.popRef()
		return 0, err
	}
	res, err := m.getOrCreateNodeBDD(fv, newLo, newHi)
	m.popRef()
	return res, err
}

// At0 restricts v to false; At1 restricts v to true. Thin wrappers kept for
// call-site readability (spec.md §4.6 names both explicitly).
func (m *Manager) At0(f Arc, v uint32) (Arc, error) { return m.Restrict(f, v, false) }
func (m *Manager) At1(f Arc, v uint32) (Arc, error) { return m.Restrict(f, v, true) }

// Compose substitutes variable v in f with the BDD g.
func (m *Manager) Compose(f Arc, v uint32, g Arc) (Arc, error) {
	return m.compose(f, v, g)
}

func (m *Manager) compose(f Arc, v uint32, g Arc) (Arc, error) {
	if f.IsConstant() {
		return f, nil
	}
	fv := m.variableOf(f)
	if !m.aboveOrEqual(fv, v) && fv != v {
		return f, nil
	}
	if fv == v {
		lo, hi := m.branch(f, v)
		return m.Ite(g, hi, lo)
	}
	lo, hi := m.branch(f, fv)
	m.pushRef(f)
	newLo, err := m.compose(lo, v, g)
	if err != nil {
		m.popRef()
		return 0, err
	}
	m.pushRef(newLo)
	newHi, err := m.compose(hi, v, g)
	m.popRef()
	if err != nil {
		m.popRef()
		return 0, err
	}
	res, err := m.getOrCreateNodeBDD(fv, newLo, newHi)
	m.popRef()
	return res, err
}

// quantsetVersion is bumped on every Exist/Forall call so the per-level
// membership marker (quantset) never has to be cleared between calls, the
// same versioning trick rudd/kernel.go's quantsetID uses.
func (m *Manager) markQuantset(vars []uint32) (quantlast uint32) {
	m.quantsetVersion++
	for _, v := range vars {
		lvl := m.levelOfVar[v]
		for uint32(len(m.quantset)) <= lvl {
			m.quantset = append(m.quantset, 0)
		}
		m.quantset[lvl] = m.quantsetVersion
		if lvl > quantlast {
			quantlast = lvl
		}
	}
	return
}

// Exist returns the existential quantification of f over vars: ∃vars. f.
func (m *Manager) Exist(f Arc, vars ...uint32) (Arc, error) {
	if len(vars) == 0 {
		return f, nil
	}
	quantlast := m.markQuantset(vars)
	return m.quant(f, OpExist, quantlast)
}

// Forall returns the universal quantification of f over vars: ∀vars. f.
func (m *Manager) Forall(f Arc, vars ...uint32) (Arc, error) {
	if len(vars) == 0 {
		return f, nil
	}
	quantlast := m.markQuantset(vars)
	return m.quant(f, OpForall, quantlast)
}

func (m *Manager) quant(f Arc, op OpCode, quantlast uint32) (Arc, error) {
	fv := m.variableOf(f)
	if f.IsConstant() || m.levelOfVar[fv] > quantlast {
		return f, nil
	}
	k2 := (uint64(quantlast) << 32) | uint64(m.quantsetVersion)
	m.cacheMu.Lock()
	k1 := key1Of(f, op)
	idx := pairHash(k1, k2) & m.cache.mask
	e := &m.cache.slots[idx]
	if e.valid && e.key1 == k1 && e.key2 == k2 {
		cached := e.result
		m.cacheMu.Unlock()
		return cached, nil
	}
	m.cacheMu.Unlock()

	lo, hi := m.branch(f, fv)
	m.pushRef(f)
	newLo, err := m.quant(lo, op, quantlast)
	if err != nil {
		m.popRef()
		return 0, err
	}
	m.pushRef(newLo)
	newHi, err := m.quant(hi, op, quantlast)
	m.popRef()
	if err != nil {
		m.popRef()
		return 0, err
	}
	var res Arc
	if m.quantset[m.levelOfVar[fv]] == m.quantsetVersion {
		if op == OpExist {
			res, err = m.applyAnd(newLo.Negated(), newHi.Negated())
			if err == nil {
				res = res.Negated() // Or(lo, hi)
			}
		} else {
			res, err = m.applyAnd(newLo, newHi)
		}
	} else {
		res, err = m.getOrCreateNodeBDD(fv, newLo, newHi)
	}
	m.popRef()
	if err != nil {
		return 0, err
	}
	m.cacheMu.Lock()
	m.cache.slots[idx] = cacheEntry{key1: k1, key2: k2, result: res, valid: true}
	m.cacheMu.Unlock()
	return res, nil
}

// Count returns the number of satisfying assignments of f over the full
// variable space known to m, using arbitrary-precision arithmetic (spec.md
// §4.6 "Count/ExactCount"), adapted from rudd/operations.go's Satcount.
func (m *Manager) Count(f Arc) *big.Int {
	res := big.NewInt(0)
	if f == FalseArc {
		return res
	}
	memo := make(map[Arc]*big.Int)
	count := m.count(f, memo)
	topLevel := levelOrBottom(m, f)
	shift := uint(topLevel - 1)
	scale := new(big.Int).Lsh(big.NewInt(1), shift)
	return res.Mul(scale, count)
}

func (m *Manager) count(f Arc, memo map[Arc]*big.Int) *big.Int {
	if f == FalseArc {
		return big.NewInt(0)
	}
	if f == TrueArc {
		return big.NewInt(1)
	}
	if v, ok := memo[f]; ok {
		return v
	}
	level := m.levelOfVar[m.variableOf(f)]
	lo, hi := m.branch(f, m.variableOf(f))

	res := big.NewInt(0)
	loLevel := levelOrBottom(m, lo)
	hiLevel := levelOrBottom(m, hi)

	loGap := new(big.Int).Lsh(big.NewInt(1), uint(loLevel-level-1))
	res.Add(res, loGap.Mul(loGap, m.count(lo, memo)))
	hiGap := new(big.Int).Lsh(big.NewInt(1), uint(hiLevel-level-1))
	res.Add(res, hiGap.Mul(hiGap, m.count(hi, memo)))

	memo[f] = res
	return res
}

func levelOrBottom(m *Manager, a Arc) uint32 {
	if a.IsConstant() {
		return m.TopLevel() + 1
	}
	return m.levelOfVar[m.variableOf(a)]
}

// SatOne returns one satisfying path of f as a cube Arc (a conjunction of
// literals), preferring the low branch when it is not False, following the
// same preference order as most BDD packages' satone.
func (m *Manager) SatOne(f Arc) (Arc, error) {
	if f == FalseArc {
		return 0, m.fail(ErrInvalidArgument)
	}
	return m.satOne(f)
}

func (m *Manager) satOne(f Arc) (Arc, error) {
	if f.IsConstant() {
		return TrueArc, nil
	}
	v := m.variableOf(f)
	lo, hi := m.branch(f, v)
	if lo != FalseArc {
		rest, err := m.satOne(lo)
		if err != nil {
			return 0, err
		}
		return m.getOrCreateNodeBDD(v, rest, FalseArc)
	}
	rest, err := m.satOne(hi)
	if err != nil {
		return 0, err
	}
	return m.getOrCreateNodeBDD(v, FalseArc, rest)
}

// Makeset returns the cube (conjunction, in positive form) of every variable
// in varset, such that Scanset(Makeset(varset)) reconstructs varset.
// Grounded on rudd/operations.go's Makeset/Scanset pair.
func (m *Manager) Makeset(varset []uint32) (Arc, error) {
	res := TrueArc
	for _, v := range varset {
		var err error
		res, err = m.applyAnd(res, m.VarBDD(v))
		if err != nil {
			return 0, err
		}
	}
	return res, nil
}

// Scanset returns the variables found along f's high branches, in level
// order, assuming f is a cube (every node's low branch is False). The dual
// of Makeset.
func (m *Manager) Scanset(f Arc) []uint32 {
	if f.IsConstant() {
		return nil
	}
	var res []uint32
	for a := f; !a.IsConstant(); {
		v := m.variableOf(a)
		res = append(res, v)
		_, hi := m.branch(a, v)
		a = hi
	}
	return res
}

// AndExist computes Exist(vars, And(f, g)) without ever materializing the
// full conjunction when a variable can be quantified away early, fusing the
// conjunction and the quantification into one recursive pass. Grounded on
// rudd/operations.go's AppEx/appquant (restricted to OPand, the only
// instance spec.md's "relational composition" scenario needs).
func (m *Manager) AndExist(f, g Arc, vars ...uint32) (Arc, error) {
	if len(vars) == 0 {
		return m.applyAnd(f, g)
	}
	quantlast := m.markQuantset(vars)
	return m.andExist(f, g, quantlast)
}

func (m *Manager) andExist(f, g Arc, quantlast uint32) (Arc, error) {
	if f == FalseArc || g == FalseArc {
		return FalseArc, nil
	}
	if f == g {
		return m.quant(f, OpExist, quantlast)
	}
	if f == TrueArc {
		return m.quant(g, OpExist, quantlast)
	}
	if g == TrueArc {
		return m.quant(f, OpExist, quantlast)
	}
	if f > g {
		f, g = g, f
	}
	k2 := (uint64(quantlast) << 32) | uint64(m.quantsetVersion)
	m.cacheMu.Lock()
	k1 := key1Of(f, OpAnd) ^ (uint64(g) * 0x9E3779B97F4A7C15)
	idx := pairHash(k1, k2) & m.cache.mask
	e := &m.cache.slots[idx]
	if e.valid && e.key1 == k1 && e.key2 == k2 {
		cached := e.result
		m.cacheMu.Unlock()
		return cached, nil
	}
	m.cacheMu.Unlock()

	v := m.topVariable(f, g)
	f0, f1 := m.branch(f, v)
	g0, g1 := m.branch(g, v)
	m.pushRef(f)
	m.pushRef(g)
	lo, err := m.andExist(f0, g0, quantlast)
	if err != nil {
		m.popRef()
		m.popRef()
		return 0, err
	}
	var res Arc
	if m.quantset[m.levelOfVar[v]] == m.quantsetVersion && lo == TrueArc {
		res = TrueArc
	} else {
		m.pushRef(lo)
		hi, err := m.andExist(f1, g1, quantlast)
		m.popRef()
		if err != nil {
			m.popRef()
			m.popRef()
			return 0, err
		}
		if m.quantset[m.levelOfVar[v]] == m.quantsetVersion {
			res, err = m.applyAnd(lo.Negated(), hi.Negated())
			if err == nil {
				res = res.Negated()
			}
		} else {
			res, err = m.getOrCreateNodeBDD(v, lo, hi)
		}
		if err != nil {
			m.popRef()
			m.popRef()
			return 0, err
		}
	}
	m.popRef()
	m.popRef()
	m.cacheMu.Lock()
	m.cache.slots[idx] = cacheEntry{key1: k1, key2: k2, result: res, valid: true}
	m.cacheMu.Unlock()
	return res, nil
}

// Allsat iterates every satisfying assignment of f, calling visit with a
// profile slice (indexed by variable number, 1-indexed; entry 0 is unused)
// where each entry is 0 (false), 1 (true), or -1 (don't care). Iteration
// stops early if visit returns an error.
func (m *Manager) Allsat(f Arc, visit func(profile []int) error) error {
	profile := make([]int, m.nvars+1)
	for i := range profile {
		profile[i] = -1
	}
	return m.allsat(f, profile, visit)
}

func (m *Manager) allsat(f Arc, profile []int, visit func([]int) error) error {
	if f == TrueArc {
		return visit(profile)
	}
	if f == FalseArc {
		return nil
	}
	v := m.variableOf(f)
	lo, hi := m.branch(f, v)
	level := m.levelOfVar[v]
	if lo != FalseArc {
		profile[v] = 0
		for l := level + 1; l < levelOrBottom(m, lo); l++ {
			profile[m.varOfLevel[l]] = -1
		}
		if err := m.allsat(lo, profile, visit); err != nil {
			return err
		}
	}
	if hi != FalseArc {
		profile[v] = 1
		for l := level + 1; l < levelOrBottom(m, hi); l++ {
			profile[m.varOfLevel[l]] = -1
		}
		if err := m.allsat(hi, profile, visit); err != nil {
			return err
		}
	}
	profile[v] = -1
	return nil
}
