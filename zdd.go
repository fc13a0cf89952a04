// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package dd

import "math/big"

// zdd.go implements the ZDD (zero-suppressed decision diagram) algebra of
// spec.md §4.6: families of sets represented as a DAG reduced by eliding
// nodes whose 1-child is the empty family. The recursive shape follows
// rudd/operations.go's apply idiom; the reduction rule and the specific
// operations (Union, Intersect, Difference, Product, Quotient, Remainder, Change,
// singleton/onset/offset) are grounded on go-zdd/node.go's AddNode contract
// and go-zdd/zdd.go's handle API, generalized to the negation-free ZDD arcs
// this package uses (ZDD arcs never carry the negation bit; see
// Manager.getOrCreateNodeZDD).

// ZDDEmpty and ZDDBase are the two ZDD terminals: the empty family (no sets) and
// the family containing exactly the empty set.
const (
	ZDDEmpty = FalseArc
	ZDDBase  = TrueArc
)

func (m *Manager) zddBranch(a Arc, v uint32) (lo, hi Arc) {
	if a.IsConstant() {
		return a, ZDDEmpty
	}
	n := &m.table.slots[a.Index()]
	if n.variable() != v {
		return a, ZDDEmpty
	}
	return n.arc0, n.arc1
}

func (m *Manager) zddTopVariable(f, g Arc) uint32 {
	return m.topVariable(f, g)
}

// Union returns the family union of f and g.
func (m *Manager) Union(f, g Arc) (Arc, error) {
	if f == g {
		return f, nil
	}
	if f == ZDDEmpty {
		return g, nil
	}
	if g == ZDDEmpty {
		return f, nil
	}
	if f > g {
		f, g = g, f
	}
	m.cacheMu.Lock()
	cached, ok := m.cache.lookup2(OpUnion, f, g)
	m.cacheMu.Unlock()
	if ok {
		return cached, nil
	}
	v := m.zddTopVariable(f, g)
	f0, f1 := m.zddBranch(f, v)
	g0, g1 := m.zddBranch(g, v)
	m.pushRef(f)
	m.pushRef(g)
	lo, err := m.Union(f0, g0)
	if err != nil {
		m.popRef()
		m.popRef()
		return 0, err
	}
	m.pushRef(lo)
	hi, err := m.Union(f1, g1)
	m.popRef()
	if err != nil {
		m.popRef()
		m.popRef()
		return 0, err
	}
	res, err := m.getOrCreateNodeZDD(v, lo, hi)
	m.popRef()
	m.popRef()
	if err != nil {
		return 0, err
	}
	m.cacheMu.Lock()
	m.cache.insert2(OpUnion, f, g, res)
	m.cacheMu.Unlock()
	return res, nil
}

// Intersect returns the family intersection of f and g.
func (m *Manager) Intersect(f, g Arc) (Arc, error) {
	if f == g {
		return f, nil
	}
	if f == ZDDEmpty || g == ZDDEmpty {
		return ZDDEmpty, nil
	}
	if f > g {
		f, g = g, f
	}
	m.cacheMu.Lock()
	cached, ok := m.cache.lookup2(OpIntersect, f, g)
	m.cacheMu.Unlock()
	if ok {
		return cached, nil
	}
	v := m.zddTopVariable(f, g)
	f0, f1 := m.zddBranch(f, v)
	g0, g1 := m.zddBranch(g, v)
	m.pushRef(f)
	m.pushRef(g)
	lo, err := m.Intersect(f0, g0)
	if err != nil {
		m.popRef()
		m.popRef()
		return 0, err
	}
	m.pushRef(lo)
	hi, err := m.Intersect(f1, g1)
	m.popRef()
	if err != nil {
		m.popRef()
		m.popRef()
		return 0, err
	}
	res, err := m.getOrCreateNodeZDD(v, lo, hi)
	m.popRef()
	m.popRef()
	if err != nil {
		return 0, err
	}
	m.cacheMu.Lock()
	m.cache.insert2(OpIntersect, f, g, res)
	m.cacheMu.Unlock()
	return res, nil
}

// Difference returns the family difference f \ g (sets in f but not in g).
func (m *Manager) Difference(f, g Arc) (Arc, error) {
	if f == g || f == ZDDEmpty {
		return ZDDEmpty, nil
	}
	if g == ZDDEmpty {
		return f, nil
	}
	m.cacheMu.Lock()
	cached, ok := m.cache.lookup2(OpDiff, f, g)
	m.cacheMu.Unlock()
	if ok {
		return cached, nil
	}
	v := m.zddTopVariable(f, g)
	f0, f1 := m.zddBranch(f, v)
	g0, g1 := m.zddBranch(g, v)
	m.pushRef(f)
	m.pushRef(g)
	lo, err := m.Difference(f0, g0)
	if err != nil {
		m.popRef()
		m.popRef()
		return 0, err
	}
	m.pushRef(lo)
	hi, err := m.Difference(f1, g1)
	m.popRef()
	if err != nil {
		m.popRef()
		m.popRef()
		return 0, err
	}
	res, err := m.getOrCreateNodeZDD(v, lo, hi)
	m.popRef()
	m.popRef()
	if err != nil {
		return 0, err
	}
	m.cacheMu.Lock()
	m.cache.insert2(OpDiff, f, g, res)
	m.cacheMu.Unlock()
	return res, nil
}

// Singleton returns the ZDD family containing exactly the set {v}.
func (m *Manager) Singleton(v uint32) Arc {
	return m.VarZDD(v)
}

// Change returns the family obtained by toggling membership of v in every
// set of f: sets containing v lose it, sets without it gain it. Grounded
// on go-zdd's "Change" combinator.
func (m *Manager) Change(f Arc, v uint32) (Arc, error) {
	m.cacheMu.Lock()
	k1 := key1Of(f, OpChange)
	k2 := uint64(v)
	idx := pairHash(k1, k2) & m.cache.mask
	e := &m.cache.slots[idx]
	if e.valid && e.key1 == k1 && e.key2 == k2 {
		cached := e.result
		m.cacheMu.Unlock()
		return cached, nil
	}
	m.cacheMu.Unlock()
	res, err := m.change(f, v)
	if err != nil {
		return 0, err
	}
	m.cacheMu.Lock()
	m.cache.slots[idx] = cacheEntry{key1: k1, key2: k2, result: res, valid: true}
	m.cacheMu.Unlock()
	return res, nil
}

func (m *Manager) change(f Arc, v uint32) (Arc, error) {
	if f == ZDDEmpty {
		return ZDDEmpty, nil
	}
	fv := m.variableOf(f)
	if f == ZDDBase || m.levelOfVar[fv] > m.levelOfVar[v] {
		return m.getOrCreateNodeZDD(v, ZDDEmpty, f)
	}
	if fv == v {
		lo, hi := m.zddBranch(f, v)
		return m.getOrCreateNodeZDD(v, hi, lo)
	}
	lo, hi := m.zddBranch(f, fv)
	m.pushRef(f)
	newLo, err := m.change(lo, v)
	if err != nil {
		m.popRef()
		return 0, err
	}
	m.pushRef(newLo)
	newHi, err := m.change(hi, v)
	m.popRef()
	if err != nil {
		m.popRef()
		return 0, err
	}
	res, err := m.getOrCreateNodeZDD(fv, newLo, newHi)
	m.popRef()
	return res, err
}

// Onset returns the sub-family of f restricted to sets containing v, with
// v itself removed from each (so Onset(f,v) ∪ (v added back) ∪ Offset(f,v)
// reconstructs f).
func (m *Manager) Onset(f Arc, v uint32) (Arc, error) {
	return m.onoff(f, v, OpOnset)
}

// Offset returns the sub-family of f restricted to sets not containing v.
func (m *Manager) Offset(f Arc, v uint32) (Arc, error) {
	return m.onoff(f, v, OpOffset)
}

// Onset0 returns the sub-family of f restricted to sets containing v, with v
// preserved in each set (unlike Onset, which strips it). spec.md §4.6 names
// this "onset0(v): sets containing v, v preserved".
func (m *Manager) Onset0(f Arc, v uint32) (Arc, error) {
	return m.onoff(f, v, OpOnset0)
}

func (m *Manager) onoff(f Arc, v uint32, op OpCode) (Arc, error) {
	m.cacheMu.Lock()
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
	var res Arc
	var err error
	switch op {
	case OpOnset:
		res, err = m.onset(f, v)
	case OpOnset0:
		res, err = m.onset0(f, v)
	default:
		res, err = m.offset(f, v)
	}
	if err != nil {
		return 0, err
	}
	m.cacheMu.Lock()
	m.cache.slots[idx] = cacheEntry{key1: k1, key2: k2, result: res, valid: true}
	m.cacheMu.Unlock()
	return res, nil
}

func (m *Manager) onset(f Arc, v uint32) (Arc, error) {
	if f.IsConstant() {
		return ZDDEmpty, nil
	}
	fv := m.variableOf(f)
	if m.levelOfVar[fv] > m.levelOfVar[v] {
		return ZDDEmpty, nil
	}
	if fv == v {
		_, hi := m.zddBranch(f, v)
		return hi, nil
	}
	lo, hi := m.zddBranch(f, fv)
	m.pushRef(f)
	newLo, err := m.onset(lo, v)
	if err != nil {
		m.popRef()
		return 0, err
	}
	m.pushRef(newLo)
	newHi, err := m.onset(hi, v)
	m.popRef()
	if err != nil {
		m.popRef()
		return 0, err
	}
	res, err := m.getOrCreateNodeZDD(fv, newLo, newHi)
	m.popRef()
	return res, err
}

// onset0 is onset's sibling: it keeps v in every surviving set instead of
// stripping it, by rebuilding the matching-level node with an empty 0-branch
// rather than returning the 1-branch directly.
func (m *Manager) onset0(f Arc, v uint32) (Arc, error) {
	if f.IsConstant() {
		return ZDDEmpty, nil
	}
	fv := m.variableOf(f)
	if m.levelOfVar[fv] > m.levelOfVar[v] {
		return ZDDEmpty, nil
	}
	if fv == v {
		_, hi := m.zddBranch(f, v)
		return m.getOrCreateNodeZDD(v, ZDDEmpty, hi)
	}
	lo, hi := m.zddBranch(f, fv)
	m.pushRef(f)
	newLo, err := m.onset0(lo, v)
	if err != nil {
		m.popRef()
		return 0, err
	}
	m.pushRef(newLo)
	newHi, err := m.onset0(hi, v)
	m.popRef()
	if err != nil {
		m.popRef()
		return 0, err
	}
	res, err := m.getOrCreateNodeZDD(fv, newLo, newHi)
	m.popRef()
	return res, err
}

func (m *Manager) offset(f Arc, v uint32) (Arc, error) {
	if f.IsConstant() {
		return f, nil
	}
	fv := m.variableOf(f)
	if m.levelOfVar[fv] > m.levelOfVar[v] {
		return f, nil
	}
	if fv == v {
		lo, _ := m.zddBranch(f, v)
		return lo, nil
	}
	lo, hi := m.zddBranch(f, fv)
	m.pushRef(f)
	newLo, err := m.offset(lo, v)
	if err != nil {
		m.popRef()
		return 0, err
	}
	m.pushRef(newLo)
	newHi, err := m.offset(hi, v)
	m.popRef()
	if err != nil {
		m.popRef()
		return 0, err
	}
	res, err := m.getOrCreateNodeZDD(fv, newLo, newHi)
	m.popRef()
	return res, err
}

// Product returns the "join": the family of unions a∪b for every a in f and
// b in g, also known as the ZDD cross-product. Grounded on the original
// implementation's product operator (see SPEC_FULL.md §4.7).
func (m *Manager) Product(f, g Arc) (Arc, error) {
	if f == ZDDEmpty || g == ZDDEmpty {
		return ZDDEmpty, nil
	}
	if f == ZDDBase {
		return g, nil
	}
	if g == ZDDBase {
		return f, nil
	}
	if f > g {
		f, g = g, f
	}
	m.cacheMu.Lock()
	cached, ok := m.cache.lookup2(OpProduct, f, g)
	m.cacheMu.Unlock()
	if ok {
		return cached, nil
	}
	v := m.zddTopVariable(f, g)
	f0, f1 := m.zddBranch(f, v)
	g0, g1 := m.zddBranch(g, v)
	m.pushRef(f)
	m.pushRef(g)
	p00, err := m.Product(f0, g0)
	if err != nil {
		m.popRef()
		m.popRef()
		return 0, err
	}
	m.pushRef(p00)
	p01, err := m.Product(f0, g1)
	if err != nil {
		m.popRef()
		m.popRef()
		m.popRef()
		return 0, err
	}
	m.pushRef(p01)
	p10, err := m.Product(f1, g0)
	if err != nil {
		m.popRef()
		m.popRef()
		m.popRef()
		m.popRef()
		return 0, err
	}
	m.pushRef(p10)
	p11, err := m.Product(f1, g1)
	m.popRef() // p10
	m.popRef() // p01
	if err != nil {
		m.popRef()
		m.popRef()
		return 0, err
	}
	m.pushRef(p11)
	hiUnion, err := m.Union(p01, p10)
	if err != nil {
		m.popRef()
		m.popRef()
		m.popRef()
		return 0, err
	}
	m.pushRef(hiUnion)
	hiUnion2, err := m.Union(hiUnion, p11)
	m.popRef() // hiUnion
	m.popRef() // p11
	if err != nil {
		m.popRef()
		m.popRef()
		m.popRef()
		return 0, err
	}
	res, err := m.getOrCreateNodeZDD(v, p00, hiUnion2)
	m.popRef() // p00
	m.popRef() // g
	m.popRef() // f
	if err != nil {
		return 0, err
	}
	m.cacheMu.Lock()
	m.cache.insert2(OpProduct, f, g, res)
	m.cacheMu.Unlock()
	return res, nil
}

// Quotient divides f by g, returning the largest family q such that
// Product(q, g) ⊆ f. Returns ErrEmptyDivisor if g is the empty family.
func (m *Manager) Quotient(f, g Arc) (Arc, error) {
	if g == ZDDEmpty {
		return 0, m.fail(ErrEmptyDivisor)
	}
	return m.quotient(f, g)
}

func (m *Manager) quotient(f, g Arc) (Arc, error) {
	if g == ZDDBase {
		return f, nil
	}
	if f == ZDDEmpty {
		return ZDDEmpty, nil
	}
	m.cacheMu.Lock()
	cached, ok := m.cache.lookup2(OpQuotient, f, g)
	m.cacheMu.Unlock()
	if ok {
		return cached, nil
	}
	gv := m.variableOf(g)
	if fv := m.variableOf(f); f != ZDDBase && m.levelOfVar[fv] < m.levelOfVar[gv] {
		// f's top variable is above g's, so no set of g contains it: each
		// cofactor of f is divided by g on its own.
		f0, f1 := m.zddBranch(f, fv)
		m.pushRef(f)
		lo, err := m.quotient(f0, g)
		m.pushRef(lo)
		hi, err2 := m.quotient(f1, g)
		m.popRef()
		m.popRef()
		if err != nil || err2 != nil {
			return 0, ErrOutOfMemory
		}
		return m.getOrCreateNodeZDD(fv, lo, hi)
	}
	if m.levelOfVar[gv] > m.levelOfVar[m.variableOf(f)] {
		return ZDDEmpty, nil
	}
	g0, g1 := m.zddBranch(g, gv)
	f0, f1 := m.zddBranch(f, gv)
	m.pushRef(f)
	m.pushRef(g)
	qHi, err := m.quotient(f1, g1)
	if err != nil {
		m.popRef()
		m.popRef()
		return 0, err
	}
	var res Arc
	if g0 == ZDDEmpty {
		res = qHi
	} else {
		m.pushRef(qHi)
		qLo, err2 := m.quotient(f0, g0)
		m.popRef()
		if err2 != nil {
			m.popRef()
			m.popRef()
			return 0, err2
		}
		m.pushRef(qHi)
		m.pushRef(qLo)
		res, err = m.Intersect(qHi, qLo)
		m.popRef()
		m.popRef()
		if err != nil {
			m.popRef()
			m.popRef()
			return 0, err
		}
	}
	m.popRef()
	m.popRef()
	m.cacheMu.Lock()
	m.cache.insert2(OpQuotient, f, g, res)
	m.cacheMu.Unlock()
	return res, nil
}

// Remainder returns f \ Product(Quotient(f,g), g), the part of f not
// captured by dividing through by g.
func (m *Manager) Remainder(f, g Arc) (Arc, error) {
	q, err := m.Quotient(f, g)
	if err != nil {
		return 0, err
	}
	p, err := m.Product(q, g)
	if err != nil {
		return 0, err
	}
	return m.Difference(f, p)
}

// CountZDD returns the number of sets in the family f, using arbitrary
// precision arithmetic.
func (m *Manager) CountZDD(f Arc) *big.Int {
	memo := make(map[Arc]*big.Int)
	return m.countZDD(f, memo)
}

func (m *Manager) countZDD(f Arc, memo map[Arc]*big.Int) *big.Int {
	if f == ZDDEmpty {
		return big.NewInt(0)
	}
	if f == ZDDBase {
		return big.NewInt(1)
	}
	if v, ok := memo[f]; ok {
		return v
	}
	fv := m.variableOf(f)
	lo, hi := m.zddBranch(f, fv)
	res := new(big.Int).Add(m.countZDD(lo, memo), m.countZDD(hi, memo))
	memo[f] = res
	return res
}
