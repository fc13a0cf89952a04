// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package dd

import (
	"math/big"
	"math/rand"
	"sort"
	"sync"
)

// index.go implements the indexed-order ZDD subsystem of spec.md §4.10: a
// lazily-built, bottom-up cardinality table over one ZDD family that turns
// "rank of a set" / "k-th set" / weighted optimum queries into O(height)
// traversals instead of O(family size) enumerations. Grounded on
// original_source/src/zdd_index.cpp's build_index_impl, which caches one
// count per reachable node and guards the build with std::call_once; here
// that becomes a sync.Once on each *IndexedZDD, so every value returned by
// Manager.Index builds its own table once, on first use.

// IndexedZDD is a read-only index over one ZDD family (identified by its
// root Arc), built on first use and then reused for every subsequent
// query. Build it with Manager.Index; it becomes stale if the family's
// Manager is garbage collected and its nodes reclaimed, so callers must
// Ref the root before indexing it and keep that reference alive for as
// long as the index is in use.
type IndexedZDD struct {
	m    *Manager
	root Arc

	once  sync.Once
	err   error
	count map[Arc]*big.Int // exact cardinality of the sub-family rooted at each node

	// nodesByLevel and height back the structural queries (Height/Size/
	// SizeAtLevel): the same BFS that fills count also buckets every
	// reachable non-terminal node by its level, so these queries are O(1)
	// lookups once the index is built.
	nodesByLevel map[uint32][]Arc
	height       uint32
	size         int
}

// Index returns the (lazily built) IndexedZDD for root. The first query
// against the returned value triggers build_index_impl's equivalent; every
// later query, on this object or copies of it, reuses the cached table.
func (m *Manager) Index(root Arc) *IndexedZDD {
	return &IndexedZDD{m: m, root: root}
}

func (ix *IndexedZDD) ensureBuilt() error {
	ix.once.Do(func() {
		ix.count = make(map[Arc]*big.Int)
		ix.err = ix.build()
	})
	return ix.err
}

func (ix *IndexedZDD) build() error {
	m := ix.m
	if ix.root == ZDDEmpty {
		ix.count[ZDDEmpty] = big.NewInt(0)
		return nil
	}
	if ix.root == ZDDBase {
		ix.count[ZDDBase] = big.NewInt(1)
		return nil
	}
	// BFS to collect every reachable node, then fold counts bottom-up by
	// level (children always sit at a level strictly greater than their
	// parent, so processing levels from the bottom up is always correct).
	visited := map[Arc]bool{ix.root: true}
	queue := []Arc{ix.root}
	byLevel := make(map[uint32][]Arc)
	for len(queue) > 0 {
		a := queue[0]
		queue = queue[1:]
		if !a.IsConstant() {
			v := m.variableOf(a)
			lvl := m.levelOfVar[v]
			byLevel[lvl] = append(byLevel[lvl], a)
		}
		lo, hi := m.zddBranch(a, m.variableOf(a))
		for _, c := range []Arc{lo, hi} {
			if c.IsConstant() {
				continue
			}
			if !visited[c] {
				visited[c] = true
				queue = append(queue, c)
			}
		}
	}
	ix.count[ZDDEmpty] = big.NewInt(0)
	ix.count[ZDDBase] = big.NewInt(1)

	levels := make([]uint32, 0, len(byLevel))
	for lvl := range byLevel {
		levels = append(levels, lvl)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] > levels[j] }) // bottom first
	for _, lvl := range levels {
		for _, a := range byLevel[lvl] {
			lo, hi := m.zddBranch(a, m.variableOf(a))
			cLo := ix.countOf(lo)
			cHi := ix.countOf(hi)
			ix.count[a] = new(big.Int).Add(cLo, cHi)
		}
		if lvl > ix.height {
			ix.height = lvl
		}
		ix.size += len(byLevel[lvl])
	}
	ix.nodesByLevel = byLevel
	return nil
}

func (ix *IndexedZDD) countOf(a Arc) *big.Int {
	if c, ok := ix.count[a]; ok {
		return c
	}
	return big.NewInt(0)
}

// Count returns the exact number of sets in the indexed family.
func (ix *IndexedZDD) Count() (*big.Int, error) {
	if err := ix.ensureBuilt(); err != nil {
		return nil, err
	}
	return new(big.Int).Set(ix.countOf(ix.root)), nil
}

// Height returns the deepest level reached by any node reachable from the
// indexed root (0 if the root is a terminal), per spec.md §4.10's
// "height" structural query.
func (ix *IndexedZDD) Height() (uint32, error) {
	if err := ix.ensureBuilt(); err != nil {
		return 0, err
	}
	return ix.height, nil
}

// Size returns the total number of distinct non-terminal nodes reachable
// from the indexed root, per spec.md §4.10's "size" structural query.
func (ix *IndexedZDD) Size() (int, error) {
	if err := ix.ensureBuilt(); err != nil {
		return 0, err
	}
	return ix.size, nil
}

// SizeAtLevel returns the number of reachable nodes branching on the
// variable at level L, per spec.md §4.10's "size_at_level(L)".
func (ix *IndexedZDD) SizeAtLevel(level uint32) (int, error) {
	if err := ix.ensureBuilt(); err != nil {
		return 0, err
	}
	return len(ix.nodesByLevel[level]), nil
}

// dictionary order: a set is represented by the sorted slice of variables
// it contains, low-numbered level first, matching the order Scanset/
// Makeset use in the BDD side of this package.

// OrderOf returns the rank (0-based) of set among all the sets of the
// indexed family in dictionary order (ordered by variable level, "not in
// the set" sorting before "in the set" at each level), or
// ErrInvalidArgument if set is not a member of the family.
func (ix *IndexedZDD) OrderOf(set []uint32) (*big.Int, error) {
	if err := ix.ensureBuilt(); err != nil {
		return nil, err
	}
	m := ix.m
	member := make(map[uint32]bool, len(set))
	for _, v := range set {
		member[v] = true
	}
	rank := big.NewInt(0)
	a := ix.root
	consumed := 0
	for !a.IsConstant() {
		v := m.variableOf(a)
		lo, hi := m.zddBranch(a, v)
		if member[v] {
			rank.Add(rank, ix.countOf(lo)) // every set skipping v sorts first
			consumed++
			a = hi
		} else {
			a = lo
		}
	}
	if a != ZDDBase || consumed != len(member) {
		return nil, m.fail(ErrInvalidArgument)
	}
	return rank, nil
}

// GetSet returns the rank-th set (0-based, dictionary order) of the
// indexed family, as a sorted slice of variable numbers.
func (ix *IndexedZDD) GetSet(rank *big.Int) ([]uint32, error) {
	if err := ix.ensureBuilt(); err != nil {
		return nil, err
	}
	m := ix.m
	total, _ := ix.Count()
	if rank.Sign() < 0 || rank.Cmp(total) >= 0 {
		return nil, m.fail(ErrInvalidArgument)
	}
	remaining := new(big.Int).Set(rank)
	var out []uint32
	a := ix.root
	for !a.IsConstant() {
		v := m.variableOf(a)
		lo, hi := m.zddBranch(a, v)
		loCount := ix.countOf(lo)
		if remaining.Cmp(loCount) < 0 {
			a = lo
		} else {
			remaining.Sub(remaining, loCount)
			out = append(out, v)
			a = hi
		}
	}
	return out, nil
}

// WeightFunc assigns a weight to a variable, used by MaxWeight/MinWeight/
// SumWeight below.
type WeightFunc func(v uint32) *big.Int

// MaxWeight returns the maximum, over every set in the family, of the sum
// of its members' weights, and one set that achieves it.
func (ix *IndexedZDD) MaxWeight(w WeightFunc) (*big.Int, []uint32, error) {
	return ix.optWeight(w, true)
}

// MinWeight returns the minimum weight over every set in the family, and
// one set that achieves it.
func (ix *IndexedZDD) MinWeight(w WeightFunc) (*big.Int, []uint32, error) {
	return ix.optWeight(w, false)
}

func (ix *IndexedZDD) optWeight(w WeightFunc, max bool) (*big.Int, []uint32, error) {
	if err := ix.ensureBuilt(); err != nil {
		return nil, nil, err
	}
	if ix.root == ZDDEmpty {
		return nil, nil, ErrInvalidArgument
	}
	m := ix.m
	memo := make(map[Arc]*big.Int)
	var rec func(a Arc) *big.Int
	rec = func(a Arc) *big.Int {
		if a == ZDDBase {
			return big.NewInt(0)
		}
		if a == ZDDEmpty {
			return nil // infeasible branch
		}
		if v, ok := memo[a]; ok {
			return v
		}
		v := m.variableOf(a)
		lo, hi := m.zddBranch(a, v)
		loW := rec(lo)
		hiW := rec(hi)
		var best *big.Int
		if hiW != nil {
			best = new(big.Int).Add(hiW, w(v))
		}
		if loW != nil && (best == nil || betterWeight(loW, best, max)) {
			best = loW
		}
		memo[a] = best
		return best
	}
	best := rec(ix.root)
	if best == nil {
		return nil, nil, ErrInvalidArgument
	}
	// reconstruct one achieving set
	var out []uint32
	a := ix.root
	for a != ZDDBase {
		v := m.variableOf(a)
		lo, hi := m.zddBranch(a, v)
		loW := rec(lo)
		hiW := rec(hi)
		takeHigh := false
		if hiW != nil {
			cand := new(big.Int).Add(hiW, w(v))
			if loW == nil || betterWeight(cand, loW, max) || cand.Cmp(loW) == 0 {
				takeHigh = true
			}
		}
		if takeHigh {
			out = append(out, v)
			a = hi
		} else {
			a = lo
		}
	}
	return best, out, nil
}

func betterWeight(a, b *big.Int, max bool) bool {
	if max {
		return a.Cmp(b) > 0
	}
	return a.Cmp(b) < 0
}

// SumWeight returns the sum, over every set in the family, of the sum of
// its members' weights (i.e. sum over all sets and all members).
func (ix *IndexedZDD) SumWeight(w WeightFunc) (*big.Int, error) {
	if err := ix.ensureBuilt(); err != nil {
		return nil, err
	}
	m := ix.m
	// sumMemo[a] = (total weight summed across every set reachable from a,
	// counting each set's own total), used together with countOf to fold
	// "parent contributes w(v) * count(child)" at each branch.
	sumMemo := make(map[Arc]*big.Int)
	var rec func(a Arc) *big.Int
	rec = func(a Arc) *big.Int {
		if a.IsConstant() {
			return big.NewInt(0)
		}
		if s, ok := sumMemo[a]; ok {
			return s
		}
		v := m.variableOf(a)
		lo, hi := m.zddBranch(a, v)
		sum := new(big.Int).Add(rec(lo), rec(hi))
		sum.Add(sum, new(big.Int).Mul(w(v), ix.countOf(hi)))
		sumMemo[a] = sum
		return sum
	}
	return rec(ix.root), nil
}

// Iterator produces every set of the indexed family, one at a time.
type Iterator interface {
	Next() ([]uint32, bool)
}

type dictIterator struct {
	ix      *IndexedZDD
	total   *big.Int
	cur     *big.Int
	step    *big.Int
	done    bool
}

// DictAscIterator walks the family in ascending dictionary order.
func (ix *IndexedZDD) DictAscIterator() (Iterator, error) {
	if err := ix.ensureBuilt(); err != nil {
		return nil, err
	}
	total, _ := ix.Count()
	return &dictIterator{ix: ix, total: total, cur: big.NewInt(0), step: big.NewInt(1)}, nil
}

// DictDescIterator walks the family in descending dictionary order.
func (ix *IndexedZDD) DictDescIterator() (Iterator, error) {
	if err := ix.ensureBuilt(); err != nil {
		return nil, err
	}
	total, _ := ix.Count()
	start := new(big.Int).Sub(total, big.NewInt(1))
	return &dictIterator{ix: ix, total: total, cur: start, step: big.NewInt(-1)}, nil
}

func (it *dictIterator) Next() ([]uint32, bool) {
	if it.done || it.cur.Sign() < 0 || it.cur.Cmp(it.total) >= 0 {
		return nil, false
	}
	set, err := it.ix.GetSet(it.cur)
	if err != nil {
		it.done = true
		return nil, false
	}
	it.cur = new(big.Int).Add(it.cur, it.step)
	return set, true
}

// randomIterator draws ranks uniformly without replacement via a
// Fisher-Yates shuffle over [0, count), then replays GetSet in that order
// -- cheap because ranks, not sets, are what gets shuffled.
type randomIterator struct {
	ix    *IndexedZDD
	perm  []int64
	pos   int
}

// RandomIterator enumerates every set of the family exactly once, in a
// uniformly random order.
func (ix *IndexedZDD) RandomIterator(rng *rand.Rand) (Iterator, error) {
	if err := ix.ensureBuilt(); err != nil {
		return nil, err
	}
	total, _ := ix.Count()
	if !total.IsInt64() {
		return nil, ErrInvalidArgument
	}
	n := total.Int64()
	perm := rng.Perm(int(n))
	perm64 := make([]int64, len(perm))
	for i, p := range perm {
		perm64[i] = int64(p)
	}
	return &randomIterator{ix: ix, perm: perm64}, nil
}

func (it *randomIterator) Next() ([]uint32, bool) {
	if it.pos >= len(it.perm) {
		return nil, false
	}
	rank := big.NewInt(it.perm[it.pos])
	it.pos++
	set, err := it.ix.GetSet(rank)
	if err != nil {
		return nil, false
	}
	return set, true
}

// weightIterator walks sets in increasing (or decreasing) weight order by
// repeatedly extracting the current optimum and excluding it. This is only
// efficient for a modest number of draws; spec.md §4.10 documents it as a
// "best-first" iterator, not a full enumeration strategy.
type weightIterator struct {
	ix      *IndexedZDD
	w       WeightFunc
	max     bool
	remain  Arc
	m       *Manager
}

// WeightMaxIterator yields sets in decreasing weight order.
func (ix *IndexedZDD) WeightMaxIterator(w WeightFunc) (Iterator, error) {
	if err := ix.ensureBuilt(); err != nil {
		return nil, err
	}
	return &weightIterator{ix: ix, w: w, max: true, remain: ix.root, m: ix.m}, nil
}

// WeightMinIterator yields sets in increasing weight order.
func (ix *IndexedZDD) WeightMinIterator(w WeightFunc) (Iterator, error) {
	if err := ix.ensureBuilt(); err != nil {
		return nil, err
	}
	return &weightIterator{ix: ix, w: w, max: false, remain: ix.root, m: ix.m}, nil
}

func (it *weightIterator) Next() ([]uint32, bool) {
	if it.remain == ZDDEmpty {
		return nil, false
	}
	sub := it.ix.m.Index(it.remain)
	_, set, err := sub.optWeight(it.w, it.max)
	if err != nil {
		return nil, false
	}
	cube, err := it.m.cubeOf(set)
	if err != nil {
		return nil, false
	}
	next, err := it.m.Difference(it.remain, cube)
	if err != nil {
		return nil, false
	}
	it.remain = next
	return set, true
}

// cubeOf builds the ZDD family containing exactly the single set vars.
func (m *Manager) cubeOf(vars []uint32) (Arc, error) {
	res := ZDDBase
	for i := len(vars) - 1; i >= 0; i-- {
		var err error
		res, err = m.getOrCreateNodeZDD(vars[i], ZDDEmpty, res)
		if err != nil {
			return 0, err
		}
	}
	return res, nil
}
