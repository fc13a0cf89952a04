// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package dd

import (
	"context"
	"math/big"
	"testing"
)

// takenTopState/takenTopSpec is the mirror image of firstVarSpec
// (builder_test.go): valid iff the top variable *is* taken, rather than not
// taken, used to build a contradiction/tautology pair with firstVarSpec for
// testing BDDAnd/BDDOr.
type takenTopState struct{ decided bool }

func (s *takenTopState) Clone() State { c := *s; return &c }
func (s *takenTopState) Hash() uint64 {
	if s.decided {
		return 1
	}
	return 0
}
func (s *takenTopState) Equal(other State) bool {
	o, ok := other.(*takenTopState)
	return ok && o.decided == s.decided
}

type takenTopSpec struct{ n int }

func (g takenTopSpec) Kind() Kind          { return KindBDD }
func (g takenTopSpec) Variables() int      { return g.n }
func (g takenTopSpec) InitialState() State { return &takenTopState{} }

func (g takenTopSpec) GetChild(ctx context.Context, state State, level int, take bool) (State, error) {
	s := state.(*takenTopState)
	if s.decided {
		return s, nil
	}
	if !take {
		return nil, errPrunedBranch
	}
	next := &takenTopState{decided: true}
	if level == 1 {
		return next, nil
	}
	return &SkipState{Inner: next, SkipTo: 1}, nil
}

func (g takenTopSpec) IsValid(state State) bool { return state.(*takenTopState).decided }

func countBDD(t *testing.T, m *Manager, ctx context.Context, spec Spec) *big.Int {
	t.Helper()
	f, err := m.BuildDFS(ctx, spec)
	if err != nil {
		t.Fatal(err)
	}
	return m.Count(f)
}

func countZDD(t *testing.T, m *Manager, ctx context.Context, spec Spec) *big.Int {
	t.Helper()
	f, err := m.BuildDFS(ctx, spec)
	if err != nil {
		t.Fatal(err)
	}
	return m.CountZDD(f)
}

func TestBDDAndContradiction(t *testing.T) {
	m := newTestManager(t, 5)
	ctx := context.Background()
	got := countBDD(t, m, ctx, BDDAnd(firstVarSpec{n: 5}, takenTopSpec{n: 5}))
	if got.Sign() != 0 {
		t.Errorf("BDDAnd(not x1, x1): got %s, want 0", got)
	}
}

func TestBDDAndIdempotent(t *testing.T) {
	m := newTestManager(t, 5)
	ctx := context.Background()
	got := countBDD(t, m, ctx, BDDAnd(firstVarSpec{n: 5}, firstVarSpec{n: 5}))
	want := big.NewInt(1 << 4)
	if got.Cmp(want) != 0 {
		t.Errorf("BDDAnd(not x1, not x1): got %s, want %s", got, want)
	}
}

func TestBDDOrTautology(t *testing.T) {
	m := newTestManager(t, 5)
	ctx := context.Background()
	got := countBDD(t, m, ctx, BDDOr(firstVarSpec{n: 5}, takenTopSpec{n: 5}))
	want := big.NewInt(1 << 5)
	if got.Cmp(want) != 0 {
		t.Errorf("BDDOr(not x1, x1): got %s, want %s", got, want)
	}
}

func TestBDDOrIdempotent(t *testing.T) {
	m := newTestManager(t, 5)
	ctx := context.Background()
	got := countBDD(t, m, ctx, BDDOr(firstVarSpec{n: 5}, firstVarSpec{n: 5}))
	want := big.NewInt(1 << 4)
	if got.Cmp(want) != 0 {
		t.Errorf("BDDOr(not x1, not x1): got %s, want %s", got, want)
	}
}

func TestZDDIntersectionDisjointSizes(t *testing.T) {
	m := newTestManager(t, 6)
	ctx := context.Background()
	got := countZDD(t, m, ctx, ZDDIntersection(chooseKSpec{n: 6, k: 2}, chooseKSpec{n: 6, k: 3}))
	if got.Sign() != 0 {
		t.Errorf("ZDDIntersection(2-subsets, 3-subsets): got %s, want 0", got)
	}
}

func TestZDDIntersectionSameFamily(t *testing.T) {
	m := newTestManager(t, 6)
	ctx := context.Background()
	got := countZDD(t, m, ctx, ZDDIntersection(chooseKSpec{n: 6, k: 2}, chooseKSpec{n: 6, k: 2}))
	want := big.NewInt(choose(6, 2))
	if got.Cmp(want) != 0 {
		t.Errorf("ZDDIntersection(2-subsets, 2-subsets): got %s, want %s", got, want)
	}
}

func TestZDDUnionDisjointSizes(t *testing.T) {
	m := newTestManager(t, 6)
	ctx := context.Background()
	got := countZDD(t, m, ctx, ZDDUnion(chooseKSpec{n: 6, k: 2}, chooseKSpec{n: 6, k: 3}))
	want := big.NewInt(choose(6, 2) + choose(6, 3))
	if got.Cmp(want) != 0 {
		t.Errorf("ZDDUnion(2-subsets, 3-subsets): got %s, want %s", got, want)
	}
}

func TestZDDUnionSameFamily(t *testing.T) {
	m := newTestManager(t, 6)
	ctx := context.Background()
	got := countZDD(t, m, ctx, ZDDUnion(chooseKSpec{n: 6, k: 2}, chooseKSpec{n: 6, k: 2}))
	want := big.NewInt(choose(6, 2))
	if got.Cmp(want) != 0 {
		t.Errorf("ZDDUnion(2-subsets, 2-subsets): got %s, want %s", got, want)
	}
}

// edgeState/edgeSpec forces the top and bottom variables both taken, leaving
// every level strictly between them don't-care: a middle run long enough for
// BDDLookahead to have something to collapse.
type edgeState struct{}

func (s *edgeState) Clone() State          { return &edgeState{} }
func (s *edgeState) Hash() uint64          { return 0 }
func (s *edgeState) Equal(other State) bool { _, ok := other.(*edgeState); return ok }

type edgeSpec struct{ n int }

func (g edgeSpec) Kind() Kind          { return KindBDD }
func (g edgeSpec) Variables() int      { return g.n }
func (g edgeSpec) InitialState() State { return &edgeState{} }

func (g edgeSpec) GetChild(ctx context.Context, state State, level int, take bool) (State, error) {
	if (level == g.n || level == 1) && !take {
		return nil, errPrunedBranch
	}
	return state, nil
}

func (g edgeSpec) IsValid(state State) bool { return true }

func TestBDDLookaheadPreservesSemantics(t *testing.T) {
	m := newTestManager(t, 5)
	ctx := context.Background()
	spec := edgeSpec{n: 5}
	plain, err := m.BuildDFS(ctx, spec)
	if err != nil {
		t.Fatal(err)
	}
	wrapped, err := m.BuildDFS(ctx, BDDLookahead(spec))
	if err != nil {
		t.Fatal(err)
	}
	if plain != wrapped {
		t.Errorf("BDDLookahead changed the canonical arc: plain %v, wrapped %v", plain, wrapped)
	}
	want := big.NewInt(1 << 3)
	if got := m.Count(wrapped); got.Cmp(want) != 0 {
		t.Errorf("Count after BDDLookahead: got %s, want %s", got, want)
	}
}

func TestBDDLookaheadHonorsSkipState(t *testing.T) {
	// firstVarSpec itself already produces a SkipState from GetChild;
	// BDDLookahead must not choke on a state that's already collapsed.
	m := newTestManager(t, 5)
	ctx := context.Background()
	spec := firstVarSpec{n: 5}
	plain, err := m.BuildDFS(ctx, spec)
	if err != nil {
		t.Fatal(err)
	}
	wrapped, err := m.BuildDFS(ctx, BDDLookahead(spec))
	if err != nil {
		t.Fatal(err)
	}
	if plain != wrapped {
		t.Errorf("BDDLookahead changed the canonical arc over a SkipState-producing spec: plain %v, wrapped %v", plain, wrapped)
	}
}

// zddEdgeSpec is edgeSpec's ZDD-kind twin, used to exercise ZDDLookahead:
// the present branch is forced empty outside the first/last level.
type zddEdgeSpec struct{ n int }

func (g zddEdgeSpec) Kind() Kind          { return KindZDD }
func (g zddEdgeSpec) Variables() int      { return g.n }
func (g zddEdgeSpec) InitialState() State { return &edgeState{} }

func (g zddEdgeSpec) GetChild(ctx context.Context, state State, level int, take bool) (State, error) {
	if level != g.n && level != 1 && take {
		return nil, errPrunedBranch
	}
	return state, nil
}

func (g zddEdgeSpec) IsValid(state State) bool { return true }

func TestZDDLookaheadPreservesSemantics(t *testing.T) {
	m := newTestManager(t, 5)
	ctx := context.Background()
	spec := zddEdgeSpec{n: 5}
	plain, err := m.BuildDFS(ctx, spec)
	if err != nil {
		t.Fatal(err)
	}
	wrapped, err := m.BuildDFS(ctx, ZDDLookahead(spec))
	if err != nil {
		t.Fatal(err)
	}
	if plain != wrapped {
		t.Errorf("ZDDLookahead changed the canonical arc: plain %v, wrapped %v", plain, wrapped)
	}
}

// unreducedDepth walks every root-to-terminal path and reports the number of
// internal nodes on the longest one, used to confirm BuildUnreduced never
// collapses a don't-care run the way BuildDFS/BuildBFS would.
func unreducedDepth(n *UnreducedNode) int {
	if n.Terminal {
		return 0
	}
	lo, hi := unreducedDepth(n.Lo), unreducedDepth(n.Hi)
	if hi > lo {
		lo = hi
	}
	return lo + 1
}

func TestBuildUnreducedNoCollapse(t *testing.T) {
	m := newTestManager(t, 5)
	ctx := context.Background()
	spec := edgeSpec{n: 5}
	root, err := m.BuildUnreduced(ctx, BDDUnreduction(spec))
	if err != nil {
		t.Fatal(err)
	}
	if got := unreducedDepth(root); got != spec.n {
		t.Errorf("BuildUnreduced depth: got %d, want %d (one node per level)", got, spec.n)
	}
}

func TestBuildUnreducedReducesToSameArc(t *testing.T) {
	m := newTestManager(t, 5)
	ctx := context.Background()
	spec := edgeSpec{n: 5}
	plain, err := m.BuildDFS(ctx, spec)
	if err != nil {
		t.Fatal(err)
	}
	root, err := m.BuildUnreduced(ctx, BDDUnreduction(spec))
	if err != nil {
		t.Fatal(err)
	}
	reduced, err := m.ReduceBDD(root)
	if err != nil {
		t.Fatal(err)
	}
	if plain != reduced {
		t.Errorf("BDDUnreduction round trip: plain %v, reduced %v", plain, reduced)
	}
}

func TestBuildUnreducedZDDNoCollapse(t *testing.T) {
	m := newTestManager(t, 6)
	ctx := context.Background()
	spec := chooseKSpec{n: 6, k: 2}
	root, err := m.BuildUnreduced(ctx, ZDDUnreduction(spec))
	if err != nil {
		t.Fatal(err)
	}
	if got := unreducedDepth(root); got != spec.n {
		t.Errorf("BuildUnreduced depth: got %d, want %d (one node per level)", got, spec.n)
	}
}

func TestBuildUnreducedZDDReducesToSameArc(t *testing.T) {
	m := newTestManager(t, 6)
	ctx := context.Background()
	spec := chooseKSpec{n: 6, k: 2}
	plain, err := m.BuildDFS(ctx, spec)
	if err != nil {
		t.Fatal(err)
	}
	root, err := m.BuildUnreduced(ctx, ZDDUnreduction(spec))
	if err != nil {
		t.Fatal(err)
	}
	reduced, err := m.ReduceZDD(root)
	if err != nil {
		t.Fatal(err)
	}
	if plain != reduced {
		t.Errorf("ZDDUnreduction round trip: plain %v, reduced %v", plain, reduced)
	}
}
