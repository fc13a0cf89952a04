// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package dd

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

// scenarios_test.go exercises the concrete cross-cutting scenarios of
// spec.md §8 end to end, rather than one connective/operation at a time.
// Uses testify/require for the richer failure messages these multi-step
// invariant checks benefit from, following how OgurtsovAndrei-Thesis
// reserves testify for its own integration-level tests.

// support returns the sorted set of variables appearing in f, derived from
// Allnodes' level stream via the manager's var/level bijection.
func support(t *testing.T, m *Manager, f Arc) []uint32 {
	t.Helper()
	seen := make(map[uint32]bool)
	require.NoError(t, m.Allnodes(func(id, level, low, high int) error {
		seen[m.VarOfLevel(uint32(level))] = true
		return nil
	}, f))
	out := make([]uint32, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	return out
}

// TestScenarioAndOrDuality is spec.md §8 concrete scenario 1.
func TestScenarioAndOrDuality(t *testing.T) {
	m := newTestManager(t, 3)
	x1, x2, x3 := m.VarBDD(1), m.VarBDD(2), m.VarBDD(3)

	and, err := m.And(x1, x2)
	require.NoError(t, err)
	f, err := m.Or(and, x3)
	require.NoError(t, err)

	require.Equal(t, 0, m.Count(f).Cmp(big.NewInt(5)))

	got := support(t, m, f)
	require.ElementsMatch(t, []uint32{1, 2, 3}, got)

	one, err := m.SatOne(f)
	require.NoError(t, err)
	require.NotEqual(t, FalseArc, one)

	require.Equal(t, f, m.Not(m.Not(f)))
}

// TestScenarioZDDPowerSet is spec.md §8 concrete scenario 2.
func TestScenarioZDDPowerSet(t *testing.T) {
	m := newTestManager(t, 4)

	ps := ZDDBase
	for lvl := int(m.TopLevel()); lvl >= 1; lvl-- {
		v := m.VarOfLevel(uint32(lvl))
		var err error
		ps, err = m.getOrCreateNodeZDD(v, ps, ps)
		require.NoError(t, err)
	}

	require.Equal(t, 0, m.CountZDD(ps).Cmp(big.NewInt(16)))

	ix := m.Index(ps)
	total, err := ix.Count()
	require.NoError(t, err)
	for i := int64(0); i < total.Int64(); i++ {
		set, err := ix.GetSet(big.NewInt(i))
		require.NoError(t, err)
		rank, err := ix.OrderOf(set)
		require.NoError(t, err)
		require.Equal(t, 0, rank.Cmp(big.NewInt(i)))
	}

	weight := func(v uint32) *big.Int { return big.NewInt(int64(v)) }
	sum, err := ix.SumWeight(weight)
	require.NoError(t, err)
	require.Equal(t, 0, sum.Cmp(big.NewInt(80)))
}

// TestHamiltonianPathSourceTarget is spec.md §8 concrete scenario 4: K3,
// source 0, target 2, exactly one path (0-1-2) satisfies the degree
// constraints.
func TestHamiltonianPathSourceTarget(t *testing.T) {
	spec := hamPathSpec{
		n:      3,
		edges:  [][2]int{{0, 1}, {1, 2}, {0, 2}},
		source: 0,
		target: 2,
	}
	m := newTestManager(t, spec.Variables())
	family, err := m.BuildDFS(context.Background(), spec)
	require.NoError(t, err)
	require.Equal(t, 0, m.CountZDD(family).Cmp(big.NewInt(1)))

	ix := m.Index(family)
	_, err = ix.OrderOf([]uint32{1, 2}) // edges (0,1) and (1,2)
	require.NoError(t, err)
}

// TestScenarioBuildersAgree is spec.md §8 concrete scenario 5: BFS, DFS and
// parallel-BFS builders produce the same Arc for the same Spec and Manager.
func TestScenarioBuildersAgree(t *testing.T) {
	spec := hamGraphK4()
	m := newTestManager(t, spec.Variables())
	ctx := context.Background()

	dfs, err := m.BuildDFS(ctx, spec)
	require.NoError(t, err)
	bfs, err := m.BuildBFS(ctx, spec)
	require.NoError(t, err)
	mp, err := m.BuildBFSParallel(ctx, spec)
	require.NoError(t, err)

	require.Equal(t, dfs, bfs, "BuildDFS and BuildBFS should produce the same Arc")
	require.Equal(t, dfs, mp, "BuildDFS and BuildBFSParallel should produce the same Arc")
}

// TestScenarioRestrictCofactor is spec.md §8 concrete scenario 6.
func TestScenarioRestrictCofactor(t *testing.T) {
	m := newTestManager(t, 3)
	x1, x2, x3 := m.VarBDD(1), m.VarBDD(2), m.VarBDD(3)
	and, err := m.And(x1, x2)
	require.NoError(t, err)
	f, err := m.Or(and, x3)
	require.NoError(t, err)

	v := uint32(2)
	at1, err := m.At1(f, v)
	require.NoError(t, err)
	at0, err := m.At0(f, v)
	require.NoError(t, err)

	left, err := m.And(m.VarBDD(v), at1)
	require.NoError(t, err)
	right, err := m.And(m.Not(m.VarBDD(v)), at0)
	require.NoError(t, err)
	want, err := m.Or(left, right)
	require.NoError(t, err)

	require.Equal(t, f, want)
}
