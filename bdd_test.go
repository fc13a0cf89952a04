// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package dd

import (
	"math/big"
	"testing"
)

func newTestManager(tb testing.TB, nvars int) *Manager {
	m, err := NewManager(nvars)
	if err != nil {
		tb.Fatal(err)
	}
	return m
}

// TestDeMorgan checks that Nand/Nor reduce correctly through And/Or and
// negation, the identity the negation-edge encoding is built to exploit.
func TestDeMorgan(t *testing.T) {
	m := newTestManager(t, 3)
	x1, x2 := m.VarBDD(1), m.VarBDD(2)

	and, err := m.And(x1, x2)
	if err != nil {
		t.Fatal(err)
	}
	or, err := m.Or(m.Not(x1), m.Not(x2))
	if err != nil {
		t.Fatal(err)
	}
	if and.Negated() != or {
		t.Errorf("De Morgan: Not(And(x1,x2)) should equal Or(Not(x1),Not(x2))")
	}
}

func TestIteAlgebraicLaw(t *testing.T) {
	m := newTestManager(t, 3)
	f, g, h := m.VarBDD(1), m.VarBDD(2), m.VarBDD(3)

	ite, err := m.Ite(f, g, h)
	if err != nil {
		t.Fatal(err)
	}
	fg, err := m.And(f, g)
	if err != nil {
		t.Fatal(err)
	}
	notfh, err := m.And(m.Not(f), h)
	if err != nil {
		t.Fatal(err)
	}
	want, err := m.Or(fg, notfh)
	if err != nil {
		t.Fatal(err)
	}
	if ite != want {
		t.Errorf("Ite(f,g,h) should equal (f&g)|(!f&h)")
	}
}

func TestNotInvolution(t *testing.T) {
	m := newTestManager(t, 2)
	f, err := m.And(m.VarBDD(1), m.Not(m.VarBDD(2)))
	if err != nil {
		t.Fatal(err)
	}
	if m.Not(m.Not(f)) != f {
		t.Errorf("Not(Not(f)) should equal f")
	}
}

func TestExistForallDuality(t *testing.T) {
	m := newTestManager(t, 3)
	f, err := m.Or(m.VarBDD(1), m.VarBDD(2))
	if err != nil {
		t.Fatal(err)
	}
	exist, err := m.Exist(f, 1)
	if err != nil {
		t.Fatal(err)
	}
	forall, err := m.Forall(m.Not(f), 1)
	if err != nil {
		t.Fatal(err)
	}
	if exist != m.Not(forall) {
		t.Errorf("Exist(f,v) should equal Not(Forall(Not(f),v))")
	}
}

func TestCount(t *testing.T) {
	m := newTestManager(t, 3)
	f, err := m.Or(m.VarBDD(1), m.VarBDD(2), m.VarBDD(3))
	if err != nil {
		t.Fatal(err)
	}
	// Or of 3 independent variables is false for exactly one of the 8
	// assignments.
	if got := m.Count(f); got.Cmp(big.NewInt(7)) != 0 {
		t.Errorf("Count(x1|x2|x3): expected 7, got %s", got)
	}
}

// TestCountOfBareConstant guards against the gap-scaling shift being wrong
// for a constant with no node of its own: every one of m's 2^nvars
// assignments satisfies TrueArc, and none satisfies FalseArc.
func TestCountOfBareConstant(t *testing.T) {
	m := newTestManager(t, 3)
	want := new(big.Int).Lsh(big.NewInt(1), uint(m.TopLevel()))
	if got := m.Count(TrueArc); got.Cmp(want) != 0 {
		t.Errorf("Count(TrueArc): expected %s, got %s", want, got)
	}
	if got := m.Count(FalseArc); got.Sign() != 0 {
		t.Errorf("Count(FalseArc): expected 0, got %s", got)
	}
}

func TestAndExistMatchesAndThenExist(t *testing.T) {
	m := newTestManager(t, 5)
	f, err := m.Or(m.VarBDD(1), m.VarBDD(2))
	if err != nil {
		t.Fatal(err)
	}
	g := m.VarBDD(3)

	fused, err := m.AndExist(f, g, 2, 3)
	if err != nil {
		t.Fatal(err)
	}
	conj, err := m.And(f, g)
	if err != nil {
		t.Fatal(err)
	}
	staged, err := m.Exist(conj, 2, 3)
	if err != nil {
		t.Fatal(err)
	}
	if fused != staged {
		t.Errorf("AndExist(f,g,vars) should equal Exist(And(f,g),vars)")
	}
}

func TestMakesetScanset(t *testing.T) {
	m := newTestManager(t, 5)
	cube, err := m.Makeset([]uint32{2, 3, 5})
	if err != nil {
		t.Fatal(err)
	}
	got := m.Scanset(cube)
	want := []uint32{2, 3, 5}
	if len(got) != len(want) {
		t.Fatalf("Scanset: expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Scanset: expected %v, got %v", want, got)
		}
	}
}

func TestReplace(t *testing.T) {
	m := newTestManager(t, 4)
	f, err := m.And(m.VarBDD(1), m.Not(m.VarBDD(2)))
	if err != nil {
		t.Fatal(err)
	}
	r, err := m.NewReplacer([]uint32{1, 2}, []uint32{3, 4})
	if err != nil {
		t.Fatal(err)
	}
	got, err := m.Replace(f, r)
	if err != nil {
		t.Fatal(err)
	}
	want, err := m.And(m.VarBDD(3), m.Not(m.VarBDD(4)))
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("Replace({1:3,2:4}, x1 & !x2): expected x3 & !x4")
	}
}

func TestAllsatCountsMinterms(t *testing.T) {
	m := newTestManager(t, 3)
	f, err := m.And(m.VarBDD(1), m.VarBDD(2))
	if err != nil {
		t.Fatal(err)
	}
	acc := 0
	if err := m.Allsat(f, func(profile []int) error {
		acc++
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	// x3 is a don't-care, counted once.
	if acc != 1 {
		t.Errorf("Allsat(x1&x2): expected 1 satisfying profile, got %d", acc)
	}
}

func TestApplyDispatch(t *testing.T) {
	m := newTestManager(t, 2)
	x1, x2 := m.VarBDD(1), m.VarBDD(2)
	direct, err := m.And(x1, x2)
	if err != nil {
		t.Fatal(err)
	}
	viaApply, err := m.Apply(x1, x2, OPand)
	if err != nil {
		t.Fatal(err)
	}
	if direct != viaApply {
		t.Errorf("Apply(f,g,OPand) should equal And(f,g)")
	}
}
