// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package dd

import "testing"

func TestTerminalTableGetOrCreate(t *testing.T) {
	tt := NewTerminalTable[string]()
	if got := tt.Value(0); got != "" {
		t.Errorf("index 0 should hold the zero value, got %q", got)
	}
	a := tt.GetOrCreate("a")
	b := tt.GetOrCreate("b")
	if a == b {
		t.Error("distinct values must get distinct indices")
	}
	if again := tt.GetOrCreate("a"); again != a {
		t.Errorf("GetOrCreate must be idempotent: got %d, want %d", again, a)
	}
	if tt.Value(a) != "a" || tt.Value(b) != "b" {
		t.Error("Value must round-trip what GetOrCreate registered")
	}
}

func TestGetOrCreateTerminalTableIsManagerScopedSingleton(t *testing.T) {
	m := newTestManager(t, 2)
	a := GetOrCreateTerminalTable[int](m, "weights")
	b := GetOrCreateTerminalTable[int](m, "weights")
	if a != b {
		t.Error("GetOrCreateTerminalTable must return the same table for the same name")
	}
	c := GetOrCreateTerminalTable[int](m, "other")
	if a == c {
		t.Error("GetOrCreateTerminalTable must return distinct tables for distinct names")
	}
}

func TestMTBDDSharesCommonChildReduction(t *testing.T) {
	m := newTestManager(t, 2)
	mt := NewMTBDD[string](m, "TestMTBDDSharesCommonChildReduction")

	leaf := mt.Terminal("x")
	n, err := mt.GetOrCreateNode(1, leaf, leaf)
	if err != nil {
		t.Fatal(err)
	}
	if n != leaf {
		t.Error("a node whose children are equal must collapse to that child")
	}

	other := mt.Terminal("y")
	real, err := mt.GetOrCreateNode(1, leaf, other)
	if err != nil {
		t.Fatal(err)
	}
	if real.IsTerminal() {
		t.Error("a node with distinct children must not collapse to a terminal")
	}
	if mt.Variable(real) != 1 {
		t.Errorf("Variable: got %d, want 1", mt.Variable(real))
	}
	if mt.Child(real, false) != leaf || mt.Child(real, true) != other {
		t.Error("Child must return the registered low/high arcs")
	}

	again, err := mt.GetOrCreateNode(1, leaf, other)
	if err != nil {
		t.Fatal(err)
	}
	if again != real {
		t.Error("GetOrCreateNode must be idempotent for the same (v,lo,hi)")
	}
}

func TestMTZDDSuppressesZeroTerminalHighChild(t *testing.T) {
	m := newTestManager(t, 2)
	mt := NewMTZDD[int](m, "TestMTZDDSuppressesZeroTerminalHighChild")

	zero := mt.Terminal(0) // registers at index 0, the reserved zero terminal
	lo := mt.Terminal(7)

	n, err := mt.GetOrCreateNode(1, lo, zero)
	if err != nil {
		t.Fatal(err)
	}
	if n != lo {
		t.Error("MTZDD must suppress a node whose high child is the zero terminal")
	}

	nonzero := mt.Terminal(9)
	kept, err := mt.GetOrCreateNode(1, lo, nonzero)
	if err != nil {
		t.Fatal(err)
	}
	if kept.IsTerminal() {
		t.Error("a node whose high child is not the zero terminal must be kept")
	}
}

func TestMTBDDValueRoundtrip(t *testing.T) {
	m := newTestManager(t, 1)
	mt := NewMTBDD[float64](m, "TestMTBDDValueRoundtrip")
	a := mt.Terminal(3.5)
	if mt.Value(a) != 3.5 {
		t.Errorf("Value: got %v, want 3.5", mt.Value(a))
	}
}
