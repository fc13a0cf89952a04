// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package dd

import (
	"math/big"
	"testing"
)

// milner is an example of using BDD for state space computation, directly
// adapted from the Buddy distribution's example of the same name. It
// computes the reachable states of a system of N cyclers, each with a
// critical/trying/home-like cycle; the system has a known closed-form state
// count used below to check the fixpoint the test computes.
func milner(tb testing.TB, fast bool, varnum int, opts ...ManagerOption) (*Manager, Arc) {
	m, err := NewManager(varnum*6, opts...)
	if err != nil {
		tb.Fatal(err)
	}
	c := make([]Arc, varnum)
	cp := make([]Arc, varnum)
	t := make([]Arc, varnum)
	tp := make([]Arc, varnum)
	h := make([]Arc, varnum)
	hp := make([]Arc, varnum)

	for n := 0; n < varnum; n++ {
		base := uint32(n*6 + 1)
		c[n] = m.VarBDD(base)
		cp[n] = m.VarBDD(base + 1)
		t[n] = m.VarBDD(base + 2)
		tp[n] = m.VarBDD(base + 3)
		h[n] = m.VarBDD(base + 4)
		hp[n] = m.VarBDD(base + 5)
	}

	nvar := make([]uint32, varnum*3)
	pvar := make([]uint32, varnum*3)
	for n := 0; n < varnum*3; n++ {
		nvar[n] = uint32(n*2 + 1)
		pvar[n] = uint32(n*2 + 2)
	}
	replacer, err := m.NewReplacer(pvar, nvar)
	if err != nil {
		tb.Fatal(err)
	}

	// Every diagram kept across later calls is Ref'd: GC reclaims any node
	// that is neither referenced nor on the manager's refstack.
	and := func(fs ...Arc) Arc {
		res, err := m.And(fs...)
		if err != nil {
			tb.Fatal(err)
		}
		return m.Ref(res)
	}
	or := func(fs ...Arc) Arc {
		res, err := m.Or(fs...)
		if err != nil {
			tb.Fatal(err)
		}
		return m.Ref(res)
	}
	equiv := func(f, g Arc) Arc {
		res, err := m.Equiv(f, g)
		if err != nil {
			tb.Fatal(err)
		}
		return m.Ref(res)
	}

	I := and(c[0], m.Not(h[0]), m.Not(t[0]))
	for i := 1; i < varnum; i++ {
		I = and(I, m.Not(c[i]), m.Not(h[i]), m.Not(t[i]))
	}

	// A builds a BDD expressing that every variable but z is unchanged.
	A := func(x, y []Arc, z int) Arc {
		res := TrueArc
		for i := 0; i < varnum; i++ {
			if i != z {
				res = and(res, equiv(x[i], y[i]))
			}
		}
		return res
	}

	T := FalseArc // the monolithic transition relation
	for i := 0; i < varnum; i++ {
		P1 := and(c[i], m.Not(cp[i]), tp[i], m.Not(t[i]), hp[i], A(c, cp, i), A(t, tp, i), A(h, hp, i))
		P2 := and(h[i], m.Not(hp[i]), cp[(i+1)%varnum], A(c, cp, (i+1)%varnum), A(h, hp, i), A(t, tp, varnum))
		E := and(t[i], m.Not(tp[i]), A(t, tp, i), A(h, hp, varnum), A(c, cp, varnum))
		T = or(T, P1, or(P2, E))
	}

	R := I // reachable state space
	for {
		prev := R
		var step Arc
		if fast {
			step, err = m.AndExist(R, T, nvar...)
		} else {
			step, err = m.And(R, T)
			if err == nil {
				step, err = m.Exist(step, nvar...)
			}
		}
		if err != nil {
			tb.Fatal(err)
		}
		step, err = m.Replace(step, replacer)
		if err != nil {
			tb.Fatal(err)
		}
		R, err = m.Or(step, R)
		if err != nil {
			tb.Fatal(err)
		}
		m.Ref(R)
		if prev == R {
			break
		}
	}
	return m, R
}

func milnerExpected(N int) *big.Int {
	expected := big.NewInt(int64(N))
	pow := big.NewInt(0)
	pow.SetBit(pow, 4*N+1, 1)
	return expected.Mul(expected, pow)
}

func TestMilnerSlow(t *testing.T) {
	for _, N := range []int{4, 5, 7, 11} {
		fast, Rfast := milner(t, true, N, WithNodeSize(100), WithCacheSize(25), WithCacheRatio(25))
		slow, Rslow := milner(t, false, N, WithNodeSize(100), WithCacheSize(25), WithCacheRatio(25))
		expected := milnerExpected(N)
		fastresult := fast.Count(Rfast)
		slowresult := slow.Count(Rslow)
		if fastresult.Cmp(expected) != 0 || slowresult.Cmp(expected) != 0 {
			t.Errorf("Milner(%d): expected %s, got %s (fast) and %s (slow)", N, expected, fastresult, slowresult)
		}
	}
}

func TestMilner(t *testing.T) {
	for _, N := range []int{16, 20} {
		m, R := milner(t, true, N, WithNodeSize(100000))
		expected := milnerExpected(N)
		result := m.Count(R)
		if result.Cmp(expected) != 0 {
			t.Errorf("Milner(%d): expected %s, got %s", N, expected, result)
		}
	}
}

func BenchmarkMilner30(b *testing.B) {
	for n := 0; n < b.N; n++ {
		milner(b, true, 30, WithNodeSize(1000000), WithCacheSize(250000), WithCacheRatio(25))
	}
}
