// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package dd

import (
	"math/big"
	"testing"
)

// nqueens computes the number of solutions to the N-Queens problem. It
// builds a BDD with N*N variables corresponding to the squares of the
// board, laid out column-major like:
//
//	0 4  8 12
//	1 5  9 13
//	2 6 10 14
//	3 7 11 15
//
// Adapted from rudd/nqueens_test.go, re-expressed over Arc and the
// negation-edge connectives of bdd.go.
func nqueens(tb testing.TB, N int) *big.Int {
	m, err := NewManager(N*N, WithNodeSize(N*N*256), WithCacheSize(N*N*64), WithCacheRatio(30))
	if err != nil {
		tb.Fatal(err)
	}
	// Results of and/or are kept across later calls, so they are Ref'd: GC
	// reclaims any node that is neither referenced nor on the refstack.
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
	imp := func(f, g Arc) Arc {
		res, err := m.Imp(f, g)
		if err != nil {
			tb.Fatal(err)
		}
		return res
	}

	X := make([][]Arc, N)
	for i := range X {
		X[i] = make([]Arc, N)
		for j := range X[i] {
			X[i][j] = m.VarBDD(uint32(i*N + j + 1))
		}
	}

	queen := TrueArc
	for i := 0; i < N; i++ {
		e := FalseArc
		for j := 0; j < N; j++ {
			e = or(e, X[i][j])
		}
		queen = and(queen, e)
	}

	for i := 0; i < N; i++ {
		for j := 0; j < N; j++ {
			a := TrueArc
			for k := 0; k < N; k++ {
				if k != j {
					a = and(a, imp(X[i][j], m.Not(X[i][k])))
				}
			}
			b := TrueArc
			for k := 0; k < N; k++ {
				if k != i {
					b = and(b, imp(X[i][j], m.Not(X[k][j])))
				}
			}
			c := TrueArc
			for k := 0; k < N; k++ {
				ll := k - i + j
				if ll >= 0 && ll < N && k != i {
					c = and(c, imp(X[i][j], m.Not(X[k][ll])))
				}
			}
			d := TrueArc
			for k := 0; k < N; k++ {
				ll := i + j - k
				if ll >= 0 && ll < N && k != i {
					d = and(d, imp(X[i][j], m.Not(X[k][ll])))
				}
			}
			queen = and(queen, a, b, c, d)
		}
	}
	return m.Count(queen)
}

func TestNQueens(t *testing.T) {
	var nqueensTests = []struct {
		N        int
		expected int64
	}{
		{4, 2},
		{8, 92},
		{9, 352},
	}
	for _, tt := range nqueensTests {
		actual := nqueens(t, tt.N)
		if actual.Cmp(big.NewInt(tt.expected)) != 0 {
			t.Errorf("NQueens(%d): expected %d, got %s", tt.N, tt.expected, actual)
		}
	}
}

func BenchmarkNQueens(b *testing.B) {
	for n := 0; n < b.N; n++ {
		nqueens(b, 8)
	}
}
