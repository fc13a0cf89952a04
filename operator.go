// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package dd

// operator.go keeps rudd/operator.go's Operator enum as a thin dispatch
// layer over the named connectives in bdd.go (And, Or, Xor, Diff, Imp,
// Equiv, ...): callers that already have an Operator value in hand (e.g.
// read from a serialized expression) can call Apply once instead of a type
// switch. The truth-table-driven opres dispatch rudd itself used is gone:
// every connective here already reduces to applyAnd/applyXor via De Morgan,
// so there is no separate per-operator recursive traversal left to table.
type Operator int

const (
	OPand Operator = iota
	OPxor
	OPor
	OPnand
	OPnor
	OPimp
	OPbiimp
	OPdiff
	OPless
	OPinvimp
)

var opnames = [10]string{
	OPand:    "and",
	OPxor:    "xor",
	OPor:     "or",
	OPnand:   "nand",
	OPnor:    "nor",
	OPimp:    "imp",
	OPbiimp:  "biimp",
	OPdiff:   "diff",
	OPless:   "less",
	OPinvimp: "invimp",
}

func (op Operator) String() string {
	return opnames[op]
}

// Apply computes f op g, dispatching to the named connective in bdd.go.
func (m *Manager) Apply(f, g Arc, op Operator) (Arc, error) {
	switch op {
	case OPand:
		return m.And(f, g)
	case OPor:
		return m.Or(f, g)
	case OPxor:
		return m.Xor(f, g)
	case OPdiff:
		return m.Diff(f, g)
	case OPimp:
		return m.Imp(f, g)
	case OPbiimp:
		return m.Equiv(f, g)
	case OPnand:
		res, err := m.And(f, g)
		if err != nil {
			return 0, err
		}
		return res.Negated(), nil
	case OPnor:
		res, err := m.Or(f, g)
		if err != nil {
			return 0, err
		}
		return res.Negated(), nil
	case OPless:
		return m.Diff(g, f)
	case OPinvimp:
		return m.Imp(g, f)
	default:
		return 0, m.fail(ErrInvalidArgument)
	}
}
