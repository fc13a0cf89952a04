// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package dd

import "context"

// combinators.go implements spec.md §4.8's eight Spec combinators: pairwise
// boolean/set operations (BDDAnd, BDDOr, ZDDUnion, ZDDIntersection) and
// structural rewrites (BDDLookahead, ZDDLookahead, BDDUnreduction,
// ZDDUnreduction) that all operate on an existing Spec rather than on an
// already-built diagram. Grounded on
// original_source/include/sbdd2/tdzdd/DdSpecOp.hpp's BinaryOperation/
// BddAnd/BddOr/ZddUnion/ZddIntersection/BddLookahead/ZddLookahead/
// BddUnreduction/ZddUnreduction template classes, re-expressed over this
// package's Spec/State/SkipState contract (spec.go) instead of DdSpecOp's
// raw byte-array state layout.

// decidedState is a State whose membership is already fixed regardless of
// level, used by the boolean/set combinators below to short-circuit the
// remaining descent once one operand has forced the combined outcome (the
// same role DdSpecOp's sentinel 0/negative get_child return values play).
type decidedState struct{ val bool }

func (s *decidedState) Clone() State { return &decidedState{val: s.val} }
func (s *decidedState) Hash() uint64 {
	if s.val {
		return 1
	}
	return 0
}
func (s *decidedState) Equal(other State) bool {
	o, ok := other.(*decidedState)
	return ok && o.val == s.val
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// binaryState tracks the joint descent of two operand Specs that may have a
// different number of variables or take their own SkipState shortcuts:
// level1/level2 record the level each operand is next due to branch at,
// state1/state2 its live state (nil once that operand has resolved, with
// val1/val2 holding the decided membership), following DdSpecOp.hpp's
// BinaryOperation::level1/level2/state1/state2 bookkeeping.
type binaryState struct {
	level1 int
	state1 State
	val1   bool
	level2 int
	state2 State
	val2   bool
}

func (s *binaryState) Clone() State {
	c := &binaryState{level1: s.level1, val1: s.val1, level2: s.level2, val2: s.val2}
	if s.state1 != nil {
		c.state1 = s.state1.Clone()
	}
	if s.state2 != nil {
		c.state2 = s.state2.Clone()
	}
	return c
}

func (s *binaryState) Hash() uint64 {
	h := uint64(s.level1)*314159257 + uint64(s.level2)*271828171
	if s.state1 != nil {
		h += s.state1.Hash() * 171828143
	} else if s.val1 {
		h++
	}
	if s.state2 != nil {
		h += s.state2.Hash() * 141421333
	} else if s.val2 {
		h += 2
	}
	return h
}

func (s *binaryState) Equal(other State) bool {
	o, ok := other.(*binaryState)
	if !ok || s.level1 != o.level1 || s.level2 != o.level2 {
		return false
	}
	if (s.state1 == nil) != (o.state1 == nil) || (s.state2 == nil) != (o.state2 == nil) {
		return false
	}
	if s.state1 == nil {
		if s.val1 != o.val1 {
			return false
		}
	} else if !s.state1.Equal(o.state1) {
		return false
	}
	if s.state2 == nil {
		if s.val2 != o.val2 {
			return false
		}
	} else if !s.state2.Equal(o.state2) {
		return false
	}
	return true
}

// resolveAtZero converts a (level, state) pair reached at level 0 into its
// decided membership, the point at which a Spec's own IsValid becomes
// authoritative.
func resolveAtZero(spec Spec, level int, state State) (int, State, bool) {
	if level == 0 {
		return 0, nil, spec.IsValid(state)
	}
	return level, state, false
}

func newBinaryState(s1, s2 Spec) *binaryState {
	bs := &binaryState{}
	bs.level1, bs.state1, bs.val1 = resolveAtZero(s1, s1.Variables(), s1.InitialState())
	bs.level2, bs.state2, bs.val2 = resolveAtZero(s2, s2.Variables(), s2.InitialState())
	return bs
}

// cloneBinary copies a *binaryState's fields without deep-cloning the
// operand states, since descending one operand below always rebinds its
// state1/state2 field to a fresh value before it is ever shared further.
func cloneBinary(bs *binaryState) *binaryState {
	c := *bs
	return &c
}

// bddAndSpec is spec.md's bdd_and: the conjunction of two BDD Specs,
// grounded on DdSpecOp.hpp's BddAnd.
type bddAndSpec struct{ spec1, spec2 Spec }

// BDDAnd builds the Spec for the conjunction of s1 and s2: a state is valid
// only if both operands consider it valid. Pruning either operand (a
// GetChild error) prunes the conjunction immediately.
func BDDAnd(s1, s2 Spec) Spec { return &bddAndSpec{spec1: s1, spec2: s2} }

func (s *bddAndSpec) Kind() Kind     { return KindBDD }
func (s *bddAndSpec) Variables() int { return maxInt(s.spec1.Variables(), s.spec2.Variables()) }

func (s *bddAndSpec) InitialState() State {
	bs := newBinaryState(s.spec1, s.spec2)
	if (bs.state1 == nil && !bs.val1) || (bs.state2 == nil && !bs.val2) {
		return &decidedState{val: false}
	}
	return bs
}

func (s *bddAndSpec) GetChild(ctx context.Context, state State, level int, take bool) (State, error) {
	if d, ok := state.(*decidedState); ok {
		return d, nil
	}
	next := cloneBinary(state.(*binaryState))
	if next.state1 != nil && next.level1 == level {
		child, err := s.spec1.GetChild(ctx, next.state1, level, take)
		if err != nil {
			return nil, err
		}
		st, lvl := unwrapSkip(child, level-1)
		next.level1, next.state1, next.val1 = resolveAtZero(s.spec1, lvl, st)
		if next.state1 == nil && !next.val1 {
			return &SkipState{Inner: &decidedState{val: false}, SkipTo: 0}, nil
		}
	}
	if next.state2 != nil && next.level2 == level {
		child, err := s.spec2.GetChild(ctx, next.state2, level, take)
		if err != nil {
			return nil, err
		}
		st, lvl := unwrapSkip(child, level-1)
		next.level2, next.state2, next.val2 = resolveAtZero(s.spec2, lvl, st)
		if next.state2 == nil && !next.val2 {
			return &SkipState{Inner: &decidedState{val: false}, SkipTo: 0}, nil
		}
	}
	return next, nil
}

func (s *bddAndSpec) IsValid(state State) bool {
	if d, ok := state.(*decidedState); ok {
		return d.val
	}
	bs := state.(*binaryState)
	return bs.val1 && bs.val2
}

// bddOrSpec is spec.md's bdd_or: the disjunction of two BDD Specs, grounded
// on DdSpecOp.hpp's BddOr.
type bddOrSpec struct{ spec1, spec2 Spec }

// BDDOr builds the Spec for the disjunction of s1 and s2: a state is valid
// if either operand considers it valid. An operand resolving to true forces
// the disjunction to true for the remaining descent.
func BDDOr(s1, s2 Spec) Spec { return &bddOrSpec{spec1: s1, spec2: s2} }

func (s *bddOrSpec) Kind() Kind     { return KindBDD }
func (s *bddOrSpec) Variables() int { return maxInt(s.spec1.Variables(), s.spec2.Variables()) }

func (s *bddOrSpec) InitialState() State {
	bs := newBinaryState(s.spec1, s.spec2)
	if (bs.state1 == nil && bs.val1) || (bs.state2 == nil && bs.val2) {
		return &decidedState{val: true}
	}
	return bs
}

func (s *bddOrSpec) GetChild(ctx context.Context, state State, level int, take bool) (State, error) {
	if d, ok := state.(*decidedState); ok {
		return d, nil
	}
	next := cloneBinary(state.(*binaryState))
	if next.state1 != nil && next.level1 == level {
		child, err := s.spec1.GetChild(ctx, next.state1, level, take)
		if err != nil {
			next.level1, next.state1, next.val1 = 0, nil, false
		} else {
			st, lvl := unwrapSkip(child, level-1)
			next.level1, next.state1, next.val1 = resolveAtZero(s.spec1, lvl, st)
		}
		if next.state1 == nil && next.val1 {
			return &SkipState{Inner: &decidedState{val: true}, SkipTo: 0}, nil
		}
	}
	if next.state2 != nil && next.level2 == level {
		child, err := s.spec2.GetChild(ctx, next.state2, level, take)
		if err != nil {
			next.level2, next.state2, next.val2 = 0, nil, false
		} else {
			st, lvl := unwrapSkip(child, level-1)
			next.level2, next.state2, next.val2 = resolveAtZero(s.spec2, lvl, st)
		}
		if next.state2 == nil && next.val2 {
			return &SkipState{Inner: &decidedState{val: true}, SkipTo: 0}, nil
		}
	}
	if next.state1 == nil && next.state2 == nil && !next.val1 && !next.val2 {
		return &SkipState{Inner: &decidedState{val: false}, SkipTo: 0}, nil
	}
	return next, nil
}

func (s *bddOrSpec) IsValid(state State) bool {
	if d, ok := state.(*decidedState); ok {
		return d.val
	}
	bs := state.(*binaryState)
	return bs.val1 || bs.val2
}

// zddIntersectionSpec is spec.md's zdd_intersection: the set intersection
// of two ZDD Specs, grounded on DdSpecOp.hpp's ZddIntersection. An operand
// not due at the current level (it has already committed, via its own
// reduction, to never branching here) forces the intersection empty the
// instant the other operand takes the present (1) branch, since an operand
// that does not track a variable can never contain it.
type zddIntersectionSpec struct{ spec1, spec2 Spec }

// ZDDIntersection builds the Spec for the set intersection of s1 and s2.
func ZDDIntersection(s1, s2 Spec) Spec { return &zddIntersectionSpec{spec1: s1, spec2: s2} }

func (s *zddIntersectionSpec) Kind() Kind { return KindZDD }
func (s *zddIntersectionSpec) Variables() int {
	return maxInt(s.spec1.Variables(), s.spec2.Variables())
}

func (s *zddIntersectionSpec) InitialState() State {
	bs := newBinaryState(s.spec1, s.spec2)
	if (bs.state1 == nil && !bs.val1) || (bs.state2 == nil && !bs.val2) {
		return &decidedState{val: false}
	}
	return bs
}

func (s *zddIntersectionSpec) GetChild(ctx context.Context, state State, level int, take bool) (State, error) {
	if d, ok := state.(*decidedState); ok {
		return d, nil
	}
	next := cloneBinary(state.(*binaryState))
	if next.state1 != nil && next.level1 == level {
		child, err := s.spec1.GetChild(ctx, next.state1, level, take)
		if err != nil {
			return nil, err
		}
		st, lvl := unwrapSkip(child, level-1)
		next.level1, next.state1, next.val1 = resolveAtZero(s.spec1, lvl, st)
	} else if take {
		next.level1, next.state1, next.val1 = 0, nil, false
	}
	if next.state1 == nil && !next.val1 {
		return &SkipState{Inner: &decidedState{val: false}, SkipTo: 0}, nil
	}
	if next.state2 != nil && next.level2 == level {
		child, err := s.spec2.GetChild(ctx, next.state2, level, take)
		if err != nil {
			return nil, err
		}
		st, lvl := unwrapSkip(child, level-1)
		next.level2, next.state2, next.val2 = resolveAtZero(s.spec2, lvl, st)
	} else if take {
		next.level2, next.state2, next.val2 = 0, nil, false
	}
	if next.state2 == nil && !next.val2 {
		return &SkipState{Inner: &decidedState{val: false}, SkipTo: 0}, nil
	}
	return next, nil
}

func (s *zddIntersectionSpec) IsValid(state State) bool {
	if d, ok := state.(*decidedState); ok {
		return d.val
	}
	bs := state.(*binaryState)
	return bs.val1 && bs.val2
}

// zddUnionSpec is spec.md's zdd_union: the set union of two ZDD Specs,
// grounded on DdSpecOp.hpp's ZddUnion. Unlike intersection, a resolved
// operand does not immediately decide the union (the other operand might
// still contribute); the two are only combined once both have resolved.
type zddUnionSpec struct{ spec1, spec2 Spec }

// ZDDUnion builds the Spec for the set union of s1 and s2.
func ZDDUnion(s1, s2 Spec) Spec { return &zddUnionSpec{spec1: s1, spec2: s2} }

func (s *zddUnionSpec) Kind() Kind     { return KindZDD }
func (s *zddUnionSpec) Variables() int { return maxInt(s.spec1.Variables(), s.spec2.Variables()) }

func (s *zddUnionSpec) InitialState() State {
	bs := newBinaryState(s.spec1, s.spec2)
	if bs.state1 == nil && bs.state2 == nil {
		return &decidedState{val: bs.val1 || bs.val2}
	}
	return bs
}

func (s *zddUnionSpec) GetChild(ctx context.Context, state State, level int, take bool) (State, error) {
	if d, ok := state.(*decidedState); ok {
		return d, nil
	}
	next := cloneBinary(state.(*binaryState))
	if next.state1 != nil && next.level1 == level {
		child, err := s.spec1.GetChild(ctx, next.state1, level, take)
		if err != nil {
			next.level1, next.state1, next.val1 = 0, nil, false
		} else {
			st, lvl := unwrapSkip(child, level-1)
			next.level1, next.state1, next.val1 = resolveAtZero(s.spec1, lvl, st)
		}
	} else if take {
		next.level1, next.state1, next.val1 = 0, nil, false
	}
	if next.state2 != nil && next.level2 == level {
		child, err := s.spec2.GetChild(ctx, next.state2, level, take)
		if err != nil {
			next.level2, next.state2, next.val2 = 0, nil, false
		} else {
			st, lvl := unwrapSkip(child, level-1)
			next.level2, next.state2, next.val2 = resolveAtZero(s.spec2, lvl, st)
		}
	} else if take {
		next.level2, next.state2, next.val2 = 0, nil, false
	}
	if next.state1 == nil && next.state2 == nil {
		return &SkipState{Inner: &decidedState{val: next.val1 || next.val2}, SkipTo: 0}, nil
	}
	return next, nil
}

func (s *zddUnionSpec) IsValid(state State) bool {
	if d, ok := state.(*decidedState); ok {
		return d.val
	}
	bs := state.(*binaryState)
	return bs.val1 || bs.val2
}

// lookaheadRootState marks a root state whose lookahead probe (run during
// InitialState, before the builder has called GetChild even once) already
// collapsed past one or more top levels. It can only ever appear as the
// state argument of the very first GetChild call: BuildDFS/BuildBFS pass
// spec.InitialState() straight into Hash/GetChild without ever unwrapping a
// SkipState (only a GetChild return value goes through unwrapSkip), so
// InitialState itself must never return a *SkipState directly. Returning
// this marker instead and resolving it on the first GetChild call (where a
// SkipState return is legal) gets the same jump without violating that.
type lookaheadRootState struct {
	target      State
	targetLevel int
}

func (s *lookaheadRootState) Clone() State {
	return &lookaheadRootState{target: s.target.Clone(), targetLevel: s.targetLevel}
}
func (s *lookaheadRootState) Hash() uint64 { return s.target.Hash()*31 + uint64(s.targetLevel) }
func (s *lookaheadRootState) Equal(other State) bool {
	o, ok := other.(*lookaheadRootState)
	return ok && o.targetLevel == s.targetLevel && s.target.Equal(o.target)
}

// bddLookaheadSpec is spec.md's bdd_lookahead: a BDD Spec wrapper that
// greedily probes ahead, level by level, collapsing any run of levels whose
// two children turn out equal into a single SkipState jump. Grounded on
// DdSpecOp.hpp's BddLookahead.
type bddLookaheadSpec struct{ inner Spec }

// BDDLookahead wraps a BDD Spec so the builder never materializes a node
// whose low and high children coincide, matching the BDD reduction rule a
// level ahead of time instead of only after the fact.
func BDDLookahead(inner Spec) Spec { return &bddLookaheadSpec{inner: inner} }

func (s *bddLookaheadSpec) Kind() Kind     { return KindBDD }
func (s *bddLookaheadSpec) Variables() int { return s.inner.Variables() }

func (s *bddLookaheadSpec) InitialState() State {
	top := s.inner.Variables()
	st, lvl := s.lookahead(context.Background(), s.inner.InitialState(), top)
	if lvl == top {
		return st
	}
	return &lookaheadRootState{target: st, targetLevel: lvl}
}

func (s *bddLookaheadSpec) GetChild(ctx context.Context, state State, level int, take bool) (State, error) {
	if r, ok := state.(*lookaheadRootState); ok {
		return &SkipState{Inner: r.target, SkipTo: r.targetLevel}, nil
	}
	child, err := s.inner.GetChild(ctx, state, level, take)
	if err != nil {
		return nil, err
	}
	st, lvl := unwrapSkip(child, level-1)
	st, lvl = s.lookahead(ctx, st, lvl)
	return wrapSkip(st, lvl, level-1), nil
}

func (s *bddLookaheadSpec) IsValid(state State) bool {
	if r, ok := state.(*lookaheadRootState); ok {
		return s.inner.IsValid(r.target)
	}
	return s.inner.IsValid(state)
}

// lookahead repeatedly probes both children of state at level: if they
// turn out equal (same resulting state and level), the level is redundant
// under the BDD reduction rule and descent continues from the shared
// result; otherwise, or as soon as either child is pruned, the probe stops
// and level is real.
func (s *bddLookaheadSpec) lookahead(ctx context.Context, state State, level int) (State, int) {
	for level >= 1 {
		lo, errLo := s.inner.GetChild(ctx, state, level, false)
		hi, errHi := s.inner.GetChild(ctx, state, level, true)
		if errLo != nil || errHi != nil {
			return state, level
		}
		loState, loLevel := unwrapSkip(lo, level-1)
		hiState, hiLevel := unwrapSkip(hi, level-1)
		if loLevel != hiLevel || !loState.Equal(hiState) {
			return state, level
		}
		state, level = loState, loLevel
	}
	return state, level
}

// zddLookaheadSpec is spec.md's zdd_lookahead: a ZDD Spec wrapper that
// collapses a level whose present (1) branch is always empty, matching the
// ZDD reduction rule a level ahead of time. Grounded on DdSpecOp.hpp's
// ZddLookahead.
type zddLookaheadSpec struct{ inner Spec }

// ZDDLookahead wraps a ZDD Spec so the builder never materializes a node
// whose present branch is unconditionally empty.
func ZDDLookahead(inner Spec) Spec { return &zddLookaheadSpec{inner: inner} }

func (s *zddLookaheadSpec) Kind() Kind     { return KindZDD }
func (s *zddLookaheadSpec) Variables() int { return s.inner.Variables() }

func (s *zddLookaheadSpec) InitialState() State {
	top := s.inner.Variables()
	st, lvl := s.lookahead(context.Background(), s.inner.InitialState(), top)
	if lvl == top {
		return st
	}
	return &lookaheadRootState{target: st, targetLevel: lvl}
}

func (s *zddLookaheadSpec) GetChild(ctx context.Context, state State, level int, take bool) (State, error) {
	if r, ok := state.(*lookaheadRootState); ok {
		return &SkipState{Inner: r.target, SkipTo: r.targetLevel}, nil
	}
	child, err := s.inner.GetChild(ctx, state, level, take)
	if err != nil {
		return nil, err
	}
	st, lvl := unwrapSkip(child, level-1)
	st, lvl = s.lookahead(ctx, st, lvl)
	return wrapSkip(st, lvl, level-1), nil
}

func (s *zddLookaheadSpec) IsValid(state State) bool {
	if r, ok := state.(*lookaheadRootState); ok {
		return s.inner.IsValid(r.target)
	}
	return s.inner.IsValid(state)
}

func (s *zddLookaheadSpec) lookahead(ctx context.Context, state State, level int) (State, int) {
	for level >= 1 {
		if _, err := s.inner.GetChild(ctx, state, level, true); err == nil {
			return state, level
		}
		lo, err := s.inner.GetChild(ctx, state, level, false)
		if err != nil {
			return state, level
		}
		state, level = unwrapSkip(lo, level-1)
	}
	return state, level
}

// wrapSkip packages (state, level) as a SkipState only when level differs
// from baseline, the level this state would land at with no lookahead
// collapse at all (level-1 of the current GetChild call); otherwise it
// returns state unwrapped, since a SkipState to exactly that level would be
// a needless allocation that skips nothing. Never used for a root state:
// InitialState must never return a SkipState directly (see
// lookaheadRootState), only GetChild may.
func wrapSkip(state State, level, baseline int) State {
	if level == baseline {
		return state
	}
	return &SkipState{Inner: state, SkipTo: level}
}

// unreductionState is shared by bddUnreductionSpec/zddUnreductionSpec: it
// tracks the inner Spec's own pending level the same way binaryState does
// for a single operand, so the wrapper can report exactly one level of
// descent per call even while the inner Spec jumps several at once via
// SkipState.
type unreductionState struct {
	level int
	inner State
	val   bool
}

func (s *unreductionState) Clone() State {
	c := &unreductionState{level: s.level, val: s.val}
	if s.inner != nil {
		c.inner = s.inner.Clone()
	}
	return c
}

func (s *unreductionState) Hash() uint64 {
	if s.inner != nil {
		return uint64(s.level)*97 + s.inner.Hash()
	}
	if s.val {
		return 2
	}
	return 1
}

func (s *unreductionState) Equal(other State) bool {
	o, ok := other.(*unreductionState)
	if !ok || s.level != o.level {
		return false
	}
	if (s.inner == nil) != (o.inner == nil) {
		return false
	}
	if s.inner == nil {
		return s.val == o.val
	}
	return s.inner.Equal(o.inner)
}

// bddUnreductionSpec is spec.md's bdd_unreduction: a BDD Spec wrapper that
// never reports a SkipState of its own, always descending exactly one
// level at a time even through a run the inner Spec considers don't-care.
// Grounded on DdSpecOp.hpp's BddUnreduction. Paired with (*Manager).
// BuildUnreduced, which is what actually keeps the builder from folding
// those one-level-at-a-time nodes back together.
type bddUnreductionSpec struct{ inner Spec }

// BDDUnreduction wraps a BDD Spec so its descent never skips a level,
// matching spec.md's "materialize every level" reading of unreduction.
func BDDUnreduction(inner Spec) Spec { return &bddUnreductionSpec{inner: inner} }

func (s *bddUnreductionSpec) Kind() Kind     { return KindBDD }
func (s *bddUnreductionSpec) Variables() int { return s.inner.Variables() }

func (s *bddUnreductionSpec) InitialState() State {
	lvl, st := s.inner.Variables(), s.inner.InitialState()
	us := &unreductionState{level: lvl, inner: st}
	if us.level == 0 {
		us.inner, us.val = nil, s.inner.IsValid(st)
	}
	return us
}

func (s *bddUnreductionSpec) GetChild(ctx context.Context, state State, level int, take bool) (State, error) {
	us := state.(*unreductionState)
	next := &unreductionState{level: us.level, inner: us.inner, val: us.val}
	if next.inner != nil && next.level == level {
		child, err := s.inner.GetChild(ctx, next.inner, level, take)
		if err != nil {
			return nil, err
		}
		st, lvl := unwrapSkip(child, level-1)
		next.level, next.inner = lvl, st
		if next.level == 0 {
			next.val, next.inner = s.inner.IsValid(st), nil
		}
	}
	return next, nil
}

func (s *bddUnreductionSpec) IsValid(state State) bool {
	us := state.(*unreductionState)
	if us.inner == nil {
		return us.val
	}
	return s.inner.IsValid(us.inner)
}

// zddUnreductionSpec is spec.md's zdd_unreduction, grounded on DdSpecOp.hpp's
// ZddUnreduction: like bddUnreductionSpec, but a present (1) branch taken
// while the inner Spec is not due forces the empty family, matching the
// ZDD reduction rule instead of the BDD one.
type zddUnreductionSpec struct{ inner Spec }

// ZDDUnreduction wraps a ZDD Spec so its descent never skips a level.
func ZDDUnreduction(inner Spec) Spec { return &zddUnreductionSpec{inner: inner} }

func (s *zddUnreductionSpec) Kind() Kind     { return KindZDD }
func (s *zddUnreductionSpec) Variables() int { return s.inner.Variables() }

func (s *zddUnreductionSpec) InitialState() State {
	lvl, st := s.inner.Variables(), s.inner.InitialState()
	us := &unreductionState{level: lvl, inner: st}
	if us.level == 0 {
		us.inner, us.val = nil, s.inner.IsValid(st)
	}
	return us
}

func (s *zddUnreductionSpec) GetChild(ctx context.Context, state State, level int, take bool) (State, error) {
	us := state.(*unreductionState)
	next := &unreductionState{level: us.level, inner: us.inner, val: us.val}
	if next.inner != nil && next.level == level {
		child, err := s.inner.GetChild(ctx, next.inner, level, take)
		if err != nil {
			return nil, err
		}
		st, lvl := unwrapSkip(child, level-1)
		next.level, next.inner = lvl, st
		if next.level == 0 {
			next.val, next.inner = s.inner.IsValid(st), nil
		}
	} else if take {
		next.level, next.inner, next.val = 0, nil, false
	}
	return next, nil
}

func (s *zddUnreductionSpec) IsValid(state State) bool {
	us := state.(*unreductionState)
	if us.inner == nil {
		return us.val
	}
	return s.inner.IsValid(us.inner)
}

// BuildUnreduced constructs the quasi-reduced diagram of spec.md §4.7/§4.8:
// one UnreducedNode per level from the root down to wherever spec
// terminates, applying neither the BDD nor the ZDD reduction rule and
// never collapsing a SkipState jump into a single edge (each intervening
// level gets its own node, with Lo and Hi both pointing at the same
// recursively-built continuation). This is the builder BDDUnreduction and
// ZDDUnreduction need: running a Spec through BuildDFS/BuildBFS instead
// would still fold same-children nodes back together via makeNode. Errors
// from GetChild prune directly to the False/Empty terminal, the same
// convention BuildDFS/BuildBFS use, since pruning reflects a domain
// invariant rather than a reduction shortcut.
func (m *Manager) BuildUnreduced(ctx context.Context, spec Spec) (*UnreducedNode, error) {
	top := spec.Variables()
	memo := make([]map[uint64][]unreducedEntry, top+1)
	for i := range memo {
		memo[i] = make(map[uint64][]unreducedEntry)
	}
	return m.buildUnreduced(ctx, spec, spec.InitialState(), top, memo)
}

type unreducedEntry struct {
	state State
	node  *UnreducedNode
}

func (m *Manager) buildUnreduced(ctx context.Context, spec Spec, state State, level int, memo []map[uint64][]unreducedEntry) (*UnreducedNode, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if level == 0 {
		return UnreducedTerminal(spec.IsValid(state)), nil
	}
	h := state.Hash()
	for _, e := range memo[level][h] {
		if e.state.Equal(state) {
			return e.node, nil
		}
	}
	lo, err := m.descendUnreducedOne(ctx, spec, state, level, false, memo)
	if err != nil {
		return nil, err
	}
	hi, err := m.descendUnreducedOne(ctx, spec, state, level, true, memo)
	if err != nil {
		return nil, err
	}
	v := m.varOfLevel[uint32(level)]
	node := UnreducedBranch(v, lo, hi)
	memo[level][h] = append(memo[level][h], unreducedEntry{state: state, node: node})
	return node, nil
}

func (m *Manager) descendUnreducedOne(ctx context.Context, spec Spec, state State, level int, take bool, memo []map[uint64][]unreducedEntry) (*UnreducedNode, error) {
	child, err := spec.GetChild(ctx, state, level, take)
	if err != nil {
		return UnreducedTerminal(false), nil
	}
	if sk, ok := child.(*SkipState); ok {
		return m.expandUnreduced(ctx, spec, sk.Inner, level-1, sk.SkipTo, memo)
	}
	return m.buildUnreduced(ctx, spec, child, level-1, memo)
}

// expandUnreduced materializes the run of don't-care levels a SkipState
// jump elided, from level down to (and including) target, where both
// children of every intervening node are the same recursively-built
// continuation.
func (m *Manager) expandUnreduced(ctx context.Context, spec Spec, inner State, level, target int, memo []map[uint64][]unreducedEntry) (*UnreducedNode, error) {
	if level == target {
		return m.buildUnreduced(ctx, spec, inner, level, memo)
	}
	h := inner.Hash()
	for _, e := range memo[level][h] {
		if e.state.Equal(inner) {
			return e.node, nil
		}
	}
	child, err := m.expandUnreduced(ctx, spec, inner, level-1, target, memo)
	if err != nil {
		return nil, err
	}
	v := m.varOfLevel[uint32(level)]
	node := UnreducedBranch(v, child, child)
	memo[level][h] = append(memo[level][h], unreducedEntry{state: inner, node: node})
	return node, nil
}
